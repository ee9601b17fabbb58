package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samcharles93/neuralchat/internal/inference"
	"github.com/samcharles93/neuralchat/internal/modelstore"
)

type EngineProvider interface {
	WithEngine(ctx context.Context, modelID string, fn func(engine inference.Engine, defaults inference.GenDefaults) error) error
}

type EngineProviderConfig struct {
	DefaultModelPath string
	ModelsPath       string
	Loader           inference.Loader
}

// CachedEngineProvider loads each model directory once and reuses the
// engine for later requests.
type CachedEngineProvider struct {
	cfg   EngineProviderConfig
	mu    sync.Mutex
	cache map[string]*engineEntry
}

type engineEntry struct {
	engine   inference.Engine
	defaults inference.GenDefaults
}

const EnvModelsDir = "NEURALCHAT_MODELS_DIR"

func NewCachedEngineProvider(cfg EngineProviderConfig) *CachedEngineProvider {
	return &CachedEngineProvider{
		cfg:   cfg,
		cache: make(map[string]*engineEntry),
	}
}

func (p *CachedEngineProvider) WithEngine(ctx context.Context, modelID string, fn func(engine inference.Engine, defaults inference.GenDefaults) error) error {
	path, err := p.resolveModelPath(modelID)
	if err != nil {
		return err
	}
	entry, err := p.getOrLoad(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(entry.engine, entry.defaults)
}

// Close releases every cached engine.
func (p *CachedEngineProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for path, entry := range p.cache {
		if err := entry.engine.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.cache, path)
	}
	return errors.Join(errs...)
}

// ListModels returns the names of the models the provider can serve.
func (p *CachedEngineProvider) ListModels() ([]string, error) {
	seen := map[string]struct{}{}
	var names []string
	add := func(path string) {
		name := filepath.Base(filepath.Clean(path))
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	if p.cfg.DefaultModelPath != "" {
		add(p.cfg.DefaultModelPath)
	}
	if dir := p.modelsDir(); dir != "" {
		dirs, err := modelstore.Discover(dir)
		if err != nil {
			return nil, err
		}
		for _, d := range dirs {
			add(d)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (p *CachedEngineProvider) getOrLoad(path string) (*engineEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.cache[path]; ok {
		return entry, nil
	}

	result, err := p.cfg.Loader.Load(path)
	if err != nil {
		return nil, err
	}
	entry := &engineEntry{
		engine:   result.Engine,
		defaults: result.GenerationDefaults,
	}
	p.cache[path] = entry
	return entry, nil
}

func (p *CachedEngineProvider) resolveModelPath(modelID string) (string, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID != "" {
		if p.cfg.DefaultModelPath != "" && filepath.Base(filepath.Clean(p.cfg.DefaultModelPath)) == modelID {
			return filepath.Clean(p.cfg.DefaultModelPath), nil
		}
		modelsDir := p.modelsDir()
		if modelsDir == "" {
			return "", fmt.Errorf("%w: %q (no models path configured)", ErrModelNotFound, modelID)
		}
		models, err := modelstore.Discover(modelsDir)
		if err != nil {
			return "", err
		}
		for _, m := range models {
			if filepath.Base(m) == modelID {
				return m, nil
			}
		}
		return "", fmt.Errorf("%w: %q not found in %s", ErrModelNotFound, modelID, modelsDir)
	}

	if p.cfg.DefaultModelPath != "" {
		return filepath.Clean(p.cfg.DefaultModelPath), nil
	}
	modelsDir := p.modelsDir()
	if modelsDir == "" {
		return "", newInvalidRequest("model is required")
	}
	models, err := modelstore.Discover(modelsDir)
	if err != nil {
		return "", err
	}
	switch len(models) {
	case 1:
		return models[0], nil
	case 0:
		return "", fmt.Errorf("%w: no models found in %s", ErrModelNotFound, modelsDir)
	default:
		return "", newInvalidRequest(fmt.Sprintf("multiple models found in %s; specify model", modelsDir))
	}
}

func (p *CachedEngineProvider) modelsDir() string {
	if strings.TrimSpace(p.cfg.ModelsPath) != "" {
		return strings.TrimSpace(p.cfg.ModelsPath)
	}
	return strings.TrimSpace(os.Getenv(EnvModelsDir))
}
