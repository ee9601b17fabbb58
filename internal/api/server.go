package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/neuralchat/internal/version"
)

// DefaultModelName is reported when a request does not name a model.
const DefaultModelName = "neuralchat"

type Server struct {
	provider EngineProvider
	store    *GenerationStore
	clock    func() time.Time
}

func NewServer(provider EngineProvider, store *GenerationStore) *Server {
	if store == nil {
		store = NewGenerationStore(0)
	}
	return &Server{
		provider: provider,
		store:    store,
		clock:    time.Now,
	}
}

// NewEcho returns an echo instance with the JSON serializer installed and the
// server's routes registered.
func (s *Server) NewEcho() *echo.Echo {
	e := echo.New()
	e.JSONSerializer = JSONSerializer{}
	s.Register(e)
	return e
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)

	e.POST("/v1/generate", s.handleGenerate)
	e.GET("/v1/generate/:id", s.handleGetGeneration)
	e.DELETE("/v1/generate/:id", s.handleDeleteGeneration)

	// Chat Completions API (OpenAI-compatible)
	e.POST("/v1/chat/completions", s.handleChatCompletions)
	e.GET("/v1/models", s.handleListModels)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.String(),
	})
}

func (s *Server) handleListModels(c *echo.Context) error {
	modelIDs := []string{DefaultModelName}
	if provider, ok := s.provider.(interface {
		ListModels() ([]string, error)
	}); ok {
		discovered, err := provider.ListModels()
		if err != nil {
			return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
		}
		if len(discovered) > 0 {
			modelIDs = discovered
		}
	}

	created := s.clock().Unix()
	data := make([]ModelInfo, 0, len(modelIDs))
	for _, id := range modelIDs {
		data = append(data, ModelInfo{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: "local",
		})
	}
	return c.JSON(http.StatusOK, ModelList{Object: "list", Data: data})
}

func modelName(requested string) string {
	if requested == "" {
		return DefaultModelName
	}
	return requested
}

func boolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
