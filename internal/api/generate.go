package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/neuralchat/internal/inference"
)

// MaxLength caps the number of tokens a single request may ask for.
const MaxLength = 4096

func validateLength(n *int) error {
	if n == nil {
		return nil
	}
	if *n < 0 || *n > MaxLength {
		return newInvalidRequest(fmt.Sprintf("length must be between 0 and %d", MaxLength))
	}
	return nil
}

func (s *Server) handleGenerate(c *echo.Context) error {
	if s.provider == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "inference service not configured", "", "")
	}
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if err := validateLength(req.Length); err != nil {
		return writeBadRequest(c, err.Error())
	}

	resp := GenerateResponse{
		ID:      newGenerationID(),
		Object:  "generation",
		Created: s.clock().Unix(),
		Model:   modelName(req.Model),
		Prompt:  req.Prompt,
	}
	opts := inference.RequestOptions{
		Prompt: req.Prompt,
		Length: req.Length,
		Seed:   req.Seed,
		Greedy: req.Greedy,
	}

	if boolValue(req.Stream, false) {
		return s.streamGenerate(c, req.Model, resp, opts, boolValue(req.Store, true))
	}

	var result *inference.Result
	err = s.provider.WithEngine(c.Request().Context(), req.Model, func(engine inference.Engine, defaults inference.GenDefaults) error {
		inferReq := inference.ResolveRequest(opts, defaults)
		var err error
		result, err = engine.Generate(c.Request().Context(), &inferReq, nil)
		return err
	})
	if err != nil {
		return writeEngineError(c, err)
	}

	fillGeneration(&resp, result)
	if boolValue(req.Store, true) {
		s.store.Put(resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) streamGenerate(c *echo.Context, modelID string, resp GenerateResponse, opts inference.RequestOptions, store bool) error {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return writeBadRequest(c, "streaming unsupported")
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	var result *inference.Result
	err := s.provider.WithEngine(c.Request().Context(), modelID, func(engine inference.Engine, defaults inference.GenDefaults) error {
		inferReq := inference.ResolveRequest(opts, defaults)
		var err error
		result, err = engine.Generate(c.Request().Context(), &inferReq, func(piece string) {
			_ = sendSSEChunk(res, GenerateChunk{ID: resp.ID, Delta: piece})
			flusher.Flush()
		})
		return err
	})
	if err != nil {
		_, typ := classify(err)
		_ = sendSSEChunk(res, map[string]any{"error": ResponseError{Message: err.Error(), Type: typ}})
	} else {
		fillGeneration(&resp, result)
		if store {
			s.store.Put(resp)
		}
		_ = sendSSEChunk(res, resp)
	}
	_, _ = fmt.Fprint(res, "data: [DONE]\n\n")
	flusher.Flush()
	return nil
}

func fillGeneration(resp *GenerateResponse, result *inference.Result) {
	resp.Text = result.Text
	resp.Tokens = result.Tokens
	if resp.Tokens == nil {
		resp.Tokens = []string{}
	}
	resp.Usage = ChatUsage{
		PromptTokens:     result.Stats.PromptTokens,
		CompletionTokens: result.Stats.TokensGenerated,
		TotalTokens:      result.Stats.PromptTokens + result.Stats.TokensGenerated,
	}
}

func (s *Server) handleGetGeneration(c *echo.Context) error {
	resp, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteGeneration(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, DeleteResponse{ID: id, Object: "generation", Deleted: true})
}
