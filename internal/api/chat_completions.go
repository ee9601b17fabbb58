package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/neuralchat/internal/inference"
)

func (s *Server) handleChatCompletions(c *echo.Context) error {
	if s.provider == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "inference service not configured", "", "")
	}

	req, err := decodeJSON[ChatCompletionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Messages) == 0 {
		return writeBadRequest(c, "messages is required and must not be empty")
	}

	msgs, err := chatMessagesToInference(req.Messages)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	opts, err := chatToRequestOptions(&req, msgs)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	completionID := newCompletionID()
	created := s.clock().Unix()
	model := modelName(req.Model)

	if boolValue(req.Stream, false) {
		return s.handleChatCompletionsStream(c, req.Model, opts, completionID, created, model)
	}
	return s.handleChatCompletionsSync(c, req.Model, opts, completionID, created, model)
}

func (s *Server) handleChatCompletionsSync(c *echo.Context, modelID string, opts inference.RequestOptions, completionID string, created int64, model string) error {
	var result *inference.Result
	err := s.provider.WithEngine(c.Request().Context(), modelID, func(engine inference.Engine, defaults inference.GenDefaults) error {
		inferReq := inference.ResolveRequest(opts, defaults)
		var err error
		result, err = engine.Generate(c.Request().Context(), &inferReq, nil)
		return err
	})
	if err != nil {
		return writeEngineError(c, err)
	}

	finishReason := "length"
	return c.JSON(http.StatusOK, ChatCompletionResponse{
		ID:      completionID,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []ChatChoice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    "assistant",
					Content: result.Text,
				},
				FinishReason: &finishReason,
			},
		},
		Usage: ChatUsage{
			PromptTokens:     result.Stats.PromptTokens,
			CompletionTokens: result.Stats.TokensGenerated,
			TotalTokens:      result.Stats.PromptTokens + result.Stats.TokensGenerated,
		},
	})
}

func (s *Server) handleChatCompletionsStream(c *echo.Context, modelID string, opts inference.RequestOptions, completionID string, created int64, model string) error {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return writeBadRequest(c, "streaming unsupported")
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	chunk := func(delta *ChatMessage, finish *string) ChatCompletionChunk {
		return ChatCompletionChunk{
			ID:      completionID,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []ChatChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		}
	}

	if err := sendSSEChunk(res, chunk(&ChatMessage{Role: "assistant"}, nil)); err != nil {
		return err
	}
	flusher.Flush()

	err := s.provider.WithEngine(c.Request().Context(), modelID, func(engine inference.Engine, defaults inference.GenDefaults) error {
		inferReq := inference.ResolveRequest(opts, defaults)
		_, err := engine.Generate(c.Request().Context(), &inferReq, func(piece string) {
			_ = sendSSEChunk(res, chunk(&ChatMessage{Content: piece}, nil))
			flusher.Flush()
		})
		return err
	})
	if err != nil {
		_, typ := classify(err)
		_ = sendSSEChunk(res, map[string]any{"error": ResponseError{Message: err.Error(), Type: typ}})
		flusher.Flush()
	}

	finishReason := "length"
	_ = sendSSEChunk(res, chunk(&ChatMessage{}, &finishReason))
	_, _ = fmt.Fprint(res, "data: [DONE]\n\n")
	flusher.Flush()
	return nil
}

func chatMessagesToInference(msgs []ChatMessage) ([]inference.Message, error) {
	out := make([]inference.Message, 0, len(msgs))
	for i, m := range msgs {
		msg := inference.Message{Role: m.Role}
		switch content := m.Content.(type) {
		case string:
			msg.Content = content
		case nil:
		case []any:
			var textParts []string
			for _, part := range content {
				pm, ok := part.(map[string]any)
				if !ok {
					continue
				}
				if typ, _ := pm["type"].(string); typ == "text" {
					if text, ok := pm["text"].(string); ok {
						textParts = append(textParts, text)
					}
				}
			}
			msg.Content = strings.Join(textParts, "\n")
		default:
			return nil, fmt.Errorf("messages[%d].content: unsupported type", i)
		}
		out = append(out, msg)
	}
	return out, nil
}

// chatToRequestOptions maps the OpenAI fields the model can honour. A zero
// temperature selects greedy decoding.
func chatToRequestOptions(req *ChatCompletionRequest, msgs []inference.Message) (inference.RequestOptions, error) {
	prompt, err := inference.PromptFromMessages(msgs)
	if err != nil {
		return inference.RequestOptions{}, err
	}
	opts := inference.RequestOptions{Prompt: prompt, Seed: req.Seed}

	maxToks := req.MaxTokens
	if req.MaxCompletionTokens != nil {
		maxToks = req.MaxCompletionTokens
	}
	if err := validateLength(maxToks); err != nil {
		return inference.RequestOptions{}, err
	}
	opts.Length = maxToks

	if req.Temperature != nil {
		if *req.Temperature < 0 {
			return inference.RequestOptions{}, fmt.Errorf("temperature must not be negative")
		}
		greedy := *req.Temperature == 0
		opts.Greedy = &greedy
	}
	return opts, nil
}
