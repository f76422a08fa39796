package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiBackend implements Backend using Google's Gemini models.
type GeminiBackend struct {
	client      *genai.Client
	modelName   string
	temperature float32
}

// NewGeminiBackend initializes a new Gemini client.
// apiKey should be provided from environment variables.
func NewGeminiBackend(ctx context.Context, apiKey, modelName string, temperature float32, opts ...option.ClientOption) (*GeminiBackend, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiBackend{client: client, modelName: modelName, temperature: temperature}, nil
}

// Close cleans up the Gemini client resources.
func (b *GeminiBackend) Close() {
	b.client.Close()
}

func (b *GeminiBackend) model(req Request) *genai.GenerativeModel {
	model := b.client.GenerativeModel(b.modelName)
	model.SetTemperature(b.temperature)
	if req.Instructions != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.Instructions)}}
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters().genai(),
			})
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		return model
	}

	// JSON mode cannot be combined with function calling.
	if req.Schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = req.Schema.genai()
	}
	return model
}

// Prewarm counts tokens for the session preamble, which opens the connection
// and validates the model name ahead of the first real request.
func (b *GeminiBackend) Prewarm(ctx context.Context, req Request) error {
	model := b.model(req)
	if _, err := model.CountTokens(ctx, genai.Text(req.Instructions+"\n"+req.Prompt)); err != nil {
		return fmt.Errorf("gemini prewarm: %w", err)
	}
	return nil
}

// Stream runs a chat session, executing tool calls between turns until the
// model replies without requesting any.
func (b *GeminiBackend) Stream(ctx context.Context, req Request, onText func(text string)) error {
	cs := b.model(req).StartChat()
	parts := []genai.Part{genai.Text(req.Prompt)}

	for turn := 0; ; turn++ {
		if turn > req.maxTurns() {
			return ErrTooManyTurns
		}

		// Text written before a tool call is narration, not the answer.
		var text strings.Builder
		calls, err := b.streamTurn(ctx, cs, parts, &text, onText)
		if err != nil {
			return err
		}
		if len(calls) == 0 {
			return nil
		}

		slog.Debug("gemini tool calls", "turn", turn, "count", len(calls))
		parts = functionResponses(invokeTools(ctx, req.Tools, calls, req.ToolTimeout))
	}
}

// functionResponses wraps tool results for the next turn. Payloads are plain
// JSON values (see runTool), which the client converts to protobuf structs.
func functionResponses(results []toolResult) []genai.Part {
	parts := make([]genai.Part, 0, len(results))
	for _, r := range results {
		parts = append(parts, genai.FunctionResponse{Name: r.Call.Name, Response: r.Payload})
	}
	return parts
}

func (b *GeminiBackend) streamTurn(ctx context.Context, cs *genai.ChatSession, parts []genai.Part, text *strings.Builder, onText func(string)) ([]toolCall, error) {
	iter := cs.SendMessageStream(ctx, parts...)
	var calls []toolCall
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return calls, nil
		}
		if err != nil {
			return nil, fmt.Errorf("gemini generation error: %w", err)
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				switch p := part.(type) {
				case genai.Text:
					if p == "" {
						continue
					}
					text.WriteString(string(p))
					if onText != nil {
						onText(text.String())
					}
				case genai.FunctionCall:
					args, err := json.Marshal(p.Args)
					if err != nil {
						args = []byte("{}")
					}
					calls = append(calls, toolCall{Name: p.Name, Args: args})
				}
			}
		}
	}
}
