package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model name is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIBackend implements Backend on the Chat Completions streaming API.
type OpenAIBackend struct {
	client      openai.Client
	modelName   string
	temperature float64
}

func NewOpenAIBackend(apiKey, modelName string, temperature float64, opts ...option.RequestOption) *OpenAIBackend {
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIBackend{
		client:      openai.NewClient(opts...),
		modelName:   modelName,
		temperature: temperature,
	}
}

// Prewarm resolves the configured model, which fails fast on a bad key or name.
func (b *OpenAIBackend) Prewarm(ctx context.Context, _ Request) error {
	if _, err := b.client.Models.Get(ctx, b.modelName); err != nil {
		return fmt.Errorf("openai prewarm: %w", err)
	}
	return nil
}

func (b *OpenAIBackend) params(req Request, messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(b.modelName),
		Messages:    messages,
		Temperature: openai.Float(b.temperature),
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  openai.FunctionParameters(t.Parameters().JSONSchema()),
			},
		})
	}
	if len(req.Tools) == 0 && req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "response",
					Schema: req.Schema.JSONSchema(),
				},
			},
		}
	}
	return params
}

// Stream runs a chat completion, executing tool calls between turns until the
// model replies without requesting any.
func (b *OpenAIBackend) Stream(ctx context.Context, req Request, onText func(text string)) error {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	for turn := 0; ; turn++ {
		if turn > req.maxTurns() {
			return ErrTooManyTurns
		}

		text := ""
		stream := b.client.Chat.Completions.NewStreaming(ctx, b.params(req, messages))
		acc := openai.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				text += chunk.Choices[0].Delta.Content
				if onText != nil {
					onText(text)
				}
			}
		}
		err := stream.Err()
		stream.Close()
		if err != nil {
			return fmt.Errorf("openai generation error: %w", err)
		}
		if len(acc.Choices) == 0 {
			return nil
		}

		msg := acc.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return nil
		}

		calls := make([]toolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			calls = append(calls, toolCall{ID: tc.ID, Name: tc.Function.Name, Args: []byte(tc.Function.Arguments)})
		}
		slog.Debug("openai tool calls", "turn", turn, "count", len(calls))

		messages = append(messages, msg.ToParam())
		for _, r := range invokeTools(ctx, req.Tools, calls, req.ToolTimeout) {
			messages = append(messages, openai.ToolMessage(marshalPayload(r.Payload), r.Call.ID))
		}
	}
}
