package ai

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrMalformedOutput is returned when the model's final output is not valid JSON for the requested shape.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrTooManyTurns is returned when the model keeps requesting tools past the configured turn limit.
	ErrTooManyTurns = errors.New("too many tool turns")
)

// Backend defines the contract for structured, streamed generation.
// This interface allows for swapping different AI providers (Gemini, OpenAI, etc.).
type Backend interface {
	// Stream runs one session for req. onText is called with the model text
	// of the current turn every time it grows; tool calls requested by the model are
	// executed against req.Tools between turns. Stream returns when the model
	// stops, the context ends, or the backend fails.
	Stream(ctx context.Context, req Request, onText func(text string)) error

	// Prewarm primes the backend for an anticipated request. It is safe to skip.
	Prewarm(ctx context.Context, req Request) error
}

// Tool is an external-data function the model may call during a session.
type Tool interface {
	Name() string
	Description() string
	Parameters() *Schema
	// Call receives the model's arguments as a JSON object.
	Call(ctx context.Context, args json.RawMessage) (any, error)
}
