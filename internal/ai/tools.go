package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// toolCall is one function call requested by the model.
type toolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// toolResult is what is sent back to the model for a toolCall.
type toolResult struct {
	Call    toolCall
	Payload map[string]any
}

// invokeTools runs the requested calls concurrently and returns their results
// in call order. A failing or unknown tool does not abort the session: its
// error is reported back to the model as part of the payload.
func invokeTools(ctx context.Context, tools []Tool, calls []toolCall, timeout time.Duration) []toolResult {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}

	results := make([]toolResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = toolResult{Call: call, Payload: runTool(gctx, byName[call.Name], call, timeout)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runTool(ctx context.Context, tool Tool, call toolCall, timeout time.Duration) map[string]any {
	if tool == nil {
		return errorPayload(fmt.Errorf("unknown tool %q", call.Name))
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	args := call.Args
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	out, err := tool.Call(ctx, args)
	if err != nil {
		return errorPayload(err)
	}
	return plainPayload(map[string]any{"results": out})
}

// plainPayload round-trips p through JSON so it only holds maps, slices,
// strings, float64, bool and nil. Typed results (structs, typed slices) are
// rejected by protobuf struct conversion.
func plainPayload(p map[string]any) map[string]any {
	b, err := json.Marshal(p)
	if err != nil {
		return errorPayload(fmt.Errorf("encode tool result: %w", err))
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return errorPayload(fmt.Errorf("encode tool result: %w", err))
	}
	return out
}

func errorPayload(err error) map[string]any {
	return map[string]any{"results": []any{}, "error": err.Error()}
}

// marshalPayload encodes a tool payload for backends that exchange tool
// results as strings.
func marshalPayload(p map[string]any) string {
	b, err := json.Marshal(p)
	if err != nil {
		b, _ = json.Marshal(errorPayload(err))
	}
	return string(b)
}
