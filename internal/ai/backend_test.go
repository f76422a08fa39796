package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/option"
	gopt "google.golang.org/api/option"
)

type quotedFlight struct {
	Airline string  `json:"airline"`
	Price   float64 `json:"price"`
}

// flightTool returns typed results, the way the search tools do.
func flightTool(calls *atomic.Int32) fakeTool {
	return fakeTool{name: "searchFlights", call: func(_ context.Context, args json.RawMessage) (any, error) {
		calls.Add(1)
		var in struct {
			Origin string `json:"origin"`
		}
		if err := json.Unmarshal(args, &in); err != nil || in.Origin != "JFK" {
			return nil, fmt.Errorf("unexpected args %s", args)
		}
		return []quotedFlight{{Airline: "Air France", Price: 450}}, nil
	}}
}

// textCollector records onText calls.
type textCollector struct {
	mu    sync.Mutex
	texts []string
}

func (c *textCollector) add(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
}

func (c *textCollector) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.texts) == 0 {
		return ""
	}
	return c.texts[len(c.texts)-1]
}

func writeSSE(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		fmt.Fprintf(w, "data: %s\n\n", c)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func openAIChunk(id, delta, finish string) string {
	choice := `{"index":0,"delta":` + delta
	if finish != "" {
		choice += `,"finish_reason":"` + finish + `"`
	}
	choice += `}`
	return `{"id":"` + id + `","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[` + choice + `]}`
}

func toolCallChunks(id string) []string {
	return []string{
		openAIChunk(id, `{"role":"assistant","content":"Checking {JFK} fares. "}`, ""),
		openAIChunk(id, `{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"searchFlights","arguments":"{\"origin\":"}}]}`, ""),
		openAIChunk(id, `{"tool_calls":[{"index":0,"function":{"arguments":"\"JFK\"}"}}]}`, "tool_calls"),
	}
}

type chatMessage struct {
	Role       string `json:"role"`
	Content    any    `json:"content"`
	ToolCallID string `json:"tool_call_id"`
}

func newOpenAITestBackend(t *testing.T, handler http.HandlerFunc) *OpenAIBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIBackend("test-key", "gpt-test", 0, option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
}

func TestOpenAIStreamRunsToolsBetweenTurns(t *testing.T) {
	var (
		requests  atomic.Int32
		toolCalls atomic.Int32
		toolReply atomic.Value
	)
	backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if requests.Add(1) == 1 {
			writeSSE(w, toolCallChunks("r1")...)
			return
		}
		var body struct {
			Messages []chatMessage `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, m := range body.Messages {
			if m.Role == "tool" && m.ToolCallID == "call_1" {
				toolReply.Store(fmt.Sprint(m.Content))
			}
		}
		writeSSE(w,
			openAIChunk("r2", `{"role":"assistant","content":"{\"flights\":"}`, ""),
			openAIChunk("r2", `{"content":"[{\"price\":450}]}"}`, "stop"),
		)
	})

	var texts textCollector
	err := backend.Stream(context.Background(), Request{
		Prompt: "Plan a trip",
		Tools:  []Tool{flightTool(&toolCalls)},
	}, texts.add)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if requests.Load() != 2 || toolCalls.Load() != 1 {
		t.Fatalf("expected 2 model turns and 1 tool call, got %d and %d", requests.Load(), toolCalls.Load())
	}
	reply, _ := toolReply.Load().(string)
	if !strings.Contains(reply, `"price":450`) {
		t.Fatalf("tool result not sent back to the model: %q", reply)
	}

	last := texts.last()
	if last != `{"flights":[{"price":450}]}` {
		t.Fatalf("final text should only hold the last turn, got %q", last)
	}
	var out struct {
		Flights []quotedFlight `json:"flights"`
	}
	if err := DecodeFinal(last, &out); err != nil || len(out.Flights) != 1 {
		t.Fatalf("DecodeFinal(%q) = %+v, %v", last, out, err)
	}
}

func TestOpenAIStreamStopsAfterMaxTurns(t *testing.T) {
	var requests, toolCalls atomic.Int32
	backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, toolCallChunks(fmt.Sprintf("r%d", requests.Add(1)))...)
	})

	err := backend.Stream(context.Background(), Request{
		Prompt:   "Plan a trip",
		Tools:    []Tool{flightTool(&toolCalls)},
		MaxTurns: 1,
	}, nil)
	if !errors.Is(err, ErrTooManyTurns) {
		t.Fatalf("expected ErrTooManyTurns, got %v", err)
	}
	if requests.Load() != 2 {
		t.Fatalf("expected 2 model turns, got %d", requests.Load())
	}
}

// rewriteTransport sends every request to the test server.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = rt.target.Scheme
	out.URL.Host = rt.target.Host
	out.Host = ""
	return http.DefaultTransport.RoundTrip(out)
}

// geminiTurn writes a streamed generateContent response as a JSON array.
func geminiTurn(w http.ResponseWriter, parts ...string) {
	w.Header().Set("Content-Type", "application/json")
	chunks := make([]string, len(parts))
	for i, p := range parts {
		chunks[i] = `{"candidates":[{"index":0,"content":{"role":"model","parts":[` + p + `]}}]}`
	}
	fmt.Fprint(w, "["+strings.Join(chunks, ",")+"]")
}

// functionResponse digs the last functionResponse payload out of a request body.
func functionResponse(body []byte) map[string]any {
	var req struct {
		Contents []struct {
			Parts []struct {
				FunctionResponse *struct {
					Name     string         `json:"name"`
					Response map[string]any `json:"response"`
				} `json:"functionResponse"`
			} `json:"parts"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil
	}
	var found map[string]any
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			if p.FunctionResponse != nil {
				found = p.FunctionResponse.Response
			}
		}
	}
	return found
}

func TestGeminiStreamSendsTypedToolResults(t *testing.T) {
	var (
		requests  atomic.Int32
		toolCalls atomic.Int32
		sent      atomic.Value
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":streamGenerateContent") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if requests.Add(1) == 1 {
			geminiTurn(w,
				`{"text":"Looking up {JFK} fares. "}`,
				`{"functionCall":{"name":"searchFlights","args":{"origin":"JFK"}}}`,
			)
			return
		}
		if resp := functionResponse(body); resp != nil {
			sent.Store(resp)
		}
		geminiTurn(w, `{"text":"{\"flights\":"}`, `{"text":"[{\"price\":450}]}"}`)
	}))
	t.Cleanup(srv.Close)
	target, _ := url.Parse(srv.URL)

	ctx := context.Background()
	backend, err := NewGeminiBackend(ctx, "test-key", "", 0,
		gopt.WithHTTPClient(&http.Client{Transport: rewriteTransport{target: target}}))
	if err != nil {
		t.Fatalf("NewGeminiBackend: %v", err)
	}
	defer backend.Close()

	var texts textCollector
	err = backend.Stream(ctx, Request{
		Prompt: "Plan a trip",
		Tools:  []Tool{flightTool(&toolCalls)},
	}, texts.add)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if requests.Load() != 2 || toolCalls.Load() != 1 {
		t.Fatalf("expected 2 model turns and 1 tool call, got %d and %d", requests.Load(), toolCalls.Load())
	}
	resp, _ := sent.Load().(map[string]any)
	results, _ := resp["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("unexpected function response: %v", resp)
	}
	if first, _ := results[0].(map[string]any); first["price"] != float64(450) {
		t.Fatalf("unexpected flight in function response: %v", results[0])
	}

	if last := texts.last(); last != `{"flights":[{"price":450}]}` {
		t.Fatalf("final text should only hold the last turn, got %q", last)
	}
}
