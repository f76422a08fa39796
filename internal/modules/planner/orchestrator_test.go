package planner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ryokou/internal/ai"
)

type fakeBackend struct {
	mu     sync.Mutex
	calls  int
	stream func(ctx context.Context, req ai.Request, onText func(string)) error
}

func (f *fakeBackend) Stream(ctx context.Context, req ai.Request, onText func(string)) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.stream(ctx, req, onText)
}

func (f *fakeBackend) Prewarm(context.Context, ai.Request) error { return nil }

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// emitPrefixes streams doc the way a backend does: growing accumulated text.
func emitPrefixes(doc string, step int, onText func(string)) {
	for i := step; i < len(doc); i += step {
		onText(doc[:i])
	}
	onText(doc)
}

func itineraryDoc(t *testing.T, title string, days int) string {
	t.Helper()
	p := partialItinerary(days)
	p.Title = str(title)
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func newItineraryOrchestrator(b ai.Backend, opts Options) *Orchestrator[PartialItinerary] {
	return NewOrchestrator[PartialItinerary](b, NewItineraryStage(nil, ToolsAuto), opts)
}

func TestGenerateStreamsMonotonicSnapshots(t *testing.T) {
	backend := &fakeBackend{stream: func(_ context.Context, _ ai.Request, onText func(string)) error {
		emitPrefixes(itineraryDoc(t, "Lights of Paris", 4), 7, onText)
		return nil
	}}
	o := newItineraryOrchestrator(backend, Options{})

	updates, unsubscribe := o.Subscribe()
	defer unsubscribe()

	var seen []State[PartialItinerary]
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for st := range updates {
			seen = append(seen, st)
			if st.Settled() {
				return
			}
		}
	}()

	st, err := o.Generate(context.Background(), parisContext())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	<-collected

	if st.Phase != PhaseSucceeded {
		t.Fatalf("phase = %s", st.Phase)
	}
	if _, ok := ConcreteItinerary(st.Snapshot, 4); !ok {
		t.Fatalf("final snapshot should be complete: %+v", st.Snapshot)
	}

	prevDays := 0
	for _, s := range seen {
		if n := len(s.Snapshot.Days); n < prevDays {
			t.Fatalf("days regressed from %d to %d", prevDays, n)
		} else {
			prevDays = n
		}
	}
}

func TestGenerateIdenticalContextIsNoOp(t *testing.T) {
	backend := &fakeBackend{stream: func(_ context.Context, _ ai.Request, onText func(string)) error {
		onText(itineraryDoc(t, "Lights of Paris", 4))
		return nil
	}}
	o := newItineraryOrchestrator(backend, Options{})

	for i := 0; i < 3; i++ {
		if _, err := o.Generate(context.Background(), parisContext()); err != nil {
			t.Fatalf("Generate #%d: %v", i, err)
		}
	}
	if backend.Calls() != 1 {
		t.Fatalf("expected a single backend session, got %d", backend.Calls())
	}

	other := parisContext()
	other.HotelBudgetUSD = 300
	if _, err := o.Generate(context.Background(), other); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if backend.Calls() != 2 {
		t.Fatalf("a different context should start a new session, got %d calls", backend.Calls())
	}
}

func TestGenerateRetriesAfterFailure(t *testing.T) {
	var fail = true
	backend := &fakeBackend{stream: func(_ context.Context, _ ai.Request, onText func(string)) error {
		if fail {
			return errors.New("backend unavailable")
		}
		onText(itineraryDoc(t, "Lights of Paris", 4))
		return nil
	}}
	o := newItineraryOrchestrator(backend, Options{})

	st, err := o.Generate(context.Background(), parisContext())
	if !errors.Is(err, ErrGeneration) || st.Phase != PhaseFailed || st.Error == "" {
		t.Fatalf("expected failed state, got %+v, %v", st, err)
	}

	fail = false
	st, err = o.Generate(context.Background(), parisContext())
	if err != nil || st.Phase != PhaseSucceeded {
		t.Fatalf("retry should start a fresh session: %+v, %v", st, err)
	}
	if backend.Calls() != 2 {
		t.Fatalf("expected 2 sessions, got %d", backend.Calls())
	}
}

func TestGenerateSupersedesPreviousContext(t *testing.T) {
	aStarted := make(chan struct{})
	aDone := make(chan struct{})
	backend := &fakeBackend{stream: func(ctx context.Context, req ai.Request, onText func(string)) error {
		if strings.Contains(req.Prompt, "in Paris") {
			defer close(aDone)
			onText(`{"title":"Paris A","rationale":"A only","days":[{"title":"A day"`)
			close(aStarted)
			<-ctx.Done()
			// Output that arrives after cancellation must be discarded.
			onText(`{"title":"Paris A","rationale":"A only","description":"late A","days":[{"title":"A day"}]}`)
			return ctx.Err()
		}
		emitPrefixes(itineraryDoc(t, "Tokyo B", 4), 11, onText)
		return nil
	}}
	o := newItineraryOrchestrator(backend, Options{})

	a := parisContext()
	if err := o.Start(context.Background(), a); err != nil {
		t.Fatalf("Start(A): %v", err)
	}
	<-aStarted

	b := parisContext()
	b.Destination, _ = LookupDestination("Tokyo")
	st, err := o.Generate(context.Background(), b)
	if err != nil {
		t.Fatalf("Generate(B): %v", err)
	}
	<-aDone

	final := o.State()
	if final.Generation != st.Generation || final.Phase != PhaseSucceeded {
		t.Fatalf("final state is not B's run: %+v", final)
	}
	if final.Context.Destination.ID != "Tokyo" {
		t.Fatalf("final context = %s", final.Context.Destination.ID)
	}
	snap := final.Snapshot
	if *snap.Title != "Tokyo B" || *snap.Rationale == "A only" || *snap.Description == "late A" {
		t.Fatalf("snapshot mixes A into B: %+v", snap)
	}
	for _, d := range snap.Days {
		if *d.Title == "A day" {
			t.Fatalf("snapshot contains a day from A")
		}
	}
}

func TestGenerateTimeout(t *testing.T) {
	backend := &fakeBackend{stream: func(ctx context.Context, _ ai.Request, _ func(string)) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	o := newItineraryOrchestrator(backend, Options{StreamTimeout: 20 * time.Millisecond})

	st, err := o.Generate(context.Background(), parisContext())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if st.Phase != PhaseFailed {
		t.Fatalf("phase = %s", st.Phase)
	}
}

func TestGenerateMalformedFinalOutput(t *testing.T) {
	backend := &fakeBackend{stream: func(_ context.Context, _ ai.Request, onText func(string)) error {
		onText(`{"title":"Lights of`)
		return nil
	}}
	o := newItineraryOrchestrator(backend, Options{})

	st, err := o.Generate(context.Background(), parisContext())
	if !errors.Is(err, ErrGeneration) || !errors.Is(err, ai.ErrMalformedOutput) {
		t.Fatalf("expected malformed output error, got %v", err)
	}
	if st.Snapshot.Title == nil || *st.Snapshot.Title != "Lights of" {
		t.Fatalf("partial snapshot should be kept for display: %+v", st.Snapshot)
	}
}

func TestGenerateRejectsInvalidContext(t *testing.T) {
	backend := &fakeBackend{stream: func(context.Context, ai.Request, func(string)) error { return nil }}
	o := newItineraryOrchestrator(backend, Options{})

	tc := parisContext()
	tc.Origin = ""
	if _, err := o.Generate(context.Background(), tc); !errors.Is(err, ErrInvalidContext) {
		t.Fatalf("expected ErrInvalidContext, got %v", err)
	}
	if o.State().Phase != PhaseIdle || backend.Calls() != 0 {
		t.Fatalf("invalid context must not start a run")
	}
}

func TestRequestCarriesOrchestratorLimits(t *testing.T) {
	var got ai.Request
	backend := &fakeBackend{stream: func(_ context.Context, req ai.Request, onText func(string)) error {
		got = req
		onText(`{"flights":[],"hotels":[]}`)
		return nil
	}}
	o := NewOrchestrator[PartialSuggestion](backend, NewSuggestionStage(nil), Options{ToolTimeout: 5 * time.Second, MaxToolTurns: 3})

	if _, err := o.Generate(context.Background(), parisContext()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.ToolTimeout != 5*time.Second || got.MaxTurns != 3 {
		t.Fatalf("limits not applied: %+v", got)
	}
	if !strings.Contains(got.Prompt, "Plan a round-trip from JFK to Paris, departing 2025-12-01 and returning 2025-12-04.") {
		t.Fatalf("unexpected prompt: %s", got.Prompt)
	}
	if !strings.Contains(got.Prompt, "The flight budget is 900 USD and the hotel budget is 250 USD per night.") {
		t.Fatalf("unexpected prompt: %s", got.Prompt)
	}
}
