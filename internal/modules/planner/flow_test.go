package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"ryokou/internal/ai"
	"ryokou/internal/types"
)

func newTestRegistry(ttl time.Duration) *Registry {
	backend := &fakeBackend{stream: func(ctx context.Context, _ ai.Request, _ func(string)) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	return NewRegistry(backend, NewSuggestionStage(nil), NewItineraryStage(nil, ToolsAuto), Options{}, ttl)
}

func TestRegistryLifecycle(t *testing.T) {
	r := newTestRegistry(time.Hour)

	f := r.Create()
	got, err := r.Get(f.ID)
	if err != nil || got != f {
		t.Fatalf("Get(%s) = %v, %v", f.ID, got, err)
	}
	if f.Suggestions == nil || f.Itinerary == nil {
		t.Fatalf("flow must own both orchestrators")
	}

	if err := f.Suggestions.Start(context.Background(), parisContext()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Delete(f.ID)
	if _, err := r.Get(f.ID); !errors.Is(err, ErrFlowNotFound) {
		t.Fatalf("expected ErrFlowNotFound, got %v", err)
	}

	deadline := time.After(time.Second)
	for f.Suggestions.State().Phase != PhaseFailed {
		select {
		case <-deadline:
			t.Fatalf("deleting a flow should cancel its live run")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRegistryExpiresIdleFlows(t *testing.T) {
	r := newTestRegistry(100 * time.Millisecond)
	f := r.Create()

	// Each Get restarts the idle timer, so the flow outlives its initial TTL.
	for i := 0; i < 3; i++ {
		time.Sleep(60 * time.Millisecond)
		if _, err := r.Get(f.ID); err != nil {
			t.Fatalf("active flow expired after %d lookups: %v", i, err)
		}
	}

	time.Sleep(150 * time.Millisecond)
	if _, err := r.Get(f.ID); !errors.Is(err, ErrFlowNotFound) {
		t.Fatalf("expected idle flow to expire, got %v", err)
	}
}

func TestFlowsAreIndependent(t *testing.T) {
	r := newTestRegistry(time.Hour)
	a, b := r.Create(), r.Create()
	if a.ID == b.ID || a.Suggestions == b.Suggestions {
		t.Fatalf("flows must not share state")
	}
}

func TestFlowSelections(t *testing.T) {
	f := newTestRegistry(time.Hour).Create()

	if _, err := f.Select(nil, nil); !errors.Is(err, ErrNoContext) {
		t.Fatalf("expected ErrNoContext, got %v", err)
	}

	f.SetContext(parisContext())
	tc, err := f.Select(&types.FlightResult{Price: 480}, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	tc, _ = f.Select(nil, &types.HotelResult{Name: "Hotel Lutetia"})
	if !tc.HasSelections() {
		t.Fatalf("both selections should be set: %+v", tc)
	}

	// Re-submitting the same trip keeps the choices.
	f.SetContext(parisContext())
	if tc, _ := f.Context(); !tc.HasSelections() {
		t.Fatalf("selections dropped for an unchanged trip")
	}

	// A different trip clears them.
	changed := parisContext()
	changed.ReturnDate = changed.ReturnDate.AddDays(1)
	f.SetContext(changed)
	if tc, _ := f.Context(); tc.SelectedFlight != nil || tc.SelectedHotel != nil {
		t.Fatalf("selections kept for a different trip")
	}
}
