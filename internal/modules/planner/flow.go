package planner

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"ryokou/internal/ai"
	"ryokou/internal/types"
)

var (
	ErrFlowNotFound = errors.New("planning flow not found")
	ErrNoContext    = errors.New("planning flow has no trip context")
)

const DefaultFlowTTL = 2 * time.Hour

// Flow is one user's planning session: a trip context and the orchestrators of both stages.
type Flow struct {
	ID          string
	Suggestions *Orchestrator[PartialSuggestion]
	Itinerary   *Orchestrator[PartialItinerary]

	mu      sync.Mutex
	context *TripContext
}

// Context returns a copy of the flow's current trip context.
func (f *Flow) Context() (TripContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.context == nil {
		return TripContext{}, ErrNoContext
	}
	return *f.context, nil
}

// SetContext replaces the trip context. Selections are kept only if the
// trip itself (everything but the selections) is unchanged.
func (f *Flow) SetContext(tc TripContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.context != nil && tc.SelectedFlight == nil && tc.SelectedHotel == nil {
		prev := *f.context
		prev.SelectedFlight, prev.SelectedHotel = nil, nil
		if prev.Equal(tc) {
			tc.SelectedFlight, tc.SelectedHotel = f.context.SelectedFlight, f.context.SelectedHotel
		}
	}
	f.context = &tc
}

// Select records the chosen flight and hotel. A nil argument leaves that choice unchanged.
func (f *Flow) Select(flight *types.FlightResult, hotel *types.HotelResult) (TripContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.context == nil {
		return TripContext{}, ErrNoContext
	}
	tc := *f.context
	if flight != nil {
		fc := *flight
		tc.SelectedFlight = &fc
	}
	if hotel != nil {
		hc := *hotel
		tc.SelectedHotel = &hc
	}
	f.context = &tc
	return tc, nil
}

// Close cancels any live generation of the flow.
func (f *Flow) Close() {
	f.Suggestions.Cancel()
	f.Itinerary.Cancel()
}

// Registry keeps flows in memory and evicts them after a period of inactivity.
type Registry struct {
	backend   ai.Backend
	suggest   Stage[PartialSuggestion]
	itinerary Stage[PartialItinerary]
	opts      Options
	flows     *gocache.Cache
}

func NewRegistry(backend ai.Backend, suggest Stage[PartialSuggestion], itinerary Stage[PartialItinerary], opts Options, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultFlowTTL
	}
	flows := gocache.New(ttl, ttl/4)
	flows.OnEvicted(func(_ string, v interface{}) {
		if f, ok := v.(*Flow); ok {
			f.Close()
		}
	})
	return &Registry{backend: backend, suggest: suggest, itinerary: itinerary, opts: opts, flows: flows}
}

// Create starts a new flow with its own pair of orchestrators.
func (r *Registry) Create() *Flow {
	f := &Flow{
		ID:          uuid.NewString(),
		Suggestions: NewOrchestrator(r.backend, r.suggest, r.opts),
		Itinerary:   NewOrchestrator(r.backend, r.itinerary, r.opts),
	}
	r.flows.SetDefault(f.ID, f)
	return f
}

// Get returns the flow and extends its lifetime.
func (r *Registry) Get(id string) (*Flow, error) {
	v, ok := r.flows.Get(id)
	if !ok {
		return nil, ErrFlowNotFound
	}
	f := v.(*Flow)
	r.flows.SetDefault(id, f)
	return f, nil
}

// Delete removes the flow and cancels its live runs.
func (r *Registry) Delete(id string) {
	r.flows.Delete(id)
}
