// README: TripPlanner ties planning flows, the itinerary reconciler and the trip plan store together.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ryokou/internal/modules/planner"
	"ryokou/internal/modules/tripplan"
	"ryokou/internal/types"
)

// ErrItineraryPending is returned by Confirm while the itinerary is not concrete yet.
var ErrItineraryPending = errors.New("itinerary is still being generated")

// DefaultPrewarmTimeout bounds the best-effort prewarm requests.
const DefaultPrewarmTimeout = 10 * time.Second

// ItineraryView is the itinerary stage as a client renders it: run state plus
// the reconciled itinerary once complete.
type ItineraryView struct {
	Phase      planner.Phase        `json:"phase"`
	Context    *planner.TripContext `json:"context,omitempty"`
	Error      string               `json:"error,omitempty"`
	Generation uint64               `json:"generation"`
	planner.View
}

func itineraryView(st planner.State[planner.PartialItinerary]) ItineraryView {
	dayCount := 1
	if st.Context != nil {
		dayCount = st.Context.DayCount()
	}
	return ItineraryView{
		Phase:      st.Phase,
		Context:    st.Context,
		Error:      st.Error,
		Generation: st.Generation,
		View:       planner.NewReconciler(dayCount).ObserveState(st),
	}
}

type TripPlanner struct {
	flows          *planner.Registry
	trips          *tripplan.Service
	prewarmTimeout time.Duration
}

func NewTripPlanner(flows *planner.Registry, trips *tripplan.Service) *TripPlanner {
	return &TripPlanner{flows: flows, trips: trips, prewarmTimeout: DefaultPrewarmTimeout}
}

// Trips exposes the saved trip operations.
func (p *TripPlanner) Trips() *tripplan.Service {
	return p.trips
}

// CreateFlow opens a planning flow. When tc is given it becomes the flow's
// context and the suggestion stage is prewarmed in the background.
func (p *TripPlanner) CreateFlow(tc *planner.TripContext) (*planner.Flow, error) {
	if tc != nil {
		if err := tc.Validate(); err != nil {
			return nil, err
		}
	}
	f := p.flows.Create()
	if tc != nil {
		f.SetContext(*tc)
		p.prewarm(f.ID, "suggestions", func(ctx context.Context) error {
			return f.Suggestions.Prewarm(ctx, *tc)
		})
	}
	slog.Info("planning flow created", "flow", f.ID)
	return f, nil
}

func (p *TripPlanner) DeleteFlow(flowID string) {
	p.flows.Delete(flowID)
}

// StartSuggestions sets the flow's context and starts the suggestion stage.
// Starting again with an equal context does not restart generation.
func (p *TripPlanner) StartSuggestions(ctx context.Context, flowID string, tc planner.TripContext) (planner.State[planner.PartialSuggestion], error) {
	f, err := p.flows.Get(flowID)
	if err != nil {
		return planner.State[planner.PartialSuggestion]{}, err
	}
	if err := tc.Validate(); err != nil {
		return planner.State[planner.PartialSuggestion]{}, err
	}
	f.SetContext(tc)
	current, err := f.Context()
	if err != nil {
		return planner.State[planner.PartialSuggestion]{}, err
	}
	// Selections are not part of the suggestion request.
	current.SelectedFlight, current.SelectedHotel = nil, nil
	if err := f.Suggestions.Start(ctx, current); err != nil {
		return f.Suggestions.State(), err
	}
	return f.Suggestions.State(), nil
}

func (p *TripPlanner) Suggestions(flowID string) (planner.State[planner.PartialSuggestion], error) {
	f, err := p.flows.Get(flowID)
	if err != nil {
		return planner.State[planner.PartialSuggestion]{}, err
	}
	return f.Suggestions.State(), nil
}

// Select records the chosen flight and hotel and prewarms the itinerary stage.
func (p *TripPlanner) Select(flowID string, flight *types.FlightResult, hotel *types.HotelResult) (planner.TripContext, error) {
	f, err := p.flows.Get(flowID)
	if err != nil {
		return planner.TripContext{}, err
	}
	tc, err := f.Select(flight, hotel)
	if err != nil {
		return planner.TripContext{}, err
	}
	p.prewarm(f.ID, "itinerary", func(ctx context.Context) error {
		return f.Itinerary.Prewarm(ctx, tc)
	})
	return tc, nil
}

// StartItinerary starts the itinerary stage for the flow's current context.
func (p *TripPlanner) StartItinerary(ctx context.Context, flowID string) (ItineraryView, error) {
	f, err := p.flows.Get(flowID)
	if err != nil {
		return ItineraryView{}, err
	}
	tc, err := f.Context()
	if err != nil {
		return ItineraryView{}, err
	}
	if err := f.Itinerary.Start(ctx, tc); err != nil {
		return itineraryView(f.Itinerary.State()), err
	}
	return itineraryView(f.Itinerary.State()), nil
}

func (p *TripPlanner) Itinerary(flowID string) (ItineraryView, error) {
	f, err := p.flows.Get(flowID)
	if err != nil {
		return ItineraryView{}, err
	}
	return itineraryView(f.Itinerary.State()), nil
}

// WatchItinerary streams itinerary views latest-wins until stop is called.
func (p *TripPlanner) WatchItinerary(flowID string) (<-chan ItineraryView, func(), error) {
	f, err := p.flows.Get(flowID)
	if err != nil {
		return nil, nil, err
	}
	states, unsubscribe := f.Itinerary.Subscribe()
	views := make(chan ItineraryView, 1)
	quit := make(chan struct{})
	go func() {
		defer close(views)
		for {
			select {
			case st := <-states:
				select {
				case views <- itineraryView(st):
				case <-quit:
					return
				}
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	return views, func() {
		once.Do(func() {
			unsubscribe()
			close(quit)
		})
	}, nil
}

// Confirm saves the flow's concrete itinerary. It fails with ErrItineraryPending
// until the itinerary run has succeeded with a complete itinerary.
func (p *TripPlanner) Confirm(ctx context.Context, flowID string, favorite *bool) (*tripplan.TripPlan, error) {
	f, err := p.flows.Get(flowID)
	if err != nil {
		return nil, err
	}
	st := f.Itinerary.State()
	if st.Context == nil {
		return nil, ErrItineraryPending
	}
	view := itineraryView(st)
	if !view.Complete {
		return nil, fmt.Errorf("%w (phase %s)", ErrItineraryPending, st.Phase)
	}
	return p.trips.Upsert(ctx, tripplan.UpsertCommand{
		Context:   *st.Context,
		Itinerary: *view.Itinerary,
		Favorite:  favorite,
	})
}

func (p *TripPlanner) prewarm(flowID, stage string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.prewarmTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Debug("prewarm skipped", "flow", flowID, "stage", stage, "error", err)
		}
	}()
}
