// README: Trip plan service: save confirmed itineraries, favorites, queries and calendar export.
package tripplan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ryokou/internal/modules/planner"
	"ryokou/internal/types"
)

type Service struct {
	repo     Repository
	timezone TimezoneFinder
	now      func() time.Time
}

// NewService wires a repository. timezone may be nil; calendar days then use UTC.
func NewService(repo Repository, timezone TimezoneFinder) *Service {
	return &Service{repo: repo, timezone: timezone, now: time.Now}
}

// UpsertCommand saves a confirmed itinerary. Flight and Hotel default to the
// context's selections; Favorite nil keeps the stored flag.
type UpsertCommand struct {
	Context   planner.TripContext
	Flight    *types.FlightResult
	Hotel     *types.HotelResult
	Itinerary planner.Itinerary
	Favorite  *bool
}

func (s *Service) Upsert(ctx context.Context, cmd UpsertCommand) (*TripPlan, error) {
	tc := cmd.Context
	if err := tc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if got, want := len(cmd.Itinerary.Days), tc.DayCount(); got != want {
		return nil, fmt.Errorf("%w: itinerary has %d days, trip has %d", ErrInvalidPlan, got, want)
	}

	flight := cmd.Flight
	if flight == nil {
		flight = tc.SelectedFlight
	}
	hotel := cmd.Hotel
	if hotel == nil {
		hotel = tc.SelectedHotel
	}

	plan := TripPlan{
		ID:              uuid.NewString(),
		Key:             KeyOf(tc),
		Origin:          tc.Origin,
		DestinationName: tc.Destination.Name,
		Latitude:        tc.Destination.Latitude,
		Longitude:       tc.Destination.Longitude,
		FlightBudgetUSD: tc.FlightBudgetUSD,
		HotelBudgetUSD:  tc.HotelBudgetUSD,
		SelectedFlight:  flight,
		SelectedHotel:   hotel,
		Itinerary:       cmd.Itinerary,
		UpdatedAt:       s.now().UTC(),
	}
	stored, err := s.repo.Upsert(ctx, Write{Plan: plan, Favorite: cmd.Favorite})
	if err != nil {
		return nil, fmt.Errorf("save trip plan %s: %w", plan.Key, err)
	}
	slog.Info("trip plan saved", "key", stored.Key.String(), "id", stored.ID, "created", stored.CreatedAt.Equal(stored.UpdatedAt))
	return stored, nil
}

func (s *Service) MarkFavorite(ctx context.Context, key Key, favorite bool) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return s.repo.SetFavorite(ctx, key, favorite)
}

func (s *Service) Get(ctx context.Context, key Key) (*TripPlan, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, key)
}

func (s *Service) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	return s.repo.Delete(ctx, key)
}

// Query returns plans whose destination name contains filter, compared with
// Unicode case folding, ordered by departure date descending.
func (s *Service) Query(ctx context.Context, filter string) ([]TripPlan, error) {
	plans, err := s.repo.Search(ctx, foldName(filter))
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []TripPlan{}
	}
	return plans, nil
}

// ExportCalendar renders the plans matching filter as an iCalendar document.
func (s *Service) ExportCalendar(ctx context.Context, filter string) (string, error) {
	plans, err := s.Query(ctx, filter)
	if err != nil {
		return "", err
	}
	return BuildCalendar(plans, s.timezone, s.now().UTC()), nil
}
