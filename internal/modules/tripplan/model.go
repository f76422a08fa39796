// README: Saved trip plan model, natural key and persistence errors.
package tripplan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"ryokou/internal/modules/planner"
	"ryokou/internal/types"
)

var (
	ErrNotFound    = errors.New("trip plan not found")
	ErrInvalidPlan = errors.New("invalid trip plan")
)

// Key is the natural key of a trip plan. At most one plan exists per key.
type Key struct {
	DestinationID string     `json:"destinationId"`
	DepartureDate types.Date `json:"departureDate"`
	ReturnDate    types.Date `json:"returnDate"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.DestinationID, k.DepartureDate, k.ReturnDate)
}

func (k Key) Validate() error {
	switch {
	case strings.TrimSpace(k.DestinationID) == "":
		return fmt.Errorf("%w: destination id is required", ErrInvalidPlan)
	case k.DepartureDate.IsZero() || k.ReturnDate.IsZero():
		return fmt.Errorf("%w: departure and return dates are required", ErrInvalidPlan)
	case k.ReturnDate.Before(k.DepartureDate):
		return fmt.Errorf("%w: return date %s is before departure date %s", ErrInvalidPlan, k.ReturnDate, k.DepartureDate)
	}
	return nil
}

// KeyOf derives the natural key of a trip context.
func KeyOf(tc planner.TripContext) Key {
	return Key{
		DestinationID: tc.Destination.ID,
		DepartureDate: tc.DepartureDate,
		ReturnDate:    tc.ReturnDate,
	}
}

type TripPlan struct {
	ID string `json:"id"`
	Key
	Origin          string              `json:"origin"`
	DestinationName string              `json:"destinationName"`
	Latitude        float64             `json:"latitude"`
	Longitude       float64             `json:"longitude"`
	FlightBudgetUSD float64             `json:"flightBudgetUSD"`
	HotelBudgetUSD  float64             `json:"hotelBudgetUSD"`
	IsFavorite      bool                `json:"isFavorite"`
	SelectedFlight  *types.FlightResult `json:"selectedFlight,omitempty"`
	SelectedHotel   *types.HotelResult  `json:"selectedHotel,omitempty"`
	Itinerary       planner.Itinerary   `json:"itinerary"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func (p TripPlan) Point() types.Point {
	return types.Point{Lat: p.Latitude, Lng: p.Longitude}
}

// Write is one upsert. Favorite nil keeps the stored flag (false for a new plan).
type Write struct {
	Plan     TripPlan
	Favorite *bool
}

// foldName is the case-folded form used for destination name matching.
func foldName(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
