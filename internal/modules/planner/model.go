// README: Trip context, destination catalogue and the generated suggestion/itinerary shapes.
package planner

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"ryokou/internal/types"
)

var ErrInvalidContext = errors.New("invalid trip context")

type Destination struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Span is the map region size in degrees.
	Span float64 `json:"span"`
}

func (d Destination) Point() types.Point {
	return types.Point{Lat: d.Latitude, Lng: d.Longitude}
}

// Destinations is the built-in catalogue.
var Destinations = []Destination{
	{ID: "Paris", Name: "Paris", Latitude: 48.8566, Longitude: 2.3522, Span: 0.2},
	{ID: "NewYork", Name: "New York", Latitude: 40.7128, Longitude: -74.0060, Span: 0.22},
	{ID: "Tokyo", Name: "Tokyo", Latitude: 35.6762, Longitude: 139.6503, Span: 0.22},
}

// LookupDestination finds a catalogue entry by id or name, ignoring case.
func LookupDestination(idOrName string) (Destination, bool) {
	key := strings.TrimSpace(idOrName)
	for _, d := range Destinations {
		if strings.EqualFold(d.ID, key) || strings.EqualFold(d.Name, key) {
			return d, true
		}
	}
	return Destination{}, false
}

// TripContext is everything a generation run depends on. Two runs with equal
// contexts are the same session.
type TripContext struct {
	Origin          string              `json:"origin"`
	Destination     Destination         `json:"destination"`
	FlightBudgetUSD float64             `json:"flightBudgetUSD"`
	HotelBudgetUSD  float64             `json:"hotelBudgetUSD"`
	DepartureDate   types.Date          `json:"departureDate"`
	ReturnDate      types.Date          `json:"returnDate"`
	SelectedFlight  *types.FlightResult `json:"selectedFlight,omitempty"`
	SelectedHotel   *types.HotelResult  `json:"selectedHotel,omitempty"`
}

// DayCount is the inclusive number of calendar days of the trip, at least 1.
func (tc TripContext) DayCount() int {
	n := tc.DepartureDate.DaysUntil(tc.ReturnDate) + 1
	if n < 1 {
		return 1
	}
	return n
}

func (tc TripContext) Validate() error {
	switch {
	case strings.TrimSpace(tc.Origin) == "":
		return fmt.Errorf("%w: origin is required", ErrInvalidContext)
	case strings.TrimSpace(tc.Destination.ID) == "" || strings.TrimSpace(tc.Destination.Name) == "":
		return fmt.Errorf("%w: destination is required", ErrInvalidContext)
	case tc.FlightBudgetUSD < 0 || tc.HotelBudgetUSD < 0:
		return fmt.Errorf("%w: budgets must not be negative", ErrInvalidContext)
	case tc.DepartureDate.IsZero() || tc.ReturnDate.IsZero():
		return fmt.Errorf("%w: departure and return dates are required", ErrInvalidContext)
	case tc.ReturnDate.Before(tc.DepartureDate):
		return fmt.Errorf("%w: return date %s is before departure date %s", ErrInvalidContext, tc.ReturnDate, tc.DepartureDate)
	}
	return nil
}

// Equal reports structural equality, including the selected flight and hotel values.
func (tc TripContext) Equal(o TripContext) bool {
	return reflect.DeepEqual(tc, o)
}

// HasSelections reports whether both a flight and a hotel are chosen.
func (tc TripContext) HasSelections() bool {
	return tc.SelectedFlight != nil && tc.SelectedHotel != nil
}

// PartialFlight is a streamed FlightResult; nil fields are not generated yet.
type PartialFlight struct {
	Airline       *string  `json:"airline,omitempty"`
	FlightNumber  *string  `json:"flightNumber,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	Currency      *string  `json:"currency,omitempty"`
	DepartureTime *string  `json:"departureTime,omitempty"`
	ArrivalTime   *string  `json:"arrivalTime,omitempty"`
}

// PartialHotel is a streamed HotelResult.
type PartialHotel struct {
	Name         *string  `json:"name,omitempty"`
	MinimumPrice *float64 `json:"minimumPrice,omitempty"`
	MaximumPrice *float64 `json:"maximumPrice,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// PartialSuggestion is the stage-1 snapshot.
type PartialSuggestion struct {
	Flights []PartialFlight `json:"flights"`
	Hotels  []PartialHotel  `json:"hotels"`
}

type ActivityType string

// Known activity types. The set is open: the model may produce others.
const (
	ActivityFlight      ActivityType = "flight"
	ActivityHotel       ActivityType = "hotel"
	ActivitySightseeing ActivityType = "sightseeing"
	ActivityDining      ActivityType = "dining"
	ActivityShopping    ActivityType = "shopping"
	ActivityLodging     ActivityType = "lodging"
)

// ActivitiesPerDay is the exact number of activities in a complete day.
const ActivitiesPerDay = 4

type Activity struct {
	Type        ActivityType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
}

type DayPlan struct {
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	Destination string     `json:"destination"`
	Activities  []Activity `json:"activities"`
}

type Itinerary struct {
	Title           string    `json:"title"`
	DestinationName string    `json:"destinationName"`
	Description     string    `json:"description"`
	Rationale       string    `json:"rationale"`
	Days            []DayPlan `json:"days"`
}

type PartialActivity struct {
	Type        *ActivityType `json:"type,omitempty"`
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
}

type PartialDay struct {
	Title       *string           `json:"title,omitempty"`
	Subtitle    *string           `json:"subtitle,omitempty"`
	Destination *string           `json:"destination,omitempty"`
	Activities  []PartialActivity `json:"activities,omitempty"`
}

// PartialItinerary is the stage-2 snapshot.
type PartialItinerary struct {
	Title           *string      `json:"title,omitempty"`
	DestinationName *string      `json:"destinationName,omitempty"`
	Description     *string      `json:"description,omitempty"`
	Rationale       *string      `json:"rationale,omitempty"`
	Days            []PartialDay `json:"days,omitempty"`
}
