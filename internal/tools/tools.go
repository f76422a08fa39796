// README: Search tools the model calls for flights, hotels, restaurants and shopping.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"ryokou/internal/ai"
)

var (
	// ErrProvider covers transport failures, non-200 responses and undecodable payloads.
	ErrProvider = errors.New("tool provider error")
	// ErrEmpty is returned when a provider answers with no usable items.
	ErrEmpty = errors.New("tool provider returned no results")
	// ErrInvalidArguments is returned when the model's arguments cannot be used.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

const (
	NameSearchFlights     = "searchFlights"
	NameSearchHotels      = "searchHotels"
	NameSearchRestaurants = "searchRestaurants"
	NameSearchShopping    = "searchShopping"
)

// Set groups the four search tools.
type Set struct {
	Flights     *FlightSearch
	Hotels      *HotelSearch
	Restaurants *PlaceSearch
	Shopping    *PlaceSearch
}

// Config holds provider credentials and endpoints.
type Config struct {
	FlightAPIKey     string
	FlightAPIBaseURL string
	XoteloBaseURL    string
	GeoapifyKey      string
	GeoapifyBaseURL  string
}

// NewSet wires all four tools to one HTTP client. locator may be nil.
func NewSet(cfg Config, client *Client, locator Locator) *Set {
	return &Set{
		Flights:     NewFlightSearch(client, cfg.FlightAPIBaseURL, cfg.FlightAPIKey),
		Hotels:      NewHotelSearch(client, cfg.XoteloBaseURL, locator),
		Restaurants: NewRestaurantSearch(client, cfg.GeoapifyBaseURL, cfg.GeoapifyKey),
		Shopping:    NewShoppingSearch(client, cfg.GeoapifyBaseURL, cfg.GeoapifyKey),
	}
}

// Suggestion returns the tools available while proposing flights and hotels.
func (s *Set) Suggestion() []ai.Tool {
	return []ai.Tool{s.Flights, s.Hotels}
}

// All returns every search tool.
func (s *Set) All() []ai.Tool {
	return []ai.Tool{s.Flights, s.Hotels, s.Restaurants, s.Shopping}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
