// README: Flight and hotel search results shared by tools, planner and trip plans.
package types

// FlightResult is one flight option. Times are provider-native strings.
type FlightResult struct {
	Airline       *string `json:"airline,omitempty"`
	FlightNumber  *string `json:"flightNumber,omitempty"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency,omitempty"`
	DepartureTime string  `json:"departureTime"`
	ArrivalTime   string  `json:"arrivalTime"`
}

// HotelResult is one hotel option with an optional nightly price range and location.
type HotelResult struct {
	Name         string   `json:"name"`
	MinimumPrice *float64 `json:"minimumPrice,omitempty"`
	MaximumPrice *float64 `json:"maximumPrice,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// Location returns the hotel position when both coordinates are known.
func (h HotelResult) Location() (Point, bool) {
	if h.Latitude == nil || h.Longitude == nil {
		return Point{}, false
	}
	return Point{Lat: *h.Latitude, Lng: *h.Longitude}, true
}
