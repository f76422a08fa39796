// README: Google Places text search used to geocode hotels the hotel provider cannot place.
package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"ryokou/internal/types"
)

// ErrNoResults is returned when the text search matches nothing.
var ErrNoResults = errors.New("places: no results")

// PlacesService handles interactions with Google Places API.
type PlacesService struct {
	client *maps.Client
}

// NewPlacesService creates a new PlacesService with the given API Key.
// Extra client options (e.g. maps.WithBaseURL in tests) are applied after the key.
func NewPlacesService(apiKey string, opts ...maps.ClientOption) (*PlacesService, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &PlacesService{client: client}, nil
}

// Locate returns the position of the best text-search match for query
// (e.g. "Hotel Lutetia, Paris").
func (s *PlacesService) Locate(ctx context.Context, query string) (types.Point, error) {
	resp, err := s.client.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    query,
		Language: "en",
	})
	if err != nil {
		return types.Point{}, fmt.Errorf("places api error: %w", err)
	}
	if len(resp.Results) == 0 {
		return types.Point{}, ErrNoResults
	}

	loc := resp.Results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
