package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"ryokou/internal/ai"
	"ryokou/internal/types"
)

const (
	DefaultGeoapifyBaseURL = "https://api.geoapify.com"
	defaultPlaceRadius     = 5000.0
	defaultPlaceLimit      = 10

	categoryRestaurant   = "catering.restaurant"
	categoryShoppingMall = "commercial.shopping_mall"
)

// PlaceSearchArgs are the model-supplied arguments of searchRestaurants and searchShopping.
type PlaceSearchArgs struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Radius    *float64 `json:"radius,omitempty"`
	Limit     *int     `json:"limit,omitempty"`
}

// PlaceResult is a named point of interest near the search centre.
type PlaceResult struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Distance  *float64 `json:"distance,omitempty"`
}

// PlaceSearch queries Geoapify Places for one category inside a circle.
type PlaceSearch struct {
	client      *Client
	baseURL     string
	apiKey      string
	name        string
	description string
	category    string
}

func NewRestaurantSearch(client *Client, baseURL, apiKey string) *PlaceSearch {
	return newPlaceSearch(client, baseURL, apiKey, NameSearchRestaurants,
		"Finds nearby restaurants around a coordinate using the Geoapify Places API.", categoryRestaurant)
}

func NewShoppingSearch(client *Client, baseURL, apiKey string) *PlaceSearch {
	return newPlaceSearch(client, baseURL, apiKey, NameSearchShopping,
		"Finds nearby shopping malls around a coordinate using the Geoapify Places API.", categoryShoppingMall)
}

func newPlaceSearch(client *Client, baseURL, apiKey, name, description, category string) *PlaceSearch {
	if baseURL == "" {
		baseURL = DefaultGeoapifyBaseURL
	}
	return &PlaceSearch{
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		name:        name,
		description: description,
		category:    category,
	}
}

func (t *PlaceSearch) Name() string        { return t.name }
func (t *PlaceSearch) Description() string { return t.description }

func (t *PlaceSearch) Parameters() *ai.Schema {
	return &ai.Schema{
		Type: ai.TypeObject,
		Properties: map[string]*ai.Schema{
			"latitude":  {Type: ai.TypeNumber, Description: "Latitude of the search centre."},
			"longitude": {Type: ai.TypeNumber, Description: "Longitude of the search centre."},
			"radius":    {Type: ai.TypeNumber, Description: "Search radius in metres. Defaults to 5000.", Nullable: true},
			"limit":     {Type: ai.TypeInteger, Description: "Maximum number of results. Defaults to 10.", Nullable: true},
		},
		Required: []string{"latitude", "longitude"},
	}
}

func (t *PlaceSearch) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args PlaceSearchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return t.Search(ctx, args)
}

type geoapifyResponse struct {
	Features []geoapifyFeature `json:"features"`
}

type geoapifyFeature struct {
	Properties geoapifyPlace `json:"properties"`
}

type geoapifyPlace struct {
	Name         *string  `json:"name"`
	AddressLine1 *string  `json:"address_line1"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	Distance     *float64 `json:"distance"`
}

// Search returns places with both a name and an address. Provider failures are
// returned as errors; an empty list is a valid answer.
func (t *PlaceSearch) Search(ctx context.Context, args PlaceSearchArgs) ([]PlaceResult, error) {
	radius := lo.FromPtrOr(args.Radius, defaultPlaceRadius)
	if radius <= 0 {
		radius = defaultPlaceRadius
	}
	limit := lo.FromPtrOr(args.Limit, defaultPlaceLimit)
	if limit <= 0 {
		limit = defaultPlaceLimit
	}

	q := url.Values{
		"categories": {t.category},
		"filter":     {"circle:" + formatFloat(args.Longitude) + "," + formatFloat(args.Latitude) + "," + formatFloat(radius)},
		"limit":      {strconv.Itoa(limit)},
		"apiKey":     {t.apiKey},
	}
	var resp geoapifyResponse
	if err := t.client.getJSON(ctx, t.baseURL+"/v2/places?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}

	centre := types.Point{Lat: args.Latitude, Lng: args.Longitude}
	results := lo.FilterMap(resp.Features, func(f geoapifyFeature, _ int) (PlaceResult, bool) {
		return toPlaceResult(f.Properties, centre)
	})
	return results, nil
}

func toPlaceResult(p geoapifyPlace, centre types.Point) (PlaceResult, bool) {
	if p.Name == nil || *p.Name == "" || p.AddressLine1 == nil || *p.AddressLine1 == "" {
		return PlaceResult{}, false
	}
	distance := p.Distance
	if distance == nil {
		distance = lo.ToPtr(centre.DistanceMeters(types.Point{Lat: p.Lat, Lng: p.Lon}))
	}
	return PlaceResult{
		Name:      *p.Name,
		Address:   *p.AddressLine1,
		Latitude:  p.Lat,
		Longitude: p.Lon,
		Distance:  distance,
	}, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
