package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"ryokou/internal/ai"
	"ryokou/internal/types"
)

const (
	DefaultXoteloBaseURL = "https://data.xotelo.com/api"
	defaultHotelLimit    = 5
	hotelLookupWorkers   = 4
)

// Locator geocodes a free-text place query.
type Locator interface {
	Locate(ctx context.Context, query string) (types.Point, error)
}

// HotelSearchArgs are the model-supplied arguments of searchHotels.
type HotelSearchArgs struct {
	Query    string   `json:"query"`
	CheckIn  string   `json:"checkIn"`
	CheckOut string   `json:"checkOut"`
	Limit    *int     `json:"limit,omitempty"`
	MaxPrice *float64 `json:"maxPrice,omitempty"`
}

// HotelSearch queries the Xotelo hotel price API.
type HotelSearch struct {
	client  *Client
	baseURL string
	locator Locator
}

func NewHotelSearch(client *Client, baseURL string, locator Locator) *HotelSearch {
	if baseURL == "" {
		baseURL = DefaultXoteloBaseURL
	}
	return &HotelSearch{client: client, baseURL: strings.TrimRight(baseURL, "/"), locator: locator}
}

func (t *HotelSearch) Name() string { return NameSearchHotels }

func (t *HotelSearch) Description() string {
	return "Searches for hotels in a city using the Xotelo free hotel prices API and returns nightly price ranges."
}

func (t *HotelSearch) Parameters() *ai.Schema {
	return &ai.Schema{
		Type: ai.TypeObject,
		Properties: map[string]*ai.Schema{
			"query":    {Type: ai.TypeString, Description: "City or location name, e.g. Paris."},
			"checkIn":  {Type: ai.TypeString, Description: "Check-in date, YYYY-MM-DD."},
			"checkOut": {Type: ai.TypeString, Description: "Check-out date, YYYY-MM-DD."},
			"limit":    {Type: ai.TypeInteger, Description: "Maximum number of hotels. Defaults to 5.", Nullable: true},
			"maxPrice": {Type: ai.TypeNumber, Description: "Maximum nightly price.", Nullable: true},
		},
		Required: []string{"query", "checkIn", "checkOut"},
	}
}

func (t *HotelSearch) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args HotelSearchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return t.Search(ctx, args)
}

type xoteloHotel struct {
	Name        string `json:"name"`
	HotelKey    string `json:"hotel_key"`
	LocationKey string `json:"location_key"`
}

type xoteloSearchResponse struct {
	Error  *xoteloError `json:"error"`
	Result *struct {
		List []xoteloHotel `json:"list"`
	} `json:"result"`
}

type xoteloRatesResponse struct {
	Error  *xoteloError `json:"error"`
	Result *struct {
		Rates []xoteloRate `json:"rates"`
	} `json:"result"`
}

type xoteloRate struct {
	Code string  `json:"code"`
	Name string  `json:"name"`
	Rate float64 `json:"rate"`
}

type xoteloListResponse struct {
	Error  *xoteloError `json:"error"`
	Result *struct {
		List []struct {
			Key string `json:"key"`
			Geo *struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"geo"`
		} `json:"list"`
	} `json:"result"`
}

type xoteloError struct {
	Message string `json:"message"`
}

func (r *xoteloSearchResponse) failed() bool { return r.Error != nil || r.Result == nil }
func (r *xoteloRatesResponse) failed() bool  { return r.Error != nil || r.Result == nil }
func (r *xoteloListResponse) failed() bool   { return r.Error != nil || r.Result == nil }

// candidate pairs a provider hotel with its result; a nil result means the
// hotel was excluded by the budget.
type candidate struct {
	hotel  xoteloHotel
	result *types.HotelResult
}

// Search looks up hotels, their nightly rates and their coordinates. Only the
// initial search can fail the call; rate and geo lookups degrade per hotel.
func (t *HotelSearch) Search(ctx context.Context, args HotelSearchArgs) ([]types.HotelResult, error) {
	limit := defaultHotelLimit
	if args.Limit != nil && *args.Limit > 0 {
		limit = *args.Limit
	}

	var search xoteloSearchResponse
	if err := t.client.getJSON(ctx, t.baseURL+"/search?"+url.Values{"query": {args.Query}}.Encode(), &search); err != nil {
		return nil, fmt.Errorf("hotel search: %w", err)
	}
	if search.Error != nil || search.Result == nil {
		return nil, fmt.Errorf("hotel search: %w: %s", ErrProvider, providerMessage(search.Error))
	}

	hotels := lo.Slice(search.Result.List, 0, limit)
	candidates := make([]candidate, len(hotels))

	var g errgroup.Group
	g.SetLimit(hotelLookupWorkers)
	for i, h := range hotels {
		g.Go(func() error {
			candidates[i] = candidate{hotel: h, result: t.rate(ctx, h, args)}
			return nil
		})
	}
	_ = g.Wait()

	kept := lo.Filter(candidates, func(c candidate, _ int) bool { return c.result != nil })
	t.locate(ctx, args.Query, kept)

	return lo.Map(kept, func(c candidate, _ int) types.HotelResult { return *c.result }), nil
}

// rate returns the hotel with its nightly price range, the hotel with name only
// when rates are unavailable, or nil when the cheapest rate is over budget.
func (t *HotelSearch) rate(ctx context.Context, h xoteloHotel, args HotelSearchArgs) *types.HotelResult {
	result := &types.HotelResult{Name: h.Name}

	q := url.Values{"hotel_key": {h.HotelKey}, "chk_in": {args.CheckIn}, "chk_out": {args.CheckOut}}
	var resp xoteloRatesResponse
	if err := t.client.getJSON(ctx, t.baseURL+"/rates?"+q.Encode(), &resp); err != nil {
		slog.Debug("hotel rate lookup failed", "hotel", h.Name, "error", err)
		return result
	}
	if resp.Error != nil || resp.Result == nil {
		slog.Debug("hotel rate lookup failed", "hotel", h.Name, "error", providerMessage(resp.Error))
		return result
	}

	rates := lo.Map(resp.Result.Rates, func(r xoteloRate, _ int) float64 { return r.Rate })
	if len(rates) > 0 {
		result.MinimumPrice = lo.ToPtr(lo.Min(rates))
		result.MaximumPrice = lo.ToPtr(lo.Max(rates))
	}

	if args.MaxPrice != nil && lo.FromPtrOr(result.MinimumPrice, 0) > *args.MaxPrice {
		return nil
	}
	return result
}

// locate fills coordinates from the provider's location listings, then from
// the Locator for hotels the listings do not cover. Failures leave geo unset.
func (t *HotelSearch) locate(ctx context.Context, query string, hotels []candidate) {
	var (
		mu     sync.Mutex
		points = make(map[string]types.Point)
		g      errgroup.Group
	)
	g.SetLimit(hotelLookupWorkers)

	locations := lo.Uniq(lo.FilterMap(hotels, func(c candidate, _ int) (string, bool) {
		return c.hotel.LocationKey, c.hotel.LocationKey != ""
	}))
	for _, key := range locations {
		g.Go(func() error {
			var resp xoteloListResponse
			err := t.client.getJSON(ctx, t.baseURL+"/list?"+url.Values{"location_key": {key}}.Encode(), &resp)
			if err != nil || resp.Result == nil {
				slog.Debug("hotel location listing failed", "location_key", key, "error", err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, item := range resp.Result.List {
				if item.Geo != nil {
					points[item.Key] = types.Point{Lat: item.Geo.Latitude, Lng: item.Geo.Longitude}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := range hotels {
		c := &hotels[i]
		p, ok := points[c.hotel.HotelKey]
		if !ok && t.locator != nil {
			g.Go(func() error {
				p, err := t.locator.Locate(ctx, c.hotel.Name+", "+query)
				if err != nil {
					slog.Debug("hotel geocode failed", "hotel", c.hotel.Name, "error", err)
					return nil
				}
				c.result.Latitude, c.result.Longitude = lo.ToPtr(p.Lat), lo.ToPtr(p.Lng)
				return nil
			})
			continue
		}
		if ok {
			c.result.Latitude, c.result.Longitude = lo.ToPtr(p.Lat), lo.ToPtr(p.Lng)
		}
	}
	_ = g.Wait()
}

func providerMessage(e *xoteloError) string {
	if e == nil || e.Message == "" {
		return "empty result"
	}
	return e.Message
}
