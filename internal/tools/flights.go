package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"ryokou/internal/ai"
	"ryokou/internal/types"
)

const (
	DefaultFlightAPIBaseURL = "https://api.flightapi.io"
	defaultCurrency         = "USD"
	cabinClass              = "Economy"
)

// FlightSearchArgs are the model-supplied arguments of searchFlights.
type FlightSearchArgs struct {
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	DepartureDate string   `json:"departureDate"`
	ReturnDate    string   `json:"returnDate,omitempty"`
	Adults        int      `json:"adults"`
	Currency      string   `json:"currency,omitempty"`
	Market        string   `json:"market,omitempty"`
	Locale        string   `json:"locale,omitempty"`
	MaxPrice      *float64 `json:"maxPrice,omitempty"`
}

// FlightSearch queries FlightAPI.io. Provider failures never reach the model:
// they are logged and replaced by a fixed set of placeholder flights.
type FlightSearch struct {
	client  *Client
	baseURL string
	apiKey  string
}

func NewFlightSearch(client *Client, baseURL, apiKey string) *FlightSearch {
	if baseURL == "" {
		baseURL = DefaultFlightAPIBaseURL
	}
	return &FlightSearch{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (t *FlightSearch) Name() string { return NameSearchFlights }

func (t *FlightSearch) Description() string {
	return "Searches for flights between an origin and destination using the FlightAPI.io Flight Price API."
}

func (t *FlightSearch) Parameters() *ai.Schema {
	return &ai.Schema{
		Type: ai.TypeObject,
		Properties: map[string]*ai.Schema{
			"origin":        {Type: ai.TypeString, Description: "IATA code of the origin airport or city, e.g. LAX."},
			"destination":   {Type: ai.TypeString, Description: "IATA code of the destination airport or city, e.g. JFK."},
			"departureDate": {Type: ai.TypeString, Description: "Departure date, YYYY-MM-DD."},
			"returnDate":    {Type: ai.TypeString, Description: "Return date, YYYY-MM-DD. Omit for one-way.", Nullable: true},
			"adults":        {Type: ai.TypeInteger, Description: "Number of adult passengers."},
			"currency":      {Type: ai.TypeString, Description: "ISO 4217 currency code. Defaults to USD.", Nullable: true},
			"market":        {Type: ai.TypeString, Description: "Market the search originates from, e.g. US.", Nullable: true},
			"locale":        {Type: ai.TypeString, Description: "Result language, e.g. en-US.", Nullable: true},
			"maxPrice":      {Type: ai.TypeNumber, Description: "Maximum total price of the itinerary.", Nullable: true},
		},
		Required: []string{"origin", "destination", "departureDate", "adults"},
	}
}

func (t *FlightSearch) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args FlightSearchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return t.Search(ctx, args)
}

// Search returns flights within args.MaxPrice, or the placeholder set when the
// provider fails or nothing survives the budget filter.
func (t *FlightSearch) Search(ctx context.Context, args FlightSearchArgs) ([]types.FlightResult, error) {
	departure, err := types.ParseDate(args.DepartureDate)
	if err != nil {
		return nil, fmt.Errorf("%w: departureDate: %v", ErrInvalidArguments, err)
	}
	if args.Currency == "" {
		args.Currency = defaultCurrency
	}
	if args.Adults <= 0 {
		args.Adults = 1
	}

	results, err := t.search(ctx, args)
	if err != nil {
		slog.Warn("flight search failed, using placeholder flights",
			"origin", args.Origin, "destination", args.Destination,
			"error", t.redact(err))
		return FallbackFlights(departure, args.Currency), nil
	}
	return results, nil
}

func (t *FlightSearch) search(ctx context.Context, args FlightSearchArgs) ([]types.FlightResult, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("%w: flight api key not configured", ErrProvider)
	}

	var resp flightAPIResponse
	if err := t.client.getJSON(ctx, t.requestURL(args), &resp); err != nil {
		return nil, err
	}
	if len(resp.Itineraries) == 0 {
		return nil, fmt.Errorf("%w: no itineraries", ErrEmpty)
	}

	results := resp.results(args)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no itinerary within budget", ErrEmpty)
	}
	return results, nil
}

// redact hides the API key, which FlightAPI.io takes as a path segment.
func (t *FlightSearch) redact(err error) string {
	if t.apiKey == "" {
		return err.Error()
	}
	return strings.ReplaceAll(err.Error(), url.PathEscape(t.apiKey), "***")
}

func (t *FlightSearch) requestURL(args FlightSearchArgs) string {
	segments := []string{"onewaytrip", t.apiKey, args.Origin, args.Destination, args.DepartureDate}
	if args.ReturnDate != "" {
		segments = []string{"roundtrip", t.apiKey, args.Origin, args.Destination, args.DepartureDate, args.ReturnDate}
	}
	segments = append(segments, strconv.Itoa(args.Adults), "0", "0", cabinClass, args.Currency)
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return t.baseURL + "/" + strings.Join(segments, "/")
}

// providerID accepts ids encoded either as JSON strings or numbers.
type providerID string

func (id *providerID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = providerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = providerID(n.String())
	return nil
}

type flightAPIResponse struct {
	Itineraries []flightItinerary `json:"itineraries"`
	Legs        []flightLeg       `json:"legs"`
	Segments    []flightSegment   `json:"segments"`
	Carriers    []flightCarrier   `json:"carriers"`
}

type flightItinerary struct {
	ID             providerID   `json:"id"`
	LegIDs         []providerID `json:"leg_ids"`
	PricingOptions []struct {
		Price struct {
			Amount float64 `json:"amount"`
		} `json:"price"`
	} `json:"pricing_options"`
}

type flightLeg struct {
	ID                  providerID   `json:"id"`
	Departure           string       `json:"departure"`
	Arrival             string       `json:"arrival"`
	SegmentIDs          []providerID `json:"segment_ids"`
	MarketingCarrierIDs []providerID `json:"marketing_carrier_ids"`
}

type flightSegment struct {
	ID                    providerID `json:"id"`
	MarketingCarrierID    providerID `json:"marketing_carrier_id"`
	MarketingFlightNumber string     `json:"marketing_flight_number"`
}

type flightCarrier struct {
	ID          providerID `json:"id"`
	Name        string     `json:"name"`
	DisplayCode string     `json:"display_code"`
}

func (r flightAPIResponse) results(args FlightSearchArgs) []types.FlightResult {
	legs := lo.KeyBy(r.Legs, func(l flightLeg) providerID { return l.ID })
	segments := lo.KeyBy(r.Segments, func(s flightSegment) providerID { return s.ID })
	carriers := lo.KeyBy(r.Carriers, func(c flightCarrier) providerID { return c.ID })

	results := make([]types.FlightResult, 0, len(r.Itineraries))
	for _, it := range r.Itineraries {
		if len(it.PricingOptions) == 0 {
			continue
		}
		price := it.PricingOptions[0].Price.Amount
		if args.MaxPrice != nil && price > *args.MaxPrice {
			continue
		}

		res := types.FlightResult{Price: price, Currency: args.Currency}
		if len(it.LegIDs) > 0 {
			if leg, ok := legs[it.LegIDs[0]]; ok {
				res.DepartureTime = leg.Departure
				res.ArrivalTime = leg.Arrival
				res.Airline, res.FlightNumber = carrierInfo(leg, segments, carriers)
			}
		}
		results = append(results, res)
	}
	return results
}

// carrierInfo extracts the airline name and flight number from the leg's first
// segment, falling back to the leg's marketing carrier. Unknown values stay nil.
func carrierInfo(leg flightLeg, segments map[providerID]flightSegment, carriers map[providerID]flightCarrier) (airline, number *string) {
	if len(leg.SegmentIDs) > 0 {
		if seg, ok := segments[leg.SegmentIDs[0]]; ok {
			carrier, known := carriers[seg.MarketingCarrierID]
			if known && carrier.Name != "" {
				airline = lo.ToPtr(carrier.Name)
			}
			if seg.MarketingFlightNumber != "" {
				code := strings.TrimSpace(carrier.DisplayCode + " " + seg.MarketingFlightNumber)
				number = lo.ToPtr(code)
			}
		}
	}
	if airline == nil && len(leg.MarketingCarrierIDs) > 0 {
		if carrier, ok := carriers[leg.MarketingCarrierIDs[0]]; ok && carrier.Name != "" {
			airline = lo.ToPtr(carrier.Name)
		}
	}
	return airline, number
}

type placeholderFlight struct {
	airline, number string
	price           float64
	depart, arrive  string
}

var placeholderFlights = []placeholderFlight{
	{airline: "Sky Placeholder Airways", number: "SP 101", price: 450, depart: "08:00", arrive: "12:30"},
	{airline: "Budget Wings", number: "BW 202", price: 520, depart: "13:15", arrive: "17:45"},
	{airline: "Night Owl Air", number: "NO 303", price: 610, depart: "19:40", arrive: "23:55"},
}

// FallbackFlights returns the three deterministic placeholder flights on the
// given departure date, ordered by departure time.
func FallbackFlights(departure types.Date, currency string) []types.FlightResult {
	if currency == "" {
		currency = defaultCurrency
	}
	day := departure.String()
	return lo.Map(placeholderFlights, func(p placeholderFlight, _ int) types.FlightResult {
		return types.FlightResult{
			Airline:       lo.ToPtr(p.airline),
			FlightNumber:  lo.ToPtr(p.number),
			Price:         p.price,
			Currency:      currency,
			DepartureTime: fmt.Sprintf("%sT%s:00", day, p.depart),
			ArrivalTime:   fmt.Sprintf("%sT%s:00", day, p.arrive),
		}
	})
}
