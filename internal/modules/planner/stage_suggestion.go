package planner

import (
	"fmt"
	"strings"

	"ryokou/internal/ai"
)

const suggestionInstructions = `You are a travel planner.
Use the searchFlights tool to find flight options within the flight budget.
Use the searchHotels tool to find hotels within the hotel budget in the destination city.
Only suggest flights and hotels returned by the tools.
Respond with a single JSON object and nothing else, shaped like:
{"flights":[{"airline":"...","flightNumber":"...","price":0,"currency":"USD","departureTime":"...","arrivalTime":"..."}],
 "hotels":[{"name":"...","minimumPrice":0,"maximumPrice":0,"latitude":0,"longitude":0}]}`

// SuggestionCount is the number of flights and hotels the model is asked for.
const SuggestionCount = 3

// SuggestionStage proposes flight and hotel options for a trip.
type SuggestionStage struct {
	tools []ai.Tool
}

// NewSuggestionStage registers the flight and hotel search tools.
func NewSuggestionStage(tools []ai.Tool) *SuggestionStage {
	return &SuggestionStage{tools: tools}
}

func (s *SuggestionStage) Name() string { return "suggestion" }

func (s *SuggestionStage) Request(tc TripContext) (ai.Request, error) {
	return ai.Request{
		Instructions: suggestionInstructions,
		Prompt:       suggestionPrompt(tc),
		Tools:        s.tools,
		Schema:       suggestionSchema,
	}, nil
}

func (s *SuggestionStage) Merge(prev, next PartialSuggestion) PartialSuggestion {
	return MergeSuggestion(prev, next)
}

func suggestionPrompt(tc TripContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan a round-trip from %s to %s, departing %s and returning %s.\n",
		tc.Origin, tc.Destination.Name, tc.DepartureDate, tc.ReturnDate)
	fmt.Fprintf(&b, "The flight budget is %s USD and the hotel budget is %s USD per night.\n",
		formatAmount(tc.FlightBudgetUSD), formatAmount(tc.HotelBudgetUSD))
	fmt.Fprintf(&b, "Provide %d flight and %d hotel options.", SuggestionCount, SuggestionCount)
	return b.String()
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

var flightSchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"airline":       {Type: ai.TypeString, Nullable: true},
		"flightNumber":  {Type: ai.TypeString, Nullable: true},
		"price":         {Type: ai.TypeNumber},
		"currency":      {Type: ai.TypeString, Nullable: true},
		"departureTime": {Type: ai.TypeString},
		"arrivalTime":   {Type: ai.TypeString},
	},
	Required: []string{"price", "departureTime", "arrivalTime"},
}

var hotelSchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"name":         {Type: ai.TypeString},
		"minimumPrice": {Type: ai.TypeNumber, Nullable: true},
		"maximumPrice": {Type: ai.TypeNumber, Nullable: true},
		"latitude":     {Type: ai.TypeNumber, Nullable: true},
		"longitude":    {Type: ai.TypeNumber, Nullable: true},
	},
	Required: []string{"name"},
}

var suggestionSchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"flights": {Type: ai.TypeArray, Items: flightSchema},
		"hotels":  {Type: ai.TypeArray, Items: hotelSchema},
	},
	Required: []string{"flights", "hotels"},
}
