package planner

import (
	"fmt"
	"strings"

	"ryokou/internal/ai"
)

// ToolMode controls which tools the itinerary stage registers.
type ToolMode string

const (
	// ToolsAuto registers every search tool unless both flight and hotel are chosen.
	ToolsAuto ToolMode = "auto"
	// ToolsAlways registers every search tool.
	ToolsAlways ToolMode = "always"
)

const itineraryInstructions = `Create an itinerary using the user's provided flight and hotel information for the destination.
On the first day, you MUST include a flight and a hotel activity based on the user's provided flight and hotel information.
Each day has exactly 4 activities: one sightseeing, one dining or shopping, one lodging, and one more of any type.
Activity types are: flight, hotel, sightseeing, dining, shopping, lodging.`

const itineraryToolInstructions = `
Use the searchFlights tool to find flight options within the flight budget unless flight information is provided.
Use the searchHotels tool to find hotels within the hotel budget in the destination city unless hotel information is provided.
Always use the searchRestaurants tool to find restaurants for the dining activity.
Always use the searchShopping tool to find the shopping activity.`

const itineraryFormat = `
Respond with a single JSON object and nothing else, shaped like:
{"title":"...","destinationName":"...","description":"...","rationale":"...",
 "days":[{"title":"...","subtitle":"...","destination":"...",
   "activities":[{"type":"sightseeing","title":"...","description":"..."}]}]}`

// ItineraryStage produces the day-by-day itinerary.
type ItineraryStage struct {
	tools []ai.Tool
	mode  ToolMode
}

// NewItineraryStage takes all four search tools.
func NewItineraryStage(tools []ai.Tool, mode ToolMode) *ItineraryStage {
	if mode == "" {
		mode = ToolsAuto
	}
	return &ItineraryStage{tools: tools, mode: mode}
}

func (s *ItineraryStage) Name() string { return "itinerary" }

// Tools returns the tools registered for tc.
func (s *ItineraryStage) Tools(tc TripContext) []ai.Tool {
	if s.mode == ToolsAuto && tc.HasSelections() {
		return nil
	}
	return s.tools
}

func (s *ItineraryStage) Request(tc TripContext) (ai.Request, error) {
	tools := s.Tools(tc)
	instructions := itineraryInstructions
	if len(tools) > 0 {
		instructions += itineraryToolInstructions
	}
	return ai.Request{
		Instructions: instructions + itineraryFormat,
		Prompt:       itineraryPrompt(tc),
		Tools:        tools,
		Schema:       itinerarySchema,
	}, nil
}

func (s *ItineraryStage) Merge(prev, next PartialItinerary) PartialItinerary {
	return MergeItinerary(prev, next)
}

func itineraryPrompt(tc TripContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a %d-day itinerary in %s (latitude %.4f, longitude %.4f) for a trip from %s, departing %s and returning %s.\n",
		tc.DayCount(), tc.Destination.Name, tc.Destination.Latitude, tc.Destination.Longitude,
		tc.Origin, tc.DepartureDate, tc.ReturnDate)

	if f := tc.SelectedFlight; f != nil {
		fmt.Fprintf(&b, "Chosen flight: %s, %s %s USD, departing %s and arriving %s.\n",
			deref(f.Airline, "unknown airline"), deref(f.FlightNumber, "unknown flight number"),
			formatAmount(f.Price), f.DepartureTime, f.ArrivalTime)
	} else {
		fmt.Fprintf(&b, "No flight is chosen yet; the flight budget is %s USD.\n", formatAmount(tc.FlightBudgetUSD))
	}
	if h := tc.SelectedHotel; h != nil {
		fmt.Fprintf(&b, "Chosen hotel: %s.\n", h.Name)
	} else {
		fmt.Fprintf(&b, "No hotel is chosen yet; the hotel budget is %s USD per night.\n", formatAmount(tc.HotelBudgetUSD))
	}

	fmt.Fprintf(&b, "Give the itinerary a fun title, include a rationale, and fill out the days array with exactly %d days of %d activities each.",
		tc.DayCount(), ActivitiesPerDay)
	return b.String()
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

var activitySchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"type":        {Type: ai.TypeString, Description: "flight, hotel, sightseeing, dining, shopping or lodging"},
		"title":       {Type: ai.TypeString},
		"description": {Type: ai.TypeString},
	},
	Required: []string{"type", "title", "description"},
}

var daySchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"title":       {Type: ai.TypeString},
		"subtitle":    {Type: ai.TypeString},
		"destination": {Type: ai.TypeString},
		"activities":  {Type: ai.TypeArray, Items: activitySchema},
	},
	Required: []string{"title", "subtitle", "destination", "activities"},
}

var itinerarySchema = &ai.Schema{
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"title":           {Type: ai.TypeString},
		"destinationName": {Type: ai.TypeString},
		"description":     {Type: ai.TypeString},
		"rationale":       {Type: ai.TypeString},
		"days":            {Type: ai.TypeArray, Items: daySchema},
	},
	Required: []string{"title", "destinationName", "description", "rationale", "days"},
}
