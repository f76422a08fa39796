// README: Demo CLI; plans a sample trip end to end and prints the streamed snapshots.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ryokou/internal/ai"
	"ryokou/internal/modules/planner"
	"ryokou/internal/tools"
	"ryokou/internal/types"
)

func main() {
	destination := flag.String("to", "Paris", "destination from the built-in catalogue (Paris, New York, Tokyo)")
	origin := flag.String("from", "SFO", "origin airport code")
	days := flag.Int("days", 3, "trip length in days")
	flag.Parse()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable not set")
	}
	dest, ok := planner.LookupDestination(*destination)
	if !ok {
		log.Fatalf("unknown destination %q", *destination)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	backend, err := ai.NewGeminiBackend(ctx, apiKey, os.Getenv("RYOKOU_AI_MODEL"), 0.7)
	if err != nil {
		log.Fatalf("Failed to initialize AI backend: %v", err)
	}
	defer backend.Close()

	client := tools.NewClient(15*time.Second, tools.NewMemoryCache(10*time.Minute), 10*time.Minute)
	toolSet := tools.NewSet(tools.Config{
		FlightAPIKey:     os.Getenv("FLIGHTAPI_KEY"),
		FlightAPIBaseURL: tools.DefaultFlightAPIBaseURL,
		XoteloBaseURL:    tools.DefaultXoteloBaseURL,
		GeoapifyKey:      os.Getenv("GEOAPIFY_API_KEY"),
		GeoapifyBaseURL:  tools.DefaultGeoapifyBaseURL,
	}, client, nil)

	departure := types.DateOf(time.Now()).AddDays(30)
	tc := planner.TripContext{
		Origin:          *origin,
		Destination:     dest,
		FlightBudgetUSD: 1200,
		HotelBudgetUSD:  300,
		DepartureDate:   departure,
		ReturnDate:      departure.AddDays(*days - 1),
	}
	opts := planner.Options{ToolTimeout: 20 * time.Second}

	fmt.Printf("Planning %d days in %s from %s, departing %s\n\n", tc.DayCount(), dest.Name, tc.Origin, tc.DepartureDate)

	suggest := planner.NewOrchestrator(backend, planner.NewSuggestionStage(toolSet.Suggestion()), opts)
	updates, unsubscribe := suggest.Subscribe()
	go printUpdates(updates, func(s planner.PartialSuggestion) string {
		return fmt.Sprintf("%d flights, %d hotels", len(s.Flights), len(s.Hotels))
	})
	st, err := suggest.Generate(ctx, tc)
	unsubscribe()
	if err != nil {
		log.Fatalf("Suggestions failed: %v", err)
	}
	if len(st.Snapshot.Flights) == 0 || len(st.Snapshot.Hotels) == 0 {
		log.Fatal("No flight or hotel suggestions returned")
	}

	tc.SelectedFlight = concreteFlight(st.Snapshot.Flights[0])
	tc.SelectedHotel = concreteHotel(st.Snapshot.Hotels[0])
	fmt.Printf("\nSelected flight: %s\nSelected hotel: %s\n\n", dump(tc.SelectedFlight), dump(tc.SelectedHotel))

	itinerary := planner.NewOrchestrator(backend, planner.NewItineraryStage(toolSet.All(), planner.ToolsAlways), opts)
	views, unsubscribe := itinerary.Subscribe()
	go printUpdates(views, func(p planner.PartialItinerary) string {
		return fmt.Sprintf("%d of %d days", len(p.Days), tc.DayCount())
	})
	final, err := itinerary.Generate(ctx, tc)
	unsubscribe()
	if err != nil {
		log.Fatalf("Itinerary failed: %v", err)
	}

	view := planner.NewReconciler(tc.DayCount()).ObserveState(final)
	if !view.Complete {
		log.Fatalf("Itinerary is incomplete: %s", dump(view.Partial))
	}
	fmt.Printf("\n%s\n", dump(view.Itinerary))
}

func printUpdates[P any](states <-chan planner.State[P], summary func(P) string) {
	for st := range states {
		fmt.Printf("[%s] %s\n", st.Phase, summary(st.Snapshot))
	}
}

func concreteFlight(p planner.PartialFlight) *types.FlightResult {
	f := &types.FlightResult{Airline: p.Airline, FlightNumber: p.FlightNumber}
	if p.Price != nil {
		f.Price = *p.Price
	}
	if p.Currency != nil {
		f.Currency = *p.Currency
	}
	if p.DepartureTime != nil {
		f.DepartureTime = *p.DepartureTime
	}
	if p.ArrivalTime != nil {
		f.ArrivalTime = *p.ArrivalTime
	}
	return f
}

func concreteHotel(p planner.PartialHotel) *types.HotelResult {
	h := &types.HotelResult{MinimumPrice: p.MinimumPrice, MaximumPrice: p.MaximumPrice, Latitude: p.Latitude, Longitude: p.Longitude}
	if p.Name != nil {
		h.Name = *p.Name
	}
	return h
}

func dump(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
