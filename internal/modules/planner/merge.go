package planner

// A merged snapshot never loses a field or list element the previous snapshot
// had: lists keep the longer length and a field takes the newer value only
// when the newer snapshot has one.

func mergeField[T any](prev, next *T) *T {
	if next != nil {
		return next
	}
	return prev
}

func mergeList[T any](prev, next []T, merge func(prev, next T) T) []T {
	n := max(len(prev), len(next))
	if n == 0 {
		return next
	}
	out := make([]T, n)
	for i := range out {
		switch {
		case i < len(prev) && i < len(next):
			out[i] = merge(prev[i], next[i])
		case i < len(next):
			out[i] = next[i]
		default:
			out[i] = prev[i]
		}
	}
	return out
}

func mergeFlight(prev, next PartialFlight) PartialFlight {
	return PartialFlight{
		Airline:       mergeField(prev.Airline, next.Airline),
		FlightNumber:  mergeField(prev.FlightNumber, next.FlightNumber),
		Price:         mergeField(prev.Price, next.Price),
		Currency:      mergeField(prev.Currency, next.Currency),
		DepartureTime: mergeField(prev.DepartureTime, next.DepartureTime),
		ArrivalTime:   mergeField(prev.ArrivalTime, next.ArrivalTime),
	}
}

func mergeHotel(prev, next PartialHotel) PartialHotel {
	return PartialHotel{
		Name:         mergeField(prev.Name, next.Name),
		MinimumPrice: mergeField(prev.MinimumPrice, next.MinimumPrice),
		MaximumPrice: mergeField(prev.MaximumPrice, next.MaximumPrice),
		Latitude:     mergeField(prev.Latitude, next.Latitude),
		Longitude:    mergeField(prev.Longitude, next.Longitude),
	}
}

// MergeSuggestion folds a newer stage-1 snapshot into prev.
func MergeSuggestion(prev, next PartialSuggestion) PartialSuggestion {
	return PartialSuggestion{
		Flights: mergeList(prev.Flights, next.Flights, mergeFlight),
		Hotels:  mergeList(prev.Hotels, next.Hotels, mergeHotel),
	}
}

func mergeActivity(prev, next PartialActivity) PartialActivity {
	return PartialActivity{
		Type:        mergeField(prev.Type, next.Type),
		Title:       mergeField(prev.Title, next.Title),
		Description: mergeField(prev.Description, next.Description),
	}
}

func mergeDay(prev, next PartialDay) PartialDay {
	return PartialDay{
		Title:       mergeField(prev.Title, next.Title),
		Subtitle:    mergeField(prev.Subtitle, next.Subtitle),
		Destination: mergeField(prev.Destination, next.Destination),
		Activities:  mergeList(prev.Activities, next.Activities, mergeActivity),
	}
}

// MergeItinerary folds a newer stage-2 snapshot into prev.
func MergeItinerary(prev, next PartialItinerary) PartialItinerary {
	return PartialItinerary{
		Title:           mergeField(prev.Title, next.Title),
		DestinationName: mergeField(prev.DestinationName, next.DestinationName),
		Description:     mergeField(prev.Description, next.Description),
		Rationale:       mergeField(prev.Rationale, next.Rationale),
		Days:            mergeList(prev.Days, next.Days, mergeDay),
	}
}
