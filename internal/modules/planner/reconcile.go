package planner

import "strings"

// View is what a client renders for the itinerary stage: the best known
// snapshot, plus the concrete itinerary once it is complete.
type View struct {
	Partial   PartialItinerary `json:"partial"`
	Itinerary *Itinerary       `json:"itinerary,omitempty"`
	Complete  bool             `json:"complete"`
}

// Reconciler turns itinerary snapshots into storable itineraries for one trip length.
type Reconciler struct {
	dayCount int
}

func NewReconciler(dayCount int) Reconciler {
	return Reconciler{dayCount: dayCount}
}

func (r Reconciler) Observe(p PartialItinerary) View {
	it, ok := ConcreteItinerary(p, r.dayCount)
	if !ok {
		return View{Partial: p}
	}
	return View{Partial: p, Itinerary: &it, Complete: true}
}

// ObserveState is Observe gated on the run having succeeded, so a snapshot
// whose last string is still streaming is never reported as complete.
func (r Reconciler) ObserveState(st State[PartialItinerary]) View {
	if st.Phase != PhaseSucceeded {
		return View{Partial: st.Snapshot}
	}
	return r.Observe(st.Snapshot)
}

// ConcreteItinerary returns the itinerary only when every field is present,
// there are exactly dayCount days and every day has exactly ActivitiesPerDay
// activities. Anything less is still pending.
func ConcreteItinerary(p PartialItinerary, dayCount int) (Itinerary, bool) {
	title, ok1 := present(p.Title)
	destination, ok2 := present(p.DestinationName)
	description, ok3 := present(p.Description)
	rationale, ok4 := present(p.Rationale)
	if !ok1 || !ok2 || !ok3 || !ok4 || len(p.Days) != dayCount {
		return Itinerary{}, false
	}

	it := Itinerary{
		Title:           title,
		DestinationName: destination,
		Description:     description,
		Rationale:       rationale,
		Days:            make([]DayPlan, 0, dayCount),
	}
	for _, d := range p.Days {
		day, ok := concreteDay(d)
		if !ok {
			return Itinerary{}, false
		}
		it.Days = append(it.Days, day)
	}
	return it, true
}

func concreteDay(d PartialDay) (DayPlan, bool) {
	title, ok1 := present(d.Title)
	subtitle, ok2 := present(d.Subtitle)
	destination, ok3 := present(d.Destination)
	if !ok1 || !ok2 || !ok3 || len(d.Activities) != ActivitiesPerDay {
		return DayPlan{}, false
	}

	day := DayPlan{Title: title, Subtitle: subtitle, Destination: destination, Activities: make([]Activity, 0, ActivitiesPerDay)}
	for _, a := range d.Activities {
		title, ok1 := present(a.Title)
		description, ok2 := present(a.Description)
		if a.Type == nil || strings.TrimSpace(string(*a.Type)) == "" || !ok1 || !ok2 {
			return DayPlan{}, false
		}
		day.Activities = append(day.Activities, Activity{Type: *a.Type, Title: title, Description: description})
	}
	return day, true
}

func present(s *string) (string, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "", false
	}
	return *s, true
}
