// README: iCalendar export of saved trip plans, one all-day event per itinerary day.
package tripplan

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	ics "github.com/arran4/golang-ical"

	"ryokou/internal/modules/planner"
)

// TimezoneFinder resolves an IANA zone name from a coordinate (tzf.F satisfies it).
type TimezoneFinder interface {
	GetTimezoneName(lng float64, lat float64) string
}

const calendarProductID = "-//ryokou//trip plans//EN"

// BuildCalendar renders plans as an iCalendar document. Days are placed in the
// destination's timezone when finder can resolve one.
func BuildCalendar(plans []TripPlan, finder TimezoneFinder, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName("Ryokou trips")

	zones := map[string]bool{}
	for _, p := range plans {
		loc := planLocation(p, finder)
		zones[loc.String()] = true

		start := p.DepartureDate
		for i, day := range p.Itinerary.Days {
			date := start.AddDays(i)
			at := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, loc)

			event := cal.AddEvent(fmt.Sprintf("%s-day%d@ryokou", p.ID, i+1))
			event.SetDtStampTime(stamp)
			event.SetAllDayStartAt(at)
			event.SetAllDayEndAt(at.AddDate(0, 0, 1))
			event.SetSummary(daySummary(p, i, day.Title))
			event.SetLocation(firstNonEmpty(day.Destination, p.DestinationName))
			event.SetDescription(dayDescription(day.Subtitle, day.Activities))
		}
	}
	// A single zone is advertised for the whole calendar.
	if len(zones) == 1 {
		for z := range zones {
			cal.SetXWRTimezone(z)
		}
	}
	return cal.Serialize()
}

func planLocation(p TripPlan, finder TimezoneFinder) *time.Location {
	if finder == nil || (p.Latitude == 0 && p.Longitude == 0) {
		return time.UTC
	}
	name := finder.GetTimezoneName(p.Longitude, p.Latitude)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func daySummary(p TripPlan, index int, title string) string {
	label := fmt.Sprintf("%s day %d", p.DestinationName, index+1)
	if strings.TrimSpace(title) == "" {
		return label
	}
	return label + ": " + title
}

func dayDescription(subtitle string, activities []planner.Activity) string {
	var b strings.Builder
	if subtitle != "" {
		b.WriteString(subtitle)
		b.WriteString("\n")
	}
	for _, a := range activities {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", a.Type, a.Title, a.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
