package ingest

import (
	"fmt"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
	"strings"
	"time"
)

// DefaultHolidays are the us holidays most agencies run a holiday schedule on
var DefaultHolidays = []string{
	"NewYear",
	"MlkDay",
	"MemorialDay",
	"Juneteenth",
	"IndependenceDay",
	"LaborDay",
	"ThanksgivingDay",
	"ChristmasDay",
}

// knownHolidays maps configurable holiday names to their rickar/cal definitions
var knownHolidays = map[string]*cal.Holiday{
	"newyear":         us.NewYear,
	"mlkday":          us.MlkDay,
	"presidentsday":   us.PresidentsDay,
	"memorialday":     us.MemorialDay,
	"juneteenth":      us.Juneteenth,
	"independenceday": us.IndependenceDay,
	"laborday":        us.LaborDay,
	"columbusday":     us.ColumbusDay,
	"veteransday":     us.VeteransDay,
	"thanksgivingday": us.ThanksgivingDay,
	"christmasday":    us.ChristmasDay,
}

// transitHolidayCalendar holds the holidays an agency runs a holiday schedule on.
// Dates are judged on the agency's calendar, not the calendar of the time passed in
type transitHolidayCalendar struct {
	calendar *cal.BusinessCalendar
	location *time.Location
}

// makeTransitHolidayCalendar builds transitHolidayCalendar from holiday names (case-insensitive),
// returning an error for names it does not know
func makeTransitHolidayCalendar(names []string, location *time.Location) (*transitHolidayCalendar, error) {
	calendar := cal.NewBusinessCalendar()
	for _, name := range names {
		holiday, present := knownHolidays[strings.ToLower(strings.TrimSpace(name))]
		if !present {
			return nil, fmt.Errorf("unknown holiday %q", name)
		}
		calendar.AddHoliday(holiday)
	}
	return &transitHolidayCalendar{calendar: calendar, location: location}, nil
}

// isHoliday returns true if at falls on an observed holiday in the agency's time zone
func (t *transitHolidayCalendar) isHoliday(at time.Time) bool {
	_, observed, _ := t.calendar.IsHoliday(at.In(t.location))
	return observed
}
