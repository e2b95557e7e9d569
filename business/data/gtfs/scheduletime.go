package gtfs

import (
	"fmt"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// ScheduleTimeOfDay produces the time on date's calendar day, in date's location, showing the wall clock
// time scheduleSeconds after midnight. Schedule seconds of 24 hours or more wrap around onto the same day's clock.
func ScheduleTimeOfDay(date time.Time, scheduleSeconds int) time.Time {
	seconds := scheduleSeconds % secondsPerDay
	if seconds < 0 {
		seconds += secondsPerDay
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		seconds/3600, (seconds%3600)/60, seconds%60, 0, date.Location())
}

// FormatScheduleSeconds presents seconds after midnight in gtfs HH:MM:SS form
func FormatScheduleSeconds(scheduleSeconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d", scheduleSeconds/3600, (scheduleSeconds%3600)/60, scheduleSeconds%60)
}
