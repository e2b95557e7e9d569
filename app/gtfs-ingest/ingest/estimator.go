package ingest

import (
	"context"
	"github.com/OpenTransitTools/transitdelay/business/data/gtfs"
	"log"
	"time"
)

// delayEstimator resolves the schedule delay of candidates using a ScheduleIndex
type delayEstimator struct {
	log      *log.Logger
	index    ScheduleIndex
	location *time.Location
	holidays *transitHolidayCalendar
	metrics  *Metrics
	verbose  bool
	//now supplies the current time, the calendar date of which is the service day used for delays
	now func() time.Time
}

func makeDelayEstimator(log *log.Logger,
	index ScheduleIndex,
	location *time.Location,
	holidays *transitHolidayCalendar,
	metrics *Metrics,
	verbose bool) *delayEstimator {
	return &delayEstimator{
		log:      log,
		index:    index,
		location: location,
		holidays: holidays,
		metrics:  metrics,
		verbose:  verbose,
		now:      time.Now,
	}
}

// estimate returns the finished gtfs.VehiclePosition for c.
// Positions without a stop id and sequence, without a scheduled stop time, or whose lookup fails
// keep a zero delay with DelayKnown false
func (d *delayEstimator) estimate(ctx context.Context, c candidate) gtfs.VehiclePosition {
	position := c.position
	position.Holiday = d.holidays.isHoliday(position.Timestamp)

	if position.StopId == nil || !c.hasStopSequence {
		if d.verbose {
			d.log.Printf("no stop id or stop sequence for vehicle %s, delay unknown\n", position.VehicleId)
		}
		d.metrics.DelayUnknown.Inc()
		return position
	}

	stopTime, err := d.index.FindStopTime(ctx, position.TripId, *position.StopId, c.stopSequence)
	if err != nil {
		d.log.Printf("error looking up stop time for trip %s stop %s sequence %d, delay unknown. error:%v\n",
			position.TripId, *position.StopId, c.stopSequence, err)
		d.metrics.LookupFailures.Inc()
		d.metrics.DelayUnknown.Inc()
		return position
	}
	if stopTime == nil {
		if d.verbose {
			d.log.Printf("no stop time for trip %s stop %s sequence %d, delay unknown\n",
				position.TripId, *position.StopId, c.stopSequence)
		}
		d.metrics.DelayUnknown.Inc()
		return position
	}

	position.DelaySeconds = delaySeconds(position.Timestamp, d.now().In(d.location), stopTime.ArrivalTime)
	position.DelayKnown = true
	if d.verbose {
		d.log.Printf("vehicle %s scheduled at %s delay %d seconds\n", position.VehicleId,
			gtfs.FormatScheduleSeconds(stopTime.ArrivalTime), position.DelaySeconds)
	}
	return position
}

// delaySeconds returns whole seconds between the scheduled arrivalSeconds on today's calendar date and observed,
// positive when observed is after the scheduled time
func delaySeconds(observed time.Time, today time.Time, arrivalSeconds int) int {
	scheduled := gtfs.ScheduleTimeOfDay(today, arrivalSeconds)
	return int(observed.Sub(scheduled) / time.Second)
}
