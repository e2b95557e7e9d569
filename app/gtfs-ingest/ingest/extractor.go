package ingest

import (
	"github.com/OpenTransitTools/transitdelay/business/data/gtfs"
	"github.com/OpenTransitTools/transitdelay/business/data/gtfsrt"
	"strings"
	"time"
)

// candidate is a gtfs.VehiclePosition waiting for its delay to be estimated
type candidate struct {
	position        gtfs.VehiclePosition
	hasStopSequence bool
	stopSequence    uint32
}

// extractPositions builds candidates from every entity in snapshot that reports both a vehicle and a trip
// on a route starting with routePrefix. Timestamps are presented in location.
// Entities with neither a vehicle id nor an entity id are dropped.
// When several entities report the same vehicle only the most recently reported one is kept.
// Returns a new slice on every call and does not modify snapshot
func extractPositions(snapshot *gtfsrt.FeedSnapshot, routePrefix string, location *time.Location) []candidate {
	results := make([]candidate, 0, len(snapshot.Entities))
	indexByVehicle := make(map[string]int)
	for i := range snapshot.Entities {
		entity := &snapshot.Entities[i]
		if !includeEntity(entity, routePrefix) {
			continue
		}
		c := makeCandidate(entity, snapshot.Timestamp, location)
		if c.position.VehicleId == "" {
			continue
		}
		if existing, present := indexByVehicle[c.position.VehicleId]; present {
			if c.position.Timestamp.After(results[existing].position.Timestamp) {
				results[existing] = c
			}
			continue
		}
		indexByVehicle[c.position.VehicleId] = len(results)
		results = append(results, c)
	}
	return results
}

// includeEntity returns true if entity has vehicle and trip information and runs on a route with routePrefix
func includeEntity(entity *gtfsrt.FeedEntity, routePrefix string) bool {
	if !entity.HasVehicle || !entity.HasTrip {
		return false
	}
	return entity.Trip.HasRouteId && strings.HasPrefix(entity.Trip.RouteId, routePrefix)
}

// makeCandidate maps entity fields onto a candidate. headerTimestamp is used when the vehicle did not report
// when its position was measured
func makeCandidate(entity *gtfsrt.FeedEntity, headerTimestamp uint64, location *time.Location) candidate {
	vehicleId := entity.Vehicle.Id
	if vehicleId == "" {
		vehicleId = entity.Id
	}
	timestamp := headerTimestamp
	if entity.Vehicle.HasTimestamp {
		timestamp = entity.Vehicle.Timestamp
	}
	c := candidate{
		position: gtfs.VehiclePosition{
			VehicleId: vehicleId,
			TripId:    entity.Trip.TripId,
			RouteId:   entity.Trip.RouteId,
			Timestamp: time.Unix(int64(timestamp), 0).In(location),
		},
		hasStopSequence: entity.HasStopSequence,
		stopSequence:    entity.StopSequence,
	}
	if entity.HasStopId {
		stopId := entity.StopId
		c.position.StopId = &stopId
	}
	if entity.Vehicle.HasPosition {
		c.position.Latitude = float64(entity.Vehicle.Latitude)
		c.position.Longitude = float64(entity.Vehicle.Longitude)
	}
	return c
}
