// Package gtfsrt decodes gtfs-realtime vehicle position feeds into plain go structures.
// Any changes to the gtfs-realtime protocol or generated code can be handled here and not elsewhere in the program.
// Optional protocol buffer fields are presented with explicit presence flags instead of pointers.
package gtfsrt

import (
	"fmt"
	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// FeedSnapshot is one decoded gtfs-rt FeedMessage
type FeedSnapshot struct {
	//Timestamp is the feed header timestamp in unix epoch seconds, zero if the header did not include one
	Timestamp uint64
	Entities  []FeedEntity
}

// FeedEntity is one vehicle report from a FeedSnapshot
type FeedEntity struct {
	Id string

	HasVehicle bool
	Vehicle    VehicleInfo

	HasTrip bool
	Trip    TripDescriptor

	//current stop information reported by the vehicle
	HasStopId       bool
	StopId          string
	HasStopSequence bool
	StopSequence    uint32
}

// VehicleInfo holds the vehicle fields of a FeedEntity
type VehicleInfo struct {
	//Id is the vehicle descriptor id, empty when not reported
	Id    string
	Label string

	HasPosition bool
	Latitude    float32
	Longitude   float32
	Bearing     float32

	HasTimestamp bool
	//Timestamp is the unix epoch seconds when the position was measured
	Timestamp uint64
}

// TripDescriptor holds the trip fields of a FeedEntity
type TripDescriptor struct {
	TripId     string
	HasRouteId bool
	RouteId    string
}

// Decode unmarshals gtfs-rt protocol buffer bytes into a FeedSnapshot
func Decode(data []byte) (*FeedSnapshot, error) {
	feedMessage := gtfsproto.FeedMessage{}
	if err := proto.Unmarshal(data, &feedMessage); err != nil {
		return nil, fmt.Errorf("unable to unmarshal FeedMessage: %w", err)
	}
	return FromFeedMessage(&feedMessage), nil
}

// FromFeedMessage converts the vehicle entities of a gtfs-rt FeedMessage into a FeedSnapshot.
// Entities without a vehicle position (trip updates, alerts) are kept with HasVehicle false
func FromFeedMessage(feedMessage *gtfsproto.FeedMessage) *FeedSnapshot {
	snapshot := FeedSnapshot{
		Timestamp: feedMessage.GetHeader().GetTimestamp(),
		Entities:  make([]FeedEntity, 0, len(feedMessage.GetEntity())),
	}
	for _, entity := range feedMessage.GetEntity() {
		snapshot.Entities = append(snapshot.Entities, makeFeedEntity(entity))
	}
	return &snapshot
}

func makeFeedEntity(entity *gtfsproto.FeedEntity) FeedEntity {
	result := FeedEntity{
		Id: entity.GetId(),
	}
	vehicle := entity.GetVehicle()
	if vehicle == nil {
		return result
	}

	result.HasVehicle = true
	result.Vehicle.Id = vehicle.GetVehicle().GetId()
	result.Vehicle.Label = vehicle.GetVehicle().GetLabel()
	if position := vehicle.GetPosition(); position != nil {
		result.Vehicle.HasPosition = true
		result.Vehicle.Latitude = position.GetLatitude()
		result.Vehicle.Longitude = position.GetLongitude()
		result.Vehicle.Bearing = position.GetBearing()
	}
	if vehicle.Timestamp != nil {
		result.Vehicle.HasTimestamp = true
		result.Vehicle.Timestamp = vehicle.GetTimestamp()
	}

	if trip := vehicle.GetTrip(); trip != nil {
		result.HasTrip = true
		result.Trip.TripId = trip.GetTripId()
		if trip.RouteId != nil {
			result.Trip.HasRouteId = true
			result.Trip.RouteId = trip.GetRouteId()
		}
	}

	if vehicle.StopId != nil {
		result.HasStopId = true
		result.StopId = vehicle.GetStopId()
	}
	if vehicle.CurrentStopSequence != nil {
		result.HasStopSequence = true
		result.StopSequence = vehicle.GetCurrentStopSequence()
	}
	return result
}
