package gtfsrt

import (
	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/matryer/is"
	"google.golang.org/protobuf/proto"
	"testing"
)

func feedHeader(timestamp uint64) *gtfsproto.FeedHeader {
	incrementality := gtfsproto.FeedHeader_FULL_DATASET
	return &gtfsproto.FeedHeader{
		GtfsRealtimeVersion: proto.String("2.0"),
		Incrementality:      &incrementality,
		Timestamp:           proto.Uint64(timestamp),
	}
}

func TestDecode(t *testing.T) {
	is := is.New(t)
	feedMessage := &gtfsproto.FeedMessage{
		Header: feedHeader(1710248530),
		Entity: []*gtfsproto.FeedEntity{
			{
				Id: proto.String("1"),
				Vehicle: &gtfsproto.VehiclePosition{
					Trip: &gtfsproto.TripDescriptor{
						TripId:  proto.String("trip1"),
						RouteId: proto.String("B6"),
					},
					Vehicle: &gtfsproto.VehicleDescriptor{
						Id:    proto.String("7102"),
						Label: proto.String("bus 7102"),
					},
					Position: &gtfsproto.Position{
						Latitude:  proto.Float32(40.5),
						Longitude: proto.Float32(-73.9),
					},
					CurrentStopSequence: proto.Uint32(5),
					StopId:              proto.String("stopA"),
					Timestamp:           proto.Uint64(1710248500),
				},
			},
			{
				Id: proto.String("2"),
				Vehicle: &gtfsproto.VehiclePosition{
					Trip: &gtfsproto.TripDescriptor{
						TripId: proto.String("trip2"),
					},
				},
			},
			{
				Id: proto.String("3"),
				TripUpdate: &gtfsproto.TripUpdate{
					Trip: &gtfsproto.TripDescriptor{TripId: proto.String("trip3")},
				},
			},
		},
	}
	data, err := proto.Marshal(feedMessage)
	is.NoErr(err)

	snapshot, err := Decode(data)
	is.NoErr(err)
	is.Equal(uint64(1710248530), snapshot.Timestamp)
	is.Equal(3, len(snapshot.Entities))

	full := snapshot.Entities[0]
	is.Equal("1", full.Id)
	is.True(full.HasVehicle)
	is.True(full.HasTrip)
	is.True(full.Trip.HasRouteId)
	is.Equal("B6", full.Trip.RouteId)
	is.Equal("trip1", full.Trip.TripId)
	is.Equal("7102", full.Vehicle.Id)
	is.Equal("bus 7102", full.Vehicle.Label)
	is.True(full.Vehicle.HasPosition)
	is.Equal(float32(40.5), full.Vehicle.Latitude)
	is.True(full.Vehicle.HasTimestamp)
	is.Equal(uint64(1710248500), full.Vehicle.Timestamp)
	is.True(full.HasStopId)
	is.Equal("stopA", full.StopId)
	is.True(full.HasStopSequence)
	is.Equal(uint32(5), full.StopSequence)

	sparse := snapshot.Entities[1]
	is.True(sparse.HasVehicle)
	is.True(sparse.HasTrip)
	is.True(!sparse.Trip.HasRouteId)
	is.True(!sparse.Vehicle.HasPosition)
	is.True(!sparse.Vehicle.HasTimestamp)
	is.True(!sparse.HasStopId)
	is.True(!sparse.HasStopSequence)
	is.Equal("", sparse.Vehicle.Id)

	tripUpdate := snapshot.Entities[2]
	is.True(!tripUpdate.HasVehicle)
	is.True(!tripUpdate.HasTrip)
}

func TestDecode_malformed(t *testing.T) {
	is := is.New(t)
	_, err := Decode([]byte("<html>not a feed</html>"))
	is.True(err != nil)
}
