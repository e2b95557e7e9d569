package ingest

import (
	"bytes"
	"context"
	"fmt"
	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/OpenTransitTools/transitdelay/business/data/gtfs"
	"google.golang.org/protobuf/proto"
	"log"
	"sync"
	"testing"
	"time"
)

// testLogWriter collects log output, safe to write from cycle goroutines
type testLogWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *testLogWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func makeTestLogger() (*log.Logger, *testLogWriter) {
	writer := &testLogWriter{}
	return log.New(writer, "test", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), writer
}

func newYorkLocation(t *testing.T) *time.Location {
	location, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("unable to load America/New_York: %v", err)
	}
	return location
}

func stringPtr(s string) *string {
	return &s
}

type stopTimeKey struct {
	tripId       string
	stopId       string
	stopSequence uint32
}

// fakeScheduleIndex serves stop times from a map
type fakeScheduleIndex struct {
	mu        sync.Mutex
	stopTimes map[stopTimeKey]*gtfs.StopTime
	err       error
	calls     int
}

func makeFakeScheduleIndex() *fakeScheduleIndex {
	return &fakeScheduleIndex{stopTimes: make(map[stopTimeKey]*gtfs.StopTime)}
}

func (f *fakeScheduleIndex) addArrival(tripId, stopId string, stopSequence uint32, arrivalTime int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTimes[stopTimeKey{tripId, stopId, stopSequence}] = &gtfs.StopTime{
		DataSetId:     1,
		TripId:        tripId,
		StopSequence:  stopSequence,
		StopId:        stopId,
		ArrivalTime:   arrivalTime,
		DepartureTime: arrivalTime,
	}
}

func (f *fakeScheduleIndex) FindStopTime(_ context.Context,
	tripId string,
	stopId string,
	stopSequence uint32) (*gtfs.StopTime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.stopTimes[stopTimeKey{tripId, stopId, stopSequence}], nil
}

func (f *fakeScheduleIndex) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeCache keeps the latest position of each vehicle
type fakeCache struct {
	mu        sync.Mutex
	positions map[string]gtfs.VehiclePosition
	ttls      map[string]time.Duration
	err       error

	//vehicleErrs fails writes for individual vehicles
	vehicleErrs map[string]error
}

func makeFakeCache() *fakeCache {
	return &fakeCache{
		positions:   make(map[string]gtfs.VehiclePosition),
		ttls:        make(map[string]time.Duration),
		vehicleErrs: make(map[string]error),
	}
}

func (f *fakeCache) failVehicle(vehicleId string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vehicleErrs[vehicleId] = err
}

func (f *fakeCache) StorePosition(_ context.Context, position *gtfs.VehiclePosition, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err, present := f.vehicleErrs[position.VehicleId]; present {
		return err
	}
	f.positions[position.VehicleId] = *position
	f.ttls[position.VehicleId] = ttl
	return nil
}

func (f *fakeCache) get(vehicleId string) (gtfs.VehiclePosition, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	position, present := f.positions[vehicleId]
	return position, present
}

// fakeStore appends every recorded position
type fakeStore struct {
	mu   sync.Mutex
	rows []gtfs.VehiclePosition
	err  error

	//blocked holds writes for a vehicle until the channel is closed or the context ends
	blocked map[string]chan struct{}
}

// blockVehicle holds writes for vehicleId until the returned channel is closed
func (f *fakeStore) blockVehicle(vehicleId string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocked == nil {
		f.blocked = make(map[string]chan struct{})
	}
	release := make(chan struct{})
	f.blocked[vehicleId] = release
	return release
}

func (f *fakeStore) RecordPosition(ctx context.Context, position *gtfs.VehiclePosition) (int64, error) {
	f.mu.Lock()
	release, blocked := f.blocked[position.VehicleId]
	f.mu.Unlock()
	if blocked {
		select {
		case <-release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.rows = append(f.rows, *position)
	return int64(len(f.rows)), nil
}

func (f *fakeStore) recordedFor(vehicleId string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, row := range f.rows {
		if row.VehicleId == vehicleId {
			count++
		}
	}
	return count
}

func (f *fakeStore) recorded() []gtfs.VehiclePosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gtfs.VehiclePosition(nil), f.rows...)
}

// fakePublisher collects every published position
type fakePublisher struct {
	mu        sync.Mutex
	published []gtfs.VehiclePosition
	err       error
}

func (f *fakePublisher) PublishPosition(position *gtfs.VehiclePosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, *position)
	return nil
}

func (f *fakePublisher) publishedFor(vehicleId string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, position := range f.published {
		if position.VehicleId == vehicleId {
			count++
		}
	}
	return count
}

func (f *fakePublisher) messages() []gtfs.VehiclePosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gtfs.VehiclePosition(nil), f.published...)
}

// testVehicle describes one vehicle entity placed in a test feed
type testVehicle struct {
	entityId     string
	vehicleId    string
	routeId      string
	tripId       string
	stopId       string
	stopSequence uint32
	timestamp    time.Time
}

// buildFeed returns the encoded gtfs-rt FeedMessage reporting vehicles
func buildFeed(t *testing.T, headerTimestamp time.Time, vehicles ...testVehicle) []byte {
	incrementality := gtfsproto.FeedHeader_FULL_DATASET
	feedMessage := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      &incrementality,
			Timestamp:           proto.Uint64(uint64(headerTimestamp.Unix())),
		},
	}
	for i, v := range vehicles {
		entityId := v.entityId
		if entityId == "" {
			entityId = fmt.Sprintf("%d", i+1)
		}
		position := &gtfsproto.VehiclePosition{
			Trip: &gtfsproto.TripDescriptor{
				TripId:  proto.String(v.tripId),
				RouteId: proto.String(v.routeId),
			},
			Vehicle: &gtfsproto.VehicleDescriptor{
				Id: proto.String(v.vehicleId),
			},
			Position: &gtfsproto.Position{
				Latitude:  proto.Float32(40.6),
				Longitude: proto.Float32(-73.95),
			},
			Timestamp: proto.Uint64(uint64(v.timestamp.Unix())),
		}
		if v.stopId != "" {
			position.StopId = proto.String(v.stopId)
			position.CurrentStopSequence = proto.Uint32(v.stopSequence)
		}
		feedMessage.Entity = append(feedMessage.Entity, &gtfsproto.FeedEntity{
			Id:      proto.String(entityId),
			Vehicle: position,
		})
	}
	data, err := proto.Marshal(feedMessage)
	if err != nil {
		t.Fatalf("unable to marshal test feed: %v", err)
	}
	return data
}
