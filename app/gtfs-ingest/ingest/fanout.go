package ingest

import (
	"context"
	"fmt"
	"github.com/OpenTransitTools/transitdelay/business/data/gtfs"
	"log"
	"time"
)

// sink names used in SinkError and metric labels
const (
	cacheSink   = "cache"
	storeSink   = "store"
	publishSink = "publish"
)

// SinkError describes a failed write of one vehicle's position to one sink
type SinkError struct {
	Sink      string
	VehicleId string
	Err       error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("writing vehicle %s to %s failed: %v", e.VehicleId, e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// fanOutResult reports which sinks received a position
type fanOutResult struct {
	cached    bool
	recorded  bool
	published bool
}

// fanOut writes finished positions to the cache, the store and the publisher, in that order
type fanOut struct {
	log       *log.Logger
	cache     PositionCache
	store     PositionStore
	publisher PositionPublisher
	cacheTTL  time.Duration
	metrics   *Metrics
}

func makeFanOut(log *log.Logger,
	cache PositionCache,
	store PositionStore,
	publisher PositionPublisher,
	cacheTTL time.Duration,
	metrics *Metrics) *fanOut {
	return &fanOut{
		log:       log,
		cache:     cache,
		store:     store,
		publisher: publisher,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
	}
}

// write sends position to each sink. A cache failure drops the position before it is recorded or published,
// a store failure drops it before it is published. A publish failure does not affect the earlier writes
func (f *fanOut) write(ctx context.Context, position *gtfs.VehiclePosition) fanOutResult {
	result := fanOutResult{}

	if err := f.cache.StorePosition(ctx, position, f.cacheTTL); err != nil {
		f.failed(&SinkError{Sink: cacheSink, VehicleId: position.VehicleId, Err: err})
		return result
	}
	result.cached = true
	f.metrics.SinkWrites.WithLabelValues(cacheSink).Inc()

	if _, err := f.store.RecordPosition(ctx, position); err != nil {
		f.failed(&SinkError{Sink: storeSink, VehicleId: position.VehicleId, Err: err})
		return result
	}
	result.recorded = true
	f.metrics.SinkWrites.WithLabelValues(storeSink).Inc()

	if err := f.publisher.PublishPosition(position); err != nil {
		f.failed(&SinkError{Sink: publishSink, VehicleId: position.VehicleId, Err: err})
		return result
	}
	result.published = true
	f.metrics.SinkWrites.WithLabelValues(publishSink).Inc()
	return result
}

func (f *fanOut) failed(err *SinkError) {
	f.metrics.SinkErrors.WithLabelValues(err.Sink).Inc()
	f.log.Printf("%v\n", err)
}
