package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/OpenTransitTools/transitdelay/business/data/gtfs"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"time"
)

// ScheduleIndex finds scheduled stop times. Implementations must be safe for concurrent use
type ScheduleIndex interface {
	//FindStopTime returns nil with no error when no stop time is scheduled for the trip, stop and sequence
	FindStopTime(ctx context.Context, tripId string, stopId string, stopSequence uint32) (*gtfs.StopTime, error)
}

// PositionCache holds the latest gtfs.VehiclePosition of each vehicle for a limited time
type PositionCache interface {
	StorePosition(ctx context.Context, position *gtfs.VehiclePosition, ttl time.Duration) error
}

// PositionStore durably appends every gtfs.VehiclePosition
type PositionStore interface {
	RecordPosition(ctx context.Context, position *gtfs.VehiclePosition) (int64, error)
}

// PositionPublisher sends gtfs.VehiclePosition records to downstream consumers
type PositionPublisher interface {
	PublishPosition(position *gtfs.VehiclePosition) error
}

// DBScheduleIndex implements ScheduleIndex with the stop_time table
type DBScheduleIndex struct {
	db *sqlx.DB
}

// NewDBScheduleIndex creates DBScheduleIndex
func NewDBScheduleIndex(db *sqlx.DB) *DBScheduleIndex {
	return &DBScheduleIndex{db: db}
}

// FindStopTime implements ScheduleIndex
func (d *DBScheduleIndex) FindStopTime(ctx context.Context,
	tripId string,
	stopId string,
	stopSequence uint32) (*gtfs.StopTime, error) {
	return gtfs.FindStopTime(ctx, d.db, tripId, stopId, stopSequence)
}

// DBPositionStore implements PositionStore with the vehicle_position table
type DBPositionStore struct {
	db *sqlx.DB
}

// NewDBPositionStore creates DBPositionStore
func NewDBPositionStore(db *sqlx.DB) *DBPositionStore {
	return &DBPositionStore{db: db}
}

// RecordPosition implements PositionStore
func (d *DBPositionStore) RecordPosition(ctx context.Context, position *gtfs.VehiclePosition) (int64, error) {
	return gtfs.RecordVehiclePosition(ctx, d.db, position)
}

// RedisPositionCache implements PositionCache with redis, storing positions as json
// under gtfs.VehiclePositionCacheKey
type RedisPositionCache struct {
	client redis.Cmdable
}

// NewRedisPositionCache creates RedisPositionCache
func NewRedisPositionCache(client redis.Cmdable) *RedisPositionCache {
	return &RedisPositionCache{client: client}
}

// StorePosition implements PositionCache, replacing any earlier position for the vehicle
func (r *RedisPositionCache) StorePosition(ctx context.Context, position *gtfs.VehiclePosition, ttl time.Duration) error {
	data, err := json.Marshal(position)
	if err != nil {
		return fmt.Errorf("unable to marshal VehiclePosition: %w", err)
	}
	return r.client.Set(ctx, position.CacheKey(), data, ttl).Err()
}

// LoadPosition retrieves the cached position for vehicleId, nil when the vehicle has no unexpired position
func (r *RedisPositionCache) LoadPosition(ctx context.Context, vehicleId string) (*gtfs.VehiclePosition, error) {
	data, err := r.client.Get(ctx, gtfs.VehiclePositionCacheKey(vehicleId)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var position gtfs.VehiclePosition
	if err = json.Unmarshal(data, &position); err != nil {
		return nil, fmt.Errorf("unable to unmarshal cached VehiclePosition for %s: %w", vehicleId, err)
	}
	return &position, nil
}

// KeyHeader is the nats message header carrying the vehicle id of a published position
const KeyHeader = "Key"

// msgPublisher is the part of nats.Conn used to publish
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSPositionPublisher implements PositionPublisher, sending json positions on a nats subject
// with the vehicle id in KeyHeader
type NATSPositionPublisher struct {
	conn    msgPublisher
	subject string
}

// NewNATSPositionPublisher creates NATSPositionPublisher, conn is usually a *nats.Conn
func NewNATSPositionPublisher(conn msgPublisher, subject string) *NATSPositionPublisher {
	return &NATSPositionPublisher{conn: conn, subject: subject}
}

// PublishPosition implements PositionPublisher
func (n *NATSPositionPublisher) PublishPosition(position *gtfs.VehiclePosition) error {
	data, err := json.Marshal(position)
	if err != nil {
		return fmt.Errorf("unable to marshal VehiclePosition: %w", err)
	}
	msg := nats.NewMsg(n.subject)
	msg.Header.Set(KeyHeader, position.VehicleId)
	msg.Data = data
	return n.conn.PublishMsg(msg)
}
