package gtfs

import (
	"context"
	"fmt"
	"github.com/jmoiron/sqlx"
	"time"
)

// VehiclePositionKeyPrefix prefixes the vehicle id in cache keys holding the latest VehiclePosition of a vehicle
const VehiclePositionKeyPrefix = "vehicle_position:"

// VehiclePosition is a position reported by a vehicle in a gtfs-rt feed along with its estimated schedule delay.
// A VehiclePosition is not modified once its delay has been estimated.
type VehiclePosition struct {
	VehicleId string `db:"vehicle_id" json:"vehicle_id"`
	TripId    string `db:"trip_id" json:"trip_id"`
	RouteId   string `db:"route_id" json:"route_id"`
	//StopId is nil when the vehicle did not report a current stop
	StopId    *string `db:"stop_id" json:"stop_id"`
	Latitude  float64 `db:"latitude" json:"latitude"`
	Longitude float64 `db:"longitude" json:"longitude"`
	//Timestamp is when the vehicle reported the position, in the agency's time zone
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	//DelaySeconds is how late the vehicle is compared to its schedule, negative when early.
	//zero when DelayKnown is false
	DelaySeconds int `db:"delay" json:"delay"`
	//DelayKnown is false when no scheduled stop time could be found for the position
	DelayKnown bool `db:"delay_known" json:"delay_known"`
	//Holiday is true when Timestamp falls on a holiday observed by the agency
	Holiday bool `db:"holiday" json:"holiday"`
}

// VehiclePositionCacheKey returns the cache key holding the latest VehiclePosition for vehicleId
func VehiclePositionCacheKey(vehicleId string) string {
	return VehiclePositionKeyPrefix + vehicleId
}

// CacheKey returns the cache key for the vehicle reporting v
func (v *VehiclePosition) CacheKey() string {
	return VehiclePositionCacheKey(v.VehicleId)
}

func (v *VehiclePosition) String() string {
	stopId := "unknown"
	if v.StopId != nil {
		stopId = *v.StopId
	}
	return fmt.Sprintf("VehiclePosition{vehicle:%s, trip:%s, route:%s, stop:%s, at:%s, delay:%d, known:%t}",
		v.VehicleId, v.TripId, v.RouteId, stopId, v.Timestamp.Format(time.RFC3339), v.DelaySeconds, v.DelayKnown)
}

// vehiclePositionRow is a row in the vehicle_position table
type vehiclePositionRow struct {
	VehiclePosition
	CreatedAt time.Time `db:"created_at"`
}

// RecordVehiclePosition appends position as a new row in the vehicle_position table.
// Rows are never updated, each call produces a new row. Returns the generated id of the row
func RecordVehiclePosition(ctx context.Context, db *sqlx.DB, position *VehiclePosition) (int64, error) {
	row := vehiclePositionRow{
		VehiclePosition: *position,
		CreatedAt:       time.Now(),
	}
	statementString := "insert into vehicle_position ( " +
		"vehicle_id, " +
		"trip_id, " +
		"route_id, " +
		"stop_id, " +
		"latitude, " +
		"longitude, " +
		"timestamp, " +
		"delay, " +
		"delay_known, " +
		"holiday, " +
		"created_at) " +
		"values (" +
		":vehicle_id, " +
		":trip_id, " +
		":route_id, " +
		":stop_id, " +
		":latitude, " +
		":longitude, " +
		":timestamp, " +
		":delay, " +
		":delay_known, " +
		":holiday, " +
		":created_at) " +
		"returning id"
	query, args, err := sqlx.Named(statementString, row)
	if err != nil {
		return 0, err
	}
	query = db.Rebind(query)
	var id int64
	err = db.QueryRowxContext(ctx, query, args...).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("unable to insert vehicle_position for vehicle %s, error: %w", position.VehicleId, err)
	}
	return id, nil
}
