package gtfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/OpenTransitTools/transitdelay/foundation/database"
	"github.com/jmoiron/sqlx"
)

// StopTime contains a record from a gtfs stop_times.txt file
// represents a scheduled arrival and departure at a stop.
// ArrivalTime and DepartureTime are seconds after midnight and may exceed 24 hours for trips running past midnight
type StopTime struct {
	DataSetId         int64   `db:"data_set_id" json:"data_set_id"`
	TripId            string  `db:"trip_id" json:"trip_id"`
	StopSequence      uint32  `db:"stop_sequence" json:"stop_sequence"`
	StopId            string  `db:"stop_id" json:"stop_id"`
	ArrivalTime       int     `db:"arrival_time" json:"arrival_time"`
	DepartureTime     int     `db:"departure_time" json:"departure_time"`
	ShapeDistTraveled float64 `db:"shape_dist_traveled" json:"shape_dist_traveled"`
	Timepoint         int     `db:"timepoint" json:"timepoint"`
}

// FindStopTime retrieves the StopTime scheduled for tripId at stopId with stopSequence from the most recently
// saved data set. Returns nil and no error when nothing matches.
func FindStopTime(ctx context.Context,
	db *sqlx.DB,
	tripId string,
	stopId string,
	stopSequence uint32) (*StopTime, error) {

	statementString := "select st.* from stop_time st " +
		"where st.data_set_id = (select id from data_set where saved_at is not null " +
		"order by saved_at desc, downloaded_at desc limit 1) " +
		"and st.trip_id = :trip_id " +
		"and st.stop_id = :stop_id " +
		"and st.stop_sequence = :stop_sequence"
	query, args, err := database.PrepareNamedQueryFromMap(statementString, db, map[string]interface{}{
		"trip_id":       tripId,
		"stop_id":       stopId,
		"stop_sequence": stopSequence,
	})
	if err != nil {
		return nil, err
	}

	stopTime := StopTime{}
	err = db.GetContext(ctx, &stopTime, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve stop_time for trip %s stop %s sequence %d, error: %w",
			tripId, stopId, stopSequence, err)
	}
	return &stopTime, nil
}
