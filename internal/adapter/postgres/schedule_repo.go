package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"trainschedule/internal/domain"
)

const scheduleSelect = `
SELECT s.id, s.train_number, s.departure_station_id, s.arrival_station_id,
       s.departure_time, s.arrival_time, s.departure_platform, s.arrival_platform,
       s.created_at, s.updated_at,
       ds.id, ds.name, ds.city, ds.created_at, ds.updated_at,
       ar.id, ar.name, ar.city, ar.created_at, ar.updated_at
FROM train_schedules s
JOIN stations ds ON ds.id = s.departure_station_id
JOIN stations ar ON ar.id = s.arrival_station_id`

func scanSchedule(r rowScanner) (*domain.Schedule, error) {
	var (
		s        domain.Schedule
		dep, arr domain.Station
		dp, ap   sql.NullInt64
	)
	err := r.Scan(
		&s.ID, &s.TrainNumber, &s.DepartureStationID, &s.ArrivalStationID,
		&s.DepartureTime, &s.ArrivalTime, &dp, &ap,
		&s.CreatedAt, &s.UpdatedAt,
		&dep.ID, &dep.Name, &dep.City, &dep.CreatedAt, &dep.UpdatedAt,
		&arr.ID, &arr.Name, &arr.City, &arr.CreatedAt, &arr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.DeparturePlatform = nullInt(dp)
	s.ArrivalPlatform = nullInt(ap)
	s.DepartureStation, s.ArrivalStation = &dep, &arr
	return &s, nil
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func intArg(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// ListSchedules returns schedules ordered by departure time.
func (d *DB) ListSchedules(ctx context.Context, f domain.ScheduleFilter) ([]domain.Schedule, error) {
	query := scheduleSelect
	var args []any
	if f.StationID != "" {
		if !validID(f.StationID) {
			return []domain.Schedule{}, nil
		}
		query += " WHERE s.departure_station_id = $1 OR s.arrival_station_id = $1"
		args = append(args, f.StationID)
	}
	query += " ORDER BY s.departure_time, s.id"

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetSchedule retrieves a schedule by ID with its stations embedded.
func (d *DB) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	s, err := scanSchedule(d.sql.QueryRowContext(ctx, scheduleSelect+" WHERE s.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

// CreateSchedule inserts a schedule with a generated ID.
func (d *DB) CreateSchedule(ctx context.Context, s domain.Schedule) (*domain.Schedule, error) {
	if !validID(s.DepartureStationID) || !validID(s.ArrivalStationID) {
		return nil, domain.ErrNotFound
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO train_schedules (id, train_number, departure_station_id, arrival_station_id,
    departure_time, arrival_time, departure_platform, arrival_platform, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		id, s.TrainNumber, s.DepartureStationID, s.ArrivalStationID,
		s.DepartureTime, s.ArrivalTime, intArg(s.DeparturePlatform), intArg(s.ArrivalPlatform), now,
	)
	if err := translateWriteErr(err); err != nil {
		return nil, err
	}
	return d.GetSchedule(ctx, id)
}

// UpdateSchedule overwrites an existing schedule.
func (d *DB) UpdateSchedule(ctx context.Context, s domain.Schedule) (*domain.Schedule, error) {
	if !validID(s.ID) || !validID(s.DepartureStationID) || !validID(s.ArrivalStationID) {
		return nil, domain.ErrNotFound
	}
	res, err := d.sql.ExecContext(ctx, `
UPDATE train_schedules SET train_number = $2, departure_station_id = $3, arrival_station_id = $4,
    departure_time = $5, arrival_time = $6, departure_platform = $7, arrival_platform = $8, updated_at = $9
WHERE id = $1`,
		s.ID, s.TrainNumber, s.DepartureStationID, s.ArrivalStationID,
		s.DepartureTime, s.ArrivalTime, intArg(s.DeparturePlatform), intArg(s.ArrivalPlatform), time.Now().UTC(),
	)
	if err := translateWriteErr(err); err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return d.GetSchedule(ctx, s.ID)
}

// DeleteSchedule removes a schedule.
func (d *DB) DeleteSchedule(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	res, err := d.sql.ExecContext(ctx, "DELETE FROM train_schedules WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// CountSchedulesByStation counts schedules departing from or arriving at stationID.
func (d *DB) CountSchedulesByStation(ctx context.Context, stationID string) (int, error) {
	if !validID(stationID) {
		return 0, nil
	}
	var n int
	err := d.sql.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM train_schedules WHERE departure_station_id = $1 OR arrival_station_id = $1",
		stationID,
	).Scan(&n)
	return n, err
}

// translateWriteErr maps constraint violations that slipped past the service
// checks onto domain errors.
func translateWriteErr(err error) error {
	switch pqCode(err) {
	case "":
		return err
	case codeForeignKeyViolation:
		return domain.ErrNotFound
	case codeCheckViolation:
		return domain.Reject(domain.ReasonOutOfRange, "", "schedule violates a table constraint")
	default:
		return err
	}
}
