package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"trainschedule/internal/domain"
)

const stationColumns = "id, name, city, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(r rowScanner) (*domain.Station, error) {
	var st domain.Station
	if err := r.Scan(&st.ID, &st.Name, &st.City, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

func (d *DB) queryStations(ctx context.Context, query string, args ...any) ([]domain.Station, error) {
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Station{}
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// ListStations returns all stations ordered by name.
func (d *DB) ListStations(ctx context.Context) ([]domain.Station, error) {
	return d.queryStations(ctx, "SELECT "+stationColumns+" FROM stations ORDER BY name, id")
}

// SearchStations returns stations whose name contains query, ignoring case.
func (d *DB) SearchStations(ctx context.Context, query string, limit int) ([]domain.Station, error) {
	pattern := "%" + escapeLike(query) + "%"
	return d.queryStations(ctx,
		"SELECT "+stationColumns+" FROM stations WHERE name ILIKE $1 ORDER BY name, id LIMIT $2",
		pattern, limit,
	)
}

// GetStation retrieves a station by ID.
func (d *DB) GetStation(ctx context.Context, id string) (*domain.Station, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	st, err := scanStation(d.sql.QueryRowContext(ctx,
		"SELECT "+stationColumns+" FROM stations WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return st, err
}

// CreateStation inserts a station with a generated ID.
func (d *DB) CreateStation(ctx context.Context, st domain.Station) (*domain.Station, error) {
	now := time.Now().UTC()
	return scanStation(d.sql.QueryRowContext(ctx,
		"INSERT INTO stations (id, name, city, created_at, updated_at) VALUES ($1, $2, $3, $4, $4) RETURNING "+stationColumns,
		uuid.NewString(), st.Name, st.City, now,
	))
}

// UpdateStation overwrites the name and city of an existing station.
func (d *DB) UpdateStation(ctx context.Context, st domain.Station) (*domain.Station, error) {
	if !validID(st.ID) {
		return nil, domain.ErrNotFound
	}
	out, err := scanStation(d.sql.QueryRowContext(ctx,
		"UPDATE stations SET name = $2, city = $3, updated_at = $4 WHERE id = $1 RETURNING "+stationColumns,
		st.ID, st.Name, st.City, time.Now().UTC(),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return out, err
}

// DeleteStation removes a station. The foreign keys from train_schedules
// refuse the delete while the station is referenced.
func (d *DB) DeleteStation(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	res, err := d.sql.ExecContext(ctx, "DELETE FROM stations WHERE id = $1", id)
	if pqCode(err) == codeForeignKeyViolation {
		return &domain.ConflictError{Reason: domain.ReasonReferencedBySchedule, Message: "station is referenced by a schedule"}
	}
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// CountStations returns the number of stations.
func (d *DB) CountStations(ctx context.Context) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM stations").Scan(&n)
	return n, err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
