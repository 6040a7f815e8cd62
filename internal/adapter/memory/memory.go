// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trainschedule/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu        sync.Mutex
	stations  map[string]domain.Station
	schedules map[string]domain.Schedule
	users     []*domain.User
	sessions  map[string]domain.Session

	now func() time.Time
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		stations:  make(map[string]domain.Station),
		schedules: make(map[string]domain.Schedule),
		sessions:  make(map[string]domain.Session),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ensure interfaces are met.
var _ domain.StationRepository = (*DB)(nil)
var _ domain.ScheduleRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- StationRepository ---

// ListStations returns all stations ordered by name.
func (db *DB) ListStations(ctx context.Context) ([]domain.Station, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Station, 0, len(db.stations))
	for _, st := range db.stations {
		out = append(out, st)
	}
	sortStations(out)
	return out, nil
}

// SearchStations returns stations whose name contains query, ignoring case.
func (db *DB) SearchStations(ctx context.Context, query string, limit int) ([]domain.Station, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	q := strings.ToLower(query)
	out := []domain.Station{}
	for _, st := range db.stations {
		if strings.Contains(strings.ToLower(st.Name), q) {
			out = append(out, st)
		}
	}
	sortStations(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetStation retrieves a station by ID.
func (db *DB) GetStation(ctx context.Context, id string) (*domain.Station, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	st, ok := db.stations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

// CreateStation stores a new station with a generated ID.
func (db *DB) CreateStation(ctx context.Context, st domain.Station) (*domain.Station, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.now()
	st.ID = uuid.NewString()
	st.CreatedAt, st.UpdatedAt = now, now
	db.stations[st.ID] = st
	return &st, nil
}

// UpdateStation overwrites the name and city of an existing station.
func (db *DB) UpdateStation(ctx context.Context, st domain.Station) (*domain.Station, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cur, ok := db.stations[st.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cur.Name, cur.City = st.Name, st.City
	cur.UpdatedAt = db.now()
	db.stations[st.ID] = cur
	return &cur, nil
}

// DeleteStation removes a station. Stations referenced by a schedule are
// refused the way the foreign key refuses them in Postgres.
func (db *DB) DeleteStation(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.stations[id]; !ok {
		return domain.ErrNotFound
	}
	if n := db.countByStation(id); n > 0 {
		return &domain.ConflictError{Reason: domain.ReasonReferencedBySchedule, Message: "station is referenced by a schedule", Count: n}
	}
	delete(db.stations, id)
	return nil
}

// CountStations returns the number of stations.
func (db *DB) CountStations(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.stations), nil
}

func sortStations(s []domain.Station) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Name != s[j].Name {
			return s[i].Name < s[j].Name
		}
		return s[i].ID < s[j].ID
	})
}

// --- ScheduleRepository ---

// ListSchedules returns schedules ordered by departure time.
func (db *DB) ListSchedules(ctx context.Context, f domain.ScheduleFilter) ([]domain.Schedule, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := []domain.Schedule{}
	for _, s := range db.schedules {
		if f.StationID != "" && s.DepartureStationID != f.StationID && s.ArrivalStationID != f.StationID {
			continue
		}
		out = append(out, db.withStations(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DepartureTime.Equal(out[j].DepartureTime) {
			return out[i].DepartureTime.Before(out[j].DepartureTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetSchedule retrieves a schedule by ID with its stations embedded.
func (db *DB) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.schedules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	s = db.withStations(s)
	return &s, nil
}

// CreateSchedule stores a new schedule with a generated ID.
func (db *DB) CreateSchedule(ctx context.Context, s domain.Schedule) (*domain.Schedule, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.checkRefs(s); err != nil {
		return nil, err
	}
	now := db.now()
	s.ID = uuid.NewString()
	s.CreatedAt, s.UpdatedAt = now, now
	s = detach(s)
	db.schedules[s.ID] = s
	s = db.withStations(s)
	return &s, nil
}

// UpdateSchedule overwrites an existing schedule.
func (db *DB) UpdateSchedule(ctx context.Context, s domain.Schedule) (*domain.Schedule, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cur, ok := db.schedules[s.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := db.checkRefs(s); err != nil {
		return nil, err
	}
	s.CreatedAt = cur.CreatedAt
	s.UpdatedAt = db.now()
	s = detach(s)
	db.schedules[s.ID] = s
	s = db.withStations(s)
	return &s, nil
}

// DeleteSchedule removes a schedule.
func (db *DB) DeleteSchedule(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.schedules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(db.schedules, id)
	return nil
}

// CountSchedulesByStation counts schedules departing from or arriving at stationID.
func (db *DB) CountSchedulesByStation(ctx context.Context, stationID string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.countByStation(stationID), nil
}

func (db *DB) countByStation(stationID string) int {
	n := 0
	for _, s := range db.schedules {
		if s.DepartureStationID == stationID || s.ArrivalStationID == stationID {
			n++
		}
	}
	return n
}

func (db *DB) checkRefs(s domain.Schedule) error {
	if _, ok := db.stations[s.DepartureStationID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := db.stations[s.ArrivalStationID]; !ok {
		return domain.ErrNotFound
	}
	return nil
}

// withStations must be called with db.mu held.
func (db *DB) withStations(s domain.Schedule) domain.Schedule {
	if st, ok := db.stations[s.DepartureStationID]; ok {
		s.DepartureStation = &st
	}
	if st, ok := db.stations[s.ArrivalStationID]; ok {
		s.ArrivalStation = &st
	}
	return s
}

// detach drops embedded stations and copies platform pointers so stored
// records never alias caller memory.
func detach(s domain.Schedule) domain.Schedule {
	s.DepartureStation, s.ArrivalStation = nil, nil
	if s.DeparturePlatform != nil {
		v := *s.DeparturePlatform
		s.DeparturePlatform = &v
	}
	if s.ArrivalPlatform != nil {
		v := *s.ArrivalPlatform
		s.ArrivalPlatform = &v
	}
	return s
}

// --- UserRepository ---

// GetByEmail retrieves a user by email.
func (db *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == email {
			return nil, domain.ErrDuplicate
		}
	}

	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    db.now(),
	}
	db.users = append(db.users, u)
	cp := *u
	return &cp, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// --- SessionRepository ---

// SessionRepo implements refresh session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create stores a refresh session.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.db.now()
	}
	r.db.sessions[s.ID] = s
	return nil
}

// Get retrieves a live session by ID. Expired sessions are dropped on sight.
func (r *SessionRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.db.now().After(s.ExpiresAt) {
		delete(r.db.sessions, id)
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.db.sessions, id)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.now()
	var n int64
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
			n++
		}
	}
	return n, nil
}
