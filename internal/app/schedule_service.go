package app

import (
	"context"
	"fmt"

	"trainschedule/internal/domain"
)

// ScheduleService encapsulates schedule use cases. Every write passes through
// domain.ValidateSchedule before it reaches the repository.
type ScheduleService struct {
	schedules domain.ScheduleRepository
	stations  domain.StationRepository
	metrics   *Metrics
}

// NewScheduleService creates a ScheduleService. metrics may be nil.
func NewScheduleService(schedules domain.ScheduleRepository, stations domain.StationRepository, metrics *Metrics) *ScheduleService {
	return &ScheduleService{schedules: schedules, stations: stations, metrics: metrics}
}

// List returns schedules ordered by departure time, optionally restricted to
// those departing from or arriving at one station.
func (s *ScheduleService) List(ctx context.Context, f domain.ScheduleFilter) ([]domain.Schedule, error) {
	return s.schedules.ListSchedules(ctx, f)
}

// Get returns one schedule or domain.ErrNotFound.
func (s *ScheduleService) Get(ctx context.Context, id string) (*domain.Schedule, error) {
	return s.schedules.GetSchedule(ctx, id)
}

// Create validates and stores a new schedule.
func (s *ScheduleService) Create(ctx context.Context, in domain.Schedule) (*domain.Schedule, error) {
	in.DepartureStation, in.ArrivalStation = nil, nil
	if err := domain.ValidateSchedule(in); err != nil {
		s.metrics.observeRejection(err)
		return nil, err
	}
	if err := s.requireStations(ctx, in.DepartureStationID, in.ArrivalStationID); err != nil {
		return nil, err
	}
	return s.schedules.CreateSchedule(ctx, in)
}

// Update merges p into the stored schedule and validates the result as a whole.
func (s *ScheduleService) Update(ctx context.Context, id string, p domain.SchedulePatch) (*domain.Schedule, error) {
	existing, err := s.schedules.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := domain.MergeSchedule(*existing, p)
	if err := domain.ValidateSchedule(merged); err != nil {
		s.metrics.observeRejection(err)
		return nil, err
	}

	var changed []string
	if merged.DepartureStationID != existing.DepartureStationID {
		changed = append(changed, merged.DepartureStationID)
	}
	if merged.ArrivalStationID != existing.ArrivalStationID {
		changed = append(changed, merged.ArrivalStationID)
	}
	if err := s.requireStations(ctx, changed...); err != nil {
		return nil, err
	}
	return s.schedules.UpdateSchedule(ctx, merged)
}

// Delete removes a schedule.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	return s.schedules.DeleteSchedule(ctx, id)
}

func (s *ScheduleService) requireStations(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := s.stations.GetStation(ctx, id); err != nil {
			return fmt.Errorf("station %s: %w", id, err)
		}
	}
	return nil
}
