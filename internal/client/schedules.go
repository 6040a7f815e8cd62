package client

import (
	"context"
	"net/http"
	"net/url"

	"trainschedule/internal/domain"
)

// Schedules wraps the /train-schedules endpoints.
type Schedules struct {
	c *Client
}

// NewSchedules returns a Schedules client.
func NewSchedules(c *Client) *Schedules { return &Schedules{c: c} }

// List returns all schedules, or those touching stationID when it is set.
func (s *Schedules) List(ctx context.Context, stationID string) ([]domain.Schedule, error) {
	var opts []RequestOption
	if stationID != "" {
		opts = append(opts, WithQuery(url.Values{"stationId": {stationID}}))
	}
	var out []domain.Schedule
	err := s.c.Do(ctx, http.MethodGet, "/train-schedules", nil, &out, opts...)
	return out, err
}

func (s *Schedules) Get(ctx context.Context, id string) (*domain.Schedule, error) {
	var out domain.Schedule
	if err := s.c.Do(ctx, http.MethodGet, "/train-schedules/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create submits a new schedule. Validation failures come back as *Error
// with the rejection reason in Code.
func (s *Schedules) Create(ctx context.Context, p domain.SchedulePatch) (*domain.Schedule, error) {
	var out domain.Schedule
	if err := s.c.Do(ctx, http.MethodPost, "/train-schedules", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Schedules) Update(ctx context.Context, id string, p domain.SchedulePatch) (*domain.Schedule, error) {
	var out domain.Schedule
	if err := s.c.Do(ctx, http.MethodPatch, "/train-schedules/"+url.PathEscape(id), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Schedules) Delete(ctx context.Context, id string) error {
	return s.c.Do(ctx, http.MethodDelete, "/train-schedules/"+url.PathEscape(id), nil, nil)
}
