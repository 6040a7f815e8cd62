package client

import (
	"context"
	"net/http"
	"net/url"

	"trainschedule/internal/domain"
)

// Stations wraps the /stations endpoints.
type Stations struct {
	c *Client
}

// NewStations returns a Stations client. Mutations need c to carry a session.
func NewStations(c *Client) *Stations { return &Stations{c: c} }

func (s *Stations) List(ctx context.Context) ([]domain.Station, error) {
	var out []domain.Station
	err := s.c.Do(ctx, http.MethodGet, "/stations", nil, &out)
	return out, err
}

// Search returns stations whose name contains query.
func (s *Stations) Search(ctx context.Context, query string) ([]domain.Station, error) {
	var out []domain.Station
	err := s.c.Do(ctx, http.MethodGet, "/stations/search/name", nil, &out,
		WithQuery(url.Values{"query": {query}}))
	return out, err
}

func (s *Stations) Get(ctx context.Context, id string) (*domain.Station, error) {
	var out domain.Station
	if err := s.c.Do(ctx, http.MethodGet, "/stations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Stations) Create(ctx context.Context, name, city string) (*domain.Station, error) {
	var out domain.Station
	body := domain.StationPatch{Name: &name, City: &city}
	if err := s.c.Do(ctx, http.MethodPost, "/stations", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update applies the non-nil fields of p.
func (s *Stations) Update(ctx context.Context, id string, p domain.StationPatch) (*domain.Station, error) {
	var out domain.Station
	if err := s.c.Do(ctx, http.MethodPatch, "/stations/"+url.PathEscape(id), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Stations) Delete(ctx context.Context, id string) error {
	return s.c.Do(ctx, http.MethodDelete, "/stations/"+url.PathEscape(id), nil, nil)
}
