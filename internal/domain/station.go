package domain

import (
	"context"
	"strings"
	"time"
)

// Station is a named railway station in a city.
type Station struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StationPatch carries the fields of a partial station update.
type StationPatch struct {
	Name *string `json:"name,omitempty"`
	City *string `json:"city,omitempty"`
}

// StationRepository is the port for station persistence.
type StationRepository interface {
	ListStations(ctx context.Context) ([]Station, error)
	SearchStations(ctx context.Context, query string, limit int) ([]Station, error)
	GetStation(ctx context.Context, id string) (*Station, error)
	CreateStation(ctx context.Context, st Station) (*Station, error)
	UpdateStation(ctx context.Context, st Station) (*Station, error)
	DeleteStation(ctx context.Context, id string) error
	CountStations(ctx context.Context) (int, error)
}

// ValidateStation checks that name and city are present.
func ValidateStation(st Station) error {
	if strings.TrimSpace(st.Name) == "" {
		return Reject(ReasonRequired, "name", "must not be empty")
	}
	if strings.TrimSpace(st.City) == "" {
		return Reject(ReasonRequired, "city", "must not be empty")
	}
	return nil
}

// MergeStation applies p over existing.
func MergeStation(existing Station, p StationPatch) Station {
	if p.Name != nil {
		existing.Name = *p.Name
	}
	if p.City != nil {
		existing.City = *p.City
	}
	return existing
}
