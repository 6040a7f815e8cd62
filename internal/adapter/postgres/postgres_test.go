package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trainschedule/internal/domain"
)

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"Київ":    "Київ",
		"50%":     `50\%`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	}
	for in, want := range tests {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidID(t *testing.T) {
	if !validID(uuid.NewString()) {
		t.Error("expected a generated uuid to be valid")
	}
	for _, id := range []string{"", "missing", "123"} {
		if validID(id) {
			t.Errorf("validID(%q) = true", id)
		}
	}
}

func TestTranslateWriteErr(t *testing.T) {
	if err := translateWriteErr(nil); err != nil {
		t.Errorf("nil should pass through, got %v", err)
	}

	fk := fmt.Errorf("insert: %w", &pq.Error{Code: codeForeignKeyViolation})
	if err := translateWriteErr(fk); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for FK violation, got %v", err)
	}

	var ve *domain.ValidationError
	if err := translateWriteErr(&pq.Error{Code: codeCheckViolation}); !errors.As(err, &ve) || ve.Reason != domain.ReasonOutOfRange {
		t.Errorf("expected OUT_OF_RANGE for check violation, got %v", err)
	}

	other := errors.New("boom")
	if err := translateWriteErr(other); err != other {
		t.Errorf("expected unrelated error unchanged, got %v", err)
	}
}

// TestIntegration runs against a real database when TEST_DATABASE_URL is set.
func TestIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	kyiv, err := db.CreateStation(ctx, domain.Station{Name: "Київ " + suffix, City: "Київ"})
	if err != nil {
		t.Fatalf("CreateStation: %v", err)
	}
	lviv, err := db.CreateStation(ctx, domain.Station{Name: "Львів " + suffix, City: "Львів"})
	if err != nil {
		t.Fatalf("CreateStation: %v", err)
	}

	found, err := db.SearchStations(ctx, "Київ "+suffix, 10)
	if err != nil || len(found) != 1 || found[0].ID != kyiv.ID {
		t.Fatalf("SearchStations: %v %+v", err, found)
	}

	dep := time.Now().UTC().Truncate(time.Second)
	platform := 3
	s, err := db.CreateSchedule(ctx, domain.Schedule{
		TrainNumber:        "91",
		DepartureStationID: kyiv.ID,
		ArrivalStationID:   lviv.ID,
		DepartureTime:      dep,
		ArrivalTime:        dep.Add(5 * time.Hour),
		ArrivalPlatform:    &platform,
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if s.ArrivalStation == nil || s.ArrivalStation.ID != lviv.ID || s.ArrivalPlatform == nil || *s.ArrivalPlatform != 3 {
		t.Errorf("unexpected schedule %+v", s)
	}

	var ce *domain.ConflictError
	if err := db.DeleteStation(ctx, lviv.ID); !errors.As(err, &ce) {
		t.Errorf("expected ConflictError deleting a referenced station, got %v", err)
	}

	if _, err := db.CreateSchedule(ctx, domain.Schedule{
		TrainNumber:        "92",
		DepartureStationID: kyiv.ID,
		ArrivalStationID:   uuid.NewString(),
		DepartureTime:      dep,
		ArrivalTime:        dep.Add(time.Hour),
	}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown station, got %v", err)
	}

	if err := db.DeleteSchedule(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSchedule: %v", err)
	}
	for _, id := range []string{kyiv.ID, lviv.ID} {
		if err := db.DeleteStation(ctx, id); err != nil {
			t.Errorf("DeleteStation: %v", err)
		}
	}
}
