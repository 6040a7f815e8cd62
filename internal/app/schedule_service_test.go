package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainschedule/internal/adapter/memory"
	"trainschedule/internal/app"
	"trainschedule/internal/domain"
)

type fixture struct {
	db        *memory.DB
	stations  *app.StationService
	schedules *app.ScheduleService
	reg       *prometheus.Registry
	kyiv      *domain.Station
	lviv      *domain.Station
	odesa     *domain.Station
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := memory.New()
	reg := prometheus.NewRegistry()
	f := &fixture{
		db:        db,
		stations:  app.NewStationService(db, db),
		schedules: app.NewScheduleService(db, db, app.NewMetrics(reg)),
		reg:       reg,
	}
	var err error
	f.kyiv, err = f.stations.Create(ctx, domain.Station{Name: "Київ-Пасажирський", City: "Київ"})
	require.NoError(t, err)
	f.lviv, err = f.stations.Create(ctx, domain.Station{Name: "Львів", City: "Львів"})
	require.NoError(t, err)
	f.odesa, err = f.stations.Create(ctx, domain.Station{Name: "Одеса-Головна", City: "Одеса"})
	require.NoError(t, err)
	return f
}

func (f *fixture) schedule(dep, arr *domain.Station, at time.Time) domain.Schedule {
	return domain.Schedule{
		TrainNumber:        "091K",
		DepartureStationID: dep.ID,
		ArrivalStationID:   arr.ID,
		DepartureTime:      at,
		ArrivalTime:        at.Add(6 * time.Hour),
	}
}

func (f *fixture) rejections(reason domain.Reason) float64 {
	c, err := f.reg.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range c {
		if mf.GetName() == "schedule_validation_rejections_total" {
			return counterFor(mf, "reason", string(reason))
		}
	}
	return 0
}

func counterFor(mf *dto.MetricFamily, label, value string) float64 {
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == label && l.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

var base = time.Date(2026, 5, 10, 7, 30, 0, 0, time.UTC)

func TestScheduleService_CreateAndRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := f.schedule(f.kyiv, f.lviv, base)
	in.DeparturePlatform = intp(3)
	created, err := f.schedules.Create(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := f.schedules.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DepartureStation)
	require.NotNil(t, got.ArrivalStation)
	assert.Equal(t, "Київ-Пасажирський", got.DepartureStation.Name)
	assert.Equal(t, "Львів", got.ArrivalStation.Name)
	assert.Equal(t, 3, *got.DeparturePlatform)
	assert.Nil(t, got.ArrivalPlatform)
}

func TestScheduleService_CreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	same := f.schedule(f.kyiv, f.kyiv, base)
	_, err := f.schedules.Create(ctx, same)
	assert.ErrorIs(t, err, domain.ErrValidation)

	backwards := f.schedule(f.kyiv, f.lviv, base)
	backwards.ArrivalTime = base
	_, err = f.schedules.Create(ctx, backwards)
	assert.ErrorIs(t, err, domain.ErrValidation)

	missing := f.schedule(f.kyiv, &domain.Station{ID: "nope"}, base)
	_, err = f.schedules.Create(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := f.schedules.List(ctx, domain.ScheduleFilter{})
	require.NoError(t, err)
	assert.Empty(t, list, "rejected schedules must not be persisted")

	assert.Equal(t, 1.0, f.rejections(domain.ReasonSameStation))
	assert.Equal(t, 1.0, f.rejections(domain.ReasonBadOrder))
	series, err := testutil.GatherAndCount(f.reg, "schedule_validation_rejections_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestScheduleService_UpdateMergesBeforeValidating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.schedules.Create(ctx, f.schedule(f.kyiv, f.lviv, base))
	require.NoError(t, err)

	t.Run("arrival station set to departure", func(t *testing.T) {
		id := f.kyiv.ID
		_, err := f.schedules.Update(ctx, created.ID, domain.SchedulePatch{ArrivalStationID: &id})
		var ve *domain.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, domain.ReasonSameStation, ve.Reason)
	})

	t.Run("departure moved past stored arrival", func(t *testing.T) {
		dep := created.ArrivalTime.Add(time.Hour)
		_, err := f.schedules.Update(ctx, created.ID, domain.SchedulePatch{DepartureTime: &dep})
		var ve *domain.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, domain.ReasonBadOrder, ve.Reason)
	})

	t.Run("changed station must exist", func(t *testing.T) {
		id := "missing"
		_, err := f.schedules.Update(ctx, created.ID, domain.SchedulePatch{ArrivalStationID: &id})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("valid partial update", func(t *testing.T) {
		id := f.odesa.ID
		num := "105"
		updated, err := f.schedules.Update(ctx, created.ID, domain.SchedulePatch{ArrivalStationID: &id, TrainNumber: &num})
		require.NoError(t, err)
		assert.Equal(t, f.odesa.ID, updated.ArrivalStationID)
		assert.Equal(t, "105", updated.TrainNumber)
		assert.Equal(t, created.DepartureTime, updated.DepartureTime)
		require.NotNil(t, updated.ArrivalStation)
		assert.Equal(t, "Одеса-Головна", updated.ArrivalStation.Name)
	})

	t.Run("unknown schedule", func(t *testing.T) {
		num := "1"
		_, err := f.schedules.Update(ctx, "missing", domain.SchedulePatch{TrainNumber: &num})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestScheduleService_ListByStation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.schedules.Create(ctx, f.schedule(f.lviv, f.kyiv, base.Add(2*time.Hour)))
	require.NoError(t, err)
	_, err = f.schedules.Create(ctx, f.schedule(f.kyiv, f.lviv, base))
	require.NoError(t, err)
	_, err = f.schedules.Create(ctx, f.schedule(f.lviv, f.odesa, base))
	require.NoError(t, err)

	all, err := f.schedules.List(ctx, domain.ScheduleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	kyiv, err := f.schedules.List(ctx, domain.ScheduleFilter{StationID: f.kyiv.ID})
	require.NoError(t, err)
	require.Len(t, kyiv, 2)
	assert.True(t, kyiv[0].DepartureTime.Before(kyiv[1].DepartureTime), "ordered by departure")
}

func TestStationService_DeleteReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.schedules.Create(ctx, f.schedule(f.kyiv, f.lviv, base))
	require.NoError(t, err)

	err = f.stations.Delete(ctx, f.lviv.ID)
	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, domain.ReasonReferencedBySchedule, ce.Reason)
	assert.Equal(t, 1, ce.Count)

	_, err = f.stations.Get(ctx, f.lviv.ID)
	require.NoError(t, err, "station must survive a refused delete")

	require.NoError(t, f.schedules.Delete(ctx, created.ID))
	require.NoError(t, f.stations.Delete(ctx, f.lviv.ID))
	_, err = f.stations.Get(ctx, f.lviv.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func intp(v int) *int { return &v }
