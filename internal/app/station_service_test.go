package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainschedule/internal/adapter/memory"
	"trainschedule/internal/app"
	"trainschedule/internal/domain"
)

func TestStationService_SeedDefaults(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	svc := app.NewStationService(db, db)

	n, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(app.DefaultStations), n)

	n, err = svc.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding a populated catalogue is a no-op")

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(app.DefaultStations))
	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, list[i-1].Name, list[i].Name)
	}
}

func TestStationService_SearchByName(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	svc := app.NewStationService(db, db)
	_, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)

	got, err := svc.SearchByName(ctx, "пасажирськ")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Київ-Пасажирський", got[0].Name)
	assert.Equal(t, "Харків-Пасажирський", got[1].Name)

	got, err = svc.SearchByName(ctx, "а")
	require.NoError(t, err)
	assert.Len(t, got, app.SearchLimit)

	got, err = svc.SearchByName(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStationService_CreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	svc := app.NewStationService(db, db)

	_, err := svc.Create(ctx, domain.Station{Name: " ", City: "Київ"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	st, err := svc.Create(ctx, domain.Station{Name: " Дарниця ", City: "Київ"})
	require.NoError(t, err)
	assert.Equal(t, "Дарниця", st.Name)

	city := "Kyiv"
	updated, err := svc.Update(ctx, st.ID, domain.StationPatch{City: &city})
	require.NoError(t, err)
	assert.Equal(t, "Дарниця", updated.Name)
	assert.Equal(t, "Kyiv", updated.City)

	empty := ""
	_, err = svc.Update(ctx, st.ID, domain.StationPatch{Name: &empty})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Update(ctx, "missing", domain.StationPatch{City: &city})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "missing"), domain.ErrNotFound)
}
