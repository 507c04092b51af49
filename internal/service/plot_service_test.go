package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/cemetery-api/internal/dto"
	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
)

func date(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(dateLayout, value)
	require.NoError(t, err)
	return &parsed
}

func occupiedPlot(id, name string) models.Plot {
	section, level, number := ParsePlotID(id)
	age := 71
	return models.Plot{
		PlotID:     id,
		Section:    section,
		Level:      level,
		PlotNumber: number,
		Status:     models.PlotStatusOccupied,
		Occupant: models.Occupant{
			OccupantName: name,
			Age:          &age,
			FamilyName:   "Dela Cruz",
			NextOfKin:    "Maria",
		},
		Notes: "original notes",
	}
}

func newPlotServiceForTest(store *plotStoreStub) (*PlotLifecycleService, *publisherStub, *auditStub) {
	events := &publisherStub{}
	audit := &auditStub{}
	svc := NewPlotLifecycleService(store, &txStub{}, audit, NewValidator(), zap.NewNop(), WithPlotEvents(events))
	return svc, events, audit
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, models.PlotStatusOccupied, DeriveStatus("Juan"))
	assert.Equal(t, models.PlotStatusAvailable, DeriveStatus(""))
	assert.Equal(t, models.PlotStatusAvailable, DeriveStatus("   \t"))
}

func TestComputeAge(t *testing.T) {
	t.Run("whole years", func(t *testing.T) {
		age := ComputeAge(date(t, "2000-01-01"), date(t, "2020-01-01"))
		require.NotNil(t, age)
		assert.Equal(t, 20, *age)
	})
	t.Run("birthday not reached", func(t *testing.T) {
		age := ComputeAge(date(t, "2000-03-01"), date(t, "2020-01-01"))
		require.NotNil(t, age)
		assert.Equal(t, 19, *age)
	})
	t.Run("missing date", func(t *testing.T) {
		assert.Nil(t, ComputeAge(nil, date(t, "2020-01-01")))
		assert.Nil(t, ComputeAge(date(t, "2000-01-01"), nil))
	})
	t.Run("death before birth", func(t *testing.T) {
		age := ComputeAge(date(t, "2020-01-01"), date(t, "2000-01-01"))
		require.NotNil(t, age)
		assert.Negative(t, *age)
	})
}

func TestGetOrDefaultUnregistered(t *testing.T) {
	store := newPlotStoreStub()
	svc, _, _ := newPlotServiceForTest(store)

	plot, exists, err := svc.GetOrDefault(context.Background(), "RB-L3-K1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, "rb-l3-k1", plot.PlotID)
	assert.Equal(t, "RB", plot.Section)
	assert.Equal(t, 3, plot.Level)
	assert.Equal(t, "K1", plot.PlotNumber)
	assert.Equal(t, models.PlotStatusAvailable, plot.Status)
	assert.True(t, plot.Occupant.IsEmpty())
	assert.Zero(t, store.upserts)
	assert.Empty(t, store.plots)

	_, _, err = svc.GetOrDefault(context.Background(), "  ")
	assert.Equal(t, "plot_id", appErrors.FromError(err).Detail("field"))
}

func TestGetOrDefaultRegisteredIsCaseInsensitive(t *testing.T) {
	store := newPlotStoreStub(occupiedPlot("rb-l3-k1", "Juan"))
	svc, _, _ := newPlotServiceForTest(store)

	plot, exists, err := svc.GetOrDefault(context.Background(), " RB-L3-K1 ")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "Juan", plot.OccupantName)
}

func TestClearOccupant(t *testing.T) {
	store := newPlotStoreStub(occupiedPlot("rb-l3-k1", "Juan"))
	svc, _, _ := newPlotServiceForTest(store)
	ctx := context.Background()

	_, err := svc.ClearOccupant(ctx, "rb-l3-k1", ClearPolicy{Note: models.PlotNoteAvailable})
	require.NoError(t, err)

	plot, exists, err := svc.GetOrDefault(ctx, "rb-l3-k1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, models.PlotStatusAvailable, plot.Status)
	assert.True(t, plot.Occupant.IsEmpty())
	assert.Equal(t, models.PlotNoteAvailable, plot.Notes)
	assert.Equal(t, "rb", plot.Section)

	again, err := svc.ClearOccupant(ctx, "rb-l3-k1", ClearPolicy{Note: models.PlotNoteAvailable})
	require.NoError(t, err)
	assert.Equal(t, plot.Status, again.Status)
}

func TestClearOccupantMissingPlot(t *testing.T) {
	store := newPlotStoreStub()
	svc, _, _ := newPlotServiceForTest(store)

	_, err := svc.ClearOccupant(context.Background(), "lb-2-a", ClearPolicy{})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrPlotNotFound.Code))
	assert.Equal(t, "lb-2-a", appErrors.FromError(err).Detail("plot_id"))

	plot, err := svc.ClearOccupant(context.Background(), "lb-2-a", ClearPolicy{Status: models.PlotStatusExhumed, CreateIfMissing: true})
	require.NoError(t, err)
	assert.Equal(t, models.PlotStatusExhumed, plot.Status)
	_, ok := store.plot("lb-2-a")
	assert.True(t, ok)

	_, err = svc.ClearOccupant(context.Background(), "lb-2-a", ClearPolicy{Status: models.PlotStatusOccupied})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestSetOccupant(t *testing.T) {
	store := newPlotStoreStub()
	svc, _, _ := newPlotServiceForTest(store)
	ctx := context.Background()

	_, err := svc.SetOccupant(ctx, "lb-2-a", models.Occupant{OccupantName: "   "}, true)
	require.Error(t, err)
	assert.Equal(t, "occupant_name", appErrors.FromError(err).Detail("field"))

	plot, err := svc.SetOccupant(ctx, "lb-2-a", models.Occupant{
		OccupantName: " Ana ",
		DateOfBirth:  date(t, "1950-06-15"),
		DateOfDeath:  date(t, "2021-06-14"),
	}, true)
	require.NoError(t, err)
	assert.Equal(t, models.PlotStatusOccupied, plot.Status)
	assert.Equal(t, "Ana", plot.OccupantName)
	require.NotNil(t, plot.Age)
	assert.Equal(t, 70, *plot.Age)

	_, err = svc.SetOccupant(ctx, "zz-9-z", models.Occupant{OccupantName: "Ana"}, false)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrPlotNotFound.Code))
}

func TestMarkReserved(t *testing.T) {
	store := newPlotStoreStub(occupiedPlot("rb-l3-k1", "Juan"))
	svc, _, _ := newPlotServiceForTest(store)
	ctx := context.Background()

	_, err := svc.MarkReserved(ctx, "rb-l3-k1")
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidTransition.Code))

	plot, err := svc.MarkReserved(ctx, "lb-2-a")
	require.NoError(t, err)
	assert.Equal(t, models.PlotStatusReserved, plot.Status)
	assert.True(t, plot.Occupant.IsEmpty())
}

func TestRelocateTransfersOccupant(t *testing.T) {
	origin := occupiedPlot("rb-l3-k1", "Juan")
	store := newPlotStoreStub(origin)
	svc, _, _ := newPlotServiceForTest(store)

	outcome, err := svc.Relocate(context.Background(), "RB-L3-K1", "lb-2-a")
	require.NoError(t, err)
	assert.True(t, outcome.Transferred)
	assert.Empty(t, outcome.SkipReason)

	dest, ok := store.plot("lb-2-a")
	require.True(t, ok)
	assert.Equal(t, models.PlotStatusOccupied, dest.Status)
	assert.Equal(t, origin.Occupant, dest.Occupant)
	assert.Equal(t, "original notes", dest.Notes)
	assert.Equal(t, "lb", dest.Section)

	src, _ := store.plot("rb-l3-k1")
	assert.Equal(t, models.PlotStatusExhumed, src.Status)
	assert.True(t, src.Occupant.IsEmpty())
	assert.Equal(t, models.PlotNoteRelocated, src.Notes)
}

func TestRelocateSkips(t *testing.T) {
	cases := []struct {
		name        string
		destination string
		seed        []models.Plot
		reason      string
	}{
		{name: "no destination", destination: "", reason: "no destination plot could be resolved"},
		{name: "same plot", destination: "rb-l3-k1", reason: "destination is the origin plot"},
		{name: "occupied destination", destination: "lb-2-a", seed: []models.Plot{occupiedPlot("lb-2-a", "Pedro")}, reason: "destination plot is occupied"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			origin := occupiedPlot("rb-l3-k1", "Juan")
			store := newPlotStoreStub(append(tc.seed, origin)...)
			svc, _, _ := newPlotServiceForTest(store)

			outcome, err := svc.Relocate(context.Background(), "rb-l3-k1", tc.destination)
			require.NoError(t, err)
			assert.False(t, outcome.Transferred)
			assert.Equal(t, tc.reason, outcome.SkipReason)

			src, _ := store.plot("rb-l3-k1")
			assert.Equal(t, models.PlotStatusExhumed, src.Status)
			assert.Equal(t, origin.Occupant, src.Occupant)
			for _, seeded := range tc.seed {
				after, _ := store.plot(seeded.PlotID)
				assert.Equal(t, seeded, after)
			}
		})
	}
}

func TestRelocateEmptyOrigin(t *testing.T) {
	store := newPlotStoreStub()
	svc, _, _ := newPlotServiceForTest(store)

	outcome, err := svc.Relocate(context.Background(), "rb-l3-k1", "lb-2-a")
	require.NoError(t, err)
	assert.Equal(t, "origin plot has no occupant", outcome.SkipReason)
	src, ok := store.plot("rb-l3-k1")
	require.True(t, ok)
	assert.Equal(t, models.PlotStatusExhumed, src.Status)
	_, ok = store.plot("lb-2-a")
	assert.False(t, ok)
}

func TestCreatePlotDerivesStatus(t *testing.T) {
	store := newPlotStoreStub()
	svc, events, audit := newPlotServiceForTest(store)
	ctx := context.Background()

	plot, err := svc.Create(ctx, adminActor, dto.CreatePlotRequest{
		PlotID: "RB-L3-K1",
		Status: models.PlotStatusOccupied,
		OccupantInput: dto.OccupantInput{
			OccupantName: "   ",
			FamilyName:   "Dela Cruz",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PlotStatusAvailable, plot.Status)
	assert.True(t, plot.Occupant.IsEmpty())
	assert.Len(t, events.changed, 1)
	assert.Len(t, audit.logs, 1)

	_, err = svc.Create(ctx, adminActor, dto.CreatePlotRequest{PlotID: "rb-l3-k1"})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict.Code))

	_, err = svc.Create(ctx, userActor, dto.CreatePlotRequest{PlotID: "lb-2-a"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Create(ctx, adminActor, dto.CreatePlotRequest{PlotID: "bad"})
	assert.Equal(t, "plot_id", appErrors.FromError(err).Detail("field"))
}

func TestUpdatePlot(t *testing.T) {
	store := newPlotStoreStub(occupiedPlot("rb-l3-k1", "Juan"))
	svc, _, audit := newPlotServiceForTest(store)
	ctx := context.Background()

	plot, err := svc.Update(ctx, adminActor, "rb-l3-k1", dto.UpdatePlotRequest{
		Status: models.PlotStatusAvailable,
		OccupantInput: dto.OccupantInput{
			OccupantName: "Juan Santos",
			DateOfBirth:  "1940-02-01",
			DateOfDeath:  "2010-02-01",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PlotStatusOccupied, plot.Status)
	require.NotNil(t, plot.Age)
	assert.Equal(t, 70, *plot.Age)
	require.Len(t, audit.logs, 1)
	assert.NotEmpty(t, audit.logs[0].OldValues)

	_, err = svc.Update(ctx, adminActor, "rb-l3-k1", dto.UpdatePlotRequest{OccupantInput: dto.OccupantInput{DateOfBirth: "01/02/1940"}})
	assert.Equal(t, "date_of_birth", appErrors.FromError(err).Detail("field"))

	_, err = svc.Update(ctx, adminActor, "zz-1-a", dto.UpdatePlotRequest{})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrPlotNotFound.Code))
}

func TestDeleteAndStats(t *testing.T) {
	store := newPlotStoreStub(occupiedPlot("rb-l3-k1", "Juan"), models.Plot{PlotID: "lb-2-a", Status: models.PlotStatusAvailable})
	svc, _, _ := newPlotServiceForTest(store)
	ctx := context.Background()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[models.PlotStatusOccupied])
	assert.Equal(t, 0, stats.ByStatus[models.PlotStatusReserved])

	require.NoError(t, svc.Delete(ctx, adminActor, "LB-2-A"))
	err = svc.Delete(ctx, adminActor, "lb-2-a")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrPlotNotFound.Code))
}

func TestSearchValidatesStatus(t *testing.T) {
	store := newPlotStoreStub(occupiedPlot("rb-l3-k1", "Juan"))
	svc, _, _ := newPlotServiceForTest(store)

	plots, page, err := svc.Search(context.Background(), models.PlotFilter{Section: "rb"})
	require.NoError(t, err)
	assert.Len(t, plots, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)

	_, _, err = svc.Search(context.Background(), models.PlotFilter{Status: []models.PlotStatus{"buried"}})
	assert.Equal(t, "status", appErrors.FromError(err).Detail("field"))
}
