package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cemetery-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var plotColumnNames = []string{"plot_id", "section", "level", "plot_number", "status", "occupant_name", "date_of_birth",
	"date_of_death", "date_of_interment", "age", "cause_of_death", "religion", "family_name", "next_of_kin",
	"contact_number", "address", "notes", "created_at", "updated_at"}

func TestPlotRepositoryGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlotRepository(db)

	death := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(plotColumnNames).
		AddRow("rb-l3-k1", "RB", 3, "K1", "occupied", "Juan Dela Cruz", nil, death, nil, 70, "", "Catholic", "Dela Cruz", "", "", "", "", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT plot_id, section, level")).
		WithArgs("rb-l3-k1").
		WillReturnRows(rows)

	plot, err := repo.Get(context.Background(), "rb-l3-k1")
	require.NoError(t, err)
	assert.Equal(t, models.PlotStatusOccupied, plot.Status)
	assert.Equal(t, "Juan Dela Cruz", plot.OccupantName)
	require.NotNil(t, plot.Age)
	assert.Equal(t, 70, *plot.Age)
	require.NotNil(t, plot.DateOfDeath)
	assert.Nil(t, plot.DateOfBirth)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlotRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT plot_id, section, level")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestPlotRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO plots")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	plot := &models.Plot{PlotID: "a-1", Section: "A", Level: 1, PlotNumber: "1", Status: models.PlotStatusAvailable}
	require.NoError(t, repo.Upsert(context.Background(), plot))
	assert.False(t, plot.CreatedAt.IsZero())
	assert.False(t, plot.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlotRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM plots")).
		WithArgs("a-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM plots")).
		WithArgs("a-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	existed, err := repo.Delete(context.Background(), "a-1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = repo.Delete(context.Background(), "a-2")
	require.NoError(t, err)
	assert.False(t, existed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlotRepositoryQueryFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM plots WHERE section = $1 AND status IN ($2)")).
		WithArgs("RB", models.PlotStatusAvailable).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT plot_id, section, level")).
		WithArgs("RB", models.PlotStatusAvailable).
		WillReturnRows(sqlmock.NewRows(plotColumnNames).
			AddRow("rb-1-1", "RB", 1, "1", "available", "", nil, nil, nil, nil, "", "", "", "", "", "", "", time.Now(), time.Now()))

	plots, total, err := repo.Query(context.Background(), models.PlotFilter{
		Section: "RB",
		Status:  []models.PlotStatus{models.PlotStatusAvailable},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, plots, 1)
	assert.True(t, plots[0].Occupant.IsEmpty())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlotRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlotRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count FROM plots GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("available", 4).
			AddRow("occupied", 2))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, counts[models.PlotStatusAvailable])
	assert.Equal(t, 2, counts[models.PlotStatusOccupied])
	assert.Zero(t, counts[models.PlotStatusExhumed])
}
