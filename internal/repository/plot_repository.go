package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cemetery-api/internal/models"
)

const plotColumns = `plot_id, section, level, plot_number, status, occupant_name, date_of_birth, date_of_death,
       date_of_interment, age, cause_of_death, religion, family_name, next_of_kin, contact_number, address,
       notes, created_at, updated_at`

// PlotRepository manages persistence for the plot registry.
type PlotRepository struct {
	db *sqlx.DB
}

// NewPlotRepository constructs a PlotRepository.
func NewPlotRepository(db *sqlx.DB) *PlotRepository {
	return &PlotRepository{db: db}
}

// Get fetches a plot by identifier. It returns sql.ErrNoRows when absent.
func (r *PlotRepository) Get(ctx context.Context, plotID string) (*models.Plot, error) {
	query := fmt.Sprintf(`SELECT %s FROM plots WHERE plot_id = $1`, plotColumns)
	var plot models.Plot
	if err := conn(ctx, r.db).GetContext(ctx, &plot, query, plotID); err != nil {
		return nil, err
	}
	return &plot, nil
}

// GetForUpdate fetches and row-locks a plot within the active transaction.
func (r *PlotRepository) GetForUpdate(ctx context.Context, plotID string) (*models.Plot, error) {
	query := fmt.Sprintf(`SELECT %s FROM plots WHERE plot_id = $1 FOR UPDATE`, plotColumns)
	var plot models.Plot
	if err := conn(ctx, r.db).GetContext(ctx, &plot, query, plotID); err != nil {
		return nil, err
	}
	return &plot, nil
}

// Upsert inserts the plot or overwrites every mutable column of an existing row.
func (r *PlotRepository) Upsert(ctx context.Context, plot *models.Plot) error {
	now := time.Now().UTC()
	if plot.CreatedAt.IsZero() {
		plot.CreatedAt = now
	}
	plot.UpdatedAt = now
	const query = `INSERT INTO plots
	(plot_id, section, level, plot_number, status, occupant_name, date_of_birth, date_of_death, date_of_interment,
	 age, cause_of_death, religion, family_name, next_of_kin, contact_number, address, notes, created_at, updated_at)
	VALUES (:plot_id, :section, :level, :plot_number, :status, :occupant_name, :date_of_birth, :date_of_death,
	 :date_of_interment, :age, :cause_of_death, :religion, :family_name, :next_of_kin, :contact_number, :address,
	 :notes, :created_at, :updated_at)
	ON CONFLICT (plot_id) DO UPDATE SET
	 section = EXCLUDED.section, level = EXCLUDED.level, plot_number = EXCLUDED.plot_number,
	 status = EXCLUDED.status, occupant_name = EXCLUDED.occupant_name, date_of_birth = EXCLUDED.date_of_birth,
	 date_of_death = EXCLUDED.date_of_death, date_of_interment = EXCLUDED.date_of_interment, age = EXCLUDED.age,
	 cause_of_death = EXCLUDED.cause_of_death, religion = EXCLUDED.religion, family_name = EXCLUDED.family_name,
	 next_of_kin = EXCLUDED.next_of_kin, contact_number = EXCLUDED.contact_number, address = EXCLUDED.address,
	 notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, plot); err != nil {
		return fmt.Errorf("upsert plot: %w", err)
	}
	return nil
}

// Delete removes a plot and reports whether a row existed.
func (r *PlotRepository) Delete(ctx context.Context, plotID string) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM plots WHERE plot_id = $1`, plotID)
	if err != nil {
		return false, fmt.Errorf("delete plot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check plot delete rows: %w", err)
	}
	return rows > 0, nil
}

// Query returns plots matching the filter together with the total count.
func (r *PlotRepository) Query(ctx context.Context, filter models.PlotFilter) ([]models.Plot, int, error) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 4)

	if filter.Section != "" {
		args = append(args, filter.Section)
		conditions = append(conditions, fmt.Sprintf("section = $%d", len(args)))
	}
	if filter.Level > 0 {
		args = append(args, filter.Level)
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(plot_id) LIKE $%d OR LOWER(occupant_name) LIKE $%d OR LOWER(family_name) LIKE $%d)", len(args), len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := conn(ctx, r.db).GetContext(ctx, &total, "SELECT COUNT(*) FROM plots"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count plots: %w", err)
	}

	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 100
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	query := fmt.Sprintf("SELECT %s FROM plots%s ORDER BY section, level, plot_number LIMIT %d OFFSET %d",
		plotColumns, where, size, (page-1)*size)

	var plots []models.Plot
	if err := conn(ctx, r.db).SelectContext(ctx, &plots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("query plots: %w", err)
	}
	return plots, total, nil
}

// CountByStatus aggregates the registry by plot status.
func (r *PlotRepository) CountByStatus(ctx context.Context) (map[models.PlotStatus]int, error) {
	var rows []struct {
		Status models.PlotStatus `db:"status"`
		Count  int               `db:"count"`
	}
	if err := conn(ctx, r.db).SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM plots GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count plots by status: %w", err)
	}
	counts := make(map[models.PlotStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
