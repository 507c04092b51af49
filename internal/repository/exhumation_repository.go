package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cemetery-api/internal/models"
)

const exhumationColumns = `id, plot_id, user_id, request_type, deceased_name, date_of_death, relationship,
       requestor_name, requestor_email, requestor_phone, requestor_address, reason, preferred_date,
       new_location, alternative_location, destination_plot_id, valid_id_url, death_certificate_url,
       birth_certificate_url, affidavit_url, burial_permit_url, status, admin_notes, exhumation_date,
       exhumation_team, reviewed_by, reviewed_at, completed_at, created_at, updated_at`

// ExhumationRepository persists exhumation workflow data.
type ExhumationRepository struct {
	db *sqlx.DB
}

// NewExhumationRepository constructs the repository.
func NewExhumationRepository(db *sqlx.DB) *ExhumationRepository {
	return &ExhumationRepository{db: db}
}

// Create inserts a new exhumation request row.
func (r *ExhumationRepository) Create(ctx context.Context, request *models.ExhumationRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.ExhumationStatusPending
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	const query = `INSERT INTO exhumation_requests
	(id, plot_id, user_id, request_type, deceased_name, date_of_death, relationship, requestor_name, requestor_email,
	 requestor_phone, requestor_address, reason, preferred_date, new_location, alternative_location, destination_plot_id,
	 valid_id_url, death_certificate_url, birth_certificate_url, affidavit_url, burial_permit_url, status, admin_notes,
	 exhumation_date, exhumation_team, reviewed_by, reviewed_at, completed_at, created_at, updated_at)
	VALUES (:id, :plot_id, :user_id, :request_type, :deceased_name, :date_of_death, :relationship, :requestor_name,
	 :requestor_email, :requestor_phone, :requestor_address, :reason, :preferred_date, :new_location,
	 :alternative_location, :destination_plot_id, :valid_id_url, :death_certificate_url, :birth_certificate_url,
	 :affidavit_url, :burial_permit_url, :status, :admin_notes, :exhumation_date, :exhumation_team, :reviewed_by,
	 :reviewed_at, :completed_at, :created_at, :updated_at)`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create exhumation request: %w", err)
	}
	return nil
}

// GetByID fetches an exhumation request by identifier.
func (r *ExhumationRepository) GetByID(ctx context.Context, id string) (*models.ExhumationRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM exhumation_requests WHERE id = $1`, exhumationColumns)
	var request models.ExhumationRequest
	if err := conn(ctx, r.db).GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// GetForUpdate fetches and row-locks a request within the active transaction.
func (r *ExhumationRepository) GetForUpdate(ctx context.Context, id string) (*models.ExhumationRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM exhumation_requests WHERE id = $1 FOR UPDATE`, exhumationColumns)
	var request models.ExhumationRequest
	if err := conn(ctx, r.db).GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter (latest first).
func (r *ExhumationRepository) List(ctx context.Context, filter models.ExhumationFilter) ([]models.ExhumationRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM exhumation_requests`, exhumationColumns))

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.PlotID != "" {
		args = append(args, filter.PlotID)
		conditions = append(conditions, fmt.Sprintf("plot_id = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.ExhumationRequest
	if err := conn(ctx, r.db).SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list exhumation requests: %w", err)
	}
	return requests, nil
}

// UpdateExhumationStatusParams groups the columns written by a transition.
type UpdateExhumationStatusParams struct {
	ID             string
	From           models.ExhumationStatus
	To             models.ExhumationStatus
	ReviewedBy     *string
	ReviewedAt     *time.Time
	AdminNotes     *string
	ExhumationDate *time.Time
	ExhumationTeam *string
	CompletedAt    *time.Time
}

// UpdateStatus moves a request from one status to another. The write only applies while the
// stored status still equals From; otherwise sql.ErrNoRows is returned.
func (r *ExhumationRepository) UpdateStatus(ctx context.Context, params UpdateExhumationStatusParams) error {
	setParts := []string{"status = :to", "updated_at = :updated_at"}
	if params.ReviewedBy != nil {
		setParts = append(setParts, "reviewed_by = :reviewed_by")
	}
	if params.ReviewedAt != nil {
		setParts = append(setParts, "reviewed_at = :reviewed_at")
	}
	if params.AdminNotes != nil {
		setParts = append(setParts, "admin_notes = :admin_notes")
	}
	if params.ExhumationDate != nil {
		setParts = append(setParts, "exhumation_date = :exhumation_date")
	}
	if params.ExhumationTeam != nil {
		setParts = append(setParts, "exhumation_team = :exhumation_team")
	}
	if params.CompletedAt != nil {
		setParts = append(setParts, "completed_at = :completed_at")
	}
	query := fmt.Sprintf("UPDATE exhumation_requests SET %s WHERE id = :id AND status = :from", strings.Join(setParts, ", "))
	result, err := conn(ctx, r.db).NamedExecContext(ctx, query, map[string]interface{}{
		"id":              params.ID,
		"from":            params.From,
		"to":              params.To,
		"updated_at":      time.Now().UTC(),
		"reviewed_by":     params.ReviewedBy,
		"reviewed_at":     params.ReviewedAt,
		"admin_notes":     params.AdminNotes,
		"exhumation_date": params.ExhumationDate,
		"exhumation_team": params.ExhumationTeam,
		"completed_at":    params.CompletedAt,
	})
	if err != nil {
		return fmt.Errorf("update exhumation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check exhumation update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
