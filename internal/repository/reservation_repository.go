package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/cemetery-api/internal/models"
)

const reservationColumns = `id, plot_id, user_id, reservation_type, is_for_self, beneficiary_name,
       beneficiary_relationship, requestor_name, requestor_email, requestor_phone, requestor_address,
       valid_id_url, proof_of_relationship_url, notes, status, admin_notes, payment_reference, reviewed_by,
       reviewed_at, activated_at, created_at, updated_at`

// openReservationIndex enforces at most one open reservation per plot.
const openReservationIndex = "uq_plot_reservations_open_plot"

// ErrOpenReservationExists is returned by Create when the plot already has an open reservation.
var ErrOpenReservationExists = errors.New("plot already has an open reservation")

// ReservationRepository persists plot reservations.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository constructs the repository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create inserts a new reservation row.
func (r *ReservationRepository) Create(ctx context.Context, reservation *models.PlotReservation) error {
	if reservation.ID == "" {
		reservation.ID = uuid.NewString()
	}
	if reservation.Status == "" {
		reservation.Status = models.ReservationStatusPending
	}
	now := time.Now().UTC()
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = now
	}
	reservation.UpdatedAt = now
	const query = `INSERT INTO plot_reservations
	(id, plot_id, user_id, reservation_type, is_for_self, beneficiary_name, beneficiary_relationship, requestor_name,
	 requestor_email, requestor_phone, requestor_address, valid_id_url, proof_of_relationship_url, notes, status,
	 admin_notes, payment_reference, reviewed_by, reviewed_at, activated_at, created_at, updated_at)
	VALUES (:id, :plot_id, :user_id, :reservation_type, :is_for_self, :beneficiary_name, :beneficiary_relationship,
	 :requestor_name, :requestor_email, :requestor_phone, :requestor_address, :valid_id_url,
	 :proof_of_relationship_url, :notes, :status, :admin_notes, :payment_reference, :reviewed_by, :reviewed_at,
	 :activated_at, :created_at, :updated_at)`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, reservation); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == openReservationIndex {
			return ErrOpenReservationExists
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// LockPlot takes a transaction-scoped advisory lock on plotID. It serialises submissions for
// plots that have no registry row to lock.
func (r *ReservationRepository) LockPlot(ctx context.Context, plotID string) error {
	if _, err := conn(ctx, r.db).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, plotID); err != nil {
		return fmt.Errorf("lock plot %s: %w", plotID, err)
	}
	return nil
}

// GetByID fetches a reservation by identifier.
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*models.PlotReservation, error) {
	query := fmt.Sprintf(`SELECT %s FROM plot_reservations WHERE id = $1`, reservationColumns)
	var reservation models.PlotReservation
	if err := conn(ctx, r.db).GetContext(ctx, &reservation, query, id); err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetForUpdate fetches and row-locks a reservation within the active transaction.
func (r *ReservationRepository) GetForUpdate(ctx context.Context, id string) (*models.PlotReservation, error) {
	query := fmt.Sprintf(`SELECT %s FROM plot_reservations WHERE id = $1 FOR UPDATE`, reservationColumns)
	var reservation models.PlotReservation
	if err := conn(ctx, r.db).GetContext(ctx, &reservation, query, id); err != nil {
		return nil, err
	}
	return &reservation, nil
}

// List returns reservations matching the filter (latest first).
func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.PlotReservation, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM plot_reservations`, reservationColumns))

	conditions := make([]string, 0, 4)
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
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
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

	var reservations []models.PlotReservation
	if err := conn(ctx, r.db).SelectContext(ctx, &reservations, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}

// CountOpenForPlot counts non-terminal reservations that hold the plot.
func (r *ReservationRepository) CountOpenForPlot(ctx context.Context, plotID string) (int, error) {
	const query = `SELECT COUNT(*) FROM plot_reservations WHERE plot_id = $1 AND status IN ($2, $3, $4)`
	var count int
	if err := conn(ctx, r.db).GetContext(ctx, &count, query, plotID,
		models.ReservationStatusPending, models.ReservationStatusApproved, models.ReservationStatusPaid); err != nil {
		return 0, fmt.Errorf("count open reservations: %w", err)
	}
	return count, nil
}

// UpdateReservationStatusParams groups the columns written by a transition.
type UpdateReservationStatusParams struct {
	ID               string
	From             models.ReservationStatus
	To               models.ReservationStatus
	ReviewedBy       *string
	ReviewedAt       *time.Time
	AdminNotes       *string
	PaymentReference *string
	ActivatedAt      *time.Time
}

// UpdateStatus performs a compare-and-set on the reservation status. sql.ErrNoRows signals
// that the stored status no longer equals From.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, params UpdateReservationStatusParams) error {
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
	if params.PaymentReference != nil {
		setParts = append(setParts, "payment_reference = :payment_reference")
	}
	if params.ActivatedAt != nil {
		setParts = append(setParts, "activated_at = :activated_at")
	}
	query := fmt.Sprintf("UPDATE plot_reservations SET %s WHERE id = :id AND status = :from", strings.Join(setParts, ", "))
	result, err := conn(ctx, r.db).NamedExecContext(ctx, query, map[string]interface{}{
		"id":                params.ID,
		"from":              params.From,
		"to":                params.To,
		"updated_at":        time.Now().UTC(),
		"reviewed_by":       params.ReviewedBy,
		"reviewed_at":       params.ReviewedAt,
		"admin_notes":       params.AdminNotes,
		"payment_reference": params.PaymentReference,
		"activated_at":      params.ActivatedAt,
	})
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reservation update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
