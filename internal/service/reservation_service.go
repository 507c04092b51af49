package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/cemetery-api/internal/dto"
	"github.com/noah-isme/cemetery-api/internal/models"
	"github.com/noah-isme/cemetery-api/internal/repository"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
)

type reservationStore interface {
	Create(ctx context.Context, reservation *models.PlotReservation) error
	GetByID(ctx context.Context, id string) (*models.PlotReservation, error)
	GetForUpdate(ctx context.Context, id string) (*models.PlotReservation, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]models.PlotReservation, error)
	CountOpenForPlot(ctx context.Context, plotID string) (int, error)
	LockPlot(ctx context.Context, plotID string) error
	UpdateStatus(ctx context.Context, params repository.UpdateReservationStatusParams) error
}

type reservationPlots interface {
	GetOrDefault(ctx context.Context, plotID string) (*models.Plot, bool, error)
	lockOrDefault(ctx context.Context, plotID string) (*models.Plot, bool, error)
	MarkReserved(ctx context.Context, plotID string) (*models.Plot, error)
}

var reservationTransitions = map[models.ReservationStatus][]models.ReservationStatus{
	models.ReservationStatusPending: {
		models.ReservationStatusApproved, models.ReservationStatusRejected,
		models.ReservationStatusCancelled, models.ReservationStatusExpired,
	},
	models.ReservationStatusApproved: {
		models.ReservationStatusPaid, models.ReservationStatusCancelled, models.ReservationStatusExpired,
	},
	models.ReservationStatusPaid: {
		models.ReservationStatusActive, models.ReservationStatusCancelled, models.ReservationStatusExpired,
	},
}

const expireBatchSize = 200

// expirableReservationStatuses are swept by ExpireStale. PAID reservations wait for an admin.
var expirableReservationStatuses = []models.ReservationStatus{
	models.ReservationStatusPending,
	models.ReservationStatusApproved,
}

func canTransitionReservation(from, to models.ReservationStatus) bool {
	for _, next := range reservationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ReservationService runs the plot reservation state machine.
type ReservationService struct {
	workflow
	store     reservationStore
	plots     reservationPlots
	validator *validator.Validate
}

// NewReservationService constructs the service.
func NewReservationService(store reservationStore, plots reservationPlots, tx txRunner, audit auditLogger, events eventPublisher, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *ReservationService {
	if validate == nil {
		validate = NewValidator()
	}
	return &ReservationService{
		workflow:  newWorkflow(models.MachineReservation, tx, audit, events, notifier, logger),
		store:     store,
		plots:     plots,
		validator: validate,
	}
}

// Submit validates the form and stores a pending reservation for a free plot.
func (s *ReservationService) Submit(ctx context.Context, actor *models.Principal, req dto.SubmitReservationRequest) (*models.PlotReservation, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	if err := validateStruct(s.validator, &req); err != nil {
		return nil, err
	}

	reservation := &models.PlotReservation{
		PlotID:                  NormalizePlotID(req.PlotID),
		UserID:                  actor.UserID,
		ReservationType:         req.ReservationType,
		IsForSelf:               req.IsForSelf,
		BeneficiaryName:         req.BeneficiaryName,
		BeneficiaryRelationship: req.BeneficiaryRelationship,
		RequestorName:           req.RequestorName,
		RequestorEmail:          req.RequestorEmail,
		RequestorPhone:          req.RequestorPhone,
		RequestorAddress:        req.RequestorAddress,
		ValidIDURL:              req.ValidIDURL,
		ProofOfRelationshipURL:  req.ProofOfRelationshipURL,
		Notes:                   req.Notes,
		Status:                  models.ReservationStatusPending,
	}
	if reservation.IsForSelf {
		reservation.BeneficiaryName = req.RequestorName
		reservation.BeneficiaryRelationship = "Self"
		reservation.ProofOfRelationshipURL = ""
	}

	// The plot row lock covers registered plots; the advisory lock covers plots that exist only
	// by id. The partial unique index on open reservations backs both.
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		if err := s.store.LockPlot(ctx, reservation.PlotID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock plot")
		}
		plot, _, err := s.plots.lockOrDefault(ctx, reservation.PlotID)
		if err != nil {
			return err
		}
		if plot.Status == models.PlotStatusOccupied || plot.Status == models.PlotStatusReserved {
			return appErrors.Validation("plot_id", fmt.Sprintf("plot is %s", plot.Status))
		}
		open, err := s.store.CountOpenForPlot(ctx, plot.PlotID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check plot reservations")
		}
		if open > 0 {
			return appErrors.Validation("plot_id", "plot already has an open reservation")
		}
		if err := s.store.Create(ctx, reservation); err != nil {
			if errors.Is(err, repository.ErrOpenReservationExists) {
				return appErrors.Validation("plot_id", "plot already has an open reservation")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reservation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor, models.AuditActionReservationSubmit, reservation.ID, nil, reservation)
	return reservation, nil
}

// List returns every reservation for admins and the caller's own reservations otherwise.
func (s *ReservationService) List(ctx context.Context, actor *models.Principal, query dto.ReservationQuery) ([]models.PlotReservation, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	limit, offset := pageToLimit(query.Page, query.Size)
	filter := models.ReservationFilter{
		Status: query.Status,
		PlotID: NormalizePlotID(query.PlotID),
		Limit:  limit,
		Offset: offset,
	}
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	reservations, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reservations")
	}
	return reservations, nil
}

// ListMine returns the caller's own reservations regardless of role.
func (s *ReservationService) ListMine(ctx context.Context, actor *models.Principal, query dto.ReservationQuery) ([]models.PlotReservation, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	own := &models.Principal{UserID: actor.UserID, Email: actor.Email, Role: models.RoleUser}
	return s.List(ctx, own, query)
}

// Get loads a reservation visible to the caller.
func (s *ReservationService) Get(ctx context.Context, actor *models.Principal, id string) (*models.PlotReservation, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	reservation, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservation")
	}
	if !actor.IsAdmin() && reservation.UserID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return reservation, nil
}

// Cancel withdraws a reservation before it becomes active.
func (s *ReservationService) Cancel(ctx context.Context, actor *models.Principal, id, notes string) (*dto.ReservationTransitionResult, error) {
	return s.Transition(ctx, actor, id, dto.TransitionReservationRequest{Status: models.ReservationStatusCancelled, Notes: notes})
}

// Transition advances a reservation one step. Admins drive the forward path; the requester
// may also cancel their own reservation.
func (s *ReservationService) Transition(ctx context.Context, actor *models.Principal, id string, req dto.TransitionReservationRequest) (*dto.ReservationTransitionResult, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	if err := validateStruct(s.validator, &req); err != nil {
		return nil, err
	}
	to := models.ReservationStatus(strings.ToUpper(string(req.Status)))

	var (
		reservation *models.PlotReservation
		from        models.ReservationStatus
		plot        *models.Plot
	)
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		current, err := s.store.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservation")
		}
		if !mayTransitionReservation(actor, current, to) {
			return appErrors.ErrForbidden
		}
		from = current.Status
		if !canTransitionReservation(from, to) {
			return appErrors.InvalidTransition(string(from), string(to))
		}

		now := time.Now().UTC()
		params := repository.UpdateReservationStatusParams{
			ID:         current.ID,
			From:       from,
			To:         to,
			AdminNotes: optionalString(req.Notes),
		}
		switch to {
		case models.ReservationStatusApproved, models.ReservationStatusRejected:
			params.ReviewedBy = &actor.UserID
			params.ReviewedAt = &now
		case models.ReservationStatusPaid:
			params.PaymentReference = optionalString(req.PaymentReference)
		case models.ReservationStatusActive:
			params.ActivatedAt = &now
		}
		if err := s.store.UpdateStatus(ctx, params); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.InvalidTransition(string(from), string(to))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update reservation")
		}
		applyReservationParams(current, params)

		if to == models.ReservationStatusActive {
			if plot, err = s.plots.MarkReserved(ctx, current.PlotID); err != nil {
				return err
			}
		}
		reservation = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishTransition(reservation.ID, reservation.PlotID, string(from), string(to), actor)
	action := models.AuditActionReservationReview
	if to == models.ReservationStatusExpired {
		action = models.AuditActionReservationExpired
	}
	s.emitAudit(ctx, actor, action, reservation.ID, map[string]string{"status": string(from)}, reservation)

	result := &dto.ReservationTransitionResult{Reservation: reservation, Plot: plot}
	if kind, ok := reservationNotificationKind(to); ok {
		result.Warning = s.notify(ctx, models.Notification{
			Kind:      kind,
			Recipient: reservation.RequestorEmail,
			Payload:   reservationPayload(reservation),
		})
	}
	return result, nil
}

// ExpireStale moves PENDING and APPROVED reservations older than olderThan to EXPIRED, in
// batches until none are left. Reservations that change state concurrently are skipped.
func (s *ReservationService) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	actor := models.SystemPrincipal()
	note := fmt.Sprintf("expired after %s without completion", olderThan)

	expired, skipped := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		// Expired rows leave the filter, so only skipped rows shift the window.
		stale, err := s.store.List(ctx, models.ReservationFilter{
			Status:        expirableReservationStatuses,
			CreatedBefore: &cutoff,
			Limit:         expireBatchSize,
			Offset:        skipped,
		})
		if err != nil {
			return expired, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stale reservations")
		}
		for _, reservation := range stale {
			_, err := s.Transition(ctx, actor, reservation.ID, dto.TransitionReservationRequest{
				Status: models.ReservationStatusExpired,
				Notes:  note,
			})
			if err != nil {
				if appErrors.IsCode(err, appErrors.ErrInvalidTransition.Code) {
					skipped++
					continue
				}
				return expired, err
			}
			expired++
		}
		if len(stale) < expireBatchSize {
			return expired, nil
		}
	}
}

func mayTransitionReservation(actor *models.Principal, reservation *models.PlotReservation, to models.ReservationStatus) bool {
	if actor.IsAdmin() {
		return true
	}
	return to == models.ReservationStatusCancelled && reservation.UserID == actor.UserID
}

func applyReservationParams(reservation *models.PlotReservation, params repository.UpdateReservationStatusParams) {
	reservation.Status = params.To
	if params.ReviewedBy != nil {
		reservation.ReviewedBy = params.ReviewedBy
	}
	if params.ReviewedAt != nil {
		reservation.ReviewedAt = params.ReviewedAt
	}
	if params.AdminNotes != nil {
		reservation.AdminNotes = params.AdminNotes
	}
	if params.PaymentReference != nil {
		reservation.PaymentReference = params.PaymentReference
	}
	if params.ActivatedAt != nil {
		reservation.ActivatedAt = params.ActivatedAt
	}
	reservation.UpdatedAt = time.Now().UTC()
}

func reservationNotificationKind(to models.ReservationStatus) (models.NotificationKind, bool) {
	switch to {
	case models.ReservationStatusApproved:
		return models.NotificationReservationApproved, true
	case models.ReservationStatusRejected:
		return models.NotificationReservationRejected, true
	}
	return "", false
}

func reservationPayload(reservation *models.PlotReservation) map[string]string {
	payload := map[string]string{
		"reservation_id":   reservation.ID,
		"plot_id":          reservation.PlotID,
		"requestor_name":   reservation.RequestorName,
		"beneficiary_name": reservation.BeneficiaryName,
		"reservation_type": string(reservation.ReservationType),
		"status":           string(reservation.Status),
	}
	if reservation.AdminNotes != nil {
		payload["notes"] = *reservation.AdminNotes
	}
	return payload
}
