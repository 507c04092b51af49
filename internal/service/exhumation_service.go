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

type exhumationStore interface {
	Create(ctx context.Context, request *models.ExhumationRequest) error
	GetByID(ctx context.Context, id string) (*models.ExhumationRequest, error)
	GetForUpdate(ctx context.Context, id string) (*models.ExhumationRequest, error)
	List(ctx context.Context, filter models.ExhumationFilter) ([]models.ExhumationRequest, error)
	UpdateStatus(ctx context.Context, params repository.UpdateExhumationStatusParams) error
}

type exhumationPlots interface {
	Relocate(ctx context.Context, originID, destinationID string) (*dto.TransferOutcome, error)
	ClearOccupant(ctx context.Context, plotID string, policy ClearPolicy) (*models.Plot, error)
}

var exhumationTransitions = map[models.ExhumationStatus][]models.ExhumationStatus{
	models.ExhumationStatusPending:  {models.ExhumationStatusApproved, models.ExhumationStatusRejected},
	models.ExhumationStatusApproved: {models.ExhumationStatusCompleted},
}

// exhumationSteps lists the Go field names checked by each form step.
var exhumationSteps = [][]string{
	{"PlotID", "RequestType"},
	{"DeceasedName", "DateOfDeath", "Relationship"},
	{"RequestorName", "RequestorEmail", "RequestorPhone", "RequestorAddress"},
	{"Reason", "PreferredDate", "NewLocation", "DestinationPlotID"},
	{"ValidIDURL", "DeathCertificateURL", "BirthCertificateURL", "AffidavitURL"},
}

// ExhumationSteps is the number of form steps, counting the plot selection step as 0.
const ExhumationSteps = 5

func canTransitionExhumation(from, to models.ExhumationStatus) bool {
	for _, next := range exhumationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ExhumationService runs the exhumation request state machine.
type ExhumationService struct {
	workflow
	store     exhumationStore
	plots     exhumationPlots
	validator *validator.Validate
}

// NewExhumationService constructs the service.
func NewExhumationService(store exhumationStore, plots exhumationPlots, tx txRunner, audit auditLogger, events eventPublisher, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *ExhumationService {
	if validate == nil {
		validate = NewValidator()
	}
	return &ExhumationService{
		workflow:  newWorkflow(models.MachineExhumation, tx, audit, events, notifier, logger),
		store:     store,
		plots:     plots,
		validator: validate,
	}
}

// ValidateStep checks only the fields of one form step.
func (s *ExhumationService) ValidateStep(req dto.SubmitExhumationRequest, step int) error {
	if step < 0 || step >= len(exhumationSteps) {
		return appErrors.Validation("step", fmt.Sprintf("must be between 0 and %d", len(exhumationSteps)-1))
	}
	return validatePartial(s.validator, &req, exhumationSteps[step]...)
}

// Submit validates the whole form in step order and stores a pending request.
func (s *ExhumationService) Submit(ctx context.Context, actor *models.Principal, req dto.SubmitExhumationRequest) (*models.ExhumationRequest, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	if err := validateStruct(s.validator, &req); err != nil {
		return nil, err
	}
	dateOfDeath, err := parseDate("date_of_death", req.DateOfDeath)
	if err != nil {
		return nil, err
	}
	preferred, err := parseDate("preferred_date", req.PreferredDate)
	if err != nil {
		return nil, err
	}

	request := &models.ExhumationRequest{
		PlotID:              NormalizePlotID(req.PlotID),
		UserID:              actor.UserID,
		RequestType:         req.RequestType,
		DeceasedName:        req.DeceasedName,
		DateOfDeath:         dateOfDeath,
		Relationship:        req.Relationship,
		RequestorName:       req.RequestorName,
		RequestorEmail:      req.RequestorEmail,
		RequestorPhone:      req.RequestorPhone,
		RequestorAddress:    req.RequestorAddress,
		Reason:              req.Reason,
		PreferredDate:       preferred,
		NewLocation:         req.NewLocation,
		AlternativeLocation: req.AlternativeLocation,
		DestinationPlotID:   optionalString(NormalizePlotID(req.DestinationPlotID)),
		ValidIDURL:          req.ValidIDURL,
		DeathCertificateURL: req.DeathCertificateURL,
		BirthCertificateURL: req.BirthCertificateURL,
		AffidavitURL:        req.AffidavitURL,
		BurialPermitURL:     req.BurialPermitURL,
		Status:              models.ExhumationStatusPending,
	}
	if err := s.store.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exhumation request")
	}
	s.emitAudit(ctx, actor, models.AuditActionExhumationSubmit, request.ID, nil, request)
	return request, nil
}

// List returns every request for admins and the caller's own requests otherwise.
func (s *ExhumationService) List(ctx context.Context, actor *models.Principal, query dto.ExhumationQuery) ([]models.ExhumationRequest, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	limit, offset := pageToLimit(query.Page, query.Size)
	filter := models.ExhumationFilter{
		Status: query.Status,
		PlotID: NormalizePlotID(query.PlotID),
		Limit:  limit,
		Offset: offset,
	}
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	requests, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exhumation requests")
	}
	return requests, nil
}

// ListMine returns the caller's own requests regardless of role.
func (s *ExhumationService) ListMine(ctx context.Context, actor *models.Principal, query dto.ExhumationQuery) ([]models.ExhumationRequest, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	own := &models.Principal{UserID: actor.UserID, Email: actor.Email, Role: models.RoleUser}
	return s.List(ctx, own, query)
}

// Get loads a request visible to the caller.
func (s *ExhumationService) Get(ctx context.Context, actor *models.Principal, id string) (*models.ExhumationRequest, error) {
	if err := requireAuthenticated(actor); err != nil {
		return nil, err
	}
	request, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exhumation request")
	}
	if !actor.IsAdmin() && request.UserID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// Transition applies an admin decision. The status write, the plot side effects and the
// request row lock share one transaction; events, audit and notifications follow the commit.
func (s *ExhumationService) Transition(ctx context.Context, actor *models.Principal, id string, req dto.TransitionExhumationRequest) (*dto.ExhumationTransitionResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateStruct(s.validator, &req); err != nil {
		return nil, err
	}
	exhumationDate, err := parseDate("exhumation_date", req.ExhumationDate)
	if err != nil {
		return nil, err
	}
	to := models.ExhumationStatus(strings.ToLower(string(req.Status)))

	var (
		request  *models.ExhumationRequest
		from     models.ExhumationStatus
		transfer *dto.TransferOutcome
	)
	err = s.tx.Within(ctx, func(ctx context.Context) error {
		current, err := s.store.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exhumation request")
		}
		from = current.Status
		if !canTransitionExhumation(from, to) {
			return appErrors.InvalidTransition(string(from), string(to))
		}

		now := time.Now().UTC()
		params := repository.UpdateExhumationStatusParams{
			ID:         current.ID,
			From:       from,
			To:         to,
			AdminNotes: optionalString(req.Notes),
		}
		switch to {
		case models.ExhumationStatusApproved:
			params.ReviewedBy = &actor.UserID
			params.ReviewedAt = &now
			params.ExhumationDate = exhumationDate
			params.ExhumationTeam = optionalString(req.ExhumationTeam)
		case models.ExhumationStatusRejected:
			params.ReviewedBy = &actor.UserID
			params.ReviewedAt = &now
		case models.ExhumationStatusCompleted:
			params.CompletedAt = &now
			params.ExhumationDate = exhumationDate
			params.ExhumationTeam = optionalString(req.ExhumationTeam)
		}
		if err := s.store.UpdateStatus(ctx, params); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.InvalidTransition(string(from), string(to))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exhumation request")
		}
		applyExhumationParams(current, params)

		switch to {
		case models.ExhumationStatusApproved:
			transfer, err = s.plots.Relocate(ctx, current.PlotID, resolveDestination(current))
			if err != nil {
				return err
			}
		case models.ExhumationStatusCompleted:
			if _, err := s.plots.ClearOccupant(ctx, current.PlotID, ClearPolicy{
				Status:          models.PlotStatusAvailable,
				Note:            models.PlotNoteAvailable,
				CreateIfMissing: true,
			}); err != nil {
				return err
			}
		}
		request = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if transfer != nil && !transfer.Transferred {
		s.logger.Warn("exhumation approved without transfer",
			zap.String("request_id", request.ID),
			zap.String("origin_plot_id", transfer.OriginPlotID),
			zap.String("destination_plot_id", transfer.DestinationPlotID),
			zap.String("reason", transfer.SkipReason))
	}

	s.publishTransition(request.ID, request.PlotID, string(from), string(to), actor)
	s.emitAudit(ctx, actor, models.AuditActionExhumationReview, request.ID,
		map[string]string{"status": string(from)}, request)

	result := &dto.ExhumationTransitionResult{Request: request, Transfer: transfer}
	if kind, ok := exhumationNotificationKind(to); ok {
		result.Warning = s.notify(ctx, models.Notification{
			Kind:      kind,
			Recipient: request.RequestorEmail,
			Payload:   exhumationPayload(request),
		})
	}
	return result, nil
}

// resolveDestination prefers the structured destination, then the plot token of the
// alternative location, then of the new location.
func resolveDestination(request *models.ExhumationRequest) string {
	if request.DestinationPlotID != nil {
		if id := NormalizePlotID(*request.DestinationPlotID); id != "" {
			return id
		}
	}
	if id := destinationFromLocation(request.AlternativeLocation); id != "" {
		return id
	}
	return destinationFromLocation(request.NewLocation)
}

func applyExhumationParams(request *models.ExhumationRequest, params repository.UpdateExhumationStatusParams) {
	request.Status = params.To
	if params.ReviewedBy != nil {
		request.ReviewedBy = params.ReviewedBy
	}
	if params.ReviewedAt != nil {
		request.ReviewedAt = params.ReviewedAt
	}
	if params.AdminNotes != nil {
		request.AdminNotes = params.AdminNotes
	}
	if params.ExhumationDate != nil {
		request.ExhumationDate = params.ExhumationDate
	}
	if params.ExhumationTeam != nil {
		request.ExhumationTeam = params.ExhumationTeam
	}
	if params.CompletedAt != nil {
		request.CompletedAt = params.CompletedAt
	}
	request.UpdatedAt = time.Now().UTC()
}

func exhumationNotificationKind(to models.ExhumationStatus) (models.NotificationKind, bool) {
	switch to {
	case models.ExhumationStatusApproved:
		return models.NotificationExhumationApproved, true
	case models.ExhumationStatusRejected:
		return models.NotificationExhumationRejected, true
	}
	return "", false
}

func exhumationPayload(request *models.ExhumationRequest) map[string]string {
	payload := map[string]string{
		"request_id":     request.ID,
		"plot_id":        request.PlotID,
		"deceased_name":  request.DeceasedName,
		"requestor_name": request.RequestorName,
		"status":         string(request.Status),
	}
	if request.AdminNotes != nil {
		payload["notes"] = *request.AdminNotes
	}
	if request.ExhumationDate != nil {
		payload["exhumation_date"] = request.ExhumationDate.Format(dateLayout)
	}
	return payload
}
