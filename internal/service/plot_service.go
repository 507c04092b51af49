package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/cemetery-api/internal/dto"
	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
)

const (
	dateLayout        = "2006-01-02"
	plotCachePattern  = "plots:*"
	plotStatsCacheKey = "plots:stats"
)

func plotViewCacheKey(plotID string) string {
	return "plots:view:" + NormalizePlotID(plotID)
}

type plotStore interface {
	Get(ctx context.Context, plotID string) (*models.Plot, error)
	GetForUpdate(ctx context.Context, plotID string) (*models.Plot, error)
	Upsert(ctx context.Context, plot *models.Plot) error
	Delete(ctx context.Context, plotID string) (bool, error)
	Query(ctx context.Context, filter models.PlotFilter) ([]models.Plot, int, error)
	CountByStatus(ctx context.Context) (map[models.PlotStatus]int, error)
}

// ClearPolicy selects how ClearOccupant leaves a plot.
type ClearPolicy struct {
	// Status is available (default) or exhumed.
	Status models.PlotStatus
	Note   string
	// CreateIfMissing registers an unknown plot instead of failing with PLOT_NOT_FOUND.
	CreateIfMissing bool
}

// DeriveStatus returns occupied when the trimmed occupant name is non-empty.
func DeriveStatus(occupantName string) models.PlotStatus {
	if strings.TrimSpace(occupantName) != "" {
		return models.PlotStatusOccupied
	}
	return models.PlotStatusAvailable
}

// ComputeAge returns whole years between the civil dates of birth and death using
// floor(days/365.25). Nil when either date is missing. Negative spans are returned as is.
func ComputeAge(dateOfBirth, dateOfDeath *time.Time) *int {
	if dateOfBirth == nil || dateOfDeath == nil {
		return nil
	}
	days := civilDate(*dateOfDeath).Sub(civilDate(*dateOfBirth)).Hours() / 24
	age := int(math.Floor(days / 365.25))
	return &age
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PlotLifecycleService is the single authority over plot status and occupant data.
type PlotLifecycleService struct {
	store     plotStore
	tx        txRunner
	audit     auditLogger
	events    eventPublisher
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// PlotServiceOption configures the plot service.
type PlotServiceOption func(*PlotLifecycleService)

// WithPlotCache enables read caching of plot views and stats.
func WithPlotCache(cache *CacheService) PlotServiceOption {
	return func(s *PlotLifecycleService) {
		s.cache = cache
	}
}

// WithPlotEvents publishes plot.changed events after admin edits.
func WithPlotEvents(events eventPublisher) PlotServiceOption {
	return func(s *PlotLifecycleService) {
		if events != nil {
			s.events = events
		}
	}
}

// NewPlotLifecycleService constructs the service.
func NewPlotLifecycleService(store plotStore, tx txRunner, audit auditLogger, validate *validator.Validate, logger *zap.Logger, opts ...PlotServiceOption) *PlotLifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	svc := &PlotLifecycleService{
		store:     store,
		tx:        tx,
		audit:     audit,
		events:    noopPublisher{},
		validator: validate,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// GetOrDefault returns the stored plot, or an unpersisted available plot decoded from the id.
// The boolean reports whether the plot is registered.
func (s *PlotLifecycleService) GetOrDefault(ctx context.Context, plotID string) (*models.Plot, bool, error) {
	if strings.TrimSpace(plotID) == "" {
		return nil, false, appErrors.Validation("plot_id", "is required")
	}
	plot, err := s.store.Get(ctx, NormalizePlotID(plotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultPlot(plotID), false, nil
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plot")
	}
	return plot, true, nil
}

// lockOrDefault is GetOrDefault with a row lock, for use inside a transaction.
func (s *PlotLifecycleService) lockOrDefault(ctx context.Context, plotID string) (*models.Plot, bool, error) {
	if strings.TrimSpace(plotID) == "" {
		return nil, false, appErrors.Validation("plot_id", "is required")
	}
	plot, err := s.store.GetForUpdate(ctx, NormalizePlotID(plotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return defaultPlot(plotID), false, nil
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock plot")
	}
	return plot, true, nil
}

func (s *PlotLifecycleService) save(ctx context.Context, plot *models.Plot) error {
	if err := s.store.Upsert(ctx, plot); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save plot")
	}
	return nil
}

// ClearOccupant empties every occupant field and the notes, keeping the plot identity.
// Clearing an already clear plot rewrites the same state.
func (s *PlotLifecycleService) ClearOccupant(ctx context.Context, plotID string, policy ClearPolicy) (*models.Plot, error) {
	if policy.Status == "" {
		policy.Status = models.PlotStatusAvailable
	}
	if policy.Status != models.PlotStatusAvailable && policy.Status != models.PlotStatusExhumed {
		return nil, appErrors.Validation("status", "must be one of [available exhumed]")
	}
	var result *models.Plot
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		plot, exists, err := s.lockOrDefault(ctx, plotID)
		if err != nil {
			return err
		}
		if !exists && !policy.CreateIfMissing {
			return appErrors.PlotNotFound(NormalizePlotID(plotID))
		}
		plot.Occupant = models.Occupant{}
		plot.Notes = policy.Note
		plot.Status = policy.Status
		if err := s.save(ctx, plot); err != nil {
			return err
		}
		result = plot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetOccupant writes occupant data, marks the plot occupied and recomputes the age.
func (s *PlotLifecycleService) SetOccupant(ctx context.Context, plotID string, occupant models.Occupant, createIfMissing bool) (*models.Plot, error) {
	occupant.OccupantName = strings.TrimSpace(occupant.OccupantName)
	if occupant.OccupantName == "" {
		return nil, appErrors.Validation("occupant_name", "is required")
	}
	occupant.Age = ComputeAge(occupant.DateOfBirth, occupant.DateOfDeath)

	var result *models.Plot
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		plot, exists, err := s.lockOrDefault(ctx, plotID)
		if err != nil {
			return err
		}
		if !exists && !createIfMissing {
			return appErrors.PlotNotFound(NormalizePlotID(plotID))
		}
		plot.Occupant = occupant
		plot.Status = models.PlotStatusOccupied
		if err := s.save(ctx, plot); err != nil {
			return err
		}
		result = plot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkReserved holds the plot for a reservation without touching occupant data.
func (s *PlotLifecycleService) MarkReserved(ctx context.Context, plotID string) (*models.Plot, error) {
	var result *models.Plot
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		plot, _, err := s.lockOrDefault(ctx, plotID)
		if err != nil {
			return err
		}
		if plot.Status == models.PlotStatusOccupied {
			return appErrors.InvalidTransition(string(plot.Status), string(models.PlotStatusReserved))
		}
		plot.Status = models.PlotStatusReserved
		if err := s.save(ctx, plot); err != nil {
			return err
		}
		result = plot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Relocate moves the origin occupant to the destination plot and leaves the origin exhumed.
// When the transfer cannot happen the origin is still marked exhumed and keeps its data.
// Both plot rows are locked in id order.
func (s *PlotLifecycleService) Relocate(ctx context.Context, originID, destinationID string) (*dto.TransferOutcome, error) {
	originID = NormalizePlotID(originID)
	destinationID = NormalizePlotID(destinationID)
	outcome := &dto.TransferOutcome{OriginPlotID: originID, DestinationPlotID: destinationID}

	err := s.tx.Within(ctx, func(ctx context.Context) error {
		ids := []string{originID}
		if destinationID != "" && destinationID != originID {
			ids = append(ids, destinationID)
		}
		sort.Strings(ids)
		locked := make(map[string]*models.Plot, len(ids))
		for _, id := range ids {
			plot, _, err := s.lockOrDefault(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = plot
		}
		origin := locked[originID]
		destination := locked[destinationID]

		switch {
		case destinationID == "":
			outcome.SkipReason = "no destination plot could be resolved"
		case destinationID == originID:
			outcome.SkipReason = "destination is the origin plot"
		case strings.TrimSpace(origin.OccupantName) == "":
			outcome.SkipReason = "origin plot has no occupant"
		case strings.TrimSpace(destination.OccupantName) != "":
			outcome.SkipReason = "destination plot is occupied"
		}

		if outcome.SkipReason != "" {
			origin.Status = models.PlotStatusExhumed
			return s.save(ctx, origin)
		}

		destination.Occupant = origin.Occupant
		destination.Notes = origin.Notes
		destination.Status = models.PlotStatusOccupied
		if err := s.save(ctx, destination); err != nil {
			return err
		}

		origin.Occupant = models.Occupant{}
		origin.Notes = models.PlotNoteRelocated
		origin.Status = models.PlotStatusExhumed
		if err := s.save(ctx, origin); err != nil {
			return err
		}
		outcome.Transferred = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// View returns the plot for display with its registry flag, served from cache when enabled.
func (s *PlotLifecycleService) View(ctx context.Context, plotID string) (*dto.PlotView, error) {
	view, _, err := remember(ctx, s.cache, plotViewCacheKey(plotID), func(ctx context.Context) (*dto.PlotView, error) {
		plot, exists, err := s.GetOrDefault(ctx, plotID)
		if err != nil {
			return nil, err
		}
		return &dto.PlotView{Plot: *plot, Registered: exists}, nil
	})
	return view, err
}

// Search lists registered plots.
func (s *PlotLifecycleService) Search(ctx context.Context, filter models.PlotFilter) ([]models.Plot, *models.Pagination, error) {
	for _, status := range filter.Status {
		if !status.Valid() {
			return nil, nil, appErrors.Validation("status", "must be one of [available reserved occupied exhumed]")
		}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 500 {
		filter.PageSize = 100
	}
	plots, total, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search plots")
	}
	return plots, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Stats counts registered plots by status.
func (s *PlotLifecycleService) Stats(ctx context.Context) (*models.PlotStats, error) {
	stats, _, err := remember(ctx, s.cache, plotStatsCacheKey, func(ctx context.Context) (*models.PlotStats, error) {
		counts, err := s.store.CountByStatus(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate plots")
		}
		stats := &models.PlotStats{ByStatus: make(map[models.PlotStatus]int, 4), Generated: time.Now().UTC()}
		for _, status := range []models.PlotStatus{models.PlotStatusAvailable, models.PlotStatusReserved, models.PlotStatusOccupied, models.PlotStatusExhumed} {
			stats.ByStatus[status] = counts[status]
			stats.Total += counts[status]
		}
		return stats, nil
	})
	return stats, err
}

// Create registers a plot. Status is derived from the occupant name.
func (s *PlotLifecycleService) Create(ctx context.Context, actor *models.Principal, req dto.CreatePlotRequest) (*models.Plot, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateStruct(s.validator, &req); err != nil {
		return nil, err
	}
	occupant, err := occupantFromInput(req.OccupantInput)
	if err != nil {
		return nil, err
	}

	plot := defaultPlot(req.PlotID)
	applyPlotIdentity(plot, req.Section, req.Level, req.PlotNumber)
	applyOccupant(plot, occupant, req.Notes)

	err = s.tx.Within(ctx, func(ctx context.Context) error {
		if _, exists, err := s.lockOrDefault(ctx, plot.PlotID); err != nil {
			return err
		} else if exists {
			return appErrors.Clone(appErrors.ErrConflict, "plot already registered")
		}
		return s.save(ctx, plot)
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, actor, models.AuditActionPlotCreate, plot.PlotID, nil, plot)
	s.publishChanged(plot.PlotID, plot.Status)
	return plot, nil
}

// Update edits an existing plot. Any supplied status is ignored and re-derived.
func (s *PlotLifecycleService) Update(ctx context.Context, actor *models.Principal, plotID string, req dto.UpdatePlotRequest) (*models.Plot, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateStruct(s.validator, &req); err != nil {
		return nil, err
	}
	occupant, err := occupantFromInput(req.OccupantInput)
	if err != nil {
		return nil, err
	}

	var before models.Plot
	var result *models.Plot
	err = s.tx.Within(ctx, func(ctx context.Context) error {
		plot, exists, err := s.lockOrDefault(ctx, plotID)
		if err != nil {
			return err
		}
		if !exists {
			return appErrors.PlotNotFound(NormalizePlotID(plotID))
		}
		before = *plot
		applyPlotIdentity(plot, req.Section, req.Level, req.PlotNumber)
		applyOccupant(plot, occupant, req.Notes)
		if err := s.save(ctx, plot); err != nil {
			return err
		}
		result = plot
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, actor, models.AuditActionPlotUpdate, result.PlotID, &before, result)
	s.publishChanged(result.PlotID, result.Status)
	return result, nil
}

// Clear is the admin entry point to ClearOccupant.
func (s *PlotLifecycleService) Clear(ctx context.Context, actor *models.Principal, plotID string, req dto.ClearPlotRequest) (*models.Plot, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateStruct(s.validator, &req); err != nil {
		return nil, err
	}
	plot, err := s.ClearOccupant(ctx, plotID, ClearPolicy{Status: req.Status, Note: req.Note})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor, models.AuditActionPlotClear, plot.PlotID, nil, plot)
	s.publishChanged(plot.PlotID, plot.Status)
	return plot, nil
}

// Delete removes a registered plot.
func (s *PlotLifecycleService) Delete(ctx context.Context, actor *models.Principal, plotID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	id := NormalizePlotID(plotID)
	existed, err := s.store.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete plot")
	}
	if !existed {
		return appErrors.PlotNotFound(id)
	}
	s.emitAudit(ctx, actor, models.AuditActionPlotDelete, id, nil, nil)
	s.publishChanged(id, "")
	return nil
}

func (s *PlotLifecycleService) publishChanged(plotID string, status models.PlotStatus) {
	s.events.PublishPlotChanged(models.PlotChangedEvent{
		PlotIDs:    []string{plotID},
		Status:     status,
		OccurredAt: time.Now().UTC(),
	})
}

func (s *PlotLifecycleService) emitAudit(ctx context.Context, actor *models.Principal, action, plotID string, before, after *models.Plot) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "plot",
		ResourceID: &plotID,
		IPAddress:  "system",
		UserAgent:  "plot-service",
	}
	if before != nil {
		log.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		log.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("plot_id", plotID), zap.Error(err))
	}
}

func applyPlotIdentity(plot *models.Plot, section string, level int, number string) {
	if section != "" {
		plot.Section = section
	}
	if level > 0 {
		plot.Level = level
	}
	if number != "" {
		plot.PlotNumber = number
	}
}

// applyOccupant enforces the occupancy invariant: without a name the plot is available
// and carries no occupant data.
func applyOccupant(plot *models.Plot, occupant models.Occupant, notes string) {
	plot.Status = DeriveStatus(occupant.OccupantName)
	if plot.Status == models.PlotStatusAvailable {
		plot.Occupant = models.Occupant{}
	} else {
		occupant.Age = ComputeAge(occupant.DateOfBirth, occupant.DateOfDeath)
		plot.Occupant = occupant
	}
	plot.Notes = notes
}

func occupantFromInput(in dto.OccupantInput) (models.Occupant, error) {
	occupant := models.Occupant{
		OccupantName:  in.OccupantName,
		CauseOfDeath:  in.CauseOfDeath,
		Religion:      in.Religion,
		FamilyName:    in.FamilyName,
		NextOfKin:     in.NextOfKin,
		ContactNumber: in.ContactNumber,
		Address:       in.Address,
	}
	var err error
	if occupant.DateOfBirth, err = parseDate("date_of_birth", in.DateOfBirth); err != nil {
		return occupant, err
	}
	if occupant.DateOfDeath, err = parseDate("date_of_death", in.DateOfDeath); err != nil {
		return occupant, err
	}
	if occupant.DateOfInterment, err = parseDate("date_of_interment", in.DateOfInterment); err != nil {
		return occupant, err
	}
	return occupant, nil
}

func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, appErrors.Validation(field, fmt.Sprintf("must be a date in %s format", "YYYY-MM-DD"))
	}
	return &t, nil
}
