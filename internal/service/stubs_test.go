package service

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/noah-isme/cemetery-api/internal/models"
	"github.com/noah-isme/cemetery-api/internal/repository"
)

type txStub struct {
	calls int
	mu    sync.Mutex
}

func (t *txStub) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return fn(ctx)
}

// serialTxStub runs one transaction at a time, like transactions contending for the same lock.
type serialTxStub struct {
	txStub
	lock sync.Mutex
}

func (t *serialTxStub) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.txStub.Within(ctx, fn)
}

type plotStoreStub struct {
	mu      sync.Mutex
	plots   map[string]models.Plot
	upserts int
	getErr  error
}

func newPlotStoreStub(plots ...models.Plot) *plotStoreStub {
	s := &plotStoreStub{plots: map[string]models.Plot{}}
	for _, p := range plots {
		s.plots[p.PlotID] = p
	}
	return s
}

func (s *plotStoreStub) Get(ctx context.Context, plotID string) (*models.Plot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	p, ok := s.plots[plotID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (s *plotStoreStub) GetForUpdate(ctx context.Context, plotID string) (*models.Plot, error) {
	return s.Get(ctx, plotID)
}

func (s *plotStoreStub) Upsert(ctx context.Context, plot *models.Plot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	s.plots[plot.PlotID] = *plot
	return nil
}

func (s *plotStoreStub) Delete(ctx context.Context, plotID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.plots[plotID]
	delete(s.plots, plotID)
	return ok, nil
}

func (s *plotStoreStub) Query(ctx context.Context, filter models.PlotFilter) ([]models.Plot, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Plot, 0, len(s.plots))
	for _, p := range s.plots {
		if filter.Section != "" && p.Section != filter.Section {
			continue
		}
		if filter.Search != "" && !strings.Contains(p.PlotID, strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlotID < out[j].PlotID })
	return out, len(out), nil
}

func (s *plotStoreStub) CountByStatus(ctx context.Context) (map[models.PlotStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[models.PlotStatus]int{}
	for _, p := range s.plots {
		counts[p.Status]++
	}
	return counts, nil
}

func (s *plotStoreStub) plot(id string) (models.Plot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plots[id]
	return p, ok
}

type exhumationStoreStub struct {
	mu       sync.Mutex
	requests map[string]models.ExhumationRequest
	seq      int
}

func newExhumationStoreStub(requests ...models.ExhumationRequest) *exhumationStoreStub {
	s := &exhumationStoreStub{requests: map[string]models.ExhumationRequest{}}
	for _, r := range requests {
		s.requests[r.ID] = r
	}
	return s
}

func (s *exhumationStoreStub) Create(ctx context.Context, request *models.ExhumationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if request.ID == "" {
		request.ID = "exh-" + strconv.Itoa(s.seq)
	}
	s.requests[request.ID] = *request
	return nil
}

func (s *exhumationStoreStub) GetByID(ctx context.Context, id string) (*models.ExhumationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (s *exhumationStoreStub) GetForUpdate(ctx context.Context, id string) (*models.ExhumationRequest, error) {
	return s.GetByID(ctx, id)
}

func (s *exhumationStoreStub) List(ctx context.Context, filter models.ExhumationFilter) ([]models.ExhumationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ExhumationRequest, 0)
	for _, r := range s.requests {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Offset >= len(out) {
		return nil, nil
	}
	return out[filter.Offset:], nil
}

func (s *exhumationStoreStub) UpdateStatus(ctx context.Context, params repository.UpdateExhumationStatusParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[params.ID]
	if !ok || r.Status != params.From {
		return sql.ErrNoRows
	}
	r.Status = params.To
	s.requests[params.ID] = r
	return nil
}

type reservationStoreStub struct {
	mu           sync.Mutex
	reservations map[string]models.PlotReservation
	lastFilter   models.ReservationFilter
	listCalls    int
	locks        []string
	seq          int
	// enforceOpenIndex mimics the partial unique index on open reservations.
	enforceOpenIndex bool
}

func newReservationStoreStub(reservations ...models.PlotReservation) *reservationStoreStub {
	s := &reservationStoreStub{reservations: map[string]models.PlotReservation{}}
	for _, r := range reservations {
		s.reservations[r.ID] = r
	}
	return s
}

func (s *reservationStoreStub) Create(ctx context.Context, reservation *models.PlotReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enforceOpenIndex {
		for _, r := range s.reservations {
			if r.PlotID == reservation.PlotID && !r.Status.Terminal() {
				return repository.ErrOpenReservationExists
			}
		}
	}
	s.seq++
	if reservation.ID == "" {
		reservation.ID = "res-" + strconv.Itoa(s.seq)
	}
	s.reservations[reservation.ID] = *reservation
	return nil
}

func (s *reservationStoreStub) GetByID(ctx context.Context, id string) (*models.PlotReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (s *reservationStoreStub) GetForUpdate(ctx context.Context, id string) (*models.PlotReservation, error) {
	return s.GetByID(ctx, id)
}

func (s *reservationStoreStub) List(ctx context.Context, filter models.ReservationFilter) ([]models.PlotReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	s.listCalls++
	out := make([]models.PlotReservation, 0)
	for _, r := range s.reservations {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if len(filter.Status) > 0 && !containsReservationStatus(filter.Status, r.Status) {
			continue
		}
		if filter.CreatedBefore != nil && !r.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *reservationStoreStub) LockPlot(ctx context.Context, plotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks = append(s.locks, plotID)
	return nil
}

func (s *reservationStoreStub) CountOpenForPlot(ctx context.Context, plotID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.reservations {
		if r.PlotID == plotID && !r.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

func (s *reservationStoreStub) UpdateStatus(ctx context.Context, params repository.UpdateReservationStatusParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[params.ID]
	if !ok || r.Status != params.From {
		return sql.ErrNoRows
	}
	r.Status = params.To
	s.reservations[params.ID] = r
	return nil
}

func containsReservationStatus(list []models.ReservationStatus, status models.ReservationStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

type notifierStub struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *notifierStub) Notify(ctx context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}

type publisherStub struct {
	mu          sync.Mutex
	transitions []models.TransitionEvent
	changed     []models.PlotChangedEvent
}

func (p *publisherStub) PublishTransition(evt models.TransitionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = append(p.transitions, evt)
}

func (p *publisherStub) PublishPlotChanged(evt models.PlotChangedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, evt)
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

var (
	adminActor = &models.Principal{UserID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin}
	userActor  = &models.Principal{UserID: "user-1", Email: "user@example.com", Role: models.RoleUser}
	otherActor = &models.Principal{UserID: "user-2", Email: "other@example.com", Role: models.RoleUser}
)
