package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultExpirySchedule = "@every 1h"

type reservationExpirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// ReservationExpiryJob periodically expires reservations nobody acted on.
type ReservationExpiryJob struct {
	expirer  reservationExpirer
	ttl      time.Duration
	schedule string
	timeout  time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReservationExpiryJob builds the sweeper. An empty schedule runs hourly.
func NewReservationExpiryJob(expirer reservationExpirer, ttl time.Duration, schedule string, logger *zap.Logger) *ReservationExpiryJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = defaultExpirySchedule
	}
	return &ReservationExpiryJob{
		expirer:  expirer,
		ttl:      ttl,
		schedule: schedule,
		timeout:  5 * time.Minute,
		logger:   logger,
	}
}

// Start registers the schedule. Overlapping runs are skipped.
func (j *ReservationExpiryJob) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		_, _ = j.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule reservation expiry %q: %w", j.schedule, err)
	}
	c.Start()
	j.cron = c
	j.logger.Info("reservation expiry scheduled", zap.String("schedule", j.schedule), zap.Duration("ttl", j.ttl))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (j *ReservationExpiryJob) Stop(ctx context.Context) {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		j.logger.Warn("reservation expiry did not stop in time")
	}
}

// RunOnce performs a single sweep.
func (j *ReservationExpiryJob) RunOnce(ctx context.Context) (int, error) {
	started := time.Now()
	expired, err := j.expirer.ExpireStale(ctx, j.ttl)
	if err != nil {
		j.logger.Error("reservation expiry failed", zap.Int("expired", expired), zap.Error(err))
		return expired, err
	}
	j.logger.Info("reservation expiry completed", zap.Int("expired", expired), zap.Duration("took", time.Since(started)))
	return expired, nil
}
