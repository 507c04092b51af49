package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/cemetery-api/internal/models"
)

type cacheRepoStub struct {
	mu       sync.Mutex
	patterns []string
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error { return nil }
func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = append(c.patterns, pattern)
	return nil
}

func waitPublished(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscribers did not finish")
	}
}

func TestEventHubInvalidatesCacheAndCountsTransitions(t *testing.T) {
	hub := NewEventHub(zap.NewNop())
	repo := &cacheRepoStub{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	metrics := NewMetricsService()
	unsubscribe := RegisterEventSubscribers(hub, cache, metrics, zap.NewNop())
	defer func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}()

	waitPublished(t, hub.Publish(models.TopicTransitioned, models.TransitionEvent{Machine: models.MachineExhumation, From: "pending", To: "approved"}))
	waitPublished(t, hub.Publish(models.TopicPlotChanged, models.PlotChangedEvent{PlotIDs: []string{"rb-l3-k1"}}))

	repo.mu.Lock()
	assert.Equal(t, []string{plotCachePattern, plotCachePattern}, repo.patterns)
	repo.mu.Unlock()

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.TransitionsTotal)
}

func TestEventHubSubscribe(t *testing.T) {
	hub := NewEventHub(nil)
	received := make(chan models.TransitionEvent, 1)
	unsubscribe := hub.Subscribe(models.TopicTransitioned, func(topic string, data interface{}) {
		received <- data.(models.TransitionEvent)
	})
	defer unsubscribe()

	hub.PublishTransition(models.TransitionEvent{RequestID: "res-1"})
	select {
	case evt := <-received:
		require.Equal(t, "res-1", evt.RequestID)
	case <-time.After(time.Second):
		t.Fatal("event not received")
	}

	var nilHub *EventHub
	waitPublished(t, nilHub.Publish("any", nil))
}

func TestEventHubTypedPublishInvalidatesBeforeReturning(t *testing.T) {
	hub := NewEventHub(zap.NewNop())
	repo := &cacheRepoStub{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	unsubscribe := RegisterEventSubscribers(hub, cache, nil, zap.NewNop())
	defer func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}()

	hub.PublishTransition(models.TransitionEvent{Machine: models.MachineReservation, From: "PAID", To: "ACTIVE"})
	repo.mu.Lock()
	assert.Equal(t, []string{plotCachePattern}, repo.patterns)
	repo.mu.Unlock()

	hub.PublishPlotChanged(models.PlotChangedEvent{PlotIDs: []string{"lb-2-a"}})
	repo.mu.Lock()
	assert.Equal(t, []string{plotCachePattern, plotCachePattern}, repo.patterns)
	repo.mu.Unlock()

	var nilHub *EventHub
	nilHub.PublishTransition(models.TransitionEvent{})
}
