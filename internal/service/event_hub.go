package service

import (
	"context"
	"time"

	"github.com/juju/pubsub/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/cemetery-api/internal/models"
)

// EventHub fans committed domain events out to in-process subscribers.
type EventHub struct {
	hub    *pubsub.SimpleHub
	logger *zap.Logger
}

// NewEventHub constructs a hub backed by a juju SimpleHub.
func NewEventHub(logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		hub:    pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{}),
		logger: logger,
	}
}

// Publish sends data to every subscriber of topic. The returned channel is closed once
// all subscribers have handled the message.
func (h *EventHub) Publish(topic string, data interface{}) <-chan struct{} {
	if h == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	h.logger.Debug("publishing event", zap.String("topic", topic))
	wait := h.hub.Publish(topic, data)
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	return done
}

// PublishTransition implements eventPublisher. It returns once subscribers have run, so a
// read issued after the call never hits a plot cache entry from before the transition.
func (h *EventHub) PublishTransition(evt models.TransitionEvent) {
	h.deliver(models.TopicTransitioned, evt)
}

// PublishPlotChanged implements eventPublisher with the same delivery guarantee.
func (h *EventHub) PublishPlotChanged(evt models.PlotChangedEvent) {
	h.deliver(models.TopicPlotChanged, evt)
}

func (h *EventHub) deliver(topic string, data interface{}) {
	if h == nil {
		return
	}
	h.logger.Debug("delivering event", zap.String("topic", topic))
	h.hub.Publish(topic, data)()
}

// Subscribe registers handler for topic and returns the unsubscribe func.
func (h *EventHub) Subscribe(topic string, handler func(topic string, data interface{})) func() {
	return h.hub.Subscribe(topic, handler)
}

// RegisterEventSubscribers wires cache invalidation and transition metrics to the hub.
func RegisterEventSubscribers(hub *EventHub, cache *CacheService, metrics *MetricsService, logger *zap.Logger) []func() {
	if logger == nil {
		logger = zap.NewNop()
	}
	invalidate := func(topic string, _ interface{}) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cache.Invalidate(ctx, plotCachePattern); err != nil {
			logger.Warn("plot cache invalidation failed", zap.String("topic", topic), zap.Error(err))
		}
	}
	return []func(){
		hub.Subscribe(models.TopicPlotChanged, invalidate),
		hub.Subscribe(models.TopicTransitioned, func(topic string, data interface{}) {
			evt, ok := data.(models.TransitionEvent)
			if !ok {
				return
			}
			metrics.RecordTransition(evt.Machine, evt.From, evt.To)
			invalidate(topic, data)
		}),
	}
}
