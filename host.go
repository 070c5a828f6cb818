package main

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Host runs invocations against the stored history. Every call loads the
// history, runs, and saves it again if it changed; calls are serialized.
type Host struct {
	mu      sync.Mutex
	key     string
	depth   int
	store   Store
	auth    *Authorizer
	broker  *Broker
	events  *EventLog
	metrics *Metrics
	log     *zap.SugaredLogger
}

func NewHost(cfg HistoryConfig, store Store, auth *Authorizer, broker *Broker, metrics *Metrics, log *zap.SugaredLogger) *Host {
	// Fail at startup rather than on the first invocation.
	checkCapacity(cfg.Depth)
	return &Host{
		key:     cfg.Key,
		depth:   cfg.Depth,
		store:   store,
		auth:    auth,
		broker:  broker,
		events:  NewEventLog(historyEventLogSize),
		metrics: metrics,
		log:     log,
	}
}

// load returns the stored history, or a fresh one if nothing was saved yet.
// Read-only invocations pass nil sinks so they log and publish nothing.
func (h *Host) load(ctx context.Context, events *EventLog, broker *Broker) (*PriceHistory, error) {
	data, err := h.store.Load(ctx, h.key)
	if errors.Is(err, ErrNotFound) {
		return NewPriceHistory(h.key, h.depth, events, broker, h.log), nil
	}
	if err != nil {
		return nil, err
	}
	return UnmarshalPriceHistory(h.key, h.depth, data, events, broker, h.log)
}

func (h *Host) save(ctx context.Context, history *PriceHistory) error {
	data, err := history.MarshalBinary()
	if err != nil {
		return err
	}
	if err := h.store.Save(ctx, h.key, data); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.observe(history)
	}
	return nil
}

func (h *Host) view(ctx context.Context, fn func(*PriceHistory) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	history, err := h.load(ctx, nil, nil)
	if err != nil {
		return err
	}
	return fn(history)
}

func (h *Host) mutate(ctx context.Context, signer string, fn func(*PriceHistory) error) error {
	if err := h.auth.Authorize(signer); err != nil {
		if h.metrics != nil {
			h.metrics.Rejected.Inc()
		}
		h.log.Warnw("Rejected write", "signer", signer)
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	history, err := h.load(ctx, h.events, h.broker)
	if err != nil {
		return err
	}
	if err := fn(history); err != nil {
		return err
	}
	return h.save(ctx, history)
}

// RecordPrice adds price to the history on behalf of signer.
func (h *Host) RecordPrice(ctx context.Context, signer string, price float64) error {
	err := h.mutate(ctx, signer, func(history *PriceHistory) error {
		return history.RecordPrice(ctx, price)
	})
	if err == nil && h.metrics != nil {
		h.metrics.Recorded.Inc()
	}
	return err
}

// GetAverage returns the average of the window or ErrWindowNotFull.
func (h *Host) GetAverage(ctx context.Context) (avg float64, err error) {
	err = h.view(ctx, func(history *PriceHistory) error {
		avg, err = history.GetAverage()
		return err
	})
	return avg, err
}

func (h *Host) DepthSoFar(ctx context.Context) (depth int, err error) {
	err = h.view(ctx, func(history *PriceHistory) error {
		depth = history.DepthSoFar()
		return nil
	})
	return depth, err
}

// RecentEvents returns the lifecycle events logged by this host, oldest
// first.
func (h *Host) RecentEvents() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events.Recent()
}

// RequiredDepth needs no storage access; the depth is fixed by configuration.
func (h *Host) RequiredDepth() int {
	return h.depth
}

// Reset forgets the history on behalf of signer.
func (h *Host) Reset(ctx context.Context, signer string) error {
	err := h.mutate(ctx, signer, func(history *PriceHistory) error {
		return history.Reset(ctx)
	})
	if err == nil && h.metrics != nil {
		h.metrics.Resets.Inc()
	}
	return err
}
