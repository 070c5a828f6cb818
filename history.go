package main

import (
	"context"
	"time"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	stateFilling = "filling"
	stateFull    = "full"

	eventFill  = "fill"
	eventReset = "reset"

	historyEventLogSize = 50
)

// PriceHistory is the hosted state: a window of prices plus the lifecycle
// bookkeeping around it. It is not safe for concurrent use; Host serializes
// access.
type PriceHistory struct {
	Key string

	window *Window[float64]
	events *EventLog
	fsm    *fsm.FSM
	broker *Broker
	log    *zap.SugaredLogger
}

// EventLog keeps the most recent lifecycle events. It outlives the
// histories that write into it.
type EventLog struct {
	ring *Ring[Event]
	n    int
}

func NewEventLog(size int) *EventLog {
	return &EventLog{ring: NewRing[Event](size)}
}

func (l *EventLog) Push(ev Event) {
	l.ring.Push(ev)
	if l.n < l.ring.Cap() {
		l.n++
	}
}

// Recent returns the logged events, oldest first. Slots never written are
// skipped.
func (l *EventLog) Recent() []Event {
	out := make([]Event, 0, l.n)
	for i := l.ring.Cap() - l.n; i < l.ring.Cap(); i++ {
		out = append(out, l.ring.At(i))
	}
	return out
}

type IdentifiedEvent struct {
	Key   string `json:"key"`
	Event Event  `json:"event"`
}

type Event struct {
	Event     string  `json:"event"`
	Price     float64 `json:"price,omitempty"`
	Depth     int     `json:"depth"`
	Timestamp string  `json:"timestamp"`
}

var bogusTimestamp *string

func makeTimeBogus() {
	bogus := "bogustime"
	bogusTimestamp = &bogus
}

func NewEvent(event string, depth int) Event {
	ev := Event{
		Event: event,
		Depth: depth,
	}

	if bogusTimestamp == nil {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	} else {
		ev.Timestamp = *bogusTimestamp
	}

	return ev
}

// NewPriceHistory creates an empty history that needs depth prices before
// an average is available. Lifecycle events go to events and broker, either
// of which may be nil.
func NewPriceHistory(key string, depth int, events *EventLog, broker *Broker, log *zap.SugaredLogger) *PriceHistory {
	h := newPriceHistory(key, NewWindow[float64](depth), events, broker, log)
	h.emit(NewEvent("init", 0))
	return h
}

// UnmarshalPriceHistory restores a history saved with MarshalBinary. The
// stored window must have exactly depth slots.
func UnmarshalPriceHistory(key string, depth int, data []byte, events *EventLog, broker *Broker, log *zap.SugaredLogger) (*PriceHistory, error) {
	w, err := UnmarshalWindow[float64](data)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding history %q", key)
	}
	if w.Capacity() != depth {
		return nil, errors.Errorf("history %q has depth %d, configured depth is %d", key, w.Capacity(), depth)
	}
	return newPriceHistory(key, w, events, broker, log), nil
}

func newPriceHistory(key string, w *Window[float64], events *EventLog, broker *Broker, log *zap.SugaredLogger) *PriceHistory {
	h := &PriceHistory{
		Key:    key,
		window: w,
		events: events,
		broker: broker,
		log:    log.With("key", key),
	}

	initial := stateFilling
	if w.Depth() == w.Capacity() {
		initial = stateFull
	}

	h.fsm = fsm.NewFSM(
		initial,
		fsm.Events{
			{Name: eventFill, Src: []string{stateFilling}, Dst: stateFull},
			{Name: eventReset, Src: []string{stateFull}, Dst: stateFilling},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				h.emit(NewEvent(e.Dst, h.window.Depth()))
			},
		},
	)

	return h
}

func (h *PriceHistory) MarshalBinary() ([]byte, error) {
	return h.window.MarshalBinary()
}

// State returns the lifecycle state, "filling" or "full".
func (h *PriceHistory) State() string {
	return h.fsm.Current()
}

// RecordPrice adds price to the history. Callers are expected to have
// authorized the signer already.
func (h *PriceHistory) RecordPrice(ctx context.Context, price float64) error {
	h.window.Record(price)

	ev := NewEvent("record", h.window.Depth())
	ev.Price = price
	h.publish(ev)

	if h.window.Depth() == h.window.Capacity() && h.fsm.Can(eventFill) {
		if err := h.fsm.Event(ctx, eventFill); err != nil {
			return errors.Wrap(err, "entering full state")
		}
		h.log.Infow("History is full", "depth", h.window.Depth())
	}
	return nil
}

// GetAverage returns the average price, or ErrWindowNotFull when not
// enough historical data has been collected.
func (h *PriceHistory) GetAverage() (float64, error) {
	return h.window.Mean()
}

// DepthSoFar returns the depth of the recorded history.
func (h *PriceHistory) DepthSoFar() int {
	return h.window.Depth()
}

// RequiredDepth returns the amount of historical data required to compute
// the average.
func (h *PriceHistory) RequiredDepth() int {
	return h.window.Capacity()
}

// Reset forgets the history.
func (h *PriceHistory) Reset(ctx context.Context) error {
	h.window.Reset()
	h.emit(NewEvent(eventReset, 0))
	h.log.Info("History has been reset")
	if h.fsm.Is(stateFull) {
		if err := h.fsm.Event(ctx, eventReset); err != nil {
			return errors.Wrap(err, "leaving full state")
		}
	}
	return nil
}

// emit records ev in the event log and publishes it.
func (h *PriceHistory) emit(ev Event) {
	if h.events != nil {
		h.events.Push(ev)
	}
	h.publish(ev)
}

func (h *PriceHistory) publish(ev Event) {
	if h.broker == nil {
		return
	}
	h.broker.Publish(IdentifiedEvent{
		Key:   h.Key,
		Event: ev,
	})
}
