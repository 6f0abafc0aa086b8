package fluidpay

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type EventType string

const (
	EventConfigChanged EventType = "config_changed"
	EventSettled       EventType = "settled"
	EventSwept         EventType = "swept"
)

// Event is emitted after a state change has been committed.
type Event struct {
	Type      EventType      `json:"type"`
	Action    string         `json:"action,omitempty"`
	Actor     common.Address `json:"actor"`
	Params    *Params        `json:"params,omitempty"`
	Receipt   *Receipt       `json:"receipt,omitempty"`
	Sweep     *SweepResult   `json:"sweep,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventSink receives module events synchronously, in commit order.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}

// ConfigChange is an owner configuration change about to be committed.
type ConfigChange struct {
	Action    string
	Actor     common.Address
	Params    Params
	Timestamp time.Time
}

// ConfigStore persists a configuration change before the module applies it.
// A failed save aborts the change.
type ConfigStore interface {
	SaveConfig(ctx context.Context, change ConfigChange) error
}

type nopSink struct{}

func (nopSink) Publish(context.Context, Event) {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
