// Package liboralynxevents defines the events emitted by a protocol instance, for observability and audit. They are
// never consumed by the protocol itself.
package liboralynxevents

import (
	"sync"
	"time"

	"github.com/ldsec/oralynx/lib"
	"go.dedis.ch/onet/v3/network"
)

func init() {
	network.RegisterMessage(&BatchOpened{})
	network.RegisterMessage(&BatchClosed{})
	network.RegisterMessage(&SubmissionAccepted{})
	network.RegisterMessage(&RequestIssued{})
	network.RegisterMessage(&ResultDelivered{})
	network.RegisterMessage(&ProviderAdded{})
	network.RegisterMessage(&ProviderRemoved{})
	network.RegisterMessage(&Paused{})
	network.RegisterMessage(&Unpaused{})
	network.RegisterMessage(&CooldownUpdated{})
	network.RegisterMessage(&OwnershipTransferred{})
}

// Event is anything an instance emits.
type Event interface {
	Name() string
}

// BatchOpened is emitted when a batch is opened.
type BatchOpened struct {
	BatchID liboralynx.BatchID
}

// BatchClosed is emitted when a batch is closed.
type BatchClosed struct {
	BatchID liboralynx.BatchID
}

// SubmissionAccepted is emitted when observations are appended to a batch.
type SubmissionAccepted struct {
	Provider liboralynx.Identity
	BatchID  liboralynx.BatchID
	Count    uint64
}

// RequestIssued is emitted when the mean of a batch is sent to the decryption oracle.
type RequestIssued struct {
	RequestID   liboralynx.RequestID
	BatchID     liboralynx.BatchID
	Fingerprint []byte
}

// ResultDelivered is emitted once per request, when its callback is accepted.
type ResultDelivered struct {
	RequestID liboralynx.RequestID
	BatchID   liboralynx.BatchID
	Num       int64
	Den       int64
	Value     float64
}

// ProviderAdded is emitted when a provider is registered.
type ProviderAdded struct {
	Provider liboralynx.Identity
}

// ProviderRemoved is emitted when a provider is unregistered.
type ProviderRemoved struct {
	Provider liboralynx.Identity
}

// Paused is emitted when the instance is paused.
type Paused struct {
	By liboralynx.Identity
}

// Unpaused is emitted when the instance is unpaused.
type Unpaused struct {
	By liboralynx.Identity
}

// CooldownUpdated is emitted when the cooldown changes.
type CooldownUpdated struct {
	Cooldown time.Duration
}

// OwnershipTransferred is emitted when the owner changes.
type OwnershipTransferred struct {
	Previous liboralynx.Identity
	Owner    liboralynx.Identity
}

// Name implements Event.
func (BatchOpened) Name() string { return "BatchOpened" }

// Name implements Event.
func (BatchClosed) Name() string { return "BatchClosed" }

// Name implements Event.
func (SubmissionAccepted) Name() string { return "SubmissionAccepted" }

// Name implements Event.
func (RequestIssued) Name() string { return "RequestIssued" }

// Name implements Event.
func (ResultDelivered) Name() string { return "ResultDelivered" }

// Name implements Event.
func (ProviderAdded) Name() string { return "ProviderAdded" }

// Name implements Event.
func (ProviderRemoved) Name() string { return "ProviderRemoved" }

// Name implements Event.
func (Paused) Name() string { return "Paused" }

// Name implements Event.
func (Unpaused) Name() string { return "Unpaused" }

// Name implements Event.
func (CooldownUpdated) Name() string { return "CooldownUpdated" }

// Name implements Event.
func (OwnershipTransferred) Name() string { return "OwnershipTransferred" }

// Emitter receives events.
type Emitter interface {
	Emit(e Event)
}

// EmitterFunc adapts a function to an Emitter.
type EmitterFunc func(e Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(e Event) {
	f(e)
}

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

// Bus forwards every event to its subscribers, in subscription order.
type Bus struct {
	mutex       sync.RWMutex
	subscribers []Emitter
}

// NewBus creates a bus with the given subscribers.
func NewBus(subscribers ...Emitter) *Bus {
	return &Bus{subscribers: subscribers}
}

// Subscribe adds a subscriber.
func (b *Bus) Subscribe(e Emitter) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.subscribers = append(b.subscribers, e)
}

// Emit implements Emitter.
func (b *Bus) Emit(e Event) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	for _, s := range b.subscribers {
		s.Emit(e)
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mutex  sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements Emitter.
func (r *Recorder) Emit(e Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, e)
}

// Events returns the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]Event(nil), r.events...)
}

// Results returns the recorded ResultDelivered events.
func (r *Recorder) Results() []ResultDelivered {
	var results []ResultDelivered
	for _, e := range r.Events() {
		if res, ok := e.(ResultDelivered); ok {
			results = append(results, res)
		}
	}
	return results
}
