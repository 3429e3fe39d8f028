package usecase

import (
	"fmt"
	"sync"

	"CrashCast/internal/domain/models"
	"CrashCast/pkg/logger"
)

// Emitter fans prediction events out to subscribers. Delivery is
// synchronous and in subscription order; every subscriber sees every event
// exactly once, in emission order. A panicking subscriber is isolated so it
// cannot stall the loop or its peers.
type Emitter struct {
	mu     sync.Mutex
	subs   []subscription
	nextID int
	log    *logger.Logger
}

type subscription struct {
	id int
	fn func(models.PredictionEvent)
}

// NewEmitter creates an emitter. The logger may be nil.
func NewEmitter(log *logger.Logger) *Emitter {
	return &Emitter{log: log}
}

// Subscribe registers a callback and returns its subscription id.
func (e *Emitter) Subscribe(fn func(models.PredictionEvent)) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	e.subs = append(e.subs, subscription{id: e.nextID, fn: fn})
	return e.nextID
}

// Unsubscribe removes a callback by id.
func (e *Emitter) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers ev to every subscriber in order. The subscription list is
// snapshotted first and callbacks run outside the lock, so a subscriber may
// call Subscribe or Unsubscribe re-entrantly. Emission order is preserved
// because only the forecast loop emits.
func (e *Emitter) Emit(ev models.PredictionEvent) {
	e.mu.Lock()
	subs := make([]subscription, len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, s := range subs {
		e.deliver(s, ev)
	}
}

func (e *Emitter) deliver(s subscription, ev models.PredictionEvent) {
	defer func() {
		if r := recover(); r != nil && e.log != nil {
			e.log.Error("subscriber panic", logger.Int("subscription", s.id), logger.Error(fmt.Errorf("%v", r)))
		}
	}()
	s.fn(ev)
}

// Len returns the current subscriber count.
func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
