package events

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"courtside/internal/domain"
	"courtside/internal/models"
)

// Handler reacts to a change.
type Handler func(change models.Change)

// Bus provides in-process pub/sub of store changes, keyed by affected user.
type Bus struct {
	subscribers map[string]map[uint64]Handler
	nextID      uint64
	forward     Handler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *zerolog.Logger) *Bus {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "events").Logger()
	}
	return &Bus{subscribers: make(map[string]map[uint64]Handler), logger: l}
}

// Subscribe registers handler for changes affecting userID. The returned
// subscription is owned by the caller.
func (b *Bus) Subscribe(userID string, handler func(models.Change)) domain.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subscribers[userID] == nil {
		b.subscribers[userID] = make(map[uint64]Handler)
	}
	b.subscribers[userID][id] = handler
	return &subscription{bus: b, userID: userID, id: id}
}

// SetForwarder installs a hook that receives every locally published change,
// used to fan changes out to other instances.
func (b *Bus) SetForwarder(fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forward = fn
}

// Publish delivers the change locally and forwards it.
func (b *Bus) Publish(change models.Change) {
	if change.At.IsZero() {
		change.At = time.Now()
	}
	b.Deliver(change)

	b.mu.RLock()
	fwd := b.forward
	b.mu.RUnlock()
	if fwd != nil {
		fwd(change)
	}
}

// Deliver notifies local subscribers only. Handlers run synchronously in
// subscription order per user, so a user sees changes in publish order.
func (b *Bus) Deliver(change models.Change) {
	for _, userID := range change.UserIDs {
		for _, h := range b.handlers(userID) {
			b.call(h, change)
		}
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (b *Bus) Subscribers(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[userID])
}

func (b *Bus) handlers(userID string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := b.subscribers[userID]
	if len(subs) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Handler, 0, len(ids))
	for _, id := range ids {
		out = append(out, subs[id])
	}
	return out
}

func (b *Bus) call(h Handler, change models.Change) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("kind", string(change.Kind)).Str("id", change.ID).Msg("change handler panicked")
		}
	}()
	h(change)
}

func (b *Bus) remove(userID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[userID]
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.subscribers, userID)
	}
}

type subscription struct {
	bus    *Bus
	userID string
	id     uint64
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s.userID, s.id) })
}
