// Package registry implements the subscription registry and the
// set-handler registry, the two lookup structures the engine owns
// exclusively alongside the signal store.
package registry

import (
	"github.com/vehicle-signal/vis-server/internal/codec"
	"github.com/vehicle-signal/vis-server/internal/errorset"
	"github.com/vehicle-signal/vis-server/internal/filter"
)

// Subscription is the per-subscription state the engine tracks: its filter,
// the last value observed from the producer side (latestValue), the last
// value actually delivered to the client, and whether it runs off an
// interval timer.
type Subscription struct {
	ID            codec.SubscriptionID
	SessionID     string
	Path          codec.Path
	Filter        *codec.Filters
	LatestValue   *codec.Value
	LastDelivered *filter.LastDelivered
}

// HasInterval reports whether this subscription is driven by an interval
// timer rather than by immediate delivery on every update.
func (s *Subscription) HasInterval() bool {
	return s.Filter != nil && s.Filter.IntervalMillis != nil
}

// orderedSet is an insertion-ordered set of subscription ids with O(1)
// membership test and O(n) removal (n being the fan-out for one path or
// session, expected small).
type orderedSet struct {
	order []codec.SubscriptionID
	index map[codec.SubscriptionID]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[codec.SubscriptionID]struct{})}
}

func (s *orderedSet) add(id codec.SubscriptionID) {
	if _, exists := s.index[id]; exists {
		return
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *orderedSet) remove(id codec.SubscriptionID) {
	if _, exists := s.index[id]; !exists {
		return
	}
	delete(s.index, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *orderedSet) contains(id codec.SubscriptionID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *orderedSet) ids() []codec.SubscriptionID {
	out := make([]codec.SubscriptionID, len(s.order))
	copy(out, s.order)
	return out
}

func (s *orderedSet) empty() bool {
	return len(s.order) == 0
}

// Registry holds the three subscription indexes. It is not safe for
// concurrent use; the engine is its sole caller, always from its single
// operation-processing goroutine.
type Registry struct {
	subByID       map[codec.SubscriptionID]*Subscription
	subsByPath    map[string]*orderedSet
	subsBySession map[string]*orderedSet
}

// New returns an empty subscription registry.
func New() *Registry {
	return &Registry{
		subByID:       make(map[codec.SubscriptionID]*Subscription),
		subsByPath:    make(map[string]*orderedSet),
		subsBySession: make(map[string]*orderedSet),
	}
}

// Insert adds a new subscription to all three indexes atomically.
func (r *Registry) Insert(sub *Subscription) {
	r.subByID[sub.ID] = sub

	pathKey := sub.Path.Fold()
	if r.subsByPath[pathKey] == nil {
		r.subsByPath[pathKey] = newOrderedSet()
	}
	r.subsByPath[pathKey].add(sub.ID)

	if r.subsBySession[sub.SessionID] == nil {
		r.subsBySession[sub.SessionID] = newOrderedSet()
	}
	r.subsBySession[sub.SessionID].add(sub.ID)
}

// Get returns the subscription for id, if any.
func (r *Registry) Get(id codec.SubscriptionID) (*Subscription, bool) {
	sub, ok := r.subByID[id]
	return sub, ok
}

// Remove deletes id from all three indexes. It is a no-op if id is unknown.
func (r *Registry) Remove(id codec.SubscriptionID) {
	sub, ok := r.subByID[id]
	if !ok {
		return
	}
	delete(r.subByID, id)

	pathKey := sub.Path.Fold()
	if set, ok := r.subsByPath[pathKey]; ok {
		set.remove(id)
		if set.empty() {
			delete(r.subsByPath, pathKey)
		}
	}
	if set, ok := r.subsBySession[sub.SessionID]; ok {
		set.remove(id)
		if set.empty() {
			delete(r.subsBySession, sub.SessionID)
		}
	}
}

// RemoveForSession removes every subscription owned by sessionID and
// returns their ids, for the caller to cancel any associated interval
// tasks.
func (r *Registry) RemoveForSession(sessionID string) []codec.SubscriptionID {
	set, ok := r.subsBySession[sessionID]
	if !ok {
		return nil
	}
	ids := set.ids()
	for _, id := range ids {
		r.Remove(id)
	}
	return ids
}

// OwnedBySession reports whether id belongs to sessionID, the ownership
// check Unsubscribe must perform before removing anything.
func (r *Registry) OwnedBySession(id codec.SubscriptionID, sessionID string) bool {
	set, ok := r.subsBySession[sessionID]
	if !ok {
		return false
	}
	return set.contains(id)
}

// ForPath returns the ids subscribed to path, in insertion order.
func (r *Registry) ForPath(path codec.Path) []codec.SubscriptionID {
	set, ok := r.subsByPath[path.Fold()]
	if !ok {
		return nil
	}
	return set.ids()
}

// Count reports the total number of active subscriptions, for diagnostics.
func (r *Registry) Count() int {
	return len(r.subByID)
}

// SetConsumer is the contract the set-handler registry dispatches to: a
// per-path handler that attempts to apply a requested value. The consumer
// reports its own domain-level failure via the returned AppError; a nil
// return with no error counts as acceptance.
type SetConsumer func(requestID codec.RequestID, value codec.Value) *errorset.AppError

// SetHandlers is the set-handler registry: one consumer per path, last
// write wins on (re)registration.
type SetHandlers struct {
	consumers map[string]SetConsumer
}

// NewSetHandlers returns an empty set-handler registry.
func NewSetHandlers() *SetHandlers {
	return &SetHandlers{consumers: make(map[string]SetConsumer)}
}

// Register installs consumer as the handler for path, replacing any prior
// registration.
func (h *SetHandlers) Register(path codec.Path, consumer SetConsumer) {
	h.consumers[path.Fold()] = consumer
}

// Unregister removes any handler registered for path.
func (h *SetHandlers) Unregister(path codec.Path) {
	delete(h.consumers, path.Fold())
}

// Dispatch hands value to the consumer registered for path. It returns
// invalid_path if no consumer is registered, and otherwise whatever the
// consumer returns, verbatim. The consumer is called synchronously; Dispatch
// has no separate delivery-failure outcome and returns no
// service_unavailable of its own.
func (h *SetHandlers) Dispatch(path codec.Path, value codec.Value, requestID codec.RequestID) *errorset.AppError {
	consumer, ok := h.consumers[path.Fold()]
	if !ok {
		return errorset.InvalidPath(path.String())
	}
	return consumer(requestID, value)
}

