package order

import (
	"errors"
	"sync"
)

var (
	ErrNotFound = errors.New("order not found")
	ErrConflict = errors.New("order already exists")
)

// Patch is a partial order update. Nil fields are left untouched.
type Patch struct {
	Status   *Status
	ImageURL *string
}

// Subscriber receives the full updated order on every store update.
// Callbacks run under the store lock: they must not block and must not
// call back into the store.
type Subscriber func(Order)

// Store is the single in-process authority for order state. It keeps the
// primary table, a secondary index by external id for webhook lookups, and
// the per-order subscriber registry. It enforces no transition rules; the
// caller decides whether a transition is legal.
type Store struct {
	mu         sync.Mutex
	orders     map[string]Order
	byExternal map[string]string
	subs       map[string]map[int64]Subscriber
	nextSubID  int64
}

func NewStore() *Store {
	return &Store{
		orders:     make(map[string]Order),
		byExternal: make(map[string]string),
		subs:       make(map[string]map[int64]Subscriber),
	}
}

func (s *Store) Create(o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return ErrConflict
	}
	if _, exists := s.byExternal[o.ExternalID]; exists {
		return ErrConflict
	}

	s.orders[o.ID] = o
	s.byExternal[o.ExternalID] = o.ID
	return nil
}

func (s *Store) Get(id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Store) GetByExternalID(externalID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

// Update applies the patch and delivers the full updated record to every
// subscriber registered for the order before returning. Delivery happens
// under the store lock, so for a single order subscribers observe updates
// in the exact order they were applied, and a subscriber registered after
// Update returns never sees that change.
func (s *Store) Update(id string, p Patch) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}

	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.ImageURL != nil {
		o.ImageURL = p.ImageURL
	}
	s.orders[id] = o

	for _, fn := range s.subs[id] {
		fn(o)
	}

	return &o, nil
}

// Subscribe registers fn for every future update of the order and returns
// an idempotent unsubscribe func. Multiple subscribers per order are
// supported; registration does not require the order to exist.
func (s *Store) Subscribe(id string, fn Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeLocked(id, fn)
}

// Attach registers fn like Subscribe and additionally delivers the order's
// current record to it before releasing the store lock. Registration and
// first delivery are atomic with respect to Update, so the snapshot always
// precedes any later update and can never trail one.
func (s *Store) Attach(id string, fn Subscriber) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}

	unsubscribe := s.subscribeLocked(id, fn)
	fn(o)
	return unsubscribe, nil
}

func (s *Store) subscribeLocked(id string, fn Subscriber) func() {
	set, ok := s.subs[id]
	if !ok {
		set = make(map[int64]Subscriber)
		s.subs[id] = set
	}
	s.nextSubID++
	subID := s.nextSubID
	set[subID] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if set, ok := s.subs[id]; ok {
			delete(set, subID)
			if len(set) == 0 {
				delete(s.subs, id)
			}
		}
	}
}

// SubscriberCount reports the number of live subscriptions for an order.
func (s *Store) SubscriberCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[id])
}
