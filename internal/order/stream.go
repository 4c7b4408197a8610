package order

// Stream is one listener's attachment to an order, independent of the
// transport that carries the events to the remote side. The consumer reads
// Events until it sees a terminal status (or its transport disconnects) and
// then calls Close to release the subscription.
type Stream struct {
	events chan StatusView
	unsub  func()
}

// OpenStream attaches a listener to an order. The current state is always
// the first event delivered; if it is already terminal no subscription is
// registered, since no further transition can happen. Otherwise every
// subsequent update follows, in the order applied to the store.
//
// Registration and snapshot delivery happen in one store critical section
// (Store.Attach), so an update racing with the attach is queued strictly
// after the snapshot: the consumer never sees a regression and never a
// gap.
func (s *Service) OpenStream(id string) (*Stream, error) {
	o, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	// Buffer covers the longest possible lifecycle (snapshot plus three
	// transitions), so the terminal event is never dropped.
	st := &Stream{events: make(chan StatusView, 8)}

	if o.Status.Terminal() {
		st.events <- o.View()
		st.unsub = func() {}
		return st, nil
	}

	unsubscribe, err := s.store.Attach(id, func(updated Order) {
		select {
		case st.events <- updated.View():
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	st.unsub = unsubscribe

	return st, nil
}

func (st *Stream) Events() <-chan StatusView {
	return st.events
}

// Close releases the subscription. Idempotent; must be called on transport
// disconnect even when no terminal state was ever reached, otherwise the
// subscriber entry leaks for the life of the process.
func (st *Stream) Close() {
	st.unsub()
}
