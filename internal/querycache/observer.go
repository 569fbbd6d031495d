package querycache

import (
	"context"
	"sync"
)

// Result is what a view renders.
type Result[T any] struct {
	Key     Key
	Data    T
	HasData bool
	Status  Status
	Err     error
	// IsFetching: a load for Key is in flight.
	IsFetching bool
	// IsPlaceholderData: Data belongs to the previous key and is shown
	// until Key has data of its own. Views render it dimmed.
	IsPlaceholderData bool
	IsStale           bool
}

// Observer follows one query on behalf of a view. Switching keys keeps the
// last data on screen as a placeholder so the view never flashes empty.
type Observer[T any] struct {
	cache    *Cache[T]
	onChange func(Result[T])

	mu          sync.Mutex
	query       Query[T]
	active      bool
	unsubscribe func()
	current     Snapshot[T]
	placeholder *T
	closed      bool
}

// NewObserver creates an observer on c. onChange, if non-nil, is called
// after every state change of the observed key.
func NewObserver[T any](c *Cache[T], onChange func(Result[T])) *Observer[T] {
	return &Observer[T]{cache: c, onChange: onChange}
}

// SetQuery points the observer at q. A new key is subscribed and loaded in
// the background when it has no fresh data.
func (o *Observer[T]) SetQuery(ctx context.Context, q Query[T]) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if o.active && o.query.Key.String() == q.Key.String() {
		o.query = q
		o.mu.Unlock()
		o.refreshIfNeeded(ctx, q)
		return
	}

	if o.active {
		if r := o.resultLocked(); r.HasData {
			data := r.Data
			o.placeholder = &data
		}
	}
	prev := o.unsubscribe
	o.query = q
	o.active = true
	o.current = Snapshot[T]{Key: q.Key}
	o.unsubscribe = o.cache.Subscribe(q.Key, o.deliver)
	o.mu.Unlock()

	if prev != nil {
		prev()
	}

	snap, _ := o.cache.Read(q.Key)
	snap.Key = q.Key
	o.deliver(snap)

	o.refreshIfNeeded(ctx, q)
}

func (o *Observer[T]) refreshIfNeeded(ctx context.Context, q Query[T]) {
	snap, ok := o.cache.Read(q.Key)
	if ok && snap.Status == StatusSuccess && !snap.IsStale {
		return
	}
	if snap.IsFetching {
		return
	}
	o.cache.Refresh(ctx, q)
}

// Refetch loads the current key again regardless of freshness.
func (o *Observer[T]) Refetch(ctx context.Context) {
	o.mu.Lock()
	q, ok := o.query, o.active && !o.closed
	o.mu.Unlock()
	if ok {
		o.cache.Refresh(ctx, q)
	}
}

func (o *Observer[T]) deliver(snap Snapshot[T]) {
	o.mu.Lock()
	if o.closed || !o.active || snap.Key.String() != o.query.Key.String() {
		o.mu.Unlock()
		return
	}
	if snap.Version < o.current.Version {
		o.mu.Unlock()
		return
	}
	o.current = snap
	if snap.HasData {
		o.placeholder = nil
	}
	r := o.resultLocked()
	fn := o.onChange
	o.mu.Unlock()

	if fn != nil {
		fn(r)
	}
}

// Result returns the current view state.
func (o *Observer[T]) Result() Result[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resultLocked()
}

func (o *Observer[T]) resultLocked() Result[T] {
	cur := o.current
	r := Result[T]{
		Key:        o.query.Key,
		Data:       cur.Data,
		HasData:    cur.HasData,
		Status:     cur.Status,
		Err:        cur.Err,
		IsFetching: cur.IsFetching,
		IsStale:    cur.IsStale,
	}
	if !cur.HasData && o.placeholder != nil {
		r.Data = *o.placeholder
		r.HasData = true
		r.IsPlaceholderData = true
	}
	return r
}

// Close detaches the observer. Results arriving afterwards are dropped;
// loads already in flight still complete into the cache.
func (o *Observer[T]) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	unsub := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
