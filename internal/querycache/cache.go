package querycache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	tdotel "github.com/Strob0t/TaskDesk/internal/adapter/otel"
	"github.com/Strob0t/TaskDesk/internal/port/cache"
)

// Status is the load state of an entry.
type Status int

const (
	// StatusPending: no data and no error yet.
	StatusPending Status = iota
	// StatusSuccess: the entry holds data.
	StatusSuccess
	// StatusError: the last load failed. Data from an earlier success is kept.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "pending"
	}
}

// Snapshot is the state of one entry at a point in time.
type Snapshot[T any] struct {
	Key        Key
	Data       T
	HasData    bool
	Status     Status
	Err        error
	IsFetching bool
	IsStale    bool
	UpdatedAt  time.Time
	// Version increases with every state transition of the entry. Callbacks
	// may run concurrently, so subscribers use it to drop older deliveries.
	Version uint64
}

// Loader fetches the value for a key from the backend.
type Loader[T any] func(ctx context.Context) (T, error)

// Query pairs a key with the loader that produces its value.
type Query[T any] struct {
	Key  Key
	Load Loader[T]
}

type entry[T any] struct {
	key       Key
	data      T
	hasData   bool
	err       error
	status    Status
	fetching  bool
	stale     bool
	updatedAt time.Time
	version   uint64
	// gen is bumped by Invalidate; a load that started under an older gen
	// stores its data but leaves the entry stale.
	gen    uint64
	loader Loader[T]
	subs   map[uint64]func(Snapshot[T])
}

func (e *entry[T]) snapshot() Snapshot[T] {
	return Snapshot[T]{
		Key:        e.key,
		Data:       e.data,
		HasData:    e.hasData,
		Status:     e.status,
		Err:        e.err,
		IsFetching: e.fetching,
		IsStale:    e.stale,
		UpdatedAt:  e.updatedAt,
		Version:    e.version,
	}
}

func (e *entry[T]) callbacks() []func(Snapshot[T]) {
	if len(e.subs) == 0 {
		return nil
	}
	fns := make([]func(Snapshot[T]), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	return fns
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	store   cache.Cache
	ttl     time.Duration
	metrics *tdotel.Metrics
}

// WithSnapshotStore writes successful results through to store and warms
// absent entries from it as stale data.
func WithSnapshotStore(store cache.Cache, ttl time.Duration) Option {
	return func(o *options) {
		o.store = store
		o.ttl = ttl
	}
}

// WithMetrics records hits, misses, fetches and dedups.
func WithMetrics(m *tdotel.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Cache holds query results of type T. All state changes happen under one
// mutex and run to completion; subscriber callbacks run after it is released.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	nextSub uint64
	group   singleflight.Group
	opts    options
}

// New creates an empty cache.
func New[T any](opts ...Option) *Cache[T] {
	c := &Cache[T]{entries: make(map[string]*entry[T])}
	for _, o := range opts {
		o(&c.opts)
	}
	return c
}

// entryLocked returns the entry for k, creating it. Caller holds c.mu.
func (c *Cache[T]) entryLocked(k Key) *entry[T] {
	id := k.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry[T]{key: k}
		c.entries[id] = e
	}
	return e
}

// Read returns the current snapshot for k without blocking. ok is false
// when nothing has been loaded for k yet.
func (c *Cache[T]) Read(k Key) (Snapshot[T], bool) {
	c.mu.Lock()
	e, exists := c.entries[k.String()]
	var snap Snapshot[T]
	ok := exists && (e.hasData || e.status == StatusError)
	if exists {
		snap = e.snapshot()
	}
	c.mu.Unlock()

	c.count(ok)
	return snap, ok
}

// Subscribe registers fn for every state transition of k and returns the
// function that removes it.
func (c *Cache[T]) Subscribe(k Key, fn func(Snapshot[T])) (unsubscribe func()) {
	c.mu.Lock()
	e := c.entryLocked(k)
	if e.subs == nil {
		e.subs = make(map[uint64]func(Snapshot[T]))
	}
	c.nextSub++
	id := c.nextSub
	e.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(e.subs, id)
			c.mu.Unlock()
		})
	}
}

// Get returns the cached value for q.Key when it is fresh and loads it
// otherwise.
func (c *Cache[T]) Get(ctx context.Context, q Query[T]) (T, error) {
	if snap, ok := c.Read(q.Key); ok && snap.Status == StatusSuccess && !snap.IsStale {
		return snap.Data, nil
	}
	return c.Fetch(ctx, q)
}

// Fetch loads q.Key and waits for the result. A load already in flight for
// the key is joined rather than repeated. The load itself is not cancelled
// when ctx is; only the wait is.
func (c *Cache[T]) Fetch(ctx context.Context, q Query[T]) (T, error) {
	ch := c.start(ctx, q)
	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Refresh starts loading q.Key in the background unless a load is already
// in flight. The in-flight flag is set before Refresh returns.
func (c *Cache[T]) Refresh(ctx context.Context, q Query[T]) {
	c.start(ctx, q)
}

func (c *Cache[T]) start(ctx context.Context, q Query[T]) <-chan singleflight.Result {
	id := q.Key.String()

	c.mu.Lock()
	e := c.entryLocked(q.Key)
	e.loader = q.Load
	joined := e.fetching
	var fns []func(Snapshot[T])
	var snap Snapshot[T]
	if !joined {
		e.fetching = true
		e.version++
		snap, fns = e.snapshot(), e.callbacks()
	}
	c.mu.Unlock()

	notify(fns, snap)

	if joined {
		c.add(ctx, func(m *tdotel.Metrics) metric.Int64Counter { return m.CacheDedups }, id)
	}

	loadCtx := context.WithoutCancel(ctx)
	return c.group.DoChan(id, func() (any, error) {
		return c.load(loadCtx, q)
	})
}

// load runs inside singleflight, so at most once concurrently per key. When
// the key is invalidated while loading and still watched, the load repeats
// inside the same flight so joined callers receive the fresh value.
func (c *Cache[T]) load(ctx context.Context, q Query[T]) (T, error) {
	id := q.Key.String()
	for {
		c.mu.Lock()
		e := c.entryLocked(q.Key)
		gen := e.gen
		e.fetching = true
		warm := !e.hasData && c.opts.store != nil
		c.mu.Unlock()

		if warm {
			c.warm(ctx, q.Key, gen)
		}

		c.add(ctx, func(m *tdotel.Metrics) metric.Int64Counter { return m.CacheFetches }, id)

		spanCtx, span := tdotel.StartFetchSpan(ctx, id)
		v, err := q.Load(spanCtx)
		if err != nil {
			span.RecordError(err)
		}
		span.End()

		next, again := c.complete(ctx, q.Key, gen, v, err)
		if !again {
			return v, err
		}
		q.Load = next
	}
}

// warm seeds an absent entry from the snapshot store. Warmed data is
// always stale.
func (c *Cache[T]) warm(ctx context.Context, k Key, gen uint64) {
	raw, ok, err := c.opts.store.Get(ctx, k.String())
	if err != nil {
		slog.Warn("snapshot store read failed", "key", k.String(), "error", err)
		return
	}
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Warn("snapshot decode failed", "key", k.String(), "error", err)
		return
	}

	c.mu.Lock()
	e := c.entryLocked(k)
	if e.hasData || e.gen != gen {
		c.mu.Unlock()
		return
	}
	e.data = v
	e.hasData = true
	e.status = StatusSuccess
	e.stale = true
	e.version++
	snap, fns := e.snapshot(), e.callbacks()
	c.mu.Unlock()

	notify(fns, snap)
}

// complete stores a load result. It reports whether the key must be loaded
// again because it was invalidated meanwhile and is still watched.
func (c *Cache[T]) complete(ctx context.Context, k Key, gen uint64, v T, err error) (Loader[T], bool) {
	id := k.String()

	c.mu.Lock()
	e := c.entryLocked(k)
	if err != nil {
		e.err = err
		e.status = StatusError
	} else {
		e.data = v
		e.hasData = true
		e.err = nil
		e.status = StatusSuccess
		e.updatedAt = time.Now()
		e.stale = false
	}
	invalidated := e.gen != gen
	if invalidated {
		e.stale = true
	}
	again := invalidated && len(e.subs) > 0 && e.loader != nil
	if !again {
		e.fetching = false
		// A Refresh that sees fetching=false must start a new flight.
		c.group.Forget(id)
	}
	loader := e.loader
	e.version++
	snap, fns := e.snapshot(), e.callbacks()
	c.mu.Unlock()

	if err != nil {
		slog.Debug("query load failed", "key", id, "error", err)
	}

	notify(fns, snap)

	if err == nil && c.opts.store != nil && !invalidated {
		c.persist(ctx, k, v)
	}
	return loader, again
}

func (c *Cache[T]) persist(ctx context.Context, k Key, v T) {
	raw, err := json.Marshal(v)
	if err != nil {
		slog.Warn("snapshot encode failed", "key", k.String(), "error", err)
		return
	}
	if err := c.opts.store.Set(ctx, k.String(), raw, c.opts.ttl); err != nil {
		slog.Warn("snapshot store write failed", "key", k.String(), "error", err)
	}
}

// Invalidate marks every key of resource stale. Watched keys are refetched;
// a load already in flight finishes first and is then repeated.
func (c *Cache[T]) Invalidate(ctx context.Context, resource string) {
	type pending struct {
		snap Snapshot[T]
		fns  []func(Snapshot[T])
		q    *Query[T]
	}

	c.mu.Lock()
	var batch []pending
	for _, e := range c.entries {
		if e.key.Resource != resource {
			continue
		}
		e.gen++
		e.stale = true
		e.version++
		p := pending{snap: e.snapshot(), fns: e.callbacks()}
		if len(e.subs) > 0 && e.loader != nil && !e.fetching {
			p.q = &Query[T]{Key: e.key, Load: e.loader}
		}
		batch = append(batch, p)
	}
	c.mu.Unlock()

	slog.Debug("query cache invalidated", "resource", resource, "keys", len(batch))

	for _, p := range batch {
		if c.opts.store != nil {
			if err := c.opts.store.Delete(ctx, p.snap.Key.String()); err != nil {
				slog.Warn("snapshot store delete failed", "key", p.snap.Key.String(), "error", err)
			}
		}
		notify(p.fns, p.snap)
		if p.q != nil {
			c.Refresh(ctx, *p.q)
		}
	}
}

func notify[T any](fns []func(Snapshot[T]), snap Snapshot[T]) {
	for _, fn := range fns {
		fn(snap)
	}
}

func (c *Cache[T]) count(hit bool) {
	if hit {
		c.add(context.Background(), func(m *tdotel.Metrics) metric.Int64Counter { return m.CacheHits }, "")
		return
	}
	c.add(context.Background(), func(m *tdotel.Metrics) metric.Int64Counter { return m.CacheMisses }, "")
}

func (c *Cache[T]) add(ctx context.Context, pick func(*tdotel.Metrics) metric.Int64Counter, key string) {
	if c.opts.metrics == nil {
		return
	}
	var opts []metric.AddOption
	if key != "" {
		opts = append(opts, metric.WithAttributes(attribute.String("query.key", key)))
	}
	pick(c.opts.metrics).Add(ctx, 1, opts...)
}
