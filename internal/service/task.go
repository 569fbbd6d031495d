package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	tdotel "github.com/Strob0t/TaskDesk/internal/adapter/otel"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
	"github.com/Strob0t/TaskDesk/internal/form"
	"github.com/Strob0t/TaskDesk/internal/mutation"
	"github.com/Strob0t/TaskDesk/internal/port/invalidation"
	"github.com/Strob0t/TaskDesk/internal/port/taskapi"
	"github.com/Strob0t/TaskDesk/internal/querycache"
)

// Mutation names, also used as notification sources.
const (
	CreateMutationName = "task.create"
	UpdateMutationName = "task.update"
)

// prefetchConcurrency bounds parallel page prefetches.
const prefetchConcurrency = 2

// TaskService serves paginated task lists through the query cache and opens
// create and edit form sessions wired to mutations.
type TaskService struct {
	client      taskapi.TaskClient
	cache       *querycache.Cache[task.Page]
	pageSize    int
	prefetch    int
	notifier    mutation.Notifier
	broadcaster invalidation.Broadcaster
	metrics     *tdotel.Metrics
	loc         *time.Location
}

// TaskServiceOption configures a TaskService.
type TaskServiceOption func(*TaskService)

// WithPageSize sets the number of tasks per page.
func WithPageSize(n int) TaskServiceOption {
	return func(s *TaskService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithPrefetch loads the next n pages in the background after each page.
func WithPrefetch(n int) TaskServiceOption {
	return func(s *TaskService) { s.prefetch = n }
}

// WithNotifier delivers mutation notifications.
func WithNotifier(n mutation.Notifier) TaskServiceOption {
	return func(s *TaskService) { s.notifier = n }
}

// WithBroadcaster shares invalidations with other processes.
func WithBroadcaster(b invalidation.Broadcaster) TaskServiceOption {
	return func(s *TaskService) { s.broadcaster = b }
}

// WithMetrics records mutation metrics.
func WithMetrics(m *tdotel.Metrics) TaskServiceOption {
	return func(s *TaskService) { s.metrics = m }
}

// WithLocation sets the zone due dates are edited in.
func WithLocation(loc *time.Location) TaskServiceOption {
	return func(s *TaskService) { s.loc = loc }
}

// NewTaskService creates a new TaskService.
func NewTaskService(client taskapi.TaskClient, cache *querycache.Cache[task.Page], opts ...TaskServiceOption) *TaskService {
	s := &TaskService{
		client:   client,
		cache:    cache,
		pageSize: task.DefaultPageSize,
		loc:      time.Local,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PageSize returns the configured page size.
func (s *TaskService) PageSize() int { return s.pageSize }

// PageQuery returns the cache query for a 1-based page.
func (s *TaskService) PageQuery(page int) querycache.Query[task.Page] {
	page = task.NormalizePage(page)
	size := s.pageSize
	return querycache.Query[task.Page]{
		Key: querycache.PageKey(task.Resource, page),
		Load: func(ctx context.Context) (task.Page, error) {
			res, err := s.client.ListTasks(ctx, task.Skip(page, size), size)
			if err != nil {
				return task.Page{}, err
			}
			return *task.NewPage(res, page, size), nil
		},
	}
}

// Page returns a page of tasks, from cache when fresh.
func (s *TaskService) Page(ctx context.Context, page int) (*task.Page, error) {
	p, err := s.cache.Get(ctx, s.PageQuery(page))
	if err != nil {
		return nil, fmt.Errorf("load tasks page %d: %w", task.NormalizePage(page), err)
	}
	if s.prefetch > 0 {
		go func() {
			if err := s.PrefetchNext(context.WithoutCancel(ctx), &p, s.prefetch); err != nil {
				slog.Debug("prefetch failed", "page", p.Page, "error", err)
			}
		}()
	}
	return &p, nil
}

// PrefetchNext warms up to n pages following p that exist and are not
// already fresh in the cache.
func (s *TaskService) PrefetchNext(ctx context.Context, p *task.Page, n int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)

	last := p.PageCount()
	for next := p.Page + 1; next <= p.Page+n && next <= last; next++ {
		q := s.PageQuery(next)
		if snap, ok := s.cache.Read(q.Key); ok && !snap.IsStale && snap.Status == querycache.StatusSuccess {
			continue
		}
		g.Go(func() error {
			_, err := s.cache.Fetch(ctx, q)
			return err
		})
	}
	return g.Wait()
}

// Observe creates a page observer for a view. Point it at a page with
// obs.SetQuery(ctx, s.PageQuery(n)) and Close it when the view goes away.
func (s *TaskService) Observe(onChange func(querycache.Result[task.Page])) *querycache.Observer[task.Page] {
	return querycache.NewObserver(s.cache, onChange)
}

// Invalidate marks all cached task pages stale.
func (s *TaskService) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, task.Resource)
}

// ListenRemote applies invalidations published by other processes.
func (s *TaskService) ListenRemote(ctx context.Context, b invalidation.Broadcaster) (cancel func(), err error) {
	return b.Subscribe(func(resource string) {
		if resource != task.Resource {
			return
		}
		slog.Debug("remote invalidation", "resource", resource)
		s.cache.Invalidate(ctx, resource)
	})
}

func (s *TaskService) mutationOptions() []mutation.Option {
	opts := []mutation.Option{mutation.WithInvalidator(s.cache)}
	if s.broadcaster != nil {
		opts = append(opts, mutation.WithBroadcaster(s.broadcaster))
	}
	if s.notifier != nil {
		opts = append(opts, mutation.WithNotifier(s.notifier))
	}
	if s.metrics != nil {
		opts = append(opts, mutation.WithMetrics(s.metrics))
	}
	return opts
}

// NewCreateSession opens a create dialog. Each session owns its mutation,
// so repeated submits of one dialog are rejected while one is pending.
func (s *TaskService) NewCreateSession() *form.TaskSession {
	m := mutation.New(mutation.Config[task.CreateRequest, *task.Task]{
		Name:           CreateMutationName,
		Do:             s.client.CreateTask,
		Invalidates:    []string{task.Resource},
		SuccessMessage: func(*task.Task) string { return "Task created successfully." },
	}, s.mutationOptions()...)

	return form.NewCreateSession(func(ctx context.Context, req task.CreateRequest) error {
		_, err := m.Run(ctx, req)
		return err
	}, form.WithLocation(s.loc))
}

type updateInput struct {
	id  string
	req task.UpdateRequest
}

// NewEditSession opens an edit dialog seeded from t.
func (s *TaskService) NewEditSession(t task.Task) *form.TaskSession {
	m := mutation.New(mutation.Config[updateInput, *task.Task]{
		Name: UpdateMutationName,
		Do: func(ctx context.Context, in updateInput) (*task.Task, error) {
			return s.client.UpdateTask(ctx, in.id, in.req)
		},
		Invalidates:    []string{task.Resource},
		SuccessMessage: func(*task.Task) string { return "Task updated successfully." },
	}, s.mutationOptions()...)

	return form.NewEditSession(t, func(ctx context.Context, id string, req task.UpdateRequest) error {
		_, err := m.Run(ctx, updateInput{id: id, req: req})
		return err
	}, form.WithLocation(s.loc))
}

// Find returns the task with id. Pages already in the cache are searched
// first, from page 1 up to the first page not loaded; otherwise the task is
// fetched on its own. An unknown id wraps domain.ErrNotFound.
func (s *TaskService) Find(ctx context.Context, id string) (*task.Task, error) {
	for page := 1; ; page++ {
		snap, ok := s.cache.Read(s.PageQuery(page).Key)
		if !ok || !snap.HasData {
			break
		}
		for i := range snap.Data.Items {
			if snap.Data.Items[i].ID == id {
				t := snap.Data.Items[i]
				return &t, nil
			}
		}
		if !snap.Data.HasNext() {
			break
		}
	}

	t, err := s.client.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find task %s: %w", id, err)
	}
	return t, nil
}
