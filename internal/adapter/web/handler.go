// Package web serves the local browser UI for tasks and spreadsheet jobs.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/TaskDesk/internal/adapter/otel"
	"github.com/Strob0t/TaskDesk/internal/adapter/ws"
	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
	"github.com/Strob0t/TaskDesk/internal/form"
	"github.com/Strob0t/TaskDesk/internal/middleware"
	"github.com/Strob0t/TaskDesk/internal/querycache"
	"github.com/Strob0t/TaskDesk/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxUpload bounds spreadsheet uploads accepted from the browser.
const maxUpload = 32 << 20

// Handler renders the UI pages.
type Handler struct {
	tasks *service.TaskService
	jobs  *service.JobFlow
	hub   *ws.Hub
	tmpl  *template.Template
	loc   *time.Location
	log   *slog.Logger

	// view is the task list shown in the browser. It keeps the previous
	// page's rows as placeholders while the next page loads.
	view *querycache.Observer[task.Page]

	dialogs *dialogs

	mu    sync.Mutex
	dirty bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLocation sets the zone due dates are displayed in.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) { h.loc = loc }
}

// WithLogger sets the access logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// NewHandler parses the embedded templates and attaches the task view.
func NewHandler(tasks *service.TaskService, jobs *service.JobFlow, hub *ws.Hub, opts ...Option) (*Handler, error) {
	h := &Handler{tasks: tasks, jobs: jobs, hub: hub, dialogs: newDialogs(), loc: time.Local, log: slog.Default()}
	for _, o := range opts {
		o(h)
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"has": func(vals []string, v task.Status) bool {
			for _, s := range vals {
				if s == string(v) {
					return true
				}
			}
			return false
		},
		"due": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.In(h.loc).Format("2006-01-02 15:04")
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	h.tmpl = tmpl
	h.view = tasks.Observe(h.viewChanged)
	return h, nil
}

// Close detaches the task view from the cache.
func (h *Handler) Close() {
	h.view.Close()
}

// viewChanged pushes a re-render to browsers once a stale or placeholder
// view has settled on fresh data.
func (h *Handler) viewChanged(r querycache.Result[task.Page]) {
	h.mu.Lock()
	if r.IsStale || r.IsPlaceholderData || r.IsFetching {
		h.dirty = true
		h.mu.Unlock()
		return
	}
	push := h.dirty && r.Status == querycache.StatusSuccess
	h.dirty = false
	h.mu.Unlock()

	if push {
		h.hub.BroadcastEvent(context.Background(), ws.EventInvalidate, ws.InvalidateEvent{Resource: task.Resource})
	}
}

// Routes returns the UI router.
func (h *Handler) Routes(serviceName string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(h.log))
	r.Use(otel.HTTPMiddleware(serviceName, "/ws"))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/tasks", http.StatusFound)
	})
	r.Get("/tasks", h.listTasks)
	r.Get("/tasks/new", h.newTask)
	r.Post("/tasks", h.createTask)
	r.Get("/tasks/{id}/edit", h.editTask)
	r.Post("/tasks/{id}", h.updateTask)
	r.Get("/process", h.processPage)
	r.Post("/process", h.submitProcess)
	r.Get("/ws", h.hub.HandleWS)
	return r
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("render template", "template", name, "error", err)
	}
}

// statusFor maps a submission error onto the response status of the
// re-rendered page.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	}
	apiErr, ok := domain.AsAPIError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch apiErr.Kind {
	case domain.KindServerValidation:
		return http.StatusUnprocessableEntity
	case domain.KindClient:
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// applyTaskForm copies the posted fields into s.
func applyTaskForm(r *http.Request, s *form.TaskSession) error {
	desc := form.None()
	if v := r.PostFormValue(form.FieldDescription); v != "" {
		desc = form.Some(v)
	}
	status := r.PostForm[form.FieldStatus]
	if status == nil {
		status = []string{}
	}
	for _, c := range []struct {
		field string
		value any
	}{
		{form.FieldTitle, r.PostFormValue(form.FieldTitle)},
		{form.FieldDescription, desc},
		{form.FieldStatus, status},
		{form.FieldDueDate, r.PostFormValue(form.FieldDueDate)},
	} {
		if err := s.Change(c.field, c.value); err != nil {
			return err
		}
	}
	return nil
}
