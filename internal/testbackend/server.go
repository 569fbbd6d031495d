// Package testbackend is an in-memory implementation of the task and
// spreadsheet backend. It speaks the same wire format as the real service
// and backs the adapter tests and the `taskdesk stub-backend` command.
package testbackend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Strob0t/TaskDesk/internal/domain/job"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
	"github.com/Strob0t/TaskDesk/internal/middleware"
)

// maxUpload bounds spreadsheet uploads.
const maxUpload = 32 << 20

// Server holds tasks in memory.
type Server struct {
	mu        sync.Mutex
	tasks     []task.Task
	token     string
	delay     time.Duration
	failures  []int
	processed []job.Request
	validate  *validator.Validate
	log       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires a bearer token on every request.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithDelay slows every response down, to make loading states visible.
func WithDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

// WithLogger sets the access logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New creates an empty server.
func New(opts ...Option) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	s := &Server{validate: v, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Seed adds n generated tasks.
func (s *Server) Seed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range n {
		s.tasks = append(s.tasks, task.Task{
			ID:     uuid.NewString(),
			Title:  fmt.Sprintf("Task %d", len(s.tasks)+1),
			Status: task.Statuses[i%len(task.Statuses)],
		})
	}
}

// FailNext makes the next len(statuses) requests fail with those codes.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Tasks returns a copy of the stored tasks.
func (s *Server) Tasks() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]task.Task(nil), s.tasks...)
}

// Processed returns the spreadsheet jobs received so far.
func (s *Server) Processed() []job.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]job.Request(nil), s.processed...)
}

// Handler returns the HTTP handler serving the /api/v1 routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(s.log))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BearerAuth(s.token))
		r.Use(s.injectFailures)

		r.Get("/tasks/", s.listTasks)
		r.Post("/tasks/", s.createTask)
		r.Get("/tasks/{id}", s.getTask)
		r.Put("/tasks/{id}", s.updateTask)
		r.Post("/errores_pami/procesar/", s.processSpreadsheet)
	})
	return r
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-r.Context().Done():
				return
			}
		}
		s.mu.Lock()
		status := 0
		if len(s.failures) > 0 {
			status = s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			writeDetail(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	skip, ok := queryInt(w, r, "skip", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 100)
	if !ok {
		return
	}

	s.mu.Lock()
	total := len(s.tasks)
	data := []task.Task{}
	if skip < total {
		data = append(data, s.tasks[skip:min(skip+limit, total)]...)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, task.ListResult{Data: data, Count: total})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(w, id) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			writeJSON(w, http.StatusOK, s.tasks[i])
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Task not found")
}

// createBody mirrors the backend's TaskCreate model.
type createBody struct {
	Title       string      `json:"title" validate:"required,max=255"`
	Description *string     `json:"description" validate:"omitnil,max=255"`
	Status      task.Status `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	DueDate     *time.Time  `json:"due_date"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if !readJSON(w, r, &body) {
		return
	}
	body.Title = strings.TrimSpace(body.Title)
	if errs := s.check(body); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}
	if body.Status == "" {
		body.Status = task.StatusPending
	}

	t := task.Task{
		ID:          uuid.NewString(),
		Title:       body.Title,
		Description: body.Description,
		Status:      body.Status,
		DueDate:     body.DueDate,
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, t)
}

// updateBody validates the fields of a partial update that are present.
type updateBody struct {
	Title       *string      `json:"title" validate:"omitnil,min=1,max=255"`
	Description *string      `json:"description" validate:"omitnil,max=255"`
	Status      *task.Status `json:"status" validate:"omitnil,oneof=pending in_progress completed"`
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(w, id) {
		return
	}

	var patch task.UpdateRequest
	if !readJSON(w, r, &patch) {
		return
	}
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		patch.Title = &trimmed
	}
	if errs := s.check(updateBody{Title: patch.Title, Description: patch.Description, Status: patch.Status}); len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		applyPatch(&s.tasks[i], patch)
		writeJSON(w, http.StatusOK, s.tasks[i])
		return
	}
	writeDetail(w, http.StatusNotFound, "Task not found")
}

// validID rejects path ids that are not UUIDs the way the backend does.
func validID(w http.ResponseWriter, id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		writeFieldErrors(w, []fieldError{{Loc: []string{"path", "id"}, Msg: "Input should be a valid UUID", Type: "uuid_parsing"}})
		return false
	}
	return true
}

func applyPatch(t *task.Task, p task.UpdateRequest) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	switch {
	case p.Description != nil:
		t.Description = p.Description
	case p.ClearDescription:
		t.Description = nil
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	switch {
	case p.DueDate != nil:
		t.DueDate = p.DueDate
	case p.ClearDueDate:
		t.DueDate = nil
	}
}

func (s *Server) processSpreadsheet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	f, hdr, err := r.FormFile("archivo")
	if err != nil {
		writeFieldErrors(w, []fieldError{{Loc: []string{"body", "archivo"}, Msg: "Field required", Type: "missing"}})
		return
	}
	defer f.Close()

	name := filepath.Base(hdr.Filename)
	if err := job.ValidateFilename(name); err != nil {
		writeDetail(w, http.StatusBadRequest, "El archivo debe ser un Excel (.xlsx o .xls)")
		return
	}

	var params job.Params
	q := r.URL.Query()
	if v := q.Get("spreadsheet_key"); v != "" {
		params.SpreadsheetKey = &v
	}
	if v := q.Get("columna_a_procesar"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeFieldErrors(w, []fieldError{{Loc: []string{"query", "columna_a_procesar"}, Msg: "Input should be a valid integer", Type: "int_parsing"}})
			return
		}
		params.ColumnIndex = &n
	}
	if v := q.Get("aplicar_patrones_default"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeFieldErrors(w, []fieldError{{Loc: []string{"query", "aplicar_patrones_default"}, Msg: "Input should be a valid boolean", Type: "bool_parsing"}})
			return
		}
		params.ApplyDefaultPatterns = &b
	}

	content, err := io.ReadAll(f)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Could not read upload")
		return
	}

	s.mu.Lock()
	s.processed = append(s.processed, job.Request{File: job.File{Name: name, Content: content}, Params: params})
	s.mu.Unlock()

	key := "generated-" + uuid.NewString()[:8]
	if params.SpreadsheetKey != nil {
		key = *params.SpreadsheetKey
	}
	writeJSON(w, http.StatusOK, job.Result{
		Message:        "Archivo procesado correctamente",
		Filename:       name,
		SpreadsheetKey: key,
		ResultLink:     "https://docs.google.com/spreadsheets/d/" + key,
	})
}

// check runs struct validation and converts failures into field errors.
func (s *Server) check(v any) []fieldError {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}
	out := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldError{Loc: []string{"body", fe.Field()}, Msg: message(fe), Type: fe.Tag()})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "min":
		return "String should have at least 1 character"
	case "max":
		return fmt.Sprintf("String should have at most %s characters", fe.Param())
	case "oneof":
		return "Input should be 'pending', 'in_progress' or 'completed'"
	default:
		return "Invalid value"
	}
}

// queryInt reads a non-negative integer query parameter, writing a 422 when
// it is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeFieldErrors(w, []fieldError{{Loc: []string{"query", name}, Msg: "Input should be a valid non-negative integer", Type: "int_parsing"}})
		return 0, false
	}
	return n, true
}
