package form

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
)

// Task form field names. They match the backend's field names so server
// validation errors map back onto them.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldDueDate     = "due_date"
)

// TaskSchema holds the rules of the task form.
var TaskSchema = Schema{
	FieldTitle: {
		{Tag: "notblank", Message: "Title is required."},
		{Tag: fmt.Sprintf("max=%d", task.MaxTitleLength), Message: fmt.Sprintf("Title can be at most %d characters.", task.MaxTitleLength)},
	},
	FieldDescription: {
		{Tag: fmt.Sprintf("max=%d", task.MaxDescriptionLength), Message: fmt.Sprintf("Description can be at most %d characters.", task.MaxDescriptionLength)},
	},
	FieldStatus: {
		{Tag: "min=1", Message: "Status is required."},
		{Tag: "max=1", Message: "Select a single status."},
		{Tag: "dive,oneof=pending in_progress completed", Message: "Status must be one of pending, in_progress, completed."},
	},
	FieldDueDate: {
		{Tag: "tasktime", Message: "Due date must be a valid date and time."},
	},
}

// State is the position of a session in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateEditing
	StateInvalid
	StateValid
	StateSubmitting
	StateSubmissionSucceeded
	StateSubmissionFailed
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateInvalid:
		return "invalid"
	case StateValid:
		return "valid"
	case StateSubmitting:
		return "submitting"
	case StateSubmissionSucceeded:
		return "submission_succeeded"
	case StateSubmissionFailed:
		return "submission_failed"
	default:
		return "idle"
	}
}

// TaskValues are the raw inputs of the task form.
type TaskValues struct {
	Title       string
	Description Optional
	// Status is a multi-select in the UI; it is coalesced to one value on submit.
	Status  []string
	DueDate string
}

// DefaultTaskValues are the inputs of a fresh create dialog.
func DefaultTaskValues() TaskValues {
	return TaskValues{Status: []string{string(task.StatusPending)}}
}

// SeedTaskValues copies t into editable inputs. The due date is shown in loc
// at minute precision; an absent due date becomes "".
func SeedTaskValues(t task.Task, loc *time.Location) TaskValues {
	v := TaskValues{
		Title:       t.Title,
		Description: FromPtr(t.Description),
	}
	if t.Status != "" {
		v.Status = []string{string(t.Status)}
	}
	if t.DueDate != nil {
		v.DueDate = FormatDateTime(*t.DueDate, loc)
	}
	return v
}

func (v TaskValues) fields() map[string]any {
	return map[string]any{
		FieldTitle:       v.Title,
		FieldDescription: v.Description.Value,
		FieldStatus:      v.Status,
		FieldDueDate:     v.DueDate,
	}
}

func (v TaskValues) clone() TaskValues {
	v.Status = slices.Clone(v.Status)
	return v
}

// CreatePayload converts the inputs into a create request.
func (v TaskValues) CreatePayload(loc *time.Location) (task.CreateRequest, error) {
	req := task.CreateRequest{
		Title:       strings.TrimSpace(v.Title),
		Description: v.Description.Ptr(),
		Status:      coalesceStatus(v.Status),
	}
	due, err := parseDue(v.DueDate, loc)
	if err != nil {
		return req, err
	}
	req.DueDate = due
	return req, nil
}

// UpdatePayload returns a patch holding only the fields that differ from seed.
func (v TaskValues) UpdatePayload(seed TaskValues, loc *time.Location) (task.UpdateRequest, error) {
	var req task.UpdateRequest
	if title := strings.TrimSpace(v.Title); title != strings.TrimSpace(seed.Title) {
		req.Title = &title
	}
	if v.Description != seed.Description {
		if v.Description.Set {
			req.Description = v.Description.Ptr()
		} else {
			req.ClearDescription = true
		}
	}
	if s, seedStatus := coalesceStatus(v.Status), coalesceStatus(seed.Status); s != seedStatus {
		req.Status = &s
	}
	if strings.TrimSpace(v.DueDate) != seed.DueDate {
		due, err := parseDue(v.DueDate, loc)
		if err != nil {
			return req, err
		}
		if due == nil {
			req.ClearDueDate = true
		} else {
			req.DueDate = due
		}
	}
	return req, nil
}

// coalesceStatus picks the single status sent on the wire.
func coalesceStatus(values []string) task.Status {
	for _, s := range values {
		if st := task.Status(strings.TrimSpace(s)); st.Valid() {
			return st
		}
	}
	return task.StatusPending
}

func parseDue(s string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseDateTime(s, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: due date: %v", domain.ErrValidation, err)
	}
	return &t, nil
}

// SubmitFunc sends validated inputs to the server.
type SubmitFunc func(ctx context.Context, v TaskValues) error

// Option configures a TaskSession.
type Option func(*TaskSession)

// WithLocation sets the zone used to edit due dates. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *TaskSession) { s.loc = loc }
}

// TaskSession is the state of one create or edit dialog.
type TaskSession struct {
	mu       sync.Mutex
	schema   Schema
	defaults TaskValues
	values   TaskValues
	touched  map[string]bool
	errs     map[string][]string
	server   map[string]string
	formErr  string
	state    State
	closed   bool
	submit   SubmitFunc
	loc      *time.Location
}

func newSession(defaults TaskValues, submit SubmitFunc, opts []Option) *TaskSession {
	s := &TaskSession{
		schema:   TaskSchema,
		defaults: defaults,
		submit:   submit,
		loc:      time.Local,
	}
	for _, o := range opts {
		o(s)
	}
	s.resetLocked()
	return s
}

// NewCreateSession opens a create dialog. send receives the wire payload.
func NewCreateSession(send func(ctx context.Context, req task.CreateRequest) error, opts ...Option) *TaskSession {
	var s *TaskSession
	s = newSession(DefaultTaskValues(), func(ctx context.Context, v TaskValues) error {
		req, err := v.CreatePayload(s.loc)
		if err != nil {
			return err
		}
		return send(ctx, req)
	}, opts)
	return s
}

// NewEditSession opens an edit dialog seeded from t. send receives only
// the changed fields.
func NewEditSession(t task.Task, send func(ctx context.Context, id string, req task.UpdateRequest) error, opts ...Option) *TaskSession {
	var s *TaskSession
	s = newSession(TaskValues{}, func(ctx context.Context, v TaskValues) error {
		req, err := v.UpdatePayload(s.defaults, s.loc)
		if err != nil {
			return err
		}
		return send(ctx, t.ID, req)
	}, opts)
	s.mu.Lock()
	s.defaults = SeedTaskValues(t, s.loc)
	s.resetLocked()
	s.mu.Unlock()
	return s
}

func (s *TaskSession) resetLocked() {
	s.values = s.defaults.clone()
	s.touched = make(map[string]bool)
	s.errs = make(map[string][]string)
	s.server = make(map[string]string)
	s.formErr = ""
	s.state = StateIdle
}

// Change sets a field. Fields validated before are re-validated at once.
// Title and due date take a string, description a string or Optional,
// status a string or []string.
func (s *TaskSession) Change(field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSubmitting {
		return domain.ErrBusy
	}

	switch field {
	case FieldTitle, FieldDueDate:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %T", field, value)
		}
		if field == FieldTitle {
			s.values.Title = str
		} else {
			s.values.DueDate = str
		}
	case FieldDescription:
		switch v := value.(type) {
		case Optional:
			s.values.Description = v
		case string:
			s.values.Description = Some(v)
		case nil:
			s.values.Description = None()
		default:
			return fmt.Errorf("%s: expected string or Optional, got %T", field, value)
		}
	case FieldStatus:
		switch v := value.(type) {
		case []string:
			s.values.Status = slices.Clone(v)
		case string:
			s.values.Status = []string{v}
		default:
			return fmt.Errorf("%s: expected string or []string, got %T", field, value)
		}
	default:
		return fmt.Errorf("unknown field %q", field)
	}

	delete(s.server, field)
	s.formErr = ""
	if s.touched[field] {
		s.validateFieldLocked(field)
	}
	s.updateStateLocked(true)
	return nil
}

// Blur validates field and keeps validating it on every later change.
func (s *TaskSession) Blur(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schema[field]; !ok || s.state == StateSubmitting {
		return
	}
	s.touched[field] = true
	s.validateFieldLocked(field)
	s.updateStateLocked(false)
}

func (s *TaskSession) validateFieldLocked(field string) {
	if msgs := s.schema.ValidateField(field, s.values.fields()[field]); len(msgs) > 0 {
		s.errs[field] = msgs
		return
	}
	delete(s.errs, field)
}

func (s *TaskSession) updateStateLocked(changed bool) {
	switch {
	case len(s.touched) == 0 && changed:
		s.state = StateEditing
	case len(s.touched) == 0:
		// Blur on an untouched form without changes keeps the current state.
	case s.validLocked():
		s.state = StateValid
	default:
		s.state = StateInvalid
	}
}

// validLocked checks every rule, including fields not yet shown as touched.
func (s *TaskSession) validLocked() bool {
	return len(s.schema.Validate(s.values.fields())) == 0 && len(s.server) == 0
}

// Submit validates all fields and, when valid, sends the form. Invalid
// input returns domain.ErrValidation without calling the server; a submit
// while another is in flight returns domain.ErrBusy.
func (s *TaskSession) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return domain.ErrBusy
	}
	if s.closed {
		s.mu.Unlock()
		return errors.New("form session is closed")
	}

	for field := range s.schema {
		s.touched[field] = true
	}
	s.errs = s.schema.Validate(s.values.fields())
	if len(s.errs) > 0 {
		s.state = StateInvalid
		s.mu.Unlock()
		return fmt.Errorf("%w: %d field(s) invalid", domain.ErrValidation, len(s.errs))
	}

	prev := s.state
	s.state = StateSubmitting
	s.server = make(map[string]string)
	s.formErr = ""
	values := s.values.clone()
	s.mu.Unlock()

	err := s.submit(ctx, values)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.resetLocked()
		s.state = StateSubmissionSucceeded
		s.closed = true
	case errors.Is(err, domain.ErrBusy):
		s.state = prev
	default:
		s.state = StateSubmissionFailed
		s.mergeServerErrorLocked(err)
	}
	return err
}

func (s *TaskSession) mergeServerErrorLocked(err error) {
	apiErr, ok := domain.AsAPIError(err)
	if !ok || apiErr.Kind != domain.KindServerValidation {
		s.formErr = domain.UserMessage(err)
		return
	}

	for field, msg := range apiErr.Fields {
		if _, known := s.schema[field]; known {
			s.server[field] = msg
		}
	}
	if apiErr.Field != "" {
		if _, known := s.schema[apiErr.Field]; known {
			s.server[apiErr.Field] = firstNonEmpty(apiErr.Fields[apiErr.Field], apiErr.Message)
		}
	}
	if len(s.server) == 0 {
		s.formErr = domain.UserMessage(err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Cancel discards the inputs and closes the dialog.
func (s *TaskSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.closed = true
}

// State returns the current state.
func (s *TaskSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CanSubmit reports whether the submit control is enabled.
func (s *TaskSession) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateSubmitting && !s.closed && s.validLocked()
}

// Values returns a copy of the current inputs.
func (s *TaskSession) Values() TaskValues {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.clone()
}

// Errors returns the messages shown per field: local rule violations of
// touched fields merged with server-reported field errors.
func (s *TaskSession) Errors() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]string, len(s.errs)+len(s.server))
	for f, msgs := range s.errs {
		out[f] = slices.Clone(msgs)
	}
	for f, msg := range s.server {
		out[f] = append(out[f], msg)
	}
	return out
}

// FieldError returns the messages of one field joined for display.
func (s *TaskSession) FieldError(field string) string {
	return strings.Join(s.Errors()[field], " ")
}

// FormError returns the form-level message of the last failed submission.
func (s *TaskSession) FormError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formErr
}

// Closed reports whether the dialog was closed by success or Cancel.
func (s *TaskSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
