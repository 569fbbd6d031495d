package form

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
)

func TestCreateEmptyTitleNeverSubmits(t *testing.T) {
	var calls atomic.Int32
	s := NewCreateSession(func(context.Context, task.CreateRequest) error {
		calls.Add(1)
		return nil
	})

	err := s.Submit(context.Background())
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("invalid form must not reach the network")
	}
	if s.State() != StateInvalid {
		t.Fatalf("expected invalid state, got %s", s.State())
	}
	if got := s.FieldError(FieldTitle); got != "Title is required." {
		t.Fatalf("unexpected title error %q", got)
	}
	if s.CanSubmit() {
		t.Fatal("submit must be disabled while invalid")
	}
}

func TestCreateCoalescesStatus(t *testing.T) {
	var sent task.CreateRequest
	s := NewCreateSession(func(_ context.Context, req task.CreateRequest) error {
		sent = req
		return nil
	}, WithLocation(time.UTC))

	mustChange(t, s, FieldTitle, "Ship release")
	mustChange(t, s, FieldStatus, []string{"completed"})
	mustChange(t, s, FieldDueDate, "2025-03-01T09:30")

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sent.Status != task.StatusCompleted {
		t.Fatalf("expected status completed, got %q", sent.Status)
	}
	if sent.Description != nil {
		t.Fatal("untouched description must be sent as absent")
	}
	want := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	if sent.DueDate == nil || !sent.DueDate.Equal(want) {
		t.Fatalf("unexpected due date %v", sent.DueDate)
	}
	if s.State() != StateSubmissionSucceeded || !s.Closed() {
		t.Fatalf("expected closed succeeded session, got %s", s.State())
	}
	if v := s.Values(); v.Title != "" || len(v.Status) != 1 || v.Status[0] != "pending" {
		t.Fatalf("expected defaults after success, got %+v", v)
	}
}

func TestValidationOnBlurThenEveryChange(t *testing.T) {
	s := NewCreateSession(func(context.Context, task.CreateRequest) error { return nil })

	mustChange(t, s, FieldTitle, "")
	if s.State() != StateEditing {
		t.Fatalf("expected editing before blur, got %s", s.State())
	}
	if len(s.Errors()) != 0 {
		t.Fatal("errors must not show before the field is blurred")
	}

	s.Blur(FieldTitle)
	if s.FieldError(FieldTitle) == "" || s.State() != StateInvalid {
		t.Fatalf("expected title error after blur, state %s", s.State())
	}

	mustChange(t, s, FieldTitle, "x")
	if s.FieldError(FieldTitle) != "" {
		t.Fatal("touched field must be re-validated on change")
	}
	if s.State() != StateValid || !s.CanSubmit() {
		t.Fatalf("expected valid state, got %s", s.State())
	}
}

func TestDoubleSubmitMakesOneCall(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	s := NewCreateSession(func(context.Context, task.CreateRequest) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	})
	mustChange(t, s, FieldTitle, "Once")

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background()) }()
	<-started

	if s.CanSubmit() {
		t.Fatal("submit must be disabled while submitting")
	}
	if err := s.Submit(context.Background()); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", calls.Load())
	}
}

func TestServerFieldErrorsMerged(t *testing.T) {
	apiErr := &domain.APIError{
		Kind:       domain.KindServerValidation,
		StatusCode: 422,
		Message:    "String should have at most 255 characters",
		Field:      FieldTitle,
		Fields:     map[string]string{FieldTitle: "String should have at most 255 characters"},
	}
	s := NewCreateSession(func(context.Context, task.CreateRequest) error { return apiErr })
	mustChange(t, s, FieldTitle, "Fine locally")

	if err := s.Submit(context.Background()); !errors.Is(err, apiErr) {
		t.Fatalf("expected API error, got %v", err)
	}
	if s.State() != StateSubmissionFailed || s.Closed() {
		t.Fatalf("expected open failed session, got %s", s.State())
	}
	if got := s.FieldError(FieldTitle); got != apiErr.Message {
		t.Fatalf("expected server message on title, got %q", got)
	}
	if s.Values().Title != "Fine locally" {
		t.Fatal("inputs must survive a failed submission")
	}

	mustChange(t, s, FieldTitle, "Shorter")
	if s.FieldError(FieldTitle) != "" {
		t.Fatal("server error must clear once the field changes")
	}
}

func TestServerErrorWithoutFieldIsFormLevel(t *testing.T) {
	s := NewCreateSession(func(context.Context, task.CreateRequest) error {
		return domain.NewNetworkError(errors.New("connection refused"))
	})
	mustChange(t, s, FieldTitle, "x")

	_ = s.Submit(context.Background())
	if s.FormError() == "" {
		t.Fatal("expected form-level error")
	}
	if len(s.Errors()) != 0 {
		t.Fatalf("expected no field errors, got %v", s.Errors())
	}
}

func TestEditSeedingWithoutDueDate(t *testing.T) {
	s := NewEditSession(task.Task{ID: "t1", Title: "Seeded", Status: task.StatusInProgress},
		func(context.Context, string, task.UpdateRequest) error { return nil })

	v := s.Values()
	if v.DueDate != "" {
		t.Fatalf("expected empty due date, got %q", v.DueDate)
	}
	if v.Description.Set {
		t.Fatal("absent description must seed as no value")
	}
	if v.Title != "Seeded" || v.Status[0] != "in_progress" {
		t.Fatalf("unexpected seed %+v", v)
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}
}

func TestEditSeedingTruncatesDueDate(t *testing.T) {
	due := time.Date(2025, 3, 1, 9, 30, 59, 0, time.UTC)
	desc := ""
	s := NewEditSession(task.Task{ID: "t1", Title: "x", Status: task.StatusPending, DueDate: &due, Description: &desc},
		func(context.Context, string, task.UpdateRequest) error { return nil }, WithLocation(time.UTC))

	v := s.Values()
	if v.DueDate != "2025-03-01T09:30" {
		t.Fatalf("unexpected due date %q", v.DueDate)
	}
	if !v.Description.Set || v.Description.Value != "" {
		t.Fatal("empty description must stay distinct from no value")
	}
}

func TestEditSendsOnlyChangedFields(t *testing.T) {
	due := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	var gotID string
	var got task.UpdateRequest
	s := NewEditSession(task.Task{ID: "t1", Title: "Old", Status: task.StatusPending, DueDate: &due},
		func(_ context.Context, id string, req task.UpdateRequest) error {
			gotID, got = id, req
			return nil
		}, WithLocation(time.UTC))

	mustChange(t, s, FieldStatus, []string{"completed"})
	mustChange(t, s, FieldDueDate, "")

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gotID != "t1" {
		t.Fatalf("unexpected id %q", gotID)
	}
	if got.Title != nil || got.Description != nil || got.ClearDescription {
		t.Fatalf("unchanged fields must not be sent: %+v", got)
	}
	if got.Status == nil || *got.Status != task.StatusCompleted {
		t.Fatalf("expected status patch, got %+v", got.Status)
	}
	if !got.ClearDueDate {
		t.Fatal("cleared due date must be sent as null")
	}
}

func TestEditPaddedSeedTitleIsUnchanged(t *testing.T) {
	tests := []struct {
		name      string
		seed      string
		input     string
		wantTitle *string
	}{
		{name: "padded seed, trimmed input", seed: "  Report ", input: "Report"},
		{name: "padded seed, same input", seed: "  Report ", input: "  Report "},
		{name: "padded seed, new title", seed: "  Report ", input: "Summary", wantTitle: ptr("Summary")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed := TaskValues{Title: tt.seed, Status: []string{"pending"}}
			v := seed
			v.Title = tt.input

			req, err := v.UpdatePayload(seed, time.UTC)
			if err != nil {
				t.Fatalf("UpdatePayload: %v", err)
			}
			switch {
			case tt.wantTitle == nil && req.Title != nil:
				t.Fatalf("expected no title patch, got %q", *req.Title)
			case tt.wantTitle != nil && (req.Title == nil || *req.Title != *tt.wantTitle):
				t.Fatalf("expected title %q, got %v", *tt.wantTitle, req.Title)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestCancelResetsAndCloses(t *testing.T) {
	s := NewCreateSession(func(context.Context, task.CreateRequest) error { return nil })
	mustChange(t, s, FieldTitle, "draft")
	s.Cancel()
	if !s.Closed() || s.Values().Title != "" || s.State() != StateIdle {
		t.Fatalf("expected reset closed session, got %+v", s.Values())
	}
}

func TestChangeRejectsUnknownField(t *testing.T) {
	s := NewCreateSession(func(context.Context, task.CreateRequest) error { return nil })
	if err := s.Change("owner", "x"); err == nil {
		t.Fatal("expected error for unknown field")
	}
	if err := s.Change(FieldTitle, 3); err == nil {
		t.Fatal("expected error for wrong type")
	}
}

func mustChange(t *testing.T, s *TaskSession, field string, value any) {
	t.Helper()
	if err := s.Change(field, value); err != nil {
		t.Fatalf("Change(%s): %v", field, err)
	}
}
