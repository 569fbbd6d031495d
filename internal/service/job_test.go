package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/domain/job"
	"github.com/Strob0t/TaskDesk/internal/port/notifier"
)

type fakeJobClient struct {
	mu    sync.Mutex
	calls []job.Request
	res   *job.Result
	err   error
	gate  chan struct{}
}

func (c *fakeJobClient) ProcessSpreadsheet(_ context.Context, req job.Request) (*job.Result, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	if c.err != nil {
		return nil, c.err
	}
	return c.res, nil
}

func (c *fakeJobClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestJobSubmitWithoutFile(t *testing.T) {
	client := &fakeJobClient{}
	n := &mockNotifier{name: "terminal"}
	flow := NewJobFlow(client, WithJobNotifier(NewNotificationService(n)))

	_, err := flow.Submit(context.Background(), job.Params{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if client.callCount() != 0 {
		t.Fatalf("expected no network call, got %d", client.callCount())
	}
	sent := n.all()
	if len(sent) != 1 || sent[0].Level != notifier.LevelError || sent[0].Message != NoFileMessage {
		t.Fatalf("expected a local failure notice, got %+v", sent)
	}
	if flow.State() != JobNoFileSelected {
		t.Fatalf("expected no_file_selected, got %s", flow.State())
	}
}

func TestJobSelectRejectsNonSpreadsheet(t *testing.T) {
	flow := NewJobFlow(&fakeJobClient{})
	if err := flow.SelectFile("notes.txt", []byte("x")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if flow.CanSubmit() {
		t.Fatal("submit must stay disabled without a file")
	}
}

func TestJobSubmitSuccessKeepsFile(t *testing.T) {
	client := &fakeJobClient{res: &job.Result{
		Message:    "Processed 12 rows",
		Filename:   "errors.xlsx",
		ResultLink: "https://docs.google.com/spreadsheets/d/abc",
	}}
	n := &mockNotifier{name: "terminal"}
	flow := NewJobFlow(client, WithJobNotifier(NewNotificationService(n)))

	if err := flow.SelectFile("errors.xlsx", []byte("PK")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	res, err := flow.Submit(context.Background(), job.Params{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.ResultLink == "" || flow.Result() != res {
		t.Fatalf("expected stored result, got %+v", flow.Result())
	}
	if flow.State() != JobCompleted {
		t.Fatalf("expected completed, got %s", flow.State())
	}
	if flow.FileName() != "errors.xlsx" || !flow.CanSubmit() {
		t.Fatal("file should remain selected after success")
	}

	sent := n.all()
	if len(sent) != 1 || sent[0].Message != "Processed 12 rows" || sent[0].Link != res.ResultLink {
		t.Fatalf("unexpected notifications %+v", sent)
	}
}

func TestJobSubmitFailureReturnsToFileSelected(t *testing.T) {
	client := &fakeJobClient{err: &domain.APIError{Kind: domain.KindServer, StatusCode: 500, Message: "boom"}}
	n := &mockNotifier{name: "terminal"}
	flow := NewJobFlow(client, WithJobNotifier(NewNotificationService(n)))

	_ = flow.SelectFile("errors.xls", []byte("x"))
	if _, err := flow.Submit(context.Background(), job.Params{}); err == nil {
		t.Fatal("expected error")
	}
	if flow.State() != JobFileSelected {
		t.Fatalf("expected file_selected, got %s", flow.State())
	}
	if flow.Err() == nil || flow.Result() != nil {
		t.Fatal("expected the failure to be recorded without a result")
	}
	if flow.FileName() != "errors.xls" {
		t.Fatal("file should remain selected for a retry")
	}
	if sent := n.all(); len(sent) != 1 || sent[0].Level != notifier.LevelError {
		t.Fatalf("expected one error notification, got %+v", sent)
	}
}

func TestJobSubmitBusy(t *testing.T) {
	client := &fakeJobClient{res: &job.Result{}, gate: make(chan struct{})}
	flow := NewJobFlow(client)
	_ = flow.SelectFile("a.xlsx", nil)

	done := make(chan error, 1)
	go func() {
		_, err := flow.Submit(context.Background(), job.Params{})
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for flow.State() != JobSubmitting && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if flow.CanSubmit() {
		t.Fatal("submit must be disabled while submitting")
	}
	if _, err := flow.Submit(context.Background(), job.Params{}); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(client.gate)
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if client.callCount() != 1 {
		t.Fatalf("expected one call, got %d", client.callCount())
	}
}

func TestJobParamsMergeDefaults(t *testing.T) {
	key, col, apply := "sheet-1", 3, true
	override := 7
	client := &fakeJobClient{res: &job.Result{}}
	flow := NewJobFlow(client, WithJobDefaults(job.Params{SpreadsheetKey: &key, ColumnIndex: &col, ApplyDefaultPatterns: &apply}))
	_ = flow.SelectFile("a.xlsx", nil)

	if _, err := flow.Submit(context.Background(), job.Params{ColumnIndex: &override}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := client.calls[0].Params
	if *got.SpreadsheetKey != "sheet-1" || *got.ColumnIndex != 7 || !*got.ApplyDefaultPatterns {
		t.Fatalf("unexpected params %+v", got)
	}
}

func TestJobSelectPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.xlsx")
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	client := &fakeJobClient{res: &job.Result{}}
	flow := NewJobFlow(client)
	if err := flow.SelectPath(path); err != nil {
		t.Fatalf("SelectPath: %v", err)
	}
	if _, err := flow.Submit(context.Background(), job.Params{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if f := client.calls[0].File; f.Name != "input.xlsx" || string(f.Content) != "data" {
		t.Fatalf("unexpected file %+v", f)
	}
}
