package web_test

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/TaskDesk/internal/adapter/backend"
	"github.com/Strob0t/TaskDesk/internal/adapter/web"
	"github.com/Strob0t/TaskDesk/internal/adapter/ws"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
	"github.com/Strob0t/TaskDesk/internal/querycache"
	"github.com/Strob0t/TaskDesk/internal/service"
	"github.com/Strob0t/TaskDesk/internal/testbackend"
)

type fixture struct {
	stub *testbackend.Server
	ui   http.Handler
}

func newFixture(t *testing.T, opts ...testbackend.Option) *fixture {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	stub := testbackend.New(append([]testbackend.Option{testbackend.WithLogger(quiet)}, opts...)...)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL)
	tasks := service.NewTaskService(client, querycache.New[task.Page](), service.WithLocation(time.UTC))
	jobs := service.NewJobFlow(client)

	h, err := web.NewHandler(tasks, jobs, ws.NewHub(), web.WithLocation(time.UTC), web.WithLogger(quiet))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	t.Cleanup(h.Close)
	return &fixture{stub: stub, ui: h.Routes("taskdesk-test")}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.ui.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, http.NoBody))
}

func (f *fixture) postForm(path string, vals url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

var dialogField = regexp.MustCompile(`name="dialog" value="([^"]+)"`)

// openDialog renders the form at path and returns the dialog id it carries.
func (f *fixture) openDialog(t *testing.T, path string) string {
	t.Helper()
	rec := f.get(path)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: expected 200, got %d", path, rec.Code)
	}
	m := dialogField.FindStringSubmatch(rec.Body.String())
	if m == nil {
		t.Fatalf("no dialog id in form:\n%s", rec.Body.String())
	}
	return m[1]
}

func TestListTasksPage(t *testing.T) {
	f := newFixture(t)
	f.stub.Seed(7)

	rec := f.get("/tasks?page=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Task 6") || !strings.Contains(body, "Task 7") {
		t.Fatalf("expected tasks 6 and 7 on page 2:\n%s", body)
	}
	if strings.Contains(body, "Task 5<") {
		t.Fatal("page 2 must not show task 5")
	}
	if strings.Contains(body, `class="stale"`) {
		t.Fatal("fresh rows must not be marked stale")
	}
	if !strings.Contains(body, "Page 2 of 2") {
		t.Fatalf("expected page indicator:\n%s", body)
	}
}

func TestListTasksInvalidPageFallsBackToFirst(t *testing.T) {
	f := newFixture(t)
	f.stub.Seed(2)

	rec := f.get("/tasks?page=abc")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Page 1") {
		t.Fatalf("expected page 1, got %d", rec.Code)
	}
}

func TestListTasksShowsPlaceholderWhileLoading(t *testing.T) {
	f := newFixture(t, testbackend.WithDelay(300*time.Millisecond))
	f.stub.Seed(12)

	if rec := f.get("/tasks?page=1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec := f.get("/tasks?page=2")
	body := rec.Body.String()
	if !strings.Contains(body, `class="stale"`) {
		t.Fatalf("expected placeholder rows while page 2 loads:\n%s", body)
	}
	if !strings.Contains(body, "Task 1<") {
		t.Fatal("placeholder rows should be the previous page's tasks")
	}
}

func TestCreateTaskValidationError(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm("/tasks", url.Values{"title": {"   "}, "status": {"pending"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Title is required.") {
		t.Fatalf("expected title error in body:\n%s", rec.Body.String())
	}
	if len(f.stub.Tasks()) != 0 {
		t.Fatal("invalid form must not reach the backend")
	}
}

func TestCreateTaskRedirects(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm("/tasks", url.Values{
		"title":    {"Write report"},
		"status":   {"in_progress"},
		"due_date": {"2026-03-01T09:30"},
	})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/tasks" {
		t.Fatalf("expected redirect to /tasks, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	got := f.stub.Tasks()
	if len(got) != 1 || got[0].Status != task.StatusInProgress || got[0].DueDate == nil {
		t.Fatalf("unexpected stored tasks %+v", got)
	}
	if got[0].Description != nil {
		t.Fatal("empty description must be sent as no value")
	}
}

func TestCreateTaskDoubleSubmitSendsOnce(t *testing.T) {
	f := newFixture(t, testbackend.WithDelay(200*time.Millisecond))
	id := f.openDialog(t, "/tasks/new")
	vals := url.Values{"dialog": {id}, "title": {"Once"}, "status": {"pending"}}

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = f.postForm("/tasks", vals).Code
		}()
	}
	wg.Wait()

	if n := len(f.stub.Tasks()); n != 1 {
		t.Fatalf("expected exactly one created task, got %d", n)
	}
	redirects := 0
	for _, c := range codes {
		switch c {
		case http.StatusSeeOther:
			redirects++
		case http.StatusConflict:
		default:
			t.Fatalf("unexpected status %d in %v", c, codes)
		}
	}
	if redirects == 0 {
		t.Fatalf("expected one post to succeed, got %v", codes)
	}
}

func TestCreateTaskResubmitAfterSuccess(t *testing.T) {
	f := newFixture(t)
	id := f.openDialog(t, "/tasks/new")
	vals := url.Values{"dialog": {id}, "title": {"Once"}, "status": {"pending"}}

	for i := range 2 {
		if rec := f.postForm("/tasks", vals); rec.Code != http.StatusSeeOther {
			t.Fatalf("post %d: expected 303, got %d", i+1, rec.Code)
		}
	}
	if n := len(f.stub.Tasks()); n != 1 {
		t.Fatalf("resubmitting a saved form must not create again, got %d tasks", n)
	}

	// A fresh dialog creates a second task.
	vals.Set("dialog", f.openDialog(t, "/tasks/new"))
	if rec := f.postForm("/tasks", vals); rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if n := len(f.stub.Tasks()); n != 2 {
		t.Fatalf("expected 2 tasks, got %d", n)
	}
}

func TestCreateTaskBackendFailureKeepsForm(t *testing.T) {
	f := newFixture(t)
	f.stub.FailNext(http.StatusInternalServerError)

	rec := f.postForm("/tasks", url.Values{"title": {"Keep me"}, "status": {"pending"}})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `value="Keep me"`) {
		t.Fatal("entered values should be re-rendered after a failure")
	}
}

func TestEditTask(t *testing.T) {
	f := newFixture(t)
	f.stub.Seed(3)
	target := f.stub.Tasks()[1]

	rec := f.get("/tasks/" + target.ID + "/edit")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `value="Task 2"`) {
		t.Fatalf("expected seeded edit form, got %d", rec.Code)
	}

	rec = f.postForm("/tasks/"+target.ID, url.Values{"title": {"Task 2 renamed"}, "status": {"completed"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d:\n%s", rec.Code, rec.Body.String())
	}
	updated := f.stub.Tasks()[1]
	if updated.Title != "Task 2 renamed" || updated.Status != task.StatusCompleted {
		t.Fatalf("unexpected update %+v", updated)
	}
}

func TestEditDialogIsBoundToItsTask(t *testing.T) {
	f := newFixture(t)
	f.stub.Seed(2)
	first, second := f.stub.Tasks()[0], f.stub.Tasks()[1]
	id := f.openDialog(t, "/tasks/"+first.ID+"/edit")

	rec := f.postForm("/tasks/"+second.ID, url.Values{"dialog": {id}, "title": {"Renamed"}, "status": {"pending"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d:\n%s", rec.Code, rec.Body.String())
	}
	got := f.stub.Tasks()
	if got[0].Title != first.Title || got[1].Title != "Renamed" {
		t.Fatalf("dialog of one task must not update another: %+v", got)
	}
}

func TestEditUnknownTask(t *testing.T) {
	f := newFixture(t)
	f.stub.Seed(1)

	if rec := f.get("/tasks/00000000-0000-0000-0000-000000000000/edit"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestProcessWithoutFile(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("column", "2")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := f.do(req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), service.NoFileMessage) {
		t.Fatalf("expected no-file message:\n%s", rec.Body.String())
	}
	if len(f.stub.Processed()) != 0 {
		t.Fatal("no request may reach the backend without a file")
	}
}

func TestProcessUpload(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "errors.xlsx")
	_, _ = part.Write([]byte("PK"))
	_ = mw.WriteField("spreadsheet_key", "sheet-9")
	_ = mw.WriteField("default_patterns", "1")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d:\n%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "https://docs.google.com/spreadsheets/d/sheet-9") {
		t.Fatalf("expected result link:\n%s", body)
	}
	if !strings.Contains(body, "errors.xlsx") {
		t.Fatal("selected file should stay visible after success")
	}

	got := f.stub.Processed()
	if len(got) != 1 || got[0].Params.ApplyDefaultPatterns == nil || !*got[0].Params.ApplyDefaultPatterns {
		t.Fatalf("unexpected processed jobs %+v", got)
	}
}
