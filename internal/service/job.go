package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	tdotel "github.com/Strob0t/TaskDesk/internal/adapter/otel"
	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/domain/job"
	"github.com/Strob0t/TaskDesk/internal/mutation"
	"github.com/Strob0t/TaskDesk/internal/port/notifier"
	"github.com/Strob0t/TaskDesk/internal/port/taskapi"
)

// JobMutationName is the mutation and notification source of spreadsheet jobs.
const JobMutationName = "job.process"

// NoFileMessage is shown when a job is submitted without a file.
const NoFileMessage = "Please select a spreadsheet file."

// JobState is the position of a JobFlow in its lifecycle.
type JobState int

const (
	JobNoFileSelected JobState = iota
	JobFileSelected
	JobSubmitting
	JobCompleted
)

func (s JobState) String() string {
	switch s {
	case JobFileSelected:
		return "file_selected"
	case JobSubmitting:
		return "submitting"
	case JobCompleted:
		return "completed"
	default:
		return "no_file_selected"
	}
}

// JobFlow uploads one spreadsheet and triggers its processing job. The
// selected file survives both success and failure so the user can retry; a
// failed submission returns to JobFileSelected with Err set.
type JobFlow struct {
	client   taskapi.JobClient
	notifier mutation.Notifier
	metrics  *tdotel.Metrics
	defaults job.Params
	run      *mutation.Mutation[job.Request, *job.Result]

	mu      sync.Mutex
	state   JobState
	file    *job.File
	result  *job.Result
	lastErr error
}

// JobFlowOption configures a JobFlow.
type JobFlowOption func(*JobFlow)

// WithJobNotifier delivers job notifications.
func WithJobNotifier(n mutation.Notifier) JobFlowOption {
	return func(f *JobFlow) { f.notifier = n }
}

// WithJobMetrics records job counts and durations.
func WithJobMetrics(m *tdotel.Metrics) JobFlowOption {
	return func(f *JobFlow) { f.metrics = m }
}

// WithJobDefaults sets parameters used when a submission leaves them unset.
func WithJobDefaults(p job.Params) JobFlowOption {
	return func(f *JobFlow) { f.defaults = p }
}

// NewJobFlow creates a flow with no file selected.
func NewJobFlow(client taskapi.JobClient, opts ...JobFlowOption) *JobFlow {
	f := &JobFlow{client: client}
	for _, o := range opts {
		o(f)
	}

	var mopts []mutation.Option
	if f.notifier != nil {
		mopts = append(mopts, mutation.WithNotifier(f.notifier))
	}
	if f.metrics != nil {
		mopts = append(mopts, mutation.WithMetrics(f.metrics))
	}
	f.run = mutation.New(mutation.Config[job.Request, *job.Result]{
		Name: JobMutationName,
		Do:   f.client.ProcessSpreadsheet,
		SuccessMessage: func(r *job.Result) string {
			if r.Message != "" {
				return r.Message
			}
			return "File processed successfully."
		},
		SuccessLink: func(r *job.Result) string { return r.ResultLink },
	}, mopts...)
	return f
}

// SelectFile holds a spreadsheet for submission.
func (f *JobFlow) SelectFile(name string, content []byte) error {
	if err := job.ValidateFilename(name); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == JobSubmitting {
		return domain.ErrBusy
	}
	f.file = &job.File{Name: filepath.Base(name), Content: content}
	f.state = JobFileSelected
	f.lastErr = nil
	return nil
}

// SelectPath reads a spreadsheet from disk and selects it.
func (f *JobFlow) SelectPath(path string) error {
	if err := job.ValidateFilename(path); err != nil {
		return err
	}
	content, err := os.ReadFile(path) //nolint:gosec // path chosen by the operator
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	return f.SelectFile(path, content)
}

// ClearFile drops the selected file.
func (f *JobFlow) ClearFile() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == JobSubmitting {
		return
	}
	f.file = nil
	f.state = JobNoFileSelected
}

// Submit uploads the selected file. Without a file it notifies the user and
// returns domain.ErrValidation without any network call.
func (f *JobFlow) Submit(ctx context.Context, params job.Params) (*job.Result, error) {
	f.mu.Lock()
	if f.state == JobSubmitting {
		f.mu.Unlock()
		return nil, domain.ErrBusy
	}
	if f.file == nil {
		f.mu.Unlock()
		if f.notifier != nil {
			f.notifier.Notify(ctx, notifier.Error(JobMutationName, mutation.ErrorTitle, NoFileMessage))
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, NoFileMessage)
	}
	req := job.Request{File: *f.file, Params: mergeParams(params, f.defaults)}
	f.state = JobSubmitting
	f.result = nil
	f.lastErr = nil
	f.mu.Unlock()

	ctx, span := tdotel.StartJobSpan(ctx, req.File.Name)
	defer span.End()

	start := time.Now()
	res, err := f.run.Run(ctx, req)
	f.record(ctx, start, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		f.state = JobFileSelected
		f.lastErr = err
		return nil, err
	}
	f.state = JobCompleted
	f.result = res
	return res, nil
}

func (f *JobFlow) record(ctx context.Context, start time.Time, err error) {
	if f.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	f.metrics.JobsSubmitted.Add(ctx, 1, attrs)
	f.metrics.JobDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// mergeParams fills unset fields of p from defaults.
func mergeParams(p, defaults job.Params) job.Params {
	if p.SpreadsheetKey == nil {
		p.SpreadsheetKey = defaults.SpreadsheetKey
	}
	if p.ColumnIndex == nil {
		p.ColumnIndex = defaults.ColumnIndex
	}
	if p.ApplyDefaultPatterns == nil {
		p.ApplyDefaultPatterns = defaults.ApplyDefaultPatterns
	}
	return p
}

// State returns the current state.
func (f *JobFlow) State() JobState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// FileName returns the selected file's name, or "".
func (f *JobFlow) FileName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return ""
	}
	return f.file.Name
}

// Result returns the last successful result, or nil.
func (f *JobFlow) Result() *job.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Err returns the error of the last failed submission.
func (f *JobFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// CanSubmit reports whether the submit control is enabled.
func (f *JobFlow) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file != nil && f.state != JobSubmitting
}
