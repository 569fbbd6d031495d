// Package taskapi defines the port for the remote task and job backend.
package taskapi

import (
	"context"

	"github.com/Strob0t/TaskDesk/internal/domain/job"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
)

// TaskClient is the typed boundary to the backend's task CRUD endpoints.
// Implementations trust their inputs and do not cache; backend rejections
// are returned as *domain.APIError.
type TaskClient interface {
	ListTasks(ctx context.Context, skip, limit int) (*task.ListResult, error)
	// GetTask returns one task. An unknown id wraps domain.ErrNotFound.
	GetTask(ctx context.Context, id string) (*task.Task, error)
	CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error)
	UpdateTask(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error)
}

// JobClient submits spreadsheet processing jobs.
type JobClient interface {
	ProcessSpreadsheet(ctx context.Context, req job.Request) (*job.Result, error)
}
