package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
)

// ListTasks returns up to limit tasks starting at row skip, plus the total count.
func (c *Client) ListTasks(ctx context.Context, skip, limit int) (*task.ListResult, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	data, err := c.do(ctx, request{method: http.MethodGet, path: "/tasks/", query: q})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	var res task.ListResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("unmarshal tasks: %w", err)
	}
	return &res, nil
}

// GetTask fetches task id. A 404 from the backend wraps domain.ErrNotFound.
func (c *Client) GetTask(ctx context.Context, id string) (*task.Task, error) {
	data, err := c.do(ctx, request{method: http.MethodGet, path: "/tasks/" + url.PathEscape(id)})
	if err != nil {
		if apiErr, ok := domain.AsAPIError(err); ok && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("get task %s: %w: %w", id, domain.ErrNotFound, err)
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return decodeTask(data)
}

// CreateTask creates a task and returns the stored record.
func (c *Client) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal create task: %w", err)
	}

	data, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/tasks/",
		contentType: "application/json",
		body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return decodeTask(data)
}

// UpdateTask applies a partial patch to task id.
func (c *Client) UpdateTask(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal update task: %w", err)
	}

	data, err := c.do(ctx, request{
		method:      http.MethodPut,
		path:        "/tasks/" + url.PathEscape(id),
		contentType: "application/json",
		body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	return decodeTask(data)
}

func decodeTask(data []byte) (*task.Task, error) {
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &t, nil
}
