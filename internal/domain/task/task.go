// Package task defines the Task domain entity and its pagination contract.
package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// Resource is the cache/resource name for tasks.
const Resource = "tasks"

// DefaultPageSize is the number of tasks shown per page.
const DefaultPageSize = 5

// MaxTitleLength and MaxDescriptionLength mirror the backend column limits.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 255
)

// Status represents the current state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Label returns the human-readable status name.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// ParseStatus converts a raw value into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

// Task is a remote-owned record. The client only ever holds a cached copy.
type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id,omitempty"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

// CreateRequest holds the fields sent to create a task.
type CreateRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateRequest is a partial patch; nil fields are not sent. The Clear
// flags send an explicit null so the backend removes the value.
type UpdateRequest struct {
	Title            *string
	Description      *string
	Status           *Status
	DueDate          *time.Time
	ClearDescription bool
	ClearDueDate     bool
}

// Empty reports whether the patch carries no fields.
func (u UpdateRequest) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil && u.DueDate == nil &&
		!u.ClearDescription && !u.ClearDueDate
}

// MarshalJSON encodes only the fields present in the patch.
func (u UpdateRequest) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 4)
	if u.Title != nil {
		m["title"] = *u.Title
	}
	switch {
	case u.Description != nil:
		m["description"] = *u.Description
	case u.ClearDescription:
		m["description"] = nil
	}
	if u.Status != nil {
		m["status"] = *u.Status
	}
	switch {
	case u.DueDate != nil:
		m["due_date"] = *u.DueDate
	case u.ClearDueDate:
		m["due_date"] = nil
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a patch, mapping explicit nulls to the Clear flags.
func (u *UpdateRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = UpdateRequest{}
	for k, v := range raw {
		isNull := string(v) == "null"
		var err error
		switch k {
		case "title":
			if !isNull {
				err = json.Unmarshal(v, &u.Title)
			}
		case "description":
			if isNull {
				u.ClearDescription = true
			} else {
				err = json.Unmarshal(v, &u.Description)
			}
		case "status":
			if !isNull {
				err = json.Unmarshal(v, &u.Status)
			}
		case "due_date":
			if isNull {
				u.ClearDueDate = true
			} else {
				err = json.Unmarshal(v, &u.DueDate)
			}
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
	}
	return nil
}

// ListResult is the backend's list response.
type ListResult struct {
	Data  []Task `json:"data"`
	Count int    `json:"count"`
}

// Page is one cached page of tasks.
type Page struct {
	Items    []Task `json:"items"`
	Count    int    `json:"count"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// NewPage builds a Page from a list result, truncating to pageSize if the
// server returned more rows than requested.
func NewPage(res *ListResult, page, pageSize int) *Page {
	items := res.Data
	if len(items) > pageSize {
		items = items[:pageSize]
	}
	if items == nil {
		items = []Task{}
	}
	return &Page{Items: items, Count: res.Count, Page: page, PageSize: pageSize}
}

// PageCount returns the number of pages needed to show Count tasks.
func (p *Page) PageCount() int {
	return PageCount(p.Count, p.PageSize)
}

// HasNext reports whether a page follows this one.
func (p *Page) HasNext() bool {
	return p.Page < p.PageCount()
}

// NormalizePage coerces invalid page numbers to the first page.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Skip returns the row offset of a 1-based page.
func Skip(page, pageSize int) int {
	return (NormalizePage(page) - 1) * pageSize
}

// PageCount returns ceil(count/pageSize).
func PageCount(count, pageSize int) int {
	if pageSize < 1 || count <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}
