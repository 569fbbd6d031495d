package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
	"github.com/Strob0t/TaskDesk/internal/form"
	"github.com/Strob0t/TaskDesk/internal/querycache"
)

type tasksView struct {
	Rows      []task.Task
	Page      int
	PageCount int
	Count     int
	Prev      int
	Next      int
	Stale     bool
	Fetching  bool
	Err       string
}

type formView struct {
	Heading   string
	Action    string
	Dialog    string
	Values    form.TaskValues
	Errors    map[string][]string
	FormError string
	Statuses  []task.Status
}

func pageParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		return 1
	}
	return task.NormalizePage(n)
}

// listTasks renders the requested page. While it loads, the rows of the
// previously viewed page are shown with the stale class.
func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	h.view.SetQuery(r.Context(), h.tasks.PageQuery(page))

	res := h.view.Result()
	if !res.HasData {
		p, err := h.tasks.Page(r.Context(), page)
		if err != nil {
			h.render(w, statusFor(err), "tasks.html", tasksView{Page: page, Err: domain.UserMessage(err)})
			return
		}
		if res = h.view.Result(); !res.HasData {
			res = querycache.Result[task.Page]{Data: *p, HasData: true, Status: querycache.StatusSuccess}
		}
	}

	v := tasksView{
		Page:     page,
		Rows:     res.Data.Items,
		Count:    res.Data.Count,
		Stale:    res.IsPlaceholderData || res.IsStale,
		Fetching: res.IsFetching,
	}
	if res.Err != nil {
		v.Err = domain.UserMessage(res.Err)
	}
	v.PageCount = task.PageCount(res.Data.Count, h.tasks.PageSize())
	if page > 1 {
		v.Prev = page - 1
	}
	if page < v.PageCount {
		v.Next = page + 1
	}
	h.render(w, http.StatusOK, "tasks.html", v)
}

const createAction = "/tasks"

func (h *Handler) newTask(w http.ResponseWriter, _ *http.Request) {
	s := h.tasks.NewCreateSession()
	h.render(w, http.StatusOK, "form.html", formView{
		Heading:  "Add Task",
		Action:   createAction,
		Dialog:   h.dialogs.issue(createAction, s),
		Values:   s.Values(),
		Statuses: task.Statuses,
	})
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	s, key, _ := h.dialogs.session(r.PostFormValue(fieldDialog), createAction, func() (*form.TaskSession, error) {
		return h.tasks.NewCreateSession(), nil
	})
	h.submitTaskForm(w, r, s, key, formView{Heading: "Add Task", Action: createAction})
}

func (h *Handler) editTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderFindError(w, err)
		return
	}
	action := "/tasks/" + t.ID
	s := h.tasks.NewEditSession(*t)
	h.render(w, http.StatusOK, "form.html", formView{
		Heading:  "Edit Task",
		Action:   action,
		Dialog:   h.dialogs.issue(action, s),
		Values:   s.Values(),
		Statuses: task.Statuses,
	})
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	action := "/tasks/" + id
	s, key, err := h.dialogs.session(r.PostFormValue(fieldDialog), action, func() (*form.TaskSession, error) {
		t, err := h.tasks.Find(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return h.tasks.NewEditSession(*t), nil
	})
	if err != nil {
		h.renderFindError(w, err)
		return
	}
	h.submitTaskForm(w, r, s, key, formView{Heading: "Edit Task", Action: action})
}

func (h *Handler) renderFindError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	http.Error(w, domain.UserMessage(err), statusFor(err))
}

// submitTaskForm runs one POST of dialog key. Success, or a repeated post
// of a dialog that has already been saved, redirects to the list. A post
// that arrives while the dialog is being saved gets 409 and sends nothing.
// Other failures re-render the dialog with field and form errors.
func (h *Handler) submitTaskForm(w http.ResponseWriter, r *http.Request, s *form.TaskSession, key string, v formView) {
	var err error
	if !s.Closed() {
		if err = applyTaskForm(r, s); err == nil {
			err = s.Submit(r.Context())
		}
	}
	if err == nil || s.Closed() {
		h.dialogs.settled(key)
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
		return
	}

	v.Dialog = key
	v.Values = s.Values()
	v.Errors = s.Errors()
	v.FormError = s.FormError()
	if errors.Is(err, domain.ErrBusy) {
		v.FormError = domain.UserMessage(err)
	}
	v.Statuses = task.Statuses
	h.render(w, statusFor(err), "form.html", v)
}
