package web

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/TaskDesk/internal/form"
)

// dialogTTL bounds how long an unsubmitted form keeps its session.
const dialogTTL = 30 * time.Minute

// fieldDialog is the hidden form field carrying the dialog id.
const fieldDialog = "dialog"

type dialog struct {
	session *form.TaskSession
	action  string
	opened  time.Time
	keyed   bool // opened with an issued id, kept after success
}

// dialogs maps each open form to one TaskSession, so every POST of the
// same form goes through the same busy guard. Forms rendered by the UI
// carry an issued id; posts without one share a per-action session.
type dialogs struct {
	mu   sync.Mutex
	open map[string]*dialog
	now  func() time.Time
}

func newDialogs() *dialogs {
	return &dialogs{open: make(map[string]*dialog), now: time.Now}
}

// issue registers s for the form posting to action under a fresh id.
func (d *dialogs) issue(action string, s *form.TaskSession) string {
	id := uuid.NewString()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked()
	d.open[id] = &dialog{session: s, action: action, opened: d.now(), keyed: true}
	return id
}

// session returns the session issued as id for action, or the shared
// session of action when the post carries no known id. create runs outside
// the lock; if two posts race to create the shared session, the first one
// registered wins.
func (d *dialogs) session(id, action string, create func() (*form.TaskSession, error)) (*form.TaskSession, string, error) {
	if s, key, ok := d.lookup(id, action); ok {
		return s, key, nil
	}
	s, err := create()
	if err != nil {
		return nil, "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if dl, ok := d.open[action]; ok {
		return dl.session, action, nil
	}
	d.open[action] = &dialog{session: s, action: action, opened: d.now()}
	return s, action, nil
}

func (d *dialogs) lookup(id, action string) (*form.TaskSession, string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked()

	if dl, ok := d.open[id]; ok && id != "" && dl.action == action {
		return dl.session, id, true
	}
	if dl, ok := d.open[action]; ok {
		return dl.session, action, true
	}
	return nil, "", false
}

// settled forgets per-action sessions once they succeeded. Issued ids
// stay until they expire, so a resubmitted page is recognised as saved.
func (d *dialogs) settled(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dl, ok := d.open[key]; ok && !dl.keyed && dl.session.Closed() {
		delete(d.open, key)
	}
}

func (d *dialogs) pruneLocked() {
	cutoff := d.now().Add(-dialogTTL)
	for k, dl := range d.open {
		if dl.opened.Before(cutoff) {
			delete(d.open, k)
		}
	}
}
