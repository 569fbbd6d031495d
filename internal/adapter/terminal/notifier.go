// Package terminal implements a notifier.Notifier that prints toasts to a
// terminal, usually stderr, so stdout stays clean for command output.
package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/Strob0t/TaskDesk/internal/port/notifier"
)

const providerName = "terminal"

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

// Notifier writes one line per notification. Markers are colored only when
// w is a terminal, so redirected output stays plain.
type Notifier struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewNotifier creates a terminal notifier writing to w.
func NewNotifier(w io.Writer) *Notifier {
	f, ok := w.(*os.File)
	return &Notifier{w: w, color: ok && term.IsTerminal(int(f.Fd()))}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{Interactive: true}
}

func (n *Notifier) Send(_ context.Context, nt notifier.Notification) error {
	line := fmt.Sprintf("%s %s %s\n", n.marker(nt.Level), nt.Title, nt.Message)
	if nt.Link != "" {
		line += "  " + nt.Link + "\n"
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := io.WriteString(n.w, line)
	return err
}

func (n *Notifier) marker(level string) string {
	var m, color string
	switch level {
	case notifier.LevelSuccess:
		m, color = "✔", ansiGreen
	case notifier.LevelError:
		m, color = "✖", ansiRed
	default:
		return "•"
	}
	if !n.color {
		return m
	}
	return color + m + ansiReset
}
