package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
	"github.com/Strob0t/TaskDesk/internal/querycache"
)

func newTasksBrowseCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Page through tasks interactively (n: next, p: previous, r: refresh, q: quit)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isTerminal(os.Stdin) {
				return fmt.Errorf("browse needs an interactive terminal")
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			fd := int(os.Stdin.Fd()) //nolint:gosec // fd fits in int
			old, err := term.MakeRaw(fd)
			if err != nil {
				return fmt.Errorf("raw mode: %w", err)
			}
			defer func() { _ = term.Restore(fd, old) }()

			pg := &pager{out: cmd.OutOrStdout(), page: 1}
			obs := a.tasks.Observe(pg.render)
			defer obs.Close()

			ctx := cmd.Context()
			obs.SetQuery(ctx, a.tasks.PageQuery(pg.page))
			pg.render(obs.Result())

			keys := make([]byte, 1)
			for {
				if _, err := os.Stdin.Read(keys); err != nil {
					return nil
				}
				switch keys[0] {
				case 'n', ' ':
					if pg.next() {
						obs.SetQuery(ctx, a.tasks.PageQuery(pg.current()))
					}
				case 'p':
					if pg.prev() {
						obs.SetQuery(ctx, a.tasks.PageQuery(pg.current()))
					}
				case 'r':
					obs.Refetch(ctx)
				case 'q', 3: // ctrl-c arrives as a byte in raw mode
					return nil
				}
				pg.render(obs.Result())
			}
		},
	}
}

// pager redraws the task table on every observer change. Rows of the
// previous page stay on screen, dimmed, until the next page has loaded.
type pager struct {
	out io.Writer

	mu        sync.Mutex
	page      int
	pageCount int
}

func (p *pager) current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

func (p *pager) next() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pageCount > 0 && p.page >= p.pageCount {
		return false
	}
	p.page++
	return true
}

func (p *pager) prev() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.page <= 1 {
		return false
	}
	p.page--
	return true
}

func (p *pager) render(r querycache.Result[task.Page]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	b.WriteString("\x1b[H\x1b[2J")
	if r.HasData && !r.IsPlaceholderData {
		p.pageCount = r.Data.PageCount()
	}
	if r.HasData {
		shown := r.Data
		shown.Page = p.page
		printPage(&b, &shown, r.IsPlaceholderData)
	}
	switch {
	case r.IsFetching:
		b.WriteString("Loading…\n")
	case r.Err != nil:
		fmt.Fprintf(&b, "Error: %s\n", domain.UserMessage(r.Err))
	}
	b.WriteString("[n]ext  [p]revious  [r]efresh  [q]uit\n")

	// Raw mode needs explicit carriage returns.
	_, _ = io.WriteString(p.out, strings.ReplaceAll(b.String(), "\n", "\r\n"))
}
