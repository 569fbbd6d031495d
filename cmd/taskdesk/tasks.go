package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
	"github.com/Strob0t/TaskDesk/internal/form"
)

func newTasksCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List, add and edit tasks",
	}
	cmd.AddCommand(newTasksListCmd(c), newTasksAddCmd(c), newTasksEditCmd(c), newTasksBrowseCmd(c))
	return cmd
}

func newTasksListCmd(c *cli) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.tasks.Page(cmd.Context(), page)
			if err != nil {
				return err
			}
			printPage(cmd.OutOrStdout(), p, false)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "1-based page number")
	return cmd
}

// printPage writes p as a table. Placeholder rows are dimmed.
func printPage(w io.Writer, p *task.Page, dim bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tDUE")
	for _, t := range p.Items {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Local().Format("2006-01-02 15:04")
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s", t.ID, t.Title, t.Status.Label(), due)
		if dim {
			line = "\x1b[2m" + line + "\x1b[0m"
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "Page %d of %d (%d tasks)\n", p.Page, max(p.PageCount(), 1), p.Count)
}

// taskFlags are the editable fields shared by add and edit.
type taskFlags struct {
	title       string
	description string
	status      []string
	due         string
	clearDesc   bool
	clearDue    bool
}

func (f *taskFlags) register(cmd *cobra.Command, edit bool) {
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "task title")
	fl.StringVar(&f.description, "description", "", "task description")
	fl.StringSliceVar(&f.status, "status", nil, "status: pending, in_progress or completed")
	fl.StringVar(&f.due, "due", "", "due date, "+form.DateTimeLayout)
	if edit {
		fl.BoolVar(&f.clearDesc, "clear-description", false, "remove the description")
		fl.BoolVar(&f.clearDue, "clear-due", false, "remove the due date")
	}
}

// apply feeds the flags the user set into s.
func (f *taskFlags) apply(cmd *cobra.Command, s *form.TaskSession) error {
	fl := cmd.Flags()
	changes := []struct {
		flag, field string
		value       any
	}{
		{"title", form.FieldTitle, f.title},
		{"description", form.FieldDescription, f.description},
		{"status", form.FieldStatus, f.status},
		{"due", form.FieldDueDate, f.due},
	}
	for _, ch := range changes {
		if !fl.Changed(ch.flag) {
			continue
		}
		if err := s.Change(ch.field, ch.value); err != nil {
			return err
		}
		s.Blur(ch.field)
	}
	if f.clearDesc {
		if err := s.Change(form.FieldDescription, form.None()); err != nil {
			return err
		}
	}
	if f.clearDue {
		if err := s.Change(form.FieldDueDate, ""); err != nil {
			return err
		}
	}
	return nil
}

func newTasksAddCmd(c *cli) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			s := a.tasks.NewCreateSession()
			if !cmd.Flags().Changed("title") && isTerminal(os.Stdin) {
				if err := prompt(cmd, s); err != nil {
					return err
				}
			}
			if err := f.apply(cmd, s); err != nil {
				return err
			}
			return submit(cmd, s)
		},
	}
	f.register(cmd, false)
	return cmd
}

func newTasksEditCmd(c *cli) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Update fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.tasks.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s := a.tasks.NewEditSession(*t)
			if err := f.apply(cmd, s); err != nil {
				return err
			}
			return submit(cmd, s)
		},
	}
	f.register(cmd, true)
	return cmd
}

// submit sends the form and prints field errors when it is rejected.
// Success and server failures are reported by the terminal notifier.
func submit(cmd *cobra.Command, s *form.TaskSession) error {
	err := s.Submit(cmd.Context())
	if err == nil {
		return nil
	}
	w := cmd.ErrOrStderr()
	errs := s.Errors()
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		for _, msg := range errs[f] {
			fmt.Fprintf(w, "  %s: %s\n", f, msg)
		}
	}
	if errors.Is(err, domain.ErrValidation) {
		return err
	}
	if msg := s.FormError(); msg != "" {
		return errors.New(msg)
	}
	return err
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// prompt asks for each field on the terminal. Empty answers keep the default.
func prompt(cmd *cobra.Command, s *form.TaskSession) error {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.ErrOrStderr()
	questions := []struct {
		field, label string
	}{
		{form.FieldTitle, "Title"},
		{form.FieldDescription, "Description"},
		{form.FieldStatus, "Status (pending, in_progress, completed)"},
		{form.FieldDueDate, "Due date (" + form.DateTimeLayout + ")"},
	}
	for _, q := range questions {
		for {
			fmt.Fprintf(out, "%s: ", q.label)
			line, err := in.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			line = strings.TrimRight(line, "\r\n")
			if line != "" || q.field == form.FieldTitle {
				if err := s.Change(q.field, line); err != nil {
					return err
				}
			}
			s.Blur(q.field)
			msg := s.FieldError(q.field)
			if msg == "" || errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(out, "  %s\n", msg)
		}
	}
	return nil
}
