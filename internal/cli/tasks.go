package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdxmph/todo-tui/internal/mirror"
	"github.com/pdxmph/todo-tui/internal/session"
	"github.com/pdxmph/todo-tui/internal/tasks"
)

const dueHelp = "due date: 2006-01-02 15:04, 2006-01-02 or RFC3339"

// withStore opens the configured store for the duration of fn
func withStore(cmd *cobra.Command, opts *options, fn func(ctx context.Context, store tasks.Store) error) error {
	m, err := opts.openStore()
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(cmd.Context(), m.Store())
}

func addCmd(opts *options) *cobra.Command {
	var due string

	cmd := &cobra.Command{
		Use:   "add TITLE...",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := session.New()
			s.StartCreate()
			if err := s.UpdateDraftTitle(strings.Join(args, " ")); err != nil {
				return err
			}
			if err := applyDue(s, due); err != nil {
				return err
			}
			req, err := s.Commit()
			if err != nil {
				return err
			}

			return withStore(cmd, opts, func(ctx context.Context, store tasks.Store) error {
				id, err := req.Dispatch(ctx, store)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&due, "due", "", dueHelp)
	return cmd
}

func editCmd(opts *options) *cobra.Command {
	var title, due string

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a task's title or due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			titleSet := cmd.Flags().Changed("title")
			if !titleSet && !cmd.Flags().Changed("due") {
				return fmt.Errorf("nothing to change: pass --title or --due")
			}

			return withStore(cmd, opts, func(ctx context.Context, store tasks.Store) error {
				t, err := resolve(ctx, store, args[0])
				if err != nil {
					return err
				}

				s := session.New()
				s.StartEdit(t)
				if titleSet {
					if err := s.UpdateDraftTitle(title); err != nil {
						return err
					}
				}
				if err := applyDue(s, due); err != nil {
					return err
				}
				req, err := s.Commit()
				if err != nil {
					return err
				}

				if _, err := req.Dispatch(ctx, store); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", shortID(t.ID))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&due, "due", "", dueHelp)
	return cmd
}

func listCmd(opts *options) *cobra.Command {
	var done, all bool
	var format string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pending tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store tasks.Store) error {
				snapshot, err := tasks.FirstSnapshot(ctx, store)
				if err != nil {
					return err
				}

				m := mirror.New()
				m.ApplySnapshot(snapshot)

				list := m.Pending()
				switch {
				case all:
					list = m.Tasks()
				case done:
					list = m.Completed()
				}
				return writeTasks(cmd.OutOrStdout(), format, list)
			})
		},
	}

	cmd.Flags().BoolVar(&done, "done", false, "list completed tasks instead")
	cmd.Flags().BoolVar(&all, "all", false, "list every task")
	cmd.Flags().StringVarP(&format, "output", "o", "text", "output format: text, json or yaml")
	cmd.MarkFlagsMutuallyExclusive("done", "all")
	return cmd
}

func toggleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Mark a task done, or pending again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store tasks.Store) error {
				t, err := resolve(ctx, store, args[0])
				if err != nil {
					return err
				}
				if _, err := tasks.Toggle(t).Dispatch(ctx, store); err != nil {
					return err
				}

				verb := "Completed"
				if t.IsDone {
					verb = "Reopened"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", verb, t.Title)
				return nil
			})
		},
	}
}

func rmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store tasks.Store) error {
				id := args[0]
				t, err := resolve(ctx, store, id)
				switch {
				case err == nil:
					id = t.ID
				case !tasks.IsNotFound(err):
					return err
				}

				if _, err := tasks.Remove(id).Dispatch(ctx, store); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", shortID(id))
				return nil
			})
		},
	}
}

// applyDue parses text into the draft; empty text keeps the draft's date
func applyDue(s *session.Session, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	due, err := tasks.ParseInput(text)
	if err != nil {
		return fmt.Errorf("parsing --due: %w", err)
	}
	return s.UpdateDraftDate(due)
}

// resolve finds a task by id or by a unique id prefix
func resolve(ctx context.Context, store tasks.Store, ref string) (tasks.Task, error) {
	list, err := tasks.FirstSnapshot(ctx, store)
	if err != nil {
		return tasks.Task{}, err
	}
	return findTask(list, ref)
}

func findTask(list []tasks.Task, ref string) (tasks.Task, error) {
	var matches []tasks.Task
	for _, t := range list {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return tasks.Task{}, fmt.Errorf("%s: %w", ref, tasks.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return tasks.Task{}, fmt.Errorf("id %q is ambiguous: it matches %d tasks", ref, len(matches))
}
