package cli

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/format"
	"github.com/g960059/aio/internal/mux"
)

// recentRuns is how many ledger rows attach offers.
const recentRuns = 10

func (a *App) lsCmd() *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "ls [N]",
		Short: "list tmux sessions, or attach to session N",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m := a.mux()
			if len(args) == 0 {
				return m.PrintList(ctx, "a ls 0")
			}
			n, err := indexArg(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("lines") {
				return m.Peek(ctx, n, lines)
			}
			action, err := m.Attach(ctx, n)
			if err != nil {
				return err
			}
			a.action = action
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "show the last lines of session N instead of attaching")
	return cmd
}

func (a *App) killCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "kill [N|all]",
		Aliases: []string{"kil", "killall"},
		Short:   "kill tmux session N, or all sessions",
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m := a.mux()
			switch {
			case a.calledAs("killall"), len(args) == 1 && args[0] == "all":
				return m.KillAll(ctx)
			case len(args) == 1:
				n, err := indexArg(args[0])
				if err != nil {
					return err
				}
				return m.Kill(ctx, n)
			}
			return m.PrintList(ctx, "a kill 0", "a kill all")
		},
	}
}

func (a *App) attachCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "attach [N]",
		Aliases: []string{"att"},
		Short:   "attach to session N, this worktree's session, or a recent run",
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m := a.mux()
			if len(args) == 1 {
				n, err := indexArg(args[0])
				if err != nil {
					return err
				}
				action, err := m.Attach(ctx, n)
				if err != nil {
					return err
				}
				a.action = action
				return nil
			}
			return a.attachRecent(ctx, m)
		},
	}
}

// attachRecent picks the session for the worktree containing cwd, falling
// back to a choice among the newest ledger runs.
func (a *App) attachRecent(ctx context.Context, m *mux.Manager) error {
	if name, ok := worktreeSession(a.cfg.WorktreesDir, a.cfg.Cwd); ok {
		exists, err := m.Client.HasSession(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			a.action = m.AttachAction(name)
			return nil
		}
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	runs, err := store.ListRecentRuns(ctx, recentRuns)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		a.println("No session")
		return nil
	}
	names := make([]string, len(runs))
	rows := make([]string, len(runs))
	for i, r := range runs {
		names[i] = filepath.Base(r.Repo) + "-" + r.ID
		live := format.NotActive
		if ok, err := m.Client.HasSession(ctx, names[i]); err == nil && ok {
			live = format.Running
		}
		rows[i] = live.Colored() + " " + names[i]
	}
	format.Indexed(a.out, 0, rows)

	reply, err := a.deps.Prompt.Ask("Select #: ")
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(reply)
	if err != nil || n < 0 || n >= len(names) {
		a.println("No session")
		return nil
	}
	exists, err := m.Client.HasSession(ctx, names[n])
	if err != nil {
		return err
	}
	if !exists {
		a.println("No session")
		return nil
	}
	a.action = m.AttachAction(names[n])
	return nil
}

// worktreeSession maps <worktrees>/<repo>/<id>/... to session "<repo>-<id>".
func worktreeSession(worktrees, cwd string) (string, bool) {
	if worktrees == "" || cwd == "" {
		return "", false
	}
	rel, err := filepath.Rel(worktrees, cwd)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return "", false
	}
	return parts[0] + "-" + parts[1], true
}

func (a *App) sendCmd() *cobra.Command {
	var opts mux.SendOptions
	cmd := &cobra.Command{
		Use:     "send <session> <text...>",
		Aliases: []string{"sen"},
		Short:   "type text into a session and press Enter",
		Args:    usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mux().Send(cmd.Context(), args[0], joinArgs(args[1:]), opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.Wait, "wait", "w", false, "wait until the session goes idle")
	cmd.Flags().BoolVar(&opts.NoEnter, "no-enter", false, "insert the text without submitting it")
	return cmd
}

func (a *App) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "watch <session> [duration]",
		Aliases: []string{"wat"},
		Short:   "answer known confirmation prompts in a session",
		Args:    usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var d time.Duration
			if len(args) == 2 {
				var err error
				if d, err = parseWait(args[1]); err != nil {
					return err
				}
			}
			return a.mux().Watch(cmd.Context(), args[0], d)
		},
	}
}

// parseWait accepts a Go duration or a bare number of seconds.
func parseWait(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d, nil
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs < 0 {
		return 0, clierr.Usagef("invalid duration: %s", s).WithSuggestion("a watch <session> 10m")
	}
	return time.Duration(secs) * time.Second, nil
}

func indexArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, clierr.Usagef("expected an index, got %q", s)
	}
	return n, nil
}
