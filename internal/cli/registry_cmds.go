package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/format"
	"github.com/g960059/aio/internal/gitsync"
	"github.com/g960059/aio/internal/model"
	"github.com/g960059/aio/internal/proc"
	"github.com/g960059/aio/internal/registry"
)

func (a *App) helpCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "help",
		Aliases: []string{"hel", "-h", "--help"},
		Short:   "refresh and show the index",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printHelp(true)
		},
	}
}

// printHelp shows the cached help screen, rebuilding it first when refresh
// is set or the cache is missing.
func (a *App) printHelp(refresh bool) error {
	header := helpHeader(a.newRoot())
	paths := a.cachePaths()
	if refresh {
		if err := a.refreshCache(header); err != nil {
			return err
		}
	} else {
		reg, err := registry.Load(a.cfg)
		if err != nil {
			return err
		}
		if _, err := registry.EnsureCache(reg, paths, header); err != nil {
			return err
		}
	}
	raw, err := os.ReadFile(paths.HelpCache)
	if err != nil {
		return fmt.Errorf("read help cache: %w", err)
	}
	_, _ = a.out.Write(raw)
	return nil
}

func (a *App) refreshCache(header string) error {
	reg, err := registry.Load(a.cfg)
	if err != nil {
		return err
	}
	return registry.RefreshCache(reg, a.cachePaths(), header)
}

func (a *App) openIndex(ctx context.Context, index int) (model.Action, error) {
	if index < 0 {
		return model.Action{}, clierr.NotFoundf("invalid index: %s", a.args[0]).WithSuggestion("a help")
	}
	reg, err := registry.Load(a.cfg)
	if err != nil {
		return model.Action{}, err
	}
	target, err := reg.Resolve(index)
	if err != nil {
		return model.Action{}, err
	}
	return a.activator().Open(ctx, target, a.out)
}

const updateUsage = `a update - pull the latest source and refresh caches
  a update        pull with --ff-only, then rebuild the help cache
  a update cache  rebuild the help cache only`

func (a *App) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "update [cache|help]",
		Aliases: []string{"upd"},
		Short:   "pull the latest source, or just rebuild the caches",
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		// help and -h name a target here, not the cobra flag.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			header := helpHeader(cmd.Root())
			if len(args) == 1 {
				switch args[0] {
				case "help", "-h", "--help":
					a.println(updateUsage)
					return nil
				case "cache":
					if err := a.refreshCache(header); err != nil {
						return err
					}
					a.println(format.OK("cache refreshed"))
					return nil
				default:
					return clierr.Usagef("unknown update target: %s", args[0]).WithSuggestion("a update cache")
				}
			}
			if err := a.selfUpdate(cmd.Context()); err != nil {
				return err
			}
			if err := a.refreshCache(header); err != nil {
				return err
			}
			a.println(format.OK("cache refreshed"))
			return nil
		},
	}
}

func (a *App) selfUpdate(ctx context.Context) error {
	dir := a.cfg.SourceDir
	if !gitsync.IsRepo(ctx, a.deps.Runner, dir) {
		return clierr.NotFoundf("source checkout not found: %s", format.ShortenHome(dir, a.cfg.Home)).
			WithSuggestion("set source_dir in " + format.ShortenHome(a.cfg.FilePath, a.cfg.Home))
	}
	before := a.head(ctx, dir)
	res, err := proc.Git(ctx, a.deps.Runner, dir, "pull", "--ff-only")
	if err != nil {
		return err
	}
	if !res.OK() {
		return clierr.Externalf("update failed: %s", res.FirstLine())
	}
	after := a.head(ctx, dir)
	if before == after {
		a.println(format.OK("already up to date (%s)", after))
	} else {
		a.println(format.OK("updated %s -> %s", before, after))
	}
	return nil
}

func (a *App) head(ctx context.Context, dir string) string {
	res, err := proc.Git(ctx, a.deps.Runner, dir, "rev-parse", "--short", "HEAD")
	if err != nil || !res.OK() {
		return "?"
	}
	return res.FirstLine()
}

func (a *App) treeCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:     "tree [N]",
		Aliases: []string{"tre"},
		Short:   "open a fresh worktree of project N or the current repo",
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Cwd
			if len(args) == 1 {
				p, err := a.projectArg(args[0])
				if err != nil {
					return err
				}
				dir = p.Path
			}
			if list {
				return a.listWorktrees(cmd.Context(), dir)
			}
			path, err := gitsync.AddWorktree(cmd.Context(), a.deps.Runner, dir, a.cfg.WorktreesDir, a.deps.Clock.Now().Local())
			if errors.Is(err, gitsync.ErrNotRepo) {
				return clierr.NotFoundf("not a git repo: %s", format.ShortenHome(dir, a.cfg.Home))
			}
			if err != nil {
				return err
			}
			a.println(format.OK("%s", format.ShortenHome(path, a.cfg.Home)))
			a.action = model.Exec(path, a.cfg.Shell)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list existing worktrees instead")
	return cmd
}

func (a *App) listWorktrees(ctx context.Context, dir string) error {
	trees, err := gitsync.ListWorktrees(ctx, a.deps.Runner, dir)
	if err != nil {
		return err
	}
	for _, wt := range trees {
		branch := wt.Branch
		switch {
		case wt.Bare:
			branch = "(bare)"
		case wt.Detached:
			branch = "(detached)"
		}
		a.println(fmt.Sprintf("  %s  %s  %s", format.ShortenHome(wt.Path, a.cfg.Home), format.Cyan.Sprint(branch), format.Dim.Sprint(shortHash(wt.Head))))
	}
	return nil
}

func (a *App) projectArg(arg string) (model.ProjectEntry, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return model.ProjectEntry{}, clierr.Usagef("expected a project index, got %q", arg)
	}
	reg, err := registry.Load(a.cfg)
	if err != nil {
		return model.ProjectEntry{}, err
	}
	t, err := reg.Resolve(n)
	if err != nil {
		return model.ProjectEntry{}, err
	}
	if t.Project == nil {
		return model.ProjectEntry{}, clierr.Usagef("index %d is an app, not a project", n)
	}
	return *t.Project, nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func (a *App) cleanupCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "cleanup",
		Aliases: []string{"cle"},
		Short:   "prune worktrees and clear the multi-run ledger",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cleanup(cmd.Context(), yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func (a *App) cleanup(ctx context.Context, yes bool) error {
	reg, err := registry.Load(a.cfg)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(a.cfg.WorktreesDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read worktrees dir: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(a.cfg.WorktreesDir, e.Name()))
		}
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	runs, err := store.CountRuns(ctx)
	if err != nil {
		return err
	}
	if len(dirs) == 0 && runs == 0 {
		a.println("Nothing to clean")
		return nil
	}
	a.println(fmt.Sprintf("Will delete: %d dirs under %s, %d ledger runs", len(dirs), format.ShortenHome(a.cfg.WorktreesDir, a.cfg.Home), runs))
	if !yes {
		ok, err := a.deps.Prompt.Confirm("Remove all worktrees and clear the run ledger?")
		if err != nil {
			return err
		}
		if !ok {
			return clierr.ErrDeclined
		}
	}

	failed := 0
	for _, p := range reg.Projects {
		if _, err := os.Stat(filepath.Join(p.Path, ".git")); err != nil {
			continue
		}
		res, err := proc.Git(ctx, a.deps.Runner, p.Path, "worktree", "prune")
		if err != nil || !res.OK() {
			failed++
			a.deps.Log.Warn("worktree prune failed", zap.String("repo", p.Path), zap.Error(err), zap.String("output", res.FirstLine()))
			a.println(format.Warn("%s: prune failed", p.Name))
		}
	}
	for _, d := range dirs {
		if err := os.RemoveAll(d); err != nil {
			failed++
			a.deps.Log.Warn("remove worktree dir failed", zap.String("dir", d), zap.Error(err))
			a.println(format.Warn("%s: %v", filepath.Base(d), err))
		}
	}

	n, err := store.DeleteAllRuns(ctx)
	if err != nil {
		return err
	}
	summary := fmt.Sprintf("removed %d worktree dirs, cleared %d runs", len(dirs), n)
	if failed > 0 {
		summary += fmt.Sprintf(" (%d %s failed)", failed, plural(failed, "step", "steps"))
	}
	a.println(format.OK("%s", summary))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// joinArgs rebuilds free text split by the shell.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
