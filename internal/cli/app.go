// Package cli turns an argument vector into an Action. Index, path and
// delegate resolution happen first; built-ins run as cobra commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/clock"
	"github.com/g960059/aio/internal/config"
	"github.com/g960059/aio/internal/db"
	"github.com/g960059/aio/internal/format"
	"github.com/g960059/aio/internal/gitsync"
	"github.com/g960059/aio/internal/model"
	"github.com/g960059/aio/internal/mux"
	"github.com/g960059/aio/internal/proc"
	"github.com/g960059/aio/internal/prompt"
	"github.com/g960059/aio/internal/registry"
	"github.com/g960059/aio/internal/router"
)

// Deps are the collaborators an App needs. Zero fields get production
// defaults in NewApp.
type Deps struct {
	Config   *config.Config
	Runner   proc.Runner
	Spawner  proc.Spawner
	Clock    clock.Clock
	Prompt   *prompt.Prompter
	Log      *zap.Logger
	Self     string
	LookPath func(string) (string, error)
}

type App struct {
	deps   Deps
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer

	action model.Action
	// args is the original vector, kept for delegation from built-ins.
	args  []string
	store *db.Store
}

func NewApp(deps Deps, out, errOut io.Writer) *App {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	if deps.Config == nil {
		cfg := config.DefaultConfig()
		deps.Config = &cfg
	}
	if deps.Runner == nil {
		deps.Runner = proc.OSRunner{}
	}
	if deps.Spawner == nil {
		deps.Spawner = proc.OSSpawner{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Prompt == nil {
		deps.Prompt = prompt.FromStdio(out)
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &App{deps: deps, cfg: deps.Config, out: out, errOut: errOut}
}

// Run resolves args and returns what the driver should do next. It never
// replaces the process itself.
func (a *App) Run(ctx context.Context, args []string) model.Action {
	defer a.closeStore()
	a.args = args
	root := a.newRoot()
	r := &router.Router{Table: aliasTable(root), Cwd: a.cfg.Cwd, Home: a.cfg.Home}
	res := r.Resolve(args)
	a.deps.Log.Debug("resolved", zap.Strings("args", args), zap.Stringer("kind", res.Kind), zap.String("reason", res.Reason))

	var (
		action model.Action
		err    error
	)
	switch res.Kind {
	case router.KindHelp:
		err = a.printHelp(false)
		action = model.Exit(0)
	case router.KindIndex:
		action, err = a.openIndex(ctx, res.Index)
	case router.KindBuiltin:
		action, err = a.execute(ctx, root, append([]string{res.Command}, res.Args...))
	case router.KindPath:
		action, err = router.OpenPath(res.Path, a.cfg.Editor, a.out)
	default:
		action = a.delegate(args)
	}
	if err != nil {
		return a.fail(err)
	}
	return action
}

func (a *App) execute(ctx context.Context, root *cobra.Command, args []string) (model.Action, error) {
	a.action = model.Exit(0)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return model.Action{}, err
	}
	return a.action, nil
}

// calledAs reports whether the user typed token as the command word.
func (a *App) calledAs(token string) bool {
	return len(a.args) > 0 && a.args[0] == token
}

func (a *App) fail(err error) model.Action {
	if errors.Is(err, context.Canceled) {
		return model.Exit(130)
	}
	a.deps.Log.Info("command failed", zap.String("category", clierr.CategoryOf(err).String()), zap.Error(err))
	_, _ = fmt.Fprintln(a.errOut, format.Fail("%s", clierr.Format(err)))
	return model.Exit(clierr.ExitCode(err))
}

// delegate hands the whole vector to the external interpreter.
func (a *App) delegate(args []string) model.Action {
	d := a.cfg.Delegate
	a.deps.Log.Debug("delegate", zap.Strings("interpreter", d), zap.Strings("args", args))
	return model.Exec("", d[0], append(append([]string(nil), d[1:]...), args...)...)
}

func (a *App) newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "a",
		Short:         "personal command dispatcher",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printHelp(false)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return clierr.Usagef("%s: %v", cmd.Name(), err).WithSuggestion("a " + cmd.Name() + " --help")
	})

	help := a.helpCmd()
	root.SetHelpCommand(help)
	root.AddCommand(
		help,
		a.pushCmd(),
		a.pullCmd(),
		a.configCmd(),
		a.promptCmd(),
		a.lsCmd(),
		a.killCmd(),
		a.attachCmd(),
		a.sendCmd(),
		a.watchCmd(),
		a.treeCmd(),
		a.cleanupCmd(),
		a.updateCmd(),
		a.installCmd(),
		a.uninstallCmd(),
		a.doctorCmd(),
		a.probeCmd(),
		a.recordCmd(),
	)
	return root
}

// aliasTable collects every command name and declared alias.
func aliasTable(root *cobra.Command) router.Table {
	t := router.Table{}
	for _, c := range root.Commands() {
		t.Add(c.Name(), c.Aliases...)
	}
	return t
}

// helpHeader is the fixed part of the help screen, derived from the command
// tree so the cache never drifts from the binary.
func helpHeader(root *cobra.Command) string {
	var b strings.Builder
	b.WriteString("a - personal command dispatcher\n\n")
	b.WriteString("usage: a [N | command | path] [args...]\n")
	b.WriteString("  N        open project N or run app N\n")
	b.WriteString("  path     list a directory, run a script or edit a file\n")
	b.WriteString("  other    passed to the delegate interpreter\n\n")
	b.WriteString("COMMANDS\n")
	cmds := root.Commands()
	sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })
	width := 0
	for _, c := range cmds {
		if !c.Hidden && len(c.Use) > width {
			width = len(c.Use)
		}
	}
	for _, c := range cmds {
		if c.Hidden {
			continue
		}
		fmt.Fprintf(&b, "  %-*s  %s\n", width, c.Use, c.Short)
	}
	return b.String()
}

func (a *App) openStore(ctx context.Context) (*db.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := db.OpenMigrated(ctx, a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = s
	return s, nil
}

func (a *App) closeStore() {
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
}

func (a *App) syncer() *gitsync.Syncer {
	return &gitsync.Syncer{
		Runner:  a.deps.Runner,
		Spawner: a.deps.Spawner,
		Clock:   a.deps.Clock,
		Confirm: a.deps.Prompt,
		LogsDir: a.cfg.LogsDir,
		Policy:  a.cfg.Sync,
		Out:     a.out,
		Log:     a.deps.Log,
	}
}

func (a *App) mux() *mux.Manager {
	return &mux.Manager{
		Client:      mux.NewClient(a.deps.Runner),
		Clock:       a.deps.Clock,
		InTmux:      a.cfg.InTmux,
		Home:        a.cfg.Home,
		IdlePolicy:  a.cfg.Idle,
		WatchPolicy: a.cfg.Watch,
		SendPolicy:  a.cfg.Send,
		Out:         a.out,
		Log:         a.deps.Log,
	}
}

func (a *App) activator() *registry.Activator {
	return &registry.Activator{
		Shell:   a.cfg.Shell,
		Self:    a.deps.Self,
		Runner:  a.deps.Runner,
		Spawner: a.deps.Spawner,
		Log:     a.deps.Log,
	}
}

func (a *App) cachePaths() registry.CachePaths {
	return registry.CachePaths{
		ProjectList: a.cfg.ProjectListPath,
		HelpCache:   a.cfg.HelpCachePath,
		Home:        a.cfg.Home,
	}
}

func (a *App) println(line string) {
	_, _ = fmt.Fprintln(a.out, line)
}

// usageArgs reports positional-argument mistakes as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return clierr.Usagef("%s: %v", cmd.Name(), err).WithSuggestion("a " + cmd.Name() + " --help")
		}
		return nil
	}
}
