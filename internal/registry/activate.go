package registry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/format"
	"github.com/g960059/aio/internal/model"
	"github.com/g960059/aio/internal/proc"
)

// ProbeCommand is the hidden subcommand that checks remote reachability.
const ProbeCommand = "_probe"

type Activator struct {
	Shell   string
	Self    string
	Runner  proc.Runner
	Spawner proc.Spawner
	Log     *zap.Logger
}

// Activate makes p's working tree available, starts a background
// reachability probe and returns a shell rooted at the tree.
func (a *Activator) Activate(ctx context.Context, p model.ProjectEntry, out io.Writer) (model.Action, error) {
	switch Liveness(p) {
	case format.Unusable:
		return model.Action{}, clierr.NotFoundf("project %s: %s does not exist and has no Repo", p.Name, p.Path)
	case format.Clonable:
		_, _ = fmt.Fprintf(out, "Cloning %s...\n", p.Remote)
		if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
			return model.Action{}, fmt.Errorf("create parent of %s: %w", p.Path, err)
		}
		res, err := proc.Git(ctx, a.Runner, "", "clone", p.Remote, p.Path)
		if err != nil {
			return model.Action{}, clierr.Wrap(clierr.External, err, "git clone %s", p.Remote)
		}
		if !res.OK() {
			return model.Action{}, clierr.Externalf("git clone %s: %s", p.Remote, res.FirstLine())
		}
	}

	if a.Self != "" {
		if err := a.Spawner.Detach(p.Path, a.Self, ProbeCommand, p.Path); err != nil {
			a.logger().Warn("probe spawn failed", zap.String("path", p.Path), zap.Error(err))
		}
	}
	_, _ = fmt.Fprintf(out, "Opening %s: %s\n", p.Name, p.Path)
	return model.Exec(p.Path, a.Shell), nil
}

// Launch runs an app command through the shell.
func (a *Activator) Launch(app model.AppEntry, out io.Writer) (model.Action, error) {
	if app.Command == "" {
		return model.Action{}, clierr.NotFoundf("app %s has no Command", app.Name)
	}
	_, _ = fmt.Fprintf(out, "> Running: %s\n   Command: %s\n", app.Name, app.Command)
	return model.Exec("", a.Shell, "-c", app.Command), nil
}

// Open dispatches a resolved index target.
func (a *Activator) Open(ctx context.Context, t Target, out io.Writer) (model.Action, error) {
	if t.Project != nil {
		return a.Activate(ctx, *t.Project, out)
	}
	return a.Launch(*t.App, out)
}

func (a *Activator) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}
