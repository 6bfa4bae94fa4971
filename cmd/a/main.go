package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/g960059/aio/internal/cli"
	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/config"
	"github.com/g960059/aio/internal/format"
	"github.com/g960059/aio/internal/logging"
	"github.com/g960059/aio/internal/model"
	"github.com/g960059/aio/internal/proc"
	"github.com/g960059/aio/internal/prompt"
)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.EnvFromOS())
	if err != nil {
		_, _ = fmt.Fprintln(stderr, format.Fail("%s", clierr.Format(err)))
		return clierr.ExitCode(err)
	}
	logger := logging.NewOrNop(&cfg)
	defer func() { _ = logger.Sync() }()

	self, err := os.Executable()
	if err != nil {
		logger.Warn("resolve executable", zap.Error(err))
		self = ""
	}
	app := cli.NewApp(cli.Deps{
		Config: &cfg,
		Prompt: prompt.New(stdin, stdout, isTerminal(stdin)),
		Log:    logger,
		Self:   self,
	}, stdout, stderr)

	action := app.Run(ctx, args[1:])
	return execute(action, stderr, logger)
}

// execute performs the final action. On success an exec never returns.
func execute(action model.Action, stderr io.Writer, logger *zap.Logger) int {
	if action.Kind != model.ActionExec {
		return action.Code
	}
	logger.Debug("exec", zap.String("program", action.Program), zap.Strings("args", action.Args), zap.String("dir", action.Dir))
	_ = logger.Sync()
	err := proc.Replace(action.Program, action.Args, action.Dir)
	if errors.Is(err, proc.ErrNotFound) {
		_, _ = fmt.Fprintln(stderr, format.Fail("cannot run %s: not found on PATH", action.Program))
		return 127
	}
	_, _ = fmt.Fprintln(stderr, format.Fail("%v", err))
	return 126
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
