package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/g960059/aio/internal/gitsync"
	"github.com/g960059/aio/internal/model"
	"github.com/g960059/aio/internal/registry"
)

func (a *App) pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "push [message...]",
		Aliases: []string{"pus", "p"},
		Short:   "commit and push the current repo (or every repo below it)",
		Args:    cobra.ArbitraryArgs,
		// Flags belong to the commit message.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.syncer().Push(cmd.Context(), a.cfg.Cwd, joinArgs(args))
			if errors.Is(err, gitsync.ErrNotRepo) {
				a.action = a.delegate(a.args)
				return nil
			}
			return err
		},
	}
}

func (a *App) pullCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "pull",
		Aliases: []string{"pul"},
		Short:   "reset the current repo to origin/main or origin/master",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.syncer().Pull(cmd.Context(), a.cfg.Cwd, yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

// probeCmd is spawned detached after a project is opened; it records a
// verified sync when origin answers.
func (a *App) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:    registry.ProbeCommand + " <dir>",
		Hidden: true,
		Args:   usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.syncer().Probe(cmd.Context(), args[0])
		},
	}
}

// recordCmd lets the delegate register a multi-agent run in the ledger.
func (a *App) recordCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "_record <repo>",
		Hidden: true,
		Args:   usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			repo, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			rec, err := store.InsertRun(cmd.Context(), model.SessionRecord{Repo: repo, CreatedAt: a.deps.Clock.Now().UTC()})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.out, rec.ID)
			return nil
		},
	}
}
