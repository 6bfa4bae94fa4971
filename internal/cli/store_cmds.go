package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/db"
	"github.com/g960059/aio/internal/format"
	"github.com/g960059/aio/internal/model"
)

func (a *App) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "config [key] [value...]",
		Aliases: []string{"con"},
		Short:   "show or set stored settings",
		Args:    cobra.ArbitraryArgs,
		// Values may start with a dash.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			switch len(args) {
			case 0:
				entries, err := store.ListConfig(ctx)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					a.println("No settings")
					return nil
				}
				for _, e := range entries {
					a.println(fmt.Sprintf("%s: %s", format.Bold.Sprint(e.Key), format.Truncate(e.Value, 80)))
				}
				return nil
			case 1:
				v, err := store.GetConfig(ctx, args[0])
				if errors.Is(err, db.ErrNotFound) {
					return clierr.NotFoundf("no setting %q", args[0]).WithSuggestion("a config")
				}
				if err != nil {
					return err
				}
				a.println(v)
				return nil
			}
			value := joinArgs(args[1:])
			if err := store.SetConfig(ctx, args[0], value); err != nil {
				return err
			}
			a.println(format.OK("%s = %s", args[0], format.Truncate(value, 80)))
			return nil
		},
	}
}

func (a *App) promptCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "prompt [text...]",
		Aliases: []string{"pro"},
		Short:   "show or set the default agent prompt",
		Args:    cobra.ArbitraryArgs,
		// The prompt is free text.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				v, err := store.GetConfig(ctx, model.ConfigKeyDefaultPrompt)
				if errors.Is(err, db.ErrNotFound) {
					a.println("No default prompt")
					return nil
				}
				if err != nil {
					return err
				}
				a.println(v)
				return nil
			}
			text := joinArgs(args)
			if err := store.SetConfig(ctx, model.ConfigKeyDefaultPrompt, text); err != nil {
				return err
			}
			a.println(format.OK("default prompt saved"))
			return nil
		},
	}
}
