package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/g960059/aio/internal/clierr"
	"github.com/g960059/aio/internal/format"
	"github.com/g960059/aio/internal/install"
)

func (a *App) installOptions(dryRun bool) install.Options {
	return install.Options{
		HomeDir:     a.cfg.Home,
		BinDir:      a.cfg.BinDir,
		DataDir:     a.cfg.DataDir,
		ProjectsDir: a.cfg.ProjectsDir,
		AppsDir:     a.cfg.AppsDir,
		LogsDir:     a.cfg.LogsDir,
		Self:        a.deps.Self,
		DryRun:      dryRun,
	}
}

func (a *App) installCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:     "install",
		Aliases: []string{"ins"},
		Short:   "create the data layout and link this binary as a",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := install.Install(a.installOptions(dryRun))
			if err != nil {
				return err
			}
			a.printInstallResult(res)
			if dryRun {
				return nil
			}
			return a.refreshCache(helpHeader(cmd.Root()))
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change")
	return cmd
}

func (a *App) uninstallCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:     "uninstall",
		Aliases: []string{"uni"},
		Short:   "remove the link and caches (descriptions are kept)",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := install.Uninstall(a.installOptions(dryRun), a.cfg.HelpCachePath, a.cfg.ProjectListPath)
			if err != nil {
				return err
			}
			a.printInstallResult(res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change")
	return cmd
}

func (a *App) printInstallResult(res install.Result) {
	prefix := ""
	if res.DryRun {
		prefix = "(dry run) "
	}
	for _, d := range res.DirsCreated {
		a.println(format.OK("%screated %s", prefix, format.ShortenHome(d, a.cfg.Home)))
	}
	for _, f := range res.FilesWritten {
		a.println(format.OK("%swrote %s", prefix, format.ShortenHome(f, a.cfg.Home)))
	}
	for _, b := range res.Backups {
		a.println(format.Warn("%sbacked up %s", prefix, format.ShortenHome(b, a.cfg.Home)))
	}
	for _, f := range res.FilesRemoved {
		a.println(format.OK("%sremoved %s", prefix, format.ShortenHome(f, a.cfg.Home)))
	}
	if res.Link != "" {
		a.println(format.OK("%slinked %s", prefix, format.ShortenHome(res.Link, a.cfg.Home)))
	}
	for _, w := range res.Warnings {
		a.println(format.Warn("%s", w))
	}
}

func (a *App) doctorCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "check external programs and the data layout",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := install.Doctor(install.DoctorOptions{
				Options:  a.installOptions(false),
				Delegate: a.cfg.Delegate,
				LookPath: a.deps.LookPath,
			})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				for _, c := range res.Checks {
					line := fmt.Sprintf("%-14s %s", c.Name, c.Message)
					switch c.Status {
					case "pass":
						a.println(format.OK("%s", line))
					case "warn":
						a.println(format.Warn("%s", line))
					default:
						a.println(format.Fail("%s", line))
					}
				}
			}
			if !res.OK {
				return clierr.Externalf("doctor found problems")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print machine-readable output")
	return cmd
}
