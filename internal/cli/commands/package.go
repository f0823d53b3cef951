package commands

import (
	"fmt"

	"github.com/pirakansa/addonrepo/internal/cli/archive"
	"github.com/pirakansa/addonrepo/internal/cli/shared"
	"github.com/spf13/cobra"
)

func newPackageCmd(ctx *appContext) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "package [dir]",
		Short: "Build the zip archives of one addon directory",
		Args:  maximumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			env, err := ctx.load(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			results, err := archive.PackageDir(dir, outDir, rulesOf(env))
			if err != nil {
				return newExitCodeError(shared.ExitFailed, err)
			}
			for _, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d files\n", res.Path, len(res.Entries))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: the addon directory)")
	return cmd
}

func rulesOf(env *environment) archive.Rules {
	return archive.Rules{
		Extensions: env.cfg.Exclude.Extensions,
		Files:      env.cfg.Exclude.Files,
		Dirs:       env.cfg.Exclude.Dirs,
	}
}
