package commands

import (
	"fmt"

	"github.com/pirakansa/addonrepo/internal/cli/shared"
	"github.com/pirakansa/addonrepo/internal/cli/update"
	"github.com/spf13/cobra"
)

func newStatusCmd(ctx *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <addon-id>",
		Short: "Show the indexed version, mirror state and last recorded update",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			env, manifest, m, err := openMirror(cmd, ctx, id)
			if err != nil {
				return err
			}
			state, err := m.State(cmd.Context())
			if err != nil {
				return newExitCodeError(shared.ExitFailed, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id: %s\n", id)
			fmt.Fprintf(out, "version: %s\n", manifest.RawVersion())
			fmt.Fprintf(out, "mirror: %s (%s)\n", state, m.Dir())
			if !env.cfg.LockEnabled() {
				return nil
			}
			lock, err := update.LoadLock(env.resolve(env.cfg.LockFile))
			if err != nil {
				return newExitCodeError(shared.ExitFailed, err)
			}
			if entry, ok := lock.Addons[id]; ok {
				fmt.Fprintf(out, "last update: %s from %s via %s at %s\n", entry.Tag, entry.SourceURL, entry.Strategy, entry.UpdatedAt)
			}
			return nil
		},
	}
}
