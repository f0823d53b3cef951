package commands

import (
	"fmt"

	"github.com/pirakansa/addonrepo/internal/cli/shared"
	"github.com/pirakansa/addonrepo/internal/cli/taskrun"
	"github.com/spf13/cobra"
)

func newRunCmd(ctx *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <task> [-- args...]",
		Short: "Run a configured task in the repository root",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
				return newExitCodeError(shared.ExitUsage, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.load(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			taskName := args[0]
			if _, ok := env.cfg.Tasks[taskName]; !ok {
				return newExitCodeError(shared.ExitUsage, fmt.Errorf("task %q is not defined", taskName))
			}
			out := taskrun.Output{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
			if err := taskrun.RunTask(cmd.Context(), env.cfg.Tasks, taskName, env.root, args[1:], out); err != nil {
				return newExitCodeError(shared.ExitFailed, err)
			}
			return nil
		},
	}
	return cmd
}
