package commands

import (
	"fmt"

	"github.com/pirakansa/addonrepo/internal/cli/taskrun"
	"github.com/spf13/cobra"
)

func newTasksCmd(ctx *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task helpers",
	}
	cmd.AddCommand(newTasksListCmd(ctx))
	return cmd
}

func newTasksListCmd(ctx *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.load(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range taskrun.ListTaskNames(env.cfg.Tasks) {
				desc := env.cfg.Tasks[name].Desc
				if desc == "" {
					fmt.Fprintln(out, name)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", name, desc)
			}
			return nil
		},
	}
}
