package commands

import (
	"fmt"

	"github.com/pirakansa/addonrepo/internal/cli/shared"
	"github.com/pirakansa/addonrepo/internal/cli/taskrun"
	"github.com/pirakansa/addonrepo/internal/cli/update"
	"github.com/pirakansa/addonrepo/internal/cli/vcs"
	"github.com/pirakansa/addonrepo/pkg/addon"
	"github.com/pirakansa/addonrepo/pkg/config"
	"github.com/spf13/cobra"
)

type updateCommandOptions struct {
	version  string
	force    bool
	noCommit bool
	strategy string
	digest   string
}

func newUpdateCmd(ctx *appContext) *cobra.Command {
	opts := updateCommandOptions{}
	cmd := &cobra.Command{
		Use:   "update <addon-id>",
		Short: "Package the latest (or a given) upstream version of an addon and commit it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, ctx, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.version, "version", "v", "", "explicit version to package (X.Y or X.Y.Z)")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "allow a version older than the indexed one")
	cmd.Flags().BoolVar(&opts.noCommit, "no-commit", false, "leave the changes uncommitted")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "source strategy: mirror or release (default from config)")
	cmd.Flags().StringVar(&opts.digest, "digest", "", "expected release artifact digest as algo:hex")
	return cmd
}

func runUpdate(cmd *cobra.Command, ctx *appContext, id string, opts updateCommandOptions) error {
	switch opts.strategy {
	case "", config.StrategyMirror, config.StrategyRelease:
	default:
		return newExitCodeError(shared.ExitUsage, fmt.Errorf("unknown strategy %q", opts.strategy))
	}
	req := update.Request{
		AddonID:  id,
		Force:    opts.force,
		Strategy: opts.strategy,
		Digest:   opts.digest,
	}
	if opts.version != "" {
		v, err := addon.ParseVersion(opts.version)
		if err != nil {
			return newExitCodeError(shared.ExitFailed, err)
		}
		req.Version = &v
	}

	env, err := ctx.load(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	req.Commit = env.cfg.CommitEnabled() && !opts.noCommit
	idx, err := addon.LoadIndex(env.indexPath())
	if err != nil {
		return newExitCodeError(shared.ExitFailed, err)
	}
	u := update.New(idx, env.cfg, env.root, vcs.New(env.root, nil), env.sources(), env.logger)
	u.TaskOutput = taskrun.Output{Stdout: cmd.ErrOrStderr(), Stderr: cmd.ErrOrStderr()}

	res, err := u.Run(cmd.Context(), req)
	if err != nil {
		return newExitCodeError(shared.ExitFailed, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %s: %s -> %s\n", res.AddonID, res.Previous, res.Tag.Version)
	fmt.Fprintf(cmd.OutOrStdout(), "archive: %s (%d files)\n", res.Archive, res.Entries)
	if !res.Committed {
		fmt.Fprintf(cmd.OutOrStdout(), "not committed: %d changed paths\n", len(res.Paths))
	}
	return nil
}
