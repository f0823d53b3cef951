package commands

import (
	"fmt"

	"github.com/pirakansa/addonrepo/internal/cli/mirror"
	"github.com/pirakansa/addonrepo/internal/cli/shared"
	"github.com/pirakansa/addonrepo/pkg/addon"
	"github.com/spf13/cobra"
)

func newTagsCmd(ctx *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tags <addon-id>",
		Short: "Sync the upstream mirror and list version tags, latest first",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _, m, err := openMirror(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			if err := m.Sync(cmd.Context()); err != nil {
				return newExitCodeError(shared.ExitFailed, err)
			}
			tags, err := m.ListTags(cmd.Context())
			if err != nil {
				return newExitCodeError(shared.ExitFailed, err)
			}
			addon.SortTagsDescending(tags)
			env.logger.Debug("listed tags", "id", args[0], "count", len(tags))
			for _, tag := range tags {
				fmt.Fprintln(cmd.OutOrStdout(), tag.Name)
			}
			return nil
		},
	}
}

func openMirror(cmd *cobra.Command, ctx *appContext, id string) (*environment, *addon.Manifest, *mirror.Mirror, error) {
	env, err := ctx.load(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	idx, err := addon.LoadIndex(env.indexPath())
	if err != nil {
		return nil, nil, nil, newExitCodeError(shared.ExitFailed, err)
	}
	manifest, err := idx.Get(id)
	if err != nil {
		return nil, nil, nil, newExitCodeError(shared.ExitFailed, err)
	}
	source, err := manifest.Source()
	if err != nil {
		return nil, nil, nil, newExitCodeError(shared.ExitFailed, err)
	}
	m := mirror.New(env.resolve(env.cfg.CacheDir), id, source,
		mirror.WithBranch(env.cfg.ForAddon(id).Branch),
		mirror.WithLogger(env.logger),
	)
	return env, manifest, m, nil
}
