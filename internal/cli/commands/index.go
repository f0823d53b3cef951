package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pirakansa/addonrepo/internal/cli/shared"
	"github.com/pirakansa/addonrepo/pkg/addon"
	"github.com/spf13/cobra"
)

func newIndexCmd(ctx *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index helpers",
	}
	cmd.AddCommand(newIndexVerifyCmd(ctx))
	cmd.AddCommand(newIndexAddCmd(ctx))
	return cmd
}

func newIndexVerifyCmd(ctx *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check addons.xml against its md5 sidecar",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.load(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			path := env.indexPath()
			ok, err := addon.VerifyChecksum(path)
			if err != nil {
				return newExitCodeError(shared.ExitFailed, err)
			}
			if !ok {
				return newExitCodeError(shared.ExitFailed, fmt.Errorf("checksum %s does not match %s", path+addon.ChecksumSuffix, path))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", path)
			return nil
		},
	}
}

func newIndexAddCmd(ctx *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <addon-dir>",
		Short: "Append the addon.xml of a directory to the index",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.load(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			standalone, err := addon.LoadManifest(filepath.Join(args[0], "addon.xml"))
			if err != nil {
				return newExitCodeError(shared.ExitFailed, err)
			}
			path := env.indexPath()
			idx, err := addon.LoadIndex(path)
			if errors.Is(err, os.ErrNotExist) {
				env.logger.Info("creating index", "path", path)
				idx, err = addon.NewIndex(path), nil
			}
			if err != nil {
				return newExitCodeError(shared.ExitFailed, err)
			}
			if _, err := idx.Add(standalone); err != nil {
				return newExitCodeError(shared.ExitFailed, err)
			}
			if err := idx.Save(); err != nil {
				return newExitCodeError(shared.ExitFailed, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s %s to %s\n", standalone.ID, standalone.RawVersion(), path)
			return nil
		},
	}
}
