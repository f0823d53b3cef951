package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/pirakansa/addonrepo/internal/cli/release"
	"github.com/pirakansa/addonrepo/internal/cli/shared"
	"github.com/pirakansa/addonrepo/internal/cli/update"
	"github.com/pirakansa/addonrepo/pkg/config"
	"github.com/spf13/cobra"
)

type appContext struct {
	configPath string
	root       string
	verbose    bool
}

// environment is the loaded configuration together with the repository root
// every relative path in it is resolved against.
type environment struct {
	cfg    *config.Config
	root   string
	logger *log.Logger
}

func NewRootCmd(version string) *cobra.Command {
	ctx := &appContext{}
	cmd := &cobra.Command{
		Use:   "addonrepo",
		Short: "Maintain an addon repository index and its packaged archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&ctx.configPath, "config", config.DefaultConfigFile, "path or URL of the repository config")
	cmd.PersistentFlags().StringVar(&ctx.root, "root", "", "repository root (default: directory of the config file)")
	cmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "V", false, "enable debug logging")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newExitCodeError(shared.ExitUsage, err)
	})

	cmd.AddCommand(newUpdateCmd(ctx))
	cmd.AddCommand(newPackageCmd(ctx))
	cmd.AddCommand(newTagsCmd(ctx))
	cmd.AddCommand(newStatusCmd(ctx))
	cmd.AddCommand(newIndexCmd(ctx))
	cmd.AddCommand(newRunCmd(ctx))
	cmd.AddCommand(newTasksCmd(ctx))
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd(version))

	return cmd
}

func Execute(ctx context.Context, version string) int {
	if err := NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		return mapExitCode(err)
	}
	return shared.ExitOK
}

func mapExitCode(err error) int {
	var codeErr *exitCodeError
	if errors.As(err, &codeErr) {
		return codeErr.code
	}
	return shared.ExitFailed
}

// load reads the config and resolves the repository root. The default config
// file may be absent; an explicitly named one must exist.
func (a *appContext) load(ctx context.Context, stderr io.Writer) (*environment, error) {
	required := a.configPath != config.DefaultConfigFile
	cfg, err := config.Load(ctx, a.configPath, required)
	if err != nil {
		return nil, newExitCodeError(shared.ExitFailed, err)
	}
	root := a.root
	switch {
	case root != "":
	case config.IsRemoteLocation(a.configPath):
		root = "."
	default:
		root = filepath.Dir(a.configPath)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	logger := log.NewWithOptions(stderr, log.Options{
		Prefix: "addonrepo",
	})
	if a.verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return &environment{cfg: cfg, root: abs, logger: logger}, nil
}

func (e *environment) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.root, p)
}

func (e *environment) indexPath() string {
	return e.resolve(e.cfg.Index)
}

func (e *environment) sources() map[string]update.SourceFactory {
	client := &release.Client{
		BaseURL: e.cfg.Release.APIURL,
		Token:   e.cfg.ReleaseToken(),
		Logger:  e.logger,
	}
	return map[string]update.SourceFactory{
		config.StrategyMirror:  update.MirrorSources(e.resolve(e.cfg.CacheDir), nil, e.logger),
		config.StrategyRelease: update.ReleaseSources(client, e.cfg.Release.Owner, e.cfg.Release.Artifact, e.logger),
	}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return newExitCodeError(shared.ExitUsage, err)
		}
		return nil
	}
}

func maximumArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return newExitCodeError(shared.ExitUsage, err)
		}
		return nil
	}
}

type exitCodeError struct {
	code int
	err  error
}

func newExitCodeError(code int, err error) *exitCodeError {
	return &exitCodeError{code: code, err: err}
}

func (e *exitCodeError) Error() string {
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}
