package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pirakansa/addonrepo/internal/cli/shared"
	"github.com/pirakansa/addonrepo/pkg/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an addonrepo config template",
		RunE: func(cmd *cobra.Command, args []string) error {
			var path, content string
			switch format {
			case "yaml":
				path, content = config.DefaultConfigFile, configTemplate
			case "toml":
				path, content = "addonrepo.toml", configTemplateTOML
			default:
				return newExitCodeError(shared.ExitUsage, fmt.Errorf("unknown format %q", format))
			}
			if err := writeIfNotExists(path, content); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "initialized:", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "template format: yaml or toml")
	return cmd
}

func writeIfNotExists(path, content string) error {
	_, err := os.Stat(path)
	if err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

const configTemplate = `version: 1
index: addons.xml
cache_dir: .cache/mirrors
lock_file: addonrepo.lock
strategy: mirror
commit: true
backup: none
exclude:
  extensions: [.pyc, .pyo, .swp, .zip, .gitignore]
  dirs: [.git]
release:
  api_url: https://api.github.com
  token_env: GITHUB_TOKEN
  artifact: zipball
tasks:
  translations:
    run: "echo build translations"
    desc: compile language files before packaging
addons:
  plugin.video.example:
    branch: master
    before_package: [translations]
`

const configTemplateTOML = `version = 1
index = "addons.xml"
cache_dir = ".cache/mirrors"
lock_file = "addonrepo.lock"
strategy = "mirror"
commit = true
backup = "none"

[exclude]
extensions = [".pyc", ".pyo", ".swp", ".zip", ".gitignore"]
dirs = [".git"]

[release]
api_url = "https://api.github.com"
token_env = "GITHUB_TOKEN"
artifact = "zipball"
`
