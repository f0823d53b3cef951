package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pirakansa/addonrepo/pkg/addon"
)

const (
	DefaultConfigVersion = 1
	DefaultConfigFile    = "addonrepo.yaml"
	DefaultCacheDir      = ".cache/mirrors"
	DefaultLockFile      = "addonrepo.lock"
	DefaultAPIURL        = "https://api.github.com"

	// LockDisabled turns the lock ledger off when used as lock_file.
	LockDisabled = "-"

	StrategyMirror  = "mirror"
	StrategyRelease = "release"

	ArtifactZipball = "zipball"
	ArtifactTarball = "tarball"

	BackupNone      = "none"
	BackupTimestamp = "timestamp"
)

var (
	DefaultExcludeExtensions = []string{".pyc", ".pyo", ".swp", ".zip", ".gitignore"}
	DefaultExcludeDirs       = []string{".git"}
)

// Default returns a normalized configuration with no file behind it.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

func Normalize(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = DefaultConfigVersion
	}
	if strings.TrimSpace(cfg.Index) == "" {
		cfg.Index = addon.DefaultIndexFile
	}
	if strings.TrimSpace(cfg.CacheDir) == "" {
		cfg.CacheDir = DefaultCacheDir
	}
	if strings.TrimSpace(cfg.LockFile) == "" {
		cfg.LockFile = DefaultLockFile
	}
	if cfg.Backup == "" {
		cfg.Backup = BackupNone
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyMirror
	}
	if cfg.Commit == nil {
		commit := true
		cfg.Commit = &commit
	}
	if cfg.Exclude.Extensions == nil {
		cfg.Exclude.Extensions = append([]string(nil), DefaultExcludeExtensions...)
	}
	if cfg.Exclude.Dirs == nil {
		cfg.Exclude.Dirs = append([]string(nil), DefaultExcludeDirs...)
	}
	if cfg.Release.APIURL == "" {
		cfg.Release.APIURL = DefaultAPIURL
	}
	if cfg.Release.Artifact == "" {
		cfg.Release.Artifact = ArtifactZipball
	}
	if cfg.Tasks == nil {
		cfg.Tasks = map[string]TaskDef{}
	}
	if cfg.Addons == nil {
		cfg.Addons = map[string]AddonConfig{}
	}
}

func IsRemoteLocation(value string) bool {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}

func Validate(cfg *Config) error {
	if err := validateStrategy("strategy", cfg.Strategy); err != nil {
		return err
	}
	switch cfg.Backup {
	case BackupNone, BackupTimestamp:
	default:
		return fmt.Errorf("backup %q must be %s or %s", cfg.Backup, BackupNone, BackupTimestamp)
	}
	if !IsRemoteLocation(cfg.Release.APIURL) {
		return fmt.Errorf("release.api_url %q must be an http(s) URL", cfg.Release.APIURL)
	}
	switch cfg.Release.Artifact {
	case ArtifactZipball, ArtifactTarball:
	default:
		return fmt.Errorf("release.artifact %q must be %s or %s", cfg.Release.Artifact, ArtifactZipball, ArtifactTarball)
	}
	for i, ext := range cfg.Exclude.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("exclude.extensions[%d] %q must start with a dot", i, ext)
		}
	}
	for name, task := range cfg.Tasks {
		if task.Run == "" && len(task.DependsOn) == 0 {
			return fmt.Errorf("task %q must have run or depends_on", name)
		}
		for _, dep := range task.DependsOn {
			if _, ok := cfg.Tasks[dep]; !ok {
				return fmt.Errorf("task %q depends on undefined task %q", name, dep)
			}
		}
	}
	for id, addon := range cfg.Addons {
		if addon.Strategy != "" {
			if err := validateStrategy(fmt.Sprintf("addons.%s.strategy", id), addon.Strategy); err != nil {
				return err
			}
		}
		for _, task := range addon.BeforePackage {
			if _, ok := cfg.Tasks[task]; !ok {
				return fmt.Errorf("addons.%s.before_package references undefined task %q", id, task)
			}
		}
	}
	return nil
}

func validateStrategy(field, value string) error {
	switch value {
	case StrategyMirror, StrategyRelease:
		return nil
	default:
		return fmt.Errorf("%s %q must be %s or %s", field, value, StrategyMirror, StrategyRelease)
	}
}

// ForAddon merges the per-addon overrides over the repository defaults.
func (c *Config) ForAddon(id string) AddonConfig {
	resolved := c.Addons[id]
	if resolved.Strategy == "" {
		resolved.Strategy = c.Strategy
	}
	if resolved.Branch == "" {
		resolved.Branch = c.PrimaryBranch
	}
	return resolved
}

// CommitEnabled reports the configured commit default.
func (c *Config) CommitEnabled() bool {
	return c.Commit == nil || *c.Commit
}

// LockEnabled reports whether the lock ledger is written.
func (c *Config) LockEnabled() bool {
	return c.LockFile != LockDisabled
}

// ReleaseToken reads the hosting API token from the configured variable.
func (c *Config) ReleaseToken() string {
	if c.Release.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Release.TokenEnv)
}
