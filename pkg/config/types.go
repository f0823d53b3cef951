package config

// Config is the repository-level configuration in addonrepo.yaml.
type Config struct {
	Version       int                    `yaml:"version" toml:"version"`
	Index         string                 `yaml:"index" toml:"index"`
	CacheDir      string                 `yaml:"cache_dir" toml:"cache_dir"`
	LockFile      string                 `yaml:"lock_file" toml:"lock_file"`
	Backup        string                 `yaml:"backup" toml:"backup"`
	Strategy      string                 `yaml:"strategy" toml:"strategy"`
	Commit        *bool                  `yaml:"commit" toml:"commit"`
	PrimaryBranch string                 `yaml:"primary_branch" toml:"primary_branch"`
	Exclude       ExcludeRules           `yaml:"exclude" toml:"exclude"`
	Release       ReleaseConfig          `yaml:"release" toml:"release"`
	Tasks         map[string]TaskDef     `yaml:"tasks" toml:"tasks"`
	Addons        map[string]AddonConfig `yaml:"addons" toml:"addons"`
}

// ExcludeRules lists what the archive writer leaves out.
type ExcludeRules struct {
	Extensions []string `yaml:"extensions" toml:"extensions"`
	Files      []string `yaml:"files" toml:"files"`
	Dirs       []string `yaml:"dirs" toml:"dirs"`
}

// ReleaseConfig configures the hosting API used by the release strategy.
type ReleaseConfig struct {
	APIURL   string `yaml:"api_url" toml:"api_url"`
	Owner    string `yaml:"owner" toml:"owner"`
	TokenEnv string `yaml:"token_env" toml:"token_env"`
	// Artifact selects the per-tag download: zipball or tarball.
	Artifact string `yaml:"artifact" toml:"artifact"`
}

// TaskDef defines one runnable task.
type TaskDef struct {
	Run       string            `yaml:"run" toml:"run"`
	Desc      string            `yaml:"desc" toml:"desc"`
	Env       map[string]string `yaml:"env" toml:"env"`
	CWD       string            `yaml:"cwd" toml:"cwd"`
	DependsOn []string          `yaml:"depends_on" toml:"depends_on"`
}

// AddonConfig holds per-addon overrides.
type AddonConfig struct {
	Strategy      string   `yaml:"strategy" toml:"strategy"`
	Branch        string   `yaml:"branch" toml:"branch"`
	BeforePackage []string `yaml:"before_package" toml:"before_package"`
	Digest        string   `yaml:"digest" toml:"digest"`
}
