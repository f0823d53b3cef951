package update

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const lockVersion = "v1"

// LockFile records the last applied update of every addon.
type LockFile struct {
	Version string               `yaml:"version"`
	Addons  map[string]LockEntry `yaml:"addons"`
}

// LockEntry stores addon-level update metadata.
type LockEntry struct {
	Version       string `yaml:"version"`
	Tag           string `yaml:"tag"`
	SourceURL     string `yaml:"source_url"`
	Strategy      string `yaml:"strategy"`
	Revision      string `yaml:"revision,omitempty"`
	ArchiveBLAKE3 string `yaml:"archive_blake3"`
	UpdatedAt     string `yaml:"updated_at"`
}

func LoadLock(path string) (*LockFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LockFile{Version: lockVersion, Addons: map[string]LockEntry{}}, nil
		}
		return nil, err
	}
	var lock LockFile
	if err := yaml.Unmarshal(b, &lock); err != nil {
		return nil, err
	}
	if lock.Version == "" {
		lock.Version = lockVersion
	}
	if lock.Addons == nil {
		lock.Addons = map[string]LockEntry{}
	}
	return &lock, nil
}

func SaveLock(path string, lock *LockFile) error {
	if lock.Version == "" {
		lock.Version = lockVersion
	}
	if lock.Addons == nil {
		lock.Addons = map[string]LockEntry{}
	}
	b, err := yaml.Marshal(lock)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
