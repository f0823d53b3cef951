package addon

import (
	"os"
	"path/filepath"
)

type pendingFile struct {
	path string
	data []byte
	perm os.FileMode
}

// writeFilesAtomic stages every file next to its target before renaming any
// of them, so a failed write leaves all targets untouched.
func writeFilesAtomic(files []pendingFile) error {
	temps := make([]string, 0, len(files))
	cleanup := func() {
		for _, t := range temps {
			_ = os.Remove(t)
		}
	}
	for _, f := range files {
		dir := filepath.Dir(f.path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			cleanup()
			return err
		}
		tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
		if err != nil {
			cleanup()
			return err
		}
		temps = append(temps, tmp.Name())
		if _, err := tmp.Write(f.data); err != nil {
			tmp.Close()
			cleanup()
			return err
		}
		if err := tmp.Chmod(f.perm); err != nil {
			tmp.Close()
			cleanup()
			return err
		}
		if err := tmp.Close(); err != nil {
			cleanup()
			return err
		}
	}
	for i, f := range files {
		if err := os.Rename(temps[i], f.path); err != nil {
			cleanup()
			return err
		}
	}
	return nil
}
