package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pirakansa/addonrepo/pkg/addon"
)

const (
	depsDirName = "deps"
	depsSuffix  = "_deps"
)

// PackageDir builds <id>-<version>.zip from the addon directory dir into
// outDir. Bundled dependencies under resources/lib/deps are left out of that
// archive and shipped in an additional <id>-<version>_deps.zip.
func PackageDir(dir, outDir string, rules Rules) ([]*Result, error) {
	m, err := addon.LoadManifest(filepath.Join(dir, "addon.xml"))
	if err != nil {
		return nil, err
	}
	if outDir == "" {
		outDir = dir
	}
	base := fmt.Sprintf("%s-%s", m.ID, m.RawVersion())

	plain := rules
	plain.Dirs = append(append([]string(nil), rules.Dirs...), depsDirName)
	res, err := Write(dir, filepath.Join(outDir, base+".zip"), m.ID, plain)
	if err != nil {
		return nil, err
	}
	results := []*Result{res}

	info, err := os.Stat(filepath.Join(dir, "resources", "lib", depsDirName))
	if err != nil || !info.IsDir() {
		return results, nil
	}
	withDeps, err := Write(dir, filepath.Join(outDir, base+depsSuffix+".zip"), m.ID, rules)
	if err != nil {
		return nil, err
	}
	return append(results, withDeps), nil
}
