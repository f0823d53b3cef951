package archive

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

var defaultRules = Rules{
	Extensions: []string{".pyc", ".pyo", ".swp", ".zip", ".gitignore"},
	Dirs:       []string{".git"},
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip %s: %v", path, err)
	}
	defer zr.Close()
	out := map[string]string{}
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Fatalf("entry %s is not deflate compressed", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		out[f.Name] = string(body)
	}
	return out
}

func TestWriteSkipsExcludedFiles(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt":       "alpha",
		"b.pyc":       "bytecode",
		".git/config": "[core]",
	})
	dest := filepath.Join(t.TempDir(), "demo.addon", "demo.addon-1.0.0.zip")

	res, err := Write(src, dest, "demo.addon", defaultRules)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if !reflect.DeepEqual(res.Entries, []string{"demo.addon/a.txt"}) {
		t.Fatalf("unexpected entries: %v", res.Entries)
	}
	got := readZip(t, dest)
	if len(got) != 1 || got["demo.addon/a.txt"] != "alpha" {
		t.Fatalf("unexpected archive content: %v", got)
	}
}

func TestWriteKeepsNestedPathsUnderRoot(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"addon.xml":                       "<addon/>",
		"resources/lib/util.py":           "pass",
		"resources/lib/util.pyo":          "x",
		"resources/.git/hooks/pre-commit": "x",
		"resources/language/English/a.po": "msg",
		".gitignore":                      "*.pyc",
		"old/demo-0.9.zip":                "zip",
		".default.py.swp":                 "swap",
	})
	dest := filepath.Join(t.TempDir(), "out.zip")

	res, err := Write(src, dest, "plugin.demo", defaultRules)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	entries := append([]string(nil), res.Entries...)
	sort.Strings(entries)
	want := []string{
		"plugin.demo/addon.xml",
		"plugin.demo/resources/language/English/a.po",
		"plugin.demo/resources/lib/util.py",
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("unexpected entries:\n got %v\nwant %v", entries, want)
	}
}

func TestWriteEmptyDirectoryProducesEmptyArchive(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"only.pyc": "x"})
	dest := filepath.Join(t.TempDir(), "empty.zip")

	res, err := Write(src, dest, "empty", defaultRules)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Fatalf("expected no entries, got %v", res.Entries)
	}
	if got := readZip(t, dest); len(got) != 0 {
		t.Fatalf("expected empty archive, got %v", got)
	}
}

func TestWriteIntoSourceDirectoryDoesNotArchiveItself(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "alpha"})
	dest := filepath.Join(src, "self.zip")

	res, err := Write(src, dest, "self", Rules{})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if !reflect.DeepEqual(res.Entries, []string{"self/a.txt"}) {
		t.Fatalf("unexpected entries: %v", res.Entries)
	}
}

func TestRulesSkips(t *testing.T) {
	rules := Rules{Extensions: []string{".pyc"}, Files: []string{"Thumbs.db"}, Dirs: []string{".git", "deps"}}
	cases := map[string]bool{
		"a.txt":                     false,
		"a.pyc":                     true,
		"sub/Thumbs.db":             true,
		".git/config":               true,
		"x/.git/y":                  true,
		"resources/lib/deps/mod.py": true,
		"depsfile.py":               false,
		"deps.py":                   false,
		".github/workflow.yml":      false,
	}
	for rel, want := range cases {
		if got := rules.Skips(rel); got != want {
			t.Fatalf("Skips(%q) = %v, want %v", rel, got, want)
		}
	}
}

func TestPackageDirWritesDepsArchive(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"addon.xml":                 `<addon id="plugin.video.demo" name="Demo" version="0.4.1"/>`,
		"default.py":                "print()",
		"resources/lib/deps/six.py": "six",
	})

	results, err := PackageDir(src, "", defaultRules)
	if err != nil {
		t.Fatalf("PackageDir returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two archives, got %d", len(results))
	}

	plain := readZip(t, filepath.Join(src, "plugin.video.demo-0.4.1.zip"))
	if _, ok := plain["plugin.video.demo/resources/lib/deps/six.py"]; ok {
		t.Fatalf("plain archive must not bundle deps: %v", plain)
	}
	if _, ok := plain["plugin.video.demo/default.py"]; !ok {
		t.Fatalf("plain archive misses default.py: %v", plain)
	}

	withDeps := readZip(t, filepath.Join(src, "plugin.video.demo-0.4.1_deps.zip"))
	if _, ok := withDeps["plugin.video.demo/resources/lib/deps/six.py"]; !ok {
		t.Fatalf("deps archive misses bundled deps: %v", withDeps)
	}
	if len(withDeps) != 3 {
		t.Fatalf("deps archive must not contain the first archive: %v", withDeps)
	}
}

func TestPackageDirWithoutDeps(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeTree(t, src, map[string]string{
		"addon.xml": `<addon id="script.demo" version="1.0"/>`,
	})
	results, err := PackageDir(src, out, defaultRules)
	if err != nil {
		t.Fatalf("PackageDir returned error: %v", err)
	}
	if len(results) != 1 || results[0].Path != filepath.Join(out, "script.demo-1.0.zip") {
		t.Fatalf("unexpected results: %+v", results)
	}
}
