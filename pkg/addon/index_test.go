package addon

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func copyIndexFixture(t *testing.T) string {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("testdata", "addons.xml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "addons.xml")
	if err := os.WriteFile(path, src, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadIndexReadsManifests(t *testing.T) {
	ix, err := LoadIndex(copyIndexFixture(t))
	if err != nil {
		t.Fatalf("LoadIndex returned error: %v", err)
	}
	if got := ix.IDs(); !reflect.DeepEqual(got, []string{"demo.addon", "other.addon"}) {
		t.Fatalf("unexpected ids: %v", got)
	}
	m, err := ix.Get("demo.addon")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if m.Name != "Demo Addon" || m.RawVersion() != "1.0.0" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if m.Metadata["summary"] != "Demo summary" || m.Metadata["platform"] != "all" {
		t.Fatalf("unexpected metadata: %v", m.Metadata)
	}
	src, err := m.Source()
	if err != nil || src != "https://example.com/demo.addon.git" {
		t.Fatalf("unexpected source %q err=%v", src, err)
	}
	if _, ok := m.Metadata["provides"]; ok {
		t.Fatalf("metadata must only come from the metadata extension: %v", m.Metadata)
	}
}

func TestIndexGetUnknownID(t *testing.T) {
	ix, err := LoadIndex(copyIndexFixture(t))
	if err != nil {
		t.Fatalf("LoadIndex returned error: %v", err)
	}
	_, err = ix.Get("missing.addon")
	if !errors.Is(err, ErrAddonNotFound) {
		t.Fatalf("expected ErrAddonNotFound, got %v", err)
	}
}

func TestManifestWithoutSource(t *testing.T) {
	ix, err := LoadIndex(copyIndexFixture(t))
	if err != nil {
		t.Fatalf("LoadIndex returned error: %v", err)
	}
	m, _ := ix.Get("other.addon")
	if _, err := m.Source(); !errors.Is(err, ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
}

func TestIndexSaveRoundTrip(t *testing.T) {
	path := copyIndexFixture(t)
	ix, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("LoadIndex returned error: %v", err)
	}
	if err := ix.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	reloaded, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if !reflect.DeepEqual(ix.IDs(), reloaded.IDs()) {
		t.Fatalf("ids differ: %v vs %v", ix.IDs(), reloaded.IDs())
	}
	for _, id := range ix.IDs() {
		a, _ := ix.Get(id)
		b, _ := reloaded.Get(id)
		if a.ID != b.ID || a.Name != b.Name || a.RawVersion() != b.RawVersion() || !reflect.DeepEqual(a.Metadata, b.Metadata) {
			t.Fatalf("manifest %s differs after round trip: %+v vs %+v", id, a, b)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if !strings.Contains(string(data), `<import addon="xbmc.python" version="2.1.0"/>`) {
		t.Fatalf("expected unrelated content to be preserved:\n%s", data)
	}
}

func TestIndexSaveWritesChecksumOfWrittenBytes(t *testing.T) {
	path := copyIndexFixture(t)
	ix, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("LoadIndex returned error: %v", err)
	}
	var saved []string
	ix.OnSave(func(paths ...string) { saved = append(saved, paths...) })

	m, _ := ix.Get("demo.addon")
	if err := m.SetVersion(MustParseVersion("1.10.0")); err != nil {
		t.Fatalf("SetVersion returned error: %v", err)
	}
	if m.Dirty() {
		t.Fatalf("expected manifest to be clean after cascading save")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	sidecar, err := os.ReadFile(path + ".md5")
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	sum := md5.Sum(data)
	if string(sidecar) != hex.EncodeToString(sum[:]) {
		t.Fatalf("sidecar %q does not match index md5", sidecar)
	}
	if !reflect.DeepEqual(saved, []string{path, path + ".md5"}) {
		t.Fatalf("unexpected save hook paths: %v", saved)
	}
	ok, err := VerifyChecksum(path)
	if err != nil || !ok {
		t.Fatalf("VerifyChecksum = %v, %v", ok, err)
	}

	reloaded, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	got, _ := reloaded.Get("demo.addon")
	if got.RawVersion() != "1.10.0" {
		t.Fatalf("expected persisted version 1.10.0, got %s", got.RawVersion())
	}
	other, _ := reloaded.Get("other.addon")
	if other.RawVersion() != "0.3" {
		t.Fatalf("unexpected change to other addon: %s", other.RawVersion())
	}
}

func TestVerifyChecksumDetectsStaleSidecar(t *testing.T) {
	path := copyIndexFixture(t)
	if err := os.WriteFile(path+".md5", []byte("0000"), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	ok, err := VerifyChecksum(path)
	if err != nil {
		t.Fatalf("VerifyChecksum returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected stale sidecar to be detected")
	}
}

func TestLoadIndexRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "addons.xml")
	doc := `<addons><addon id="a" version="1.0"/><addon id="a" version="1.1"/></addons>`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if _, err := LoadIndex(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestStandaloneManifestSetVersionRewritesOwnFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "addon.xml")
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<addon id="solo.addon" name="Solo" version="0.1">
  <extension point="xbmc.addon.metadata"><source>https://example.com/solo.git</source></extension>
</addon>
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest returned error: %v", err)
	}
	if m.Path() != path {
		t.Fatalf("unexpected path %q", m.Path())
	}
	if err := m.SetVersion(MustParseVersion("0.2")); err != nil {
		t.Fatalf("SetVersion returned error: %v", err)
	}
	reloaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if reloaded.RawVersion() != "0.2" {
		t.Fatalf("expected 0.2, got %s", reloaded.RawVersion())
	}
	if _, err := os.Stat(path + ".md5"); !os.IsNotExist(err) {
		t.Fatalf("standalone manifests have no sidecar, err=%v", err)
	}
}

func TestIndexAddAttachesManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "addon.xml")
	if err := os.WriteFile(manifestPath, []byte(`<addon id="new.addon" name="New" version="1.0"/>`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	standalone, err := LoadManifest(manifestPath)
	if err != nil {
		t.Fatalf("LoadManifest returned error: %v", err)
	}

	ix := NewIndex(filepath.Join(dir, "addons.xml"))
	attached, err := ix.Add(standalone)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if attached.Path() != "" {
		t.Fatalf("attached manifest must not report a standalone path")
	}
	if _, err := ix.Add(standalone); err == nil {
		t.Fatalf("expected duplicate add to fail")
	}
	if err := ix.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	reloaded, err := LoadIndex(ix.Path())
	if err != nil {
		t.Fatalf("LoadIndex returned error: %v", err)
	}
	if _, err := reloaded.Get("new.addon"); err != nil {
		t.Fatalf("expected added addon, got %v", err)
	}
}
