package addon

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"
)

const (
	// MetadataPoint marks the extension block holding addon metadata.
	MetadataPoint = "xbmc.addon.metadata"
	// MetadataSource is the metadata key holding the upstream repository URL.
	MetadataSource = "source"

	addonTag     = "addon"
	extensionTag = "extension"
)

var (
	// ErrMissingSource is returned for addons without source metadata.
	ErrMissingSource = errors.New("addon has no source metadata")
	errMissingID     = errors.New("addon element has no id attribute")
)

// owner persists a manifest after it changes.
type owner interface {
	saveManifest(m *Manifest) error
}

// Manifest is one addon descriptor. It is either attached to an Index or
// backed by its own addon.xml file; in both cases SetVersion persists the
// change through that owner.
type Manifest struct {
	ID       string
	Name     string
	Metadata map[string]string

	version string
	elem    *etree.Element
	owner   owner
	dirty   bool
}

// LoadManifest reads a standalone addon.xml.
func LoadManifest(path string) (*Manifest, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != addonTag {
		return nil, fmt.Errorf("read manifest %s: root element is not <%s>", path, addonTag)
	}
	m, err := manifestFromElement(root)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	m.owner = &manifestFile{path: path, doc: doc}
	return m, nil
}

func manifestFromElement(elem *etree.Element) (*Manifest, error) {
	id := strings.TrimSpace(elem.SelectAttrValue("id", ""))
	if id == "" {
		return nil, errMissingID
	}
	m := &Manifest{
		ID:       id,
		Name:     elem.SelectAttrValue("name", ""),
		Metadata: map[string]string{},
		version:  strings.TrimSpace(elem.SelectAttrValue("version", "")),
		elem:     elem,
	}
	for _, ext := range elem.SelectElements(extensionTag) {
		if ext.SelectAttrValue("point", "") != MetadataPoint {
			continue
		}
		for _, child := range ext.ChildElements() {
			key := strings.ToLower(child.Tag)
			if _, seen := m.Metadata[key]; seen {
				continue
			}
			m.Metadata[key] = strings.TrimSpace(child.Text())
		}
	}
	return m, nil
}

// Version parses the version attribute.
func (m *Manifest) Version() (Version, error) {
	return ParseVersion(m.version)
}

// RawVersion returns the version attribute as written.
func (m *Manifest) RawVersion() string {
	return m.version
}

// Source returns the upstream repository URL, or ErrMissingSource.
func (m *Manifest) Source() (string, error) {
	src := strings.TrimSpace(m.Metadata[MetadataSource])
	if src == "" {
		return "", fmt.Errorf("%s: %w", m.ID, ErrMissingSource)
	}
	return src, nil
}

// Dirty reports whether the manifest has unsaved changes.
func (m *Manifest) Dirty() bool {
	return m.dirty
}

// Path returns the backing file of a standalone manifest, or "" when the
// manifest belongs to an index.
func (m *Manifest) Path() string {
	if f, ok := m.owner.(*manifestFile); ok {
		return f.path
	}
	return ""
}

// SetVersion updates the version and saves the owner.
func (m *Manifest) SetVersion(v Version) error {
	if v.IsZero() {
		return &InvalidVersionError{Value: ""}
	}
	m.version = v.String()
	m.elem.CreateAttr("version", m.version)
	m.dirty = true
	return m.Save()
}

// Save persists the manifest through its owner.
func (m *Manifest) Save() error {
	if m.owner == nil {
		return fmt.Errorf("manifest %s has no owner", m.ID)
	}
	return m.owner.saveManifest(m)
}

type manifestFile struct {
	path string
	doc  *etree.Document
}

func (f *manifestFile) saveManifest(m *Manifest) error {
	data, err := f.doc.WriteToBytes()
	if err != nil {
		return err
	}
	info, err := os.Stat(f.path)
	perm := os.FileMode(0o644)
	if err == nil {
		perm = info.Mode().Perm()
	}
	if err := writeFilesAtomic([]pendingFile{{path: f.path, data: data, perm: perm}}); err != nil {
		return fmt.Errorf("save manifest %s: %w", f.path, err)
	}
	m.dirty = false
	return nil
}
