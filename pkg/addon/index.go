package addon

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"
)

const (
	// DefaultIndexFile is the conventional index name at the repository root.
	DefaultIndexFile = "addons.xml"
	// ChecksumSuffix is appended to the index path to name the md5 sidecar.
	ChecksumSuffix = ".md5"

	indexRootTag = "addons"
)

// ErrAddonNotFound is matched by every AddonNotFoundError.
var ErrAddonNotFound = errors.New("addon not found")

// AddonNotFoundError reports an id missing from the index.
type AddonNotFoundError struct {
	ID   string
	Path string
}

func (e *AddonNotFoundError) Error() string {
	return fmt.Sprintf("could not find %q in %s", e.ID, e.Path)
}

func (e *AddonNotFoundError) Is(target error) bool {
	return target == ErrAddonNotFound
}

// Index is the aggregated addons.xml document. Every save rewrites the whole
// document and its md5 sidecar.
type Index struct {
	path      string
	doc       *etree.Document
	order     []string
	manifests map[string]*Manifest
	onSave    []func(paths ...string)
}

// NewIndex returns an empty index that will be written to path.
func NewIndex(path string) *Index {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	doc.CreateElement(indexRootTag)
	return &Index{path: path, doc: doc, manifests: map[string]*Manifest{}}
}

// LoadIndex parses the index document at path.
func LoadIndex(path string) (*Index, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	ix := &Index{path: path, doc: doc, manifests: map[string]*Manifest{}}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("read index %s: document has no root element", path)
	}
	elems := root.SelectElements(addonTag)
	if root.Tag == addonTag {
		elems = []*etree.Element{root}
	}
	for i, elem := range elems {
		m, err := manifestFromElement(elem)
		if err != nil {
			return nil, fmt.Errorf("read index %s: addon[%d]: %w", path, i, err)
		}
		if _, dup := ix.manifests[m.ID]; dup {
			return nil, fmt.Errorf("read index %s: duplicate addon id %q", path, m.ID)
		}
		m.owner = ix
		ix.manifests[m.ID] = m
		ix.order = append(ix.order, m.ID)
	}
	return ix, nil
}

func (ix *Index) Path() string {
	return ix.path
}

// ChecksumPath returns the md5 sidecar path.
func (ix *Index) ChecksumPath() string {
	return ix.path + ChecksumSuffix
}

// IDs returns addon ids in document order.
func (ix *Index) IDs() []string {
	return append([]string(nil), ix.order...)
}

// Get returns the manifest for id.
func (ix *Index) Get(id string) (*Manifest, error) {
	m, ok := ix.manifests[id]
	if !ok {
		return nil, &AddonNotFoundError{ID: id, Path: ix.path}
	}
	return m, nil
}

// OnSave registers fn to receive the written paths after each successful save.
func (ix *Index) OnSave(fn func(paths ...string)) {
	ix.onSave = append(ix.onSave, fn)
}

// Add copies a standalone manifest into the index and attaches the copy.
// The index is not saved.
func (ix *Index) Add(m *Manifest) (*Manifest, error) {
	if _, dup := ix.manifests[m.ID]; dup {
		return nil, fmt.Errorf("addon %q already in %s", m.ID, ix.path)
	}
	root := ix.doc.Root()
	if root == nil {
		root = ix.doc.CreateElement(indexRootTag)
	}
	elem := m.elem.Copy()
	root.AddChild(elem)
	attached, err := manifestFromElement(elem)
	if err != nil {
		return nil, err
	}
	attached.owner = ix
	attached.dirty = true
	ix.manifests[attached.ID] = attached
	ix.order = append(ix.order, attached.ID)
	return attached, nil
}

// Save writes the document and then the checksum of exactly those bytes.
func (ix *Index) Save() error {
	data, err := ix.doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serialize index: %w", err)
	}
	sum := Checksum(data)
	err = writeFilesAtomic([]pendingFile{
		{path: ix.path, data: data, perm: 0o644},
		{path: ix.ChecksumPath(), data: []byte(sum), perm: 0o644},
	})
	if err != nil {
		return fmt.Errorf("save index %s: %w", ix.path, err)
	}
	for _, m := range ix.manifests {
		m.dirty = false
	}
	for _, fn := range ix.onSave {
		fn(ix.path, ix.ChecksumPath())
	}
	return nil
}

func (ix *Index) saveManifest(*Manifest) error {
	return ix.Save()
}

// Checksum returns the lowercase hex md5 of data.
func Checksum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether the sidecar matches the index file bytes.
func VerifyChecksum(indexPath string) (bool, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return false, err
	}
	recorded, err := os.ReadFile(indexPath + ChecksumSuffix)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(recorded)) == Checksum(data), nil
}
