package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

const (
	EncodingTarGzip = "tar+gzip"
	EncodingTarXz   = "tar+xz"
	EncodingTarZstd = "tar+zstd"
	EncodingZip     = "zip"
)

type archiveEntry struct {
	path string
	body []byte
	mode os.FileMode
}

// DetectEncoding guesses the artifact encoding from its file name.
func DetectEncoding(name string) (string, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return EncodingTarGzip, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return EncodingTarXz, nil
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return EncodingTarZstd, nil
	case strings.HasSuffix(lower, ".zip"):
		return EncodingZip, nil
	default:
		return "", fmt.Errorf("cannot detect archive encoding of %q", name)
	}
}

// Extract unpacks artifact into destDir, dropping the first strip path
// components of every entry. Entries that would leave destDir are rejected.
func Extract(artifact []byte, encoding, destDir string, strip int) ([]string, error) {
	entries, err := readArchiveEntries(artifact, encoding)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, entry := range entries {
		rel, ok := stripComponents(entry.path, strip)
		if !ok {
			continue
		}
		target, err := resolveArchiveTargetPath(destDir, rel)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		mode := entry.mode
		if mode == 0 {
			mode = 0o644
		}
		if err := os.WriteFile(target, entry.body, mode); err != nil {
			return nil, err
		}
		written = append(written, rel)
	}
	return written, nil
}

func stripComponents(p string, n int) (string, bool) {
	parts := strings.Split(p, "/")
	if len(parts) <= n {
		return "", false
	}
	return strings.Join(parts[n:], "/"), true
}

func readArchiveEntries(content []byte, encoding string) ([]archiveEntry, error) {
	if encoding == EncodingZip {
		return readZipEntries(content)
	}
	reader, closeFn, err := openTarStream(content, encoding)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	tarReader := tar.NewReader(reader)
	var entries []archiveEntry
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !header.FileInfo().Mode().IsRegular() {
			continue
		}
		entryPath, err := normalizeArchiveEntryName(header.Name)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(tarReader)
		if err != nil {
			return nil, err
		}
		entries = append(entries, archiveEntry{
			path: entryPath,
			body: body,
			mode: header.FileInfo().Mode().Perm(),
		})
	}
	return entries, nil
}

func readZipEntries(content []byte) ([]archiveEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	var entries []archiveEntry
	for _, f := range zr.File {
		if !f.Mode().IsRegular() {
			continue
		}
		entryPath, err := normalizeArchiveEntryName(f.Name)
		if err != nil {
			return nil, err
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		entries = append(entries, archiveEntry{path: entryPath, body: body, mode: f.Mode().Perm()})
	}
	return entries, nil
}

func openTarStream(content []byte, encoding string) (io.Reader, func(), error) {
	var baseReader io.Reader = bytes.NewReader(content)
	switch encoding {
	case EncodingTarGzip:
		gzipReader, err := gzip.NewReader(baseReader)
		if err != nil {
			return nil, nil, err
		}
		return gzipReader, func() { gzipReader.Close() }, nil
	case EncodingTarXz:
		xzReader, err := xz.NewReader(baseReader)
		if err != nil {
			return nil, nil, err
		}
		return xzReader, func() {}, nil
	case EncodingTarZstd:
		decoder, err := zstd.NewReader(baseReader)
		if err != nil {
			return nil, nil, err
		}
		return decoder, decoder.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported archive encoding %q", encoding)
	}
}

func normalizeArchiveEntryName(value string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(value))
	cleaned = strings.TrimPrefix(cleaned, "."+string(filepath.Separator))
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("invalid archive entry path %q", value)
	}
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry path escapes root: %q", value)
	}
	return filepath.ToSlash(cleaned), nil
}

func resolveArchiveTargetPath(root, rel string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(rel))
	cleanRoot := filepath.Clean(root)
	cleanTarget := filepath.Clean(target)
	if cleanTarget != cleanRoot && !strings.HasPrefix(cleanTarget, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry path escapes target root: %q", rel)
	}
	return target, nil
}
