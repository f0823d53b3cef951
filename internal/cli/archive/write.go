package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Rules decides which files are left out of an archive.
type Rules struct {
	Extensions []string
	Files      []string
	Dirs       []string
}

// Skips reports whether a file at rel (slash separated, relative to the
// archived directory) is excluded.
func (r Rules) Skips(rel string) bool {
	name := path.Base(rel)
	for _, ext := range r.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	if slices.Contains(r.Files, name) {
		return true
	}
	dir := path.Dir(rel)
	if dir == "." {
		return false
	}
	for _, segment := range strings.Split(dir, "/") {
		if slices.Contains(r.Dirs, segment) {
			return true
		}
	}
	return false
}

// Result describes a written archive.
type Result struct {
	Path    string
	Entries []string
}

// Write stores every regular file below sourceDir that the rules keep, DEFLATE
// compressed, under rootName/. An archive without entries is still written.
func Write(sourceDir, destFile, rootName string, rules Rules) (*Result, error) {
	absSource, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, err
	}
	absDest, err := filepath.Abs(destFile)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(absDest), 0o755); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(absDest), "."+filepath.Base(absDest)+".*.tmp")
	if err != nil {
		return nil, err
	}
	res := &Result{Path: destFile}
	if err := writeZip(tmp, absSource, rootName, rules, res, absDest, tmp.Name()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write archive %s: %w", destFile, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := os.Rename(tmp.Name(), absDest); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	return res, nil
}

func writeZip(out io.Writer, sourceDir, rootName string, rules Rules, res *Result, ignore ...string) error {
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	err := filepath.WalkDir(sourceDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() || slices.Contains(ignore, p) {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rules.Skips(rel) {
			return nil
		}
		entry := path.Join(rootName, rel)
		if err := addFile(zw, p, entry, d); err != nil {
			return err
		}
		res.Entries = append(res.Entries, entry)
		return nil
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, src, entry string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = entry
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
