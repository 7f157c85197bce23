package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP unpacks every file of the archive below destDir and returns
// the written paths in archive order. Entries whose name would leave
// destDir abort the extraction.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer archive.Close() //nolint:errcheck

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "zip: create destination")
	}
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open destination")
	}
	defer root.Close() //nolint:errcheck

	var written []string
	for _, entry := range archive.File {
		name := filepath.FromSlash(entry.Name)
		if !filepath.IsLocal(name) {
			return written, eris.Errorf("zip: illegal path %q (zip slip attempt)", entry.Name)
		}
		if entry.FileInfo().IsDir() {
			if err := root.MkdirAll(name, 0o755); err != nil {
				return written, eris.Wrapf(err, "zip: create %s", entry.Name)
			}
			continue
		}
		if err := copyEntry(root, name, entry); err != nil {
			return written, err
		}
		written = append(written, filepath.Join(destDir, name))
	}
	return written, nil
}

// FindByExt returns the first path whose extension matches one of exts,
// trying the extensions in order.
func FindByExt(paths []string, exts ...string) (string, bool) {
	for _, ext := range exts {
		for _, p := range paths {
			if strings.EqualFold(filepath.Ext(p), ext) {
				return p, true
			}
		}
	}
	return "", false
}

func copyEntry(root *os.Root, name string, entry *zip.File) error {
	if dir := filepath.Dir(name); dir != "." {
		if err := root.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "zip: create %s", dir)
		}
	}

	src, err := entry.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open entry %s", entry.Name)
	}
	defer src.Close() //nolint:errcheck

	dst, err := root.Create(name)
	if err != nil {
		return eris.Wrapf(err, "zip: create %s", entry.Name)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return eris.Wrapf(err, "zip: write %s", entry.Name)
	}
	return eris.Wrapf(dst.Close(), "zip: close %s", entry.Name)
}
