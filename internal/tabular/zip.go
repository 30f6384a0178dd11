package tabular

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIPMatching extracts every file whose entry name satisfies match
// into destDir, flattened to its base name. Returns the extracted paths in
// archive order.
func ExtractZIPMatching(zipPath, destDir string, match func(name string) bool) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open archive %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !match(f.Name) {
			continue
		}
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		extracted = append(extracted, path)
	}
	return extracted, nil
}

// extractZIPEntry writes f to destDir under its base name.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	base := filepath.Base(filepath.FromSlash(f.Name))
	if base == "." || base == ".." || strings.ContainsAny(base, `/\`) {
		return "", eris.Errorf("zip: illegal entry name %q", f.Name)
	}
	destPath := filepath.Join(destDir, base)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create destination")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrapf(err, "zip: write %s", destPath)
	}
	return destPath, nil
}
