// Package zip packs job artifacts into a single downloadable archive.
package zip

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

// Asset is one file of a bundle. Filename is a slash-separated relative path.
type Asset struct {
	Filename string
	Data     []byte
	Modified time.Time
}

// ArchiveAssets writes assets into an in-memory zip ordered by filename.
// Media that is already compressed is stored as is.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	sorted := append([]Asset(nil), assets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]struct{}, len(sorted))
	for _, asset := range sorted {
		name := path.Clean(strings.TrimLeft(asset.Filename, "/"))
		if name == "." || name == ".." || strings.HasPrefix(name, "../") {
			return nil, fmt.Errorf("zip: invalid filename %q", asset.Filename)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("zip: duplicate filename %q", name)
		}
		seen[name] = struct{}{}

		hdr := &zip.FileHeader{Name: name, Method: method(name), Modified: asset.Modified}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	if len(seen) == 0 {
		return nil, errors.New("zip: no assets")
	}
	return buf.Bytes(), nil
}

func method(name string) uint16 {
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".mp4", ".webp":
		return zip.Store
	default:
		return zip.Deflate
	}
}
