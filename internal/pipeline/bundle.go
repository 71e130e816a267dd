package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"assetgen/internal/domain"
	"assetgen/pkg/zip"
)

// Bundle zips every artifact of a terminal job. Jobs still running fail with
// domain.ErrResultNotReady.
func (o *Orchestrator) Bundle(ctx context.Context, id string) ([]byte, error) {
	if _, err := o.Result(ctx, id); err != nil {
		return nil, err
	}
	dir, err := o.files.Path(id)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}

	var assets []zip.Asset
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		// Skip in-flight temp files and concat lists.
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() && p != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		assets = append(assets, zip.Asset{
			Filename: filepath.ToSlash(filepath.Join(id, rel)),
			Data:     data,
			Modified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect bundle %s: %w", id, err)
	}
	return zip.ArchiveAssets(assets)
}
