package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"deepscan/internal/fileutil"
)

// Local archives into a directory tree.
type Local struct {
	dir string
}

// NewLocal returns a sink rooted at dir.
func NewLocal(dir string) *Local { return &Local{dir: dir} }

func (l *Local) Name() string { return "local" }

func (l *Local) Store(ctx context.Context, src string, meta Meta) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	dst := filepath.Join(l.dir, filepath.FromSlash(objectKey(meta)))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Location{}, fmt.Errorf("create archive directory: %w", err)
	}
	digest, err := fileutil.CopyFileVerified(src, dst)
	if err != nil {
		return Location{}, fmt.Errorf("archive copy: %w", err)
	}
	return Location{URI: dst, SHA256: digest}, nil
}
