package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS archives into a Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS connects with application default credentials unless opts say
// otherwise.
func NewGCS(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCS, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("archive: gcs bucket required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: gcs client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (g *GCS) Name() string { return "gcs" }

func (g *GCS) Store(ctx context.Context, src string, meta Meta) (Location, error) {
	in, err := os.Open(src)
	if err != nil {
		return Location{}, fmt.Errorf("open archive source: %w", err)
	}
	defer in.Close()

	key := objectKey(meta)
	if g.prefix != "" {
		key = path.Join(g.prefix, key)
	}
	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(uploadCtx)
	if meta.MIME != "" {
		w.ContentType = meta.MIME
	}
	w.Metadata = map[string]string{
		"request_id": meta.RequestID,
		"filename":   meta.Filename,
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(w, hasher), in); err != nil {
		cancel() // abandon the partial object
		_ = w.Close()
		return Location{}, fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return Location{}, fmt.Errorf("finalize %s: %w", key, err)
	}
	return Location{
		URI:    "gs://" + g.bucket + "/" + key,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Close releases the client.
func (g *GCS) Close() error { return g.client.Close() }
