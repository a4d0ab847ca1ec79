package reports

import (
	"context"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// ArchiveCache keeps rendered archives of finished downloads in a blob bucket.
// Only terminal records are cached since their contents can no longer change.
type ArchiveCache struct {
	bucket *blob.Bucket
	prefix string
}

// OpenArchiveCache opens the bucket at url (e.g. mem://, file:///var/cache/reports).
// An empty url disables caching and returns a nil cache, which is safe to use.
func OpenArchiveCache(ctx context.Context, url string) (*ArchiveCache, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}
	bkt, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open archive bucket: %w", err)
	}
	return &ArchiveCache{bucket: bkt, prefix: "archives/"}, nil
}

func (c *ArchiveCache) key(id uint) string {
	return fmt.Sprintf("%s%d.zip", c.prefix, id)
}

// Get returns the cached archive for id. A miss is not an error.
func (c *ArchiveCache) Get(ctx context.Context, id uint) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	data, err := c.bucket.ReadAll(ctx, c.key(id))
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *ArchiveCache) Put(ctx context.Context, id uint, data []byte) error {
	if c == nil {
		return nil
	}
	return c.bucket.WriteAll(ctx, c.key(id), data, &blob.WriterOptions{ContentType: "application/zip"})
}

func (c *ArchiveCache) Close() error {
	if c == nil {
		return nil
	}
	return c.bucket.Close()
}
