// Package blob stores archive bytes under content derived paths.
package blob

import (
	"context"
	"fmt"
	"io"
)

// Store is a content addressed blob store. Writes to an existing path are
// allowed and must be idempotent for identical content.
type Store interface {
	// Bucket names the container blobs are stored in.
	Bucket() string
	Put(ctx context.Context, path string, r io.Reader, size int64) error
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// ErrBlobNotFound is returned when no blob is stored at a path.
type ErrBlobNotFound struct {
	Bucket string
	Path   string
}

func NewErrBlobNotFound(bucket, path string) ErrBlobNotFound {
	return ErrBlobNotFound{Bucket: bucket, Path: path}
}

func (e ErrBlobNotFound) Error() string {
	return fmt.Sprintf("blob not found: %s/%s", e.Bucket, e.Path)
}

// ArchivePath returns the blob path of an archive with the given content hash.
func ArchivePath(hash string) string {
	if len(hash) < 4 {
		return "omex/" + hash
	}
	return fmt.Sprintf("omex/%s/%s", hash[len(hash)-2:], hash)
}
