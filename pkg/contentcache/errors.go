package contentcache

import (
	"fmt"

	"github.com/c2h5oh/datasize"

	"github.com/bacalhau-project/simverify/pkg/models"
)

// ErrCacheInconsistent is returned when more than one run record is stored
// under a single cache key.
type ErrCacheInconsistent struct {
	Key   models.RunKey
	Count int
}

func NewErrCacheInconsistent(key models.RunKey, count int) ErrCacheInconsistent {
	return ErrCacheInconsistent{Key: key, Count: count}
}

func (e ErrCacheInconsistent) Error() string {
	return fmt.Sprintf("cache inconsistency: %d run records share key %s", e.Count, e.Key)
}

// ErrArchiveTooLarge is returned when an archive exceeds the configured limit.
type ErrArchiveTooLarge struct {
	Size  datasize.ByteSize
	Limit datasize.ByteSize
}

func NewErrArchiveTooLarge(size, limit datasize.ByteSize) ErrArchiveTooLarge {
	return ErrArchiveTooLarge{Size: size, Limit: limit}
}

func (e ErrArchiveTooLarge) Error() string {
	return fmt.Sprintf("archive of %s exceeds the limit of %s", e.Size.HumanReadable(), e.Limit.HumanReadable())
}
