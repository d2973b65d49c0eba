// Package contentcache deduplicates archive uploads by content hash and
// simulation runs by (archive hash, simulator digest, cache buster).
package contentcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/simverify/pkg/blob"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/store"
)

type Params struct {
	Store store.Store
	Blob  blob.Store
	// MaxArchiveSize rejects larger archives. Zero disables the limit.
	MaxArchiveSize datasize.ByteSize
}

// Cache is the content addressed cache shared by every run controller.
type Cache struct {
	store          store.Store
	blob           blob.Store
	maxArchiveSize datasize.ByteSize
}

func New(params Params) *Cache {
	return &Cache{
		store:          params.Store,
		blob:           params.Blob,
		maxArchiveSize: params.MaxArchiveSize,
	}
}

// ContentHash returns the content identifier of archive bytes: a CIDv1 with
// the raw codec over a sha2-256 multihash.
func ContentHash(content []byte) (string, error) {
	mh, err := multihash.Sum(content, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// LookupOrCreateArchive stores the archive once per distinct content. When
// the content is already known the existing record is returned unchanged and
// nothing is written.
func (c *Cache) LookupOrCreateArchive(ctx context.Context, filename string, content []byte) (models.Archive, error) {
	size := datasize.ByteSize(len(content))
	if c.maxArchiveSize > 0 && size > c.maxArchiveSize {
		return models.Archive{}, NewErrArchiveTooLarge(size, c.maxArchiveSize)
	}
	hash, err := ContentHash(content)
	if err != nil {
		return models.Archive{}, fmt.Errorf("hashing archive: %w", err)
	}

	existing, err := c.store.GetArchive(ctx, hash)
	if err == nil {
		log.Ctx(ctx).Debug().Str("hash", hash).Msg("archive already stored, skipping upload")
		archiveUploads.Inc(ctx, deduplicated(true))
		return existing, nil
	}
	if !errors.As(err, &store.ErrArchiveNotFound{}) {
		return models.Archive{}, err
	}

	archive := models.Archive{
		Hash:     hash,
		Filename: filename,
		Bucket:   c.blob.Bucket(),
		Path:     blob.ArchivePath(hash),
		Size:     int64(len(content)),
	}
	if err = c.blob.Put(ctx, archive.Path, bytes.NewReader(content), archive.Size); err != nil {
		return models.Archive{}, fmt.Errorf("uploading archive %s: %w", hash, err)
	}
	if err = c.store.CreateArchive(ctx, archive); err != nil {
		if errors.As(err, &store.ErrArchiveAlreadyExists{}) {
			// a concurrent upload of the same content won
			archiveUploads.Inc(ctx, deduplicated(true))
			return c.store.GetArchive(ctx, hash)
		}
		return models.Archive{}, err
	}
	log.Ctx(ctx).Info().Str("hash", hash).Int64("size", archive.Size).Msg("stored new archive")
	archiveUploads.Inc(ctx, deduplicated(false))
	return c.store.GetArchive(ctx, hash)
}

// GetArchive returns the archive record with the given hash.
func (c *Cache) GetArchive(ctx context.Context, hash string) (models.Archive, error) {
	return c.store.GetArchive(ctx, hash)
}

// GetArchiveContent downloads the bytes of a stored archive.
func (c *Cache) GetArchiveContent(ctx context.Context, archive models.Archive) ([]byte, error) {
	content, err := c.blob.Get(ctx, archive.Path)
	if err != nil {
		return nil, fmt.Errorf("downloading archive %s: %w", archive.Hash, err)
	}
	return content, nil
}

// LookupRun returns the run record stored under key, regardless of its
// status, or nil if there is none. Callers check RunRecord.IsUsable before
// serving it as a result. More than one record under a key is a
// consistency fault reported as ErrCacheInconsistent.
func (c *Cache) LookupRun(ctx context.Context, key models.RunKey) (*models.RunRecord, error) {
	runs, err := c.store.FindRuns(ctx, key)
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		runLookups.Inc(ctx, lookupResult("miss"))
		return nil, nil
	case 1:
		runLookups.Inc(ctx, lookupResult("hit"))
		return &runs[0], nil
	default:
		runLookups.Inc(ctx, lookupResult("inconsistent"))
		log.Ctx(ctx).Error().
			Str("key", key.String()).
			Int("count", len(runs)).
			Msg("multiple cached runs share one key")
		return nil, NewErrCacheInconsistent(key, len(runs))
	}
}

// InsertRun stores a new run record. It fails with store.ErrRunAlreadyExists
// if another record holds the key.
func (c *Cache) InsertRun(ctx context.Context, run models.RunRecord) (models.RunRecord, error) {
	return c.store.CreateRun(ctx, run)
}

// UpdateRun records a status change of a non-terminal run.
func (c *Cache) UpdateRun(ctx context.Context, key models.RunKey, newValues models.RunRecord) (models.RunRecord, error) {
	return c.store.UpdateRun(ctx, store.UpdateRunRequest{Key: key, NewValues: newValues})
}

// GetRunByRunID returns the cached record of an executor run id.
func (c *Cache) GetRunByRunID(ctx context.Context, runID string) (models.RunRecord, error) {
	return c.store.GetRunByRunID(ctx, runID)
}

// EvictRun drops the record under key so the run can be executed again.
func (c *Cache) EvictRun(ctx context.Context, key models.RunKey) error {
	log.Ctx(ctx).Info().Str("key", key.String()).Msg("evicting cached run")
	return c.store.DeleteRun(ctx, key)
}
