//go:build unit || !integration

package contentcache_test

import (
	"context"
	"io"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/simverify/pkg/blob"
	"github.com/bacalhau-project/simverify/pkg/blob/local"
	"github.com/bacalhau-project/simverify/pkg/contentcache"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/store"
	"github.com/bacalhau-project/simverify/pkg/store/inmemory"
)

// countingBlob counts writes to the wrapped blob store.
type countingBlob struct {
	blob.Store
	puts int
}

func (b *countingBlob) Put(ctx context.Context, path string, r io.Reader, size int64) error {
	b.puts++
	return b.Store.Put(ctx, path, r, size)
}

// countingStore counts archive writes to the wrapped store.
type countingStore struct {
	store.Store
	archiveWrites int
}

func (s *countingStore) CreateArchive(ctx context.Context, a models.Archive) error {
	s.archiveWrites++
	return s.Store.CreateArchive(ctx, a)
}

// duplicatedRuns reports every run twice, as a store without a unique key would.
type duplicatedRuns struct {
	store.Store
}

func (s duplicatedRuns) FindRuns(ctx context.Context, key models.RunKey) ([]models.RunRecord, error) {
	runs, err := s.Store.FindRuns(ctx, key)
	return append(runs, runs...), err
}

type ContentCacheTestSuite struct {
	suite.Suite
	ctx   context.Context
	blob  *countingBlob
	store *countingStore
	cache *contentcache.Cache
}

func TestContentCacheTestSuite(t *testing.T) {
	suite.Run(t, new(ContentCacheTestSuite))
}

func (s *ContentCacheTestSuite) SetupTest() {
	s.ctx = context.Background()
	localStore, err := local.NewStore(s.T().TempDir())
	s.Require().NoError(err)
	s.blob = &countingBlob{Store: localStore}
	s.store = &countingStore{Store: inmemory.NewInMemoryStore()}
	s.cache = contentcache.New(contentcache.Params{
		Store:          s.store,
		Blob:           s.blob,
		MaxArchiveSize: 1 * datasize.KB,
	})
}

func (s *ContentCacheTestSuite) TestContentHashIsStable() {
	a, err := contentcache.ContentHash([]byte("model"))
	s.Require().NoError(err)
	b, err := contentcache.ContentHash([]byte("model"))
	s.Require().NoError(err)
	c, err := contentcache.ContentHash([]byte("other model"))
	s.Require().NoError(err)
	s.Equal(a, b)
	s.NotEqual(a, c)
	s.Contains(a, "bafk")
}

func (s *ContentCacheTestSuite) TestArchiveDeduplication() {
	content := []byte("PK\x03\x04 sbml model")

	first, err := s.cache.LookupOrCreateArchive(s.ctx, "model.omex", content)
	s.Require().NoError(err)
	s.Equal(1, s.blob.puts)
	s.Equal(1, s.store.archiveWrites)

	second, err := s.cache.LookupOrCreateArchive(s.ctx, "renamed.omex", content)
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal("model.omex", second.Filename)
	s.Equal(1, s.blob.puts)
	s.Equal(1, s.store.archiveWrites)

	stored, err := s.cache.GetArchiveContent(s.ctx, second)
	s.Require().NoError(err)
	s.Equal(content, stored)
}

func (s *ContentCacheTestSuite) TestArchiveTooLarge() {
	_, err := s.cache.LookupOrCreateArchive(s.ctx, "big.omex", make([]byte, 2048))
	s.ErrorAs(err, &contentcache.ErrArchiveTooLarge{})
	s.Zero(s.blob.puts)
}

func (s *ContentCacheTestSuite) testRun(status models.RunStatus) models.RunRecord {
	sim := models.Simulator{ID: "copasi", Version: "4.40", Digest: digest.FromString("copasi")}
	return models.RunRecord{
		Key:       models.RunKey{ArchiveHash: "bafk", SimulatorDigest: sim.Digest.String()},
		Simulator: sim,
		RunID:     "run-1",
		Status:    status,
	}
}

func (s *ContentCacheTestSuite) TestLookupRun() {
	run := s.testRun(models.RunStatusRunning)

	found, err := s.cache.LookupRun(s.ctx, run.Key)
	s.Require().NoError(err)
	s.Nil(found)

	_, err = s.cache.InsertRun(s.ctx, run)
	s.Require().NoError(err)
	_, err = s.cache.InsertRun(s.ctx, run)
	s.ErrorAs(err, &store.ErrRunAlreadyExists{})

	found, err = s.cache.LookupRun(s.ctx, run.Key)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal("run-1", found.RunID)

	s.False(found.IsUsable())

	_, err = s.cache.UpdateRun(s.ctx, run.Key, models.RunRecord{
		Status:  models.RunStatusSucceeded,
		Outputs: &models.OutputMetadata{Datasets: []models.DatasetMetadata{{Name: "report"}}},
	})
	s.Require().NoError(err)

	found, err = s.cache.LookupRun(s.ctx, run.Key)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.True(found.IsUsable())
	s.Equal(models.RunStatusSucceeded, found.Status)

	byID, err := s.cache.GetRunByRunID(s.ctx, "run-1")
	s.Require().NoError(err)
	s.Equal(run.Key, byID.Key)

	s.Require().NoError(s.cache.EvictRun(s.ctx, run.Key))
	found, err = s.cache.LookupRun(s.ctx, run.Key)
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *ContentCacheTestSuite) TestLookupRunInconsistent() {
	underlying := inmemory.NewInMemoryStore()
	c := contentcache.New(contentcache.Params{Store: duplicatedRuns{Store: underlying}, Blob: s.blob})
	run := s.testRun(models.RunStatusSucceeded)
	_, err := c.InsertRun(s.ctx, run)
	s.Require().NoError(err)

	_, err = c.LookupRun(s.ctx, run.Key)
	var inconsistent contentcache.ErrCacheInconsistent
	s.Require().ErrorAs(err, &inconsistent)
	s.Equal(2, inconsistent.Count)
}
