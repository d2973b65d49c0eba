//go:build unit || !integration

package local_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bacalhau-project/simverify/pkg/blob"
	"github.com/bacalhau-project/simverify/pkg/blob/local"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s, err := local.NewStore(t.TempDir())
	require.NoError(t, err)

	path := blob.ArchivePath("bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku")
	exists, err := s.Exists(ctx, path)
	require.NoError(t, err)
	require.False(t, exists)

	_, err = s.Get(ctx, path)
	require.ErrorAs(t, err, &blob.ErrBlobNotFound{})

	content := []byte("PK\x03\x04 archive")
	require.NoError(t, s.Put(ctx, path, bytes.NewReader(content), int64(len(content))))
	require.NoError(t, s.Put(ctx, path, bytes.NewReader(content), int64(len(content))))

	exists, err = s.Exists(ctx, path)
	require.NoError(t, err)
	require.True(t, exists)

	got, err := s.Get(ctx, path)
	require.NoError(t, err)
	require.Equal(t, content, got)

	require.Error(t, s.Put(ctx, "../escape", bytes.NewReader(content), 1))
}

func TestArchivePath(t *testing.T) {
	require.Equal(t, "omex/ku/bafkku", blob.ArchivePath("bafkku"))
	require.Equal(t, "omex/abc", blob.ArchivePath("abc"))
}
