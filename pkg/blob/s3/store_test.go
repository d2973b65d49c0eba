//go:build unit || !integration

package s3

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

func testProvider() *ClientProvider {
	return NewClientProvider(ClientProviderParams{AWSConfig: aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("key", "secret", ""),
	}})
}

func TestClientProviderCachesClients(t *testing.T) {
	provider := testProvider()
	require.True(t, provider.IsInstalled())

	a := provider.GetClient("http://localhost:9000", "eu-west-1")
	b := provider.GetClient("http://localhost:9000", "eu-west-1")
	c := provider.GetClient("", "eu-west-1")
	require.Same(t, a, b)
	require.NotSame(t, a, c)
	require.Equal(t, "eu-west-1", a.Region)
}

func TestNewStoreRequiresBucket(t *testing.T) {
	_, err := NewStore(StoreParams{ClientProvider: testProvider()})
	require.Error(t, err)

	s, err := NewStore(StoreParams{ClientProvider: testProvider(), Bucket: "archives"})
	require.NoError(t, err)
	require.Equal(t, "archives", s.Bucket())
}

func TestIsNotFound(t *testing.T) {
	require.True(t, isNotFound(&types.NoSuchKey{}))
	require.True(t, isNotFound(&types.NotFound{}))
	require.False(t, isNotFound(context.Canceled))
}

func TestHasValidCredentials(t *testing.T) {
	require.False(t, HasValidCredentials(aws.Config{}))
}
