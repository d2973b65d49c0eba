package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/simverify/pkg/blob"
)

type StoreParams struct {
	ClientProvider *ClientProvider
	Bucket         string
	Endpoint       string
	Region         string
}

// Store keeps blobs as objects of a single bucket.
type Store struct {
	client *ClientWrapper
	bucket string
}

func NewStore(params StoreParams) (*Store, error) {
	if params.Bucket == "" {
		return nil, errors.New("s3 blob store requires a bucket")
	}
	if params.ClientProvider == nil {
		return nil, errors.New("s3 blob store requires a client provider")
	}
	if !params.ClientProvider.IsInstalled() {
		log.Warn().Str("bucket", params.Bucket).Msg("no AWS credentials found, s3 requests will be anonymous")
	}
	return &Store{
		client: params.ClientProvider.GetClient(params.Endpoint, params.Region),
		bucket: params.Bucket,
	}, nil
}

func (s *Store) Bucket() string {
	return s.bucket
}

func (s *Store) Put(ctx context.Context, path string, r io.Reader, size int64) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
		Body:   r,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.Uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", s.bucket, path, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.client.Downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blob.NewErrBlobNotFound(s.bucket, path)
		}
		return nil, fmt.Errorf("downloading s3://%s/%s: %w", s.bucket, path, err)
	}
	return buf.Bytes(), nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.S3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking s3://%s/%s: %w", s.bucket, path, err)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// compile time check whether the Store implements the blob.Store interface.
var _ blob.Store = (*Store)(nil)
