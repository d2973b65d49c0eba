package node

import (
	"context"
	"fmt"

	"github.com/bacalhau-project/simverify/pkg/blob"
	"github.com/bacalhau-project/simverify/pkg/blob/local"
	"github.com/bacalhau-project/simverify/pkg/blob/s3"
	"github.com/bacalhau-project/simverify/pkg/config/types"
	"github.com/bacalhau-project/simverify/pkg/simclient"
	"github.com/bacalhau-project/simverify/pkg/store"
	"github.com/bacalhau-project/simverify/pkg/store/gormstore"
	"github.com/bacalhau-project/simverify/pkg/store/inmemory"
)

// Services bundles the remote services a node talks to.
type Services interface {
	simclient.Executor
	simclient.ResultsService
	simclient.Catalog
}

// StoreFactory builds the store of a node.
type StoreFactory interface {
	Get(ctx context.Context, cfg types.StoreConfig) (store.Store, error)
}

// BlobStoreFactory builds the blob store archives are kept in.
type BlobStoreFactory interface {
	Get(ctx context.Context, cfg types.BlobConfig) (blob.Store, error)
}

// ServicesFactory builds the clients of the remote services.
type ServicesFactory interface {
	Get(ctx context.Context, cfg types.ServicesConfig) (Services, error)
}

type StoreFactoryFunc func(ctx context.Context, cfg types.StoreConfig) (store.Store, error)

func (f StoreFactoryFunc) Get(ctx context.Context, cfg types.StoreConfig) (store.Store, error) {
	return f(ctx, cfg)
}

type BlobStoreFactoryFunc func(ctx context.Context, cfg types.BlobConfig) (blob.Store, error)

func (f BlobStoreFactoryFunc) Get(ctx context.Context, cfg types.BlobConfig) (blob.Store, error) {
	return f(ctx, cfg)
}

type ServicesFactoryFunc func(ctx context.Context, cfg types.ServicesConfig) (Services, error)

func (f ServicesFactoryFunc) Get(ctx context.Context, cfg types.ServicesConfig) (Services, error) {
	return f(ctx, cfg)
}

// NodeDependencyInjector lazily builds the dependencies of a node. Tests
// swap single factories for fakes.
type NodeDependencyInjector struct {
	StoreFactory     StoreFactory
	BlobStoreFactory BlobStoreFactory
	ServicesFactory  ServicesFactory
}

func NewStandardNodeDependencyInjector() NodeDependencyInjector {
	return NodeDependencyInjector{
		StoreFactory:     NewStandardStoreFactory(),
		BlobStoreFactory: NewStandardBlobStoreFactory(),
		ServicesFactory:  NewStandardServicesFactory(),
	}
}

func NewStandardStoreFactory() StoreFactory {
	return StoreFactoryFunc(func(_ context.Context, cfg types.StoreConfig) (store.Store, error) {
		if cfg.Type == types.StoreTypeInMemory {
			return inmemory.NewInMemoryStore(), nil
		}
		dialector, err := gormstore.OpenDialector(cfg.Type, cfg.DSN)
		if err != nil {
			return nil, err
		}
		s, err := gormstore.New(
			gormstore.WithDialect(dialector),
			gormstore.WithMaxOpenConns(cfg.MaxOpenConns),
			gormstore.WithMaxIdleConns(cfg.MaxIdleConns),
		)
		if err != nil {
			return nil, fmt.Errorf("opening %s store: %w", cfg.Type, err)
		}
		return s, nil
	})
}

func NewStandardBlobStoreFactory() BlobStoreFactory {
	return BlobStoreFactoryFunc(func(ctx context.Context, cfg types.BlobConfig) (blob.Store, error) {
		switch cfg.Type {
		case types.BlobTypeLocal:
			s, err := local.NewStore(cfg.Path)
			if err != nil {
				return nil, err
			}
			return s, nil
		case types.BlobTypeS3:
			awsConfig, err := s3.DefaultAWSConfig(ctx, s3.AWSConfigParams{
				Region:          cfg.S3.Region,
				AccessKeyID:     cfg.S3.AccessKeyID,
				SecretAccessKey: cfg.S3.SecretAccessKey,
			})
			if err != nil {
				return nil, fmt.Errorf("loading aws config: %w", err)
			}
			s, err := s3.NewStore(s3.StoreParams{
				ClientProvider: s3.NewClientProvider(s3.ClientProviderParams{AWSConfig: awsConfig}),
				Bucket:         cfg.S3.Bucket,
				Endpoint:       cfg.S3.Endpoint,
				Region:         cfg.S3.Region,
			})
			if err != nil {
				return nil, err
			}
			return s, nil
		default:
			return nil, fmt.Errorf("unsupported blob store type %q", cfg.Type)
		}
	})
}

func NewStandardServicesFactory() ServicesFactory {
	return ServicesFactoryFunc(func(_ context.Context, cfg types.ServicesConfig) (Services, error) {
		client, err := simclient.NewClient(simclient.ClientParams{
			ExecutorURL:    cfg.ExecutorURL,
			ResultsURL:     cfg.ResultsURL,
			CatalogURL:     cfg.CatalogURL,
			RetryMax:       cfg.RetryMax,
			RequestTimeout: cfg.RequestTimeout.AsTimeDuration(),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}
