package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/simverify/pkg/cache/basic"
	"github.com/bacalhau-project/simverify/pkg/catalog"
	"github.com/bacalhau-project/simverify/pkg/config/types"
	"github.com/bacalhau-project/simverify/pkg/contentcache"
	"github.com/bacalhau-project/simverify/pkg/controller"
	"github.com/bacalhau-project/simverify/pkg/lib/backoff"
	"github.com/bacalhau-project/simverify/pkg/lib/validate"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/orchestrator"
	"github.com/bacalhau-project/simverify/pkg/store"
	"github.com/bacalhau-project/simverify/pkg/system"
)

// Node configuration
type NodeConfig struct {
	Config             types.SimverifyConfig
	CleanupManager     *system.CleanupManager
	DependencyInjector NodeDependencyInjector
	// Clock is shared by every component. The system clock is used when nil.
	Clock clock.Clock
}

func (c *NodeConfig) Validate() error {
	return errors.Join(
		validate.NotNil(c.CleanupManager, "cleanup manager cannot be nil"),
		validate.NotNil(c.DependencyInjector.StoreFactory, "store factory cannot be nil"),
		validate.NotNil(c.DependencyInjector.BlobStoreFactory, "blob store factory cannot be nil"),
		validate.NotNil(c.DependencyInjector.ServicesFactory, "services factory cannot be nil"),
		c.Config.Orchestrator.Validate(),
		c.Config.Controller.Validate(),
	)
}

// Node runs the verification workers of one process. Gateways embed the
// node and call the orchestrator directly.
type Node struct {
	Orchestrator *orchestrator.Orchestrator
	Store        store.Store
	Cache        *contentcache.Cache
	Workers      []*orchestrator.Worker
	Housekeeping *orchestrator.Housekeeping
}

// NewNode builds every component of a node. Resources are released through
// the cleanup manager of the config.
func NewNode(ctx context.Context, config NodeConfig) (*Node, error) {
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("error validating node config: %w", err)
	}
	cfg := config.Config

	jobStore, err := config.DependencyInjector.StoreFactory.Get(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	config.CleanupManager.RegisterCallbackWithContext(jobStore.Close)

	blobStore, err := config.DependencyInjector.BlobStoreFactory.Get(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	services, err := config.DependencyInjector.ServicesFactory.Get(ctx, cfg.Services)
	if err != nil {
		return nil, fmt.Errorf("creating service clients: %w", err)
	}

	listing, err := basic.NewCache[[]models.Simulator](basic.WithClock(config.Clock))
	if err != nil {
		return nil, fmt.Errorf("creating catalog cache: %w", err)
	}
	config.CleanupManager.RegisterCallback(func() error {
		listing.Close()
		return nil
	})

	cache := contentcache.New(contentcache.Params{
		Store:          jobStore,
		Blob:           blobStore,
		MaxArchiveSize: cfg.Blob.MaxArchiveSize,
	})

	orch, err := orchestrator.NewOrchestrator(orchestrator.OrchestratorParams{
		Store:   jobStore,
		Cache:   cache,
		Results: services,
		ControllerParams: controller.Params{
			Cache: cache,
			Resolver: catalog.NewResolver(catalog.ResolverParams{
				Catalog: services,
				Cache:   listing,
				TTL:     cfg.Catalog.TTL.AsTimeDuration(),
			}),
			Executor: services,
			Results:  services,
			Clock:    config.Clock,
			Backoff: backoff.NewExponential(
				cfg.Controller.BackoffBase.AsTimeDuration(),
				cfg.Controller.BackoffMax.AsTimeDuration(),
			),
			Timeouts: controller.Timeouts{
				PollInterval: cfg.Controller.PollInterval.AsTimeDuration(),
				Submit:       cfg.Controller.SubmitTimeout.AsTimeDuration(),
				Poll:         cfg.Controller.PollTimeout.AsTimeDuration(),
				Metadata:     cfg.Controller.MetadataTimeout.AsTimeDuration(),
				Execution:    cfg.Controller.ExecutionTimeout.AsTimeDuration(),
			},
			MaxTransientAttempts: cfg.Controller.MaxTransientAttempts,
		},
		MaxConcurrentControllers: cfg.Orchestrator.MaxConcurrentControllers,
		HeartbeatInterval:        cfg.Orchestrator.HeartbeatInterval.AsTimeDuration(),
		DatasetTimeout:           cfg.Orchestrator.DatasetTimeout.AsTimeDuration(),
		Clock:                    config.Clock,
	})
	if err != nil {
		return nil, err
	}

	workers := make([]*orchestrator.Worker, cfg.Orchestrator.Workers)
	for i := range workers {
		workers[i] = orchestrator.NewWorker(orchestrator.WorkerParams{
			Store:         jobStore,
			Runner:        orch,
			ClaimInterval: cfg.Orchestrator.ClaimInterval.AsTimeDuration(),
			Clock:         config.Clock,
		})
	}

	housekeeping, err := orchestrator.NewHousekeeping(orchestrator.HousekeepingParams{
		Store:            jobStore,
		Interval:         cfg.Orchestrator.HousekeepingInterval.AsTimeDuration(),
		HeartbeatTimeout: cfg.Orchestrator.HeartbeatTimeout.AsTimeDuration(),
		Clock:            config.Clock,
	})
	if err != nil {
		return nil, err
	}

	return &Node{
		Orchestrator: orch,
		Store:        jobStore,
		Cache:        cache,
		Workers:      workers,
		Housekeeping: housekeeping,
	}, nil
}

// Start starts the workers and the housekeeping loop.
func (n *Node) Start(ctx context.Context) {
	for _, w := range n.Workers {
		w.Start(ctx)
	}
	n.Housekeeping.Start(ctx)
	log.Ctx(ctx).Info().Int("workers", len(n.Workers)).Msg("node started")
}

// Stop stops claiming new jobs and waits for the in-flight jobs to finish,
// or for ctx to be done.
func (n *Node) Stop(ctx context.Context) {
	n.Housekeeping.Stop(ctx)
	for _, w := range n.Workers {
		w.Stop()
	}
	for _, w := range n.Workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			log.Ctx(ctx).Warn().Str("worker_id", w.ID()).Msg("gave up waiting for worker to stop")
			return
		}
	}
	log.Ctx(ctx).Info().Msg("node stopped")
}
