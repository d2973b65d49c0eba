// Package catalog resolves simulator references to immutable simulator
// identities using a cached listing of the simulator catalog.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/bacalhau-project/simverify/pkg/cache"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/simclient"
)

const (
	DefaultTTL = time.Hour
	listingKey = "simulators"
)

type ResolverParams struct {
	Catalog simclient.Catalog
	// Cache holds the catalog listing. Entries expire after TTL.
	Cache cache.Cache[[]models.Simulator]
	TTL   time.Duration
}

// Resolver resolves simulator references against the catalog.
type Resolver struct {
	catalog simclient.Catalog
	cache   cache.Cache[[]models.Simulator]
	ttl     time.Duration
	group   singleflight.Group
}

func NewResolver(params ResolverParams) *Resolver {
	ttl := params.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		catalog: params.Catalog,
		cache:   params.Cache,
		ttl:     ttl,
	}
}

// List returns the catalog listing, served from cache while it is fresh.
func (r *Resolver) List(ctx context.Context) ([]models.Simulator, error) {
	if sims, ok := r.cache.Get(listingKey); ok {
		return sims, nil
	}
	v, err, _ := r.group.Do(listingKey, func() (interface{}, error) {
		sims, err := r.catalog.ListSimulatorVersions(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing simulator catalog: %w", err)
		}
		if err = r.cache.Set(listingKey, sims, 1, r.ttl); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to cache simulator catalog")
		}
		return sims, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Simulator), nil
}

// Resolve returns the identity of the referenced simulator. An empty or
// "latest" version picks the greatest semantic version of the simulator;
// versions that do not parse are ordered before every parsable one. The
// resolved entry must carry a valid image digest, it keys the run cache.
func (r *Resolver) Resolve(ctx context.Context, ref models.SimulatorRef) (models.Simulator, error) {
	sim, err := r.find(ctx, ref)
	if err != nil {
		return models.Simulator{}, err
	}
	if err = sim.Validate(); err != nil {
		return models.Simulator{}, NewErrInvalidSimulator(sim, err)
	}
	return sim, nil
}

func (r *Resolver) find(ctx context.Context, ref models.SimulatorRef) (models.Simulator, error) {
	sims, err := r.List(ctx)
	if err != nil {
		return models.Simulator{}, err
	}

	var candidates []models.Simulator
	for _, s := range sims {
		if s.ID == ref.ID {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return models.Simulator{}, NewErrSimulatorNotFound(ref.ID, ref.Version)
	}

	if ref.Version == "" || ref.Version == models.LatestVersion {
		sort.SliceStable(candidates, func(i, j int) bool {
			return versionLess(candidates[i].Version, candidates[j].Version)
		})
		return candidates[len(candidates)-1], nil
	}

	for _, s := range candidates {
		if s.Version == ref.Version {
			return s, nil
		}
	}
	return models.Simulator{}, NewErrSimulatorNotFound(ref.ID, ref.Version)
}

func versionLess(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA != nil && errB != nil:
		return a < b
	case errA != nil:
		return true
	case errB != nil:
		return false
	default:
		return va.LessThan(vb)
	}
}
