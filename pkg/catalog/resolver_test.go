//go:build unit || !integration

package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/simverify/pkg/cache/basic"
	"github.com/bacalhau-project/simverify/pkg/catalog"
	"github.com/bacalhau-project/simverify/pkg/models"
	"github.com/bacalhau-project/simverify/pkg/simclient/fake"
)

type ResolverTestSuite struct {
	suite.Suite
	clock    *clock.Mock
	service  *fake.Service
	resolver *catalog.Resolver
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

func sim(id, version string) models.Simulator {
	return models.Simulator{ID: id, Version: version, Digest: digest.FromString(id + version)}
}

func (s *ResolverTestSuite) SetupTest() {
	s.clock = clock.NewMock()
	s.service = fake.NewService(
		sim("copasi", "4.9.0"),
		sim("copasi", "4.40.0"),
		sim("copasi", "4.10.0"),
		sim("tellurium", "2.2.1"),
		sim("tellurium", "nightly"),
	)
	c, err := basic.NewCache[[]models.Simulator](basic.WithClock(s.clock))
	s.Require().NoError(err)
	s.T().Cleanup(c.Close)
	s.resolver = catalog.NewResolver(catalog.ResolverParams{
		Catalog: s.service,
		Cache:   c,
		TTL:     time.Hour,
	})
}

func (s *ResolverTestSuite) TestResolveExactVersion() {
	got, err := s.resolver.Resolve(context.Background(), models.SimulatorRef{ID: "copasi", Version: "4.10.0"})
	s.Require().NoError(err)
	s.Equal(sim("copasi", "4.10.0"), got)
}

func (s *ResolverTestSuite) TestResolveLatestUsesSemverOrdering() {
	got, err := s.resolver.Resolve(context.Background(), models.SimulatorRef{ID: "copasi"})
	s.Require().NoError(err)
	s.Equal("4.40.0", got.Version)

	got, err = s.resolver.Resolve(context.Background(), models.SimulatorRef{ID: "tellurium", Version: models.LatestVersion})
	s.Require().NoError(err)
	s.Equal("2.2.1", got.Version)
}

func (s *ResolverTestSuite) TestNotFound() {
	_, err := s.resolver.Resolve(context.Background(), models.SimulatorRef{ID: "vcell"})
	s.ErrorAs(err, &catalog.ErrSimulatorNotFound{})

	_, err = s.resolver.Resolve(context.Background(), models.SimulatorRef{ID: "copasi", Version: "1.0"})
	s.ErrorAs(err, &catalog.ErrSimulatorNotFound{})
}

func (s *ResolverTestSuite) TestListingIsCachedForTTL() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.resolver.Resolve(ctx, models.SimulatorRef{ID: "copasi"})
		s.Require().NoError(err)
	}
	s.Equal(1, s.service.CatalogHits())

	s.clock.Add(59 * time.Minute)
	_, err := s.resolver.List(ctx)
	s.Require().NoError(err)
	s.Equal(1, s.service.CatalogHits())

	s.clock.Add(time.Minute)
	_, err = s.resolver.List(ctx)
	s.Require().NoError(err)
	s.Equal(2, s.service.CatalogHits())
}

func (s *ResolverTestSuite) TestEntryWithoutDigestIsRejected() {
	service := fake.NewService(
		models.Simulator{ID: "copasi", Version: "4.40.0"},
		models.Simulator{ID: "tellurium", Version: "2.2.1", Digest: "sha256:short"},
	)
	c, err := basic.NewCache[[]models.Simulator]()
	s.Require().NoError(err)
	s.T().Cleanup(c.Close)
	resolver := catalog.NewResolver(catalog.ResolverParams{Catalog: service, Cache: c})

	for _, id := range []string{"copasi", "tellurium"} {
		_, err = resolver.Resolve(context.Background(), models.SimulatorRef{ID: id})
		var invalid catalog.ErrInvalidSimulator
		s.Require().ErrorAs(err, &invalid, id)
		s.Equal(id, invalid.Simulator.ID)
	}
}
