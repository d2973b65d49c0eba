// Package version reports the build version of the binary.
package version

import (
	"runtime"
	"strconv"
	"time"

	"github.com/Masterminds/semver"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/simverify/pkg/models"
)

const DevelopmentGitVersion = "v0.0.0-xxxxxxx"

var (
	// GITVERSION is set at build time with
	// -ldflags "-X github.com/bacalhau-project/simverify/pkg/version.GITVERSION=v1.2.3".
	GITVERSION = DevelopmentGitVersion
	GITCOMMIT  = ""
	BUILDDATE  = ""
)

// Get returns the version of the running binary.
func Get() *models.BuildVersionInfo {
	info := &models.BuildVersionInfo{
		GitVersion: GITVERSION,
		GitCommit:  GITCOMMIT,
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}
	if BUILDDATE != "" {
		if date, err := time.Parse(time.RFC3339, BUILDDATE); err == nil {
			info.BuildDate = date.UTC()
		}
	}

	s, err := semver.NewVersion(GITVERSION)
	if err != nil {
		log.Debug().Err(err).Str("version", GITVERSION).Msg("build version is not a semantic version")
		return info
	}
	info.Major = strconv.FormatInt(s.Major(), 10)
	info.Minor = strconv.FormatInt(s.Minor(), 10)
	return info
}
