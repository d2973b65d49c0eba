//go:build unit || !integration

package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetParsesSemanticVersion(t *testing.T) {
	old := GITVERSION
	t.Cleanup(func() { GITVERSION = old })

	GITVERSION = "v1.4.2"
	info := Get()
	assert.Equal(t, "1", info.Major)
	assert.Equal(t, "4", info.Minor)
	assert.Equal(t, runtime.GOOS, info.GOOS)
	assert.Equal(t, "v1.4.2 ("+runtime.GOOS+"/"+runtime.GOARCH+")", info.String())

	GITVERSION = "not-a-version"
	info = Get()
	assert.Empty(t, info.Major)
	assert.Equal(t, "not-a-version", info.GitVersion)
}
