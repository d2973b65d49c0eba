package models

import (
	"fmt"
	"time"
)

// BuildVersionInfo describes the binary serving a request.
type BuildVersionInfo struct {
	Major      string    `json:"major,omitempty" yaml:"major,omitempty"`
	Minor      string    `json:"minor,omitempty" yaml:"minor,omitempty"`
	GitVersion string    `json:"gitVersion" yaml:"gitVersion"`
	GitCommit  string    `json:"gitCommit" yaml:"gitCommit"`
	BuildDate  time.Time `json:"buildDate" yaml:"buildDate"`
	GOOS       string    `json:"goos" yaml:"goos"`
	GOARCH     string    `json:"goarch" yaml:"goarch"`
}

func (v BuildVersionInfo) String() string {
	return fmt.Sprintf("%s (%s/%s)", v.GitVersion, v.GOOS, v.GOARCH)
}
