package models

import (
	"fmt"

	"github.com/opencontainers/go-digest"
)

// LatestVersion asks the catalog for the greatest known version of a simulator.
const LatestVersion = "latest"

// SimulatorRef names a simulator as requested by a caller. An empty version
// means LatestVersion.
type SimulatorRef struct {
	ID      string `json:"ID" validate:"required"`
	Version string `json:"Version,omitempty"`
}

func (r SimulatorRef) String() string {
	if r.Version == "" {
		return r.ID
	}
	return r.ID + ":" + r.Version
}

// Simulator is the immutable identity of one simulator build as published in
// the simulator catalog.
type Simulator struct {
	ID      string `json:"ID"`
	Version string `json:"Version"`
	// Digest is the content addressed digest of the simulator image.
	Digest digest.Digest `json:"Digest"`
}

func (s Simulator) String() string {
	return s.ID + ":" + s.Version
}

// Ref returns the reference that resolves to this simulator.
func (s Simulator) Ref() SimulatorRef {
	return SimulatorRef{ID: s.ID, Version: s.Version}
}

// Validate checks that the identity is complete and that the digest is well formed.
func (s Simulator) Validate() error {
	if s.ID == "" || s.Version == "" {
		return fmt.Errorf("simulator identity %q is incomplete", s.String())
	}
	if err := s.Digest.Validate(); err != nil {
		return fmt.Errorf("simulator %s has an invalid image digest %q: %w", s, s.Digest, err)
	}
	return nil
}
