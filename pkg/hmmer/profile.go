// Package hmmer drives external HMMER searches: resolving each gene's
// profile path, running hmmsearch under a bounded worker pool, and
// handing the raw per-gene reports back to pkg/hit for parsing.
package hmmer

import (
	"fmt"
	"sync"

	"github.com/macsylib/macsylib/pkg/model"
)

// ProfileFactory ensures there is only one Profile per (location, gene)
// for the lifetime of a run, matching original_source's ProfileFactory
// cache key.
type ProfileFactory struct {
	mu       sync.Mutex
	profiles map[profileKey]*Profile
}

type profileKey struct {
	location string
	gene     string
}

// Profile is a resolved HMM profile file on disk for one gene.
type Profile struct {
	Gene *model.CoreGene
	Path string
}

func NewProfileFactory() *ProfileFactory {
	return &ProfileFactory{profiles: make(map[profileKey]*Profile)}
}

// Get returns the cached Profile for (locationName, gene), resolving it
// from gene.ProfilePath on first request.
func (f *ProfileFactory) Get(locationName string, gene *model.CoreGene) (*Profile, error) {
	key := profileKey{location: locationName, gene: gene.Name}

	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.profiles[key]; ok {
		return p, nil
	}
	if gene.ProfilePath == "" {
		return nil, fmt.Errorf("%s/%s: no such profile", locationName, gene.Name)
	}
	p := &Profile{Gene: gene, Path: gene.ProfilePath}
	f.profiles[key] = p
	return p, nil
}
