package replicon

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Registry resolves a sequence database's db_type into a Layout and holds
// the per-replicon topology overrides read from an optional topology file
// (spec §6.1). It mirrors original_source's registries.py: gembase
// databases derive a replicon name from the protein ID prefix, one
// replicon per distinct prefix, defaulting to linear unless overridden.
type Registry struct {
	Layout    Layout
	Topologies map[string]Topology // replicon name -> override
}

func NewRegistry(layout Layout) *Registry {
	return &Registry{Layout: layout, Topologies: make(map[string]Topology)}
}

// LoadTopologyFile parses lines of "<replicon>\t<linear|circular>".
func (r *Registry) LoadTopologyFile(rd io.Reader) error {
	scanner := bufio.NewScanner(rd)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return fmt.Errorf("topology file line %d: expected <replicon>\\t<linear|circular>, got %q", lineNo, line)
		}
		topo, err := ParseTopology(strings.TrimSpace(fields[1]))
		if err != nil {
			return fmt.Errorf("topology file line %d: %w", lineNo, err)
		}
		r.Topologies[strings.TrimSpace(fields[0])] = topo
	}
	return scanner.Err()
}

// TopologyFor returns the registered override for name, defaulting to
// Linear when none was supplied.
func (r *Registry) TopologyFor(name string) Topology {
	if t, ok := r.Topologies[name]; ok {
		return t
	}
	return Linear
}

// RepliconNameFor derives the owning replicon name for a protein ID
// according to the active layout. For gembase this is the prefix up to
// the last "_" (spec §6.1); for ordered_replicon and unordered layouts
// the whole database is treated as a single replicon, so the protein ID
// itself does not determine it and callers must track replicon
// assignment out of band.
func (r *Registry) RepliconNameFor(proteinID string) (string, bool) {
	if r.Layout != Gembase {
		return "", false
	}
	idx := strings.LastIndex(proteinID, "_")
	if idx <= 0 {
		return "", false
	}
	return proteinID[:idx], true
}
