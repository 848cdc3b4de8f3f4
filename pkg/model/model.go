package model

import "fmt"

// Model is a named tuple of ModelGenes plus quorum thresholds. After
// Catalog.ModelsToDetect returns it, cmd/macsylib applies any models_opt
// overrides to its thresholds once, before the pipeline runs; it is not
// mutated after that, so readers need no synchronisation.
type Model struct {
	// FQN is family/path/name, e.g. "TFF-SF/path/to/T2SS".
	FQN string

	Genes []*ModelGene

	InterGeneMaxSpace         int
	MinMandatoryGenesRequired int
	MinGenesRequired          int
	MaxNbGenes                int // 0 means "not configured": EffectiveMaxNbGenes then uses |mandatory ∪ accessory|
	MultiLoci                 bool
}

func (m *Model) Name() string {
	idx := len(m.FQN)
	for i := len(m.FQN) - 1; i >= 0; i-- {
		if m.FQN[i] == '/' {
			idx = i + 1
			break
		}
	}
	return m.FQN[idx:]
}

func (m *Model) FamilyName() string {
	for i := 0; i < len(m.FQN); i++ {
		if m.FQN[i] == '/' {
			return m.FQN[:i]
		}
	}
	return m.FQN
}

// EffectiveMaxNbGenes returns MaxNbGenes, falling back to the mandatory +
// accessory gene count when no explicit bound was configured (spec §3).
func (m *Model) EffectiveMaxNbGenes() int {
	if m.MaxNbGenes > 0 {
		return m.MaxNbGenes
	}
	return len(m.GenesWithRole(RoleMandatory)) + len(m.GenesWithRole(RoleAccessory))
}

// RequiredGeneCount returns |mandatory ∪ accessory|, the universe
// sys_wholeness divides by (spec §3). It is independent of
// EffectiveMaxNbGenes, which may be configured away from that universe
// via max_nb_genes and serves the candidate enumeration budget instead.
func (m *Model) RequiredGeneCount() int {
	return len(m.GenesWithRole(RoleMandatory)) + len(m.GenesWithRole(RoleAccessory))
}

func (m *Model) GenesWithRole(r Role) []*ModelGene {
	out := make([]*ModelGene, 0, len(m.Genes))
	for _, g := range m.Genes {
		if g.Role == r {
			out = append(out, g)
		}
	}
	return out
}

// GeneByName finds a direct (non-exchangeable) ModelGene of this model by
// its CoreGene name, or nil.
func (m *Model) GeneByName(name string) *ModelGene {
	for _, g := range m.Genes {
		if g.Name() == name {
			return g
		}
	}
	return nil
}

// GeneIndex maps every CoreGene this model can match — directly or via
// an Exchangeable — to the ModelGene that should materialise a hit on
// it (spec §4.3 step 1: "every Hit whose CoreGene appears in M (directly
// or as an Exchangeable) becomes a ModelHit").
func (m *Model) GeneIndex() map[*CoreGene]*ModelGene {
	idx := make(map[*CoreGene]*ModelGene, len(m.Genes))
	for _, g := range m.Genes {
		idx[g.Gene] = g
		for _, ex := range g.Exchangeables {
			idx[ex.Gene] = ex
		}
	}
	return idx
}

// validateQuorum checks spec §3's quorum invariant:
// min_mandatory_genes_required <= min_genes_required <= |mandatory ∪ accessory|.
func (m *Model) validateQuorum() error {
	universe := m.RequiredGeneCount()
	if m.MinMandatoryGenesRequired > m.MinGenesRequired {
		return fmt.Errorf("model %s: min_mandatory_genes_required (%d) must be <= min_genes_required (%d)",
			m.FQN, m.MinMandatoryGenesRequired, m.MinGenesRequired)
	}
	if m.MinGenesRequired > universe {
		return fmt.Errorf("model %s: min_genes_required (%d) must be <= |mandatory ∪ accessory| (%d)",
			m.FQN, m.MinGenesRequired, universe)
	}
	return nil
}
