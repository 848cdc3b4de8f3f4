// Package model holds the Model Catalog: core genes, model genes, models
// and the interning catalog that owns them for the lifetime of a run.
package model

import "fmt"

// Role is the status a ModelGene carries inside a Model.
type Role int

const (
	RoleMandatory Role = iota
	RoleAccessory
	RoleNeutral
	RoleForbidden
)

func (r Role) String() string {
	switch r {
	case RoleMandatory:
		return "mandatory"
	case RoleAccessory:
		return "accessory"
	case RoleNeutral:
		return "neutral"
	case RoleForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "mandatory":
		return RoleMandatory, nil
	case "accessory":
		return RoleAccessory, nil
	case "neutral":
		return RoleNeutral, nil
	case "forbidden":
		return RoleForbidden, nil
	default:
		return 0, fmt.Errorf("unknown gene presence/role %q", s)
	}
}

// CoreGene is unique by (family, name) for the whole run. It owns a
// reference to the path of its HMM profile; the profile itself is resolved
// lazily by pkg/hmmer.ProfileFactory.
type CoreGene struct {
	Family      string
	Name        string
	ProfilePath string
}

func (g *CoreGene) FQN() string {
	return g.Family + "/" + g.Name
}

// ModelGene is a CoreGene used in the context of one specific Model.
type ModelGene struct {
	Gene *CoreGene
	// Model is set once the owning Model is fully constructed.
	Model *Model

	Role Role

	Loner      bool
	MultiModel bool
	MultiSystem bool

	// InterGeneMaxSpace overrides the model default for this gene when set.
	InterGeneMaxSpace *int

	// Exchangeables are other ModelGenes that can satisfy this gene's role.
	Exchangeables []*ModelGene

	// AlternateOf points back to the gene this one substitutes for when it
	// is itself listed as an Exchangeable of another gene; nil for
	// non-exchangeable ModelGenes.
	AlternateOf *ModelGene
}

func (g *ModelGene) Name() string {
	return g.Gene.Name
}

// EffectiveInterGeneMaxSpace resolves the spacing this gene exposes for
// distance checks against a neighbour: gene-level override first, then the
// owning model's default.
func (g *ModelGene) EffectiveInterGeneMaxSpace() int {
	if g.InterGeneMaxSpace != nil {
		return *g.InterGeneMaxSpace
	}
	return g.Model.InterGeneMaxSpace
}

// FunctionName returns the name under which this gene's occurrences are
// counted for quorum purposes: itself, or the gene it substitutes for when
// it is an exchangeable.
func (g *ModelGene) FunctionName() string {
	if g.AlternateOf != nil {
		return g.AlternateOf.Name()
	}
	return g.Name()
}

// IsExchangeable reports whether this ModelGene occurrence is standing in
// for another gene (i.e. it was reached via an Exchangeables list).
func (g *ModelGene) IsExchangeable() bool {
	return g.AlternateOf != nil
}
