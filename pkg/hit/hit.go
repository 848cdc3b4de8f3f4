// Package hit materialises Hits from HMM raw reports, applies the
// selection filter, and indexes the survivors for the clustering engine.
package hit

import "github.com/macsylib/macsylib/pkg/model"

// Hit is an immutable record of one profile match against one protein
// (spec §3). Position is the protein's rank in the input dataset file,
// 1-based; on a circular replicon the position order is still linear,
// wrap only matters for distance.
type Hit struct {
	Replicon         string
	Position         int
	ProteinID        string
	Gene             *model.CoreGene
	IEvalue          float64
	Score            float64
	ProfileCoverage  float64
	SequenceCoverage float64
	SeqLength        int
	MatchBegin       int
	MatchEnd         int
}

// Selected reports whether h clears the i-evalue and profile-coverage
// thresholds (spec §3).
func (h *Hit) Selected(iEvalueSel, coverageProfile float64) bool {
	return h.IEvalue <= iEvalueSel && h.ProfileCoverage >= coverageProfile
}

// ModelHit binds a selected Hit to a ModelGene within one Model,
// carrying the role-derived status and the flags the Clustering Engine
// and Scorer need without re-dereferencing the ModelGene on every access
// (spec §3, §4.3).
type ModelHit struct {
	*Hit
	Gene        *model.ModelGene // the ModelGene this hit satisfies
	Status      model.Role
	Loner       bool
	MultiModel  bool
	MultiSystem bool
	// Counterpart is the CoreGene actually matched when Gene is reached
	// via an Exchangeable; nil when the hit matches Gene directly.
	Counterpart *model.CoreGene
}

// NewModelHit binds h to gene within model m, deriving status and flags
// from gene's role (spec §3's "ModelHit ... derived status").
func NewModelHit(h *Hit, gene *model.ModelGene) *ModelHit {
	mh := &ModelHit{
		Hit:         h,
		Gene:        gene,
		Status:      gene.Role,
		Loner:       gene.Loner,
		MultiModel:  gene.MultiModel,
		MultiSystem: gene.MultiSystem,
	}
	if gene.IsExchangeable() {
		mh.Counterpart = h.Gene
	}
	return mh
}
