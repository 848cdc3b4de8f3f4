package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macsylib/macsylib/pkg/candidate"
	"github.com/macsylib/macsylib/pkg/cluster"
	"github.com/macsylib/macsylib/pkg/hit"
	"github.com/macsylib/macsylib/pkg/model"
)

func buildGene(cat *model.Catalog, m *model.Model, family, name string, role model.Role) *model.ModelGene {
	core := cat.InternGene(family, name, name+".hmm")
	mg := &model.ModelGene{Gene: core, Role: role, Model: m}
	m.Genes = append(m.Genes, mg)
	return mg
}

func modelHit(mg *model.ModelGene, repl string, pos int) *hit.ModelHit {
	h := &hit.Hit{Replicon: repl, Position: pos, ProteinID: mg.Name(), Gene: mg.Gene}
	return hit.NewModelHit(h, mg)
}

func TestBaseAppliesStatusSourceAndRefWeights(t *testing.T) {
	w := DefaultWeights()
	cat := model.NewCatalog()
	m := &model.Model{FQN: "Fam/M"}
	mandatory := buildGene(cat, m, "Fam", "A", model.RoleMandatory)
	accessory := buildGene(cat, m, "Fam", "B", model.RoleAccessory)

	hMandatory := modelHit(mandatory, "R", 1)
	assert.Equal(t, w.MandatoryWeight, Base(hMandatory, true, w))

	hAccessoryOut := modelHit(accessory, "R", 2)
	assert.Equal(t, w.AccessoryWeight*w.OutOfCluster, Base(hAccessoryOut, false, w))
}

func TestBaseUsesExchangeableWeightForAlternateGenes(t *testing.T) {
	w := DefaultWeights()
	cat := model.NewCatalog()
	m := &model.Model{FQN: "Fam/M"}
	primary := buildGene(cat, m, "Fam", "A", model.RoleMandatory)
	altCore := cat.InternGene("Fam", "A2", "A2.hmm")
	alt := &model.ModelGene{Gene: altCore, Role: model.RoleMandatory, Model: m, AlternateOf: primary}

	h := modelHit(alt, "R", 1)
	assert.Equal(t, w.MandatoryWeight*w.ExchangeableWeight, Base(h, true, w))
}

func TestCandidateAppliesRedundancyPenaltyToExtraContributions(t *testing.T) {
	w := DefaultWeights()
	cat := model.NewCatalog()
	m := &model.Model{FQN: "Fam/M", InterGeneMaxSpace: 5, MinMandatoryGenesRequired: 1, MinGenesRequired: 1}
	a := cat.InternGene("Fam", "A", "A.hmm")
	l := cat.InternGene("Fam", "L", "L.hmm")
	mgA := &model.ModelGene{Gene: a, Role: model.RoleMandatory, Model: m}
	mgL := &model.ModelGene{Gene: l, Role: model.RoleMandatory, Loner: true, Model: m}
	m.Genes = []*model.ModelGene{mgA, mgL}

	// Build a cluster manually: one cluster containing two hits of the
	// same function (A matched twice), so the redundancy penalty applies.
	h1 := hit.NewModelHit(&hit.Hit{Replicon: "R", Position: 1, Gene: a}, mgA)
	h2 := hit.NewModelHit(&hit.Hit{Replicon: "R", Position: 3, Gene: a}, mgA)
	c := &cluster.Cluster{Replicon: "R", Model: m, Hits: []*hit.ModelHit{h1, h2}}

	cand := &candidate.CandidateSystem{
		Replicon: "R",
		Model:    m,
		Clusters: []*cluster.Cluster{c},
		Hits:     []*hit.ModelHit{h1, h2},
	}

	s := Candidate(cand, w)
	expected := w.MandatoryWeight + w.MandatoryWeight/w.RedundancyPenalty
	assert.InDelta(t, expected, s.Total, 1e-9)
	assert.InDelta(t, expected, s.ByFunction["A"], 1e-9)
}
