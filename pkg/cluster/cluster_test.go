package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsylib/macsylib/pkg/hit"
	"github.com/macsylib/macsylib/pkg/model"
	"github.com/macsylib/macsylib/pkg/replicon"
)

func buildTestModel(fqn string, minMand, minGenes, interGeneMaxSpace int, multiLoci bool) (*model.Model, *model.Catalog) {
	cat := model.NewCatalog()
	a := cat.InternGene("Fam", "A", "A.hmm")
	b := cat.InternGene("Fam", "B", "B.hmm")
	c := cat.InternGene("Fam", "C", "C.hmm")
	d := cat.InternGene("Fam", "D", "D.hmm")

	m := &model.Model{
		FQN:                       fqn,
		InterGeneMaxSpace:         interGeneMaxSpace,
		MinMandatoryGenesRequired: minMand,
		MinGenesRequired:          minGenes,
		MultiLoci:                 multiLoci,
	}
	m.Genes = []*model.ModelGene{
		{Gene: a, Role: model.RoleMandatory, Model: m},
		{Gene: b, Role: model.RoleMandatory, Model: m},
		{Gene: c, Role: model.RoleMandatory, Model: m},
		{Gene: d, Role: model.RoleAccessory, Model: m},
	}
	return m, cat
}

func hitAt(core *model.CoreGene, replicon string, pos int) *hit.Hit {
	return &hit.Hit{Replicon: replicon, Position: pos, ProteinID: core.Name, Gene: core, IEvalue: 1e-10, ProfileCoverage: 0.9}
}

// spec §8 scenario 1
func TestScenarioOneSingleCluster(t *testing.T) {
	m, cat := buildTestModel("Fam/M", 2, 3, 2, false)
	a, _ := cat.GeneByName("Fam", "A")
	b, _ := cat.GeneByName("Fam", "B")
	c, _ := cat.GeneByName("Fam", "C")
	d, _ := cat.GeneByName("Fam", "D")

	repl := &replicon.Replicon{Name: "R", Size: 10, Topology: replicon.Linear}
	hits := []*hit.Hit{hitAt(a, "R", 1), hitAt(b, "R", 3), hitAt(c, "R", 4), hitAt(d, "R", 6)}

	res := Clusterize(m, repl, hits)
	require.Len(t, res.Clusters, 1)
	assert.Len(t, res.Clusters[0].Hits, 4)
}

// spec §8 scenario 2
func TestScenarioTwoClustersWhenGapExceedsSpace(t *testing.T) {
	m, cat := buildTestModel("Fam/M", 2, 3, 2, false)
	a, _ := cat.GeneByName("Fam", "A")
	b, _ := cat.GeneByName("Fam", "B")
	c, _ := cat.GeneByName("Fam", "C")
	d, _ := cat.GeneByName("Fam", "D")

	repl := &replicon.Replicon{Name: "R", Size: 10, Topology: replicon.Linear}
	hits := []*hit.Hit{hitAt(a, "R", 1), hitAt(b, "R", 3), hitAt(c, "R", 8), hitAt(d, "R", 9)}

	res := Clusterize(m, repl, hits)
	require.Len(t, res.Clusters, 2)
	assert.Len(t, res.Clusters[0].Hits, 2)
	assert.Len(t, res.Clusters[1].Hits, 2)
}

// spec §8 scenario 6
func TestScenarioSixCircularWrapMerge(t *testing.T) {
	m, cat := buildTestModel("Fam/M", 2, 3, 3, false)
	a, _ := cat.GeneByName("Fam", "A")
	b, _ := cat.GeneByName("Fam", "B")
	c, _ := cat.GeneByName("Fam", "C")

	repl := &replicon.Replicon{Name: "R", Size: 100, Topology: replicon.Circular}
	hits := []*hit.Hit{hitAt(a, "R", 98), hitAt(b, "R", 99), hitAt(c, "R", 2)}

	res := Clusterize(m, repl, hits)
	require.Len(t, res.Clusters, 1)
	assert.Len(t, res.Clusters[0].Hits, 3)
}

func TestLonerHitsGoToSeparatePoolNotClusters(t *testing.T) {
	cat := model.NewCatalog()
	l := cat.InternGene("Fam", "L", "L.hmm")
	a := cat.InternGene("Fam", "A", "A.hmm")
	m := &model.Model{FQN: "Fam/M", InterGeneMaxSpace: 2, MinMandatoryGenesRequired: 1, MinGenesRequired: 1}
	m.Genes = []*model.ModelGene{
		{Gene: a, Role: model.RoleMandatory, Model: m},
		{Gene: l, Role: model.RoleMandatory, Loner: true, Model: m},
	}

	repl := &replicon.Replicon{Name: "R", Size: 100, Topology: replicon.Linear}
	hits := []*hit.Hit{hitAt(l, "R", 50)}

	res := Clusterize(m, repl, hits)
	require.Len(t, res.Loners, 1)
	assert.Empty(t, res.Clusters)
}

func TestForbiddenHitsAreSetAsideNotClustered(t *testing.T) {
	cat := model.NewCatalog()
	a := cat.InternGene("Fam", "A", "A.hmm")
	f := cat.InternGene("Fam", "F", "F.hmm")
	m := &model.Model{FQN: "Fam/M", InterGeneMaxSpace: 2, MinMandatoryGenesRequired: 1, MinGenesRequired: 1}
	m.Genes = []*model.ModelGene{
		{Gene: a, Role: model.RoleMandatory, Model: m},
		{Gene: f, Role: model.RoleForbidden, Model: m},
	}

	repl := &replicon.Replicon{Name: "R", Size: 100, Topology: replicon.Linear}
	hits := []*hit.Hit{hitAt(a, "R", 1), hitAt(f, "R", 2)}

	res := Clusterize(m, repl, hits)
	require.Len(t, res.Forbidden, 1)
	require.Len(t, res.Clusters, 1) // singleton A alone still closes since min_genes_required == 1
	assert.Len(t, res.Clusters[0].Hits, 1)
}
