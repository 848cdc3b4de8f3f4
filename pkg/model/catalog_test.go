package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSimpleModel(c *Catalog, fqn string, minMand, minGenes int) *Model {
	a := c.InternGene("TFF-SF", "geneA", "geneA.hmm")
	b := c.InternGene("TFF-SF", "geneB", "geneB.hmm")
	m := &Model{
		FQN:                       fqn,
		InterGeneMaxSpace:         2,
		MinMandatoryGenesRequired: minMand,
		MinGenesRequired:          minGenes,
		MultiLoci:                 false,
	}
	m.Genes = []*ModelGene{
		{Gene: a, Role: RoleMandatory},
		{Gene: b, Role: RoleAccessory},
	}
	return m
}

func TestCatalogInternGeneIsUniquePerFamilyAndName(t *testing.T) {
	c := NewCatalog()
	g1 := c.InternGene("TFF-SF", "gspD", "gspD.hmm")
	g2 := c.InternGene("TFF-SF", "gspD", "gspD.hmm")
	assert.Same(t, g1, g2)

	g3, err := c.GeneByName("TFF-SF", "gspD")
	require.NoError(t, err)
	assert.Same(t, g1, g3)

	_, err = c.GeneByName("TFF-SF", "missing")
	assert.Error(t, err)
}

func TestAddModelRejectsBadQuorum(t *testing.T) {
	c := NewCatalog()
	m := buildSimpleModel(c, "TFF-SF/path/T2SS", 3, 3) // min_genes_required 3 exceeds |mandatory ∪ accessory| = 2
	err := c.AddModel(m)
	assert.Error(t, err)
}

func TestAddModelAcceptsValidQuorum(t *testing.T) {
	c := NewCatalog()
	m := buildSimpleModel(c, "TFF-SF/path/T2SS", 1, 2)
	require.NoError(t, c.AddModel(m))

	got, err := c.ModelByFQN("TFF-SF/path/T2SS")
	require.NoError(t, err)
	assert.Equal(t, "T2SS", got.Name())
	assert.Equal(t, "TFF-SF", got.FamilyName())
}

func TestAddModelRejectsCyclicExchangeables(t *testing.T) {
	c := NewCatalog()
	a := c.InternGene("Fam", "A", "A.hmm")
	b := c.InternGene("Fam", "B", "B.hmm")
	ga := &ModelGene{Gene: a, Role: RoleMandatory}
	gb := &ModelGene{Gene: b, Role: RoleMandatory, AlternateOf: ga}
	ga.Exchangeables = []*ModelGene{gb}
	gb.Exchangeables = []*ModelGene{ga} // cycle: A -> B -> A

	m := &Model{
		FQN:                       "Fam/path/Cyc",
		InterGeneMaxSpace:         1,
		MinMandatoryGenesRequired: 1,
		MinGenesRequired:          1,
		Genes:                     []*ModelGene{ga, gb},
	}
	err := c.AddModel(m)
	assert.Error(t, err)
}

func TestModelsToDetectFiltersByFamily(t *testing.T) {
	c := NewCatalog()
	m1 := buildSimpleModel(c, "FamA/path/One", 1, 1)
	require.NoError(t, c.AddModel(m1))
	m2 := buildSimpleModel(c, "FamB/path/Two", 1, 1)
	require.NoError(t, c.AddModel(m2))

	got, err := c.ModelsToDetect(Selector{Families: []string{"FamA"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "FamA/path/One", got[0].FQN)

	all, err := c.ModelsToDetect(Selector{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEffectiveInterGeneMaxSpace(t *testing.T) {
	c := NewCatalog()
	m := buildSimpleModel(c, "Fam/path/M", 1, 1)
	require.NoError(t, c.AddModel(m))

	gA := m.GeneByName("geneA")
	assert.Equal(t, 2, gA.EffectiveInterGeneMaxSpace())

	override := 5
	gA.InterGeneMaxSpace = &override
	assert.Equal(t, 5, gA.EffectiveInterGeneMaxSpace())
}
