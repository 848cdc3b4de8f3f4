package model

import (
	"fmt"
	"sort"
)

// Catalog is the immutable, process-wide store of CoreGenes and Models
// built once by pkg/modelpkg and shared by reference across every worker
// goroutine for the rest of the run (spec §4.1, §9's "global caches").
type Catalog struct {
	genes  map[string]*CoreGene // keyed by family+"/"+name
	models map[string]*Model    // keyed by FQN
	order  []string             // insertion order of model FQNs, for deterministic iteration
}

func NewCatalog() *Catalog {
	return &Catalog{
		genes:  make(map[string]*CoreGene),
		models: make(map[string]*Model),
	}
}

// InternGene returns the unique CoreGene for (family, name), creating it on
// first reference. Safe to call only during catalog construction (single
// writer); reads after construction are lock-free because the catalog is
// never mutated again.
func (c *Catalog) InternGene(family, name, profilePath string) *CoreGene {
	key := family + "/" + name
	if g, ok := c.genes[key]; ok {
		return g
	}
	g := &CoreGene{Family: family, Name: name, ProfilePath: profilePath}
	c.genes[key] = g
	return g
}

// GeneByName looks up an already-interned CoreGene.
func (c *Catalog) GeneByName(family, name string) (*CoreGene, error) {
	g, ok := c.genes[family+"/"+name]
	if !ok {
		return nil, fmt.Errorf("unknown gene reference %s/%s", family, name)
	}
	return g, nil
}

// AddModel registers a fully-built Model after validating its quorum
// invariant. Fatal errors here must abort catalog loading (spec §4.1).
func (c *Catalog) AddModel(m *Model) error {
	if err := m.validateQuorum(); err != nil {
		return err
	}
	if err := checkExchangeableCycles(m); err != nil {
		return err
	}
	for _, g := range m.Genes {
		g.Model = m
	}
	if _, exists := c.models[m.FQN]; exists {
		return fmt.Errorf("duplicate model %s", m.FQN)
	}
	c.models[m.FQN] = m
	c.order = append(c.order, m.FQN)
	return nil
}

// ModelByFQN returns a previously-registered Model.
func (c *Catalog) ModelByFQN(fqn string) (*Model, error) {
	m, ok := c.models[fqn]
	if !ok {
		return nil, fmt.Errorf("unknown model %s", fqn)
	}
	return m, nil
}

// Selector picks which registered models a run should detect. An empty
// Families/Names selects every model in the catalog.
type Selector struct {
	Families []string
	Names    []string // fully qualified names; overrides Families when non-empty
}

// ModelsToDetect returns the models a run should search for, in
// deterministic order: the order of sel.Names when names are given,
// otherwise sorted by FQN.
func (c *Catalog) ModelsToDetect(sel Selector) ([]*Model, error) {
	if len(sel.Names) > 0 {
		out := make([]*Model, 0, len(sel.Names))
		for _, fqn := range sel.Names {
			m, err := c.ModelByFQN(fqn)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}

	families := make(map[string]bool, len(sel.Families))
	for _, f := range sel.Families {
		families[f] = true
	}

	out := make([]*Model, 0, len(c.order))
	for _, fqn := range c.order {
		m := c.models[fqn]
		if len(families) == 0 || families[m.FamilyName()] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FQN < out[j].FQN })
	return out, nil
}

// checkExchangeableCycles performs a DFS over each gene's Exchangeables to
// reject self-referencing or mutually-referencing substitution chains
// (spec §4.1: "cyclic exchangeables ... fatal").
func checkExchangeableCycles(m *Model) error {
	visiting := make(map[*ModelGene]bool)
	visited := make(map[*ModelGene]bool)

	var visit func(g *ModelGene) error
	visit = func(g *ModelGene) error {
		if visited[g] {
			return nil
		}
		if visiting[g] {
			return fmt.Errorf("model %s: cyclic exchangeable reference involving gene %s", m.FQN, g.Name())
		}
		visiting[g] = true
		for _, ex := range g.Exchangeables {
			if err := visit(ex); err != nil {
				return err
			}
		}
		visiting[g] = false
		visited[g] = true
		return nil
	}

	for _, g := range m.Genes {
		if err := visit(g); err != nil {
			return err
		}
	}
	return nil
}
