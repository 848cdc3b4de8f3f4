// Package cluster implements the Clustering Engine: per-model sweeps
// over a replicon's selected hits that group them into spatial clusters
// under per-gene spacing rules, setting aside loner and multi-model hits.
package cluster

import (
	"sort"

	"github.com/macsylib/macsylib/internal/util"
	"github.com/macsylib/macsylib/pkg/hit"
	"github.com/macsylib/macsylib/pkg/model"
	"github.com/macsylib/macsylib/pkg/replicon"
)

// Cluster is an ordered, non-empty sequence of ModelHits on one
// replicon belonging to one model (spec §3). WrapMerged records that
// this cluster absorbed the tail segment of the sweep via the circular
// wrap merge (spec §4.3 step 4); it still counts as a single locus.
type Cluster struct {
	Replicon   string
	Model      *model.Model
	Hits       []*hit.ModelHit
	WrapMerged bool
}

// Functions returns the distinct ModelGene function names represented
// in the cluster (a gene and any exchangeable satisfying it count once).
func (c *Cluster) Functions() map[string]bool {
	out := make(map[string]bool, len(c.Hits))
	for _, h := range c.Hits {
		out[h.Gene.FunctionName()] = true
	}
	return out
}

// Result is the Clustering Engine's output for one (model, replicon)
// pair (spec §4.3).
type Result struct {
	Clusters   []*Cluster
	Loners     []*hit.ModelHit
	MultiModel []*hit.ModelHit
	Forbidden  []*hit.ModelHit
}

// Clusterize runs the full per-model algorithm of spec §4.3 against the
// selected hits of one replicon. It is pure: the same inputs always
// produce the same output, and an empty Result is a valid outcome.
func Clusterize(m *model.Model, repl *replicon.Replicon, hits []*hit.Hit) *Result {
	geneIndex := m.GeneIndex()

	var eligible, loners, multiModel, forbidden []*hit.ModelHit
	for _, h := range hits {
		mg, ok := geneIndex[h.Gene]
		if !ok {
			continue
		}
		mh := hit.NewModelHit(h, mg)
		switch {
		case mg.Role == model.RoleForbidden:
			forbidden = append(forbidden, mh)
		case mg.Loner:
			loners = append(loners, mh)
		case mg.MultiModel:
			multiModel = append(multiModel, mh)
		default:
			eligible = append(eligible, mh)
		}
	}

	clusters := sweep(eligible, m, repl)
	return &Result{
		Clusters:   clusters,
		Loners:     dedupModelHits(loners),
		MultiModel: dedupModelHits(multiModel),
		Forbidden:  forbidden,
	}
}

// sweep implements steps 3-4 of spec §4.3: a left-to-right scan grouping
// hits into raw scaffolds by effective inter-gene spacing, an optional
// circular wrap merge of the trailing scaffold into the leading one, and
// finally a validity check that turns each surviving scaffold into a
// Cluster (or discards it, e.g. a lone non-loner hit).
func sweep(hits []*hit.ModelHit, m *model.Model, repl *replicon.Replicon) []*Cluster {
	if len(hits) == 0 {
		return nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Position < hits[j].Position })

	var scaffolds [][]*hit.ModelHit
	current := []*hit.ModelHit{hits[0]}
	for _, h := range hits[1:] {
		prev := current[len(current)-1]
		if colocates(prev, h, repl) {
			current = append(current, h)
		} else {
			scaffolds = append(scaffolds, current)
			current = []*hit.ModelHit{h}
		}
	}
	scaffolds = append(scaffolds, current)

	wrapMerged := false
	if repl.Topology == replicon.Circular && len(scaffolds) > 1 {
		first := scaffolds[0]
		last := scaffolds[len(scaffolds)-1]
		if colocates(last[len(last)-1], first[0], repl) {
			merged := append(append([]*hit.ModelHit{}, last...), first...)
			scaffolds[0] = merged
			scaffolds = scaffolds[:len(scaffolds)-1]
			wrapMerged = true
		}
	}

	var clusters []*Cluster
	for i, s := range scaffolds {
		c := closeScaffold(s, m, repl.Name)
		if c == nil {
			continue
		}
		if wrapMerged && i == 0 {
			c.WrapMerged = true
		}
		clusters = append(clusters, c)
	}
	return clusters
}

// colocates reports whether h2 may extend a scaffold started at h1,
// honouring the per-gene effective spacing and, on a circular replicon,
// the wrap distance (spec §3, §4.3 step 3 and step 4).
func colocates(h1, h2 *hit.ModelHit, repl *replicon.Replicon) bool {
	maxSpace := util.MaxInt(h1.Gene.EffectiveInterGeneMaxSpace(), h2.Gene.EffectiveInterGeneMaxSpace())
	return repl.Distance(h1.Position, h2.Position) <= maxSpace
}

// closeScaffold turns an accumulated run of ModelHits into a Cluster,
// discarding all-neutral runs and singleton non-loner scaffolds (the
// degenerate cases spec §3/§4.3 exclude from being a real cluster). A
// singleton non-neutral hit is kept when the model's min_genes_required
// is 1, since it can satisfy the quorum on its own.
func closeScaffold(hits []*hit.ModelHit, m *model.Model, repliconName string) *Cluster {
	if len(hits) == 0 {
		return nil
	}
	if len(hits) == 1 {
		h := hits[0]
		if h.Loner {
			return &Cluster{Replicon: repliconName, Model: m, Hits: hits}
		}
		if h.Status == model.RoleNeutral {
			return nil
		}
		if m.MinGenesRequired == 1 {
			return &Cluster{Replicon: repliconName, Model: m, Hits: hits}
		}
		return nil
	}

	allNeutral := true
	for _, h := range hits {
		if h.Status != model.RoleNeutral {
			allNeutral = false
			break
		}
	}
	if allNeutral {
		return nil
	}
	return &Cluster{Replicon: repliconName, Model: m, Hits: hits}
}

// dedupModelHits ensures each ModelHit appears at most once in a pool
// (spec §4.3 step 5), keeping the first occurrence encountered.
func dedupModelHits(hits []*hit.ModelHit) []*hit.ModelHit {
	seen := make(map[*hit.Hit]bool, len(hits))
	out := make([]*hit.ModelHit, 0, len(hits))
	for _, h := range hits {
		if seen[h.Hit] {
			continue
		}
		seen[h.Hit] = true
		out = append(out, h)
	}
	return out
}
