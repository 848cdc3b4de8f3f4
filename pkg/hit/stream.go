package hit

import (
	"fmt"
	"sort"

	"github.com/macsylib/macsylib/pkg/model"
)

// Stream is the selected, indexed Hit population for a run: built once
// from per-gene reports, read by every subsequent pipeline stage without
// synchronisation (spec §4.2, §5's "read-only after construction").
type Stream struct {
	byRepliconGene map[repliconGeneKey][]*Hit
	byReplicon     map[string][]*Hit // position-ascending, deduplicated
}

type repliconGeneKey struct {
	replicon string
	gene     string // CoreGene.FQN()
}

func NewStream() *Stream {
	return &Stream{
		byRepliconGene: make(map[repliconGeneKey][]*Hit),
		byReplicon:     make(map[string][]*Hit),
	}
}

// Add filters raw Hits by the selection thresholds and folds the
// survivors into the stream's indexes (spec §4.2 steps 2-3).
func (s *Stream) Add(hits []*Hit, iEvalueSel, coverageProfile float64) error {
	for _, h := range hits {
		if !h.Selected(iEvalueSel, coverageProfile) {
			continue
		}
		key := repliconGeneKey{replicon: h.Replicon, gene: h.Gene.FQN()}
		s.byRepliconGene[key] = append(s.byRepliconGene[key], h)
		s.byReplicon[h.Replicon] = append(s.byReplicon[h.Replicon], h)
	}
	return nil
}

// Finalize sorts every index by ascending position. The Hit Stream's
// uniqueness guarantee (spec §4.2) is scoped to a single (replicon,
// gene) pair: two hits landing on the same position for the same gene
// is rejected outright. Two hits from different genes landing on the
// same position is not an error — a real protein routinely scores
// above threshold against a gene and one of its exchangeables at the
// same position — so byReplicon keeps only the best-scoring of the two,
// mirroring get_best_hits() (original_source/src/macsylib/hit.py).
func (s *Stream) Finalize() error {
	for key, hits := range s.byRepliconGene {
		sort.Slice(hits, func(i, j int) bool { return hits[i].Position < hits[j].Position })
		for i := 1; i < len(hits); i++ {
			if hits[i].Position == hits[i-1].Position {
				return fmt.Errorf("replicon %s, gene %s: duplicate position %d (protein %s and %s)",
					key.replicon, key.gene, hits[i].Position, hits[i-1].ProteinID, hits[i].ProteinID)
			}
		}
		s.byRepliconGene[key] = hits
	}
	for replicon, hits := range s.byReplicon {
		sort.Slice(hits, func(i, j int) bool { return hits[i].Position < hits[j].Position })
		s.byReplicon[replicon] = bestHitPerPosition(hits)
	}
	return nil
}

// bestHitPerPosition collapses runs of same-position hits (from distinct
// genes) down to the best-scoring one, preserving position order.
func bestHitPerPosition(hits []*Hit) []*Hit {
	out := make([]*Hit, 0, len(hits))
	for i := 0; i < len(hits); {
		j := i + 1
		best := hits[i]
		for j < len(hits) && hits[j].Position == best.Position {
			if hits[j].Score > best.Score {
				best = hits[j]
			}
			j++
		}
		out = append(out, best)
		i = j
	}
	return out
}

// ByGene returns the selected, position-sorted Hits for (replicon, gene).
func (s *Stream) ByGene(replicon string, gene *model.CoreGene) []*Hit {
	return s.byRepliconGene[repliconGeneKey{replicon: replicon, gene: gene.FQN()}]
}

// ByReplicon returns every selected Hit on replicon, position-sorted.
func (s *Stream) ByReplicon(replicon string) []*Hit {
	return s.byReplicon[replicon]
}

// Replicons returns the distinct replicon names carrying at least one
// selected hit, in lexicographic order (determinism, spec §5).
func (s *Stream) Replicons() []string {
	out := make([]string, 0, len(s.byReplicon))
	for r := range s.byReplicon {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
