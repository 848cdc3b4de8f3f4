// Package resolve implements the Solution Resolver: it builds a conflict
// graph over one replicon's CandidateSystems, searches for maximum-weight
// independent sets with a deterministic branch-and-bound, and ranks the
// ties that share the maximum score (spec §4.6).
package resolve

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/macsylib/macsylib/pkg/candidate"
	"github.com/macsylib/macsylib/pkg/hit"
	"github.com/macsylib/macsylib/pkg/score"
)

// State is the terminal outcome of resolving one replicon (spec §4.6).
type State int

const (
	StateOptimal State = iota
	StateTimeout
	StateEmpty
)

func (s State) String() string {
	switch s {
	case StateOptimal:
		return "OPTIMAL"
	case StateTimeout:
		return "TIMEOUT"
	default:
		return "EMPTY"
	}
}

// Solution is one maximum-weight independent set of CandidateSystems
// (spec §3's Solution invariant, §4.6).
type Solution struct {
	ID      string
	Systems []*candidate.CandidateSystem
	Score   float64
}

func (s *Solution) hitsNumber() int {
	n := 0
	for _, sys := range s.Systems {
		n += len(sys.Hits)
	}
	return n
}

func (s *Solution) meanWholeness() float64 {
	if len(s.Systems) == 0 {
		return 0
	}
	var sum float64
	for _, sys := range s.Systems {
		sum += sys.Wholeness()
	}
	return sum / float64(len(s.Systems))
}

func (s *Solution) hitPositions() []int {
	var positions []int
	for _, sys := range s.Systems {
		for _, h := range sys.Hits {
			positions = append(positions, h.Position)
		}
	}
	sort.Ints(positions)
	return positions
}

// Result is the Resolver's output for one replicon.
type Result struct {
	Best  *Solution
	All   []*Solution
	State State
}

var resolveNamespace = uuid.MustParse("4a3f7a7e-5f8b-4b2d-9a6a-5b2c7b9d1e44")

// Resolve runs spec §4.6 over candidates from one replicon. weights
// scores every candidate; ctx carries the resolver's wall-clock budget,
// polled at each branch-and-bound node.
func Resolve(ctx context.Context, candidates []*candidate.CandidateSystem, w score.Weights) Result {
	if len(candidates) == 0 {
		return Result{State: StateEmpty}
	}

	scores := make(map[*candidate.CandidateSystem]float64, len(candidates))
	for _, c := range candidates {
		scores[c] = score.Candidate(c, w).Total
	}

	ordered := orderVertices(candidates, scores)
	conflicts := buildConflicts(ordered)

	b := &bnb{
		vertices:  ordered,
		scores:    scores,
		conflicts: conflicts,
		ctx:       ctx,
	}
	b.search()

	state := StateOptimal
	if b.timedOut {
		state = StateTimeout
	}

	solutions := make([]*Solution, 0, len(b.bestCliques))
	for i, clique := range b.bestCliques {
		sol := &Solution{
			ID:      solutionID(i),
			Systems: clique,
			Score:   b.bestScore,
		}
		solutions = append(solutions, sol)
	}
	rankSolutions(solutions)

	var best *Solution
	if len(solutions) > 0 {
		best = solutions[0]
	}
	return Result{Best: best, All: solutions, State: state}
}

func solutionID(ordinal int) string {
	return uuid.NewMD5(resolveNamespace, []byte{byte(ordinal), byte(ordinal >> 8)}).String()
}

// orderVertices sorts candidates descending by score, then descending by
// hit count, then ascending by minimum position (spec §4.6 step 2).
func orderVertices(candidates []*candidate.CandidateSystem, scores map[*candidate.CandidateSystem]float64) []*candidate.CandidateSystem {
	out := append([]*candidate.CandidateSystem{}, candidates...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		if len(a.Hits) != len(b.Hits) {
			return len(a.Hits) > len(b.Hits)
		}
		return a.MinPosition() < b.MinPosition()
	})
	return out
}

// conflicts reports whether u and v may not coexist in the same solution:
// they share a ModelHit whose ModelGene forbids co-occurrence, or they
// both belong to the same model and share a mandatory hit (spec §4.6
// step 1, §3's Solution invariant).
func conflicts(u, v *candidate.CandidateSystem) bool {
	if u == v {
		return false
	}
	shared := sharedHits(u, v)
	if len(shared) == 0 {
		return false
	}
	sameModel := u.Model.FQN == v.Model.FQN
	for _, h := range shared {
		if sameModel && h.Status.String() == "mandatory" {
			return true
		}
		if !h.MultiSystem && !h.MultiModel {
			return true
		}
	}
	return false
}

func sharedHits(u, v *candidate.CandidateSystem) []*hit.ModelHit {
	seen := make(map[*hit.Hit]*hit.ModelHit, len(u.Hits))
	for _, h := range u.Hits {
		seen[h.Hit] = h
	}
	var out []*hit.ModelHit
	for _, h := range v.Hits {
		if mh, ok := seen[h.Hit]; ok {
			out = append(out, mh)
		}
	}
	return out
}

func buildConflicts(vertices []*candidate.CandidateSystem) map[*candidate.CandidateSystem]map[*candidate.CandidateSystem]bool {
	adj := make(map[*candidate.CandidateSystem]map[*candidate.CandidateSystem]bool, len(vertices))
	for _, v := range vertices {
		adj[v] = make(map[*candidate.CandidateSystem]bool)
	}
	for i := 0; i < len(vertices); i++ {
		for j := i + 1; j < len(vertices); j++ {
			if conflicts(vertices[i], vertices[j]) {
				adj[vertices[i]][vertices[j]] = true
				adj[vertices[j]][vertices[i]] = true
			}
		}
	}
	return adj
}

// bnb is a deterministic branch-and-bound search for every maximum-weight
// independent set among vertices, honouring ctx's deadline.
type bnb struct {
	vertices  []*candidate.CandidateSystem
	scores    map[*candidate.CandidateSystem]float64
	conflicts map[*candidate.CandidateSystem]map[*candidate.CandidateSystem]bool
	ctx       context.Context

	bestScore   float64
	bestSet     bool
	bestCliques [][]*candidate.CandidateSystem
	timedOut    bool
}

func (b *bnb) search() {
	suffixBound := make([]float64, len(b.vertices)+1)
	for i := len(b.vertices) - 1; i >= 0; i-- {
		suffixBound[i] = suffixBound[i+1] + b.scores[b.vertices[i]]
	}
	b.branch(0, nil, 0, suffixBound)
}

func (b *bnb) branch(idx int, current []*candidate.CandidateSystem, currentScore float64, suffixBound []float64) {
	if b.timedOut {
		return
	}
	select {
	case <-b.ctx.Done():
		b.timedOut = true
		b.record(current, currentScore)
		return
	default:
	}

	if idx == len(b.vertices) {
		b.record(current, currentScore)
		return
	}

	upperBound := currentScore + suffixBound[idx]
	if b.bestSet && upperBound < b.bestScore {
		return
	}

	v := b.vertices[idx]
	compatible := true
	for _, c := range current {
		if b.conflicts[v][c] {
			compatible = false
			break
		}
	}
	if compatible {
		b.branch(idx+1, append(current, v), currentScore+b.scores[v], suffixBound)
	}
	b.branch(idx+1, current, currentScore, suffixBound)
}

func (b *bnb) record(clique []*candidate.CandidateSystem, s float64) {
	if !b.bestSet || s > b.bestScore {
		b.bestScore = s
		b.bestSet = true
		b.bestCliques = [][]*candidate.CandidateSystem{append([]*candidate.CandidateSystem{}, clique...)}
		return
	}
	if s == b.bestScore {
		b.bestCliques = append(b.bestCliques, append([]*candidate.CandidateSystem{}, clique...))
	}
}

// rankSolutions orders tied-at-maximum solutions by spec §4.6 step 4:
// hits desc, system count desc, mean wholeness desc, hit positions asc.
func rankSolutions(solutions []*Solution) {
	sort.Slice(solutions, func(i, j int) bool {
		a, b := solutions[i], solutions[j]
		if a.hitsNumber() != b.hitsNumber() {
			return a.hitsNumber() > b.hitsNumber()
		}
		if len(a.Systems) != len(b.Systems) {
			return len(a.Systems) > len(b.Systems)
		}
		if a.meanWholeness() != b.meanWholeness() {
			return a.meanWholeness() > b.meanWholeness()
		}
		return lexLess(a.hitPositions(), b.hitPositions())
	})
}

func lexLess(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
