// Package candidate implements the Candidate Builder: it combines a
// model's Clusters with subsets of its loner and multi-model pools into
// CandidateSystems that clear the model's quorum rules, and records the
// reasons a combination was rejected.
package candidate

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/macsylib/macsylib/pkg/cluster"
	"github.com/macsylib/macsylib/pkg/hit"
	"github.com/macsylib/macsylib/pkg/model"
)

// macsylibNamespace seeds the deterministic system_id derivation (spec
// §4.4 step 6, §5's ordering guarantees) so the same (replicon, model,
// min position, ordinal) always yields the same id across runs.
var macsylibNamespace = uuid.MustParse("b7e36c7c-2f9a-4e2b-8f1a-2a6e7e6a9b10")

// CandidateSystem is one accepted combination of a model's clusters and
// loner/multi-model hits that clears the quorum rules of spec §4.4.
type CandidateSystem struct {
	ID       string
	Replicon string
	Model    *model.Model
	Clusters []*cluster.Cluster
	Loners   []*hit.ModelHit
	Multi    []*hit.ModelHit
	// Hits is every ModelHit in the combination, sorted by position.
	Hits     []*hit.ModelHit
	Warnings []string
}

// MandatoryCount returns the number of distinct mandatory ModelGenes
// (by function name) satisfied by this candidate.
func (c *CandidateSystem) MandatoryCount() int {
	return countDistinctByRole(c.Hits, model.RoleMandatory)
}

// GeneCount returns the number of distinct mandatory+accessory
// ModelGenes (by function name) satisfied by this candidate.
func (c *CandidateSystem) GeneCount() int {
	return countDistinctByRole(c.Hits, model.RoleMandatory) + countDistinctByRole(c.Hits, model.RoleAccessory)
}

// MinPosition returns the smallest hit position in the candidate.
func (c *CandidateSystem) MinPosition() int {
	min := c.Hits[0].Position
	for _, h := range c.Hits[1:] {
		if h.Position < min {
			min = h.Position
		}
	}
	return min
}

// Wholeness returns |distinct ModelGenes satisfied| / |mandatory ∪
// accessory| (spec §3), always in [0, 1].
func (c *CandidateSystem) Wholeness() float64 {
	universe := c.Model.RequiredGeneCount()
	if universe == 0 {
		return 0
	}
	return float64(c.GeneCount()) / float64(universe)
}

// Occupancy returns sys_occ, floor(mean count of each required
// component) across the candidate's mandatory and accessory genes
// (spec §3).
func (c *CandidateSystem) Occupancy() int {
	required := append(c.Model.GenesWithRole(model.RoleMandatory), c.Model.GenesWithRole(model.RoleAccessory)...)
	if len(required) == 0 {
		return 0
	}
	counts := make(map[string]int, len(c.Hits))
	for _, h := range c.Hits {
		counts[h.Gene.FunctionName()]++
	}
	var sum int
	for _, g := range required {
		sum += counts[g.FunctionName()]
	}
	return int(math.Floor(float64(sum) / float64(len(required))))
}

// RejectedCandidate records a combination that failed one or more of
// spec §4.4's checks, kept for the rejected-candidates report (spec
// §6.4). Reasons is ordered the way the checks ran (spec §3, §7).
type RejectedCandidate struct {
	Replicon string
	Model    *model.Model
	Clusters []*cluster.Cluster
	Hits     []*hit.ModelHit
	Reasons  []string
}

// Build runs the Candidate Builder for one (model, replicon) pair against
// a Clustering Engine result (spec §4.4).
func Build(m *model.Model, repliconName string, res *cluster.Result) ([]*CandidateSystem, []*RejectedCandidate) {
	if len(res.Clusters) == 0 {
		return nil, []*RejectedCandidate{{
			Replicon: repliconName,
			Model:    m,
			Reasons:  []string{"NO_CLUSTER"},
		}}
	}

	b := &builder{
		model:          m,
		replicon:       repliconName,
		forbiddenByPos: forbiddenIndex(res.Forbidden),
	}

	clusterSets := enumerateClusterSets(res.Clusters, m.MultiLoci, m.EffectiveMaxNbGenes())
	pool := append(append([]*hit.ModelHit{}, res.Loners...), res.MultiModel...)

	seen := map[string]bool{} // dedup identical hit contents (spec §4.4 enumeration policy)
	var accepted []*CandidateSystem
	var rejected []*RejectedCandidate
	ordinal := 0

	for _, cs := range clusterSets {
		clusterHits := hitsOf(cs)
		for _, poolSubset := range enumerateSubsets(pool, m.EffectiveMaxNbGenes()-len(clusterHits)) {
			allHits := mergeHits(clusterHits, poolSubset)
			if len(allHits) == 0 || len(allHits) > m.EffectiveMaxNbGenes() {
				continue
			}
			key := contentKey(allHits)
			if seen[key] {
				continue
			}

			verdict, reasons := b.evaluate(allHits)
			if !verdict {
				rejected = append(rejected, &RejectedCandidate{
					Replicon: repliconName,
					Model:    m,
					Clusters: cs,
					Hits:     allHits,
					Reasons:  reasons,
				})
				continue
			}
			seen[key] = true

			loners, multi := splitPool(poolSubset)
			c := &CandidateSystem{
				Replicon: repliconName,
				Model:    m,
				Clusters: cs,
				Loners:   loners,
				Multi:    multi,
				Hits:     allHits,
			}
			c.ID = systemID(repliconName, m.FQN, c.MinPosition(), ordinal)
			ordinal++
			accepted = append(accepted, c)
		}
	}

	accepted = dropSubsets(accepted)
	warnLonerAdequacy(res.Loners, accepted)
	return accepted, rejected
}

type builder struct {
	model          *model.Model
	replicon       string
	forbiddenByPos map[int]*hit.ModelHit
}

// evaluate applies spec §4.4 steps 2-4, accumulating every failing check
// instead of stopping at the first one: spec §3 requires a Rejected
// Candidate to carry an ordered list of reason codes.
func (b *builder) evaluate(hits []*hit.ModelHit) (bool, []string) {
	var reasons []string

	if f := b.forbiddenWithin(hits); f != nil {
		reasons = append(reasons, fmt.Sprintf("FORBIDDEN_PRESENT(%s)", f.Gene.Name()))
	}

	mandatory := countDistinctByRole(hits, model.RoleMandatory)
	if mandatory < b.model.MinMandatoryGenesRequired {
		reasons = append(reasons, fmt.Sprintf("MANDATORY_QUORUM_NOT_REACHED(%d,%d)", b.model.MinMandatoryGenesRequired, mandatory))
	}

	total := mandatory + countDistinctByRole(hits, model.RoleAccessory)
	if total < b.model.MinGenesRequired {
		reasons = append(reasons, fmt.Sprintf("GENES_QUORUM_NOT_REACHED(%d,%d)", b.model.MinGenesRequired, total))
	}

	return len(reasons) == 0, reasons
}

// forbiddenWithin reports a forbidden hit whose position falls inside the
// span of the candidate's own hits, i.e. a forbidden gene found among the
// candidate's loci (spec §4.4 step 2; spec §4.3 step 1's "retained for
// later rejection reasoning").
func (b *builder) forbiddenWithin(hits []*hit.ModelHit) *hit.ModelHit {
	if len(b.forbiddenByPos) == 0 {
		return nil
	}
	min, max := hits[0].Position, hits[0].Position
	for _, h := range hits[1:] {
		if h.Position < min {
			min = h.Position
		}
		if h.Position > max {
			max = h.Position
		}
	}
	for pos, f := range b.forbiddenByPos {
		if pos >= min && pos <= max {
			return f
		}
	}
	return nil
}

// warnLonerAdequacy implements spec §7/§8 scenario 5's loner-adequacy
// check: a loner gene present in fewer physical occurrences than the
// number of accepted candidates that want to consume one of its hits
// cannot supply every candidate a distinct occurrence. Every candidate
// sharing that gene's hits gets the warning, since the builder has no
// way to know which one the resolver will eventually keep.
func warnLonerAdequacy(loners []*hit.ModelHit, candidates []*CandidateSystem) {
	occurrences := make(map[string]map[*hit.Hit]bool)
	for _, l := range loners {
		set := occurrences[l.Gene.FunctionName()]
		if set == nil {
			set = make(map[*hit.Hit]bool)
			occurrences[l.Gene.FunctionName()] = set
		}
		set[l.Hit] = true
	}

	consumers := make(map[string]map[*CandidateSystem]bool)
	for _, c := range candidates {
		for _, l := range c.Loners {
			name := l.Gene.FunctionName()
			set := consumers[name]
			if set == nil {
				set = make(map[*CandidateSystem]bool)
				consumers[name] = set
			}
			set[c] = true
		}
	}

	for name, used := range consumers {
		n := len(occurrences[name])
		if n == 0 || len(used) <= n {
			continue
		}
		var ids []string
		for c := range used {
			ids = append(ids, c.ID)
		}
		sort.Strings(ids)
		msg := fmt.Sprintf("WARNING Loner: there is only %d occurrence(s) of loner '%s' and %d potential systems %v", n, name, len(used), ids)
		for c := range used {
			c.Warnings = append(c.Warnings, msg)
		}
	}
}

func countDistinctByRole(hits []*hit.ModelHit, role model.Role) int {
	seen := map[string]bool{}
	for _, h := range hits {
		if h.Status == role {
			seen[h.Gene.FunctionName()] = true
		}
	}
	return len(seen)
}

func hitsOf(cs []*cluster.Cluster) []*hit.ModelHit {
	var out []*hit.ModelHit
	for _, c := range cs {
		out = append(out, c.Hits...)
	}
	return out
}

func mergeHits(a, b []*hit.ModelHit) []*hit.ModelHit {
	out := append(append([]*hit.ModelHit{}, a...), b...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func splitPool(hits []*hit.ModelHit) (loners, multi []*hit.ModelHit) {
	for _, h := range hits {
		if h.Loner {
			loners = append(loners, h)
		} else if h.MultiModel {
			multi = append(multi, h)
		}
	}
	return
}

func forbiddenIndex(forbidden []*hit.ModelHit) map[int]*hit.ModelHit {
	idx := make(map[int]*hit.ModelHit, len(forbidden))
	for _, f := range forbidden {
		idx[f.Position] = f
	}
	return idx
}

func contentKey(hits []*hit.ModelHit) string {
	key := ""
	for _, h := range hits {
		key += fmt.Sprintf("%d:%s|", h.Position, h.ProteinID)
	}
	return key
}

// systemID derives a deterministic id from (replicon, model_fqn, minimum
// hit position, ordinal) so the same inputs always reproduce the same id
// (spec §4.4 step 6, §5).
func systemID(replicon, fqn string, minPos, ordinal int) string {
	key := fmt.Sprintf("%s|%s|%d|%d", replicon, fqn, minPos, ordinal)
	return uuid.NewMD5(macsylibNamespace, []byte(key)).String()
}

// enumerateClusterSets builds every cluster combination spec §4.4 allows:
// singletons when the model is not multi_loci, otherwise any non-empty
// subset whose aggregate distinct-gene count (a cluster's Functions, not
// its raw hit count — two hits on the same gene/exchangeable pair cost
// one slot against maxGenes) does not exceed maxGenes.
func enumerateClusterSets(clusters []*cluster.Cluster, multiLoci bool, maxGenes int) [][]*cluster.Cluster {
	if len(clusters) == 0 {
		return nil
	}
	if !multiLoci {
		sets := make([][]*cluster.Cluster, 0, len(clusters))
		for _, c := range clusters {
			if len(c.Functions()) <= maxGenes {
				sets = append(sets, []*cluster.Cluster{c})
			}
		}
		return sets
	}

	var sets [][]*cluster.Cluster
	var rec func(start int, current []*cluster.Cluster, size int)
	rec = func(start int, current []*cluster.Cluster, size int) {
		if len(current) > 0 {
			cp := append([]*cluster.Cluster{}, current...)
			sets = append(sets, cp)
		}
		for i := start; i < len(clusters); i++ {
			n := size + len(clusters[i].Functions())
			if n > maxGenes {
				continue
			}
			rec(i+1, append(current, clusters[i]), n)
		}
	}
	rec(0, nil, 0)
	return sets
}

// enumerateSubsets returns every subset of pool (including the empty
// subset) whose size does not exceed budget; budget < 0 yields only the
// empty subset.
func enumerateSubsets(pool []*hit.ModelHit, budget int) [][]*hit.ModelHit {
	subsets := [][]*hit.ModelHit{nil}
	if budget < 0 {
		return subsets
	}
	for _, h := range pool {
		next := make([][]*hit.ModelHit, 0, len(subsets)*2)
		for _, s := range subsets {
			next = append(next, s)
			if len(s) < budget {
				next = append(next, append(append([]*hit.ModelHit{}, s...), h))
			}
		}
		subsets = next
	}
	return subsets
}

// dropSubsets implements spec §4.4's "discard any combination that is a
// strict subset of an already-accepted combination with identical hit
// contents" by removing every candidate whose hit set is properly
// contained in another candidate's hit set.
func dropSubsets(cands []*CandidateSystem) []*CandidateSystem {
	sets := make([]map[*hit.Hit]bool, len(cands))
	for i, c := range cands {
		s := make(map[*hit.Hit]bool, len(c.Hits))
		for _, h := range c.Hits {
			s[h.Hit] = true
		}
		sets[i] = s
	}

	keep := make([]bool, len(cands))
	for i := range cands {
		keep[i] = true
	}
	for i := range cands {
		for j := range cands {
			if i == j || !keep[i] {
				continue
			}
			if len(sets[i]) < len(sets[j]) && isSubset(sets[i], sets[j]) {
				keep[i] = false
			}
		}
	}

	out := make([]*CandidateSystem, 0, len(cands))
	for i, c := range cands {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

func isSubset(a, b map[*hit.Hit]bool) bool {
	for h := range a {
		if !b[h] {
			return false
		}
	}
	return true
}
