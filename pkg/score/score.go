// Package score computes CandidateSystem scores from per-hit base
// weights and a per-gene redundancy penalty (spec §4.5).
package score

import (
	"sort"

	"github.com/macsylib/macsylib/pkg/candidate"
	"github.com/macsylib/macsylib/pkg/hit"
	"github.com/macsylib/macsylib/pkg/model"
)

// Weights carries the tunable factors of the base-score formula
// (spec §4.5), sourced from the score_opt configuration group.
type Weights struct {
	MandatoryWeight    float64
	AccessoryWeight    float64
	ExchangeableWeight float64
	OutOfCluster       float64
	RedundancyPenalty  float64
}

// DefaultWeights mirrors the historical HitWeight defaults, with
// RedundancyPenalty set to a value the spec leaves to configuration.
func DefaultWeights() Weights {
	return Weights{
		MandatoryWeight:    1.0,
		AccessoryWeight:    0.5,
		ExchangeableWeight: 0.8,
		OutOfCluster:       0.7,
		RedundancyPenalty:  1.5,
	}
}

// Score is the outcome of scoring one CandidateSystem: the total, which
// reports as sys_score (spec §6.4), and the per-function penalised
// contribution. sys_wholeness and sys_occ do not come from Score; they
// are computed by CandidateSystem.Wholeness and Occupancy.
type Score struct {
	Total      float64
	ByFunction map[string]float64
}

// Base computes base(h) = w_status(h) * w_source(h) * w_ref(h) for one
// ModelHit, given whether it was contributed by a cluster (in-cluster)
// or by the loner/multi-model pool (out-of-cluster).
func Base(h *hit.ModelHit, inCluster bool, w Weights) float64 {
	var wStatus float64
	switch h.Status {
	case model.RoleMandatory:
		wStatus = w.MandatoryWeight
	case model.RoleAccessory:
		wStatus = w.AccessoryWeight
	default:
		wStatus = 0
	}

	wSource := 1.0
	if h.Gene.IsExchangeable() {
		wSource = w.ExchangeableWeight
	}

	wRef := 1.0
	if !inCluster {
		wRef = w.OutOfCluster
	}

	return wStatus * wSource * wRef
}

// Candidate scores a CandidateSystem per spec §4.5: base values are
// grouped by ModelGene function, sorted descending so the first
// (largest) contribution counts fully and each subsequent one is
// divided by RedundancyPenalty; the candidate score is the sum over all
// functions of the penalised contributions.
func Candidate(c *candidate.CandidateSystem, w Weights) Score {
	inCluster := make(map[*hit.Hit]bool, len(c.Hits))
	for _, cl := range c.Clusters {
		for _, h := range cl.Hits {
			inCluster[h.Hit] = true
		}
	}

	contribs := make(map[string][]float64)
	for _, h := range c.Hits {
		funct := h.Gene.FunctionName()
		base := Base(h, inCluster[h.Hit], w)
		contribs[funct] = append(contribs[funct], base)
	}

	byFunction := make(map[string]float64, len(contribs))
	var total float64
	for funct, values := range contribs {
		sort.Sort(sort.Reverse(sort.Float64Slice(values)))
		var sum float64
		for i, v := range values {
			if i == 0 {
				sum += v
			} else {
				sum += v / w.RedundancyPenalty
			}
		}
		byFunction[funct] = sum
		total += sum
	}

	return Score{Total: total, ByFunction: byFunction}
}
