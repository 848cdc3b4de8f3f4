// Package report projects Solution Resolver output into the tabular
// contracts of spec §6.4: TSV files with a `#`-comment preamble, and
// human-readable `.txt` counterparts grouped by system. It never
// recomputes scores or reorders hits — it only projects.
package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/macsylib/macsylib/pkg/candidate"
	"github.com/macsylib/macsylib/pkg/hit"
	"github.com/macsylib/macsylib/pkg/resolve"
	"github.com/macsylib/macsylib/pkg/score"
)

// Columns is the normative column order for best_solution.tsv,
// all_systems.tsv, best_solution_loners.tsv and
// best_solution_multisystems.tsv (spec §6.4).
var Columns = []string{
	"replicon", "hit_id", "gene_name", "hit_pos", "model_fqn", "sys_id",
	"sys_loci", "locus_num", "sys_wholeness", "sys_score", "sys_occ",
	"hit_gene_ref", "hit_status", "hit_seq_len", "hit_i_eval", "hit_score",
	"hit_profile_cov", "hit_seq_cov", "hit_begin_match", "hit_end_match",
	"counterpart", "used_in",
}

// Row is one output line of the system-centric reports.
type Row struct {
	Replicon       string
	HitID          string
	GeneName       string
	HitPos         int
	ModelFQN       string
	SysID          string
	SysLoci        int
	LocusNum       int
	SysWholeness   float64
	SysScore       float64
	SysOcc         int
	HitGeneRef     string
	HitStatus      string
	HitSeqLen      int
	HitIEval       float64
	HitScore       float64
	HitProfileCov  float64
	HitSeqCov      float64
	HitBeginMatch  int
	HitEndMatch    int
	Counterpart    string
	UsedIn         string
}

func (r Row) fields() []string {
	return []string{
		r.Replicon, r.HitID, r.GeneName, strconv.Itoa(r.HitPos), r.ModelFQN, r.SysID,
		strconv.Itoa(r.SysLoci), strconv.Itoa(r.LocusNum), formatFloat(r.SysWholeness),
		formatFloat(r.SysScore), strconv.Itoa(r.SysOcc), r.HitGeneRef, r.HitStatus,
		strconv.Itoa(r.HitSeqLen), strconv.FormatFloat(r.HitIEval, 'g', -1, 64),
		formatFloat(r.HitScore), formatFloat(r.HitProfileCov), formatFloat(r.HitSeqCov),
		strconv.Itoa(r.HitBeginMatch), strconv.Itoa(r.HitEndMatch), r.Counterpart, r.UsedIn,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

// UsedInIndex maps a Hit to the sys_id of every CandidateSystem it
// appears in, across the whole set of systems being reported (spec
// §6.4's used_in column, populated for loner/multi-model hits shared
// by several systems).
func UsedInIndex(systems []*candidate.CandidateSystem) map[*hit.Hit][]string {
	idx := make(map[*hit.Hit][]string)
	for _, sys := range systems {
		for _, h := range sys.Hits {
			idx[h.Hit] = append(idx[h.Hit], sys.ID)
		}
	}
	return idx
}

// RowsForSystem projects one CandidateSystem's hits into report rows.
// wholeness and systemScore are passed in because a row may be reported
// relative to a specific Solution (all_best_solutions.tsv) whose
// wholeness/score the caller already holds; sys_occ is intrinsic to the
// candidate and always comes from CandidateSystem.Occupancy. usedIn is
// shared across the whole report run.
func RowsForSystem(sys *candidate.CandidateSystem, wholeness, systemScore float64, sc score.Score, usedIn map[*hit.Hit][]string) []Row {
	locusOf := make(map[*hit.Hit]int, len(sys.Hits))
	for i, cl := range sys.Clusters {
		for _, h := range cl.Hits {
			locusOf[h.Hit] = i + 1
		}
	}

	occ := sys.Occupancy()

	rows := make([]Row, 0, len(sys.Hits))
	for _, h := range sys.Hits {
		locus, inCluster := locusOf[h.Hit]
		if !inCluster {
			locus = -1
		}
		var others []string
		for _, id := range usedIn[h.Hit] {
			if id != sys.ID {
				others = append(others, id)
			}
		}
		rows = append(rows, Row{
			Replicon:      sys.Replicon,
			HitID:         hitID(h),
			GeneName:      h.Hit.Gene.Name,
			HitPos:        h.Position,
			ModelFQN:      sys.Model.FQN,
			SysID:         sys.ID,
			SysLoci:       len(sys.Clusters),
			LocusNum:      locus,
			SysWholeness:  wholeness,
			SysScore:      systemScore,
			SysOcc:        occ,
			HitGeneRef:    h.Gene.FunctionName(),
			HitStatus:     h.Status.String(),
			HitSeqLen:     h.SeqLength,
			HitIEval:      h.IEvalue,
			HitScore:      h.Score,
			HitProfileCov: h.ProfileCoverage,
			HitSeqCov:     h.SequenceCoverage,
			HitBeginMatch: h.MatchBegin,
			HitEndMatch:   h.MatchEnd,
			Counterpart:   counterpartName(h),
			UsedIn:        strings.Join(others, ","),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].HitPos < rows[j].HitPos })
	return rows
}

// LonerRowsForSystem restricts RowsForSystem's output to the rows
// backed by this candidate's loner hits (spec §6.4's
// best_solution_loners.tsv).
func LonerRowsForSystem(sys *candidate.CandidateSystem, wholeness, systemScore float64, sc score.Score, usedIn map[*hit.Hit][]string) []Row {
	lonerPos := make(map[int]bool, len(sys.Loners))
	for _, l := range sys.Loners {
		lonerPos[l.Position] = true
	}
	return filterRows(RowsForSystem(sys, wholeness, systemScore, sc, usedIn), lonerPos)
}

// MultiSystemRowsForSystem restricts RowsForSystem's output to the rows
// backed by this candidate's multi-model pool hits, sys.Multi (spec
// §6.4's best_solution_multisystems.tsv). multi_system hits that are
// cluster members are not in sys.Multi and are not included.
func MultiSystemRowsForSystem(sys *candidate.CandidateSystem, wholeness, systemScore float64, sc score.Score, usedIn map[*hit.Hit][]string) []Row {
	multiPos := make(map[int]bool, len(sys.Multi))
	for _, h := range sys.Multi {
		multiPos[h.Position] = true
	}
	return filterRows(RowsForSystem(sys, wholeness, systemScore, sc, usedIn), multiPos)
}

func filterRows(rows []Row, keep map[int]bool) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if keep[r.HitPos] {
			out = append(out, r)
		}
	}
	return out
}

func hitID(h *hit.ModelHit) string {
	if h.ProteinID != "" {
		return h.ProteinID
	}
	return fmt.Sprintf("%s_%d", h.Replicon, h.Position)
}

func counterpartName(h *hit.ModelHit) string {
	if h.Counterpart == nil {
		return ""
	}
	return h.Counterpart.Name
}

// WritePreamble writes the `#`-comment header every TSV output carries
// (spec §6.4): tool version, command line, model package version,
// followed by one `# WARNING ...` line per entry in warnings (spec §7's
// propagation policy: resolver timeouts and loner-adequacy warnings are
// inlined as `#`-comments in every output file).
func WritePreamble(w io.Writer, toolVersion, commandLine, modelPackageVersion string, warnings []string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# macsylib %s\n", toolVersion)
	fmt.Fprintf(bw, "# %s\n", commandLine)
	fmt.Fprintf(bw, "# model package version: %s\n", modelPackageVersion)
	for _, warn := range warnings {
		fmt.Fprintf(bw, "# %s\n", warn)
	}
	return bw.Flush()
}

// WriteRows writes the normative header line followed by one tab-joined
// line per row (spec §6.4's "column order is normative").
func WriteRows(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, strings.Join(Columns, "\t"))
	for _, r := range rows {
		fmt.Fprintln(bw, strings.Join(r.fields(), "\t"))
	}
	return bw.Flush()
}

// WriteAllBestSolutions writes all_best_solutions.tsv: the same row shape
// as WriteRows, prefixed by sol_id (spec §6.4).
func WriteAllBestSolutions(w io.Writer, solutions []*resolve.Solution, rowsOf func(*resolve.Solution) []Row) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, strings.Join(append([]string{"sol_id"}, Columns...), "\t"))
	for _, sol := range solutions {
		for _, r := range rowsOf(sol) {
			fmt.Fprintln(bw, strings.Join(append([]string{sol.ID}, r.fields()...), "\t"))
		}
	}
	return bw.Flush()
}

// RejectedRow is one line of rejected_candidates.tsv (spec §6.4).
type RejectedRow struct {
	CandidateID string
	Replicon    string
	ModelFQN    string
	ClusterID   string
	HitID       string
	HitPos      int
	GeneName    string
	Function    string
	Reasons     []string
}

func (r RejectedRow) fields() []string {
	return []string{
		r.CandidateID, r.Replicon, r.ModelFQN, r.ClusterID, r.HitID,
		strconv.Itoa(r.HitPos), r.GeneName, r.Function, strings.Join(r.Reasons, "/"),
	}
}

// WriteRejectedCandidates writes rejected_candidates.tsv: multiple
// reasons for the same candidate are `/`-separated (spec §6.4). A
// candidate with no surviving hits (e.g. NO_CLUSTER, rejected before
// any hit combination was built) still gets one row so its reasons are
// not silently dropped.
func WriteRejectedCandidates(w io.Writer, rejected []*candidate.RejectedCandidate) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, strings.Join([]string{
		"candidate_id", "replicon", "model_fqn", "cluster_id", "hit_id",
		"hit_pos", "gene_name", "function", "reasons",
	}, "\t"))

	for i, rc := range rejected {
		candidateID := fmt.Sprintf("rejected-%d", i)
		clusterID := fmt.Sprintf("%d-cluster(s)", len(rc.Clusters))
		modelFQN := ""
		if rc.Model != nil {
			modelFQN = rc.Model.FQN
		}
		if len(rc.Hits) == 0 {
			row := RejectedRow{
				CandidateID: candidateID, Replicon: rc.Replicon, ModelFQN: modelFQN,
				ClusterID: clusterID, Reasons: rc.Reasons,
			}
			fmt.Fprintln(bw, strings.Join(row.fields(), "\t"))
			continue
		}
		for _, h := range rc.Hits {
			row := RejectedRow{
				CandidateID: candidateID, Replicon: rc.Replicon, ModelFQN: modelFQN,
				ClusterID: clusterID, HitID: hitID(h), HitPos: h.Position,
				GeneName: h.Hit.Gene.Name, Function: h.Gene.FunctionName(), Reasons: rc.Reasons,
			}
			fmt.Fprintln(bw, strings.Join(row.fields(), "\t"))
		}
	}
	return bw.Flush()
}

// WriteSystemsText writes the human-readable counterpart to WriteRows:
// the same information grouped by system, with a blank line between
// systems (spec §6.4's txt counterparts).
func WriteSystemsText(w io.Writer, systems []*candidate.CandidateSystem, rowsOf func(*candidate.CandidateSystem) []Row) error {
	bw := bufio.NewWriter(w)
	for i, sys := range systems {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "system id = %s\n", sys.ID)
		fmt.Fprintf(bw, "model = %s\n", sys.Model.FQN)
		fmt.Fprintf(bw, "replicon = %s\n", sys.Replicon)
		for locus, cl := range sys.Clusters {
			if cl.WrapMerged {
				fmt.Fprintf(bw, "\tlocus %d wraps the replicon origin\n", locus+1)
			}
		}
		for _, r := range rowsOf(sys) {
			fmt.Fprintf(bw, "\t%-20s pos=%-6d status=%-10s gene_ref=%s\n", r.GeneName, r.HitPos, r.HitStatus, r.HitGeneRef)
		}
	}
	return bw.Flush()
}
