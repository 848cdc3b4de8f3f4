package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsylib/macsylib/pkg/candidate"
	"github.com/macsylib/macsylib/pkg/cluster"
	"github.com/macsylib/macsylib/pkg/hit"
	"github.com/macsylib/macsylib/pkg/model"
	"github.com/macsylib/macsylib/pkg/score"
)

func buildSystem(t *testing.T) *candidate.CandidateSystem {
	t.Helper()
	cat := model.NewCatalog()
	m := &model.Model{FQN: "Fam/M", MaxNbGenes: 2}
	a := cat.InternGene("Fam", "A", "A.hmm")
	mg := &model.ModelGene{Gene: a, Role: model.RoleMandatory, Model: m}
	m.Genes = []*model.ModelGene{mg}

	h := hit.NewModelHit(&hit.Hit{Replicon: "R", Position: 5, ProteinID: "prot5", Gene: a, SeqLength: 100}, mg)
	cl := &cluster.Cluster{Replicon: "R", Model: m, Hits: []*hit.ModelHit{h}}
	return &candidate.CandidateSystem{ID: "sys-1", Replicon: "R", Model: m, Clusters: []*cluster.Cluster{cl}, Hits: []*hit.ModelHit{h}}
}

func TestRowsForSystemProjectsHitFields(t *testing.T) {
	sys := buildSystem(t)
	sc := score.Candidate(sys, score.DefaultWeights())

	rows := RowsForSystem(sys, 1.0, sc.Total, sc, map[*hit.Hit][]string{})
	require.Len(t, rows, 1)
	assert.Equal(t, "prot5", rows[0].HitID)
	assert.Equal(t, "A", rows[0].GeneName)
	assert.Equal(t, 5, rows[0].HitPos)
	assert.Equal(t, 1, rows[0].LocusNum)
	assert.Equal(t, 1, rows[0].SysLoci)
}

func TestWriteRowsEmitsTabSeparatedHeaderAndRows(t *testing.T) {
	sys := buildSystem(t)
	sc := score.Candidate(sys, score.DefaultWeights())
	rows := RowsForSystem(sys, 1.0, sc.Total, sc, map[*hit.Hit][]string{})

	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, rows))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(Columns, "\t"), lines[0])
	assert.Contains(t, lines[1], "prot5")
}

func TestWriteRejectedCandidatesJoinsReasonsWithSlash(t *testing.T) {
	cat := model.NewCatalog()
	m := &model.Model{FQN: "Fam/M"}
	a := cat.InternGene("Fam", "A", "A.hmm")
	mg := &model.ModelGene{Gene: a, Role: model.RoleMandatory, Model: m}
	h := hit.NewModelHit(&hit.Hit{Replicon: "R", Position: 1, Gene: a}, mg)

	rc := &candidate.RejectedCandidate{
		Replicon: "R",
		Model:    m,
		Hits:     []*hit.ModelHit{h},
		Reasons:  []string{"MANDATORY_QUORUM_NOT_REACHED(2,1)", "FORBIDDEN_PRESENT(F)"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRejectedCandidates(&buf, []*candidate.RejectedCandidate{rc}))
	assert.Contains(t, buf.String(), "MANDATORY_QUORUM_NOT_REACHED(2,1)/FORBIDDEN_PRESENT(F)")
}

func TestWriteRejectedCandidatesHandlesNoClusterWithoutHits(t *testing.T) {
	m := &model.Model{FQN: "Fam/M"}
	rc := &candidate.RejectedCandidate{Replicon: "R", Model: m, Reasons: []string{"NO_CLUSTER"}}

	var buf bytes.Buffer
	require.NoError(t, WriteRejectedCandidates(&buf, []*candidate.RejectedCandidate{rc}))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "NO_CLUSTER")
}

func TestWritePreambleEmitsWarningComments(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePreamble(&buf, "0.1.0", "macsylib -cmd", "Fam=1.0", []string{
		"WARNING Loner: there is only 1 occurrence(s) of loner 'L' and 2 potential systems [a b]",
	}))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "# WARNING Loner: there is only 1 occurrence(s) of loner 'L' and 2 potential systems [a b]", lines[3])
}

func TestLonerAndMultiSystemRowsForSystemFilterByKind(t *testing.T) {
	cat := model.NewCatalog()
	m := &model.Model{FQN: "Fam/M"}
	a := cat.InternGene("Fam", "A", "A.hmm")
	l := cat.InternGene("Fam", "L", "L.hmm")
	mgA := &model.ModelGene{Gene: a, Role: model.RoleMandatory, Model: m}
	mgL := &model.ModelGene{Gene: l, Role: model.RoleAccessory, Loner: true, Model: m}
	m.Genes = []*model.ModelGene{mgA, mgL}

	clusterHit := hit.NewModelHit(&hit.Hit{Replicon: "R", Position: 1, Gene: a}, mgA)
	lonerHit := hit.NewModelHit(&hit.Hit{Replicon: "R", Position: 50, Gene: l}, mgL)
	cl := &cluster.Cluster{Replicon: "R", Model: m, Hits: []*hit.ModelHit{clusterHit}}

	sys := &candidate.CandidateSystem{
		ID: "sys-1", Replicon: "R", Model: m,
		Clusters: []*cluster.Cluster{cl},
		Loners:   []*hit.ModelHit{lonerHit},
		Hits:     []*hit.ModelHit{clusterHit, lonerHit},
	}
	sc := score.Candidate(sys, score.DefaultWeights())

	lonerRows := LonerRowsForSystem(sys, sys.Wholeness(), sc.Total, sc, map[*hit.Hit][]string{})
	require.Len(t, lonerRows, 1)
	assert.Equal(t, 50, lonerRows[0].HitPos)

	multiRows := MultiSystemRowsForSystem(sys, sys.Wholeness(), sc.Total, sc, map[*hit.Hit][]string{})
	assert.Empty(t, multiRows)
}

func TestWriteSystemsTextAnnotatesWrapMergedLocus(t *testing.T) {
	sys := buildSystem(t)
	sys.Clusters[0].WrapMerged = true

	rowsOf := func(s *candidate.CandidateSystem) []Row {
		sc := score.Candidate(s, score.DefaultWeights())
		return RowsForSystem(s, 1.0, sc.Total, sc, map[*hit.Hit][]string{})
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSystemsText(&buf, []*candidate.CandidateSystem{sys}, rowsOf))
	assert.Contains(t, buf.String(), "locus 1 wraps the replicon origin")
}

func TestWriteSystemsTextSeparatesSystemsWithBlankLine(t *testing.T) {
	sysA := buildSystem(t)
	sysB := buildSystem(t)
	sysB.ID = "sys-2"

	rowsOf := func(s *candidate.CandidateSystem) []Row {
		sc := score.Candidate(s, score.DefaultWeights())
		return RowsForSystem(s, 1.0, sc.Total, sc, map[*hit.Hit][]string{})
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSystemsText(&buf, []*candidate.CandidateSystem{sysA, sysB}, rowsOf))
	assert.Contains(t, buf.String(), "\n\nsystem id = sys-2")
}
