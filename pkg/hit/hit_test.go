package hit

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsylib/macsylib/pkg/model"
)

func fixtureGene() *model.CoreGene {
	return &model.CoreGene{Family: "TFF-SF", Name: "gspD", ProfilePath: "gspD.hmm"}
}

const fixtureReport = "PROT_00001\tR1\t1\t500\tgspD\t1e-10\t120.5\t0.95\t0.90\t10\t480\n" +
	"PROT_00003\tR1\t3\t480\tgspD\t1e-5\t80.0\t0.40\t0.90\t10\t460\n" +
	"# a comment\n\n" +
	"PROT_00004\tR1\t4\t500\tgspD\t1e-12\t150.0\t0.98\t0.95\t5\t490\n"

func TestParseReportAndSelection(t *testing.T) {
	gene := fixtureGene()
	hits, err := ParseReport(strings.NewReader(fixtureReport), gene)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.True(t, hits[0].Selected(1e-8, 0.5))
	assert.False(t, hits[1].Selected(1e-8, 0.5)) // profile_coverage 0.40 < 0.5
	assert.True(t, hits[2].Selected(1e-8, 0.5))
}

func TestParseReportRejectsGeneNameMismatch(t *testing.T) {
	gene := &model.CoreGene{Family: "TFF-SF", Name: "other"}
	_, err := ParseReport(strings.NewReader(fixtureReport), gene)
	assert.Error(t, err)
}

func TestOpenReportFileDecompressesGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gspD.tsv.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(fixtureReport))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	rc, err := OpenReportFile(path)
	require.NoError(t, err)
	defer rc.Close()

	hits, err := ParseReport(rc, fixtureGene())
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestStreamIndexesSelectedHitsSortedByPosition(t *testing.T) {
	gene := fixtureGene()
	hits, err := ParseReport(strings.NewReader(fixtureReport), gene)
	require.NoError(t, err)

	s := NewStream()
	require.NoError(t, s.Add(hits, 1e-8, 0.5))
	require.NoError(t, s.Finalize())

	byGene := s.ByGene("R1", gene)
	require.Len(t, byGene, 2)
	assert.Equal(t, 1, byGene[0].Position)
	assert.Equal(t, 4, byGene[1].Position)

	assert.Equal(t, []string{"R1"}, s.Replicons())
}

func TestStreamFinalizeRejectsDuplicatePosition(t *testing.T) {
	gene := fixtureGene()
	h1 := &Hit{Replicon: "R1", Position: 5, ProteinID: "a", Gene: gene, IEvalue: 1e-10, ProfileCoverage: 0.9}
	h2 := &Hit{Replicon: "R1", Position: 5, ProteinID: "b", Gene: gene, IEvalue: 1e-10, ProfileCoverage: 0.9}

	s := NewStream()
	require.NoError(t, s.Add([]*Hit{h1, h2}, 1e-8, 0.5))
	assert.Error(t, s.Finalize())
}

func TestStreamFinalizeKeepsBestScoringHitWhenTwoGenesCollideOnPosition(t *testing.T) {
	geneA := fixtureGene()
	geneB := &model.CoreGene{Family: "TFF-SF", Name: "gspE", ProfilePath: "gspE.hmm"}

	weak := &Hit{Replicon: "R1", Position: 5, ProteinID: "p", Gene: geneA, IEvalue: 1e-10, ProfileCoverage: 0.9, Score: 50.0}
	strong := &Hit{Replicon: "R1", Position: 5, ProteinID: "p", Gene: geneB, IEvalue: 1e-10, ProfileCoverage: 0.9, Score: 150.0}

	s := NewStream()
	require.NoError(t, s.Add([]*Hit{weak, strong}, 1e-8, 0.5))
	require.NoError(t, s.Finalize())

	repliconHits := s.ByReplicon("R1")
	require.Len(t, repliconHits, 1)
	assert.Same(t, strong, repliconHits[0])

	// both genes still see their own hit: a per-gene lookup is unaffected
	// by the cross-gene collision resolved on the merged index.
	assert.Len(t, s.ByGene("R1", geneA), 1)
	assert.Len(t, s.ByGene("R1", geneB), 1)
}
