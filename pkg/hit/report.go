package hit

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/macsylib/macsylib/pkg/model"
)

// ParseReport reads one gene's raw HMM report: tab-separated records of
// hit_id, replicon_name, position, seq_length, gene_name, i_eval, score,
// profile_coverage, sequence_coverage, begin_match, end_match (one record
// per line, no header). gene_name in the file is cross-checked against
// gene's own name. Blank lines and "#"-prefixed comments are skipped.
func ParseReport(r io.Reader, gene *model.CoreGene) ([]*Hit, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var hits []*Hit
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		h, err := parseReportLine(line, gene)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		hits = append(hits, h)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

// OpenReportFile opens path for reading, transparently decompressing it
// when it ends in ".gz" (spec §5's "may be gzip-compressed; stream-decode").
// The returned closer closes both the gzip reader and the underlying file.
func OpenReportFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip report %s: %w", path, err)
	}
	return gzipFileCloser{gz, f}, nil
}

// gzipFileCloser closes the gzip stream before the underlying file.
type gzipFileCloser struct {
	*gzip.Reader
	file *os.File
}

func (g gzipFileCloser) Close() error {
	if err := g.Reader.Close(); err != nil {
		g.file.Close()
		return err
	}
	return g.file.Close()
}

func parseReportLine(line string, gene *model.CoreGene) (*Hit, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 11 {
		return nil, fmt.Errorf("expected 11 tab-separated fields, got %d", len(fields))
	}

	proteinID := fields[0]
	replicon := fields[1]
	position, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}
	seqLength, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, fmt.Errorf("seq_length: %w", err)
	}
	geneName := fields[4]
	if geneName != gene.Name {
		return nil, fmt.Errorf("gene_name column %q does not match report gene %q", geneName, gene.Name)
	}
	iEval, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return nil, fmt.Errorf("i_eval: %w", err)
	}
	score, err := strconv.ParseFloat(fields[6], 64)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	profileCov, err := strconv.ParseFloat(fields[7], 64)
	if err != nil {
		return nil, fmt.Errorf("profile_coverage: %w", err)
	}
	seqCov, err := strconv.ParseFloat(fields[8], 64)
	if err != nil {
		return nil, fmt.Errorf("sequence_coverage: %w", err)
	}
	beginMatch, err := strconv.Atoi(fields[9])
	if err != nil {
		return nil, fmt.Errorf("begin_match: %w", err)
	}
	endMatch, err := strconv.Atoi(fields[10])
	if err != nil {
		return nil, fmt.Errorf("end_match: %w", err)
	}

	return &Hit{
		Replicon:         replicon,
		Position:         position,
		ProteinID:        proteinID,
		Gene:             gene,
		IEvalue:          iEval,
		Score:            score,
		ProfileCoverage:  profileCov,
		SequenceCoverage: seqCov,
		SeqLength:        seqLength,
		MatchBegin:       beginMatch,
		MatchEnd:         endMatch,
	}, nil
}
