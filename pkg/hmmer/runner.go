package hmmer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// ReportSizeHuman formats a raw report's byte size in human-readable
// form, or "unknown" when the file cannot be stat'ed. No code in the
// repository calls it.
func ReportSizeHuman(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown"
	}
	return humanize.Bytes(uint64(info.Size()))
}

// Runner invokes the external hmmsearch binary for one profile against
// one sequence database, writing its raw tabular report under WorkDir
// (spec §5's "Temporary files for HMM outputs live under a working
// directory ... a run owns the directory for its lifetime").
type Runner struct {
	Bin        string // path to hmmsearch, or "hmmsearch" to resolve from PATH
	WorkDir    string
	SequenceDB string
	EValue     float64
	CPU        int
}

// Run executes hmmsearch for profile and returns the path to the raw
// report it wrote. The caller is responsible for parsing that report
// with pkg/hit.
func (r *Runner) Run(ctx context.Context, profile *Profile) (string, error) {
	if err := os.MkdirAll(r.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("create hmmer work dir %s: %w", r.WorkDir, err)
	}

	outputPath := filepath.Join(r.WorkDir, profile.Gene.Name+".search_hmm.out")
	errPath := filepath.Join(r.WorkDir, profile.Gene.Name+".search_hmm.err")

	cpu := r.CPU
	if cpu < 1 {
		cpu = 1
	}

	args := []string{
		"--cpu", fmt.Sprintf("%d", cpu),
		"-o", outputPath,
		"-E", fmt.Sprintf("%f", r.EValue),
		profile.Path,
		r.SequenceDB,
	}

	cmd := exec.CommandContext(ctx, r.Bin, args...)

	errFile, err := os.Create(errPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", errPath, err)
	}
	defer errFile.Close()
	cmd.Stderr = errFile

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("hmmsearch for %s failed (see %s): %w", profile.Gene.Name, errPath, err)
	}

	return outputPath, nil
}
