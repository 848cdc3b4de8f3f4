package hmmer

import (
	"context"
	"sync"

	"github.com/macsylib/macsylib/pkg/model"
)

// Job is one (gene, profile) HMM search unit (spec §5's scheduling model).
type Job struct {
	Gene    *model.CoreGene
	Profile *Profile
}

// JobResult pairs a Job with its outcome; exactly one of ReportPath or
// Err is set.
type JobResult struct {
	Job        Job
	ReportPath string
	Err        error
}

// RunAll executes jobs across a fixed-size pool of width workers,
// returning one JobResult per job, in the same order as jobs. No
// cross-replicon or cross-gene shared mutable state is touched by the
// runner, so results need no further synchronisation (spec §5).
func RunAll(ctx context.Context, runner *Runner, jobs []Job, width int) []JobResult {
	if width < 1 {
		width = 1
	}

	results := make([]JobResult, len(jobs))
	jobIdx := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < width; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobIdx {
				path, err := runner.Run(ctx, jobs[i].Profile)
				results[i] = JobResult{Job: jobs[i], ReportPath: path, Err: err}
			}
		}()
	}

	for i := range jobs {
		select {
		case jobIdx <- i:
		case <-ctx.Done():
			results[i] = JobResult{Job: jobs[i], Err: ctx.Err()}
		}
	}
	close(jobIdx)
	wg.Wait()

	return results
}
