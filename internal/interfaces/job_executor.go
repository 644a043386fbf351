// -----------------------------------------------------------------------
// Job Executor Interface - Common interface for job execution engines
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/atlas/pkg/models"
)

// JobExecutor defines the interface the worker loop uses to run jobs in a
// type-agnostic manner.
type JobExecutor interface {
	// Process runs the job to completion and returns the payload that is
	// published back to the submitting client. Failures are reported
	// through the returned error; the worker loop owns the status record
	// transitions on both paths. Executors never requeue or retry.
	Process(ctx context.Context, job models.Job) (*models.JobResult, error)
}
