package queue

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/models"
)

// Dispatcher routes job types to registered handlers. Each registration
// names the parameters its handler accepts; dispatch filters the payload to
// that set so ancillary fields never reach handlers.
type Dispatcher struct {
	specs  map[models.JobType]handlerSpec
	logger arbor.ILogger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{
		specs:  make(map[models.JobType]handlerSpec),
		logger: logger,
	}
}

// Register binds a job type to a handler with its allowed parameter names
func (d *Dispatcher) Register(jobType models.JobType, params []string, handler Handler) {
	d.specs[jobType] = handlerSpec{handler: handler, params: params}
	d.logger.Debug().
		Str("job_type", string(jobType)).
		Msg("Job handler registered")
}

// Knows reports whether a handler is registered for the job type
func (d *Dispatcher) Knows(jobType models.JobType) bool {
	_, ok := d.specs[jobType]
	return ok
}

// Dispatch filters the payload and runs the handler
func (d *Dispatcher) Dispatch(ctx context.Context, job *models.Job, report ProgressFunc) (map[string]interface{}, error) {
	spec, ok := d.specs[job.Type]
	if !ok {
		return nil, fmt.Errorf("no handler for job type %q", job.Type)
	}

	filtered := make(map[string]interface{}, len(spec.params))
	for _, param := range spec.params {
		if value, ok := job.Payload[param]; ok {
			filtered[param] = value
		}
	}

	return spec.handler(ctx, job, filtered, report)
}
