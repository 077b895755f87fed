package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Orchestrator fans paid orders out to the generation pipeline. Dispatch
// returns once the work is scheduled; each order progresses independently
// and a failure of one never blocks its batch siblings.
type Orchestrator interface {
	Dispatch(ctx context.Context, ids []snowflake.ID)

	// Wait blocks until every dispatched order has reached an outcome for
	// its current attempt. Used on shutdown and by tests.
	Wait()
}

// Coordinator drives a single generation attempt for one order: claim,
// invoke the generator, record the outcome. Invocations on unclaimable
// orders are no-ops.
type Coordinator interface {
	Process(ctx context.Context, id snowflake.ID)
}
