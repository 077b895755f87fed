package fulfillment

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/pawprintlabs/pawprint/internal/fulfillment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type OrchestratorParams struct {
	fx.In

	Log         *zap.Logger
	Coordinator domain.Coordinator
}

// orchestrator fans orders out to the coordinator, one goroutine per order.
// Orders never share mutable state, so there is no pool or queue between
// them; the per-order claim makes duplicate dispatch harmless.
//
// HTTP handlers dispatch while the dispatch worker sits in Wait, so
// completion is tracked with a counted condition variable: a WaitGroup must
// not see Add while a Wait is in flight.
type orchestrator struct {
	log         *zap.Logger
	coordinator domain.Coordinator

	mu       sync.Mutex
	idle     *sync.Cond
	inFlight int
}

func NewOrchestrator(p OrchestratorParams) domain.Orchestrator {
	o := &orchestrator{
		log:         p.Log.Named("fulfillment.orchestrator"),
		coordinator: p.Coordinator,
	}
	o.idle = sync.NewCond(&o.mu)
	return o
}

func (o *orchestrator) Dispatch(ctx context.Context, ids []snowflake.ID) {
	if len(ids) == 0 {
		return
	}

	// Generation must outlive the request that triggered it.
	detached := context.WithoutCancel(ctx)

	o.mu.Lock()
	o.inFlight += len(ids)
	o.mu.Unlock()

	for _, id := range ids {
		go func() {
			defer o.finish()
			o.coordinator.Process(detached, id)
		}()
	}
}

func (o *orchestrator) finish() {
	o.mu.Lock()
	o.inFlight--
	if o.inFlight == 0 {
		o.idle.Broadcast()
	}
	o.mu.Unlock()
}

// Wait blocks until no dispatched order is in flight, including orders
// dispatched after the call started.
func (o *orchestrator) Wait() {
	o.mu.Lock()
	for o.inFlight > 0 {
		o.idle.Wait()
	}
	o.mu.Unlock()
}
