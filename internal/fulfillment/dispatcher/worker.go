package dispatcher

import (
	"context"
	"time"

	"github.com/pawprintlabs/pawprint/internal/clock"
	"github.com/pawprintlabs/pawprint/internal/config"
	fulfillmentdomain "github.com/pawprintlabs/pawprint/internal/fulfillment/domain"
	"github.com/pawprintlabs/pawprint/internal/observability/metrics"
	orderdomain "github.com/pawprintlabs/pawprint/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Repo         orderdomain.Repository
	Orchestrator fulfillmentdomain.Orchestrator
	Holder       *config.FulfillmentConfigHolder
	Config       Config `optional:"true"`
}

// Worker re-enters orders whose retry came due and sweeps up rows abandoned
// mid-attempt by a crashed process. It only decides WHEN an order re-enters
// the pipeline; all state transitions stay in the coordinator's claim.
type Worker struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	repo         orderdomain.Repository
	orchestrator fulfillmentdomain.Orchestrator
	holder       *config.FulfillmentConfigHolder
	cfg          Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:           p.DB,
		log:          p.Log.Named("fulfillment.dispatcher"),
		clock:        p.Clock,
		repo:         p.Repo,
		orchestrator: p.Orchestrator,
		holder:       p.Holder,
		cfg:          p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("dispatch run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one dispatch cycle and waits for the dispatched attempts
// to finish.
func (w *Worker) RunOnce(parentCtx context.Context) error {
	ctx, cancel := context.WithTimeout(parentCtx, w.cfg.RunTimeout)
	defer cancel()

	metrics.Fulfillment().IncDispatcherRun()

	fcfg := w.holder.Get()
	now := w.clock.Now()

	recovered, err := w.repo.RecoverStuck(ctx, w.db,
		now.Add(-fcfg.StuckThreshold),
		fcfg.MaxAttempts,
		now.Add(fcfg.RetryDelay),
		now,
	)
	if err != nil {
		return err
	}
	if recovered > 0 {
		metrics.Fulfillment().IncRecovered(int(recovered))
		w.log.Warn("recovered stuck orders", zap.Int64("count", recovered))
	}

	ids, err := w.repo.ListDueRetries(ctx, w.db, now, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	metrics.Fulfillment().IncDispatcherClaims(len(ids))
	w.log.Info("dispatching due retries", zap.Int("count", len(ids)))

	w.orchestrator.Dispatch(ctx, ids)
	w.orchestrator.Wait()
	return nil
}
