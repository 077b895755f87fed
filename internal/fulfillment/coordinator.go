package fulfillment

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pawprintlabs/pawprint/internal/clock"
	"github.com/pawprintlabs/pawprint/internal/config"
	"github.com/pawprintlabs/pawprint/internal/fulfillment/domain"
	"github.com/pawprintlabs/pawprint/internal/notification"
	"github.com/pawprintlabs/pawprint/internal/observability/metrics"
	orderdomain "github.com/pawprintlabs/pawprint/internal/order/domain"
	"github.com/pawprintlabs/pawprint/internal/providers/generator"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CoordinatorParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      orderdomain.Repository
	Generator generator.Provider
	Notifier  notification.Notifier
	Holder    *config.FulfillmentConfigHolder
}

// Coordinator runs one generation attempt per invocation. The claim is an
// atomic conditional write, so concurrent invocations for the same order
// collapse to a single generator call: only the claim winner proceeds, the
// rest return without side effects.
type coordinator struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      orderdomain.Repository
	generator generator.Provider
	notifier  notification.Notifier
	holder    *config.FulfillmentConfigHolder
}

func NewCoordinator(p CoordinatorParams) domain.Coordinator {
	return &coordinator{
		db:        p.DB,
		log:       p.Log.Named("fulfillment.coordinator"),
		clock:     p.Clock,
		repo:      p.Repo,
		generator: p.Generator,
		notifier:  p.Notifier,
		holder:    p.Holder,
	}
}

func (c *coordinator) Process(ctx context.Context, id snowflake.ID) {
	cfg := c.holder.Get()

	order, claimed, err := c.repo.ClaimGeneration(ctx, c.db, id, cfg.MaxAttempts, c.clock.Now())
	if err != nil {
		c.log.Warn("generation claim failed",
			zap.String("order_id", id.String()),
			zap.Error(err),
		)
		return
	}
	if !claimed {
		// Terminal, unpaid, already in flight, or retry not yet due.
		c.log.Debug("generation claim lost",
			zap.String("order_id", id.String()),
		)
		return
	}

	metrics.Fulfillment().IncAttempt()
	c.log.Info("generation attempt started",
		zap.String("order_token", order.Token),
		zap.Int("attempt", order.Attempt),
	)

	genCtx, cancel := context.WithTimeout(ctx, cfg.GeneratorTimeout)
	started := time.Now()
	result, err := c.generator.Generate(genCtx, generator.Request{
		PetName: order.PetName,
		Profile: order.PetProfile,
	})
	cancel()
	metrics.Fulfillment().ObserveGeneratorDuration(time.Since(started))

	if err != nil {
		c.recordFailure(ctx, order, cfg, err)
		return
	}

	c.recordSuccess(ctx, order, result)
}

func (c *coordinator) recordSuccess(ctx context.Context, order *orderdomain.Order, result generator.Result) {
	transitioned, err := c.repo.MarkGenerated(ctx, c.db, order.ID, datatypes.JSON(result.Content), c.clock.Now())
	if err != nil {
		c.log.Error("generated write failed",
			zap.String("order_token", order.Token),
			zap.Error(err),
		)
		return
	}
	if !transitioned {
		// The claim was revoked underneath us, e.g. by a stuck-row sweep.
		// Whoever owns the row now is responsible for its outcome.
		c.log.Warn("generated write skipped, claim no longer held",
			zap.String("order_token", order.Token),
		)
		return
	}

	metrics.Fulfillment().IncOutcome(metrics.OutcomeGenerated)
	c.log.Info("report generated",
		zap.String("order_token", order.Token),
		zap.Int("attempt", order.Attempt),
	)

	c.notifier.NotifyGenerated(ctx, order)
}

func (c *coordinator) recordFailure(ctx context.Context, order *orderdomain.Order, cfg config.FulfillmentConfig, genErr error) {
	now := c.clock.Now()

	if order.Attempt < cfg.MaxAttempts {
		retryAt := now.Add(cfg.RetryDelay)
		if err := c.repo.ScheduleRetry(ctx, c.db, order.ID, genErr.Error(), retryAt, now); err != nil {
			c.log.Error("retry schedule failed",
				zap.String("order_token", order.Token),
				zap.Error(err),
			)
			return
		}

		metrics.Fulfillment().IncOutcome(metrics.OutcomeRetry)
		c.log.Warn("generation attempt failed, retry scheduled",
			zap.String("order_token", order.Token),
			zap.Int("attempt", order.Attempt),
			zap.Time("retry_at", retryAt),
			zap.Error(genErr),
		)
		return
	}

	if err := c.repo.MarkFailed(ctx, c.db, order.ID, genErr.Error(), now); err != nil {
		c.log.Error("failed write failed",
			zap.String("order_token", order.Token),
			zap.Error(err),
		)
		return
	}

	metrics.Fulfillment().IncOutcome(metrics.OutcomeFailed)
	c.log.Error("generation exhausted retry budget",
		zap.String("order_token", order.Token),
		zap.Int("attempt", order.Attempt),
		zap.Error(genErr),
	)
}
