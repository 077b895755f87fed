package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/pawprintlabs/pawprint/internal/checkout/domain"
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

	Config       config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Processor    domain.ProcessorClient
	OrderRepo    orderdomain.Repository
	OrderService orderdomain.Service
	Orchestrator fulfillmentdomain.Orchestrator
}

type Service struct {
	cfg          config.Config
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	processor    domain.ProcessorClient
	orderRepo    orderdomain.Repository
	orderService orderdomain.Service
	orchestrator fulfillmentdomain.Orchestrator
}

func New(p Params) domain.Service {
	return &Service{
		cfg:          p.Config,
		db:           p.DB,
		log:          p.Log.Named("checkout.service"),
		clock:        p.Clock,
		processor:    p.Processor,
		orderRepo:    p.OrderRepo,
		orderService: p.OrderService,
		orchestrator: p.Orchestrator,
	}
}

func (s *Service) VerifyAndGet(ctx context.Context, req domain.VerifyRequest) (domain.VerifyResponse, error) {
	ref := strings.TrimSpace(req.CheckoutRef)
	if ref == "" {
		return domain.VerifyResponse{}, domain.ErrInvalidReference
	}

	token := strings.TrimSpace(req.OrderToken)
	if token == "" {
		return domain.VerifyResponse{}, orderdomain.ErrInvalidToken
	}

	settlement, err := s.resolveSettlement(ctx, ref)
	if err != nil {
		return domain.VerifyResponse{}, err
	}

	if !settlement.Paid {
		status, err := s.orderService.GetStatus(ctx, token)
		if err != nil {
			return domain.VerifyResponse{}, err
		}
		return domain.VerifyResponse{Paid: false, Order: status}, nil
	}

	orders, err := s.resolveBatch(ctx, ref, settlement)
	if err != nil {
		return domain.VerifyResponse{}, err
	}
	if len(orders) == 0 {
		return domain.VerifyResponse{}, domain.ErrUnknownSession
	}

	ids := make([]snowflake.ID, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}

	marked, err := s.orderRepo.MarkPaid(ctx, s.db, ids, s.clock.Now())
	if err != nil {
		return domain.VerifyResponse{}, err
	}
	if marked > 0 {
		metrics.Fulfillment().IncOrdersPaid(int(marked))
		s.log.Info("checkout verified paid",
			zap.String("checkout_ref", ref),
			zap.Int64("orders_marked", marked),
			zap.Int("batch_size", len(ids)),
		)
	}

	// Dispatch the full batch on every verified call, not only the first.
	// The coordinator's claim rejects anything already handled, so a
	// re-delivered confirmation is harmless and a previously wedged order
	// gets another chance to enter the pipeline.
	s.orchestrator.Dispatch(ctx, ids)

	status, err := s.orderService.GetStatus(ctx, token)
	if err != nil {
		return domain.VerifyResponse{}, err
	}
	return domain.VerifyResponse{Paid: true, Order: status}, nil
}

func (s *Service) resolveSettlement(ctx context.Context, ref string) (domain.Settlement, error) {
	if domain.IsBypassRef(ref) {
		if s.cfg.IsProduction() {
			return domain.Settlement{}, domain.ErrInvalidReference
		}
		s.log.Warn("bypass checkout reference accepted",
			zap.String("checkout_ref", ref),
		)
		return domain.Settlement{Paid: true}, nil
	}
	return s.processor.LookupSettlement(ctx, ref)
}

// resolveBatch prefers the token list the processor returned; a settlement
// without metadata falls back to the reference recorded at intake.
func (s *Service) resolveBatch(ctx context.Context, ref string, settlement domain.Settlement) ([]*orderdomain.Order, error) {
	if len(settlement.OrderTokens) > 0 {
		return s.orderRepo.FindByTokens(ctx, s.db, settlement.OrderTokens)
	}
	return s.orderRepo.FindByCheckoutRef(ctx, s.db, ref)
}
