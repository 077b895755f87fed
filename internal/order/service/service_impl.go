package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/pawprintlabs/pawprint/internal/clock"
	fulfillment "github.com/pawprintlabs/pawprint/internal/fulfillment/domain"
	"github.com/pawprintlabs/pawprint/internal/observability/metrics"
	"github.com/pawprintlabs/pawprint/internal/order/domain"
	pkgdb "github.com/pawprintlabs/pawprint/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	Orchestrator fulfillment.Orchestrator
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	orchestrator fulfillment.Orchestrator
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("order.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		orchestrator: p.Orchestrator,
	}
}

func (s *Service) CreateBatch(ctx context.Context, req domain.CreateBatchRequest) (domain.CreateBatchResponse, error) {
	if len(req.Pets) == 0 || len(req.Pets) > domain.MaxBatchSize {
		return domain.CreateBatchResponse{}, domain.ErrInvalidBatchSize
	}

	email := strings.TrimSpace(req.ContactEmail)
	if email == "" || !strings.Contains(email, "@") {
		return domain.CreateBatchResponse{}, domain.ErrInvalidEmail
	}

	now := s.clock.Now()
	batchID := s.genID.Generate()

	orders := make([]*domain.Order, 0, len(req.Pets))
	for _, pet := range req.Pets {
		name := strings.TrimSpace(pet.Name)
		if name == "" {
			return domain.CreateBatchResponse{}, domain.ErrInvalidPetName
		}

		profile := datatypes.JSONMap(pet.Profile)
		if profile == nil {
			profile = datatypes.JSONMap{}
		}

		orders = append(orders, &domain.Order{
			ID:            s.genID.Generate(),
			Token:         uuid.NewString(),
			BatchID:       &batchID,
			CheckoutRef:   strings.TrimSpace(req.CheckoutRef),
			PetName:       name,
			PetProfile:    profile,
			ContactEmail:  email,
			PaymentStatus: domain.PaymentStatusPending,
			State:         domain.GenerationNotStarted,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if err := s.repo.InsertBatch(ctx, s.db, orders); err != nil {
		if !pkgdb.IsDuplicateKeyErr(err) {
			return domain.CreateBatchResponse{}, err
		}
		// Token collision. Mint fresh ones and retry once.
		for _, order := range orders {
			order.Token = uuid.NewString()
		}
		if err := s.repo.InsertBatch(ctx, s.db, orders); err != nil {
			return domain.CreateBatchResponse{}, err
		}
	}

	resp := domain.CreateBatchResponse{
		BatchID: batchID.String(),
		Orders:  make([]domain.OrderStatus, 0, len(orders)),
	}
	for _, order := range orders {
		resp.Orders = append(resp.Orders, projectStatus(order))
	}

	s.log.Info("batch created",
		zap.String("batch_id", batchID.String()),
		zap.Int("orders", len(orders)),
	)

	return resp, nil
}

// Redeem fulfills a pre-paid code without touching the payment processor.
// The order is born paid and enters the pipeline immediately.
func (s *Service) Redeem(ctx context.Context, req domain.RedeemRequest) (domain.OrderStatus, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return domain.OrderStatus{}, domain.ErrInvalidRedeemCode
	}

	email := strings.TrimSpace(req.ContactEmail)
	if email == "" || !strings.Contains(email, "@") {
		return domain.OrderStatus{}, domain.ErrInvalidEmail
	}

	name := strings.TrimSpace(req.Pet.Name)
	if name == "" {
		return domain.OrderStatus{}, domain.ErrInvalidPetName
	}

	profile := datatypes.JSONMap(req.Pet.Profile)
	if profile == nil {
		profile = datatypes.JSONMap{}
	}

	now := s.clock.Now()
	paidAt := now
	order := &domain.Order{
		ID:            s.genID.Generate(),
		Token:         uuid.NewString(),
		CheckoutRef:   "redeem:" + code,
		PetName:       name,
		PetProfile:    profile,
		ContactEmail:  email,
		PaymentStatus: domain.PaymentStatusPaid,
		State:         domain.GenerationNotStarted,
		PaidAt:        &paidAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, order); err != nil {
		if !pkgdb.IsDuplicateKeyErr(err) {
			return domain.OrderStatus{}, err
		}
		order.Token = uuid.NewString()
		if err := s.repo.Insert(ctx, s.db, order); err != nil {
			return domain.OrderStatus{}, err
		}
	}

	metrics.Fulfillment().IncOrdersPaid(1)
	s.orchestrator.Dispatch(ctx, []snowflake.ID{order.ID})

	s.log.Info("redeem accepted",
		zap.String("order_token", order.Token),
	)

	return projectStatus(order), nil
}

func (s *Service) GetStatus(ctx context.Context, token string) (domain.OrderStatus, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.OrderStatus{}, domain.ErrInvalidToken
	}

	order, err := s.repo.FindByToken(ctx, s.db, token)
	if err != nil {
		return domain.OrderStatus{}, err
	}
	if order == nil {
		return domain.OrderStatus{}, domain.ErrNotFound
	}

	return projectStatus(order), nil
}

func (s *Service) ListFailed(ctx context.Context, limit int) ([]domain.FailedOrder, error) {
	orders, err := s.repo.ListFailed(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.FailedOrder, 0, len(orders))
	for _, order := range orders {
		out = append(out, domain.FailedOrder{
			Token:        order.Token,
			PetName:      order.PetName,
			ContactEmail: order.ContactEmail,
			Attempts:     order.Attempt,
			LastError:    order.LastError,
			FailedAt:     order.CompletedAt,
		})
	}
	return out, nil
}

func (s *Service) RequeueFailed(ctx context.Context, token string) (domain.OrderStatus, error) {
	order, err := s.repo.FindByToken(ctx, s.db, strings.TrimSpace(token))
	if err != nil {
		return domain.OrderStatus{}, err
	}
	if order == nil {
		return domain.OrderStatus{}, domain.ErrNotFound
	}

	ok, err := s.repo.RequeueFailed(ctx, s.db, order.ID, s.clock.Now())
	if err != nil {
		return domain.OrderStatus{}, err
	}
	if !ok {
		return domain.OrderStatus{}, domain.ErrNotFailed
	}

	s.orchestrator.Dispatch(ctx, []snowflake.ID{order.ID})

	s.log.Info("failed order requeued",
		zap.String("order_token", order.Token),
	)

	order, err = s.repo.FindByID(ctx, s.db, order.ID)
	if err != nil {
		return domain.OrderStatus{}, err
	}
	if order == nil {
		return domain.OrderStatus{}, domain.ErrNotFound
	}
	return projectStatus(order), nil
}

// projectStatus maps internal pipeline state to the customer-facing view.
// processing covers everything between payment and an outcome, including
// scheduled retries.
func projectStatus(order *domain.Order) domain.OrderStatus {
	status := domain.OrderStatus{
		Token:         order.Token,
		PetName:       order.PetName,
		PaymentStatus: order.PaymentStatus,
		CreatedAt:     order.CreatedAt,
		CompletedAt:   order.CompletedAt,
	}

	switch {
	case order.PaymentStatus != domain.PaymentStatusPaid:
		status.Status = domain.DisplayAwaitingPayment
	case order.State == domain.GenerationGenerated:
		status.Status = domain.DisplayReady
		status.Report = decodeReport(order.ReportContent)
	case order.State == domain.GenerationFailed:
		status.Status = domain.DisplayFailed
	default:
		status.Status = domain.DisplayProcessing
	}

	return status
}

func decodeReport(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var report map[string]any
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil
	}
	return report
}
