package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pawprintlabs/pawprint/internal/clock"
	"github.com/pawprintlabs/pawprint/internal/order/domain"
	"github.com/pawprintlabs/pawprint/internal/order/repository"
	"github.com/pawprintlabs/pawprint/internal/order/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(`
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			token TEXT NOT NULL UNIQUE,
			batch_id INTEGER,
			checkout_ref TEXT NOT NULL DEFAULT '',
			pet_name TEXT NOT NULL,
			pet_profile TEXT NOT NULL DEFAULT '{}',
			contact_email TEXT NOT NULL,
			payment_status TEXT NOT NULL DEFAULT 'pending',
			generation_state TEXT NOT NULL DEFAULT 'not_started',
			attempt INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME,
			retry_at DATETIME,
			last_error TEXT NOT NULL DEFAULT '',
			report_content TEXT,
			paid_at DATETIME,
			completed_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)
	`).Error)

	return db
}

type stubOrchestrator struct {
	mu  sync.Mutex
	ids []snowflake.ID
}

func (o *stubOrchestrator) Dispatch(ctx context.Context, ids []snowflake.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ids = append(o.ids, ids...)
}

func (o *stubOrchestrator) Wait() {}

func (o *stubOrchestrator) dispatched() []snowflake.ID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]snowflake.ID(nil), o.ids...)
}

type fixture struct {
	db    *gorm.DB
	repo  domain.Repository
	node  *snowflake.Node
	clk   *clock.FakeClock
	orch  *stubOrchestrator
	svc   domain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	f := &fixture{
		db:   setupTestDB(t),
		repo: repository.Provide(),
		node: node,
		clk:  clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		orch: &stubOrchestrator{},
	}
	f.svc = service.New(service.Params{
		DB:           f.db,
		Log:          zap.NewNop(),
		GenID:        f.node,
		Clock:        f.clk,
		Repo:         f.repo,
		Orchestrator: f.orch,
	})
	return f
}

func TestCreateBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.svc.CreateBatch(ctx, domain.CreateBatchRequest{
		CheckoutRef:  "cs_test_abc",
		ContactEmail: "owner@example.com",
		Pets: []domain.PetInput{
			{Name: "Biscuit", Profile: map[string]any{"species": "dog"}},
			{Name: "Mochi", Profile: map[string]any{"species": "cat"}},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.BatchID)
	require.Len(t, resp.Orders, 2)

	for _, status := range resp.Orders {
		assert.NotEmpty(t, status.Token)
		assert.Equal(t, domain.PaymentStatusPending, status.PaymentStatus)
		assert.Equal(t, domain.DisplayAwaitingPayment, status.Status)
	}

	// Nothing enters the pipeline before payment is verified.
	assert.Empty(t, f.orch.dispatched())

	orders, err := f.repo.FindByCheckoutRef(ctx, f.db, "cs_test_abc")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestCreateBatchValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pets := func(n int) []domain.PetInput {
		out := make([]domain.PetInput, n)
		for i := range out {
			out[i] = domain.PetInput{Name: "Pet"}
		}
		return out
	}

	_, err := f.svc.CreateBatch(ctx, domain.CreateBatchRequest{ContactEmail: "a@b.c", Pets: nil})
	assert.ErrorIs(t, err, domain.ErrInvalidBatchSize)

	_, err = f.svc.CreateBatch(ctx, domain.CreateBatchRequest{ContactEmail: "a@b.c", Pets: pets(11)})
	assert.ErrorIs(t, err, domain.ErrInvalidBatchSize)

	_, err = f.svc.CreateBatch(ctx, domain.CreateBatchRequest{ContactEmail: "not-an-email", Pets: pets(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.CreateBatch(ctx, domain.CreateBatchRequest{
		ContactEmail: "a@b.c",
		Pets:         []domain.PetInput{{Name: "   "}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPetName)
}

func TestRedeemCreatesPaidOrderAndDispatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	status, err := f.svc.Redeem(ctx, domain.RedeemRequest{
		Code:         "HOLIDAY24",
		ContactEmail: "owner@example.com",
		Pet:          domain.PetInput{Name: "Comet"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, status.PaymentStatus)
	assert.Equal(t, domain.DisplayProcessing, status.Status)

	order, err := f.repo.FindByToken(ctx, f.db, status.Token)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, "redeem:HOLIDAY24", order.CheckoutRef)

	assert.Equal(t, []snowflake.ID{order.ID}, f.orch.dispatched())
}

func TestGetStatusProjection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clk.Now()

	order := &domain.Order{
		ID:            f.node.Generate(),
		Token:         "tok-status",
		PetName:       "Biscuit",
		PetProfile:    datatypes.JSONMap{},
		ContactEmail:  "owner@example.com",
		PaymentStatus: domain.PaymentStatusPaid,
		State:         domain.GenerationRetryScheduled,
		Attempt:       2,
		LastError:     "generator_timeout",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.repo.Insert(ctx, f.db, order))

	// Internal retry churn reads as plain processing.
	status, err := f.svc.GetStatus(ctx, "tok-status")
	require.NoError(t, err)
	assert.Equal(t, domain.DisplayProcessing, status.Status)
	assert.Nil(t, status.Report)

	content := datatypes.JSON([]byte(`{"summary":"excellent"}`))
	_, ok, err := f.repo.ClaimGeneration(ctx, f.db, order.ID, 3, now)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = f.repo.MarkGenerated(ctx, f.db, order.ID, content, now)
	require.NoError(t, err)

	status, err = f.svc.GetStatus(ctx, "tok-status")
	require.NoError(t, err)
	assert.Equal(t, domain.DisplayReady, status.Status)
	assert.Equal(t, "excellent", status.Report["summary"])

	_, err = f.svc.GetStatus(ctx, "no-such-token")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.GetStatus(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestListAndRequeueFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clk.Now()

	order := &domain.Order{
		ID:            f.node.Generate(),
		Token:         "tok-failed",
		PetName:       "Gremlin",
		PetProfile:    datatypes.JSONMap{},
		ContactEmail:  "owner@example.com",
		PaymentStatus: domain.PaymentStatusPaid,
		State:         domain.GenerationFailed,
		Attempt:       3,
		LastError:     "generator_non_success",
		CompletedAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.repo.Insert(ctx, f.db, order))

	failed, err := f.svc.ListFailed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "tok-failed", failed[0].Token)
	assert.Equal(t, 3, failed[0].Attempts)
	assert.Equal(t, "generator_non_success", failed[0].LastError)

	status, err := f.svc.RequeueFailed(ctx, "tok-failed")
	require.NoError(t, err)
	assert.Equal(t, domain.DisplayProcessing, status.Status)
	assert.Equal(t, []snowflake.ID{order.ID}, f.orch.dispatched())

	// A second requeue finds the order no longer failed.
	_, err = f.svc.RequeueFailed(ctx, "tok-failed")
	assert.ErrorIs(t, err, domain.ErrNotFailed)
}
