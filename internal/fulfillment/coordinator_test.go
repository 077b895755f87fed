package fulfillment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pawprintlabs/pawprint/internal/clock"
	"github.com/pawprintlabs/pawprint/internal/config"
	"github.com/pawprintlabs/pawprint/internal/fulfillment"
	fulfillmentdomain "github.com/pawprintlabs/pawprint/internal/fulfillment/domain"
	orderdomain "github.com/pawprintlabs/pawprint/internal/order/domain"
	orderrepo "github.com/pawprintlabs/pawprint/internal/order/repository"
	"github.com/pawprintlabs/pawprint/internal/providers/generator"
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

// fakeGenerator scripts outcomes per pet name. A nil entry means success.
type fakeGenerator struct {
	mu      sync.Mutex
	scripts map[string][]error
	calls   map[string]int
	delay   time.Duration
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		scripts: make(map[string][]error),
		calls:   make(map[string]int),
	}
}

func (g *fakeGenerator) script(petName string, outcomes ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[petName] = outcomes
}

func (g *fakeGenerator) callCount(petName string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[petName]
}

func (g *fakeGenerator) Generate(ctx context.Context, req generator.Request) (generator.Result, error) {
	g.mu.Lock()
	call := g.calls[req.PetName]
	g.calls[req.PetName] = call + 1
	script := g.scripts[req.PetName]
	delay := g.delay
	g.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if call < len(script) && script[call] != nil {
		return generator.Result{}, script[call]
	}
	return generator.Result{Content: []byte(`{"summary":"report for ` + req.PetName + `"}`)}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	tokens []string
}

func (n *fakeNotifier) NotifyGenerated(ctx context.Context, order *orderdomain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, order.Token)
}

func (n *fakeNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.tokens...)
}

type pipeline struct {
	db          *gorm.DB
	repo        orderdomain.Repository
	node        *snowflake.Node
	clk         *clock.FakeClock
	gen         *fakeGenerator
	notifier    *fakeNotifier
	holder      *config.FulfillmentConfigHolder
	coordinator fulfillmentdomain.Coordinator
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)

	p := &pipeline{
		db:       setupTestDB(t),
		repo:     orderrepo.Provide(),
		node:     node,
		clk:      clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		gen:      newFakeGenerator(),
		notifier: &fakeNotifier{},
		holder: config.NewStaticFulfillmentConfigHolder(config.FulfillmentConfig{
			MaxAttempts:      3,
			RetryDelay:       5 * time.Second,
			GeneratorTimeout: 2 * time.Minute,
			StuckThreshold:   10 * time.Minute,
		}),
	}
	p.coordinator = fulfillment.NewCoordinator(fulfillment.CoordinatorParams{
		DB:        p.db,
		Log:       zap.NewNop(),
		Clock:     p.clk,
		Repo:      p.repo,
		Generator: p.gen,
		Notifier:  p.notifier,
		Holder:    p.holder,
	})
	return p
}

func (p *pipeline) seedPaidOrder(t *testing.T, petName string) *orderdomain.Order {
	t.Helper()

	now := p.clk.Now()
	order := &orderdomain.Order{
		ID:            p.node.Generate(),
		Token:         "tok-" + p.node.Generate().String(),
		PetName:       petName,
		PetProfile:    datatypes.JSONMap{"species": "cat"},
		ContactEmail:  "owner@example.com",
		PaymentStatus: orderdomain.PaymentStatusPaid,
		State:         orderdomain.GenerationNotStarted,
		PaidAt:        &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, p.repo.Insert(context.Background(), p.db, order))
	return order
}

// runToTerminal drives an order through claim/retry cycles until it stops
// moving, advancing the fake clock past each scheduled retry.
func (p *pipeline) runToTerminal(t *testing.T, id snowflake.ID) *orderdomain.Order {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		p.coordinator.Process(ctx, id)

		order, err := p.repo.FindByID(ctx, p.db, id)
		require.NoError(t, err)
		require.NotNil(t, order)

		if order.State.Terminal() {
			return order
		}
		p.clk.Advance(5 * time.Second)
	}

	t.Fatal("order did not reach a terminal state")
	return nil
}

func TestCoordinatorSuccessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	order := p.seedPaidOrder(t, "biscuit")

	p.coordinator.Process(ctx, order.ID)
	p.coordinator.Process(ctx, order.ID)
	p.coordinator.Process(ctx, order.ID)

	got, err := p.repo.FindByID(ctx, p.db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.GenerationGenerated, got.State)
	assert.Equal(t, 1, got.Attempt)
	assert.Equal(t, 1, p.gen.callCount("biscuit"))
	assert.Equal(t, []string{order.Token}, p.notifier.notified())
}

func TestCoordinatorBoundedRetries(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	order := p.seedPaidOrder(t, "gremlin")
	p.gen.script("gremlin",
		generator.ErrNonSuccess,
		generator.ErrTimeout,
		generator.ErrNonSuccess,
		generator.ErrNonSuccess,
	)

	got := p.runToTerminal(t, order.ID)
	assert.Equal(t, orderdomain.GenerationFailed, got.State)
	assert.Equal(t, 3, got.Attempt)
	assert.Equal(t, "generator_non_success", got.LastError)
	assert.Equal(t, 3, p.gen.callCount("gremlin"))
	assert.Empty(t, p.notifier.notified())

	// Terminal means terminal: another dispatch does nothing.
	p.clk.Advance(time.Minute)
	p.coordinator.Process(ctx, order.ID)
	assert.Equal(t, 3, p.gen.callCount("gremlin"))
}

func TestCoordinatorEventualSuccess(t *testing.T) {
	p := newPipeline(t)
	order := p.seedPaidOrder(t, "mochi")
	p.gen.script("mochi", generator.ErrTimeout, generator.ErrNonSuccess, nil)

	got := p.runToTerminal(t, order.ID)
	assert.Equal(t, orderdomain.GenerationGenerated, got.State)
	assert.Equal(t, 3, got.Attempt)
	assert.Empty(t, got.LastError)
	assert.Equal(t, 3, p.gen.callCount("mochi"))
	assert.Equal(t, []string{order.Token}, p.notifier.notified())
}

func TestCoordinatorRetryNotDueBeforeDelay(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	order := p.seedPaidOrder(t, "pepper")
	p.gen.script("pepper", generator.ErrNonSuccess, nil)

	p.coordinator.Process(ctx, order.ID)

	// Retry is scheduled 5s out; an immediate re-dispatch must not claim.
	p.coordinator.Process(ctx, order.ID)
	assert.Equal(t, 1, p.gen.callCount("pepper"))

	p.clk.Advance(5 * time.Second)
	p.coordinator.Process(ctx, order.ID)
	assert.Equal(t, 2, p.gen.callCount("pepper"))

	got, err := p.repo.FindByID(ctx, p.db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.GenerationGenerated, got.State)
}

func TestOrchestratorBatchIndependence(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	alpha := p.seedPaidOrder(t, "alpha")
	bravo := p.seedPaidOrder(t, "bravo")
	charlie := p.seedPaidOrder(t, "charlie")
	p.gen.script("bravo",
		generator.ErrNonSuccess,
		generator.ErrNonSuccess,
		generator.ErrNonSuccess,
	)

	orch := fulfillment.NewOrchestrator(fulfillment.OrchestratorParams{
		Log:         zap.NewNop(),
		Coordinator: p.coordinator,
	})

	ids := []snowflake.ID{alpha.ID, bravo.ID, charlie.ID}
	for i := 0; i < 3; i++ {
		orch.Dispatch(ctx, ids)
		orch.Wait()
		p.clk.Advance(5 * time.Second)
	}

	for _, tc := range []struct {
		order *orderdomain.Order
		state orderdomain.GenerationState
		calls int
	}{
		{alpha, orderdomain.GenerationGenerated, 1},
		{bravo, orderdomain.GenerationFailed, 3},
		{charlie, orderdomain.GenerationGenerated, 1},
	} {
		got, err := p.repo.FindByID(ctx, p.db, tc.order.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.state, got.State, "pet %s", tc.order.PetName)
		assert.Equal(t, tc.calls, got.Attempt, "pet %s", tc.order.PetName)
		assert.Equal(t, tc.calls, p.gen.callCount(tc.order.PetName))
	}

	notified := p.notifier.notified()
	assert.ElementsMatch(t, []string{alpha.Token, charlie.Token}, notified)
}

func TestCoordinatorConcurrentDispatchSingleAttempt(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	order := p.seedPaidOrder(t, "tandem")
	p.gen.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.coordinator.Process(ctx, order.ID)
		}()
	}
	wg.Wait()

	got, err := p.repo.FindByID(ctx, p.db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.GenerationGenerated, got.State)
	assert.Equal(t, 1, got.Attempt)
	assert.Equal(t, 1, p.gen.callCount("tandem"))
	assert.Len(t, p.notifier.notified(), 1)
}

func TestCoordinatorRedeemedOrderSameContract(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	// Promotional redemptions are born paid and flow through the same
	// claim path as verified checkouts.
	now := p.clk.Now()
	order := &orderdomain.Order{
		ID:            p.node.Generate(),
		Token:         "tok-redeem",
		CheckoutRef:   "redeem:HOLIDAY24",
		PetName:       "comet",
		PetProfile:    datatypes.JSONMap{},
		ContactEmail:  "owner@example.com",
		PaymentStatus: orderdomain.PaymentStatusPaid,
		State:         orderdomain.GenerationNotStarted,
		PaidAt:        &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, p.repo.Insert(ctx, p.db, order))

	got := p.runToTerminal(t, order.ID)
	assert.Equal(t, orderdomain.GenerationGenerated, got.State)
	assert.Equal(t, 1, got.Attempt)
	assert.NotEmpty(t, got.ReportContent)
	assert.Equal(t, []string{"tok-redeem"}, p.notifier.notified())
}
