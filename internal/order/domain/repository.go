package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	InsertBatch(ctx context.Context, db *gorm.DB, orders []*Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByToken(ctx context.Context, db *gorm.DB, token string) (*Order, error)
	FindByCheckoutRef(ctx context.Context, db *gorm.DB, ref string) ([]*Order, error)
	FindByTokens(ctx context.Context, db *gorm.DB, tokens []string) ([]*Order, error)

	// MarkPaid flips pending orders to paid in one statement. Already-paid
	// rows are untouched, so repeated verification is a no-op.
	MarkPaid(ctx context.Context, db *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error)

	// ClaimGeneration is the atomic compare-and-set entry into generating.
	// It succeeds only for a paid order in not_started or retry_scheduled
	// whose retry is due and whose attempt budget is not exhausted; exactly
	// one racing caller wins.
	ClaimGeneration(ctx context.Context, db *gorm.DB, id snowflake.ID, maxAttempts int, now time.Time) (*Order, bool, error)

	// MarkGenerated finalizes a claimed attempt. The returned bool is true
	// only for the invocation that performed the transition, which gates the
	// one-shot delivery notification.
	MarkGenerated(ctx context.Context, db *gorm.DB, id snowflake.ID, content datatypes.JSON, now time.Time) (bool, error)
	ScheduleRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string, retryAt, now time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string, now time.Time) error

	ListDueRetries(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error)

	// RecoverStuck sweeps orders abandoned mid-attempt (process exit between
	// claim and outcome): budget left -> retry_scheduled, exhausted -> failed.
	// Scheduled retries whose attempt count already meets maxAttempts (the
	// budget can shrink on a config reload) are failed as well.
	RecoverStuck(ctx context.Context, db *gorm.DB, olderThan time.Time, maxAttempts int, retryAt, now time.Time) (int64, error)

	ListFailed(ctx context.Context, db *gorm.DB, limit int) ([]*Order, error)

	// RequeueFailed resets a failed order with a fresh budget. Operator-only
	// remediation; the pipeline never calls this.
	RequeueFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
}
