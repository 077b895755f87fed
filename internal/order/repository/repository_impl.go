package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pawprintlabs/pawprint/internal/order/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(orders).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Take(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).
		Where("token = ?", token).
		Take(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindByCheckoutRef(ctx context.Context, db *gorm.DB, ref string) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := db.WithContext(ctx).
		Where("checkout_ref = ?", ref).
		Order("created_at asc, id asc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) FindByTokens(ctx context.Context, db *gorm.DB, tokens []string) ([]*domain.Order, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	var orders []*domain.Order
	err := db.WithContext(ctx).
		Where("token IN ?", tokens).
		Order("created_at asc, id asc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET payment_status = ?, paid_at = ?, updated_at = ?
		 WHERE id IN ? AND payment_status = ?`,
		domain.PaymentStatusPaid,
		now,
		now,
		ids,
		domain.PaymentStatusPending,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ClaimGeneration(ctx context.Context, db *gorm.DB, id snowflake.ID, maxAttempts int, now time.Time) (*domain.Order, bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET generation_state = ?, attempt = attempt + 1, started_at = ?, retry_at = NULL, updated_at = ?
		 WHERE id = ?
		   AND payment_status = ?
		   AND generation_state IN (?, ?)
		   AND attempt < ?
		   AND (retry_at IS NULL OR retry_at <= ?)`,
		domain.GenerationGenerating,
		now,
		now,
		id,
		domain.PaymentStatusPaid,
		domain.GenerationNotStarted,
		domain.GenerationRetryScheduled,
		maxAttempts,
		now,
	)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}

	order, err := r.FindByID(ctx, db, id)
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

func (r *repo) MarkGenerated(ctx context.Context, db *gorm.DB, id snowflake.ID, content datatypes.JSON, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET generation_state = ?, report_content = ?, last_error = '', retry_at = NULL, completed_at = ?, updated_at = ?
		 WHERE id = ? AND generation_state = ?`,
		domain.GenerationGenerated,
		content,
		now,
		now,
		id,
		domain.GenerationGenerating,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ScheduleRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string, retryAt, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET generation_state = ?, last_error = ?, retry_at = ?, updated_at = ?
		 WHERE id = ? AND generation_state = ?`,
		domain.GenerationRetryScheduled,
		lastError,
		retryAt,
		now,
		id,
		domain.GenerationGenerating,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET generation_state = ?, last_error = ?, retry_at = NULL, completed_at = ?, updated_at = ?
		 WHERE id = ? AND generation_state = ?`,
		domain.GenerationFailed,
		lastError,
		now,
		now,
		id,
		domain.GenerationGenerating,
	).Error
}

func (r *repo) ListDueRetries(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		limit = 50
	}
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Select("id").
		Where("generation_state = ? AND retry_at <= ?", domain.GenerationRetryScheduled, now).
		Order("retry_at asc").
		Limit(limit).
		Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) RecoverStuck(ctx context.Context, db *gorm.DB, olderThan time.Time, maxAttempts int, retryAt, now time.Time) (int64, error) {
	const abandoned = "attempt abandoned"

	failed := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET generation_state = ?, last_error = ?, retry_at = NULL, completed_at = ?, updated_at = ?
		 WHERE generation_state = ? AND started_at < ? AND attempt >= ?`,
		domain.GenerationFailed,
		abandoned,
		now,
		now,
		domain.GenerationGenerating,
		olderThan,
		maxAttempts,
	)
	if failed.Error != nil {
		return 0, failed.Error
	}

	retried := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET generation_state = ?, last_error = ?, retry_at = ?, updated_at = ?
		 WHERE generation_state = ? AND started_at < ? AND attempt < ?`,
		domain.GenerationRetryScheduled,
		abandoned,
		retryAt,
		now,
		domain.GenerationGenerating,
		olderThan,
		maxAttempts,
	)
	if retried.Error != nil {
		return failed.RowsAffected, retried.Error
	}

	// A lowered maxAttempts can leave retry_scheduled rows the claim will
	// never accept again; terminalize them instead of re-listing forever.
	stranded := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET generation_state = ?, retry_at = NULL, completed_at = ?, updated_at = ?
		 WHERE generation_state = ? AND attempt >= ?`,
		domain.GenerationFailed,
		now,
		now,
		domain.GenerationRetryScheduled,
		maxAttempts,
	)
	if stranded.Error != nil {
		return failed.RowsAffected + retried.RowsAffected, stranded.Error
	}

	return failed.RowsAffected + retried.RowsAffected + stranded.RowsAffected, nil
}

func (r *repo) ListFailed(ctx context.Context, db *gorm.DB, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var orders []*domain.Order
	err := db.WithContext(ctx).
		Where("generation_state = ?", domain.GenerationFailed).
		Order("completed_at desc, id desc").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) RequeueFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET generation_state = ?, attempt = 0, last_error = '', started_at = NULL, retry_at = NULL, completed_at = NULL, updated_at = ?
		 WHERE id = ? AND generation_state = ?`,
		domain.GenerationNotStarted,
		now,
		id,
		domain.GenerationFailed,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
