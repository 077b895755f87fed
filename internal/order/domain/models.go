package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// GenerationState tracks an order's progress through report generation.
// Transitions are forward-only: not_started -> generating ->
// (retry_scheduled -> generating)* -> generated | failed.
type GenerationState string

const (
	GenerationNotStarted     GenerationState = "not_started"
	GenerationGenerating     GenerationState = "generating"
	GenerationRetryScheduled GenerationState = "retry_scheduled"
	GenerationGenerated      GenerationState = "generated"
	GenerationFailed         GenerationState = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s GenerationState) Terminal() bool {
	return s == GenerationGenerated || s == GenerationFailed
}

// Order is one purchasable unit: a single pet's personality report within a
// checkout. The row doubles as the durable fulfillment task: RetryAt carries
// the re-dispatch schedule and Attempt the consumed retry budget.
type Order struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	Token         string            `gorm:"uniqueIndex;not null" json:"token"`
	BatchID       *snowflake.ID     `gorm:"index" json:"batch_id,omitempty"`
	CheckoutRef   string            `gorm:"index" json:"-"`
	PetName       string            `gorm:"not null" json:"pet_name"`
	PetProfile    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"pet_profile,omitempty"`
	ContactEmail  string            `gorm:"not null" json:"-"`
	PaymentStatus PaymentStatus     `gorm:"not null;index" json:"payment_status"`
	State         GenerationState   `gorm:"column:generation_state;not null;index" json:"generation_state"`
	Attempt       int               `gorm:"not null;default:0" json:"attempt"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	RetryAt       *time.Time        `gorm:"index" json:"retry_at,omitempty"`
	LastError     string            `json:"-"`
	ReportContent datatypes.JSON    `gorm:"type:jsonb" json:"-"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }
