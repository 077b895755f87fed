package domain

import (
	"context"
	"errors"
	"time"
)

// DisplayStatus is the customer-facing projection of an order's state.
// Internal retry progress is never exposed.
type DisplayStatus string

const (
	DisplayAwaitingPayment DisplayStatus = "awaiting_payment"
	DisplayProcessing      DisplayStatus = "processing"
	DisplayReady           DisplayStatus = "ready"
	DisplayFailed          DisplayStatus = "failed"
)

type PetInput struct {
	Name    string
	Profile map[string]any
}

type CreateBatchRequest struct {
	CheckoutRef  string
	ContactEmail string
	Pets         []PetInput
}

type CreateBatchResponse struct {
	BatchID string        `json:"batch_id"`
	Orders  []OrderStatus `json:"orders"`
}

type RedeemRequest struct {
	Code         string
	ContactEmail string
	Pet          PetInput
}

type OrderStatus struct {
	Token         string         `json:"token"`
	PetName       string         `json:"pet_name"`
	PaymentStatus PaymentStatus  `json:"payment_status"`
	Status        DisplayStatus  `json:"status"`
	Report        map[string]any `json:"report,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

type FailedOrder struct {
	Token        string     `json:"token"`
	PetName      string     `json:"pet_name"`
	ContactEmail string     `json:"contact_email"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
}

type Service interface {
	CreateBatch(context.Context, CreateBatchRequest) (CreateBatchResponse, error)
	Redeem(context.Context, RedeemRequest) (OrderStatus, error)
	GetStatus(ctx context.Context, token string) (OrderStatus, error)
	ListFailed(ctx context.Context, limit int) ([]FailedOrder, error)
	RequeueFailed(ctx context.Context, token string) (OrderStatus, error)
}

var (
	ErrInvalidToken      = errors.New("invalid_token")
	ErrInvalidPetName    = errors.New("invalid_pet_name")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidBatchSize  = errors.New("invalid_batch_size")
	ErrInvalidRedeemCode = errors.New("invalid_redeem_code")
	ErrNotFound          = errors.New("not_found")
	ErrNotFailed         = errors.New("order_not_failed")
)

// MaxBatchSize bounds how many pets one checkout may cover.
const MaxBatchSize = 10
