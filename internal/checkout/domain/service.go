package domain

import (
	"context"
	"strings"

	orderdomain "github.com/pawprintlabs/pawprint/internal/order/domain"
)

// BypassPrefix marks a checkout reference as a non-production test bypass.
// References of this form are treated as paid without contacting the
// payment processor and are rejected outright in production.
const BypassPrefix = "bypass_"

func IsBypassRef(ref string) bool {
	return strings.HasPrefix(ref, BypassPrefix)
}

type VerifyRequest struct {
	CheckoutRef string
	OrderToken  string
}

type VerifyResponse struct {
	Paid  bool                    `json:"paid"`
	Order orderdomain.OrderStatus `json:"order"`
}

type Service interface {
	// VerifyAndGet confirms a checkout's settlement, marks the whole
	// covered batch paid, hands the batch to fulfillment, and returns the
	// caller's order of interest. Safe to call repeatedly for the same
	// reference.
	VerifyAndGet(ctx context.Context, req VerifyRequest) (VerifyResponse, error)
}
