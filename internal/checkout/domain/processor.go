package domain

import (
	"context"
	"errors"
)

// Settlement is the payment processor's verdict for one checkout session.
// OrderTokens lists every order the checkout covers; a session may span
// 1 to 10 orders.
type Settlement struct {
	Paid        bool
	OrderTokens []string
}

// ProcessorClient looks up a checkout session's settlement verdict. Only an
// explicit paid verdict counts; open, expired and failed sessions all come
// back with Paid=false.
type ProcessorClient interface {
	LookupSettlement(ctx context.Context, ref string) (Settlement, error)
}

var (
	ErrInvalidReference = errors.New("invalid_checkout_reference")
	ErrUnknownSession   = errors.New("unknown_checkout_session")

	// ErrProcessorUnreachable is transient: the caller may retry the same
	// verification later, nothing was mutated.
	ErrProcessorUnreachable = errors.New("payment_processor_unreachable")
)
