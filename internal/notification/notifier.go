package notification

import (
	"context"

	"github.com/pawprintlabs/pawprint/internal/order/domain"
)

// Notifier delivers the "your report is ready" email. Delivery is best
// effort: the order is already Generated when this fires and a send failure
// never rolls that back or schedules a retry.
type Notifier interface {
	NotifyGenerated(ctx context.Context, order *domain.Order)
}
