package notification

import (
	"context"
	"fmt"

	"github.com/pawprintlabs/pawprint/internal/observability/metrics"
	"github.com/pawprintlabs/pawprint/internal/order/domain"
	"github.com/pawprintlabs/pawprint/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Email email.Provider
}

type Service struct {
	log   *zap.Logger
	email email.Provider
}

func New(p Params) Notifier {
	return &Service{
		log:   p.Log.Named("notification.service"),
		email: p.Email,
	}
}

func (s *Service) NotifyGenerated(ctx context.Context, order *domain.Order) {
	subject := fmt.Sprintf("%s's personality report is ready", order.PetName)
	body := fmt.Sprintf(
		`<p>Good news! %s's personality report has been generated.</p>
<p><a href="https://app.pawprint.example/reports/%s">View the report</a></p>`,
		order.PetName, order.Token,
	)

	if err := s.email.Send(ctx, []string{order.ContactEmail}, subject, body); err != nil {
		metrics.Fulfillment().IncNotification("error")
		s.log.Warn("notification send failed",
			zap.String("order_token", order.Token),
			zap.Error(err),
		)
		return
	}

	metrics.Fulfillment().IncNotification("sent")
	s.log.Info("notification sent",
		zap.String("order_token", order.Token),
	)
}
