package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pawprintlabs/pawprint/internal/checkout/domain"
)

type checkoutSession struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	Status        string            `json:"status"`
	Metadata      map[string]string `json:"metadata"`
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	apiBase string
	apiKey  string
	client  *http.Client
}

func NewClient(apiBase, apiKey string) *Client {
	return &Client{
		apiBase: strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: 12 * time.Second},
	}
}

// LookupSettlement retrieves the checkout session and reads its settlement
// verdict. The covered order tokens ride in the session metadata, written
// there when the session was created.
func (c *Client) LookupSettlement(ctx context.Context, ref string) (domain.Settlement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/v1/checkout/sessions/"+ref, nil)
	if err != nil {
		return domain.Settlement{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Settlement{}, domain.ErrProcessorUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.Settlement{}, domain.ErrUnknownSession
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.Settlement{}, domain.ErrProcessorUnreachable
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err == nil &&
			stripeErr.Error.Type == "invalid_request_error" {
			return domain.Settlement{}, domain.ErrUnknownSession
		}
		return domain.Settlement{}, domain.ErrProcessorUnreachable
	}

	var session checkoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return domain.Settlement{}, domain.ErrProcessorUnreachable
	}
	if session.ID == "" {
		return domain.Settlement{}, domain.ErrUnknownSession
	}

	settlement := domain.Settlement{
		Paid: session.PaymentStatus == "paid",
	}
	if raw := strings.TrimSpace(session.Metadata["order_tokens"]); raw != "" {
		for _, token := range strings.Split(raw, ",") {
			if token = strings.TrimSpace(token); token != "" {
				settlement.OrderTokens = append(settlement.OrderTokens, token)
			}
		}
	}
	return settlement, nil
}
