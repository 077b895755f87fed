package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/pawprintlabs/pawprint/internal/checkout/domain"
)

func TestLookupSettlementPaidSession(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cs_test_123",
			"payment_status": "paid",
			"status": "complete",
			"metadata": {"order_tokens": "tok-a, tok-b,,tok-c"}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk_test_key")
	settlement, err := client.LookupSettlement(context.Background(), "cs_test_123")
	if err != nil {
		t.Fatalf("lookup settlement: %v", err)
	}
	if gotPath != "/v1/checkout/sessions/cs_test_123" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer sk_test_key" {
		t.Fatalf("unexpected authorization header %s", gotAuth)
	}
	if !settlement.Paid {
		t.Fatalf("expected paid settlement")
	}
	want := []string{"tok-a", "tok-b", "tok-c"}
	if !reflect.DeepEqual(settlement.OrderTokens, want) {
		t.Fatalf("expected tokens %v, got %v", want, settlement.OrderTokens)
	}
}

func TestLookupSettlementUnpaidSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cs_test_open","payment_status":"unpaid","status":"open"}`))
	}))
	defer server.Close()

	settlement, err := NewClient(server.URL, "sk_test_key").LookupSettlement(context.Background(), "cs_test_open")
	if err != nil {
		t.Fatalf("lookup settlement: %v", err)
	}
	if settlement.Paid {
		t.Fatalf("expected unpaid settlement")
	}
	if len(settlement.OrderTokens) != 0 {
		t.Fatalf("expected no tokens, got %v", settlement.OrderTokens)
	}
}

func TestLookupSettlementErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{{
		name:    "not found",
		status:  http.StatusNotFound,
		body:    `{"error":{"type":"invalid_request_error","message":"No such checkout.session"}}`,
		wantErr: domain.ErrUnknownSession,
	}, {
		name:    "invalid request",
		status:  http.StatusBadRequest,
		body:    `{"error":{"type":"invalid_request_error","message":"Invalid checkout session ID"}}`,
		wantErr: domain.ErrUnknownSession,
	}, {
		name:    "rate limited",
		status:  http.StatusTooManyRequests,
		body:    `{"error":{"type":"rate_limit_error","message":"Too many requests"}}`,
		wantErr: domain.ErrProcessorUnreachable,
	}, {
		name:    "server error",
		status:  http.StatusInternalServerError,
		body:    `{"error":{"type":"api_error","message":"Something went wrong"}}`,
		wantErr: domain.ErrProcessorUnreachable,
	}, {
		name:    "empty session payload",
		status:  http.StatusOK,
		body:    `{}`,
		wantErr: domain.ErrUnknownSession,
	}, {
		name:    "malformed payload",
		status:  http.StatusOK,
		body:    `not-json`,
		wantErr: domain.ErrProcessorUnreachable,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "sk_test_key").LookupSettlement(context.Background(), "cs_test_err")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLookupSettlementConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := NewClient(server.URL, "sk_test_key").LookupSettlement(context.Background(), "cs_test_down")
	if !errors.Is(err, domain.ErrProcessorUnreachable) {
		t.Fatalf("expected %v, got %v", domain.ErrProcessorUnreachable, err)
	}
}
