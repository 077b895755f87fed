package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateReturnsRawReport(t *testing.T) {
	var gotBody httpRequestPayload
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("unmarshal request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summary":"Biscuit is a gentle soul","traits":["loyal","sleepy"]}`))
	}))
	defer server.Close()

	provider := NewHTTP(server.URL, "gen-key")
	result, err := provider.Generate(context.Background(), Request{
		PetName: "Biscuit",
		Profile: map[string]any{"species": "dog"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gotAuth != "Bearer gen-key" {
		t.Fatalf("unexpected authorization header %s", gotAuth)
	}
	if gotBody.PetName != "Biscuit" {
		t.Fatalf("expected pet name in request, got %s", gotBody.PetName)
	}

	var report map[string]any
	if err := json.Unmarshal(result.Content, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report["summary"] != "Biscuit is a gentle soul" {
		t.Fatalf("unexpected report %v", report)
	}
}

func TestGenerateErrorEnvelopeIsNonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":true,"message":"model refused the prompt"}`))
	}))
	defer server.Close()

	_, err := NewHTTP(server.URL, "").Generate(context.Background(), Request{PetName: "Biscuit"})
	if !errors.Is(err, ErrNonSuccess) {
		t.Fatalf("expected %v, got %v", ErrNonSuccess, err)
	}
}

func TestGenerateStatusCodes(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := NewHTTP(server.URL, "").Generate(context.Background(), Request{PetName: "Biscuit"})
		server.Close()
		if !errors.Is(err, ErrNonSuccess) {
			t.Fatalf("status %d: expected %v, got %v", status, ErrNonSuccess, err)
		}
	}
}

func TestGenerateMalformedOutput(t *testing.T) {
	for name, body := range map[string]string{
		"not json":  `report for Biscuit`,
		"json null": `null`,
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := NewHTTP(server.URL, "").Generate(context.Background(), Request{PetName: "Biscuit"})
			if !errors.Is(err, ErrMalformedOutput) {
				t.Fatalf("expected %v, got %v", ErrMalformedOutput, err)
			}
		})
	}
}

func TestGenerateContextDeadlineIsTimeout(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewHTTP(server.URL, "").Generate(ctx, Request{PetName: "Biscuit"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected %v, got %v", ErrTimeout, err)
	}
	<-started
}
