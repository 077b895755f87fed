package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type httpRequestPayload struct {
	PetName string         `json:"pet_name"`
	Profile map[string]any `json:"profile"`
}

// errorEnvelope matches the error-shaped payload the generator returns on a
// refusal. A 200 carrying one of these is still a failed attempt.
type errorEnvelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HTTPProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTP builds a provider against the report generation endpoint. The
// client carries no timeout of its own; callers bound each request through
// the context.
func NewHTTP(endpoint, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		endpoint: strings.TrimSpace(endpoint),
		apiKey:   strings.TrimSpace(apiKey),
		client:   &http.Client{},
	}
}

func (p *HTTPProvider) Generate(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(httpRequestPayload{
		PetName: req.PetName,
		Profile: req.Profile,
	})
	if err != nil {
		return Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ErrTimeout
		}
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Result{}, ErrNonSuccess
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Result{}, ErrMalformedOutput
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error {
		return Result{}, ErrNonSuccess
	}

	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return Result{}, ErrMalformedOutput
	}

	return Result{Content: raw}, nil
}
