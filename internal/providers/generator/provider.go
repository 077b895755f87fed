package generator

import (
	"context"
	"errors"
)

// Request carries the subject profile handed to the content generator.
type Request struct {
	PetName string
	Profile map[string]any
}

// Result is the raw generated report document. The pipeline stores it
// verbatim and never inspects its shape beyond the error flag check.
type Result struct {
	Content []byte
}

// Provider produces report content for one order. Calls may take up to the
// configured generator timeout; any error return consumes one attempt.
type Provider interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

var (
	ErrTimeout         = errors.New("generator_timeout")
	ErrNonSuccess      = errors.New("generator_non_success")
	ErrMalformedOutput = errors.New("generator_malformed_output")
)
