package checkout

import (
	"testing"

	"github.com/pawprintlabs/pawprint/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessorClient(t *testing.T) {
	client, err := newProcessorClient(config.Config{
		Checkout: config.CheckoutConfig{
			Provider:  "stripe",
			APIBase:   "https://api.stripe.example",
			SecretKey: "sk_test",
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, client)

	// Unset falls back to the default processor.
	client, err = newProcessorClient(config.Config{})
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = newProcessorClient(config.Config{
		Checkout: config.CheckoutConfig{Provider: "paypal"},
	})
	assert.ErrorContains(t, err, "unsupported checkout provider")
}
