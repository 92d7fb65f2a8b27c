package stripe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patternseek/ecommerce/pkg/config"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{APIKey: " sk_test_123 ", Env: "TEST"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", client.Environment())
	assert.True(t, client.TestMode())
	assert.NotNil(t, client.API())
}

func TestNewClientRejectsBadConfig(t *testing.T) {
	cases := map[string]config.StripeConfig{
		"missing key":      {Env: "test"},
		"unknown env":      {APIKey: "sk_test_1", Env: "staging"},
		"live key in test": {APIKey: "sk_live_1", Env: "test"},
		"test key in live": {APIKey: "sk_test_1", Env: "live"},
		"publishable key":  {APIKey: "pk_test_1", Env: "test"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewClient(context.Background(), cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestNilClient(t *testing.T) {
	var client *Client
	assert.Nil(t, client.API())
	assert.Equal(t, "", client.Environment())
	assert.True(t, client.TestMode())
}
