package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailblast/config"
	"mailblast/models"
)

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(nil, "carrier-pigeon", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNewBulkWithoutKeyIsDryRun(t *testing.T) {
	prev := config.AppConfig.ResendAPIKey
	config.AppConfig.ResendAPIKey = ""
	defer func() { config.AppConfig.ResendAPIKey = prev }()

	m, err := New(nil, models.ProviderBulk, 1)
	require.NoError(t, err)
	assert.IsType(t, &DryRunMailer{}, m)
}

func TestNewBulkWithKey(t *testing.T) {
	prev := config.AppConfig.ResendAPIKey
	config.AppConfig.ResendAPIKey = "re_test_key"
	defer func() { config.AppConfig.ResendAPIKey = prev }()

	m, err := New(nil, models.ProviderBulk, 1)
	require.NoError(t, err)
	assert.IsType(t, &BulkMailer{}, m)
	assert.Equal(t, 0, m.BatchLimit())
}

func TestDryRunDeterministicID(t *testing.T) {
	m := NewDryRunMailer()
	msg := &Message{To: "jane@test.com", Subject: "Hello"}

	first, err := m.Send(context.Background(), msg)
	require.NoError(t, err)
	second, err := m.Send(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "dryrun-")

	other, err := m.Send(context.Background(), &Message{To: "john@test.com", Subject: "Hello"})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestDryRunCanceledContext(t *testing.T) {
	m := NewDryRunMailer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Send(ctx, &Message{To: "jane@test.com"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "jane@test.com", formatAddress("", "jane@test.com"))
	assert.Equal(t, "Jane <jane@test.com>", formatAddress("Jane", "jane@test.com"))
}

func TestIsAuthError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("401 unauthorized"), true},
		{errors.New("403 Forbidden"), true},
		{errors.New("Invalid API key provided"), true},
		{errors.New("535 5.7.8 Username and Password not accepted"), true},
		{errors.New("SMTP authentication failed"), true},
		{errors.New("connection refused"), false},
		{errors.New("550 mailbox unavailable"), false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, isAuthError(tc.err), "err=%v", tc.err)
	}
}
