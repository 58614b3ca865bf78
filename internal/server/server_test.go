package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/payguard/internal/config"
	"github.com/congo-pay/payguard/internal/logging"
)

func devConfig() config.Config {
	return config.Config{
		AppName:          "PayGuard",
		AppEnv:           "development",
		Port:             "0",
		SelfIdentity:     "com.sample.app",
		SessionTTL:       time.Minute,
		VerifyTimeout:    time.Second,
		VerifyCacheTTL:   time.Minute,
		MaxVerifications: 2,
	}
}

func TestNewServesWithoutBackendsInDevelopment(t *testing.T) {
	s, err := New(devConfig(), nil, nil, logging.Discard())
	require.NoError(t, err)

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/resolutions",
		strings.NewReader(`{"uri":"solana:84npKJKZy8ixjdq8UChZULDUea2Twt8ThxjiqKd7QZ54"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = s.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, s.runtime.Sessions.Len())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.Shutdown(ctx)
	assert.Equal(t, 0, s.runtime.Sessions.Len())
}

func TestNewRejectsMissingBackendsInProduction(t *testing.T) {
	cfg := devConfig()
	cfg.AppEnv = "production"
	_, err := New(cfg, nil, nil, logging.Discard())
	assert.Error(t, err)
}
