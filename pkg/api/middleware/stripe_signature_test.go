package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/models"
)

const testWebhookSecret = "whsec_test_secret"

const eventPayload = `{"id":"evt_123","object":"event","type":"customer.subscription.updated","api_version":"2023-10-16","data":{"object":{"id":"sub_123","object":"subscription"}}}`

func signedRequest(payload []byte, secret string) *http.Request {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  secret,
	})
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(payload))
	req.Header.Set(HeaderStripeSignature, signed.Header)
	return req
}

func TestRequireStripeSignature_Valid(t *testing.T) {
	var (
		eventType string
		body      []byte
	)
	handler := func(c echo.Context) error {
		event, ok := StripeEventFromContext(c)
		require.True(t, ok)
		eventType = string(event.Type)

		var err error
		body, err = io.ReadAll(c.Request().Body)
		require.NoError(t, err)
		return c.NoContent(http.StatusOK)
	}

	mw := RequireStripeSignature(testWebhookSecret, logger.Discard(), nil)
	rec := serve(t, signedRequest([]byte(eventPayload), testWebhookSecret), handler, mw)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "customer.subscription.updated", eventType)
	assert.JSONEq(t, eventPayload, string(body))
}

func TestRequireStripeSignature_Rejections(t *testing.T) {
	mw := RequireStripeSignature(testWebhookSecret, logger.Discard(), nil)

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader([]byte(eventPayload)))
		rec := serve(t, req, okHandler, mw)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing_signature", decode[models.ErrorResponse](t, rec).Error)
	})

	t.Run("wrong secret", func(t *testing.T) {
		rec := serve(t, signedRequest([]byte(eventPayload), "whsec_other"), okHandler, mw)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_signature", decode[models.ErrorResponse](t, rec).Error)
	})

	t.Run("tampered body", func(t *testing.T) {
		req := signedRequest([]byte(eventPayload), testWebhookSecret)
		req.Body = io.NopCloser(bytes.NewReader([]byte(`{"id":"evt_evil"}`)))
		rec := serve(t, req, okHandler, mw)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_signature", decode[models.ErrorResponse](t, rec).Error)
	})

	t.Run("garbage header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader([]byte(eventPayload)))
		req.Header.Set(HeaderStripeSignature, "not-a-signature")
		rec := serve(t, req, okHandler, mw)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		big := bytes.Repeat([]byte("a"), MaxWebhookBodyBytes+1)
		rec := serve(t, signedRequest(big, testWebhookSecret), okHandler, mw)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestRequireStripeSignature_RequiresSecret(t *testing.T) {
	assert.Panics(t, func() { RequireStripeSignature("", nil, nil) })
}
