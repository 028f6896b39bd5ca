package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wildrock/crm-api/internal/dto"
	"github.com/wildrock/crm-api/internal/models"
	"github.com/wildrock/crm-api/internal/service"
	appErrors "github.com/wildrock/crm-api/pkg/errors"
	"github.com/wildrock/crm-api/pkg/response"
)

// calSignatureHeader carries the scheduler's HMAC of the request body.
const calSignatureHeader = "X-Cal-Signature-256"

type bookingSyncService interface {
	SyncFromCal(ctx context.Context, payload dto.CalWebhookPayload) (*models.Booking, error)
}

// WebhookHandler ingests booking events pushed by the Cal.com scheduler.
type WebhookHandler struct {
	bookings bookingSyncService
	metrics  *service.MetricsService
	secret   string
	logger   *zap.Logger
}

// NewWebhookHandler constructs WebhookHandler. An empty secret disables
// signature verification.
func NewWebhookHandler(bookings bookingSyncService, metrics *service.MetricsService, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{bookings: bookings, metrics: metrics, secret: secret, logger: logger}
}

// Cal receives a booking lifecycle event and syncs it into the CRM.
func (h *WebhookHandler) Cal(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read webhook body"))
		return
	}

	if h.secret != "" && !h.verifySignature(body, c.GetHeader(calSignatureHeader)) {
		h.logger.Warn("rejected webhook with bad signature", zap.String("ip", c.ClientIP()))
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid webhook signature"))
		return
	}

	var payload dto.CalWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid webhook payload"))
		return
	}

	h.metrics.ObserveWebhookEvent(payload.TriggerEvent)

	booking, err := h.bookings.SyncFromCal(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	_, _ = mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
