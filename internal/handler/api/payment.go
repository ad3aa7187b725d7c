package api

import (
	"errors"
	"io"
	"net/http"

	"health-entitlement-engine/internal/infra/metrics"
	"health-entitlement-engine/internal/usecase/commands"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/gin-gonic/gin"
)

// WeChat Pay retries any non-2xx answer, so business failures that a
// retry cannot fix still answer 200 with code FAIL.
const (
	notifyCodeSuccess = "SUCCESS"
	notifyCodeFail    = "FAIL"
)

type PaymentHandler struct {
	payments commands.PaymentCommands
}

func NewPaymentHandler(payments commands.PaymentCommands) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// @Summary WeChat Pay notification
// @Description Receive a payment result notification, mark the order paid, and issue entitlements
// @Tags payments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /payments/wechat/notify [post]
func (h *PaymentHandler) WechatNotify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		metrics.RecordWebhookVerify("fail", "malformed")
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    notifyCodeFail,
			"message": "unreadable body",
		})
		return
	}

	headers := shared.WebhookHeaders{
		Timestamp: c.GetHeader("Wechatpay-Timestamp"),
		Nonce:     c.GetHeader("Wechatpay-Nonce"),
		Signature: c.GetHeader("Wechatpay-Signature"),
		Serial:    c.GetHeader("Wechatpay-Serial"),
	}

	result, err := h.payments.HandleWechatNotify(c.Request.Context(), headers, body)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrWebhookUnauthenticated):
			metrics.RecordWebhookVerify("fail", "bad_signature")
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    notifyCodeFail,
				"message": "signature verification failed",
			})
		case errors.Is(err, commands.ErrWebhookMalformed):
			metrics.RecordWebhookVerify("fail", "malformed")
			c.JSON(http.StatusOK, gin.H{
				"code":    notifyCodeFail,
				"message": "malformed notification",
			})
		case errors.Is(err, commands.ErrOrderNotFound):
			metrics.RecordWebhookVerify("fail", "unknown")
			c.JSON(http.StatusOK, gin.H{
				"code":    notifyCodeFail,
				"message": "order not found",
			})
		default:
			metrics.RecordWebhookVerify("fail", "unknown")
			// Retryable: the provider will redeliver on 5xx.
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    notifyCodeFail,
				"message": "processing failed",
			})
		}
		return
	}

	metrics.RecordWebhookVerify("ok", "")
	if result.AlreadyProcessed {
		metrics.GenerationTotal.WithLabelValues("replayed").Inc()
	} else {
		metrics.GenerationTotal.WithLabelValues("created").Inc()
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    notifyCodeSuccess,
		"message": "ok",
	})
}
