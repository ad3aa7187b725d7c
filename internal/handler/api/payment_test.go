//go:build unit

package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"health-entitlement-engine/internal/handler/api"
	"health-entitlement-engine/internal/usecase/commands"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentCommands struct {
	headers shared.WebhookHeaders
	result  *commands.PaymentNotifyResult
	err     error
}

func (f *fakePaymentCommands) HandleWechatNotify(_ context.Context, headers shared.WebhookHeaders, _ []byte) (*commands.PaymentNotifyResult, error) {
	f.headers = headers
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func notifyRequest(router *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/wechat/notify", strings.NewReader(`{"id":"n-1"}`))
	req.Header.Set("Wechatpay-Timestamp", "1700000000")
	req.Header.Set("Wechatpay-Nonce", "abc")
	req.Header.Set("Wechatpay-Signature", "c2ln")
	req.Header.Set("Wechatpay-Serial", "SERIAL-001")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newNotifyRouter(payments commands.PaymentCommands) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/payments/wechat/notify", api.NewPaymentHandler(payments).WechatNotify)
	return router
}

func TestWechatNotify(t *testing.T) {
	t.Run("success answers SUCCESS", func(t *testing.T) {
		payments := &fakePaymentCommands{result: &commands.PaymentNotifyResult{
			OrderID:            uuid.New(),
			OutTradeNo:         "OT-1001",
			EntitlementsIssued: 3,
		}}
		w := notifyRequest(newNotifyRouter(payments))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"SUCCESS"`)
		assert.Equal(t, "SERIAL-001", payments.headers.Serial)
	})

	t.Run("replay answers SUCCESS", func(t *testing.T) {
		payments := &fakePaymentCommands{result: &commands.PaymentNotifyResult{
			OutTradeNo:       "OT-1001",
			AlreadyProcessed: true,
		}}
		w := notifyRequest(newNotifyRouter(payments))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"SUCCESS"`)
	})

	t.Run("authentication failure answers 401", func(t *testing.T) {
		payments := &fakePaymentCommands{err: commands.ErrWebhookUnauthenticated}
		w := notifyRequest(newNotifyRouter(payments))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"FAIL"`)
	})

	t.Run("malformed payload answers 200 FAIL to stop retries", func(t *testing.T) {
		payments := &fakePaymentCommands{err: commands.ErrWebhookMalformed}
		w := notifyRequest(newNotifyRouter(payments))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"FAIL"`)
	})

	t.Run("unknown order answers 200 FAIL to stop retries", func(t *testing.T) {
		payments := &fakePaymentCommands{err: commands.ErrOrderNotFound}
		w := notifyRequest(newNotifyRouter(payments))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"FAIL"`)
	})

	t.Run("transient failure answers 500 so the provider retries", func(t *testing.T) {
		payments := &fakePaymentCommands{err: commands.ErrDatabaseOperationFailed}
		w := notifyRequest(newNotifyRouter(payments))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"FAIL"`)
	})
}
