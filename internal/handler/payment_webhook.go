package handler

import (
    "crypto/subtle"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/talebm/tutoring-enrollment/internal/enrollment"
)

// PaymentWebhookHandler receives the card provider's server-to-server
// callbacks.  Authentication is a shared secret header, compared in
// constant time; the endpoint sits outside the JWT middleware because
// the caller is the provider, not a portal user.
type PaymentWebhookHandler struct {
    Ledger *enrollment.Ledger
    Secret string
}

// NewPaymentWebhookHandler constructs the handler.  An empty secret
// disables the endpoint entirely rather than leaving it open.
func NewPaymentWebhookHandler(ledger *enrollment.Ledger, secret string) *PaymentWebhookHandler {
    if ledger == nil {
        panic("nil ledger passed to NewPaymentWebhookHandler")
    }
    return &PaymentWebhookHandler{Ledger: ledger, Secret: secret}
}

type webhookReq struct {
    SessionToken string `json:"session_token"`
    Status       string `json:"status"`
}

// Handle processes POST /v1/payments/callback.  Only "succeeded"
// creates reservations; every other status is acknowledged and
// dropped, since an abandoned session simply never seats a batch.
// Replayed success callbacks are acknowledged without side effects.
func (h *PaymentWebhookHandler) Handle(c echo.Context) error {
    if h.Secret == "" {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payments not configured"})
    }
    got := c.Request().Header.Get("X-Webhook-Secret")
    if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "bad signature"})
    }

    var req webhookReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.SessionToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_token required"})
    }
    if req.Status != "succeeded" {
        // Acknowledge so the provider stops retrying; nothing to do.
        return c.JSON(http.StatusOK, echo.Map{"ignored": req.Status})
    }

    ctx, cancel := contextTimeout(c)
    defer cancel()
    rows, err := h.Ledger.FinalizeCardPayment(ctx, req.SessionToken)
    if err != nil {
        var capErr *enrollment.CapacityError
        if errors.As(err, &capErr) {
            // The class filled while the student was paying.  Return
            // 200 so the provider stops retrying; the anomaly is
            // logged for a manual refund.
            return c.JSON(http.StatusOK, echo.Map{"error": "capacity exceeded, manual review required"})
        }
        return enrollmentError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": rows})
}
