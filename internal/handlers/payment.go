package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/logger"
	"github.com/luminahost/backend/internal/services"
	"go.uber.org/zap"
)

// PaymentHandler receives form-encoded top-up notifications from the
// payment provider. Responses are plain text; the provider does not parse
// JSON.
type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Callback validates and credits one notification
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	// Provider connectivity test carries no money
	if c.FormValue("test_notification") == "true" {
		return c.SendString("OK")
	}

	n := services.PaymentNotification{
		Type:        c.FormValue("notification_type"),
		OperationID: c.FormValue("operation_id"),
		Amount:      c.FormValue("amount"),
		Currency:    c.FormValue("currency"),
		Datetime:    c.FormValue("datetime"),
		Sender:      c.FormValue("sender"),
		Codepro:     c.FormValue("codepro"),
		Label:       c.FormValue("label"),
		Sha1Hash:    c.FormValue("sha1_hash"),
	}

	if n.Type == "" || n.OperationID == "" || n.Amount == "" || n.Sha1Hash == "" {
		return c.Status(fiber.StatusBadRequest).SendString("missing required fields")
	}

	if err := h.payments.Process(n); err != nil {
		switch {
		case errors.Is(err, services.ErrBadSignature):
			return c.Status(fiber.StatusUnauthorized).SendString("bad signature")
		case errors.Is(err, services.ErrBadLabel):
			return c.Status(fiber.StatusBadRequest).SendString("bad label")
		case errors.Is(err, services.ErrBadAmount):
			return c.Status(fiber.StatusBadRequest).SendString("bad amount")
		}
		logger.Error("payment processing failed",
			zap.String("operation_id", n.OperationID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).SendString("processing error")
	}

	return c.SendString("OK")
}
