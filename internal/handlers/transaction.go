package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/middleware"
	"github.com/luminahost/backend/internal/models"
	"github.com/luminahost/backend/internal/services"
)

type TransactionHandler struct {
	ledger *services.Ledger
}

func NewTransactionHandler(ledger *services.Ledger) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

// Topup credits the caller's balance. Goes through the ledger so the credit
// leaves a transaction row like every other balance mutation.
func (h *TransactionHandler) Topup(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Amount must be positive",
		})
	}

	newBalance, err := h.ledger.Apply(services.DeltaRequest{
		UserID:      user.ID,
		Amount:      req.Amount,
		Type:        models.TransactionTypeTopup,
		Description: "Manual balance top-up",
	})
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Balance update failed, retry",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"balance": newBalance,
		},
	})
}

// List returns the current user's ledger entries, newest first
func (h *TransactionHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var total int64
	database.DB.Model(&models.Transaction{}).Where("user_id = ?", userID).Count(&total)

	var transactions []models.Transaction
	database.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&transactions)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    transactions,
		"meta": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// AdminList returns all ledger entries (staff)
func (h *TransactionHandler) AdminList(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}

	var total int64
	database.DB.Model(&models.Transaction{}).Count(&total)

	var transactions []models.Transaction
	database.DB.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&transactions)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    transactions,
		"meta": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}
