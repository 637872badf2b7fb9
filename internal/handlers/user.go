package handlers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/middleware"
	"github.com/luminahost/backend/internal/models"
	"github.com/luminahost/backend/internal/services"
)

// UserHandler is the staff/admin user management surface
type UserHandler struct {
	ledger *services.Ledger
}

func NewUserHandler(ledger *services.Ledger) *UserHandler {
	return &UserHandler{ledger: ledger}
}

// AdminList returns all users (staff)
func (h *UserHandler) AdminList(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := database.DB.Model(&models.User{})
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("username ILIKE ? OR email ILIKE ?", like, like)
	}

	var total int64
	query.Count(&total)

	var users []models.User
	query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    users,
		"meta": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// AdminUpdateRequest is the admin user edit payload
type AdminUserUpdateRequest struct {
	Balance  *float64 `json:"balance"`
	Role     *string  `json:"role"`
	Blocked  *bool    `json:"blocked"`
	Verified *bool    `json:"verified"`
	Reset2FA bool     `json:"reset_2fa"`
}

// AdminUpdate edits a user; balance changes go through the ledger so every
// adjustment leaves a transaction row
func (h *UserHandler) AdminUpdate(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid user id",
		})
	}

	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	var req AdminUserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.Balance != nil && *req.Balance != user.Balance {
		admin := middleware.GetCurrentUser(c)
		delta := *req.Balance - user.Balance
		_, err := h.ledger.Apply(services.DeltaRequest{
			UserID:        user.ID,
			Amount:        delta,
			Type:          models.TransactionTypeAdmin,
			Description:   fmt.Sprintf("Balance adjusted by %s", admin.Username),
			AllowNegative: true,
		})
		if err != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Balance update failed, retry",
			})
		}
	}

	updates := map[string]interface{}{}
	if req.Role != nil {
		switch models.Role(*req.Role) {
		case models.RoleUser, models.RoleSupport, models.RoleAdmin:
			updates["role"] = *req.Role
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid role",
			})
		}
	}
	if req.Blocked != nil {
		updates["blocked"] = *req.Blocked
	}
	if req.Verified != nil {
		updates["verified"] = *req.Verified
	}
	if req.Reset2FA {
		updates["two_factor_enabled"] = false
		updates["two_factor_secret"] = ""
	}

	if len(updates) > 0 {
		database.DB.Model(&user).Updates(updates)
	}

	database.DB.First(&user, user.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}

// AdminDelete removes a user and everything they own (admin)
func (h *UserHandler) AdminDelete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid user id",
		})
	}

	if uint(id) == middleware.GetCurrentUserID(c) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "You cannot delete your own account",
		})
	}

	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "User not found",
		})
	}

	database.DB.Where("user_id = ?", user.ID).Delete(&models.Server{})
	database.DB.Where("user_id = ?", user.ID).Delete(&models.Ticket{})
	database.DB.Where("user_id = ?", user.ID).Delete(&models.Review{})
	database.DB.Delete(&user)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User deleted",
	})
}
