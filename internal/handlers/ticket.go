package handlers

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/middleware"
	"github.com/luminahost/backend/internal/models"
	"github.com/luminahost/backend/internal/services"
)

type TicketHandler struct{}

func NewTicketHandler() *TicketHandler {
	return &TicketHandler{}
}

// List returns the current user's tickets
func (h *TicketHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var tickets []models.Ticket
	database.DB.Where("user_id = ?", userID).Order("updated_at DESC").Find(&tickets)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    tickets,
	})
}

// Get returns one ticket with its thread
func (h *TicketHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid ticket id",
		})
	}

	var ticket models.Ticket
	if err := database.DB.Preload("Messages").First(&ticket, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Ticket not found",
		})
	}

	user := middleware.GetCurrentUser(c)
	if ticket.UserID != user.ID && !user.Role.IsStaff() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Not your ticket",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    ticket,
	})
}

// Create opens a ticket; one per user per cooldown window
func (h *TicketHandler) Create(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	if remaining := services.TicketCooldownRemaining(user.LastTicketAt, time.Now()); remaining > 0 {
		minutes := int(math.Ceil(remaining.Minutes()))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success": false,
			"message": fmt.Sprintf("Please wait %d minute(s) before opening another ticket", minutes),
		})
	}

	var req struct {
		Subject  string `json:"subject"`
		Category string `json:"category"`
		Message  string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.Subject == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Subject and message are required",
		})
	}
	if req.Category == "" {
		req.Category = "general"
	}

	ticket := models.Ticket{
		UserID:   user.ID,
		Subject:  req.Subject,
		Category: req.Category,
		Status:   models.TicketStatusOpen,
	}
	if err := database.DB.Create(&ticket).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create ticket",
		})
	}

	database.DB.Create(&models.TicketMessage{
		TicketID: ticket.ID,
		UserID:   user.ID,
		Message:  req.Message,
	})

	now := time.Now()
	database.DB.Model(user).Update("last_ticket_at", now)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    ticket,
	})
}

// Reply appends a message; staff replies flip the status to answered,
// customer replies reopen
func (h *TicketHandler) Reply(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid ticket id",
		})
	}

	var ticket models.Ticket
	if err := database.DB.First(&ticket, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Ticket not found",
		})
	}

	user := middleware.GetCurrentUser(c)
	isStaff := user.Role.IsStaff()
	if ticket.UserID != user.ID && !isStaff {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Not your ticket",
		})
	}

	if ticket.Status == models.TicketStatusClosed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Ticket is closed",
		})
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Message is required",
		})
	}

	database.DB.Create(&models.TicketMessage{
		TicketID: ticket.ID,
		UserID:   user.ID,
		Message:  req.Message,
		IsStaff:  isStaff,
	})

	status := models.TicketStatusOpen
	if isStaff {
		status = models.TicketStatusAnswered
	}
	database.DB.Model(&ticket).Update("status", status)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Reply added",
	})
}

// Close closes a ticket
func (h *TicketHandler) Close(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid ticket id",
		})
	}

	var ticket models.Ticket
	if err := database.DB.First(&ticket, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Ticket not found",
		})
	}

	user := middleware.GetCurrentUser(c)
	if ticket.UserID != user.ID && !user.Role.IsStaff() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Not your ticket",
		})
	}

	database.DB.Model(&ticket).Update("status", models.TicketStatusClosed)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Ticket closed",
	})
}

// AdminList returns all tickets (staff)
func (h *TicketHandler) AdminList(c *fiber.Ctx) error {
	var tickets []models.Ticket
	database.DB.Preload("User").Order("updated_at DESC").Find(&tickets)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    tickets,
	})
}

// AdminDelete removes one ticket (admin)
func (h *TicketHandler) AdminDelete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid ticket id",
		})
	}

	database.DB.Where("ticket_id = ?", id).Delete(&models.TicketMessage{})
	database.DB.Delete(&models.Ticket{}, id)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Ticket deleted",
	})
}

// AdminDeleteAll wipes every ticket (admin)
func (h *TicketHandler) AdminDeleteAll(c *fiber.Ctx) error {
	database.DB.Where("1 = 1").Delete(&models.TicketMessage{})
	database.DB.Where("1 = 1").Delete(&models.Ticket{})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "All tickets deleted",
	})
}
