package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/models"
)

type PlanHandler struct{}

func NewPlanHandler() *PlanHandler {
	return &PlanHandler{}
}

// List returns all plans, Redis-cached
func (h *PlanHandler) List(c *fiber.Ctx) error {
	var plans []models.Plan

	if err := database.CacheGet(database.CacheKeyPlans, &plans); err != nil {
		if err := database.DB.Order("sort_order ASC, price ASC").Find(&plans).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to load plans",
			})
		}
		database.CacheSet(database.CacheKeyPlans, plans, database.CacheTTLPlans)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    plans,
	})
}

// PlanRequest is the admin create/update payload
type PlanRequest struct {
	Name        string  `json:"name"`
	Tier        string  `json:"tier"`
	Price       float64 `json:"price"`
	RAM         int     `json:"ram"`
	Cores       int     `json:"cores"`
	Disk        int     `json:"disk"`
	Popular     bool    `json:"popular"`
	Icon        string  `json:"icon"`
	Description string  `json:"description"`
	SortOrder   int     `json:"sort_order"`
}

func validatePlan(req *PlanRequest) string {
	if req.Name == "" || req.Tier == "" {
		return "Name and tier are required"
	}
	if req.Price < 0 {
		return "Price cannot be negative"
	}
	if req.RAM <= 0 || req.Cores <= 0 || req.Disk <= 0 {
		return "RAM, cores and disk must be positive"
	}
	return ""
}

// Create adds a plan (admin)
func (h *PlanHandler) Create(c *fiber.Ctx) error {
	var req PlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if msg := validatePlan(&req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	}

	plan := models.Plan{
		Name:        req.Name,
		Tier:        req.Tier,
		Price:       req.Price,
		RAM:         req.RAM,
		Cores:       req.Cores,
		Disk:        req.Disk,
		Popular:     req.Popular,
		Icon:        req.Icon,
		Description: req.Description,
		SortOrder:   req.SortOrder,
	}
	if err := database.DB.Create(&plan).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create plan",
		})
	}

	database.InvalidatePlansCache()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    plan,
	})
}

// Update edits a plan (admin). Existing servers keep their snapshot.
func (h *PlanHandler) Update(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid plan id",
		})
	}

	var plan models.Plan
	if err := database.DB.First(&plan, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Plan not found",
		})
	}

	var req PlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if msg := validatePlan(&req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	}

	database.DB.Model(&plan).Updates(map[string]interface{}{
		"name":        req.Name,
		"tier":        req.Tier,
		"price":       req.Price,
		"ram":         req.RAM,
		"cores":       req.Cores,
		"disk":        req.Disk,
		"popular":     req.Popular,
		"icon":        req.Icon,
		"description": req.Description,
		"sort_order":  req.SortOrder,
	})

	database.InvalidatePlansCache()

	return c.JSON(fiber.Map{
		"success": true,
		"data":    plan,
	})
}

// Delete removes a plan (admin); servers referencing it keep their snapshot
func (h *PlanHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid plan id",
		})
	}

	if err := database.DB.Delete(&models.Plan{}, id).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete plan",
		})
	}

	database.InvalidatePlansCache()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Plan deleted",
	})
}
