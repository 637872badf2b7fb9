package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/middleware"
	"github.com/luminahost/backend/internal/models"
)

type ReviewHandler struct{}

func NewReviewHandler() *ReviewHandler {
	return &ReviewHandler{}
}

// List returns all reviews, Redis-cached (public)
func (h *ReviewHandler) List(c *fiber.Ctx) error {
	var reviews []models.Review

	if err := database.CacheGet(database.CacheKeyReviews, &reviews); err != nil {
		if err := database.DB.Preload("User").Order("created_at DESC").Find(&reviews).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to load reviews",
			})
		}
		database.CacheSet(database.CacheKeyReviews, reviews, database.CacheTTLReviews)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    reviews,
	})
}

// Create posts a review. One per user, rating 1-5, text at least 3 chars,
// only customers owning at least one server.
func (h *ReviewHandler) Create(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req struct {
		Rating int    `json:"rating"`
		Text   string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.Rating < 1 || req.Rating > 5 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Rating must be between 1 and 5",
		})
	}
	if len(strings.TrimSpace(req.Text)) < 3 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Review text is too short",
		})
	}

	var serverCount int64
	database.DB.Model(&models.Server{}).Where("user_id = ?", user.ID).Count(&serverCount)
	if serverCount == 0 {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Only customers with a server can leave a review",
		})
	}

	var existing int64
	database.DB.Model(&models.Review{}).Where("user_id = ?", user.ID).Count(&existing)
	if existing > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "You already left a review",
		})
	}

	review := models.Review{
		UserID: user.ID,
		Rating: req.Rating,
		Text:   strings.TrimSpace(req.Text),
	}
	if err := database.DB.Create(&review).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to save review",
		})
	}

	database.InvalidateReviewsCache()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    review,
	})
}

// ListOwn returns the current user's own reviews
func (h *ReviewHandler) ListOwn(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var reviews []models.Review
	database.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&reviews)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    reviews,
	})
}

// AdminList returns all reviews with their authors (staff)
func (h *ReviewHandler) AdminList(c *fiber.Ctx) error {
	var reviews []models.Review
	database.DB.Preload("User").Order("created_at DESC").Find(&reviews)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    reviews,
	})
}

// DeleteOwn removes the current user's review
func (h *ReviewHandler) DeleteOwn(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)
	database.DB.Where("user_id = ?", userID).Delete(&models.Review{})
	database.InvalidateReviewsCache()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Review deleted",
	})
}

// AdminDelete removes any review (admin)
func (h *ReviewHandler) AdminDelete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid review id",
		})
	}

	database.DB.Delete(&models.Review{}, id)
	database.InvalidateReviewsCache()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Review deleted",
	})
}
