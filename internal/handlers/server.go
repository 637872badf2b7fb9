package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/logger"
	"github.com/luminahost/backend/internal/middleware"
	"github.com/luminahost/backend/internal/models"
	"github.com/luminahost/backend/internal/panel"
	"github.com/luminahost/backend/internal/services"
	"go.uber.org/zap"
)

type ServerHandler struct {
	panel     services.PanelPort
	provision *services.ProvisionService
	tariff    *services.TariffService
	ledger    *services.Ledger
}

func NewServerHandler(p services.PanelPort, provision *services.ProvisionService, tariff *services.TariffService, ledger *services.Ledger) *ServerHandler {
	return &ServerHandler{
		panel:     p,
		provision: provision,
		tariff:    tariff,
		ledger:    ledger,
	}
}

// panelErrorResponse maps the panel error taxonomy onto operator-facing
// messages
func panelErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, panel.ErrAuthFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Panel authentication failed, contact support",
		})
	case errors.Is(err, panel.ErrTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"success": false,
			"message": "The game panel is not responding, try again later",
		})
	case errors.Is(err, services.ErrNoAllocations):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "No free slots available right now, contact support",
		})
	case errors.Is(err, services.ErrNoEggs):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "No game templates available, contact support",
		})
	}

	var apiErr *panel.APIError
	if errors.As(err, &apiErr) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Panel error: " + apiErr.Message,
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": "Operation failed, try again later",
	})
}

// List returns the current user's servers
func (h *ServerHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var servers []models.Server
	database.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&servers)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    servers,
	})
}

// loadOwnedServer fetches a server the caller owns; admins may load any
func loadOwnedServer(c *fiber.Ctx) (*models.Server, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid server id")
	}

	var server models.Server
	if err := database.DB.First(&server, id).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Server not found")
	}

	if !middleware.IsAdmin(c) && server.UserID != middleware.GetCurrentUserID(c) {
		return nil, fiber.NewError(fiber.StatusForbidden, "Not your server")
	}

	return &server, nil
}

// Get returns one server
func (h *ServerHandler) Get(c *fiber.Ctx) error {
	server, err := loadOwnedServer(c)
	if err != nil {
		fe := err.(*fiber.Error)
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    server,
	})
}

// OrderRequest is the order-confirmation payload
type OrderRequest struct {
	PlanID   uint   `json:"plan_id"`
	Name     string `json:"name"`
	CoreName string `json:"core_name"`
	Months   int    `json:"months"`
}

// Order validates the purchase, debits the balance, runs the provisioning
// workflow and persists the local server row
func (h *ServerHandler) Order(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req OrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Server name is required",
		})
	}
	if req.Months < 1 {
		req.Months = 1
	}

	var plan models.Plan
	if err := database.DB.First(&plan, req.PlanID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Plan not found",
		})
	}

	cost := services.RenewalCost(plan.Price, req.Months)
	isAdmin := middleware.IsAdmin(c)

	if !isAdmin && user.Balance < cost {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"success": false,
			"message": fmt.Sprintf("Insufficient balance: need %.2f, have %.2f", cost, user.Balance),
		})
	}

	// Debit before the remote workflow; a failed workflow refunds below
	_, err := h.ledger.Apply(services.DeltaRequest{
		UserID:        user.ID,
		Amount:        -cost,
		Type:          models.TransactionTypeOrder,
		Description:   fmt.Sprintf("Order: %s (%s, %d month(s))", req.Name, plan.Name, req.Months),
		AllowNegative: isAdmin,
	})
	if err != nil {
		if errors.Is(err, services.ErrInsufficientFunds) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"success": false,
				"message": "Insufficient balance",
			})
		}
		if errors.Is(err, services.ErrVersionConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Another balance operation is in progress, retry",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to process order",
		})
	}

	result, err := h.provision.Provision(user, req.Name, &plan, req.CoreName)
	if err != nil {
		// Remote creation failed; return the money
		if refundErr := h.refundOrder(user.ID, cost, req.Name); refundErr != nil {
			logger.Error("order refund failed",
				zap.Uint("user_id", user.ID),
				zap.Float64("amount", cost),
				zap.Error(refundErr),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Order failed and the refund could not be applied, contact support",
			})
		}
		return panelErrorResponse(c, err)
	}

	server := models.Server{
		UserID:          user.ID,
		Name:            req.Name,
		PlanID:          &plan.ID,
		PlanName:        plan.Name,
		PlanTier:        plan.Tier,
		CoreName:        req.CoreName,
		RAM:             plan.RAM,
		Cores:           plan.Cores,
		Disk:            plan.Disk,
		Price:           plan.Price,
		Months:          req.Months,
		Status:          models.ServerStatusActive,
		ExpiresAt:       time.Now().AddDate(0, 0, 30*req.Months),
		PanelServerID:   &result.PanelServerID,
		PanelIdentifier: result.Identifier,
		PanelUUID:       result.UUID,
		NodeID:          &result.NodeID,
		IP:              result.IP,
		Port:            result.Port,
	}
	if err := database.DB.Create(&server).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Server was provisioned but could not be saved, contact support",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    server,
	})
}

// refundOrder returns the order debit after a failed provisioning run. A
// version conflict only means another balance operation won the race, so the
// refund is retried; any other error is final.
func (h *ServerHandler) refundOrder(userID uint, amount float64, name string) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = h.ledger.Apply(services.DeltaRequest{
			UserID:        userID,
			Amount:        amount,
			Type:          models.TransactionTypeRefund,
			Description:   fmt.Sprintf("Refund: failed order of %s", name),
			AllowNegative: true,
		})
		if !errors.Is(err, services.ErrVersionConflict) {
			return err
		}
	}
	return err
}

// Renew extends the server at its snapshot price
func (h *ServerHandler) Renew(c *fiber.Ctx) error {
	server, err := loadOwnedServer(c)
	if err != nil {
		fe := err.(*fiber.Error)
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
	}

	var req struct {
		Months int `json:"months"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	newBalance, err := h.tariff.Renew(server, req.Months, middleware.IsAdmin(c))
	if err != nil {
		if errors.Is(err, services.ErrInsufficientFunds) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"success": false,
				"message": "Insufficient balance",
			})
		}
		if errors.Is(err, services.ErrVersionConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Server is being modified by another operation, retry",
			})
		}
		return panelErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Server renewed",
		"data": fiber.Map{
			"expires_at": server.ExpiresAt,
			"balance":    newBalance,
		},
	})
}

// ChangeTariff prorates the switch to another plan
func (h *ServerHandler) ChangeTariff(c *fiber.Ctx) error {
	server, err := loadOwnedServer(c)
	if err != nil {
		fe := err.(*fiber.Error)
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
	}

	var req struct {
		PlanID uint `json:"plan_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	var plan models.Plan
	if err := database.DB.First(&plan, req.PlanID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Plan not found",
		})
	}

	if server.PlanID != nil && *server.PlanID == plan.ID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Server is already on this plan",
		})
	}

	result, err := h.tariff.ChangeTariff(server, &plan, middleware.IsAdmin(c))
	if err != nil {
		if errors.Is(err, services.ErrInsufficientFunds) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"success": false,
				"message": "Insufficient balance for this plan change",
			})
		}
		if errors.Is(err, services.ErrVersionConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Server is being modified by another operation, retry",
			})
		}
		return panelErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Plan changed",
		"data":    result,
	})
}

// SetAutoRenew toggles automatic renewal
func (h *ServerHandler) SetAutoRenew(c *fiber.Ctx) error {
	server, err := loadOwnedServer(c)
	if err != nil {
		fe := err.(*fiber.Error)
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
	}

	var req struct {
		AutoRenew bool `json:"auto_renew"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	database.DB.Model(server).Update("auto_renew", req.AutoRenew)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Auto-renew updated",
	})
}

// Delete removes the server locally and on the panel
func (h *ServerHandler) Delete(c *fiber.Ctx) error {
	server, err := loadOwnedServer(c)
	if err != nil {
		fe := err.(*fiber.Error)
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
	}

	if server.Provisioned() {
		if err := h.panel.DeleteServer(*server.PanelServerID, true); err != nil {
			return panelErrorResponse(c, err)
		}
	}

	database.DB.Delete(server)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Server deleted",
	})
}

// AdminList returns all servers with owners (staff)
func (h *ServerHandler) AdminList(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var total int64
	database.DB.Model(&models.Server{}).Count(&total)

	var servers []models.Server
	database.DB.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&servers)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    servers,
		"meta": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// AdminUpdateRequest is the admin server edit payload
type AdminUpdateRequest struct {
	Name      *string  `json:"name"`
	RAM       *int     `json:"ram"`
	Cores     *int     `json:"cores"`
	Disk      *int     `json:"disk"`
	Price     *float64 `json:"price"`
	Status    *string  `json:"status"`
	ExpiresAt *string  `json:"expires_at"`
}

// AdminUpdate edits a server; resource changes are pushed to the panel
// before the local write
func (h *ServerHandler) AdminUpdate(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid server id",
		})
	}

	var server models.Server
	if err := database.DB.First(&server, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Server not found",
		})
	}

	var req AdminUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	ram := server.RAM
	cores := server.Cores
	disk := server.Disk
	if req.RAM != nil {
		ram = *req.RAM
	}
	if req.Cores != nil {
		cores = *req.Cores
	}
	if req.Disk != nil {
		disk = *req.Disk
	}

	resourcesChanged := ram != server.RAM || cores != server.Cores || disk != server.Disk

	if resourcesChanged && server.Provisioned() {
		if err := h.tariff.PatchRemoteResources(*server.PanelServerID, ram, cores, disk); err != nil {
			return panelErrorResponse(c, err)
		}
	}

	updates := map[string]interface{}{
		"ram":     ram,
		"cores":   cores,
		"disk":    disk,
		"version": server.Version + 1,
	}
	if req.Name != nil && *req.Name != "" {
		updates["name"] = *req.Name
	}
	if req.Price != nil && *req.Price >= 0 {
		updates["price"] = *req.Price
	}
	if req.Status != nil {
		switch models.ServerStatus(*req.Status) {
		case models.ServerStatusActive, models.ServerStatusSuspended, models.ServerStatusExpired:
			updates["status"] = *req.Status
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid status",
			})
		}
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "expires_at must be RFC3339",
			})
		}
		updates["expires_at"] = t
	}

	res := database.DB.Model(&models.Server{}).
		Where("id = ? AND version = ?", server.ID, server.Version).
		Updates(updates)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update server",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Server is being modified by another operation, retry",
		})
	}

	database.DB.First(&server, server.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    server,
	})
}
