package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/panel"
	"github.com/luminahost/backend/internal/services"
)

// PanelAdminHandler proxies a small admin surface straight onto the panel
type PanelAdminHandler struct {
	panel services.PanelPort
}

func NewPanelAdminHandler(p services.PanelPort) *PanelAdminHandler {
	return &PanelAdminHandler{panel: p}
}

// listClient is the optional wider surface *panel.Client offers beyond
// PanelPort
type listClient interface {
	ListServers() ([]panel.RemoteServer, error)
	ListUsers() ([]panel.RemoteUser, error)
}

// ListServers lists all panel servers (admin)
func (h *PanelAdminHandler) ListServers(c *fiber.Ctx) error {
	lc, ok := h.panel.(listClient)
	if !ok {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"success": false,
			"message": "Panel listing not available",
		})
	}

	servers, err := lc.ListServers()
	if err != nil {
		return panelErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    servers,
	})
}

// ListUsers lists all panel users (admin)
func (h *PanelAdminHandler) ListUsers(c *fiber.Ctx) error {
	lc, ok := h.panel.(listClient)
	if !ok {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"success": false,
			"message": "Panel listing not available",
		})
	}

	users, err := lc.ListUsers()
	if err != nil {
		return panelErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    users,
	})
}

func (h *PanelAdminHandler) serverID(c *fiber.Ctx) (int, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid panel server id")
	}
	return id, nil
}

// Suspend suspends a panel server (admin)
func (h *PanelAdminHandler) Suspend(c *fiber.Ctx) error {
	id, err := h.serverID(c)
	if err != nil {
		fe := err.(*fiber.Error)
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
	}

	if err := h.panel.SuspendServer(id); err != nil {
		return panelErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Server suspended",
	})
}

// Unsuspend unsuspends a panel server (admin)
func (h *PanelAdminHandler) Unsuspend(c *fiber.Ctx) error {
	id, err := h.serverID(c)
	if err != nil {
		fe := err.(*fiber.Error)
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
	}

	if err := h.panel.UnsuspendServer(id); err != nil {
		return panelErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Server unsuspended",
	})
}

// Delete force-deletes a panel server (admin)
func (h *PanelAdminHandler) Delete(c *fiber.Ctx) error {
	id, err := h.serverID(c)
	if err != nil {
		fe := err.(*fiber.Error)
		return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
	}

	if err := h.panel.DeleteServer(id, true); err != nil {
		return panelErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Server deleted",
	})
}
