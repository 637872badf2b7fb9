package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/services"
)

// StatusHandler serves the public status page: panel reachability plus the
// node list, cached briefly in Redis so the panel is not polled per request
type StatusHandler struct {
	panel services.PanelPort
}

func NewStatusHandler(p services.PanelPort) *StatusHandler {
	return &StatusHandler{panel: p}
}

type statusPayload struct {
	PanelOnline bool         `json:"panel_online"`
	Nodes       []statusNode `json:"nodes"`
}

type statusNode struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Get returns the cached status snapshot
func (h *StatusHandler) Get(c *fiber.Ctx) error {
	var payload statusPayload

	if err := database.CacheGet(database.CacheKeyStatus, &payload); err != nil {
		nodes, err := h.panel.ListNodes()
		if err != nil {
			payload = statusPayload{PanelOnline: false}
		} else {
			payload.PanelOnline = true
			for _, n := range nodes {
				payload.Nodes = append(payload.Nodes, statusNode{ID: n.ID, Name: n.Name})
			}
		}
		database.CacheSet(database.CacheKeyStatus, payload, database.CacheTTLStatus)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    payload,
	})
}
