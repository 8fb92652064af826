package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/handwerkpro/handwerk-api/internal/application/dto"
	"github.com/handwerkpro/handwerk-api/internal/application/sync"
)

// SyncHandler exposes the sync engine's observability and manual flush.
type SyncHandler struct {
	syncer *sync.Engine
}

// NewSyncHandler builds the handler.
func NewSyncHandler(syncer *sync.Engine) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

// Status godoc
// @Summary      Sync status: reachability, queue length, last pulls
// @Tags         sync
// @Produce      json
// @Success      200  {object}  sync.Status
// @Router       /api/sync/status [get]
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	status, err := h.syncer.Status(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(status)
}

// Flush godoc
// @Summary      Flush the sync queue now
// @Description  No-op while unreachable; queued items wait for connectivity.
// @Tags         sync
// @Produce      json
// @Success      200  {object}  sync.Report
// @Router       /api/sync/flush [post]
func (h *SyncHandler) Flush(c *fiber.Ctx) error {
	report, err := h.syncer.FlushQueue(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(report)
}
