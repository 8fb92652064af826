package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/handwerkpro/handwerk-api/internal/application/dto"
	"github.com/handwerkpro/handwerk-api/internal/application/dunning"
	"github.com/handwerkpro/handwerk-api/internal/application/sync"
	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
	"github.com/handwerkpro/handwerk-api/pkg/logger"
)

// ReceivablesSource aggregates open invoice amounts server-side.
// Satisfied by *postgres.RemoteStore; nil on offline-only instances.
type ReceivablesSource interface {
	ReceivablesTotal(ctx context.Context, ownerID string) (decimal.Decimal, error)
}

// ReportHandler serves the receivables report. The authoritative number
// comes from the backend; while unreachable it is computed from the local
// cache and marked as such.
type ReportHandler struct {
	remote  ReceivablesSource
	syncer  *sync.Engine
	dunning *dunning.Engine
	log     *logger.Logger
	tenant  string
}

// NewReportHandler builds the handler.
func NewReportHandler(remote ReceivablesSource, syncer *sync.Engine, dunningEngine *dunning.Engine, log *logger.Logger, tenant string) *ReportHandler {
	return &ReportHandler{remote: remote, syncer: syncer, dunning: dunningEngine, log: log, tenant: tenant}
}

// Receivables godoc
// @Summary      Open receivables including accrued dunning fees
// @Tags         reports
// @Produce      json
// @Success      200  {object}  dto.ReceivablesResponse
// @Router       /api/reports/receivables [get]
func (h *ReportHandler) Receivables(c *fiber.Ctx) error {
	open, source := h.openInvoicesTotal(c.UserContext())

	fees, err := h.feesTotal()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}

	return c.JSON(dto.ReceivablesResponse{
		OpenInvoices: open.StringFixed(2),
		DunningFees:  fees.StringFixed(2),
		Total:        open.Add(fees).StringFixed(2),
		Source:       source,
	})
}

func (h *ReportHandler) openInvoicesTotal(ctx context.Context) (decimal.Decimal, string) {
	if h.remote != nil {
		total, err := h.remote.ReceivablesTotal(ctx, h.tenant)
		if err == nil {
			return total, "remote"
		}
		h.log.Warn().Err(err).Msg("remote receivables unavailable, using local cache")
	}

	total := decimal.Zero
	records, err := h.syncer.List(entity.CollectionInvoices)
	if err != nil {
		return total, "local"
	}
	for _, rec := range records {
		inv, err := entity.InvoiceFromRecord(rec)
		if err != nil {
			continue
		}
		if inv.Unpaid() {
			total = total.Add(inv.GrossAmount)
		}
	}
	return total, "local"
}

func (h *ReportHandler) feesTotal() (decimal.Decimal, error) {
	total := decimal.Zero
	records, err := h.syncer.List(entity.CollectionInvoices)
	if err != nil {
		return total, err
	}
	for _, rec := range records {
		fees, err := h.dunning.FeeTotal(rec.ID)
		if err != nil {
			return total, err
		}
		total = total.Add(fees)
	}
	return total, nil
}
