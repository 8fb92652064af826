package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/handwerkpro/handwerk-api/internal/application/dto"
	"github.com/handwerkpro/handwerk-api/internal/application/dunning"
	"github.com/handwerkpro/handwerk-api/internal/application/sync"
	"github.com/handwerkpro/handwerk-api/internal/domain"
	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
)

// DunningHandler exposes the escalation engine: preview, manual pass,
// per-invoice history and printable letters.
type DunningHandler struct {
	engine      *dunning.Engine
	runner      *dunning.Runner
	syncer      *sync.Engine
	pdf         dunning.PDFGenerator
	workshop    string
	paymentDays int
}

// NewDunningHandler builds the handler.
func NewDunningHandler(engine *dunning.Engine, runner *dunning.Runner, syncer *sync.Engine, pdf dunning.PDFGenerator, workshop string, paymentDays int) *DunningHandler {
	return &DunningHandler{
		engine:      engine,
		runner:      runner,
		syncer:      syncer,
		pdf:         pdf,
		workshop:    workshop,
		paymentDays: paymentDays,
	}
}

// Due godoc
// @Summary      Preview due escalations without firing them
// @Tags         dunning
// @Produce      json
// @Success      200  {array}  dto.DueEscalation
// @Router       /api/dunning/due [get]
func (h *DunningHandler) Due(c *fiber.Ctx) error {
	invoices, err := h.syncer.List(entity.CollectionInvoices)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}

	due := h.engine.Sweep(invoices, time.Now().UTC())
	out := make([]dto.DueEscalation, 0, len(due))
	for _, d := range due {
		priorFees, err := h.engine.FeeTotal(d.Invoice.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		}
		out = append(out, dto.DueEscalation{
			InvoiceID:     d.Invoice.ID,
			InvoiceNumber: d.Invoice.Number,
			CustomerID:    d.Invoice.CustomerID,
			TierID:        d.Tier.ID,
			TierLabel:     d.Tier.Label,
			Fee:           d.Tier.Fee.StringFixed(2),
			TotalDue:      d.Invoice.GrossAmount.Add(priorFees).Add(d.Tier.Fee).StringFixed(2),
		})
	}
	return c.JSON(out)
}

// Run godoc
// @Summary      Execute one dunning pass now
// @Description  Sends letters and records fired tiers. Returns 409 while
// @Description  another pass is in flight.
// @Tags         dunning
// @Produce      json
// @Success      200  {object}  dunning.RunReport
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/dunning/run [post]
func (h *DunningHandler) Run(c *fiber.Ctx) error {
	report, err := h.runner.RunOnce(c.UserContext())
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "PASS_IN_FLIGHT", Message: "a dunning pass is already running"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(report)
}

// History godoc
// @Summary      Escalation history of an invoice
// @Tags         dunning
// @Produce      json
// @Param        invoiceID  path  string  true  "invoice id"
// @Success      200  {array}  dto.MahnungResponse
// @Router       /api/dunning/invoices/{invoiceID} [get]
func (h *DunningHandler) History(c *fiber.Ctx) error {
	history, err := h.engine.History(c.Params("invoiceID"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	out := make([]dto.MahnungResponse, 0, len(history))
	for _, m := range history {
		out = append(out, dto.MahnungResponse{
			ID:        m.ID,
			InvoiceID: m.InvoiceID,
			TierID:    m.TierID,
			Fee:       m.Fee.StringFixed(2),
			TotalDue:  m.TotalDue.StringFixed(2),
			CreatedAt: m.CreatedAt,
		})
	}
	return c.JSON(out)
}

// LetterPDF godoc
// @Summary      Printable letter for a fired escalation tier
// @Tags         dunning
// @Produce      application/pdf
// @Param        invoiceID  path  string  true  "invoice id"
// @Param        tierID     path  string  true  "tier id"
// @Success      200  {file}  binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/dunning/invoices/{invoiceID}/letters/{tierID}/pdf [get]
func (h *DunningHandler) LetterPDF(c *fiber.Ctx) error {
	invoiceID := c.Params("invoiceID")
	tierID := c.Params("tierID")

	tier, ok := h.engine.TierByID(tierID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "UNKNOWN_TIER", Message: "unknown tier: " + tierID})
	}

	rec, err := h.syncer.Get(entity.CollectionInvoices, invoiceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	invoice, err := entity.InvoiceFromRecord(rec)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "MALFORMED_RECORD", Message: err.Error()})
	}

	customerName := invoice.CustomerID
	if customer, err := h.syncer.Get(entity.CollectionCustomers, invoice.CustomerID); err == nil {
		if name := customer.Field("name"); name != "" {
			customerName = name
		}
	}

	history, err := h.engine.History(invoiceID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	priorFees, err := h.engine.FeeTotal(invoiceID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}

	now := time.Now().UTC()
	totalDue := invoice.GrossAmount.Add(priorFees)
	letter := dunning.ComposeLetter(invoice, tier, customerName, totalDue, h.paymentDays, now)

	pdfBytes, err := h.pdf.GenerateMahnungPDF(c.UserContext(), dunning.PDFData{
		Workshop:     h.workshop,
		CustomerName: customerName,
		Invoice:      invoice,
		Tier:         tier,
		FeesAccrued:  history,
		Letter:       letter,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "PDF_FAILED", Message: err.Error()})
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="mahnung-`+invoice.Number+"-"+tier.ID+`.pdf"`)
	return c.Send(pdfBytes)
}
