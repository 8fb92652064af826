package dunning

import (
	"context"

	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
)

// PDFData is everything a printable dunning letter needs.
type PDFData struct {
	Workshop     string // sender name on the letterhead
	CustomerName string
	Invoice      *entity.Invoice
	Tier         entity.Tier
	FeesAccrued  []*entity.Mahnung // history up to and including this tier
	Letter       Letter
}

// PDFGenerator renders a dunning letter as a PDF document.
type PDFGenerator interface {
	GenerateMahnungPDF(ctx context.Context, data PDFData) ([]byte, error)
}
