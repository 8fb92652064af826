// Package pdf renders printable dunning letters (Mahnungen) on A4.
//
// Page layout:
//
//	┌─────────────────────────────────────────────────────┐
//	│  HEADER: Workshop name        │  Label + date       │
//	│  ─────────────────────────────────────────────────  │
//	│  RECIPIENT: customer name                           │
//	│  SUBJECT: letter subject                            │
//	│  BODY: letter text                                  │
//	│  ─────────────────────────────────────────────────  │
//	│  AMOUNTS: invoice / fees / total due                │
//	└─────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/handwerkpro/handwerk-api/internal/application/dunning"
)

var (
	colorPrimary = &props.Color{Red: 120, Green: 30, Blue: 30}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// MarotoLetterGenerator implements dunning.PDFGenerator using Maroto v2.
type MarotoLetterGenerator struct{}

// NewMarotoLetterGenerator builds the generator.
func NewMarotoLetterGenerator() *MarotoLetterGenerator { return &MarotoLetterGenerator{} }

// GenerateMahnungPDF renders the letter and returns its bytes.
func (g *MarotoLetterGenerator) GenerateMahnungPDF(_ context.Context, data dunning.PDFData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(20).WithRightMargin(20).
		WithTopMargin(15).WithBottomMargin(15).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 10}).
		WithTitle(data.Letter.Subject, true).
		WithAuthor(data.Workshop, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(data))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(recipientRow(data))
	m.AddRows(subjectRow(data))
	for _, r := range bodyRows(data.Letter.Body) {
		m.AddRows(r)
	}
	m.AddRows(line.NewRow(2, props.Line{Color: colorGray, Thickness: 0.3}))
	for _, r := range amountRows(data) {
		m.AddRows(r)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate letter: %w", err)
	}
	return doc.GetBytes(), nil
}

// headerRow: workshop name (left), tier label and date (right).
func headerRow(data dunning.PDFData) core.Row {
	date := data.Invoice.IssuedAt.Format("02.01.2006")
	return row.New(16).Add(
		col.New(7).Add(
			text.New(data.Workshop, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
		),
		col.New(5).Add(
			text.New(strings.ToUpper(data.Tier.Label), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New("Rechnung "+data.Invoice.Number+" vom "+date, props.Text{
				Size: 8, Align: align.Right, Top: 9, Color: colorGray,
			}),
		),
	)
}

func recipientRow(data dunning.PDFData) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New(data.CustomerName, props.Text{Size: 10, Top: 4}),
		),
	)
}

func subjectRow(data dunning.PDFData) core.Row {
	return row.New(10).Add(
		col.New(12).Add(
			text.New(data.Letter.Subject, props.Text{
				Style: fontstyle.Bold, Size: 11, Top: 2,
			}),
		),
	)
}

// bodyRows: one text row per paragraph line, blank lines as spacing.
func bodyRows(body string) []core.Row {
	var rows []core.Row
	for _, ln := range strings.Split(body, "\n") {
		if strings.TrimSpace(ln) == "" {
			rows = append(rows, row.New(3))
			continue
		}
		rows = append(rows, row.New(5).Add(
			col.New(12).Add(text.New(ln, props.Text{Size: 10})),
		))
	}
	return rows
}

// amountRows: invoice amount, each accrued fee, and the bold total.
func amountRows(data dunning.PDFData) []core.Row {
	rows := []core.Row{
		amountRow("Rechnungsbetrag", dunning.FormatEUR(data.Invoice.GrossAmount), false),
	}
	total := data.Invoice.GrossAmount
	for _, m := range data.FeesAccrued {
		if m.Fee.IsZero() {
			continue
		}
		tierLabel := m.TierID
		rows = append(rows, amountRow("Mahngebühr ("+tierLabel+")", dunning.FormatEUR(m.Fee), false))
		total = total.Add(m.Fee)
	}
	rows = append(rows, amountRow("Offener Gesamtbetrag", dunning.FormatEUR(total), true))
	return rows
}

func amountRow(label, value string, bold bool) core.Row {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	return row.New(6).Add(
		col.New(8).Add(text.New(label, props.Text{Size: 10, Style: style})),
		col.New(4).Add(text.New(value, props.Text{Size: 10, Style: style, Align: align.Right})),
	)
}
