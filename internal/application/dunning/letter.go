package dunning

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
)

// Letter is the rendered content of a dunning message. Rendering is
// deterministic: same invoice, tier and date always produce the same text.
type Letter struct {
	Subject string
	Body    string
}

// ComposeLetter renders the German letter for a tier. paymentDays is the
// grace period printed as the new payment deadline.
func ComposeLetter(inv *entity.Invoice, tier entity.Tier, customerName string, totalDue decimal.Decimal, paymentDays int, now time.Time) Letter {
	deadline := now.AddDate(0, 0, paymentDays).Format("02.01.2006")
	salutation := "Sehr geehrte Damen und Herren,"
	if customerName != "" {
		salutation = fmt.Sprintf("Sehr geehrte/r %s,", customerName)
	}

	var subject, opening string
	switch tier.ID {
	case entity.TierErinnerung:
		subject = fmt.Sprintf("Zahlungserinnerung zur Rechnung %s", inv.Number)
		opening = fmt.Sprintf(
			"sicherlich ist es Ihrer Aufmerksamkeit entgangen: Die Rechnung %s vom %s ist noch offen.",
			inv.Number, inv.IssuedAt.Format("02.01.2006"))
	case entity.TierMahnung1:
		subject = fmt.Sprintf("1. Mahnung zur Rechnung %s", inv.Number)
		opening = fmt.Sprintf(
			"trotz unserer Zahlungserinnerung ist die Rechnung %s vom %s weiterhin unbeglichen. Wir erlauben uns, eine Mahngebühr von %s zu berechnen.",
			inv.Number, inv.IssuedAt.Format("02.01.2006"), FormatEUR(tier.Fee))
	case entity.TierMahnung2:
		subject = fmt.Sprintf("2. Mahnung zur Rechnung %s", inv.Number)
		opening = fmt.Sprintf(
			"leider müssen wir Sie erneut an die offene Rechnung %s erinnern. Die Mahngebühr beträgt nunmehr %s.",
			inv.Number, FormatEUR(tier.Fee))
	case entity.TierMahnung3:
		subject = fmt.Sprintf("3. und letzte Mahnung zur Rechnung %s", inv.Number)
		opening = fmt.Sprintf(
			"dies ist unsere letzte Mahnung zur Rechnung %s. Sollte der Betrag nicht fristgerecht eingehen, sehen wir uns gezwungen, weitere Schritte einzuleiten. Es fällt eine Mahngebühr von %s an.",
			inv.Number, FormatEUR(tier.Fee))
	case entity.TierInkasso:
		subject = fmt.Sprintf("Übergabe an das Inkassobüro: Rechnung %s", inv.Number)
		opening = fmt.Sprintf(
			"da die Rechnung %s trotz dreifacher Mahnung nicht beglichen wurde, wurde der Vorgang an unser Inkassobüro übergeben.",
			inv.Number)
	default:
		subject = fmt.Sprintf("Offene Rechnung %s", inv.Number)
		opening = fmt.Sprintf("die Rechnung %s ist noch offen.", inv.Number)
	}

	body := fmt.Sprintf(`%s

%s

Offener Gesamtbetrag (inkl. Mahngebühren): %s
Zahlbar bis: %s

Sollte sich Ihre Zahlung mit diesem Schreiben überschnitten haben, betrachten Sie es bitte als gegenstandslos.

Mit freundlichen Grüßen
Ihr Handwerksbetrieb`,
		salutation, opening, FormatEUR(totalDue), deadline)

	return Letter{Subject: subject, Body: body}
}

// FormatEUR renders an amount the German way: 1.234,56 €.
func FormatEUR(d decimal.Decimal) string {
	s := d.StringFixed(2) // e.g. 1234.56
	intPart, fracPart, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + fracPart + " €"
	if neg {
		out = "-" + out
	}
	return out
}
