package dunning_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handwerkpro/handwerk-api/internal/application/dunning"
	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
)

func tierByID(t *testing.T, id string) entity.Tier {
	t.Helper()
	for _, tier := range entity.DefaultTierTable() {
		if tier.ID == id {
			return tier
		}
	}
	t.Fatalf("unknown tier %q", id)
	return entity.Tier{}
}

func TestComposeLetter_SubjectsFollowTheLadder(t *testing.T) {
	inv := testInvoice(entity.InvoiceStatusOffen, 1000)
	now := issued.AddDate(0, 0, 30)
	total := decimal.NewFromInt(1005)

	cases := []struct {
		tier    string
		subject string
	}{
		{entity.TierErinnerung, "Zahlungserinnerung zur Rechnung RE-2024-001"},
		{entity.TierMahnung1, "1. Mahnung zur Rechnung RE-2024-001"},
		{entity.TierMahnung2, "2. Mahnung zur Rechnung RE-2024-001"},
		{entity.TierMahnung3, "3. und letzte Mahnung zur Rechnung RE-2024-001"},
		{entity.TierInkasso, "Übergabe an das Inkassobüro: Rechnung RE-2024-001"},
	}
	for _, tc := range cases {
		letter := dunning.ComposeLetter(inv, tierByID(t, tc.tier), "Schmidt GmbH", total, 7, now)
		assert.Equal(t, tc.subject, letter.Subject, "tier %s", tc.tier)
		assert.NotEmpty(t, letter.Body)
	}
}

func TestComposeLetter_BodyCarriesTotalAndDeadline(t *testing.T) {
	inv := testInvoice(entity.InvoiceStatusOffen, 1000)
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	letter := dunning.ComposeLetter(inv, tierByID(t, entity.TierMahnung1), "Schmidt GmbH",
		decimal.NewFromFloat(1005), 7, now)

	assert.Contains(t, letter.Body, "Sehr geehrte/r Schmidt GmbH,")
	assert.Contains(t, letter.Body, "1.005,00 €", "the total due is printed German-style")
	assert.Contains(t, letter.Body, "Zahlbar bis: 08.02.2024", "deadline is now plus the grace period")
}

func TestComposeLetter_FallsBackToGenericSalutation(t *testing.T) {
	inv := testInvoice(entity.InvoiceStatusOffen, 1000)
	letter := dunning.ComposeLetter(inv, tierByID(t, entity.TierErinnerung), "",
		decimal.NewFromInt(1000), 7, issued.AddDate(0, 0, 14))
	assert.Contains(t, letter.Body, "Sehr geehrte Damen und Herren,")
}

func TestComposeLetter_IsDeterministic(t *testing.T) {
	inv := testInvoice(entity.InvoiceStatusOffen, 1000)
	now := issued.AddDate(0, 0, 28)
	total := decimal.NewFromInt(1005)
	tier := tierByID(t, entity.TierMahnung1)

	a := dunning.ComposeLetter(inv, tier, "Schmidt GmbH", total, 7, now)
	b := dunning.ComposeLetter(inv, tier, "Schmidt GmbH", total, 7, now)
	require.Equal(t, a, b, "same inputs must render the same letter")
}

func TestFormatEUR(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0,00 €"},
		{"5", "5,00 €"},
		{"1005", "1.005,00 €"},
		{"1234567.89", "1.234.567,89 €"},
		{"-42.5", "-42,50 €"},
	}
	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, dunning.FormatEUR(d), "input %s", tc.in)
	}
}
