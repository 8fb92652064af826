package entity

import "github.com/shopspring/decimal"

// Tier IDs of the dunning ladder, in escalation order.
const (
	TierOffen      = "offen"      // not yet due, no action
	TierErinnerung = "erinnerung" // friendly payment reminder
	TierMahnung1   = "mahnung_1"  // 1. Mahnung, first fee
	TierMahnung2   = "mahnung_2"  // 2. Mahnung
	TierMahnung3   = "mahnung_3"  // 3. Mahnung, last in-house step
	TierInkasso    = "inkasso"    // handed to collections
)

// Tier is one step of the dunning ladder: reached once the invoice is
// AfterDays old, adding Fee to the amount owed.
type Tier struct {
	AfterDays int
	ID        string
	Label     string
	Fee       decimal.Decimal
}

// Base reports whether the tier is the "not yet due" base step that never
// triggers a letter.
func (t Tier) Base() bool {
	return t.ID == TierOffen
}

// DefaultTierTable returns the dunning ladder, ordered by ascending
// AfterDays. CurrentTier depends on this ordering: the table is walked front
// to back and the last matching entry wins.
func DefaultTierTable() []Tier {
	return []Tier{
		{AfterDays: 0, ID: TierOffen, Label: "Offen", Fee: decimal.Zero},
		{AfterDays: 14, ID: TierErinnerung, Label: "Zahlungserinnerung", Fee: decimal.Zero},
		{AfterDays: 28, ID: TierMahnung1, Label: "1. Mahnung", Fee: decimal.NewFromInt(5)},
		{AfterDays: 42, ID: TierMahnung2, Label: "2. Mahnung", Fee: decimal.NewFromInt(10)},
		{AfterDays: 56, ID: TierMahnung3, Label: "3. Mahnung", Fee: decimal.NewFromInt(15)},
		{AfterDays: 70, ID: TierInkasso, Label: "Inkasso-Übergabe", Fee: decimal.Zero},
	}
}
