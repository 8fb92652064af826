package dto

import "time"

// DueEscalation one actionable (invoice, tier) pair from a sweep preview.
type DueEscalation struct {
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	CustomerID    string `json:"customer_id"`
	TierID        string `json:"tier_id"`
	TierLabel     string `json:"tier_label"`
	Fee           string `json:"fee"`
	TotalDue      string `json:"total_due"`
}

// MahnungResponse one recorded escalation.
type MahnungResponse struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoice_id"`
	TierID    string    `json:"tier_id"`
	Fee       string    `json:"fee"`
	TotalDue  string    `json:"total_due"`
	CreatedAt time.Time `json:"created_at"`
}

// ReceivablesResponse open amounts including dunning fees.
type ReceivablesResponse struct {
	OpenInvoices string `json:"open_invoices"` // sum of unpaid gross amounts
	DunningFees  string `json:"dunning_fees"`  // sum of recorded fees
	Total        string `json:"total"`
	Source       string `json:"source"` // "remote" or "local"
}
