// Package ai wraps the external document-analysis provider. The analyzer is
// an explicit dependency handed to the intake path at startup; there is no
// process-wide provider registry, so tests can substitute fakes.
package ai

import (
	"context"
)

// Analysis is the structured extraction returned for an uploaded document
type Analysis struct {
	Classification string           `json:"classification"`
	Summary        string           `json:"summary,omitempty"`
	VendorName     string           `json:"vendor_name,omitempty"`
	EstimatedValue float64          `json:"estimated_value,omitempty"`
	Risks          []Risk           `json:"risks,omitempty"`
	LineItems      []LineItem       `json:"line_items,omitempty"`
	Compliance     []ComplianceItem `json:"compliance,omitempty"`
}

// Risk is one identified risk factor
type Risk struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// LineItem is one extracted bill-of-quantities row
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	UnitPrice   float64 `json:"unit_price,omitempty"`
}

// ComplianceItem is one requirement with its assessed status
type ComplianceItem struct {
	Requirement string `json:"requirement"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
}

// Analyzer extracts a structured Analysis from raw document bytes
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, mimeType string) (*Analysis, error)
}
