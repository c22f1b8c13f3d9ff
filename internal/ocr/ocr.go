package ocr

import (
	"github.com/shopspring/decimal"
)

// Result is the structured outcome of one receipt scan. Failures are
// reported through Success and Error, never as an error return.
type Result struct {
	Success  bool             `json:"success"`
	Text     string           `json:"text,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Date     *string          `json:"date,omitempty"`
	Merchant *string          `json:"merchant,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func failed(message string) *Result {
	return &Result{Success: false, Error: message}
}
