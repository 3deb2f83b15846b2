package scanning

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnreadable means the receipt bytes could not be decoded into an image
	ErrUnreadable = errors.New("receipt unreadable")
	// ErrRefused means the model declined to analyze the receipt
	ErrRefused = errors.New("model refused")
	// ErrMalformed means the model answered but the answer was unusable
	ErrMalformed = errors.New("malformed model response")
	// ErrUnavailable means the extraction service cannot be used at all
	ErrUnavailable = errors.New("extraction service unavailable")
)

// StatusError is a non-2xx response from a vision provider
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// ReceiptData contains extracted information from a receipt. Every field is
// validated text; conversion to domain types happens in toSuccess.
type ReceiptData struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
	Date        string `json:"date"` // ISO 8601 format
	Description string `json:"description"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt analyzes a receipt image and extracts its fields
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error)
	// Close closes the scanner and releases resources
	Close() error
}
