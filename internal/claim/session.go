package claim

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/expensomatic/internal/expense"
	"github.com/zombor/expensomatic/internal/receipt"
)

// ClaimHeader describes the claim shell to create
type ClaimHeader struct {
	Name         string
	ProjectID    string
	IncurredDate time.Time
}

// ClaimRef identifies a claim in the remote system
type ClaimRef struct {
	ID   string
	Name string
}

// LineItem is the remote representation of one expense entry
type LineItem struct {
	Category    expense.Category
	CategoryID  string
	Amount      decimal.Decimal
	Currency    expense.Currency
	Date        time.Time
	Description string
}

// LineItemRef identifies a line item within a claim
type LineItemRef struct {
	Claim ClaimRef
	Index int
}

// Session is the authenticated remote-UI automation surface. One session
// builds one claim at a time.
type Session interface {
	CreateClaim(ctx context.Context, header ClaimHeader) (ClaimRef, error)
	AddLineItem(ctx context.Context, claim ClaimRef, item LineItem) (LineItemRef, error)
	UploadAttachment(ctx context.Context, item LineItemRef, path string) error
	Save(ctx context.Context, claim ClaimRef) error
	CaptureScreenshot(ctx context.Context, claim ClaimRef) ([]byte, error)
}

// Extractor turns a receipt file into an extraction result. An error means
// the extraction service itself is unusable.
type Extractor interface {
	Analyze(ctx context.Context, file receipt.File) (expense.Result, error)
}

// Confirmation is what the operator is asked to verify
type Confirmation struct {
	ClaimName    string
	Batch        int
	TotalBatches int
	Items        int
	ItemFailures int
}

// Confirmer blocks until the operator confirms or declines a saved claim
type Confirmer interface {
	Confirm(ctx context.Context, c Confirmation) (bool, error)
}

// Recorder persists drafts and receipt outcomes for audit
type Recorder interface {
	SaveDraft(draft *Draft) error
	RecordOutcome(outcome ReceiptOutcome) error
}

// IDGenerator generates unique draft IDs
type IDGenerator interface {
	Generate() string
}
