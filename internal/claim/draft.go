package claim

import (
	"time"

	"github.com/zombor/expensomatic/internal/expense"
)

// Draft is the remote claim built for one batch. Drafts are never deleted;
// a partially built claim stays in the remote system for manual cleanup.
type Draft struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Batch      int       `json:"batch"`
	Name       string    `json:"name"`
	RemoteID   string    `json:"remote_id,omitempty"`
	State      State     `json:"state"`
	Reason     string    `json:"reason,omitempty"`
	Items      []Item    `json:"items"`
	Screenshot string    `json:"screenshot,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Item is one line item of a draft and how far it got
type Item struct {
	Receipt       string           `json:"receipt"`
	Category      expense.Category `json:"category"`
	Amount        string           `json:"amount"`
	Currency      expense.Currency `json:"currency"`
	Date          string           `json:"date"`
	EffectiveDate string           `json:"effective_date"`
	DateAdjusted  bool             `json:"date_adjusted"`
	Added         bool             `json:"added"`
	Uploaded      bool             `json:"uploaded"`
	Error         string           `json:"error,omitempty"`
}

// Complete reports whether both the line item and its attachment succeeded
func (i Item) Complete() bool {
	return i.Added && i.Uploaded
}

// OutcomeStatus is where a receipt file ended up after a batch
type OutcomeStatus string

const (
	Archived    OutcomeStatus = "archived"
	Quarantined OutcomeStatus = "quarantined"
	LeftPending OutcomeStatus = "pending"
)

// ReceiptOutcome records the final state of one receipt file in a run
type ReceiptOutcome struct {
	Receipt     string        `json:"receipt"`
	Status      OutcomeStatus `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	Destination string        `json:"destination,omitempty"`
	DraftID     string        `json:"draft_id,omitempty"`
	RunID       string        `json:"run_id"`
	Batch       int           `json:"batch"`
	RecordedAt  time.Time     `json:"recorded_at"`
}
