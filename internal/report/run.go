package report

import (
	"time"

	"github.com/zombor/expensomatic/internal/claim"
)

// Run is everything one pipeline run did
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	// Pending is the number of receipts found at start
	Pending int
	Batches []*claim.Report
	// Err is the fatal error that stopped the run, if any
	Err error
}

// Count totals receipts with status across all batches
func (r *Run) Count(status claim.OutcomeStatus) int {
	n := 0
	for _, b := range r.Batches {
		n += b.Count(status)
	}
	return n
}

// ClaimsSaved counts batches whose claim reached DONE with a remote draft
func (r *Run) ClaimsSaved() int {
	n := 0
	for _, b := range r.Batches {
		if b.State == claim.Done && b.Draft != nil {
			n++
		}
	}
	return n
}

// Outcomes flattens the per-batch outcomes in batch order
func (r *Run) Outcomes() []claim.ReceiptOutcome {
	var out []claim.ReceiptOutcome
	for _, b := range r.Batches {
		out = append(out, b.Outcomes...)
	}
	return out
}
