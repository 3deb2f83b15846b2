package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used on the wire and in logs
const DateLayout = "2006-01-02"

// FailureReason classifies why a receipt could not be extracted
type FailureReason string

const (
	UnreadableFile    FailureReason = "UnreadableFile"
	ModelRefused      FailureReason = "ModelRefused"
	MalformedResponse FailureReason = "MalformedResponse"
	Timeout           FailureReason = "Timeout"
)

// Success is a fully populated extraction record. Every field is present.
type Success struct {
	Amount         decimal.Decimal
	Currency       Currency
	Category       Category
	Date           time.Time // calendar date, midnight UTC
	RawDescription string
}

// Failure records why extraction of a receipt did not produce a Success
type Failure struct {
	Receipt string // receipt file name
	Reason  FailureReason
	Detail  string
}

// Result holds exactly one of Success or Failure
type Result struct {
	Success *Success
	Failure *Failure
}

// Succeeded wraps s in a Result
func Succeeded(s Success) Result {
	return Result{Success: &s}
}

// Failed builds a failed Result for the named receipt
func Failed(receipt string, reason FailureReason, detail string) Result {
	return Result{Failure: &Failure{Receipt: receipt, Reason: reason, Detail: detail}}
}

// OK reports whether the result is a Success
func (r Result) OK() bool {
	return r.Success != nil
}

// DateOf truncates t to its calendar date at midnight UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
