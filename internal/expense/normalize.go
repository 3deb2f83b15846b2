package expense

import (
	"fmt"
	"time"
)

// DateFallback selects the date used when an old receipt is overridden
type DateFallback string

const (
	// FallbackToday replaces a stale date with today's date
	FallbackToday DateFallback = "today"
	// FallbackMaxAge replaces a stale date with the oldest date still accepted
	FallbackMaxAge DateFallback = "max-age"
)

// ParseDateFallback validates a configured fallback name
func ParseDateFallback(s string) (DateFallback, error) {
	switch DateFallback(s) {
	case FallbackToday, "":
		return FallbackToday, nil
	case FallbackMaxAge:
		return FallbackMaxAge, nil
	default:
		return "", fmt.Errorf("unknown date fallback %q (want %q or %q)", s, FallbackToday, FallbackMaxAge)
	}
}

// DatePolicy controls the date-override rule
type DatePolicy struct {
	OverrideOldDates bool
	MaxDaysOld       int
	Fallback         DateFallback
}

// DefaultDatePolicy matches the remote system's 30 day limit
func DefaultDatePolicy() DatePolicy {
	return DatePolicy{OverrideOldDates: true, MaxDaysOld: 30, Fallback: FallbackToday}
}

// LineItem is a Success after the date-override policy was applied
type LineItem struct {
	Success
	EffectiveDate   time.Time
	WasDateAdjusted bool
}

// Normalize applies the date-override policy to s. It performs no I/O.
func Normalize(s Success, today time.Time, policy DatePolicy) LineItem {
	item := LineItem{Success: s, EffectiveDate: DateOf(s.Date)}
	if !policy.OverrideOldDates {
		return item
	}

	today = DateOf(today)
	if DaysBetween(item.EffectiveDate, today) <= policy.MaxDaysOld {
		return item
	}

	item.WasDateAdjusted = true
	switch policy.Fallback {
	case FallbackMaxAge:
		item.EffectiveDate = today.AddDate(0, 0, -policy.MaxDaysOld)
	default:
		item.EffectiveDate = today
	}
	return item
}

// DaysBetween counts whole calendar days from a to b
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// Description is the text sent to the remote line item. An adjusted item keeps
// its true receipt date in the description.
func (i LineItem) Description() string {
	if !i.WasDateAdjusted {
		return i.RawDescription
	}
	note := fmt.Sprintf("receipt dated %s", i.Date.Format(DateLayout))
	if i.RawDescription == "" {
		return note
	}
	return fmt.Sprintf("%s (%s)", i.RawDescription, note)
}

// Display formats the amount with its currency symbol, e.g. £12.50
func (i LineItem) Display() string {
	return i.Currency.Symbol() + i.Amount.StringFixed(2)
}
