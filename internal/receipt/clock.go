package receipt

import "time"

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// SystemTime reads the wall clock
type SystemTime struct{}

func (SystemTime) Now() time.Time {
	return time.Now()
}
