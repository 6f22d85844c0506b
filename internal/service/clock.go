package service

import "time"

// Clock supplies the current time to the workflow and alert rules
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by time.Now in UTC
func SystemClock() Clock {
	return systemClock{}
}

// dateOf truncates t to midnight UTC of its calendar day
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// wholeDaysBetween returns floor((to - from) / 24h)
func wholeDaysBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
