package ui

import (
	"time"
)

// formatDateSeparator formats a date for display as a separator
func formatDateSeparator(timestamp string) string {
	if len(timestamp) < 10 {
		return ""
	}

	t, err := time.Parse("2006-01-02", timestamp[:10])
	if err != nil {
		return timestamp[:10]
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.AddDate(0, 0, -1)
	msgDate := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())

	if msgDate.Equal(today) {
		return "Today"
	} else if msgDate.Equal(yesterday) {
		return "Yesterday"
	} else if msgDate.Year() == now.Year() {
		return t.Format("January 2")
	}
	return t.Format("January 2, 2006")
}
