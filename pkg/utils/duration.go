package utils

import "fmt"

// FormatDuration formats seconds into a short human-readable duration,
// e.g. "45s", "12m", "2h" or "2h 30m". Seconds are truncated, not rounded.
func FormatDuration(totalSeconds int64) string {
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	if totalSeconds < 3600 {
		return fmt.Sprintf("%dm", totalSeconds/60)
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
