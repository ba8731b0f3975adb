package timeline

import (
	"fmt"
	"time"
)

// FormatRemaining renders d as "1h1m", "1h", "45m" or "45s". Seconds are
// shown only when there is less than a minute left. Negative durations
// render as "0s".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, m, s := total/3600, total%3600/60, total%60

	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatSpan renders an event's clock range with its length, like
// "09:00 - 09:15 (15m)".
func FormatSpan(start, end time.Time) string {
	return fmt.Sprintf("%s - %s (%s)", start.Format("15:04"), end.Format("15:04"), FormatLength(end.Sub(start)))
}

// FormatLength renders an event length as "15m", "2h" or "01:30". Unlike
// FormatRemaining it never shows seconds.
func FormatLength(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Minute)
	h, m := total/60, total%60

	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%02d:%02d", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
