package submit

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	notifyTimeLayout = "2006-01-02T15:04:05.999999"
	readableLayout   = "2006-01-02 15:04:05"
)

// NormalizeNotifyTime truncates a sub-second fraction longer than 6 digits
// to exactly 6 digits. Shorter fractions are left untouched.
func NormalizeNotifyTime(s string) string {
	head, frac, ok := strings.Cut(s, ".")
	if !ok || len(frac) <= 6 {
		return s
	}
	return head + "." + frac[:6] + "Z"
}

// FormatNotifyTime converts a raw API notification timestamp into a
// human-readable form, falling back to "N/A" when the value is absent or
// cannot be parsed.
func FormatNotifyTime(raw string) string {
	if raw == "" {
		return "N/A"
	}

	normalized := strings.TrimRight(NormalizeNotifyTime(raw), "Z")
	t, err := time.Parse(notifyTimeLayout, normalized)
	if err != nil {
		logrus.Warnf("Could not parse notify time %q: %v", raw, err)
		return "N/A"
	}

	return t.Format(readableLayout)
}
