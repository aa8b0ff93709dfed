package entities

import "strings"

type ActivityKind string

const (
	ActivityConnect     ActivityKind = "connect"
	ActivityScript      ActivityKind = "script"
	ActivityHyphenation ActivityKind = "hyphenation"
)

// ParseActivityKind normalizes request/path values such as "Connect" or " script ".
func ParseActivityKind(raw string) (ActivityKind, bool) {
	switch ActivityKind(strings.ToLower(strings.TrimSpace(raw))) {
	case ActivityConnect:
		return ActivityConnect, true
	case ActivityScript:
		return ActivityScript, true
	case ActivityHyphenation:
		return ActivityHyphenation, true
	default:
		return "", false
	}
}

func (k ActivityKind) Valid() bool {
	_, ok := ParseActivityKind(string(k))
	return ok
}
