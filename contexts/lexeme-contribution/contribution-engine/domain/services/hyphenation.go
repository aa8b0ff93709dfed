package services

import (
	"strings"

	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
)

// HyphenationPoint separates syllables in stored hyphenation strings.
const HyphenationPoint = "‧"

// segmentSeparators mark syllable breaks inside one segment. A plain hyphen is
// part of the word ("self-esteem") and is never a break point.
var segmentSeparators = []string{HyphenationPoint, "·", "|"}

// FlattenHyphenation joins caller-supplied segments into one hyphenation string.
// A single segment may itself contain separators ("hy‧phen|ation").
func FlattenHyphenation(segments []string) (string, error) {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		for _, part := range splitSegment(segment) {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "", domainerrors.ErrInvalidRequest
	}
	return strings.Join(parts, HyphenationPoint), nil
}

func splitSegment(segment string) []string {
	normalized := segment
	for _, separator := range segmentSeparators {
		normalized = strings.ReplaceAll(normalized, separator, "\x00")
	}
	var parts []string
	for _, part := range strings.Split(normalized, "\x00") {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
