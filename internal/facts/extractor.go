// Package facts turns free text into key/value fact pairs and detects
// contradictions between incoming facts and a user's stored long-term
// facts. Extraction is rule-based and deterministic; it makes no external
// calls.
package facts

import (
	"regexp"
	"strings"

	"github.com/scrypster/recall/pkg/types"
)

// maxKeyRunes rejects colon lines whose left side is too long to be a
// label (usually prose containing a stray colon).
const maxKeyRunes = 24

// labelPatterns recognizes common self-description sentences and maps them
// to a canonical fact key. Kept deliberately small: the extractor is a
// precision tool, not an NLU layer.
var labelPatterns = []struct {
	re  *regexp.Regexp
	key string
}{
	{regexp.MustCompile(`(?i)\bmy name is\s+(.{1,64}?)[.!]?$`), "name"},
	{regexp.MustCompile(`(?i)\bi live in\s+(.{1,64}?)[.!]?$`), "location"},
	{regexp.MustCompile(`(?i)\bi work (?:at|for)\s+(.{1,64}?)[.!]?$`), "employer"},
	{regexp.MustCompile(`(?i)\bmy birthday is\s+(.{1,64}?)[.!]?$`), "birthday"},
	{regexp.MustCompile(`(?i)\bmy favorite ([a-z ]{1,24}) is\s+(.{1,64}?)[.!]?$`), ""},
}

// ExtractFacts segments text into fact pairs. A fact is either an explicit
// "<label>: <value>" line (ASCII or fullwidth colon) or a sentence matched
// by the label vocabulary. Duplicate keys keep the last value seen.
func ExtractFacts(text string) []types.Fact {
	var out []types.Fact
	seen := make(map[string]int)

	appendFact := func(key, value string) {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			return
		}
		if i, ok := seen[key]; ok {
			out[i].Value = value
			return
		}
		seen[key] = len(out)
		out = append(out, types.Fact{Key: key, Value: value})
	}

	for _, line := range splitSegments(text) {
		if key, value, ok := splitLabelLine(line); ok {
			appendFact(key, value)
			continue
		}
		for _, p := range labelPatterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if p.key != "" {
				appendFact(p.key, m[1])
			} else {
				// "my favorite X is Y" — the label comes from the match.
				appendFact("favorite "+strings.TrimSpace(strings.ToLower(m[1])), m[2])
			}
			break
		}
	}
	return out
}

// splitSegments breaks text on newlines and common sentence separators.
func splitSegments(text string) []string {
	segs := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '\n', ';', '；', '。':
			return true
		}
		return false
	})
	for i := range segs {
		segs[i] = strings.TrimSpace(segs[i])
	}
	return segs
}

// splitLabelLine parses "<label>: <value>" with either colon form. The
// first colon wins so values may themselves contain colons.
func splitLabelLine(line string) (key, value string, ok bool) {
	idx := strings.IndexAny(line, ":：")
	if idx <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	// Skip past the colon rune, which may be multi-byte.
	rest := line[idx:]
	_, size := firstRune(rest)
	value = strings.TrimSpace(rest[size:])
	if key == "" || value == "" || len([]rune(key)) > maxKeyRunes {
		return "", "", false
	}
	return key, value, true
}

func firstRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}
