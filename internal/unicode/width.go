// Package unicode segments text into grapheme clusters and measures their
// display width under a configurable width policy.
package unicode

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
	"golang.org/x/text/width"
)

// WidthPolicy selects how ambiguous clusters are measured.
// Values are part of the engine configuration ABI.
type WidthPolicy uint32

const (
	// EmojiNarrow measures emoji clusters as one column.
	EmojiNarrow WidthPolicy = 0

	// EmojiWide measures emoji clusters as two columns.
	EmojiWide WidthPolicy = 1

	// AmbiguousWide is EmojiWide plus East Asian ambiguous characters as
	// two columns, for CJK locales.
	AmbiguousWide WidthPolicy = 2
)

// String returns the policy name.
func (p WidthPolicy) String() string {
	switch p {
	case EmojiNarrow:
		return "emoji-narrow"
	case EmojiWide:
		return "emoji-wide"
	case AmbiguousWide:
		return "ambiguous-wide"
	default:
		return "unknown"
	}
}

// Valid returns true for known policies.
func (p WidthPolicy) Valid() bool {
	return p <= AmbiguousWide
}

// Service measures text. It is stateless apart from its policy and safe
// for concurrent use.
type Service struct {
	policy WidthPolicy
	narrow *runewidth.Condition
}

// New creates a service for the given policy.
func New(policy WidthPolicy) *Service {
	if !policy.Valid() {
		policy = EmojiWide
	}
	cond := runewidth.NewCondition()
	cond.EastAsianWidth = false
	return &Service{policy: policy, narrow: cond}
}

// Policy returns the width policy.
func (s *Service) Policy() WidthPolicy {
	return s.policy
}

// NextGrapheme splits the first grapheme cluster off text and measures it.
// Widths are clamped to 0..2.
func (s *Service) NextGrapheme(text string) (cluster, rest string, w int) {
	if text == "" {
		return "", "", 0
	}
	cluster, rest, w, _ = uniseg.FirstGraphemeClusterInString(text, -1)

	switch s.policy {
	case EmojiNarrow:
		if isEmoji(cluster) {
			w = 1
		} else {
			w = s.narrow.StringWidth(cluster)
		}
	case AmbiguousWide:
		r, _ := utf8.DecodeRuneInString(cluster)
		if w == 1 && width.LookupRune(r).Kind() == width.EastAsianAmbiguous {
			w = 2
		}
	}
	return cluster, rest, min(max(w, 0), 2)
}

// StringWidth returns the total display width of text.
func (s *Service) StringWidth(text string) int {
	total := 0
	for text != "" {
		var w int
		_, text, w = s.NextGrapheme(text)
		total += w
	}
	return total
}

// Graphemes splits text into clusters with their widths.
func (s *Service) Graphemes(text string) []Grapheme {
	var out []Grapheme
	for text != "" {
		var g Grapheme
		g.Text, text, g.Width = s.NextGrapheme(text)
		out = append(out, g)
	}
	return out
}

// Grapheme is one measured cluster.
type Grapheme struct {
	Text  string
	Width int
}

// isEmoji reports whether a cluster renders with emoji presentation.
func isEmoji(cluster string) bool {
	if strings.ContainsRune(cluster, 0xFE0F) || strings.ContainsRune(cluster, 0x200D) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(cluster)
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	}
	return false
}
