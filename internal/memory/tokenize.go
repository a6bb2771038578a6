// Package memory implements the three-tier memory model: short-term
// conversation history, mid-term working memory for the current goal, and
// long-term retrieval over markdown files and vector stores. A token budget
// allocator keeps the assembled system prompt within the model's context
// window.
package memory

import (
	"strings"
	"unicode"
)

// IsCJK reports whether r falls in the CJK unified ideograph blocks or the
// Japanese kana / CJK punctuation ranges. Mixed-script queries are tokenized
// differently from pure Latin text.
func IsCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF:
		return true
	case r >= 0x3400 && r <= 0x4DBF:
		return true
	case r >= 0xF900 && r <= 0xFAFF:
		return true
	case r >= 0x3000 && r <= 0x303F:
		return true
	case r >= 0x3040 && r <= 0x309F:
		return true
	case r >= 0x30A0 && r <= 0x30FF:
		return true
	}
	return false
}

// ContainsCJK reports whether any rune of s is CJK.
func ContainsCJK(s string) bool {
	for _, r := range s {
		if IsCJK(r) {
			return true
		}
	}
	return false
}

// Tokenize splits text into lowercase search tokens. CJK ideographs become
// single-rune tokens since they carry word-level meaning on their own; Latin
// runs are split on non-letter boundaries. Single-character Latin tokens are
// dropped as noise.
func Tokenize(text string) []string {
	if !ContainsCJK(text) {
		var out []string
		for _, w := range strings.Fields(text) {
			w = strings.ToLower(w)
			if len(w) > 1 {
				out = append(out, w)
			}
		}
		return out
	}

	var out []string
	var latin []rune
	flush := func() {
		if len(latin) == 0 {
			return
		}
		w := strings.ToLower(string(latin))
		if len(w) > 1 {
			out = append(out, w)
		}
		latin = latin[:0]
	}
	for _, r := range text {
		switch {
		case IsCJK(r):
			flush()
			if !unicode.IsPunct(r) && !unicode.IsSpace(r) {
				out = append(out, string(r))
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			latin = append(latin, r)
		default:
			flush()
		}
	}
	flush()
	return out
}

// TokenSet returns the deduplicated token set of text.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard computes |a∩b| / |a∪b|. Either set being empty yields 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Overlap counts tokens shared by both sets.
func Overlap(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}
