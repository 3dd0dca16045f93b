// pantry/text/fold.go
// Package text folds user-supplied strings for case- and accent-insensitive
// matching.
package text

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// chainPool hands out NFD → remove(Mn) → NFC chains; a chain is stateful.
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		)
	},
}

// Fold trims, lowercases and strips combining diacritics, so "  Ágent "
// becomes "agent". Letters without a decomposition ("ø", "ß") are kept.
// Blank input returns "".
func Fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if isASCIIAndLower(s) {
		return s
	}

	s = strings.ToLower(s)

	t := chainPool.Get().(transform.Transformer)
	defer func() {
		t.Reset()
		chainPool.Put(t)
	}()

	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Matcher finds folded needles in folded text. Needles are folded once at
// construction, so a Matcher built at startup costs one Fold per Match.
type Matcher struct {
	raw    []string
	folded []string
}

// NewMatcher drops needles that fold to "".
func NewMatcher(needles []string) *Matcher {
	m := &Matcher{}
	for _, n := range needles {
		if f := Fold(n); f != "" {
			m.raw = append(m.raw, n)
			m.folded = append(m.folded, f)
		}
	}
	return m
}

// Len is the number of usable needles.
func (m *Matcher) Len() int { return len(m.folded) }

// Match reports whether Fold(s) contains any needle and returns the first
// one that did, as given to NewMatcher.
func (m *Matcher) Match(s string) (string, bool) {
	if m == nil || len(m.folded) == 0 {
		return "", false
	}
	f := Fold(s)
	if f == "" {
		return "", false
	}
	for i, n := range m.folded {
		if strings.Contains(f, n) {
			return m.raw[i], true
		}
	}
	return "", false
}

// isASCIIAndLower reports whether s is pure ASCII with no A..Z.
func isASCIIAndLower(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= 0x80 || (b >= 'A' && b <= 'Z') {
			return false
		}
	}
	return true
}
