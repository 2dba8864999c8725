// Package cleaner normalizes raw text extracted from PDF pages. Cleaning is
// deterministic: identical input always yields identical output, which the
// content-addressed cache relies on.
package cleaner

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Cleaner normalizes a raw text span.
type Cleaner interface {
	Clean(text string) string
}

// Normalizer is the default cleaning pipeline: NFKC normalization, quote and
// dash unification, hyphenation repair across line breaks, bullet cleanup and
// whitespace collapse.
type Normalizer struct{}

func New() *Normalizer {
	return &Normalizer{}
}

var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
	"–", "-", "—", "-",
	" ", " ",
)

func (n *Normalizer) Clean(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\x00", "")
	// NFKC folds ligatures (ﬁ -> fi) and compatibility forms.
	text = norm.NFKC.String(text)
	text = quoteReplacer.Replace(text)
	text = repairHyphenation(text)
	text = stripBullets(text)
	text = collapseWhitespace(text)
	return text
}

// repairHyphenation rejoins words broken across line ends ("cool-\nant").
func repairHyphenation(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '-' && i > 0 && unicode.IsLetter(runes[i-1]) {
			j := i + 1
			for j < len(runes) && (runes[j] == ' ' || runes[j] == '\r') {
				j++
			}
			if j < len(runes) && runes[j] == '\n' {
				j++
				for j < len(runes) && unicode.IsSpace(runes[j]) {
					j++
				}
				if j < len(runes) && unicode.IsLower(runes[j]) {
					i = j - 1 // skip hyphen and the break
					continue
				}
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripBullets removes leading bullet glyphs from lines.
func stripBullets(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		for _, bullet := range []string{"• ", "▪ ", "● ", "‣ ", "- "} {
			if strings.HasPrefix(trimmed, bullet) {
				trimmed = strings.TrimPrefix(trimmed, bullet)
				break
			}
		}
		lines[i] = trimmed
	}
	return strings.Join(lines, "\n")
}

// collapseWhitespace squeezes runs of whitespace into single spaces and trims
// the ends.
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
