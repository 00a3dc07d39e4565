// Package slug derives URL-safe note identifiers from titles and
// validates identifiers supplied by the user.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength is the maximum slug length stored for a note.
const MaxLength = 100

// cyrillic maps Russian letters to their conventional Latin romanization.
// Multi-letter expansions (ж→zh, щ→sch, я→ya) follow the pytils
// transliteration table, so derived slugs are stable across releases.
var cyrillic = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ё': "e", 'ж': "zh", 'з': "z", 'и': "i",
	'й': "j", 'к': "k", 'л': "l", 'м': "m", 'н': "n",
	'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "h", 'ц': "c", 'ч': "ch",
	'ш': "sh", 'щ': "sch", 'ъ': "", 'ы': "y", 'ь': "",
	'э': "e", 'ю': "yu", 'я': "ya",
}

// stripMarks removes combining marks left over after NFD decomposition,
// turning accented Latin letters into their ASCII base (é → e).
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Make derives a slug from a note title: lowercase, transliterated to
// ASCII, with every run of non-alphanumeric characters collapsed to a
// single hyphen and the result trimmed and truncated to MaxLength.
// The derivation is deterministic; equal titles always produce equal
// slugs. Returns "" when the title contains nothing representable.
func Make(title string) string {
	lowered := transliterate(strings.ToLower(title))
	if stripped, _, err := transform.String(stripMarks, lowered); err == nil {
		lowered = stripped
	}

	var b strings.Builder
	b.Grow(len(lowered))
	pendingHyphen := false
	for _, r := range lowered {
		var token string
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			token = string(r)
		case r == '_':
			token = "_"
		}

		if token == "" {
			// Unrepresentable rune or separator: break the current word.
			if b.Len() > 0 {
				pendingHyphen = true
			}
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteString(token)
	}

	return truncate(b.String(), MaxLength)
}

// transliterate replaces Russian letters with their Latin romanization
// before any normalization can split them into base letters and marks.
// Hard and soft signs map to nothing and vanish without breaking a word.
func transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if tr, ok := cyrillic[r]; ok {
			b.WriteString(tr)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsValid reports whether s is acceptable as an explicit slug:
// non-empty, at most MaxLength characters, made of ASCII letters,
// digits, hyphens and underscores.
func IsValid(s string) bool {
	if s == "" || len(s) > MaxLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// truncate cuts s to at most n bytes without leaving a trailing hyphen.
func truncate(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return strings.TrimRight(s, "-")
}
