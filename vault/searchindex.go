package vault

import (
	"strings"
	"unicode"

	"github.com/Thalikbussacro/acesso-clientes/internal/util"
)

// minIndexTokenLength drops noise words; tokens must be longer than this to
// be indexed.
const minIndexTokenLength = 2

// BuildSearchIndex projects note plaintext into a normalized token list that
// is stored unencrypted, so clients can be searched without ever decrypting
// at query time. Tokens reveal vocabulary but not exact content; that is the
// confidentiality/searchability trade-off.
//
// The projection strips markup, folds to NFKD lowercase, removes everything
// that is not a letter or digit, and keeps tokens longer than two runes.
func BuildSearchIndex(text string) string {
	if text == "" {
		return ""
	}

	stripped := stripTags(text)
	normalized := strings.ToLower(util.Normalize(stripped))
	// NFKD leaves combining marks as separate runes; drop them so accented
	// words fold to their base letters instead of splitting.
	folded := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, normalized)

	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	kept := tokens[:0]
	for _, tok := range tokens {
		if len([]rune(tok)) > minIndexTokenLength {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// stripTags replaces HTML/XML tags with spaces. Notes come from a rich-text
// editor, so raw markup must never leak into the index.
func stripTags(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			sb.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
