package geocode

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	parenPattern = regexp.MustCompile(`\(.*?\)`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Diacritic folding: decompose, drop combining marks, recompose. Shop names
// carry Turkish characters (Öz, Şiş, Dürüm) that Nominatim matches poorly.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CleanName prepares a shop name for a free-text geocode query: strips
// parenthetical annotations, folds diacritics, and collapses whitespace.
func CleanName(name string) string {
	s := parenPattern.ReplaceAllString(name, "")
	if folded, _, err := transform.String(foldTransformer, s); err == nil {
		s = folded
	}
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
