package refparse

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/FocuswithJustin/VoiceRef/core/errors"
	"github.com/FocuswithJustin/VoiceRef/core/fuzzy"
)

// MinMatchRatio is the lowest similarity at which a misheard name is
// replaced by a catalog name.
const MinMatchRatio = 0.6

// ordinals resolve a spoken or abbreviated leading ordinal. "to" and "too"
// mean 2 only here, in front of a name.
var ordinals = map[string]string{
	"1st":    "1",
	"first":  "1",
	"one":    "1",
	"won":    "1",
	"2nd":    "2",
	"second": "2",
	"two":    "2",
	"to":     "2",
	"too":    "2",
	"3rd":    "3",
	"third":  "3",
	"three":  "3",
}

// Canonicalize resolves name words to a title-cased catalog name. The
// candidate is tried as a catalog name, then as a synonym, then against the
// closest catalog name with a ratio of at least MinMatchRatio. A candidate
// nothing matches is returned title-cased as it was heard.
func (p *Parser) Canonicalize(words []string) (string, error) {
	fields := strings.Fields(strings.ToLower(strings.Join(words, " ")))
	if len(fields) == 0 {
		return "", errors.NewParse(strings.Join(words, " "), "no book name")
	}
	if n, ok := ordinals[fields[0]]; ok {
		fields[0] = n
	}
	candidate := strings.Join(fields, " ")

	if !p.catalog.Has(candidate) {
		if canon, ok := p.synonyms[candidate]; ok {
			candidate = canon
		}
	}
	if !p.catalog.Has(candidate) {
		if match, ok := fuzzy.BestMatch(candidate, p.names, MinMatchRatio); ok {
			candidate = match
		}
	}

	// A Caser is stateful and must not be shared between goroutines.
	return cases.Title(language.Und).String(candidate), nil
}
