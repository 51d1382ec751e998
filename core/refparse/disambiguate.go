package refparse

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/VoiceRef/core/ref"
)

// Disambiguate splits a chapter that is too large for its book into chapter
// and verse. Dictation often fuses "twenty one twelve" into "2112". Four
// digits split 2+2, three digits 1+2 and two digits 1+1; the split-off
// digits become the first verse and any previous first verse becomes the
// last verse. References without a chapter, with a book missing from the
// catalog, or with a chapter in range are returned unchanged.
//
// The three-digit split always assumes a one-digit chapter, so "psalms 156"
// reads as 1:56 and never as 15:6.
func (p *Parser) Disambiguate(r ref.Reference) ref.Reference {
	if r.Chapter <= 0 {
		return r
	}
	maxChapter, _, ok := p.catalog.Bounds(strings.ToLower(r.Name))
	if !ok || r.Chapter <= maxChapter {
		return r
	}

	digits := strconv.Itoa(r.Chapter)
	var split int
	switch len(digits) {
	case 4:
		split = 2
	case 3, 2:
		split = 1
	default:
		return r
	}

	chapter, _ := strconv.Atoi(digits[:split])
	verse, _ := strconv.Atoi(digits[split:])
	r.VerseEnd = r.VerseStart
	r.VerseStart = verse
	r.Chapter = chapter
	return r
}
