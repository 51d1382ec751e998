// Package ref defines the structured form of a normalized scripture
// reference and renders it as text.
package ref

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/VoiceRef/core/errors"
)

// Reference is a book name plus an optional chapter and verse range.
// A zero number means the part is absent. VerseStart is only meaningful
// with a Chapter, and VerseEnd only with a VerseStart.
type Reference struct {
	Name       string `json:"name"`
	Chapter    int    `json:"chapter,omitempty"`
	VerseStart int    `json:"verse_start,omitempty"`
	VerseEnd   int    `json:"verse_end,omitempty"`
}

// String renders the reference as "Name", "Name C", "Name C:V" or
// "Name C:V-E". Rendering stops at the first absent part.
func (r Reference) String() string {
	var sb strings.Builder
	sb.WriteString(r.Name)

	if r.Chapter <= 0 {
		return sb.String()
	}
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(r.Chapter))

	if r.VerseStart <= 0 {
		return sb.String()
	}
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(r.VerseStart))

	if r.VerseEnd <= 0 {
		return sb.String()
	}
	sb.WriteByte('-')
	sb.WriteString(strconv.Itoa(r.VerseEnd))

	return sb.String()
}

// IsRange returns true if the reference names more than one verse.
func (r Reference) IsRange() bool {
	return r.VerseStart > 0 && r.VerseEnd > 0
}

// canonicalGrammar accepts the rendered form of a Reference.
// Examples: "Jude", "Psalms 42", "1 John 3:16", "Song Of Solomon 4:5-7"
//
//nolint:govet // participle grammar tags are not standard struct tags
type canonicalGrammar struct {
	Prefix  *int         `@Int?`
	Words   []string     `@Ident+`
	Chapter *chapterPart `@@?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type chapterPart struct {
	Chapter int        `@Int`
	Verse   *versePart `( ":" @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type versePart struct {
	Start int  `@Int`
	End   *int `( "-" @Int )?`
}

var canonicalLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z][A-Za-z']*`},
	{Name: "Punct", Pattern: `[:\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var canonicalParser = participle.MustBuild[canonicalGrammar](
	participle.Lexer(canonicalLexer),
	participle.Elide("Whitespace"),
)

// ParseCanonical parses a reference that is already in rendered form, such
// as the output of String. It does not resolve names or fix fused numbers.
func ParseCanonical(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Reference{}, errors.NewParseFormat("canonical reference", "empty reference string", nil)
	}

	parsed, err := canonicalParser.ParseString("", s)
	if err != nil {
		return Reference{}, &errors.ParseError{
			Format:  "canonical reference",
			Input:   s,
			Message: err.Error(),
		}
	}

	words := parsed.Words
	if parsed.Prefix != nil {
		words = append([]string{strconv.Itoa(*parsed.Prefix)}, words...)
	}
	r := Reference{Name: strings.Join(words, " ")}

	if c := parsed.Chapter; c != nil {
		r.Chapter = c.Chapter
		if c.Verse != nil {
			r.VerseStart = c.Verse.Start
			if c.Verse.End != nil {
				r.VerseEnd = *c.Verse.End
			}
		}
	}
	return r, nil
}
