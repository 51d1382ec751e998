// Package refparse turns loosely formatted, often dictated, scripture
// references such as "john chapter 3 verse 16" or "matthew 2112" into
// normalized form ("John 3:16", "Matthew 21:12").
//
// Parsing runs in fixed stages: number words become digits, the text is
// split into name words and numbers, the name is resolved against the
// catalog, fused chapter+verse digit runs are split, and the result is
// formatted. A Parser holds only read-only tables and may be shared.
package refparse

import (
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/FocuswithJustin/VoiceRef/core/catalog"
	"github.com/FocuswithJustin/VoiceRef/core/errors"
	"github.com/FocuswithJustin/VoiceRef/core/ref"
)

// Parser resolves references against one catalog and synonym table.
type Parser struct {
	catalog  *catalog.Catalog
	synonyms Synonyms
	names    []string
	numbers  *numberWords
}

// New returns a Parser over cat and syn. A nil cat means the built-in KJV
// catalog and a nil syn the built-in synonyms. syn is copied.
func New(cat *catalog.Catalog, syn Synonyms) *Parser {
	if cat == nil {
		cat = catalog.KJV()
	}
	if syn == nil {
		syn = defaultSynonyms
	}
	return &Parser{
		catalog:  cat,
		synonyms: syn.Merge(nil),
		names:    cat.Names(),
		numbers:  defaultNumberWords,
	}
}

// Default returns the shared Parser over the KJV catalog and the built-in
// synonyms.
var Default = sync.OnceValue(func() *Parser {
	return New(catalog.KJV(), DefaultSynonyms())
})

// Catalog returns the catalog the parser resolves names against.
func (p *Parser) Catalog() *catalog.Catalog {
	return p.catalog
}

// ParseParts runs every stage except formatting.
func (p *Parser) ParseParts(raw string) (ref.Reference, error) {
	ext, err := Extract(p.numbers.digitize(fold(raw)))
	if err != nil {
		var perr *errors.ParseError
		if errors.As(err, &perr) {
			perr.Input = raw
		}
		return ref.Reference{}, err
	}

	name, err := p.Canonicalize(ext.NameWords)
	if err != nil {
		return ref.Reference{}, err
	}

	return p.Disambiguate(ref.Reference{
		Name:       name,
		Chapter:    ext.Chapter,
		VerseStart: ext.VerseStart,
		VerseEnd:   ext.VerseEnd,
	}), nil
}

// ParseReference returns the normalized form of raw, such as "John 3:16".
func (p *Parser) ParseReference(raw string) (string, error) {
	r, err := p.ParseParts(raw)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// ParseParts parses raw with the Default parser.
func ParseParts(raw string) (ref.Reference, error) {
	return Default().ParseParts(raw)
}

// ParseReference parses raw with the Default parser.
func ParseReference(raw string) (string, error) {
	return Default().ParseReference(raw)
}

// fold strips diacritics and compatibility forms so accented or stylized
// letters tokenize as plain ASCII words.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
