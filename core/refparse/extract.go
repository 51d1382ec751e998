package refparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/VoiceRef/core/errors"
)

var (
	separatorPattern = regexp.MustCompile(`[^\w]+`)
	// A transcriber hears "Acts" as "X" and glues it to the chapter: "X126".
	letterDigitsPattern = regexp.MustCompile(`^([xX])(\d+)$`)
)

// fillerWords carry no name or number once number words are digitized.
var fillerWords = map[string]bool{
	"chapter": true,
	"ch":      true,
	"verse":   true,
	"verses":  true,
	"vs":      true,
	"v":       true,
	"through": true,
	"thru":    true,
	"to":      true,
	"the":     true,
	"a":       true,
	"an":      true,
}

// maxNumbers is chapter, first verse and last verse.
const maxNumbers = 3

// Extraction is the tokenized form of a digitized reference: the raw name
// words and up to three numbers. Zero means absent.
type Extraction struct {
	NameWords  []string
	Chapter    int
	VerseStart int
	VerseEnd   int
}

// Extract splits digitized text into name words and numbers. Tokens are
// separated by any run of non-word characters; filler words are dropped.
// The name runs up to the first numeric token after the first token, so a
// leading ordinal such as "1" in "1 john" stays in the name. The first three
// numeric tokens after the first token become chapter, verse start and
// verse end.
func Extract(text string) (Extraction, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return Extraction{}, errors.NewParse(text, "no reference words")
	}

	if m := letterDigitsPattern.FindStringSubmatch(tokens[0]); m != nil {
		tokens = append([]string{m[1], m[2]}, tokens[1:]...)
	}

	var ext Extraction
	for i, tok := range tokens {
		if i > 0 && isNumeric(tok) {
			break
		}
		ext.NameWords = append(ext.NameWords, tok)
	}

	var numbers []int
	for _, tok := range tokens[1:] {
		if len(numbers) == maxNumbers {
			break
		}
		if !isNumeric(tok) {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			// Out of int range; no reference has such a number.
			continue
		}
		numbers = append(numbers, n)
	}
	targets := []*int{&ext.Chapter, &ext.VerseStart, &ext.VerseEnd}
	for i, n := range numbers {
		*targets[i] = n
	}

	return ext, nil
}

func tokenize(text string) []string {
	var tokens []string
	for _, tok := range separatorPattern.Split(text, -1) {
		if tok == "" || fillerWords[strings.ToLower(tok)] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func isNumeric(tok string) bool {
	if tok == "" {
		return false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return false
		}
	}
	return true
}
