package refparse

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// onesWords includes common homophones. "to" and "too" are absent: they are
// range connectors unless they lead the name, where the canonicalizer
// resolves them.
var onesWords = map[string]int{
	"one":   1,
	"won":   1,
	"went":  1,
	"two":   2,
	"three": 3,
	"four":  4,
	"for":   4,
	"five":  5,
	"six":   6,
	"sicks": 6,
	"seven": 7,
	"eight": 8,
	"ate":   8,
	"nine":  9,
}

var teenWords = map[string]int{
	"ten":       10,
	"eleven":    11,
	"twelve":    12,
	"thirteen":  13,
	"fourteen":  14,
	"fifteen":   15,
	"sixteen":   16,
	"seventeen": 17,
	"eighteen":  18,
	"nineteen":  19,
}

var tensWords = map[string]int{
	"twenty":  20,
	"thirty":  30,
	"forty":   40,
	"fourty":  40,
	"fifty":   50,
	"sixty":   60,
	"seventy": 70,
	"eighty":  80,
	"ninety":  90,
}

// numberWords rewrites spelled-out numbers from one to ninety-nine as digits.
// It is immutable once built.
type numberWords struct {
	values   map[string]int
	compound *regexp.Regexp // "<tens>-<ones>"
	single   *regexp.Regexp
}

func newNumberWords() *numberWords {
	values := make(map[string]int, len(onesWords)+len(teenWords)+len(tensWords))
	for _, table := range []map[string]int{onesWords, teenWords, tensWords} {
		for w, n := range table {
			values[w] = n
		}
	}
	return &numberWords{
		values: values,
		compound: regexp.MustCompile(`(?i)\b(` + alternation(tensWords) + `)-(` +
			alternation(onesWords) + `)\b`),
		single: regexp.MustCompile(`(?i)\b(` + alternation(values) + `)\b`),
	}
}

// alternation joins the table keys longest first so the pattern does not
// depend on map order.
func alternation(table map[string]int) string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, regexp.QuoteMeta(k))
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return strings.Join(keys, "|")
}

func (nw *numberWords) digitize(text string) string {
	text = nw.compound.ReplaceAllStringFunc(text, func(m string) string {
		tens, ones, _ := strings.Cut(strings.ToLower(m), "-")
		return strconv.Itoa(nw.values[tens] + nw.values[ones])
	})
	return nw.single.ReplaceAllStringFunc(text, func(m string) string {
		return strconv.Itoa(nw.values[strings.ToLower(m)])
	})
}

var defaultNumberWords = newNumberWords()

// Digitize replaces whole-word number words (case-insensitive) with digit
// strings. Hyphenated compounds such as "forty-two" become one number;
// "forty two" becomes two. Surrounding text is left untouched.
func Digitize(text string) string {
	return defaultNumberWords.digitize(text)
}
