package refparse

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/FocuswithJustin/VoiceRef/core/catalog"
	"github.com/FocuswithJustin/VoiceRef/core/errors"
)

// Synonyms maps an alternate spelling or misrecognition, lowercase with
// single spaces, to a canonical lowercase catalog name.
type Synonyms map[string]string

var defaultSynonyms = Synonyms{
	// plural and title variants
	"psalm":         "psalms",
	"song":          "psalms",
	"songs":         "psalms",
	"proverb":       "proverbs",
	"song of songs": "song of solomon",
	"revelations":   "revelation",
	"phillipians":   "philippians",

	// homophones
	"roof":       "ruth",
	"name":       "nahum",
	"marc":       "mark",
	"june":       "jude",
	"jon":        "john",
	"1 jon":      "1 john",
	"2 jon":      "2 john",
	"3 jon":      "3 john",
	"aim us":     "amos",
	"a moss":     "amos",
	"moss":       "amos",
	"habacuc":    "habakkuk",
	"habit cook": "habakkuk",
	"hey guy":    "haggai",
	"hi guy":     "haggai",
	"hag eye":    "haggai",
	"haggy eye":  "haggai",
	"tight us":   "titus",
	"tied us":    "titus",

	// letter substitutions
	"x":   "acts",
	"ax":  "acts",
	"axe": "acts",
	"ask": "acts",
}

// DefaultSynonyms returns a copy of the built-in table.
func DefaultSynonyms() Synonyms {
	return defaultSynonyms.Merge(nil)
}

// LoadSynonyms reads a JSON object of alternate -> canonical names. Keys and
// values are lowercased and their spacing collapsed.
func LoadSynonyms(r io.Reader) (Synonyms, error) {
	var raw map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.NewParseFormat("synonyms", err.Error(), err)
	}

	syn := make(Synonyms, len(raw))
	for alt, canon := range raw {
		alt, canon = normalize(alt), normalize(canon)
		if alt == "" || canon == "" {
			return nil, errors.NewValidation("synonyms", "empty name in entry")
		}
		syn[alt] = canon
	}
	return syn, nil
}

// Merge returns a new table holding s overlaid with other.
func (s Synonyms) Merge(other Synonyms) Synonyms {
	out := make(Synonyms, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Lookup returns the canonical name for alt.
func (s Synonyms) Lookup(alt string) (string, bool) {
	canon, ok := s[normalize(alt)]
	return canon, ok
}

// Validate reports entries whose canonical name is not in cat.
func (s Synonyms) Validate(cat *catalog.Catalog) error {
	var missing []string
	for alt, canon := range s {
		if !cat.Has(canon) {
			missing = append(missing, alt+" -> "+canon)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.NewValidation("synonyms", "unknown books: "+strings.Join(missing, ", "))
}

func normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
