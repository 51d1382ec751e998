package catalog

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/VoiceRef/core/errors"
)

// verseExpr selects every OSIS verse element, container or milestone start,
// regardless of namespace prefix. End milestones carry only eID and are skipped.
var verseExpr = xpath.MustCompile(`//*[local-name()='verse'][@osisID]`)

// FromOSIS derives a catalog from an OSIS XML document by collecting the
// highest verse number seen in each chapter. Books appear in document order.
// OSIS book IDs absent from the built-in table are kept as lowercase IDs.
func FromOSIS(r io.Reader) (*Catalog, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, errors.NewParseFormat("OSIS", err.Error(), err)
	}

	var order []string
	verses := make(map[string]map[int]int)

	for _, node := range xmlquery.QuerySelectorAll(doc, verseExpr) {
		for _, id := range strings.Fields(node.SelectAttr("osisID")) {
			book, chapter, verse, ok := splitOSISID(id)
			if !ok {
				continue
			}
			name, known := osisNames[book]
			if !known {
				name = strings.ToLower(book)
			}
			chapters, seen := verses[name]
			if !seen {
				chapters = make(map[int]int)
				verses[name] = chapters
				order = append(order, name)
			}
			if verse > chapters[chapter] {
				chapters[chapter] = verse
			}
		}
	}

	if len(order) == 0 {
		return nil, errors.NewParseFormat("OSIS", "document has no verse elements", nil)
	}

	books := make([]Book, 0, len(order))
	for _, name := range order {
		books = append(books, Book{Name: name, Chapters: denseChapters(verses[name])})
	}
	return New(books)
}

// splitOSISID splits "Gen.1.1" into its parts. IDs naming a whole book or
// chapter are rejected. A work prefix ("Bible:Gen.1.1") is dropped.
func splitOSISID(id string) (book string, chapter, verse int, ok bool) {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		id = id[i+1:]
	}
	parts := strings.Split(id, ".")
	if len(parts) != 3 {
		return "", 0, 0, false
	}
	ch, err := strconv.Atoi(parts[1])
	if err != nil || ch <= 0 {
		return "", 0, 0, false
	}
	vs, err := strconv.Atoi(parts[2])
	if err != nil || vs <= 0 {
		return "", 0, 0, false
	}
	return parts[0], ch, vs, true
}

// denseChapters turns chapter -> max verse into a slice indexed from
// chapter 1. A chapter missing from the document gets a zero count, which
// New rejects.
func denseChapters(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for ch := range m {
		keys = append(keys, ch)
	}
	sort.Ints(keys)
	out := make([]int, keys[len(keys)-1])
	for _, ch := range keys {
		out[ch-1] = m[ch]
	}
	return out
}
