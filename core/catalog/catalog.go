// Package catalog holds the canonical book catalog: every canonical book name
// with the verse count of each of its chapters.
//
// A Catalog is immutable once built. It is the single source of truth for
// which names are valid canonicalization targets and for the chapter bounds
// used by range disambiguation. All methods are safe for concurrent use.
package catalog

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/VoiceRef/core/errors"
)

// Book is one catalog entry.
type Book struct {
	Name     string `json:"name"`     // Lowercase canonical name (e.g., "1 john")
	Chapters []int  `json:"chapters"` // Verse count per chapter, chapter 1 first
}

// Catalog maps canonical lowercase book names to their chapter structure.
type Catalog struct {
	books  []Book
	byName map[string]int
	digest string
}

// New builds a catalog from books in the given order. Names are lowercased
// and trimmed; each book needs at least one chapter and every chapter a
// positive verse count.
func New(books []Book) (*Catalog, error) {
	if len(books) == 0 {
		return nil, errors.NewValidation("", "catalog has no books")
	}

	c := &Catalog{
		books:  make([]Book, 0, len(books)),
		byName: make(map[string]int, len(books)),
	}

	for _, b := range books {
		name := normalizeName(b.Name)
		if name == "" {
			return nil, errors.NewValidation("name", "book name is empty")
		}
		if _, dup := c.byName[name]; dup {
			return nil, errors.NewValidation(name, "duplicate book")
		}
		if len(b.Chapters) == 0 {
			return nil, errors.NewValidation(name, "book has no chapters")
		}
		for i, verses := range b.Chapters {
			if verses <= 0 {
				return nil, errors.NewValidation(name, "chapter "+strconv.Itoa(i+1)+" has no verses")
			}
		}

		chapters := make([]int, len(b.Chapters))
		copy(chapters, b.Chapters)
		c.byName[name] = len(c.books)
		c.books = append(c.books, Book{Name: name, Chapters: chapters})
	}

	c.digest = computeDigest(c.books)
	return c, nil
}

// MustNew is New for static datasets; it panics on invalid input.
func MustNew(books []Book) *Catalog {
	c, err := New(books)
	if err != nil {
		panic("catalog: " + err.Error())
	}
	return c
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func (c *Catalog) book(name string) (Book, bool) {
	idx, ok := c.byName[name]
	if !ok {
		idx, ok = c.byName[normalizeName(name)]
	}
	if !ok {
		return Book{}, false
	}
	return c.books[idx], true
}

// Has reports whether name is a canonical catalog key.
func (c *Catalog) Has(name string) bool {
	_, ok := c.book(name)
	return ok
}

// Lookup returns the chapter -> verse count mapping for name.
// The returned map is a copy.
func (c *Catalog) Lookup(name string) (map[int]int, bool) {
	b, ok := c.book(name)
	if !ok {
		return nil, false
	}
	m := make(map[int]int, len(b.Chapters))
	for i, verses := range b.Chapters {
		m[i+1] = verses
	}
	return m, true
}

// Bounds returns the greatest chapter number of name and the verse count of
// that chapter. Chapters are contiguous from 1, so the greatest chapter is
// the chapter count.
func (c *Catalog) Bounds(name string) (maxChapter, maxVerse int, ok bool) {
	b, found := c.book(name)
	if !found {
		return 0, 0, false
	}
	maxChapter = len(b.Chapters)
	return maxChapter, b.Chapters[maxChapter-1], true
}

// ChapterCount returns the number of chapters in name, or 0.
func (c *Catalog) ChapterCount(name string) int {
	b, ok := c.book(name)
	if !ok {
		return 0
	}
	return len(b.Chapters)
}

// Names returns every canonical name, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.books))
	for i, b := range c.books {
		names[i] = b.Name
	}
	sort.Strings(names)
	return names
}

// Books returns a copy of the entries in catalog order.
func (c *Catalog) Books() []Book {
	out := make([]Book, len(c.books))
	for i, b := range c.books {
		chapters := make([]int, len(b.Chapters))
		copy(chapters, b.Chapters)
		out[i] = Book{Name: b.Name, Chapters: chapters}
	}
	return out
}

// Len returns the number of books.
func (c *Catalog) Len() int {
	return len(c.books)
}

// Digest returns the BLAKE3 hex digest of the catalog's JSON encoding.
// Two catalogs with the same books in the same order share a digest.
func (c *Catalog) Digest() string {
	return c.digest
}

func computeDigest(books []Book) string {
	var buf bytes.Buffer
	// Encoding a []Book cannot fail.
	_ = json.NewEncoder(&buf).Encode(document{Books: books})
	sum := blake3.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
