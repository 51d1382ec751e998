package catalog

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/VoiceRef/core/errors"
)

// document is the on-disk JSON layout of a catalog dataset:
//
//	{"books": [{"name": "genesis", "chapters": [31, 25, ...]}, ...]}
type document struct {
	Books []Book `json:"books"`
}

// ReadJSON decodes a catalog dataset.
func ReadJSON(r io.Reader) (*Catalog, error) {
	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewParseFormat("catalog", err.Error(), err)
	}
	return New(doc.Books)
}

// WriteJSON encodes the catalog as an indented dataset.
func (c *Catalog) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(document{Books: c.books})
}

// IsJSONPath reports whether path names a JSON dataset this package reads
// directly (".json" or ".json.xz").
func IsJSONPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".json") || strings.HasSuffix(lower, ".json.xz")
}

// LoadFile reads a ".json" or xz-compressed ".json.xz" dataset.
func LoadFile(path string) (*Catalog, error) {
	if !IsJSONPath(path) {
		return nil, errors.NewUnsupported("catalog format", filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("catalog", path)
		}
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(strings.ToLower(path), ".xz") {
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.NewIO("decompress", path, err)
		}
		r = xzr
	}

	c, err := ReadJSON(r)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return c, nil
}

// SaveFile writes the catalog to a ".json" or ".json.xz" dataset.
func (c *Catalog) SaveFile(path string) (err error) {
	if !IsJSONPath(path) {
		return errors.NewUnsupported("catalog format", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.NewIO("create", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.NewIO("close", path, cerr)
		}
	}()

	if !strings.HasSuffix(strings.ToLower(path), ".xz") {
		return c.WriteJSON(f)
	}

	xzw, err := xz.NewWriter(f)
	if err != nil {
		return errors.NewIO("compress", path, err)
	}
	if err := c.WriteJSON(xzw); err != nil {
		xzw.Close()
		return errors.NewIO("write", path, err)
	}
	if err := xzw.Close(); err != nil {
		return errors.NewIO("compress", path, err)
	}
	return nil
}
