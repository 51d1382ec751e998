package catalog

import (
	"reflect"
	"strings"
	"testing"

	"github.com/FocuswithJustin/VoiceRef/core/errors"
)

const sampleOSIS = `<?xml version="1.0" encoding="UTF-8"?>
<osis xmlns="http://www.bibletechnologies.net/2003/OSIS/namespace">
  <osisText osisIDWork="Test" osisRefWork="Bible">
    <div type="book" osisID="Ruth">
      <chapter osisID="Ruth.1">
        <verse osisID="Ruth.1.1">In the days when the judges ruled</verse>
        <verse osisID="Ruth.1.2">And the name of the man</verse>
        <verse osisID="Ruth.1.3 Ruth.1.4">Combined verses</verse>
      </chapter>
      <chapter osisID="Ruth.2">
        <verse sID="Ruth.2.1" osisID="Ruth.2.1"/>Milestone text<verse eID="Ruth.2.1"/>
        <verse sID="Ruth.2.2" osisID="Bible:Ruth.2.2"/>More<verse eID="Ruth.2.2"/>
      </chapter>
    </div>
    <div type="book" osisID="Tob">
      <chapter osisID="Tob.1">
        <verse osisID="Tob.1.1">Deuterocanonical</verse>
      </chapter>
    </div>
  </osisText>
</osis>`

func TestFromOSIS(t *testing.T) {
	c, err := FromOSIS(strings.NewReader(sampleOSIS))
	if err != nil {
		t.Fatalf("FromOSIS() error = %v", err)
	}

	want := []Book{
		{Name: "ruth", Chapters: []int{4, 2}},
		{Name: "tob", Chapters: []int{1}},
	}
	if got := c.Books(); !reflect.DeepEqual(got, want) {
		t.Errorf("Books() = %v, want %v", got, want)
	}
}

func TestFromOSISErrors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"malformed", `<osis><verse osisID="Gen.1.1"></chapter></osis>`},
		{"no verses", `<osis><div type="book" osisID="Gen"/></osis>`},
		// Chapter 1 is missing, so verse counts are not contiguous.
		{"gap", `<osis><verse osisID="Gen.2.1"/></osis>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromOSIS(strings.NewReader(tt.xml))
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("FromOSIS() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSplitOSISID(t *testing.T) {
	tests := []struct {
		id      string
		book    string
		chapter int
		verse   int
		ok      bool
	}{
		{"Gen.1.1", "Gen", 1, 1, true},
		{"Bible:1John.5.21", "1John", 5, 21, true},
		{"Gen.1", "", 0, 0, false},
		{"Gen", "", 0, 0, false},
		{"Gen.x.1", "", 0, 0, false},
		{"Gen.1.0", "", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			book, ch, vs, ok := splitOSISID(tt.id)
			if book != tt.book || ch != tt.chapter || vs != tt.verse || ok != tt.ok {
				t.Errorf("splitOSISID(%q) = %q, %d, %d, %v", tt.id, book, ch, vs, ok)
			}
		})
	}
}
