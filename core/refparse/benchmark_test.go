package refparse

import "testing"

// BenchmarkParseReference measures each resolution path of the pipeline.
func BenchmarkParseReference(b *testing.B) {
	inputs := []struct {
		name  string
		input string
	}{
		{"Exact", "John 3:16"},
		{"NumberWords", "song of Solomon four five"},
		{"Synonym", "Revelations 1 1"},
		{"Fuzzy", "1st Tessa 4 8"},
		{"Fused", "matthew 2112 to 13"},
		{"NoMatch", "xyz 12"},
	}

	p := Default()
	for _, in := range inputs {
		b.Run(in.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := p.ParseReference(in.input); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDigitize(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Digitize("psalm one hundred forty-two verse twenty-one through thirty")
	}
}
