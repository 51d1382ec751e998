package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/VoiceRef/core/catalog"
	"github.com/FocuswithJustin/VoiceRef/core/errors"
	"github.com/FocuswithJustin/VoiceRef/core/ref"
)

const testOSIS = `<?xml version="1.0" encoding="UTF-8"?>
<osis xmlns="http://www.bibletechnologies.net/2003/OSIS/namespace">
  <osisText osisIDWork="Test">
    <div type="book" osisID="Ruth">
      <chapter osisID="Ruth.1">
        <verse osisID="Ruth.1.1">In the days when the judges ruled</verse>
        <verse osisID="Ruth.1.2">And the name of the man</verse>
      </chapter>
      <chapter osisID="Ruth.2">
        <verse osisID="Ruth.2.1">And Naomi had a kinsman</verse>
      </chapter>
    </div>
  </osisText>
</osis>`

// runCLI runs the command line and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("voiceref %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	if out := mustRun(t, "version"); out != "voiceref version "+version+"\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestParseCmd(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"john", "chapter", "three", "verse", "sixteen"}, "John 3:16"},
		{[]string{"first timothy chapter 4 verse 8"}, "1 Timothy 4:8"},
		{[]string{"matthew", "2112", "to", "13"}, "Matthew 21:12-13"},
		{[]string{"psalm", "forty-two"}, "Psalms 42"},
		{[]string{"X126"}, "Acts 1:26"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out := mustRun(t, append([]string{"parse"}, tt.args...)...)
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("parse = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCmdError(t *testing.T) {
	_, err := runCLI(t, "parse", "...")
	if !errors.IsParse(err) {
		t.Errorf("parse ... error = %v, want ParseError", err)
	}
	if _, err := runCLI(t, "parse"); err == nil {
		t.Error("parse without text should fail")
	}
}

func TestPartsCmd(t *testing.T) {
	out := mustRun(t, "parts", "--json", "psalm", "forty", "two")
	var r ref.Reference
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("parts --json output %q: %v", out, err)
	}
	if want := (ref.Reference{Name: "Psalms", Chapter: 40, VerseStart: 2}); r != want {
		t.Errorf("parts = %+v, want %+v", r, want)
	}

	out = mustRun(t, "parts", "john", "3")
	for _, want := range []string{"reference:   John 3", "book:        John", "chapter:     3"} {
		if !strings.Contains(out, want) {
			t.Errorf("parts output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "verse") {
		t.Errorf("absent verses should not print:\n%s", out)
	}
}

func TestCheckCmd(t *testing.T) {
	tests := []struct {
		reference string
		wantOut   string
		wantIs    error
	}{
		{"John 3:16", "ok John 3:16\n", nil},
		{"1 John 3:16-18", "ok 1 John 3:16-18\n", nil},
		{"Jude", "ok Jude\n", nil},
		{"John 22:1", "", errors.ErrInvalidInput},
		{"John 3:37", "", errors.ErrInvalidInput},
		{"John 3:16-2", "", errors.ErrInvalidInput},
		{"Tobit 1", "", errors.ErrNotFound},
		{"John 3:", "", errors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			out, err := runCLI(t, "check", tt.reference)
			if tt.wantIs == nil {
				if err != nil || out != tt.wantOut {
					t.Errorf("check = %q, %v, want %q", out, err, tt.wantOut)
				}
				return
			}
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("check error = %v, want %v", err, tt.wantIs)
			}
		})
	}
}

func TestCatalogInfoCmd(t *testing.T) {
	out := mustRun(t, "catalog", "info", "--books")
	kjv := catalog.KJV()
	for _, want := range []string{"source:   built-in KJV", "books:    66", "chapters: 1189", "digest:   " + kjv.Digest(), "song of solomon"} {
		if !strings.Contains(out, want) {
			t.Errorf("catalog info missing %q:\n%s", want, out)
		}
	}
}

func TestCatalogExportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"kjv.json", "kjv.json.xz", "kjv.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			mustRun(t, "catalog", "export", "--out", path)

			out := mustRun(t, "--catalog", path, "catalog", "info")
			if !strings.Contains(out, "digest:   "+catalog.KJV().Digest()) {
				t.Errorf("exported catalog digest differs:\n%s", out)
			}
		})
	}
}

func TestCatalogExportUnsupported(t *testing.T) {
	_, err := runCLI(t, "catalog", "export", "--out", filepath.Join(t.TempDir(), "kjv.csv"))
	if !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("export .csv error = %v, want ErrUnsupported", err)
	}
}

func TestCatalogImportOSISCmd(t *testing.T) {
	dir := t.TempDir()
	xmlPath := writeFile(t, dir, "ruth.xml", testOSIS)
	out := filepath.Join(dir, "ruth.json")

	if got := mustRun(t, "catalog", "import-osis", xmlPath, "--out", out); !strings.Contains(got, "imported 1 books") {
		t.Errorf("import-osis output = %q", got)
	}

	if got := strings.TrimSpace(mustRun(t, "--catalog", out, "parse", "ruth", "two", "one")); got != "Ruth 2:1" {
		t.Errorf("parse with imported catalog = %q, want Ruth 2:1", got)
	}
	if _, err := runCLI(t, "--catalog", out, "check", "Ruth 2:2"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("check Ruth 2:2 error = %v, want out of range", err)
	}
}

func TestCatalogMissing(t *testing.T) {
	_, err := runCLI(t, "--catalog", filepath.Join(t.TempDir(), "missing.json"), "parse", "john", "3")
	if err == nil {
		t.Error("a missing catalog should fail")
	}
}

func TestSynonymsFlag(t *testing.T) {
	dir := t.TempDir()
	syn := writeFile(t, dir, "synonyms.json", `{"beloved": "john"}`)

	if got := strings.TrimSpace(mustRun(t, "--synonyms", syn, "parse", "beloved", "3", "16")); got != "John 3:16" {
		t.Errorf("parse with synonyms = %q, want John 3:16", got)
	}
	// Defaults still apply after merging.
	if got := strings.TrimSpace(mustRun(t, "--synonyms", syn, "parse", "revelations", "1", "1")); got != "Revelation 1:1" {
		t.Errorf("parse with synonyms = %q, want Revelation 1:1", got)
	}

	bad := writeFile(t, dir, "bad.json", `["john"]`)
	if _, err := runCLI(t, "--synonyms", bad, "parse", "john"); !errors.IsParse(err) {
		t.Errorf("bad synonyms error = %v, want ParseError", err)
	}
}

func TestConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	catPath := filepath.Join(dir, "kjv.json")
	mustRun(t, "catalog", "export", "--out", catPath)

	t.Run("config file", func(t *testing.T) {
		cfg := writeFile(t, dir, "voiceref.json", `{"catalog": "`+filepath.ToSlash(catPath)+`"}`)
		out := mustRun(t, "--config", cfg, "catalog", "info")
		if !strings.Contains(out, "source:   "+catPath) {
			t.Errorf("config file catalog not applied:\n%s", out)
		}
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("VOICEREF_CATALOG", catPath)
		out := mustRun(t, "catalog", "info")
		if !strings.Contains(out, "source:   "+catPath) {
			t.Errorf("VOICEREF_CATALOG not applied:\n%s", out)
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		if _, err := runCLI(t, "--log-level", "loud", "version"); err == nil {
			t.Error("an unknown log level should fail")
		}
	})
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voiceref.log")
	mustRun(t, "--log-file", path, "--log-level", "debug", "--log-format", "json", "parse", "john", "3", "16")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"msg":"reference_parsed"`) {
		t.Errorf("log file missing reference_parsed entry:\n%s", data)
	}
}

func TestPassageCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/John 3:16" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"reference":"John 3:16","text":"For God so loved the world,\n"}`))
	}))
	defer srv.Close()

	out := mustRun(t, "passage", "--passage-url", srv.URL, "john", "three", "sixteen")
	if out != "John 3:16\nFor God so loved the world,\n" {
		t.Errorf("passage output = %q", out)
	}

	out = mustRun(t, "passage", "--json", "--passage-url", srv.URL, "john 3 16")
	var p struct {
		Input string `json:"input"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal([]byte(out), &p); err != nil || p.Input != "john 3 16" {
		t.Errorf("passage --json = %q (%v)", out, err)
	}

	_, err := runCLI(t, "passage", "--passage-url", srv.URL, "jude", "1", "3")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("passage error = %v, want ErrNotFound", err)
	}
}

func TestServeConfig(t *testing.T) {
	cmd := ServeCmd{Port: 9000, APIKey: "0123456789abcdef", RateLimit: 30, RateBurst: 5, AllowedOrigins: []string{"https://app.example"}}
	cfg := cmd.apiConfig()
	if cfg.Port != 9000 || !cfg.Auth.Enabled || cfg.RateLimitRequests != 30 || cfg.RateLimitBurst != 5 || cfg.Version != version {
		t.Errorf("apiConfig() = %+v", cfg)
	}
	if (&ServeCmd{}).apiConfig().Auth.Enabled {
		t.Error("auth should be off without an API key")
	}

	pc := PassageFlags{PassageURL: "http://x.test", PassageRetries: 0}.config()
	if pc.Retries != -1 || pc.BaseURL != "http://x.test" {
		t.Errorf("config() = %+v, want retries disabled", pc)
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := runCLI(t, "frobnicate"); err == nil {
		t.Error("an unknown command should fail")
	}
}
