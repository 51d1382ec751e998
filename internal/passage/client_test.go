package passage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FocuswithJustin/VoiceRef/core/errors"
	"github.com/FocuswithJustin/VoiceRef/core/ref"
	"github.com/FocuswithJustin/VoiceRef/internal/cache"
	"github.com/FocuswithJustin/VoiceRef/internal/logging"
)

// newTestServer serves passages from texts, keyed by decoded path.
func newTestServer(t *testing.T, texts map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get(logging.RequestIDHeader) == "" {
			t.Errorf("request without %s", logging.RequestIDHeader)
		}
		reference := r.URL.Path[1:]
		text, ok := texts[reference]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"reference": reference, "text": text})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testConfig(baseURL string) Config {
	return Config{BaseURL: baseURL, RetryBackoff: time.Millisecond, Timeout: 2 * time.Second}
}

func TestFetch(t *testing.T) {
	srv, hits := newTestServer(t, map[string]string{
		"John 3:16": "For God so loved the world,",
	})
	c := NewClient(testConfig(srv.URL), nil)

	p, err := c.Fetch(context.Background(), "john chapter three verse sixteen")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := Passage{
		Input:     "john chapter three verse sixteen",
		Parsed:    "John 3:16",
		Reference: "John 3:16",
		Text:      "For God so loved the world,",
		Parts:     ref.Reference{Name: "John", Chapter: 3, VerseStart: 16},
		Served:    ref.Reference{Name: "John", Chapter: 3, VerseStart: 16},
	}
	if *p != want {
		t.Errorf("Fetch() = %+v, want %+v", *p, want)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestFetchCache(t *testing.T) {
	srv, hits := newTestServer(t, map[string]string{"John 3:16": "For God so loved the world,"})

	t.Run("enabled", func(t *testing.T) {
		hits.Store(0)
		c := NewClient(testConfig(srv.URL), nil)
		if _, err := c.Fetch(context.Background(), "john 3 16"); err != nil {
			t.Fatal(err)
		}
		p, err := c.Fetch(context.Background(), "JOHN chapter 3 verse 16")
		if err != nil {
			t.Fatal(err)
		}
		if hits.Load() != 1 {
			t.Errorf("server hits = %d, want 1", hits.Load())
		}
		if p.Input != "JOHN chapter 3 verse 16" {
			t.Errorf("cached passage Input = %q, want the second input", p.Input)
		}
		if s := c.CacheStats(); s.Hits != 1 || s.Misses != 1 {
			t.Errorf("CacheStats() = %+v", s)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		hits.Store(0)
		cfg := testConfig(srv.URL)
		cfg.CacheTTL = -1
		c := NewClient(cfg, nil)
		for i := 0; i < 2; i++ {
			if _, err := c.Fetch(context.Background(), "john 3 16"); err != nil {
				t.Fatal(err)
			}
		}
		if hits.Load() != 2 {
			t.Errorf("server hits = %d, want 2", hits.Load())
		}
		if c.CacheStats() != (cache.Stats{}) {
			t.Error("disabled cache should report zero stats")
		}
	})
}

func TestFetchNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := NewClient(testConfig(srv.URL), nil)

	_, err := c.Fetch(context.Background(), "jude 1 99")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("Fetch() error = %v, want ErrNotFound", err)
	}
	var nf *errors.NotFoundError
	if !errors.As(err, &nf) || nf.ID != "Jude 1:99" {
		t.Errorf("NotFoundError = %+v", nf)
	}
}

func TestFetchRetries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int // response per attempt; the last repeats
		retries   int
		wantHits  int32
		wantErrIs error
	}{
		{"recovers after 500", []int{500, 200}, 2, 2, nil},
		{"gives up after 503s", []int{503}, 2, 3, errors.ErrUnavailable},
		{"no retries", []int{502}, -1, 1, errors.ErrUnavailable},
		{"400 is final", []int{400, 200}, 2, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(hits.Add(1)) - 1
				if n >= len(tt.statuses) {
					n = len(tt.statuses) - 1
				}
				if tt.statuses[n] != http.StatusOK {
					w.WriteHeader(tt.statuses[n])
					return
				}
				w.Write([]byte(`{"reference":"Jude 1:3","text":"Beloved,"}`))
			}))
			defer srv.Close()

			cfg := testConfig(srv.URL)
			cfg.Retries = tt.retries
			_, err := NewClient(cfg, nil).Fetch(context.Background(), "jude 1 3")

			if hits.Load() != tt.wantHits {
				t.Errorf("server hits = %d, want %d", hits.Load(), tt.wantHits)
			}
			switch {
			case tt.wantErrIs != nil:
				if !errors.Is(err, tt.wantErrIs) {
					t.Errorf("Fetch() error = %v, want %v", err, tt.wantErrIs)
				}
			case tt.statuses[0] == http.StatusBadRequest:
				var ioErr *errors.IOError
				if !errors.As(err, &ioErr) {
					t.Errorf("Fetch() error = %v, want IOError", err)
				}
			default:
				if err != nil {
					t.Errorf("Fetch() error = %v", err)
				}
			}
		})
	}
}

func TestFetchParseError(t *testing.T) {
	srv, hits := newTestServer(t, nil)
	c := NewClient(testConfig(srv.URL), nil)

	if _, err := c.Fetch(context.Background(), "..."); !errors.IsParse(err) {
		t.Errorf("Fetch() error = %v, want ParseError", err)
	}
	if hits.Load() != 0 {
		t.Error("unparseable input should not reach the service")
	}
}

func TestFetchBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL), nil).Fetch(context.Background(), "john 3 16")
	if !errors.IsParse(err) {
		t.Errorf("Fetch() error = %v, want ParseError", err)
	}
}

func TestFetchCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewClient(testConfig(srv.URL), nil).Fetch(ctx, "john 3 16")
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("canceled fetch took %v", time.Since(start))
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(logging.RequestIDHeader)
		w.Write([]byte(`{"reference":"John 3:16","text":"x"}`))
	}))
	defer srv.Close()

	ctx := logging.WithRequestID(context.Background(), "req-from-api")
	if _, err := NewClient(testConfig(srv.URL), nil).Fetch(ctx, "john 3 16"); err != nil {
		t.Fatal(err)
	}
	if got != "req-from-api" {
		t.Errorf("X-Request-ID = %q, want req-from-api", got)
	}
}

func TestText(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"Psalms 23:1": "The LORD is my shepherd;"})
	text, err := NewClient(testConfig(srv.URL), nil).Text(context.Background(), "psalm twenty three one")
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if text != "The LORD is my shepherd;" {
		t.Errorf("Text() = %q", text)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaseURL: "https://example.test/", Retries: -1}.withDefaults()
	if cfg.BaseURL != "https://example.test" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Retries != 0 || cfg.Timeout != 15*time.Second || cfg.CacheTTL != 10*time.Minute || cfg.CacheSize != 512 {
		t.Errorf("withDefaults() = %+v", cfg)
	}
	if got := (Config{}).withDefaults(); got.BaseURL != DefaultBaseURL || got.Retries != 2 {
		t.Errorf("zero Config defaults = %+v", got)
	}
}
