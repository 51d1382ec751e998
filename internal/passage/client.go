// Package passage retrieves passage text for dictated references from a
// bible-api.com compatible service.
package passage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FocuswithJustin/VoiceRef/core/errors"
	"github.com/FocuswithJustin/VoiceRef/core/ref"
	"github.com/FocuswithJustin/VoiceRef/core/refparse"
	"github.com/FocuswithJustin/VoiceRef/internal/cache"
	"github.com/FocuswithJustin/VoiceRef/internal/logging"
)

// DefaultBaseURL is the public passage service.
const DefaultBaseURL = "https://bible-api.com"

// maxBodyBytes bounds a passage response.
const maxBodyBytes = 4 << 20

// Config holds client settings. Zero fields take defaults.
type Config struct {
	BaseURL      string        // service root, DefaultBaseURL if empty
	Timeout      time.Duration // per attempt, 15s if zero
	Retries      int           // extra attempts after a 5xx or transport error, 2 if zero; negative disables
	RetryBackoff time.Duration // wait before the first retry, doubled for each later one; 200ms if zero
	CacheTTL     time.Duration // 10m if zero; negative disables caching
	CacheSize    int           // 512 entries if zero
	UserAgent    string
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.Retries == 0 {
		c.Retries = 2
	} else if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 10 * time.Minute
	}
	if c.CacheSize == 0 {
		c.CacheSize = 512
	}
	if c.UserAgent == "" {
		c.UserAgent = "voiceref/1.0"
	}
	return c
}

// Passage is a resolved reference with its text.
type Passage struct {
	Input     string        `json:"input"`     // dictated text
	Parsed    string        `json:"parsed"`    // normalized reference sent to the service
	Reference string        `json:"reference"` // reference as echoed by the service
	Text      string        `json:"text"`
	Parts     ref.Reference `json:"parts"`  // parsed reference
	Served    ref.Reference `json:"served"` // echoed reference, when it parses
}

// Client fetches passages. It is safe for concurrent use.
type Client struct {
	cfg        Config
	parser     *refparse.Parser
	httpClient *http.Client
	cache      *cache.TTLCache[string, *Passage]
}

// NewClient creates a client that parses input with parser (the default
// parser if nil).
func NewClient(cfg Config, parser *refparse.Parser) *Client {
	cfg = cfg.withDefaults()
	if parser == nil {
		parser = refparse.Default()
	}
	c := &Client{
		cfg:        cfg,
		parser:     parser,
		httpClient: &http.Client{},
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New[string, *Passage](cfg.CacheTTL, cfg.CacheSize)
	}
	return c
}

// CacheStats reports passage cache activity. It is zero when caching is off.
func (c *Client) CacheStats() cache.Stats {
	if c.cache == nil {
		return cache.Stats{}
	}
	return c.cache.Stats()
}

// response is the subset of the service payload the client reads.
type response struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`
	Error     string `json:"error"`
}

// Fetch parses raw and retrieves the passage it names.
func (c *Client) Fetch(ctx context.Context, raw string) (*Passage, error) {
	start := time.Now()

	parts, err := c.parser.ParseParts(raw)
	if err != nil {
		return nil, err
	}
	parsed := parts.String()

	if c.cache != nil {
		if p, ok := c.cache.Get(parsed); ok {
			logging.PassageFetched(ctx, parsed, true, 0, time.Since(start))
			out := *p
			out.Input = raw
			return &out, nil
		}
	}

	body, attempts, err := c.get(ctx, parsed)
	if err != nil {
		return nil, err
	}

	p := &Passage{
		Input:     raw,
		Parsed:    parsed,
		Reference: body.Reference,
		Text:      body.Text,
		Parts:     parts,
	}
	if p.Reference == "" {
		p.Reference = parsed
	}
	if served, err := ref.ParseCanonical(p.Reference); err == nil {
		p.Served = served
	}

	if c.cache != nil {
		stored := *p
		c.cache.Set(parsed, &stored)
	}
	logging.PassageFetched(ctx, parsed, false, attempts, time.Since(start))
	return p, nil
}

// Text parses raw and returns only the passage text.
func (c *Client) Text(ctx context.Context, raw string) (string, error) {
	p, err := c.Fetch(ctx, raw)
	if err != nil {
		return "", err
	}
	return p.Text, nil
}

// get requests one reference, retrying transport errors and 5xx responses.
func (c *Client) get(ctx context.Context, reference string) (*response, int, error) {
	endpoint := c.cfg.BaseURL + "/" + url.PathEscape(reference)
	requestID := logging.GetRequestID(ctx)
	if requestID == "" {
		requestID = logging.NewRequestID()
	}

	backoff := c.cfg.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Retries+1; attempt++ {
		if attempt > 1 {
			logging.DebugContext(ctx, "passage retry", "reference", reference, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, attempt - 1, errors.NewIO("fetch", endpoint, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, retry, err := c.attempt(ctx, endpoint, reference, requestID)
		if err == nil {
			return body, attempt, nil
		}
		if !retry {
			return nil, attempt, err
		}
		lastErr = err
	}
	return nil, c.cfg.Retries + 1, lastErr
}

// attempt makes one request. The bool reports whether a failure is worth
// retrying.
func (c *Client) attempt(ctx context.Context, endpoint, reference, requestID string) (*response, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, errors.NewIO("build request for", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set(logging.RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A canceled caller is final; a timed-out attempt is not.
		return nil, ctx.Err() == nil, errors.NewIO("fetch", endpoint, fmt.Errorf("%w: %v", errors.ErrUnavailable, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, errors.NewIO("read", endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, errors.NewNotFound("passage", reference)
	case resp.StatusCode >= 500:
		return nil, true, errors.NewIO("fetch", endpoint, fmt.Errorf("%w: HTTP %d", errors.ErrUnavailable, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, false, errors.NewIO("fetch", endpoint, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var body response
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, false, errors.NewParseFormat("passage response", err.Error(), err)
	}
	if body.Error != "" {
		return nil, false, errors.NewNotFound("passage", reference)
	}
	return &body, false, nil
}
