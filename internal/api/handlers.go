package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/FocuswithJustin/VoiceRef/core/errors"
	"github.com/FocuswithJustin/VoiceRef/core/ref"
	"github.com/FocuswithJustin/VoiceRef/internal/cache"
	"github.com/FocuswithJustin/VoiceRef/internal/logging"
	"github.com/FocuswithJustin/VoiceRef/internal/passage"
	"github.com/FocuswithJustin/VoiceRef/internal/server"
)

// maxRequestBody bounds a POST /parse body.
const maxRequestBody = 1 << 20

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ParseResult is one normalized utterance. Error is set instead of
// Reference and Parts when the utterance could not be parsed.
type ParseResult struct {
	Input     string         `json:"input"`
	Reference string         `json:"reference,omitempty"`
	Parts     *ref.Reference `json:"parts,omitempty"`
	Error     *APIError      `json:"error,omitempty"`
}

// BatchRequest is the POST /parse body.
type BatchRequest struct {
	Inputs []string `json:"inputs"`
}

// BookInfo describes one catalog book.
type BookInfo struct {
	Name     string `json:"name"`
	Key      string `json:"key"`
	Chapters int    `json:"chapters"`
	Verses   []int  `json:"verses"`
}

// CatalogInfo summarizes the catalog in use.
type CatalogInfo struct {
	Books  int    `json:"books"`
	Digest string `json:"digest"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status           string       `json:"status"`
	Version          string       `json:"version"`
	Uptime           string       `json:"uptime"`
	Catalog          CatalogInfo  `json:"catalog"`
	PassageCache     *cache.Stats `json:"passage_cache,omitempty"`
	WebSocketClients int          `json:"websocket_clients"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"name":    "VoiceRef API",
		"version": s.cfg.Version,
		"endpoints": []string{
			"GET /health",
			"GET /parse?q=",
			"POST /parse",
			"GET /books",
			"GET /books/:name",
			"GET /passage?q=",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	cat := s.parser.Catalog()
	info := HealthInfo{
		Status:           "healthy",
		Version:          s.cfg.Version,
		Uptime:           time.Since(s.started).Round(time.Second).String(),
		Catalog:          CatalogInfo{Books: cat.Len(), Digest: cat.Digest()},
		WebSocketClients: s.hub.Count(),
	}
	if s.passages != nil {
		stats := s.passages.CacheStats()
		info.PassageCache = &stats
	}
	respond(w, http.StatusOK, info)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.parseOne(w, r)
	case http.MethodPost:
		s.parseBatch(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

func (s *Server) parseOne(w http.ResponseWriter, r *http.Request) {
	q, ok := s.query(w, r)
	if !ok {
		return
	}

	result := s.parse(r.Context(), q)
	if result.Error != nil {
		respondError(w, http.StatusBadRequest, result.Error.Code, result.Error.Message)
		return
	}
	respond(w, http.StatusOK, result)
}

func (s *Server) parseBatch(w http.ResponseWriter, r *http.Request) {
	if !server.ValidateContentType(r.Header.Get("Content-Type"), []string{"application/json"}) {
		respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Body must be a JSON object with an inputs array")
		return
	}
	if len(req.Inputs) == 0 {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "inputs must not be empty")
		return
	}
	if len(req.Inputs) > s.cfg.MaxBatchSize {
		respondError(w, http.StatusRequestEntityTooLarge, "BATCH_TOO_LARGE",
			"at most "+strconv.Itoa(s.cfg.MaxBatchSize)+" inputs per request")
		return
	}

	results := make([]ParseResult, len(req.Inputs))
	for i, in := range req.Inputs {
		results[i] = s.parse(r.Context(), in)
	}
	respondList(w, http.StatusOK, results, len(results))
}

// parse normalizes one utterance. Parse failures are reported in the result.
func (s *Server) parse(ctx context.Context, raw string) ParseResult {
	input := server.LimitStringLength(server.SanitizeUserInput(raw), s.cfg.MaxInputLength)

	start := time.Now()
	parts, err := s.parser.ParseParts(input)
	reference := ""
	if err == nil {
		reference = parts.String()
	}
	logging.ReferenceParsed(ctx, input, reference, err, time.Since(start))

	if err != nil {
		return ParseResult{Input: raw, Error: &APIError{Code: "INVALID_REFERENCE", Message: err.Error()}}
	}
	return ParseResult{Input: raw, Reference: reference, Parts: &parts}
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	books := s.parser.Catalog().Books()
	infos := make([]BookInfo, len(books))
	title := cases.Title(language.Und)
	for i, b := range books {
		infos[i] = BookInfo{Name: title.String(b.Name), Key: b.Name, Chapters: len(b.Chapters), Verses: b.Chapters}
	}
	respondList(w, http.StatusOK, infos, len(infos))
}

func (s *Server) handleBookByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	name, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), "/books/"))
	if err != nil || strings.TrimSpace(name) == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Book name required")
		return
	}

	key := strings.ToLower(strings.TrimSpace(name))
	for _, b := range s.parser.Catalog().Books() {
		if b.Name == key {
			respond(w, http.StatusOK, BookInfo{
				Name:     cases.Title(language.Und).String(b.Name),
				Key:      b.Name,
				Chapters: len(b.Chapters),
				Verses:   b.Chapters,
			})
			return
		}
	}
	respondError(w, http.StatusNotFound, "BOOK_NOT_FOUND", "No book named "+strconv.Quote(name))
}

func (s *Server) handlePassage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	if s.passages == nil {
		respondError(w, http.StatusServiceUnavailable, "PASSAGES_DISABLED", "Passage lookup is not configured")
		return
	}
	q, ok := s.query(w, r)
	if !ok {
		return
	}

	p, err := s.passages.Fetch(r.Context(), q)
	if err != nil {
		status, code := passageErrorStatus(err)
		logging.WarnContext(r.Context(), "passage lookup failed", "input", q, "error", err.Error())
		respondError(w, status, code, err.Error())
		return
	}
	respond(w, http.StatusOK, p)
}

// passageErrorStatus maps a passage client error to an HTTP status and code.
func passageErrorStatus(err error) (int, string) {
	switch {
	case errors.IsParse(err):
		var pe *errors.ParseError
		if errors.As(err, &pe) && pe.Format != "reference" {
			return http.StatusBadGateway, "UPSTREAM_ERROR"
		}
		return http.StatusBadRequest, "INVALID_REFERENCE"
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, "PASSAGE_NOT_FOUND"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"
	default:
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	}
}

// query reads the q parameter, responding with 400 when it is missing.
func (s *Server) query(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		respondError(w, http.StatusBadRequest, "MISSING_QUERY", "Query parameter q is required")
		return "", false
	}
	return q, true
}

var _ PassageSource = (*passage.Client)(nil)

func respond(w http.ResponseWriter, status int, data any) {
	write(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: timestamp()},
	})
}

func respondList(w http.ResponseWriter, status int, data any, total int) {
	write(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Total: total, Timestamp: timestamp()},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	write(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: timestamp()},
	})
}

func write(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
