package api

import "time"

// Config holds server configuration.
type Config struct {
	Port              int
	Version           string
	RateLimitRequests int        // Requests per minute (0 = disabled)
	RateLimitBurst    int        // Burst size
	Auth              AuthConfig // Authentication configuration
	AllowedOrigins    []string   // CORS and WebSocket allowed origins (empty = allow all)
	MaxInputLength    int        // bytes of dictated text kept per utterance, 512 if zero
	MaxBatchSize      int        // inputs accepted by POST /parse, 100 if zero
	WebSocket         WebSocketConfig
	ShutdownTimeout   time.Duration // graceful shutdown window, 10s if zero
}

// WebSocketConfig bounds a dictation stream.
type WebSocketConfig struct {
	MaxMessageRate int   // utterances per second per connection, 10 if zero
	MaxMessageSize int64 // bytes per frame, 4096 if zero
}

func (c Config) withDefaults() Config {
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.MaxInputLength <= 0 {
		c.MaxInputLength = 512
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 100
	}
	if c.RateLimitRequests > 0 && c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 10
	}
	if c.WebSocket.MaxMessageRate <= 0 {
		c.WebSocket.MaxMessageRate = 10
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		c.WebSocket.MaxMessageSize = 4096
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}
