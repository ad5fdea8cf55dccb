package httpserver

import (
	"net/http"
	"time"
)

// Option adjusts the server built by New.
type Option func(*http.Server)

// WithWriteTimeout bounds a whole response. Mints block on the ledger
// transaction and the payout, so this must exceed the ledger tx timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *http.Server) {
		if d > 0 {
			s.WriteTimeout = d
		}
	}
}

// WithReadTimeout bounds reading a request, body included.
func WithReadTimeout(d time.Duration) Option {
	return func(s *http.Server) {
		if d > 0 {
			s.ReadTimeout = d
		}
	}
}

// New builds the API server. Defaults suit small JSON requests.
func New(addr string, handler http.Handler, opts ...Option) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}
