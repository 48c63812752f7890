package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/project-o/assist/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        log.Logger
	Turns         TurnStreamer    // Required
	Store         TranscriptStore // Required
	Pool          *pgxpool.Pool   // Optional: nil disables pool stats in /ready
	CORSOrigins   []string        // Allowed origins for CORS
	IsDev         bool            // Disables HSTS for plain-HTTP development
	TrustProxy    bool            // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RatePerMinute int             // Rate limiter refill per IP (0 = default 60)
	RateBurst     int             // Rate limiter burst size per IP (0 = default 10)
}

// Server is the JSON/SSE API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Turns == nil {
		return nil, errors.New("turn streamer is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("transcript store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{
		turns:  cfg.Turns,
		store:  cfg.Store,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)
	mux.HandleFunc("GET /api/v1/chat/history/{chatId}", ch.history)
	mux.HandleFunc("GET /api/v1/chat/images/{chatId}", ch.images)
	mux.HandleFunc("POST /api/v1/chat/images/resolve", ch.resolveImages)

	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}
	rl := newRateLimiter(float64(perMinute), burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
