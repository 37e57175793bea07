// Package api serves the receptionist tools over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"receptionist/internal/export"
	"receptionist/internal/ledger"
	"receptionist/internal/schedule"
	"receptionist/internal/tools"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 1 << 20

// Tools dispatches tool calls.
type Tools interface {
	Definitions() []tools.Definition
	Call(ctx context.Context, name string, args json.RawMessage) (any, error)
}

// BookingLister returns the current bookings.
type BookingLister interface {
	ListBookings() []ledger.Booking
}

// ReadyCheck reports whether a dependency is ready to serve.
type ReadyCheck func(ctx context.Context) error

// Options configures the HTTP server.
type Options struct {
	APIKey          string
	RateLimitPerSec int
	RateLimitBurst  int
	ReadyChecks     map[string]ReadyCheck
}

// HTTPServer exposes the tool registry, booking listing and health probes.
type HTTPServer struct {
	tools    Tools
	bookings BookingLister
	opts     Options
	logger   zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	mux *http.ServeMux
}

// NewHTTPServer wires the routes.
func NewHTTPServer(t Tools, bookings BookingLister, opts Options, logger *zerolog.Logger) *HTTPServer {
	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 5
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 10
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http_api").Logger()
	}

	s := &HTTPServer{
		tools:    t,
		bookings: bookings,
		opts:     opts,
		logger:   l,
		limiters: make(map[string]*rate.Limiter),
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	s.mux.Handle("/api/tools", s.protect(http.HandlerFunc(s.handleListTools)))
	s.mux.Handle("/api/tools/", s.protect(http.HandlerFunc(s.handleCallTool)))
	s.mux.Handle("/api/bookings", s.protect(http.HandlerFunc(s.handleBookings)))
	s.mux.Handle("/api/bookings/export.xlsx", s.protect(http.HandlerFunc(s.handleExport)))
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until ctx is done.
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", addr).Msg("http api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// protect applies API key auth and per-client rate limiting.
func (s *HTTPServer) protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-api-key")
		if s.opts.APIKey != "" && key != s.opts.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing api key")
			return
		}
		if !s.limiter(clientID(r, key)).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) limiter(client string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[client]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.opts.RateLimitPerSec), s.opts.RateLimitBurst)
		s.limiters[client] = l
	}
	return l
}

func clientID(r *http.Request, key string) string {
	if key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "addr:" + r.RemoteAddr
	}
	return "addr:" + host
}

// handleListTools returns tool definitions.
// GET /api/tools
func (s *HTTPServer) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.tools.Definitions()})
}

// handleCallTool invokes a tool with the JSON body as arguments.
// POST /api/tools/{name}
func (s *HTTPServer) handleCallTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/tools/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "tool not found")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	result, err := s.tools.Call(r.Context(), name, body)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error().Err(err).Str("tool", name).Msg("tool call failed")
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tool": name, "result": result})
}

// handleBookings lists bookings.
// GET /api/bookings
func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
	bookings := s.bookings.ListBookings()
	views := make([]tools.BookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, tools.NewBookingView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "bookings": views})
}

// handleExport streams bookings as an Excel workbook.
// GET /api/bookings/export.xlsx
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bookings_%s.xlsx"`, time.Now().Format("20060102_150405")))
	if err := export.WriteBookings(w, s.bookings.ListBookings()); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	for name, check := range s.opts.ReadyChecks {
		if err := check(ctx); err != nil {
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schedule.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, tools.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
