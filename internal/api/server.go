package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/webtools/internal/content"
	"github.com/JakeFAU/webtools/internal/id/uuid"
	"github.com/JakeFAU/webtools/internal/metrics"
	"github.com/JakeFAU/webtools/internal/tools"
)

// maxArgumentBytes caps a tool request body.
const maxArgumentBytes = 1 << 20

// IDGenerator produces request IDs.
type IDGenerator interface {
	MustNewID() string
}

// Config holds HTTP surface settings.
type Config struct {
	// RequestTimeout bounds every /v1 request. Zero selects 60s.
	RequestTimeout time.Duration
	// IDs defaults to UUID v7 request IDs.
	IDs IDGenerator
}

// Server wires HTTP handlers to the tool registry.
type Server struct {
	router   chi.Router
	registry *tools.Registry
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. mcpHandler is
// mounted at /mcp when non-nil.
func NewServer(registry *tools.Registry, mcpHandler http.Handler, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ids := cfg.IDs
	if ids == nil {
		ids = uuid.NewUUIDGenerator()
	}
	s := &Server{
		registry: registry,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware(ids))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		r.Get("/tools", s.listTools)
		r.Post("/tools/{name}", s.callTool)
	})

	// Streamable sessions hold the connection open, so /mcp is outside the
	// timeout group.
	if mcpHandler != nil {
		r.Handle("/mcp", mcpHandler)
		r.Handle("/mcp/*", mcpHandler)
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Nothing is held between requests, so the service is ready once routed.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.registry.List()})
}

type toolResponse struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

func (s *Server) callTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxArgumentBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(content.KindValidation), "failed to read request body")
		return
	}
	if len(body) > maxArgumentBytes {
		writeError(w, http.StatusRequestEntityTooLarge, string(content.KindValidation), "request body too large")
		return
	}
	out, err := s.registry.Call(r.Context(), name, body)
	if err != nil {
		s.writeToolError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, toolResponse{Tool: name, Result: out})
}

func (s *Server) writeToolError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, tools.ErrUnknownTool) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	kind := content.KindOf(err)
	status := StatusFor(kind)
	if kind == content.KindRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(err)))
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn("tool failed",
			zap.String("tool", name),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	writeError(w, status, string(kind), err.Error())
}

// StatusFor maps an error kind to the HTTP status returned to callers.
func StatusFor(kind content.Kind) int {
	switch kind {
	case content.KindValidation, content.KindInvalidURL:
		return http.StatusBadRequest
	case content.KindRateLimited:
		return http.StatusTooManyRequests
	case content.KindTimeout:
		return http.StatusGatewayTimeout
	case content.KindUpstreamHTTP, content.KindParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func retryAfterSeconds(err error) int {
	var ce *content.Error
	if errors.As(err, &ce) && ce.RetryAfter > 0 {
		return int(math.Ceil(ce.RetryAfter.Seconds()))
	}
	return 1
}

func requestIDMiddleware(ids IDGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = ids.MustNewID()
			}
			ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
			w.Header().Set("X-Request-ID", reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestID returns the request ID stored by the request ID middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
					)
					writeError(w, http.StatusInternalServerError, string(content.KindInternal), "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"request timed out","kind":"timeout"}`)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind})
}
