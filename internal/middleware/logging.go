package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"admin-console/internal/routes"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = contextKey("request_id")
)

type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// LoggingOptions configures NewLogging.
type LoggingOptions struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// RouteClass adds the console's route class to each line and logs
	// static routes at debug level. Only the console router sets it.
	RouteClass bool
}

// Logging tags every request with an id and logs one line per request.
func Logging(next http.Handler) http.Handler {
	return NewLogging(LoggingOptions{})(next)
}

func NewLogging(opts LoggingOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return logRequests(next, opts)
	}
}

func logRequests(next http.Handler, opts LoggingOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := opts.Logger
		if log == nil {
			log = slog.Default()
		}

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		started := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r.WithContext(ctx))

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", r.RemoteAddr,
		}
		static := false
		if opts.RouteClass {
			class := routes.Classify(r.URL.Path)
			static = class == routes.Static
			attrs = append(attrs, "route_class", class.String())
		}
		if location := wrapped.Header().Get("Location"); location != "" {
			attrs = append(attrs, "location", location)
		}

		if wrapped.status >= 400 && wrapped.body.Len() > 0 {
			var parsed errorBody
			if err := json.Unmarshal(wrapped.body.Bytes(), &parsed); err == nil && parsed.Error != nil {
				attrs = append(attrs, "error_code", parsed.Error.Code, "error_message", parsed.Error.Message)
				if parsed.Error.Details != "" {
					attrs = append(attrs, "error_details", parsed.Error.Details)
				}
			}
		}

		switch {
		case wrapped.status >= 500:
			log.Error("request", attrs...)
		case wrapped.status >= 400:
			log.Warn("request", attrs...)
		case static:
			log.Debug("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	})
}

// RequestID returns the id Logging assigned to the request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status >= 400 && rw.body.Len() < 4096 {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

// Hijack is needed by the websocket upgrade.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
