package api

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Rdilshan/e-voting-web-sub000/log"
)

// DisabledLogging disables the request logging middleware.
var DisabledLogging = false

// jsonRegex matches bodies that look like a JSON object or array.
var jsonRegex = regexp.MustCompile(`^\s*[\[{]`)

// LoggingConfig holds configuration for the logging middleware.
type LoggingConfig struct {
	MaxBodyLog       int
	ExcludedPrefixes []string // URL path prefixes never logged
}

// DefaultLoggingConfig returns the logging configuration used by the API.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		MaxBodyLog:       maxRequestBodyLog,
		ExcludedPrefixes: LogExcludedPrefixes,
	}
}

// skip reports whether r must not be logged. Only debug level logs
// requests.
func (lc LoggingConfig) skip(r *http.Request) bool {
	if DisabledLogging || log.Level() != log.LogLevelDebug {
		return true
	}
	for _, prefix := range lc.ExcludedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// responseWriter records the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

// loggingMiddleware logs requests and responses at debug level.
func loggingMiddleware(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			var body string
			if r.Body != nil && r.ContentLength > 0 {
				data, err := io.ReadAll(r.Body)
				if err != nil {
					log.Warnw("unable to read request body", "error", err.Error())
					http.Error(w, "unable to read request body", http.StatusInternalServerError)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(data))
				if jsonRegex.Match(data) {
					body = string(data)
					if len(body) > config.MaxBodyLog {
						body = body[:config.MaxBodyLog] + "..."
					}
					body = strings.ReplaceAll(body, "\"", "")
				}
			}

			wrapped := &responseWriter{ResponseWriter: w}
			log.Debugw("api request",
				"method", r.Method,
				"url", r.URL.String(),
				"body", body,
			)
			next.ServeHTTP(wrapped, r)
			log.Debugw("api response",
				"method", r.Method,
				"url", r.URL.String(),
				"status", wrapped.statusCode,
				"took", log.Since(start),
			)
		})
	}
}
