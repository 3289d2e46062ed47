package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/Sadick14/ticket-flow/pkg/logger"
)

// sensitiveFields are masked wherever they appear in header names or JSON keys.
var sensitiveFields = []string{
	"authorization",
	"signature",
	"secret",
	"token",
	"api_key",
	"account_number",
	"iban",
	"routing",
	"card",
}

const (
	maxLoggedBody = 4 << 10
	filtered      = "[FILTERED]"
)

// quietPaths are probed constantly and only logged at debug level.
var quietPaths = map[string]bool{
	"/api/v1/health": true,
	"/api/v1/ping":   true,
	"/metrics":       true,
}

// Logging writes one line per request through the request-scoped logger that
// RequestID placed in the context. Bodies are capped and redacted.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lg := logger.From(r.Context())

		reqBody := captureRequestBody(r)
		respBody := &cappedBuffer{limit: maxLoggedBody}
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(respBody)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		lg.Log(r.Context(), levelFor(r.URL.Path, status), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status_code", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"response_size", ww.BytesWritten(),
			"remote_addr", r.RemoteAddr,
			"headers", filterSensitiveHeaders(r.Header),
			"request_body", filterSensitiveBody(reqBody),
			"response_body", filterSensitiveBody(respBody.Bytes()),
		)
	})
}

func levelFor(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case quietPaths[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// captureRequestBody reads the body for logging and puts it back for the
// handler.
func captureRequestBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) > maxLoggedBody {
		return body[:maxLoggedBody]
	}
	return body
}

// cappedBuffer keeps the first limit bytes written and discards the rest.
type cappedBuffer struct {
	bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.Len(); room > 0 {
		if len(p) > room {
			b.Buffer.Write(p[:room])
		} else {
			b.Buffer.Write(p)
		}
	}
	return len(p), nil
}

func isSensitive(name string) bool {
	name = strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(name, field) {
			return true
		}
	}
	return false
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			out[name] = filtered
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// filterSensitiveBody masks sensitive keys in a JSON body. A non-JSON body
// that mentions a sensitive field is dropped entirely.
func filterSensitiveBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		if isSensitive(string(body)) {
			return "[FILTERED - Contains sensitive data]"
		}
		return string(body)
	}

	out, err := json.Marshal(redact(doc))
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}
	return string(out)
}

func redact(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		for key, value := range v {
			if isSensitive(key) {
				v[key] = filtered
			} else {
				v[key] = redact(value)
			}
		}
		return v
	case []interface{}:
		for i := range v {
			v[i] = redact(v[i])
		}
		return v
	default:
		return v
	}
}
