package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/internal/metrics"
	"github.com/Sadick14/ticket-flow/pkg/logger"
)

var _ = Describe("Middleware", func() {
	Describe("RequestID", func() {
		It("echoes a caller supplied id and exposes it to chi", func() {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = chiMiddleware.GetReqID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, "req-123")
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			Expect(seen).To(Equal("req-123"))
			Expect(w.Header().Get(RequestIDHeader)).To(Equal("req-123"))
		})

		It("generates an id when none is given", func() {
			h := RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
			w := httptest.NewRecorder()

			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(w.Header().Get(RequestIDHeader)).To(HaveLen(36))
		})
	})

	Describe("Recovery", func() {
		It("answers 500 with the error envelope", func() {
			h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			}))
			w := httptest.NewRecorder()

			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			var body map[string]map[string]interface{}
			Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
			Expect(body["error"]["code"]).To(Equal("INTERNAL_ERROR"))
		})
	})

	Describe("Logging", func() {
		It("passes the request body through untouched", func() {
			var got []byte
			h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusCreated)
			}))
			w := httptest.NewRecorder()

			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sale_id":"s1"}`)))

			Expect(string(got)).To(Equal(`{"sale_id":"s1"}`))
			Expect(w.Code).To(Equal(http.StatusCreated))
		})

		It("writes one redacted line with the outcome", func() {
			var buf bytes.Buffer
			lg := slog.New(slog.NewJSONHandler(&buf, nil))
			h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":{"code":"DUPLICATE_SALE"}}`))
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(`{"sale_id":"s1","card":"4242"}`))
			req = req.WithContext(logger.Into(req.Context(), lg))

			h.ServeHTTP(httptest.NewRecorder(), req)

			var line map[string]interface{}
			Expect(json.Unmarshal(buf.Bytes(), &line)).To(Succeed())
			Expect(line["level"]).To(Equal("WARN"))
			Expect(line["status_code"]).To(BeNumerically("==", http.StatusConflict))
			Expect(line["request_body"]).To(ContainSubstring(`"card":"[FILTERED]"`))
			Expect(line["request_body"]).ToNot(ContainSubstring("4242"))
			Expect(line["response_body"]).To(ContainSubstring("DUPLICATE_SALE"))
		})

		It("keeps health probes below info", func() {
			var buf bytes.Buffer
			lg := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
			h := Logging(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)

			h.ServeHTTP(httptest.NewRecorder(), req.WithContext(logger.Into(req.Context(), lg)))

			Expect(buf.Len()).To(BeZero())
		})

		It("caps captured response bodies", func() {
			b := &cappedBuffer{limit: 4}
			n, err := b.Write([]byte("abcdef"))

			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(6))
			Expect(b.String()).To(Equal("abcd"))
		})

		It("masks sensitive keys at any depth", func() {
			out := filterSensitiveBody([]byte(`{"creator_id":"c1","bank":{"account_number":"123","iban":"DE00"},"items":[{"api_key":"k"}]}`))

			Expect(out).To(ContainSubstring(`"creator_id":"c1"`))
			Expect(out).To(ContainSubstring(`"account_number":"[FILTERED]"`))
			Expect(out).To(ContainSubstring(`"iban":"[FILTERED]"`))
			Expect(out).To(ContainSubstring(`"api_key":"[FILTERED]"`))
			Expect(out).ToNot(ContainSubstring("DE00"))
		})

		It("masks sensitive headers", func() {
			h := http.Header{}
			h.Set("Authorization", "Bearer x")
			h.Set("X-Webhook-Signature", "abc")
			h.Set("Content-Type", "application/json")

			out := filterSensitiveHeaders(h)

			Expect(out["Authorization"]).To(Equal("[FILTERED]"))
			Expect(out["X-Webhook-Signature"]).To(Equal("[FILTERED]"))
			Expect(out["Content-Type"]).To(Equal("application/json"))
		})
	})

	Describe("RateLimiter", func() {
		ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		call := func(h http.Handler, remote string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payouts/callback", nil)
			req.RemoteAddr = remote
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w
		}

		It("is a passthrough when disabled", func() {
			l := NewRateLimiter(internal.RateLimitConfig{})

			Expect(l).To(BeNil())
			for i := 0; i < 5; i++ {
				Expect(call(l.Middleware(ok), "10.0.0.1:1234").Code).To(Equal(http.StatusOK))
			}
		})

		It("answers 429 once a client spends its burst", func() {
			// Given one request per minute with a burst of two
			h := NewRateLimiter(internal.RateLimitConfig{RequestsPerMinute: 1, Burst: 2}).Middleware(ok)

			// Then the third call from the same client is refused
			Expect(call(h, "10.0.0.1:1234").Code).To(Equal(http.StatusOK))
			Expect(call(h, "10.0.0.1:5678").Code).To(Equal(http.StatusOK))
			w := call(h, "10.0.0.1:9999")
			Expect(w.Code).To(Equal(http.StatusTooManyRequests))
			Expect(w.Header().Get("Retry-After")).To(Equal("1"))
			Expect(w.Body.String()).To(ContainSubstring("TOO_MANY_REQUESTS"))

			// And another client still has its own bucket
			Expect(call(h, "10.0.0.2:1234").Code).To(Equal(http.StatusOK))
		})

		It("forgets clients that went idle", func() {
			l := NewRateLimiter(internal.RateLimitConfig{RequestsPerMinute: 60, Burst: 1})
			start := time.Now()
			l.now = func() time.Time { return start }
			Expect(l.allow("a")).To(BeTrue())

			l.now = func() time.Time { return start.Add(visitorIdle + time.Second) }
			Expect(l.allow("b")).To(BeTrue())

			Expect(l.visitors).ToNot(HaveKey("a"))
			Expect(l.visitors).To(HaveKey("b"))
		})
	})

	Describe("Metrics", func() {
		It("labels requests by route pattern", func() {
			router := chi.NewRouter()
			router.Use(Metrics(metrics.DefaultHTTP()))
			router.Get("/payouts/{id}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})
			w := httptest.NewRecorder()

			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payouts/p-1", nil))

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(requestsFor("/payouts/{id}", "404")).To(BeNumerically(">=", 1))
		})
	})
})

func requestsFor(route, status string) float64 {
	families, err := prometheus.DefaultGatherer.Gather()
	Expect(err).ToNot(HaveOccurred())
	var total float64
	for _, f := range families {
		if f.GetName() != "ticketflow_http_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["route"] == route && labels["status"] == status {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}
