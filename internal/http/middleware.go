package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/fairyhunter13/seatcover-storefront/internal/obs"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyVisitor
)

// VisitorCookie names the cookie that identifies a visitor's storage.
const VisitorCookie = "sc_visitor"

// VisitorHeader lets API clients without cookies pick their storage namespace.
const VisitorHeader = "X-Visitor-Id"

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// VisitorFromContext returns the visitor id set by WithVisitor.
func VisitorFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyVisitor).(string)
	return v
}

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares left-to-right; the first one is outermost.
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

type statusRecorder struct {
	h  http.ResponseWriter
	st int
	n  int
}

func (w *statusRecorder) Header() http.Header { return w.h.Header() }
func (w *statusRecorder) WriteHeader(code int) {
	w.st = code
	w.h.WriteHeader(code)
}
func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.h.Write(b)
	w.n += n
	return n, err
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{h: w, st: 200}
		next.ServeHTTP(sr, r)
		lat := time.Since(start)
		obs.Logger.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.st,
			"bytes", sr.n,
			"latency_ms", float64(lat.Microseconds())/1000.0,
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// WithVisitor resolves the visitor id from the X-Visitor-Id header or the
// visitor cookie, issuing a new cookie when neither is usable. Both must hold
// a uuid; ids are normalized to the canonical lowercase form.
func WithVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := visitorID(r.Header.Get(VisitorHeader))
		if id == "" {
			if c, err := r.Cookie(VisitorCookie); err == nil {
				id = visitorID(c.Value)
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     VisitorCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   365 * 24 * 60 * 60,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyVisitor, id)))
	})
}

func visitorID(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return ""
	}
	return u.String()
}

// Recover turns a panic into a 500 JSON error.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				obs.Logger.Error("panic_recovered",
					"error", fmt.Sprintf("%v", err),
					"path", r.URL.Path,
					"request_id", RequestIDFromContext(r.Context()),
				)
				WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS sets the storefront API CORS headers and answers preflight requests.
func CORS(origin string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id, X-Visitor-Id")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OTel creates a server span for each request.
func OTel(operation string) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation)
	}
}

// visitorLimiter hands out one token bucket per visitor.
type visitorLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// maxTrackedVisitors bounds the limiter table; it starts over when full.
const maxTrackedVisitors = 10000

func newVisitorLimiter(perSec float64, burst int) *visitorLimiter {
	if burst < 1 {
		burst = 1
	}
	return &visitorLimiter{limit: rate.Limit(perSec), burst: burst, limiters: map[string]*rate.Limiter{}}
}

func (v *visitorLimiter) allow(visitor string) bool {
	v.mu.Lock()
	l, ok := v.limiters[visitor]
	if !ok {
		if len(v.limiters) >= maxTrackedVisitors {
			v.limiters = map[string]*rate.Limiter{}
		}
		l = rate.NewLimiter(v.limit, v.burst)
		v.limiters[visitor] = l
	}
	v.mu.Unlock()
	return l.Allow()
}

// RateLimit rejects requests beyond perSec (with the given burst) per visitor
// with 429. A non-positive rate disables limiting.
func RateLimit(perSec float64, burst int) Middleware {
	if perSec <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	lim := newVisitorLimiter(perSec, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.allow(VisitorFromContext(r.Context())) {
				obs.OrdersRejected.Add(1)
				w.Header().Set("Retry-After", "1")
				WriteJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many orders, try again shortly")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
