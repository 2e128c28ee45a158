package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/oshokin/media-grabber/internal/logger"
)

const (
	// limiterCacheSize bounds the number of tracked clients.
	limiterCacheSize = 10_000
	// limiterIdleTTL is how long an idle client keeps its bucket.
	limiterIdleTTL = 10 * time.Minute
	// unmatchedRoute labels requests that matched no route.
	unmatchedRoute = "unmatched"
)

// logRequests tags the request context with its id, then logs and counts the request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ctx := logger.WithKV(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(wrapped, r.WithContext(ctx))

		status := wrapped.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := unmatchedRoute
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil && routeCtx.RoutePattern() != "" {
			route = routeCtx.RoutePattern()
		}

		s.metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()

		logger.DebugKV(ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"bytes", wrapped.BytesWritten(),
			"duration", time.Since(startedAt),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// rateLimit rejects clients that start jobs faster than the configured rate.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, ErrRateLimited)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	// limit is the sustained rate; zero disables limiting.
	limit rate.Limit
	// burst is the bucket size.
	burst int
	// buckets holds recently seen clients.
	buckets *expirable.LRU[string, *rate.Limiter]
	// mu makes bucket lookup and creation atomic.
	mu *sync.Mutex
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	return &clientLimiter{
		limit:   rate.Limit(perSecond),
		burst:   max(burst, 1),
		buckets: expirable.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, limiterIdleTTL),
		mu:      new(sync.Mutex),
	}
}

// Allow reports whether the client may proceed now.
func (l *clientLimiter) Allow(client string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets.Get(client)
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(client, bucket)
	}

	return bucket.Allow()
}

// clientKey identifies the client of a request by its address without the port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
