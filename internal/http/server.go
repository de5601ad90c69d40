// Package http exposes the filing engine as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"ppkgen/internal/cache"
	"ppkgen/internal/middleware/trace"
	"ppkgen/internal/services"
)

type Server struct {
	http.Server
	filings     *services.FilingService
	rateLimiter *rateLimiter

	// Rebuilt archives keyed by generation id. Generations are
	// immutable, so entries never need invalidation.
	exportCache      *cache.LRUCache[cachedExport]
	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

type cachedExport struct {
	Filename string
	ZipBytes []byte
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 120 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 120
}

func extractClientIP(r *http.Request) string {
	clientIP := r.Header.Get("X-Forwarded-For")
	if clientIP == "" {
		clientIP = r.Header.Get("X-Real-IP")
	}
	if clientIP == "" {
		clientIP = r.RemoteAddr
	}
	return clientIP
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, filings *services.FilingService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr: addr,
		},
		filings:          filings,
		rateLimiter:      newRateLimiter(),
		exportCache:      cache.NewLRUCache[cachedExport](50, 30*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/organizations", s.handleListOrganizations)
	mux.HandleFunc("POST /api/organizations", s.handleCreateOrganization)
	mux.HandleFunc("GET /api/organizations/{id}", s.handleGetOrganization)
	mux.HandleFunc("PUT /api/organizations/{id}", s.handleUpdateOrganization)
	mux.HandleFunc("DELETE /api/organizations/{id}", s.handleDeleteOrganization)

	mux.HandleFunc("GET /api/organizations/{id}/members", s.handleListMembers)
	mux.HandleFunc("POST /api/organizations/{id}/members", s.handleCreateMember)
	mux.HandleFunc("GET /api/members/{id}", s.handleGetMember)
	mux.HandleFunc("PATCH /api/members/{id}", s.handleUpdateMember)
	mux.HandleFunc("DELETE /api/members/{id}", s.handleDeleteMember)

	mux.HandleFunc("POST /api/pesel/validate", s.handleValidatePesel)

	mux.HandleFunc("GET /api/organizations/{id}/contributions", s.handleListContributions)
	mux.HandleFunc("PUT /api/contributions", s.handleUpsertContribution)
	mux.HandleFunc("POST /api/organizations/{id}/contributions/prefill", s.handlePrefillContributions)
	mux.HandleFunc("GET /api/organizations/{id}/periods", s.handleListPeriods)

	mux.HandleFunc("POST /api/organizations/{id}/generations", s.handleGenerate)
	mux.HandleFunc("GET /api/organizations/{id}/generations", s.handleListGenerations)
	mux.HandleFunc("GET /api/generations/{id}", s.handleGetGeneration)
	mux.HandleFunc("GET /api/generations/{id}/export", s.handleExportGeneration)

	traced := trace.NewMiddleware(extractClientIP)
	s.Handler = traced.Middleware(s.withProtection(mux))

	return s
}

// withProtection adds rate limiting and response headers for mutating
// requests.
func (s *Server) withProtection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && !s.rateLimiter.allow(extractClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// startCacheCleanup drops expired export cache entries periodically so
// archives that are never requested again do not stay pinned until
// eviction.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.exportCache.CleanExpired(); removed > 0 {
				slog.Debug("Export cache cleanup completed",
					"entries_removed", removed,
					"entries_kept", s.exportCache.Size())
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
