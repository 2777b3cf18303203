package server

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	apperrors "github.com/Niza-Khunga/collaborative-todo/internal/errors"
)

// requireAuth verifies the bearer token and stores the caller's user ID
// in the request context under "userID".
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return apperrors.UnauthorizedError("missing bearer token")
		}

		userID, _, err := s.tokens.Verify(token)
		if err != nil {
			return apperrors.UnauthorizedError("invalid or expired token")
		}

		c.Set("userID", userID)
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// currentUserID reads the user ID set by requireAuth.
func currentUserID(c echo.Context) uuid.UUID {
	return c.Get("userID").(uuid.UUID)
}

// ipRateLimiter keeps one token bucket per client IP. Buckets are
// never evicted; the key space is bounded by distinct caller IPs.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter.Allow()
}

// rateLimitAuth throttles the credential endpoints per client IP.
func (s *Server) rateLimitAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.authLimiter.allow(c.RealIP()) {
			return echo.NewHTTPError(429, "too many requests")
		}
		return next(c)
	}
}
