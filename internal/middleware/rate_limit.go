package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/loginsentry/internal/auth"
	pkghttp "github.com/BradenHooton/loginsentry/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// DefaultAlertReadRateLimit returns the rate limit for alert queries
func DefaultAlertReadRateLimit(ipConfig *pkghttp.IPConfig) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 600,
		IPConfig:          ipConfig,
	}
}

// RateLimitByService limits requests per authenticated service, keyed on the
// token subject. It must run after ServiceAuthMiddleware; unauthenticated
// requests fall back to the client IP.
func RateLimitByService(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetServiceFromContext(r); claims != nil {
				return "service:" + claims.Subject, nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "rate limit exceeded")
		}),
	)
}
