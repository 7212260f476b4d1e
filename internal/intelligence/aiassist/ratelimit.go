package aiassist

import (
	"sync"

	"golang.org/x/time/rate"
)

// TenantRateLimiter manages one token bucket per tenant. Buckets refill
// continuously at limit/60 tokens per second and cap at limit tokens; a
// request that finds no token is rejected without blocking.
type TenantRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tenantBucket
}

type tenantBucket struct {
	limiter   *rate.Limiter
	perMinute int
}

// NewTenantRateLimiter creates an empty limiter registry.
func NewTenantRateLimiter() *TenantRateLimiter {
	return &TenantRateLimiter{buckets: make(map[string]*tenantBucket)}
}

// Allow consumes one token from the tenant's bucket if available.
// A non-positive limit disables AI for the tenant outright.
func (l *TenantRateLimiter) Allow(tenantID string, perMinute int) bool {
	if perMinute <= 0 {
		return false
	}

	l.mu.Lock()
	bucket, ok := l.buckets[tenantID]
	if !ok || bucket.perMinute != perMinute {
		// New tenant, or the tenant's configured limit changed.
		bucket = &tenantBucket{
			limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
			perMinute: perMinute,
		}
		l.buckets[tenantID] = bucket
	}
	l.mu.Unlock()

	return bucket.limiter.Allow()
}
