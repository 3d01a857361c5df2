// Package lim rate-limits mutating requests per client IP with token
// buckets. The bucket table is an LRU so an address churn attack evicts
// idle buckets instead of growing memory without bound.
package lim

import (
	"net"
	"net/http"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

type Limiter struct {
	mu             sync.Mutex
	buckets        *lru.Cache[string, *rate.Limiter]
	rpm            int
	burst          int
	trustedProxies []string
}

func New(rpm, burst, maxClients int, trustedProxies []string) (*Limiter, error) {
	if rpm <= 0 || burst <= 0 {
		return nil, errors.New("rpm and burst must be positive")
	}
	for _, proxy := range trustedProxies {
		if strings.Contains(proxy, "/") {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return nil, errors.Wrapf(err, "invalid CIDR in trusted proxies: %s", proxy)
			}
		} else if net.ParseIP(proxy) == nil {
			return nil, errors.Errorf("invalid IP in trusted proxies: %s", proxy)
		}
	}
	buckets, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, err
	}
	return &Limiter{
		buckets:        buckets,
		rpm:            rpm,
		burst:          burst,
		trustedProxies: trustedProxies,
	}, nil
}

// Allow consumes one token from ip's bucket, creating it on first sight.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	b, ok := l.buckets.Get(ip)
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.rpm)/60.0, l.burst)
		l.buckets.Add(ip, b)
	}
	l.mu.Unlock()
	return b.Allow()
}

// RealIP resolves the client address, walking X-Forwarded-For right to left
// past trusted proxies only. An untrusted peer's XFF header is ignored
// outright.
func (l *Limiter) RealIP(r *http.Request) string {
	remoteIP := stripPort(r.RemoteAddr)
	if len(l.trustedProxies) == 0 || !l.isTrustedProxy(remoteIP) {
		return remoteIP
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return remoteIP
	}
	parts := strings.Split(xff, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		ipStr := strings.TrimSpace(parts[i])
		if ipStr == "" || net.ParseIP(ipStr) == nil {
			continue
		}
		if !l.isTrustedProxy(ipStr) {
			return ipStr
		}
	}
	return remoteIP
}

func (l *Limiter) isTrustedProxy(ip string) bool {
	for _, proxy := range l.trustedProxies {
		if ip == proxy {
			return true
		}
		if strings.Contains(proxy, "/") {
			_, subnet, err := net.ParseCIDR(proxy)
			if err == nil {
				parsed := net.ParseIP(ip)
				if parsed != nil && subnet.Contains(parsed) {
					return true
				}
			}
		}
	}
	return false
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
