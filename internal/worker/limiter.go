package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter rate-limits remote source fetches per host
type Limiter struct {
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
	rps   rate.Limit
	burst int
}

// NewLimiter creates a limiter allowing requestsPerSecond per host
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = float64(rate.Inf)
	}
	return &Limiter{
		hosts: make(map[string]*rate.Limiter),
		rps:   rate.Limit(requestsPerSecond),
		burst: burst,
	}
}

// Wait blocks until a request to rawURL's host is allowed
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	return l.forHost(host).Wait(ctx)
}

// Throttle lowers a host's rate to one request per delay (e.g. a robots.txt crawl delay).
// It never raises the rate.
func (l *Limiter) Throttle(rawURL string, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}

	lim := l.forHost(host)
	if every := rate.Every(delay); every < lim.Limit() {
		lim.SetLimit(every)
	}
	return nil
}

// Rate returns the current limit for rawURL's host
func (l *Limiter) Rate(rawURL string) (rate.Limit, error) {
	host, err := hostOf(rawURL)
	if err != nil {
		return 0, err
	}
	return l.forHost(host).Limit(), nil
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.hosts[host]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.hosts[host] = lim
	}
	return lim
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL has no host: %s", rawURL)
	}
	return u.Host, nil
}
