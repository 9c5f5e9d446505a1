package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/rulinstat/internal/cache"
	"github.com/ppiankov/rulinstat/internal/extract"
	"github.com/ppiankov/rulinstat/internal/model"
	"github.com/ppiankov/rulinstat/internal/util"
	"github.com/ppiankov/rulinstat/internal/worker"
)

// ErrRobotsDisallowed is returned when robots.txt forbids fetching a source
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// ErrBodyTooLarge is returned when a remote source exceeds http.max_body_bytes
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// fetchSleepFunc is the backoff sleep; tests replace it
var fetchSleepFunc = time.Sleep

const fetchAttempts = 3

// SourceReader loads the raw text of a local file or an http(s) URL
type SourceReader struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	encoding  string

	robots  *util.RobotsChecker // nil skips robots.txt
	limiter *worker.Limiter
	cache   cache.Cache // nil disables caching
}

// NewSourceReader creates a reader from cfg. A nil limiter gets one built from
// cfg.RateLimiting; a nil cache disables caching of remote sources.
func NewSourceReader(cfg *model.Config, limiter *worker.Limiter, c cache.Cache) *SourceReader {
	client := &http.Client{
		Timeout:   cfg.HTTP.Timeout,
		Transport: util.NewTransport(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	if limiter == nil {
		limiter = worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	}

	r := &SourceReader{
		client:    client,
		userAgent: cfg.HTTP.UserAgent,
		maxBytes:  cfg.HTTP.MaxBodyBytes,
		encoding:  cfg.Input.Encoding,
		limiter:   limiter,
		cache:     c,
	}
	if cfg.HTTP.RespectRobots {
		r.robots = util.NewRobotsChecker(client, cfg.HTTP.UserAgent)
	}
	return r
}

// IsRemote reports whether source is an http(s) URL
func IsRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Read returns the decoded text of source. HTML sources are reduced to their visible text.
func (r *SourceReader) Read(ctx context.Context, source string) (string, error) {
	if IsRemote(source) {
		return r.readRemote(ctx, source)
	}
	return r.readFile(source)
}

func (r *SourceReader) readFile(name string) (string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}

	text, err := extract.Decode(data, r.encoding)
	if err != nil {
		return "", err
	}

	if isHTMLName(name) {
		return extract.VisibleText(text)
	}
	return text, nil
}

func (r *SourceReader) readRemote(ctx context.Context, rawURL string) (string, error) {
	key := cache.SourceKey(rawURL, r.encoding)
	if r.cache != nil {
		if data, ok := r.cache.Get(key); ok {
			return string(data), nil
		}
	}

	if r.robots != nil {
		allowed, delay, err := r.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return "", fmt.Errorf("robots.txt: %w", err)
		}
		if !allowed {
			return "", fmt.Errorf("%s: %w", rawURL, ErrRobotsDisallowed)
		}
		if err := r.limiter.Throttle(rawURL, delay); err != nil {
			return "", err
		}
	}

	result, err := r.fetchWithRetry(ctx, rawURL)
	if err != nil {
		return "", err
	}

	text, err := extract.Decode(result.body, r.encoding)
	if err != nil {
		return "", err
	}
	if isHTMLName(result.finalURL) || strings.Contains(result.contentType, "html") {
		if text, err = extract.VisibleText(text); err != nil {
			return "", err
		}
	}

	if r.cache != nil {
		// A failed cache write only costs a refetch.
		_ = r.cache.Set(key, []byte(text), 0)
	}
	return text, nil
}

type fetchResult struct {
	body        []byte
	contentType string
	finalURL    string
}

// statusError is a non-2xx HTTP response
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.code, e.status)
}

// fetchWithRetry retries transient failures with exponential backoff (1s, 2s)
func (r *SourceReader) fetchWithRetry(ctx context.Context, rawURL string) (*fetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(time.Duration(1<<(attempt-1)) * time.Second)
		}

		if err := r.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}

		result, err := r.fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryableFetchError(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", fetchAttempts, lastErr)
}

func (r *SourceReader) fetch(ctx context.Context, rawURL string) (*fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/plain,text/html;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.5")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}

	var body io.Reader = resp.Body
	if r.maxBytes > 0 {
		// One extra byte tells a body at the limit from a truncated one
		body = io.LimitReader(resp.Body, r.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if r.maxBytes > 0 && int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, r.maxBytes)
	}

	return &fetchResult{
		body:        data,
		contentType: resp.Header.Get("Content-Type"),
		finalURL:    resp.Request.URL.String(),
	}, nil
}

// isRetryableFetchError reports whether err is a 429, a 5xx or a transport failure
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}

	var ue *url.Error
	return errors.As(err, &ue)
}

func isHTMLName(name string) bool {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && u.Host != "" {
		name = path.Base(u.Path)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}
