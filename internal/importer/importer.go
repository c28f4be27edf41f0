package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/config"
	"property-marketplace/internal/ratelimit"
	"property-marketplace/internal/submission"
)

const maxPageBytes = 5 << 20

var (
	ErrInvalidURL  = errors.New("a public http(s) listing URL is required")
	ErrCircuitOpen = errors.New("listing import temporarily unavailable")
)

// Result is a prefilled draft for the submission form
type Result struct {
	SourceURL string           `json:"sourceUrl"`
	Draft     submission.Draft `json:"draft"`
	Rendered  bool             `json:"rendered"`
}

// Importer fetches external listing pages and turns them into drafts
type Importer struct {
	client     *http.Client
	userAgent  string
	renderJS   bool
	chromePath string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration

	allowPrivate bool
	resolver     *net.Resolver

	limiter *ratelimit.FetchLimiter
	breaker *CircuitBreaker
}

func NewImporter(cfg config.ImporterConfig) *Importer {
	timeout := cfg.GetTimeout()
	im := &Importer{
		userAgent:    cfg.UserAgent,
		renderJS:     cfg.RenderJS,
		chromePath:   cfg.ChromePath,
		timeout:      timeout,
		maxRetries:   2,
		retryDelay:   time.Second,
		allowPrivate: cfg.AllowPrivateHosts,
		resolver:     net.DefaultResolver,
		limiter:      ratelimit.NewFetchLimiter(2, 500*time.Millisecond, 500*time.Millisecond),
		breaker:      NewCircuitBreaker(5, 10*time.Minute),
	}
	im.client = &http.Client{Timeout: timeout, Transport: im.newTransport(timeout)}
	return im
}

func validateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, ErrInvalidURL
	}
	u.Fragment = ""
	return u, nil
}

// Import fetches the page and parses it into a draft. Hosts that resolve to
// loopback, private or link-local addresses are refused.
func (im *Importer) Import(ctx context.Context, rawURL string) (*Result, error) {
	u, err := validateURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := im.checkHost(ctx, u.Hostname()); err != nil {
		log.Printf("[Importer] Refusing %s: %v", u.Redacted(), err)
		return nil, err
	}
	pageURL := u.String()
	if !im.breaker.CanProceed() {
		_, failures, total := im.breaker.GetStatus()
		log.Printf("[Importer] Refusing %s: circuit open (%d/%d failures)", pageURL, failures, total)
		return nil, ErrCircuitOpen
	}

	if err := im.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer im.limiter.Release()

	var html string
	if im.renderJS {
		html, err = im.fetchRendered(ctx, pageURL)
	} else {
		html, err = im.fetchWithRetry(ctx, pageURL)
	}
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	draft := ParseListing(doc, pageURL)
	log.Printf("[Importer] Imported %s (title=%q, images=%d)", pageURL, draft.Title, len(draft.Images))
	return &Result{SourceURL: pageURL, Draft: draft, Rendered: im.renderJS}, nil
}

// fetchWithRetry performs the GET with exponential backoff on 429 and 5xx
func (im *Importer) fetchWithRetry(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= im.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * im.retryDelay
			log.Printf("[Importer] Retry %d/%d for %s after %v", attempt, im.maxRetries, pageURL, backoff)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, status, err := im.get(ctx, pageURL)
		if err == nil && status == http.StatusOK {
			im.breaker.RecordSuccess()
			return body, nil
		}

		if errors.Is(err, ErrInvalidURL) {
			return "", err
		}
		if err != nil {
			im.breaker.RecordFailure(0)
			lastErr = err
			continue
		}

		lastErr = fmt.Errorf("upstream returned status %d", status)
		if status >= 500 || status == http.StatusTooManyRequests || status == http.StatusForbidden {
			im.breaker.RecordFailure(status)
		}
		// Don't retry on client errors (4xx except 429)
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			break
		}
	}
	return "", fmt.Errorf("failed to fetch %s: %w", pageURL, lastErr)
}

func (im *Importer) get(ctx context.Context, pageURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", im.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := im.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

// fetchRendered loads the page in headless Chrome so client-rendered listings have content
func (im *Importer) fetchRendered(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(im.userAgent),
	)
	if im.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(im.chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, im.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		im.breaker.RecordFailure(0)
		log.Printf("[Importer] Headless render of %s failed: %v", pageURL, err)
		return "", fmt.Errorf("chromedp error: %w", err)
	}

	im.breaker.RecordSuccess()
	log.Printf("[Importer] Rendered %s (%d bytes)", pageURL, len(html))
	return html, nil
}
