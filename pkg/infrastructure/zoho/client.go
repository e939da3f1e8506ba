package zoho

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vsinha/csatrack/pkg/infrastructure/cache"
	"github.com/vsinha/csatrack/pkg/infrastructure/logging"
)

const (
	defaultMaxRetries  = 5
	defaultBackoffBase = time.Second
	defaultDetailTTL   = 15 * time.Minute
	maxErrorBody       = 512
)

// Config holds the API endpoints and OAuth credentials
type Config struct {
	APIBase           string
	AccountsURL       string
	OrganizationID    string
	ClientID          string
	ClientSecret      string
	RefreshToken      string
	AccessToken       string
	RequestsPerMinute int
	Timeout           time.Duration
}

// APIError is a non-success response from the API
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zoho API %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client is a rate-limited Zoho Inventory client. Safe for concurrent use.
type Client struct {
	cfg         Config
	http        *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
	tracer      trace.Tracer
	details     cache.Cache[string, gjson.Result]
	detailTTL   time.Duration
	maxRetries  int
	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	token string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBackoff sets the 429 retry schedule
func WithBackoff(base time.Duration, maxRetries int) Option {
	return func(c *Client) {
		c.backoffBase = base
		c.maxRetries = maxRetries
	}
}

// WithDetailCache caches detail documents for ttl
func WithDetailCache(details cache.Cache[string, gjson.Result], ttl time.Duration) Option {
	return func(c *Client) {
		c.details = details
		c.detailTTL = ttl
	}
}

// NewClient validates cfg and builds a client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIBase) == "" {
		return nil, fmt.Errorf("zoho api base cannot be empty")
	}
	if cfg.OrganizationID == "" {
		return nil, fmt.Errorf("zoho organization id cannot be empty")
	}
	if cfg.AccessToken == "" && cfg.RefreshToken == "" {
		return nil, fmt.Errorf("zoho access token or refresh token is required")
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 90
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.AccountsURL = strings.TrimRight(cfg.AccountsURL, "/")

	c := &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("csatrack/zoho"),
		details:     cache.NewTTLCache[string, gjson.Result](),
		detailTTL:   defaultDetailTTL,
		maxRetries:  defaultMaxRetries,
		backoffBase: defaultBackoffBase,
		sleep:       sleepContext,
		token:       cfg.AccessToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// get performs an authenticated GET and returns the parsed body.
// A 401 refreshes the token once; a 429 backs off exponentially up to maxRetries.
func (c *Client) get(ctx context.Context, path string, params url.Values) (gjson.Result, error) {
	ctx, span := c.tracer.Start(ctx, "zoho.get", trace.WithAttributes(attribute.String("zoho.path", path)))
	defer span.End()

	if params == nil {
		params = url.Values{}
	}
	params.Set("organization_id", c.cfg.OrganizationID)
	endpoint := c.cfg.APIBase + path + "?" + params.Encode()

	refreshed := false
	retries := 0
	for {
		if c.currentToken() == "" && !refreshed {
			if err := c.refresh(ctx); err != nil {
				return fail(span, gjson.Result{}, err)
			}
			refreshed = true
		}

		status, body, err := c.do(ctx, endpoint)
		if err != nil {
			return fail(span, gjson.Result{}, err)
		}

		switch {
		case status == http.StatusUnauthorized && !refreshed && c.cfg.RefreshToken != "":
			logging.WithTrace(ctx, c.logger).Info("access token rejected, refreshing", zap.String("path", path))
			if err := c.refresh(ctx); err != nil {
				return fail(span, gjson.Result{}, err)
			}
			refreshed = true
			continue

		case status == http.StatusTooManyRequests && retries < c.maxRetries:
			wait := c.backoffBase << retries
			logging.WithTrace(ctx, c.logger).Warn("rate limited, backing off",
				zap.String("path", path),
				zap.Duration("wait", wait),
				zap.Int("attempt", retries+1),
			)
			if err := c.sleep(ctx, wait); err != nil {
				return fail(span, gjson.Result{}, err)
			}
			retries++
			continue

		case status < 200 || status > 299:
			return fail(span, gjson.Result{}, &APIError{StatusCode: status, URL: path, Body: truncate(string(body))})
		}

		if !gjson.ValidBytes(body) {
			return fail(span, gjson.Result{}, fmt.Errorf("zoho API %s returned invalid JSON", path))
		}
		span.SetAttributes(attribute.Int("zoho.retries", retries))
		return gjson.ParseBytes(body), nil
	}
}

// getDetail is get with the detail cache in front of it
func (c *Client) getDetail(ctx context.Context, path string) (gjson.Result, error) {
	if doc, ok := c.details.Get(path); ok {
		return doc, nil
	}
	doc, err := c.get(ctx, path, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	c.details.Set(path, doc, c.detailTTL)
	return doc, nil
}

func (c *Client) do(ctx context.Context, endpoint string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+c.currentToken())
	req.Header.Set("X-com-zoho-organizationid", c.cfg.OrganizationID)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("zoho request", zap.String("url", req.URL.Path), zap.Any("headers", logging.MaskHeaders(req.Header)))

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("requesting %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// refresh exchanges the refresh token for a new access token
func (c *Client) refresh(ctx context.Context) error {
	if c.cfg.RefreshToken == "" {
		return fmt.Errorf("zoho access token expired and no refresh token is configured")
	}
	form := url.Values{
		"refresh_token": {c.cfg.RefreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AccountsURL+"/oauth/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, URL: "/oauth/v2/token", Body: truncate(string(body))}
	}

	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return fmt.Errorf("token refresh response has no access_token: %s", truncate(gjson.GetBytes(body, "error").String()))
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.logger.Info("zoho access token refreshed", zap.String("token", logging.MaskToken(token)))
	return nil
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func fail(span trace.Span, r gjson.Result, err error) (gjson.Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return r, err
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
