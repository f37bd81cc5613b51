// Package lookup finds an employer's CUIT from its contract number on the
// insurer's operatives page.
package lookup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/order-convert/internal/config"
	"github.com/sells-group/order-convert/internal/fetcher"
	"github.com/sells-group/order-convert/internal/resilience"
)

var (
	// ErrNoContract is returned for a blank contract number.
	ErrNoContract = errors.New("lookup: contract number is required")
	// ErrDisabled is returned by NewHTTPClient when no URL is configured.
	ErrDisabled = errors.New("lookup: no url template configured")
)

// ContractPlaceholder is replaced by the escaped contract number in the URL
// template.
const ContractPlaceholder = "{contract}"

// maxPageBytes bounds how much of a page is read.
const maxPageBytes = 2 << 20

// Client resolves a contract number to a CUIT. An empty result with a nil
// error means the contract was not found.
type Client interface {
	LookupCUIT(ctx context.Context, contract string) (string, error)
}

// HTTPClient fetches the operatives page for a contract and extracts the
// CUIT from it.
type HTTPClient struct {
	client    *http.Client
	template  string
	limiter   *rate.Limiter
	policy    resilience.Policy
	userAgent string
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithPolicy replaces the retry policy.
func WithPolicy(p resilience.Policy) Option {
	return func(c *HTTPClient) { c.policy = p }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.client = hc }
}

// NewHTTPClient builds a client from the lookup configuration.
func NewHTTPClient(cfg config.LookupConfig, opts ...Option) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.URLTemplate) == "" {
		return nil, ErrDisabled
	}
	if !strings.Contains(cfg.URLTemplate, ContractPlaceholder) {
		return nil, eris.Errorf("lookup: url template must contain %s", ContractPlaceholder)
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}

	policy := resilience.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		policy.Attempts = cfg.MaxAttempts
	}
	policy.OnRetry = resilience.RetryLogger("lookup", "fetch operatives page")

	c := &HTTPClient{
		client:    &http.Client{Timeout: timeout},
		template:  cfg.URLTemplate,
		limiter:   rate.NewLimiter(rate.Limit(perSec), 1),
		policy:    policy,
		userAgent: "order-convert/1.0",
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// LookupCUIT implements Client.
func (c *HTTPClient) LookupCUIT(ctx context.Context, contract string) (string, error) {
	contract = strings.TrimSpace(contract)
	if contract == "" {
		return "", ErrNoContract
	}
	target := strings.ReplaceAll(c.template, ContractPlaceholder, url.QueryEscape(contract))

	page, err := resilience.DoVal(ctx, c.policy, func(ctx context.Context) (string, error) {
		return c.fetch(ctx, target)
	})
	if err != nil {
		return "", eris.Wrapf(err, "lookup: contract %s", contract)
	}

	found := ExtractCUIT(PageText(page), contract)
	zap.L().Debug("lookup: page searched",
		zap.String("contract", contract),
		zap.Bool("found", found != ""),
	)
	return found, nil
}

func (c *HTTPClient) fetch(ctx context.Context, target string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "lookup: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", eris.Wrap(err, "lookup: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "lookup: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resilience.IsTransientStatus(resp.StatusCode) {
		return "", resilience.Transient(eris.Errorf("lookup: status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return "", eris.Errorf("lookup: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", eris.Wrap(err, "lookup: read body")
	}
	return fetcher.DecodeAll(bytes.NewReader(body), pageCharset(resp.Header.Get("Content-Type")))
}

// pageCharset reads the charset parameter of a Content-Type, defaulting to
// UTF-8.
func pageCharset(contentType string) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := strings.TrimSpace(params["charset"]); cs != "" {
			return cs
		}
	}
	return "utf-8"
}
