package domains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/idna"

	"github.com/acari-app/acari-backend/pkg/config"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
)

const (
	checkPath                   = "v1/domains/check"
	responseBodyReadLimit int64 = 1024
	defaultTimeout              = 10 * time.Second
	maxDomainLength             = 253
	maxLabelLength              = 63
)

var errBaseURLRequired = errors.New("domain check base url is required")

// Availability is the normalized provider answer for one domain.
type Availability struct {
	Domain    string           `json:"domain"`
	Available bool             `json:"available"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Currency  *string          `json:"currency,omitempty"`
}

// Client queries the domain registration API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the domain client from configuration.
func NewClient(cfg config.DomainsConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Normalize validates domain syntax and returns the lowercase ASCII form.
// Internationalized names are converted to punycode.
func Normalize(raw string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.TrimPrefix(strings.TrimPrefix(value, "https://"), "http://")
	value = strings.TrimPrefix(value, "www.")
	value = strings.TrimSuffix(value, ".")
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "domain is required")
	}

	ascii, err := idna.Lookup.ToASCII(value)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "domain is not valid")
	}
	if len(ascii) > maxDomainLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "domain is too long")
	}
	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "domain must include a top-level domain")
	}
	for _, label := range labels {
		if !validLabel(label) {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "domain is not valid")
		}
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 || (!strings.HasPrefix(tld, "xn--") && strings.IndexFunc(tld, func(r rune) bool { return r < 'a' || r > 'z' }) >= 0) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "domain has an invalid top-level domain")
	}
	return ascii, nil
}

func validLabel(label string) bool {
	if label == "" || len(label) > maxLabelLength {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, r := range label {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}

// Check validates the domain and asks the provider whether it is available.
// Provider rate limits pass through as 429; other failures are dependency
// errors.
func (c *Client) Check(ctx context.Context, raw string) (*Availability, error) {
	domain, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "domain check is not configured")
	}

	endpoint := fmt.Sprintf("%s/%s?domain=%s", c.baseURL, checkPath, url.QueryEscape(domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build domain check request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "domain check failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, pkgerrors.New(pkgerrors.CodeRateLimit, providerMessage(body, "domain check rate limit exceeded"))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), "domain check failed")
	}

	var apiResp struct {
		Domain    string           `json:"domain"`
		Available *bool            `json:"available"`
		Price     *decimal.Decimal `json:"price"`
		Currency  string           `json:"currency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode domain check response")
	}
	if apiResp.Available == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "domain check response missing availability")
	}

	out := &Availability{Domain: domain, Available: *apiResp.Available, Price: apiResp.Price}
	if apiResp.Currency != "" {
		currency := strings.ToUpper(apiResp.Currency)
		out.Currency = &currency
	}
	return out, nil
}

// providerMessage extracts a message or error field from a JSON error body.
func providerMessage(body []byte, fallback string) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fallback
}
