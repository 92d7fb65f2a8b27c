package vatnumber

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
)

const (
	defaultHMRCBaseURL = "https://api.service.hmrc.gov.uk/organisations/vat/check-vat-number/lookup/"
	defaultVIESBaseURL = "https://ec.europa.eu/taxation_customs/vies/rest-api/ms/"
	responseReadLimit  = 64 * 1024
)

// ErrUnexpectedResponse marks a registry answer that is neither a clear
// validation nor a clear rejection. It is treated as an outage.
var ErrUnexpectedResponse = errors.New("unexpected registry response")

// Registry answers whether a normalized number is registered in country.
// A nil error with false means the registry positively rejected it; any
// error is a technical failure.
type Registry interface {
	Name() string
	Check(ctx context.Context, country, number string) (bool, error)
}

// Option configures a registry client.
type Option func(*httpClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *httpClient) {
		if client != nil {
			c.http = client
		}
	}
}

// WithBaseURL overrides the registry base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *httpClient) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *httpClient) {
		if timeout > 0 {
			c.http = &http.Client{Timeout: timeout}
		}
	}
}

type httpClient struct {
	http    *http.Client
	baseURL string
}

func newHTTPClient(defaultBase string, opts []Option) httpClient {
	c := httpClient{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBase,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	if !strings.HasSuffix(c.baseURL, "/") {
		c.baseURL += "/"
	}
	return c
}

func (c httpClient) getJSON(ctx context.Context, path string, headers map[string]string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("build registry request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute registry request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read registry response: %w", err)
	}
	if len(body) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: status %d: %v", ErrUnexpectedResponse, resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

// HMRC checks UK numbers.
type HMRC struct {
	client httpClient
}

// NewHMRC builds a client for the HMRC check-vat-number API.
func NewHMRC(opts ...Option) *HMRC {
	return &HMRC{client: newHTTPClient(defaultHMRCBaseURL, opts)}
}

func (h *HMRC) Name() string { return "hmrc" }

type hmrcResponse struct {
	Code   string          `json:"code"`
	Target json.RawMessage `json:"target"`
}

func (h *HMRC) Check(ctx context.Context, _ string, number string) (bool, error) {
	var payload hmrcResponse
	status, err := h.client.getJSON(ctx, url.PathEscape(number),
		map[string]string{"Accept": "application/vnd.hmrc.1.0+json"}, &payload)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusOK && len(payload.Target) > 0 && string(payload.Target) != "null":
		return true, nil
	case (status == http.StatusNotFound || status == http.StatusBadRequest) && payload.Code != "":
		return false, nil
	default:
		return false, fmt.Errorf("%w: hmrc status %d code %q", ErrUnexpectedResponse, status, payload.Code)
	}
}

// VIES checks EU numbers.
type VIES struct {
	client httpClient
}

// NewVIES builds a client for the EU VIES REST API.
func NewVIES(opts ...Option) *VIES {
	return &VIES{client: newHTTPClient(defaultVIESBaseURL, opts)}
}

func (v *VIES) Name() string { return "vies" }

type viesResponse struct {
	IsValid   bool   `json:"isValid"`
	UserError string `json:"userError"`
}

func (v *VIES) Check(ctx context.Context, country string, number string) (bool, error) {
	var payload viesResponse
	path := url.PathEscape(registryCountry(country)) + "/vat/" + url.PathEscape(number)
	status, err := v.client.getJSON(ctx, path, map[string]string{"Accept": "application/json"}, &payload)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("%w: vies status %d", ErrUnexpectedResponse, status)
	}
	switch payload.UserError {
	case "VALID":
		return true, nil
	case "INVALID", "INVALID_INPUT":
		return false, nil
	case "":
		return payload.IsValid, nil
	default:
		return false, fmt.Errorf("%w: vies %s", ErrUnexpectedResponse, payload.UserError)
	}
}
