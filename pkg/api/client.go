package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/udec-estadio/humidityboard/pkg/models"
)

const (
	readingsPath = "/api/v1/sensors"
	healthPath   = "/health"

	defaultTimeout = 30 * time.Second
)

// Client talks to a humidityboard server over its JSON contract
type Client struct {
	baseURL string
	rest    *resty.Client
}

type clientSettings struct {
	timeout    time.Duration
	httpClient *http.Client
	userAgent  string
}

// ClientOption is a function that configures a Client
type ClientOption func(*clientSettings)

// NewClient creates a new API client
func NewClient(baseURL string, opts ...ClientOption) *Client {
	settings := clientSettings{
		timeout:   defaultTimeout,
		userAgent: "humidityboard-cli",
	}
	for _, opt := range opts {
		opt(&settings)
	}

	var rest *resty.Client
	if settings.httpClient != nil {
		rest = resty.NewWithClient(settings.httpClient)
	} else {
		rest = resty.New()
	}

	baseURL = strings.TrimRight(baseURL, "/")
	rest.SetBaseURL(baseURL).
		SetTimeout(settings.timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", settings.userAgent)

	return &Client{baseURL: baseURL, rest: rest}
}

// WithTimeout sets a custom timeout for each request
func WithTimeout(timeout time.Duration) ClientOption {
	return func(s *clientSettings) {
		s.timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(s *clientSettings) {
		s.httpClient = httpClient
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(userAgent string) ClientOption {
	return func(s *clientSettings) {
		s.userAgent = userAgent
	}
}

// BaseURL returns the server address the client was created with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiError converts an error response into *models.APIError, falling back
// to the raw body when the server did not send the JSON error object.
func apiError(resp *resty.Response) error {
	apiErr, _ := resp.Error().(*models.APIError)
	if apiErr == nil {
		apiErr = &models.APIError{}
	}
	apiErr.StatusCode = resp.StatusCode()

	if apiErr.Message == "" {
		body := strings.TrimSpace(string(resp.Body()))
		if body == "" {
			body = http.StatusText(resp.StatusCode())
		}
		apiErr.Message = body
	}

	return apiErr
}
