package llm

import (
	"net/http"
	"time"
)

// ClientOptions configures a completion client.
type ClientOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string

	// HTTPClient replaces the default client, for example to route through
	// a proxy. Timeout is ignored when it is set.
	HTTPClient *http.Client
}

// ClientOption is a functional option for configuring clients
type ClientOption func(*ClientOptions)

// WithAPIKey sets the API key
func WithAPIKey(key string) ClientOption {
	return func(o *ClientOptions) {
		o.APIKey = key
	}
}

// WithBaseURL sets the endpoint, e.g. https://dashscope.aliyuncs.com/compatible-mode/v1.
func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		o.BaseURL = url
	}
}

// WithModel sets the model used when a request names none.
func WithModel(model string) ClientOption {
	return func(o *ClientOptions) {
		o.Model = model
	}
}

// WithTimeout bounds each HTTP request.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.Timeout = timeout
	}
}

// WithMaxRetries sets how often rate-limited or 5xx requests are retried.
func WithMaxRetries(retries int) ClientOption {
	return func(o *ClientOptions) {
		if retries >= 0 {
			o.MaxRetries = retries
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(o *ClientOptions) {
		o.UserAgent = ua
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *ClientOptions) {
		o.HTTPClient = c
	}
}
