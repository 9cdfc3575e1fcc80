package tools

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/xiaokk2024/mymanus1/internal/validator"
)

// Validate is a convenience function that validates a struct using the default validator
func Validate(s interface{}) error {
	return validator.Validate(s)
}

// DecodeParams unmarshals params into target and validates it. Tools call it
// once at the top of Execute; the registry does not decode for them.
func DecodeParams(params json.RawMessage, target interface{}) error {
	if err := json.Unmarshal(params, target); err != nil {
		return NewToolError(CodeInvalidParams, "Failed to parse parameters").
			WithDetail("error", err.Error())
	}
	if err := Validate(target); err != nil {
		return NewToolError(CodeValidationFailed, "Parameter validation failed").
			WithDetail("error", err.Error())
	}
	return nil
}

// ProxyConfig holds explicit proxy URLs for outbound tool requests.
type ProxyConfig struct {
	HTTP  string
	HTTPS string
}

// NewHTTPClient returns an HTTP client that routes through the configured
// proxies. With no proxy configured it falls back to the environment.
func NewHTTPClient(proxy ProxyConfig, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy.proxyFunc()
	return &http.Client{Timeout: timeout, Transport: transport}
}

func (p ProxyConfig) proxyFunc() func(*http.Request) (*url.URL, error) {
	if p.HTTP == "" && p.HTTPS == "" {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		raw := p.HTTP
		if req.URL.Scheme == "https" && p.HTTPS != "" {
			raw = p.HTTPS
		}
		if raw == "" {
			return nil, nil
		}
		return url.Parse(raw)
	}
}
