package advisor

import (
	"net/http"
	"net/url"
)

// NewProxyFunc creates a proxy function for the advisor's HTTP client.
// With no proxy URL it falls back to environment variables.
func NewProxyFunc(proxy string) func(*http.Request) (*url.URL, error) {
	if proxy == "" {
		return http.ProxyFromEnvironment
	}

	parsed, err := url.Parse(proxy)
	return func(req *http.Request) (*url.URL, error) {
		if err != nil {
			return nil, err
		}
		return parsed, nil
	}
}
