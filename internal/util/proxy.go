package util

import (
	"net/http"
	"net/url"
)

// NewProxyFunc returns a proxy selector for remote sources.
// Explicit proxies win; otherwise HTTP_PROXY/HTTPS_PROXY/NO_PROXY apply.
func NewProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		switch {
		case req.URL.Scheme == "https" && httpsProxy != "":
			return url.Parse(httpsProxy)
		case httpProxy != "":
			return url.Parse(httpProxy)
		default:
			return http.ProxyFromEnvironment(req)
		}
	}
}

// NewTransport returns an HTTP transport using the given proxies
func NewTransport(httpProxy, httpsProxy string) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = NewProxyFunc(httpProxy, httpsProxy)
	return t
}
