package fetcher

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// NewTransport returns a transport that honours HTTP_PROXY, HTTPS_PROXY and
// NO_PROXY as read once at construction time.
func NewTransport() *http.Transport {
	return newTransport(httpproxy.FromEnvironment())
}

func newTransport(cfg *httpproxy.Config) *http.Transport {
	proxyFunc := cfg.ProxyFunc()
	return &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			return proxyFunc(req.URL)
		},
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}
}
