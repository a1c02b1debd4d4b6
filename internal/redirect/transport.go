// Package redirect provides an http.RoundTripper that reroutes Gemini API
// calls to a local translation proxy. It replaces global interception of
// the process's network entry point: inject the transport into the one
// client that should be redirected and every other call (telemetry
// included) is untouched.
package redirect

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultAPIHost is the host whose calls get redirected.
const DefaultAPIHost = "generativelanguage.googleapis.com"

// Transport rewrites requests destined for the Gemini API host to the
// proxy base URL and passes everything else through unmodified.
type Transport struct {
	// ProxyBaseURL is where redirected calls go, e.g. "http://127.0.0.1:8080".
	ProxyBaseURL *url.URL

	// APIHost is the host to intercept. Empty means DefaultAPIHost.
	APIHost string

	// Base performs the actual round trip. Nil means http.DefaultTransport.
	Base http.RoundTripper
}

// New builds a Transport for the given proxy base URL.
func New(proxyBaseURL string) (*Transport, error) {
	u, err := url.Parse(proxyBaseURL)
	if err != nil {
		return nil, err
	}
	return &Transport{ProxyBaseURL: u}, nil
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	apiHost := t.APIHost
	if apiHost == "" {
		apiHost = DefaultAPIHost
	}

	if !strings.EqualFold(req.URL.Hostname(), apiHost) {
		return base.RoundTrip(req)
	}

	// Clone before rewriting; RoundTrippers must not mutate the caller's
	// request.
	out := req.Clone(req.Context())
	out.URL.Scheme = t.ProxyBaseURL.Scheme
	out.URL.Host = t.ProxyBaseURL.Host
	out.Host = t.ProxyBaseURL.Host

	return base.RoundTrip(out)
}
