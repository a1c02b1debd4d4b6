package redirect

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingTransport struct {
	lastURL  string
	lastHost string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.lastURL = req.URL.String()
	rt.lastHost = req.Host
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Header:     http.Header{},
		Request:    req,
	}, nil
}

func TestRoundTripRedirectsAPIHost(t *testing.T) {
	base := &recordingTransport{}
	tr, err := New("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr.Base = base

	req := httptest.NewRequest(http.MethodPost,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-pro:generateContent", nil)

	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()

	want := "http://127.0.0.1:8080/v1beta/models/gemini-2.5-pro:generateContent"
	if base.lastURL != want {
		t.Fatalf("expected rewrite to %s, got %s", want, base.lastURL)
	}
	if base.lastHost != "127.0.0.1:8080" {
		t.Fatalf("expected Host header rewritten, got %s", base.lastHost)
	}
}

func TestRoundTripPassthroughOtherHosts(t *testing.T) {
	base := &recordingTransport{}
	tr, err := New("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr.Base = base

	req := httptest.NewRequest(http.MethodPost, "https://telemetry.example.com/v1/traces", nil)

	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()

	if base.lastURL != "https://telemetry.example.com/v1/traces" {
		t.Fatalf("expected passthrough, got %s", base.lastURL)
	}
}

func TestRoundTripDoesNotMutateOriginal(t *testing.T) {
	base := &recordingTransport{}
	tr, _ := New("http://127.0.0.1:8080")
	tr.Base = base

	req := httptest.NewRequest(http.MethodGet,
		"https://generativelanguage.googleapis.com/v1/models/gemini-pro", nil)

	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()

	if req.URL.Host != "generativelanguage.googleapis.com" {
		t.Fatalf("original request mutated: %s", req.URL.Host)
	}
}

func TestRoundTripCustomAPIHost(t *testing.T) {
	base := &recordingTransport{}
	tr, _ := New("http://localhost:9090")
	tr.Base = base
	tr.APIHost = "api.example.com"

	req := httptest.NewRequest(http.MethodGet, "https://API.EXAMPLE.COM/v1/thing", nil)

	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()

	if !strings.HasPrefix(base.lastURL, "http://localhost:9090/") {
		t.Fatalf("expected redirect for custom host, got %s", base.lastURL)
	}

	// The default host is no longer intercepted.
	req2 := httptest.NewRequest(http.MethodGet,
		"https://generativelanguage.googleapis.com/v1/models", nil)
	resp2, err := tr.RoundTrip(req2)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp2.Body.Close()

	if !strings.Contains(base.lastURL, "generativelanguage.googleapis.com") {
		t.Fatalf("expected passthrough for default host, got %s", base.lastURL)
	}
}
