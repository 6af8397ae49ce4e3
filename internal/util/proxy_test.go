package util

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func resolveProxy(t *testing.T, fn func(*http.Request) (*url.URL, error), rawURL string) string {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	u, err := fn(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if u == nil {
		return ""
	}
	return u.String()
}

func TestNewProxyFunc_SchemeSpecific(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "http://secure-proxy:3129", "")

	if got := resolveProxy(t, fn, "https://api.telegram.org/bot/getMe"); got != "http://secure-proxy:3129" {
		t.Errorf("expected https proxy, got %q", got)
	}
	if got := resolveProxy(t, fn, "http://example.org/"); got != "http://proxy:3128" {
		t.Errorf("expected http proxy, got %q", got)
	}
}

func TestNewProxyFunc_HTTPProxyCoversHTTPS(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "", "")

	if got := resolveProxy(t, fn, "https://api.telegram.org/"); got != "http://proxy:3128" {
		t.Errorf("expected http proxy for https when no https proxy set, got %q", got)
	}
}

func TestNewProxyFunc_NoProxy(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "", "localhost, .internal,10.0.0.0/8")

	tests := []struct {
		url  string
		want string
	}{
		{"http://localhost:8080/", ""},
		{"http://db.internal/", ""},
		{"http://10.1.2.3/", ""},
		{"http://internal.example.org/", "http://proxy:3128"},
		{"http://192.168.1.1/", "http://proxy:3128"},
	}
	for _, tt := range tests {
		if got := resolveProxy(t, fn, tt.url); got != tt.want {
			t.Errorf("proxy for %s: expected %q, got %q", tt.url, tt.want, got)
		}
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(5*time.Second, "http://proxy:3128", "", "")

	if client.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if got := resolveProxy(t, transport.Proxy, "http://example.org/"); got != "http://proxy:3128" {
		t.Errorf("expected transport to use configured proxy, got %q", got)
	}
}
