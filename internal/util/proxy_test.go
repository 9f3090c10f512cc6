package util

import (
	"net/http"
	"testing"
	"time"
)

func TestNewProxyFunc(t *testing.T) {
	tests := []struct {
		name       string
		httpProxy  string
		httpsProxy string
		noProxy    string
		target     string
		want       string
	}{
		{"http target", "http://proxy:3128", "", "", "http://api.example.com/v1", "http://proxy:3128"},
		{"https reuses http proxy", "http://proxy:3128", "", "", "https://api.example.com/v1", "http://proxy:3128"},
		{"dedicated https proxy", "http://proxy:3128", "http://secure:3129", "", "https://api.example.com/v1", "http://secure:3129"},
		{"no_proxy host", "http://proxy:3128", "", "internal.example.com", "http://internal.example.com/v1", ""},
		{"no_proxy domain suffix", "http://proxy:3128", "", ".example.com", "https://api.example.com/v1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := NewProxyFunc(tt.httpProxy, tt.httpsProxy, tt.noProxy)
			req, err := http.NewRequest(http.MethodGet, tt.target, nil)
			if err != nil {
				t.Fatal(err)
			}

			got, err := fn(req)
			if err != nil {
				t.Fatalf("proxy func: %v", err)
			}

			gotStr := ""
			if got != nil {
				gotStr = got.String()
			}
			if gotStr != tt.want {
				t.Errorf("proxy for %s = %q, want %q", tt.target, gotStr, tt.want)
			}
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(5*time.Second, "http://proxy:3128", "", "")

	if c.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok || tr.Proxy == nil {
		t.Fatal("expected transport with proxy func")
	}
}
