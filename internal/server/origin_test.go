package server

import (
	"net/http/httptest"
	"testing"
)

// TestOriginPolicy covers exact matches, normalization and the wildcard.
func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"exact match", []string{"http://localhost:8080"}, "http://localhost:8080", true},
		{"case insensitive", []string{"http://localhost:8080"}, "HTTP://LOCALHOST:8080", true},
		{"different port", []string{"http://localhost:8080"}, "http://localhost:9090", false},
		{"missing header", []string{"http://localhost:8080"}, "", false},
		{"garbage header", []string{"http://localhost:8080"}, "::::", false},
		{"wildcard", []string{"*"}, "https://anywhere.example", true},
		{"wildcard without header", []string{"*"}, "", true},
		{"empty allow list", nil, "http://localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newOriginPolicy(tt.allowed, discardLogger)
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := p.checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
