package metrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/mint", "/api/mint"},
		{"/api/mints", "/api/mints"},
		{"/api/mints/6f1c2d3e-1a2b-4c5d-8e9f-0a1b2c3d4e5f", "/api/mints/{id}"},
		{"/api/mints/6f1c2d3e-1a2b-4c5d-8e9f-0a1b2c3d4e5f/resume", "/api/mints/{id}/resume"},
		{"/api/collections/0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed/verify", "/api/collections/{id}/verify"},
		{"/api/collections/current", "/api/collections/current"},
		{"/other/123", "/other/123"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
