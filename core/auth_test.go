package core

import (
	"errors"
	"strings"
	"testing"
)

func TestNewAuthContext(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		tenantID string
		wantErr  bool
	}{
		{"valid", "key-123", "tenant-a", false},
		{"missing key", "", "tenant-a", true},
		{"missing tenant", "key-123", "", true},
		{"whitespace key", "   ", "tenant-a", true},
		{"both missing", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := NewAuthContext(tt.apiKey, tt.tenantID)
			if tt.wantErr {
				if !errors.Is(err, ErrConfig) {
					t.Fatalf("NewAuthContext() error = %v, want ErrConfig", err)
				}
				if auth != nil {
					t.Error("NewAuthContext() returned non-nil auth on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAuthContext() error = %v", err)
			}
			if auth.TenantID() != tt.tenantID {
				t.Errorf("TenantID() = %q, want %q", auth.TenantID(), tt.tenantID)
			}
		})
	}
}

func TestAuthContextHeaders(t *testing.T) {
	auth, err := NewAuthContext("key-123", "tenant-a")
	if err != nil {
		t.Fatal(err)
	}

	h := auth.Headers()
	if h.Get("x-api-key") != "key-123" {
		t.Errorf("x-api-key = %q", h.Get("x-api-key"))
	}
	if h.Get("x-tenant-id") != "tenant-a" {
		t.Errorf("x-tenant-id = %q", h.Get("x-tenant-id"))
	}

	// Mutating the returned set must not affect later calls.
	h.Set("x-api-key", "tampered")
	if auth.Headers().Get("x-api-key") != "key-123" {
		t.Error("Headers() shares state between calls")
	}
}

func TestAuthContextStringRedactsKey(t *testing.T) {
	auth, _ := NewAuthContext("sk-verysecretvalue", "tenant-a")
	s := auth.String()
	if strings.Contains(s, "verysecret") {
		t.Errorf("String() leaked key: %s", s)
	}
	if !strings.Contains(s, "tenant-a") {
		t.Errorf("String() = %q, want tenant id", s)
	}
}
