package core

import (
	"fmt"
	"net/http"
	"strings"
)

// Header names carrying credentials on every authenticated request.
const (
	HeaderAPIKey   = "x-api-key"
	HeaderTenantID = "x-tenant-id"
)

// AuthContext holds the credentials used for every request.
// It is immutable after construction and safe to share across goroutines.
type AuthContext struct {
	apiKey   Secret
	tenantID string
}

// NewAuthContext validates and returns credentials. Both values are required;
// a missing value fails with ErrConfig before any network call is made.
func NewAuthContext(apiKey, tenantID string) (*AuthContext, error) {
	apiKey = strings.TrimSpace(apiKey)
	tenantID = strings.TrimSpace(tenantID)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrConfig)
	}
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrConfig)
	}
	return &AuthContext{apiKey: NewSecret(apiKey), tenantID: tenantID}, nil
}

// APIKey returns the redacted API key.
func (a *AuthContext) APIKey() Secret {
	return a.apiKey
}

// TenantID returns the tenant partition id.
func (a *AuthContext) TenantID() string {
	return a.tenantID
}

// Headers returns a fresh header set with the credential headers.
func (a *AuthContext) Headers() http.Header {
	h := make(http.Header, 2)
	h.Set(HeaderAPIKey, a.apiKey.Expose())
	h.Set(HeaderTenantID, a.tenantID)
	return h
}

// String never prints the key.
func (a *AuthContext) String() string {
	return fmt.Sprintf("tenant=%s key=%s", a.tenantID, a.apiKey.Hint())
}

func isAuthHeader(key string) bool {
	key = http.CanonicalHeaderKey(key)
	return key == http.CanonicalHeaderKey(HeaderAPIKey) || key == http.CanonicalHeaderKey(HeaderTenantID)
}
