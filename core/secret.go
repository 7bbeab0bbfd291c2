package core

// Secret holds an API key so that it never leaks through fmt, JSON or YAML
// output. Only Expose returns the raw value.
//
//	key := NewSecret("sk-live-123")
//	fmt.Println(key)   // [REDACTED]
//	key.Expose()       // "sk-live-123"
type Secret struct {
	value string
}

// NewSecret wraps value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// String implements fmt.Stringer with a redacted placeholder.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v.
func (s Secret) GoString() string {
	return "core.Secret{[REDACTED]}"
}

// MarshalJSON always encodes the placeholder.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalText always encodes the placeholder.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// Expose returns the raw value. Use it only when building request headers.
func (s Secret) Expose() string {
	return s.value
}

// IsEmpty reports whether no value is held.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}

// Hint returns the last four characters prefixed with asterisks, for
// listings where the user needs to tell keys apart.
func (s Secret) Hint() string {
	if len(s.value) <= 4 {
		return "****"
	}
	return "****" + s.value[len(s.value)-4:]
}
