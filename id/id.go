// Package id defines TypeID-based identity types for the token ledger.
//
// A Principal is the opaque identity of a caller: the owner of accounts,
// the administrator of a token, the registrant of scheduler tasks. Principals
// are K-sortable (UUIDv7-based), globally unique, URL-safe strings in the
// format "prefix_suffix" and are comparable, so they can key maps directly.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the identity type encoded in a TypeID.
type Prefix string

// Prefix constants for all identity types.
const (
	PrefixPrincipal Prefix = "prn" // Caller identity
)

// Principal is the opaque identity of a caller.
// The zero value is the anonymous principal.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type Principal struct {
	inner typeid.TypeID
	valid bool
}

// Anonymous is the zero-value Principal. It owns nothing and may not
// administer any token.
var Anonymous Principal

// NewPrincipal generates a new globally unique principal.
func NewPrincipal() Principal {
	tid, err := typeid.Generate(string(PrefixPrincipal))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", PrefixPrincipal, err))
	}

	return Principal{inner: tid, valid: true}
}

// ParsePrincipal parses a TypeID string (e.g. "prn_01h2xcejqtf2nbrexx3vqjhp41")
// into a Principal. Returns an error if the string is not valid or carries
// the wrong prefix.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return Anonymous, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Anonymous, fmt.Errorf("id: parse %q: %w", s, err)
	}

	if tid.Prefix() != string(PrefixPrincipal) {
		return Anonymous, fmt.Errorf("id: expected prefix %q, got %q", PrefixPrincipal, tid.Prefix())
	}

	return Principal{inner: tid, valid: true}, nil
}

// MustParsePrincipal is like ParsePrincipal but panics on error.
// Use for hardcoded identity values.
func MustParsePrincipal(s string) Principal {
	parsed, err := ParsePrincipal(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// String returns the canonical "prn_..." representation, or "" for the
// anonymous principal.
func (p Principal) String() string {
	if !p.valid {
		return ""
	}

	return p.inner.String()
}

// IsAnonymous reports whether this principal is the zero value.
func (p Principal) IsAnonymous() bool {
	return !p.valid
}

// Equal reports whether two principals are the same identity.
func (p Principal) Equal(other Principal) bool {
	return p == other
}

// MarshalText implements encoding.TextMarshaler.
func (p Principal) MarshalText() ([]byte, error) {
	if !p.valid {
		return []byte{}, nil
	}

	return []byte(p.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Principal) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*p = Anonymous

		return nil
	}

	parsed, err := ParsePrincipal(string(data))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns the empty string for the anonymous principal so that key columns
// stay NOT NULL.
func (p Principal) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (p *Principal) Scan(src any) error {
	if src == nil {
		*p = Anonymous

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*p = Anonymous

			return nil
		}

		return p.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*p = Anonymous

			return nil
		}

		return p.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into Principal", src)
	}
}
