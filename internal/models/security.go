package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type SecurityKind string

const (
	SecurityNone     SecurityKind = "none"
	SecurityPassword SecurityKind = "password"
	SecurityDomain   SecurityKind = "domain"
)

// Policy is the gate attached to a link. The set of implementations is closed:
// NoGate, PasswordGate and DomainLock.
type Policy interface {
	Kind() SecurityKind
	policy()
}

type NoGate struct{}

// PasswordGate holds the shared secret in clear text. Administrators can read it back.
type PasswordGate struct {
	Secret string
}

type DomainLock struct {
	Domain string
}

func (NoGate) Kind() SecurityKind       { return SecurityNone }
func (PasswordGate) Kind() SecurityKind { return SecurityPassword }
func (DomainLock) Kind() SecurityKind   { return SecurityDomain }

func (NoGate) policy()       {}
func (PasswordGate) policy() {}
func (DomainLock) policy()   {}

// Security wraps exactly one Policy. The zero value is an open link.
type Security struct {
	Policy Policy
}

func Open() Security { return Security{Policy: NoGate{}} }

func WithPassword(secret string) Security { return Security{Policy: PasswordGate{Secret: secret}} }

func WithDomainLock(domain string) Security {
	return Security{Policy: DomainLock{Domain: NormalizeDomain(domain)}}
}

func (s Security) Kind() SecurityKind {
	if s.Policy == nil {
		return SecurityNone
	}
	return s.Policy.Kind()
}

// Gate returns the attached policy, never nil.
func (s Security) Gate() Policy {
	if s.Policy == nil {
		return NoGate{}
	}
	return s.Policy
}

func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "@"))
}

// securityRecord is the flat encoding used for the database column and the cache.
type securityRecord struct {
	Type          SecurityKind `json:"type"`
	Password      string       `json:"password,omitempty"`
	AllowedDomain string       `json:"allowedDomain,omitempty"`
}

func (s Security) record() securityRecord {
	switch p := s.Gate().(type) {
	case PasswordGate:
		return securityRecord{Type: SecurityPassword, Password: p.Secret}
	case DomainLock:
		return securityRecord{Type: SecurityDomain, AllowedDomain: p.Domain}
	default:
		return securityRecord{Type: SecurityNone}
	}
}

func fromRecord(r securityRecord) (Security, error) {
	switch r.Type {
	case SecurityPassword:
		if r.Password == "" {
			return Security{}, errors.New("password security without a secret")
		}
		return WithPassword(r.Password), nil
	case SecurityDomain:
		if r.AllowedDomain == "" {
			return Security{}, errors.New("domain security without a domain")
		}
		return WithDomainLock(r.AllowedDomain), nil
	case SecurityNone, "":
		return Open(), nil
	default:
		return Security{}, fmt.Errorf("unknown security type %q", r.Type)
	}
}

func (s Security) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.record())
}

func (s *Security) UnmarshalJSON(data []byte) error {
	var r securityRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	decoded, err := fromRecord(r)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

func (s Security) Value() (driver.Value, error) {
	b, err := json.Marshal(s.record())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Security) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = Open()
		return nil
	case string:
		return s.UnmarshalJSON([]byte(v))
	case []byte:
		return s.UnmarshalJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into Security", value)
	}
}
