package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is a caller vouched for by the external identity provider.
type Identity struct {
	Subject string
	Email   string
}

// EmailDomain returns the lowercased part after the last "@".
func (i Identity) EmailDomain() string {
	at := strings.LastIndex(i.Email, "@")
	if at < 0 || at == len(i.Email)-1 {
		return ""
	}
	return strings.ToLower(i.Email[at+1:])
}

type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// AdminPolicy decides administrative capability. It is supplied from outside so the
// administrator set is configuration, not code.
type AdminPolicy interface {
	IsAdmin(id Identity) bool
}

type identityClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HMAC-signed bearer tokens minted by the identity provider.
type JWTVerifier struct {
	secret  []byte
	options []jwt.ParserOption
}

func NewJWTVerifier(secret, issuer, audience string) *JWTVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWTVerifier{secret: []byte(secret), options: opts}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: verification is not configured", ErrInvalidIdentity)
	}
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrInvalidIdentity)
	}

	claims := &identityClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.options...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidIdentity)
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, fmt.Errorf("%w: email is not verified", ErrInvalidIdentity)
	}

	return &Identity{Subject: claims.Subject, Email: strings.TrimSpace(claims.Email)}, nil
}

type EmailAllowList struct {
	emails map[string]struct{}
}

func NewEmailAllowList(emails []string) *EmailAllowList {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return &EmailAllowList{emails: set}
}

func (a *EmailAllowList) IsAdmin(id Identity) bool {
	if id.Email == "" {
		return false
	}
	_, ok := a.emails[strings.ToLower(id.Email)]
	return ok
}

// ActorFor turns a verified identity into an Actor under the given policy.
func ActorFor(id *Identity, policy AdminPolicy) Actor {
	if id == nil {
		return GuestActor()
	}
	return Actor{ID: id.Subject, Email: id.Email, Admin: policy != nil && policy.IsAdmin(*id)}
}
