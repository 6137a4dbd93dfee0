package config

import (
	"errors"
	"fmt"
)

// AuthMode is the resolved caller authentication strategy. It is either
// SharedSecretAuth or OIDCJWKSAuth.
type AuthMode interface {
	authMode()
}

// SharedSecretAuth verifies HS256 tokens signed with a shared secret.
// Issuer and Audience are checked only when set.
type SharedSecretAuth struct {
	Secret   string
	Issuer   string
	Audience string
}

// OIDCJWKSAuth verifies tokens against keys published at a JWKS URI
type OIDCJWKSAuth struct {
	JWKSURI  string
	Issuer   string
	Audience string
}

func (SharedSecretAuth) authMode() {}
func (OIDCJWKSAuth) authMode()     {}

// Mode resolves the configured provider into a complete AuthMode
func (a AuthConfig) Mode() (AuthMode, error) {
	switch a.Provider {
	case ProviderSharedSecret, "":
		if a.JWTSecret == "" {
			return nil, errors.New("auth jwt_secret is required with the shared_secret provider (JWT_SECRET)")
		}
		return SharedSecretAuth{Secret: a.JWTSecret, Issuer: a.Issuer, Audience: a.Audience}, nil
	case ProviderOIDCJWKS:
		if a.JWKSURI == "" {
			return nil, errors.New("auth jwks_uri is required with the oidc_jwks provider (OIDC_JWKS_URI)")
		}
		if a.Issuer == "" || a.Audience == "" {
			return nil, errors.New("auth issuer and audience are required with the oidc_jwks provider")
		}
		return OIDCJWKSAuth{JWKSURI: a.JWKSURI, Issuer: a.Issuer, Audience: a.Audience}, nil
	default:
		return nil, fmt.Errorf("invalid auth provider: %q", a.Provider)
	}
}
