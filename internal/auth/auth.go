// Package auth verifies caller bearer tokens and turns their claims into a
// tools.Caller.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/cuongbtq/onprem-bridge/internal/config"
	"github.com/cuongbtq/onprem-bridge/internal/tools"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification
var ErrInvalidToken = errors.New("invalid_token")

// Verifier verifies a bearer token
type Verifier interface {
	Verify(ctx context.Context, token string) (tools.Caller, error)
}

// JWTVerifier verifies signed JWTs with a fixed key source and parser rules
type JWTVerifier struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

// callerClaims decodes the caller claims loosely; shapes other than the
// expected ones are ignored rather than failing the token.
type callerClaims struct {
	jwt.RegisteredClaims
	Scope    any `json:"scope,omitempty"`
	Scp      any `json:"scp,omitempty"`
	ClientID any `json:"client_id,omitempty"`
	AZP      any `json:"azp,omitempty"`
}

// New builds the verifier for the configured auth mode
func New(ctx context.Context, mode config.AuthMode) (*JWTVerifier, error) {
	switch m := mode.(type) {
	case config.SharedSecretAuth:
		return NewSharedSecretVerifier(m), nil
	case config.OIDCJWKSAuth:
		return NewJWKSVerifier(ctx, m)
	default:
		return nil, fmt.Errorf("unsupported auth mode %T", mode)
	}
}

// NewSharedSecretVerifier accepts HS256 tokens signed with the shared secret
func NewSharedSecretVerifier(mode config.SharedSecretAuth) *JWTVerifier {
	secret := []byte(mode.Secret)

	return &JWTVerifier{
		keyfunc: func(*jwt.Token) (any, error) { return secret, nil },
		parser:  jwt.NewParser(parserOptions([]string{"HS256"}, mode.Issuer, mode.Audience)...),
	}
}

// NewJWKSVerifier accepts asymmetric tokens whose keys are published at the
// JWKS URI. Keys are refreshed in the background until ctx is cancelled.
func NewJWKSVerifier(ctx context.Context, mode config.OIDCJWKSAuth) (*JWTVerifier, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{mode.JWKSURI})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", mode.JWKSURI, err)
	}

	methods := []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}
	return &JWTVerifier{
		keyfunc: k.Keyfunc,
		parser:  jwt.NewParser(parserOptions(methods, mode.Issuer, mode.Audience)...),
	}, nil
}

func parserOptions(methods []string, issuer, audience string) []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods)}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return opts
}

// Verify checks the token signature and registered claims and extracts the
// caller identity.
func (v *JWTVerifier) Verify(_ context.Context, token string) (tools.Caller, error) {
	var claims callerClaims
	if _, err := v.parser.ParseWithClaims(token, &claims, v.keyfunc); err != nil {
		return tools.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return tools.Caller{
		ClientID: clientID(claims),
		Scopes:   scopes(claims),
	}, nil
}

func clientID(c callerClaims) string {
	if id, ok := c.ClientID.(string); ok && id != "" {
		return id
	}
	if azp, ok := c.AZP.(string); ok && azp != "" {
		return azp
	}
	return c.Subject
}

// scopes reads the space separated scope claim, falling back to the scp
// array. Other claim shapes grant nothing.
func scopes(c callerClaims) []string {
	if scope, ok := c.Scope.(string); ok && scope != "" {
		return strings.Fields(scope)
	}

	out := []string{}
	if scp, ok := c.Scp.([]any); ok {
		for _, v := range scp {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
