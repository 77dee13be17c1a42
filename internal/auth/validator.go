// Package auth authenticates participants connecting to an auction room.
// Token issuance itself is an external collaborator (spec.md §1 Non-goals);
// this package only verifies tokens minted elsewhere.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"

	"github.com/phanidharguttikonda0/ipl-auction-sub000/internal/logging"
)

// ParticipantClaims is the custom JWT claim set a participant token carries:
// their franchise/team assignment and display name, on top of the standard
// registered claims (Subject is the participant id).
type ParticipantClaims struct {
	Team string `json:"team,omitempty"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Validator validates a participant's JWT. The production implementation is
// JWKS-backed; MockValidator also implements it.
type Validator interface {
	ValidateToken(tokenString string) (*ParticipantClaims, error)
}

// JWKSValidator verifies tokens against keys published at a JWKS endpoint.
type JWKSValidator struct {
	keyFunc  jwt.Keyfunc
	issuer   string
	audience []string
}

// NewJWKSValidator registers domain's JWKS endpoint in a refreshing cache and
// returns a Validator that verifies issuer, audience, and signature on every call.
func NewJWKSValidator(ctx context.Context, domain, audience string, regOpts ...jwk.RegisterOption) (*JWKSValidator, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse issuer URL: %w", err)
	}

	jwksURL := issuerURL.JoinPath(".well-known/jwks.json").String()

	cache := jwk.NewCache(ctx)
	opts := []jwk.RegisterOption{jwk.WithRefreshInterval(1 * time.Hour)}
	opts = append(opts, regOpts...)

	if err := cache.Register(jwksURL, opts...); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL in cache: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("failed to fetch initial JWKS: %w", err)
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid header not found")
		}

		keys, err := cache.Get(ctx, jwksURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get keys from cache: %w", err)
		}

		key, found := keys.LookupKeyID(kid)
		if !found {
			return nil, fmt.Errorf("key with kid %s not found", kid)
		}

		var pubKey interface{}
		if err := key.Raw(&pubKey); err != nil {
			return nil, fmt.Errorf("failed to get raw public key: %w", err)
		}
		return pubKey, nil
	}

	return &JWKSValidator{
		keyFunc:  keyFunc,
		issuer:   issuerURL.String(),
		audience: []string{audience},
	}, nil
}

// ValidateToken parses and verifies tokenString, returning the embedded claims.
func (v *JWKSValidator) ValidateToken(tokenString string) (*ParticipantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ParticipantClaims{}, v.keyFunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience[0]),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	claims, ok := token.Claims.(*ParticipantClaims)
	if !ok {
		return nil, errors.New("failed to cast claims to ParticipantClaims")
	}
	return claims, nil
}

// MockValidator accepts any token and extracts the subject/name/team from its
// unverified payload, for local development and tests (SKIP_AUTH=true).
type MockValidator struct{}

func (m *MockValidator) ValidateToken(tokenString string) (*ParticipantClaims, error) {
	var subject, name, team string

	parts := strings.Split(tokenString, ".")
	if len(parts) == 3 {
		payload, err := base64.RawURLEncoding.DecodeString(parts[1])
		if err == nil {
			var claims map[string]interface{}
			if json.Unmarshal(payload, &claims) == nil {
				if sub, ok := claims["sub"].(string); ok {
					subject = sub
				}
				if n, ok := claims["name"].(string); ok {
					name = n
				}
				if t, ok := claims["team"].(string); ok {
					team = t
				}
				logging.Info(context.Background(), "MockValidator parsed token",
					zap.String("subject", subject), zap.String("name", name), zap.String("team", team))
			}
		}
	}

	if subject == "" {
		subject = "dev-participant-1"
	}
	if name == "" {
		name = "Dev Participant"
	}

	claims := &ParticipantClaims{Team: team, Name: name}
	claims.Subject = subject
	return claims, nil
}
