// Package token implements the capability token: a compact HS256-signed JWS
// (header.payload.signature) that authorizes one site and collection and
// carries the site's map provider key inside the signed payload.
//
// Expiry is the only lifecycle control. No revocation list is consulted, so a
// leaked token stays valid until expiresAt; changing a site's provider key or
// scope requires issuing a new token and replacing it wherever it is embedded.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/store-locator/internal/domain"
)

// claims is the signed payload. Field names match tokens minted by earlier
// releases so existing embeds keep working.
type claims struct {
	SiteID       string `json:"siteId"`
	CollectionID string `json:"collectionId"`
	MapboxToken  string `json:"mapboxToken"`
	jwt.RegisteredClaims
}

// Payload is the decoded content of a capability token.
type Payload struct {
	Scope     domain.Scope
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// Codec signs and verifies capability tokens with a server-only secret.
type Codec struct {
	secret []byte
	clock  clockwork.Clock
	parser *jwt.Parser
}

// NewCodec creates a codec. A nil clock uses real time.
func NewCodec(secret string, clock clockwork.Clock) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Codec{
		secret: []byte(secret),
		clock:  clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithStrictDecoding(),
			jwt.WithTimeFunc(clock.Now),
		),
	}, nil
}

// Encode signs the payload. Timestamps are truncated to whole seconds.
func (c *Codec) Encode(p Payload) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SiteID:       p.Scope.SiteID,
		CollectionID: p.Scope.CollectionID,
		MapboxToken:  p.Scope.MapboxKey,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
			ID:        p.ID,
		},
	})
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature, then the expiry. It returns an error wrapping
// domain.ErrInvalidToken or domain.ErrExpiredToken.
func (c *Codec) Decode(tokenString string) (Payload, error) {
	var cl claims
	_, err := c.parser.ParseWithClaims(tokenString, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		// The signature is checked before claims, so a forged token that is
		// also past its expiry still reports as invalid.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, fmt.Errorf("%w: %v", domain.ErrExpiredToken, err)
		}
		return Payload{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	if cl.SiteID == "" || cl.CollectionID == "" || cl.MapboxToken == "" {
		return Payload{}, fmt.Errorf("%w: incomplete scope", domain.ErrInvalidToken)
	}

	p := Payload{
		Scope: domain.Scope{
			SiteID:       cl.SiteID,
			CollectionID: cl.CollectionID,
			MapboxKey:    cl.MapboxToken,
		},
		ExpiresAt: cl.ExpiresAt.Time,
		ID:        cl.ID,
	}
	if cl.IssuedAt != nil {
		p.IssuedAt = cl.IssuedAt.Time
	}
	return p, nil
}
