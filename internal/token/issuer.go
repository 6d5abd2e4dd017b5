package token

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/store-locator/internal/domain"
)

// Issuer mints capability tokens. It performs no authentication of its own;
// callers must already have authenticated the operator. Issuance is stateless:
// no registry of issued tokens is kept.
type Issuer struct {
	codec      *Codec
	defaultTTL time.Duration
}

// NewIssuer creates an issuer that uses defaultTTL when Issue is given a
// non-positive ttl.
func NewIssuer(codec *Codec, defaultTTL time.Duration) *Issuer {
	return &Issuer{codec: codec, defaultTTL: defaultTTL}
}

// Issue returns a signed token scoped to one site and collection.
func (i *Issuer) Issue(siteID, collectionID, mapboxKey string, ttl time.Duration) (string, error) {
	if siteID == "" || collectionID == "" {
		return "", domain.Malformed("siteId and collectionId are required")
	}
	if mapboxKey == "" {
		return "", fmt.Errorf("site %s: %w: no map provider key on record", siteID, domain.ErrMissingUpstreamConfig)
	}
	if ttl <= 0 {
		ttl = i.defaultTTL
	}

	now := i.codec.clock.Now()
	return i.codec.Encode(Payload{
		Scope: domain.Scope{
			SiteID:       siteID,
			CollectionID: collectionID,
			MapboxKey:    mapboxKey,
		},
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		ID:        uuid.NewString(),
	})
}
