package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/store-locator/internal/domain"
)

const testSecret = "test-signing-secret"

var issuedAt = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func newTestIssuer(t *testing.T) (*Issuer, *Codec, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(issuedAt)
	codec, err := NewCodec(testSecret, clock)
	require.NoError(t, err)
	return NewIssuer(codec, 24*time.Hour), codec, clock
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	_, err := NewCodec("", nil)
	require.Error(t, err)
}

func TestIssueDecode_RecoversScope(t *testing.T) {
	cases := []struct {
		site, collection, key string
		ttl                   time.Duration
	}{
		{"site-1", "coll-1", "pk.abc", time.Hour},
		{"site-with-dashes", "64f0c1a2b3", "pk.eyJ1Ijoib3BlcmF0b3IifQ.x", 365 * 24 * time.Hour},
		{"s", "c", "k", time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.site, func(t *testing.T) {
			issuer, codec, _ := newTestIssuer(t)

			tok, err := issuer.Issue(tc.site, tc.collection, tc.key, tc.ttl)
			require.NoError(t, err)

			p, err := codec.Decode(tok)
			require.NoError(t, err)
			assert.Equal(t, domain.Scope{SiteID: tc.site, CollectionID: tc.collection, MapboxKey: tc.key}, p.Scope)
			assert.Equal(t, issuedAt, p.IssuedAt.UTC())
			assert.Equal(t, issuedAt.Add(tc.ttl), p.ExpiresAt.UTC())
			assert.NotEmpty(t, p.ID)
		})
	}
}

func TestIssue_IsURLSafeThreeSegments(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	tok, err := issuer.Issue("site-1", "coll-1", "pk.abc", time.Hour)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	for _, p := range parts {
		_, err := base64.RawURLEncoding.Strict().DecodeString(p)
		assert.NoError(t, err)
	}
	assert.NotContains(t, tok, "+")
	assert.NotContains(t, tok, "/")
	assert.NotContains(t, tok, "=")
}

func TestIssue_UsesDefaultTTL(t *testing.T) {
	issuer, codec, _ := newTestIssuer(t)
	tok, err := issuer.Issue("site-1", "coll-1", "pk.abc", 0)
	require.NoError(t, err)

	p, err := codec.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(24*time.Hour), p.ExpiresAt.UTC())
}

func TestIssue_MissingMapboxKey(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	_, err := issuer.Issue("site-1", "coll-1", "", time.Hour)
	require.ErrorIs(t, err, domain.ErrMissingUpstreamConfig)
}

func TestIssue_MissingIdentifiers(t *testing.T) {
	issuer, _, _ := newTestIssuer(t)
	_, err := issuer.Issue("", "coll-1", "pk.abc", time.Hour)
	require.ErrorIs(t, err, domain.ErrMalformedRequest)
	_, err = issuer.Issue("site-1", "", "pk.abc", time.Hour)
	require.ErrorIs(t, err, domain.ErrMalformedRequest)
}

func TestDecode_ValidOnlyBeforeExpiry(t *testing.T) {
	issuer, codec, clock := newTestIssuer(t)
	tok, err := issuer.Issue("site-1", "coll-1", "pk.abc", time.Hour)
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = codec.Decode(tok)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = codec.Decode(tok)
	require.ErrorIs(t, err, domain.ErrExpiredToken)
	assert.NotErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDecode_PastExpiryWithValidSignature(t *testing.T) {
	_, codec, _ := newTestIssuer(t)
	tok, err := codec.Encode(Payload{
		Scope:     domain.Scope{SiteID: "site-1", CollectionID: "coll-1", MapboxKey: "pk.abc"},
		IssuedAt:  issuedAt.Add(-48 * time.Hour),
		ExpiresAt: issuedAt.Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	_, err = codec.Decode(tok)
	require.ErrorIs(t, err, domain.ErrExpiredToken)
}

func TestDecode_SignatureBitFlipsAreInvalid(t *testing.T) {
	issuer, codec, _ := newTestIssuer(t)
	tok, err := issuer.Issue("site-1", "coll-1", "pk.abc", time.Hour)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)

	for i := range sig {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), sig...)
			tampered[i] ^= 1 << bit
			forged := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(tampered)

			_, err := codec.Decode(forged)
			require.ErrorIsf(t, err, domain.ErrInvalidToken, "byte %d bit %d", i, bit)
		}
	}
}

func TestDecode_SignatureCharacterEditsAreInvalid(t *testing.T) {
	issuer, codec, _ := newTestIssuer(t)
	tok, err := issuer.Issue("site-1", "coll-1", "pk.abc", time.Hour)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	sig := []byte(parts[2])
	last := len(sig) - 1

	// The final character also carries padding bits; strict decoding must
	// reject any change to them.
	for _, c := range []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_") {
		if c == sig[last] {
			continue
		}
		edited := append([]byte(nil), sig...)
		edited[last] = c
		_, err := codec.Decode(parts[0] + "." + parts[1] + "." + string(edited))
		require.ErrorIsf(t, err, domain.ErrInvalidToken, "last char %q", c)
	}
}

func TestDecode_TamperedPayload(t *testing.T) {
	issuer, codec, _ := newTestIssuer(t)
	tok, err := issuer.Issue("site-1", "coll-1", "pk.abc", time.Hour)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	swapped := strings.Replace(string(payload), "coll-1", "coll-2", 1)
	forged := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(swapped)) + "." + parts[2]

	_, err = codec.Decode(forged)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDecode_WrongSecret(t *testing.T) {
	issuer, _, clock := newTestIssuer(t)
	tok, err := issuer.Issue("site-1", "coll-1", "pk.abc", time.Hour)
	require.NoError(t, err)

	other, err := NewCodec("another-secret", clock)
	require.NoError(t, err)
	_, err = other.Decode(tok)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDecode_ForgedAndExpiredIsInvalid(t *testing.T) {
	_, codec, clock := newTestIssuer(t)
	other, err := NewCodec("another-secret", clock)
	require.NoError(t, err)

	tok, err := other.Encode(Payload{
		Scope:     domain.Scope{SiteID: "site-1", CollectionID: "coll-1", MapboxKey: "pk.abc"},
		IssuedAt:  issuedAt.Add(-2 * time.Hour),
		ExpiresAt: issuedAt.Add(-time.Hour),
	})
	require.NoError(t, err)

	_, err = codec.Decode(tok)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDecode_RejectsNoneAndOtherAlgorithms(t *testing.T) {
	_, codec, _ := newTestIssuer(t)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		SiteID: "site-1", CollectionID: "coll-1", MapboxToken: "pk.abc",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour))},
	})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Decode(tok)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDecode_MissingExpiry(t *testing.T) {
	_, codec, _ := newTestIssuer(t)
	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{SiteID: "site-1", CollectionID: "coll-1", MapboxToken: "pk.abc"})
	tok, err := noExp.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = codec.Decode(tok)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDecode_IncompleteScope(t *testing.T) {
	_, codec, _ := newTestIssuer(t)
	tok, err := codec.Encode(Payload{
		Scope:     domain.Scope{SiteID: "site-1", CollectionID: "coll-1"},
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = codec.Decode(tok)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestDecode_Malformed(t *testing.T) {
	_, codec, _ := newTestIssuer(t)
	for _, tok := range []string{"", "abc", "a.b", "a.b.c", "...."} {
		_, err := codec.Decode(tok)
		require.ErrorIsf(t, err, domain.ErrInvalidToken, "token %q", tok)
	}
}
