// Command issuetoken mints a capability token offline from the sites file,
// without a running gateway. It signs with the same TOKEN_SECRET the gateway
// verifies with, so the printed token can be pasted straight into an embed.
//
// Usage:
//
//	TOKEN_SECRET=... go run ./cmd/issuetoken \
//	  -sites sites.yaml \
//	  -site acme \
//	  -ttl 8760h
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/store-locator/internal/site"
	"github.com/couchcryptid/store-locator/internal/token"
)

type output struct {
	Token        string    `json:"token"`
	SiteID       string    `json:"siteId"`
	CollectionID string    `json:"collectionId"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	sitesFile := flag.String("sites", "sites.yaml", "path to the sites file")
	siteID := flag.String("site", "", "site to issue for")
	collectionID := flag.String("collection", "", "collection to scope to (defaults to the site's)")
	ttl := flag.Duration("ttl", 365*24*time.Hour, "token lifetime")
	at := flag.String("at", "", "RFC 3339 issue time, for reproducible tokens")
	asJSON := flag.Bool("json", false, "print token metadata as JSON")
	flag.Parse()

	if *siteID == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -site")
	}
	secret := os.Getenv("TOKEN_SECRET")
	if secret == "" {
		return fmt.Errorf("TOKEN_SECRET is required")
	}

	var clock clockwork.Clock
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
		clock = clockwork.NewFakeClockAt(t)
	}

	sites, err := site.LoadFile(*sitesFile)
	if err != nil {
		return err
	}
	st, err := sites.Site(context.Background(), *siteID)
	if err != nil {
		return fmt.Errorf("site %s: %w", *siteID, err)
	}
	collection := *collectionID
	if collection == "" {
		collection = st.CollectionID
	}

	codec, err := token.NewCodec(secret, clock)
	if err != nil {
		return err
	}
	tok, err := token.NewIssuer(codec, *ttl).Issue(st.ID, collection, st.MapboxKey, *ttl)
	if err != nil {
		return err
	}

	if !*asJSON {
		fmt.Println(tok)
		return nil
	}

	payload, err := codec.Decode(tok)
	if err != nil {
		return fmt.Errorf("verify issued token: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output{
		Token:        tok,
		SiteID:       payload.Scope.SiteID,
		CollectionID: payload.Scope.CollectionID,
		IssuedAt:     payload.IssuedAt,
		ExpiresAt:    payload.ExpiresAt,
	})
}
