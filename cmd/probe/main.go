// Command probe checks a capability token end to end against a running
// gateway, the way an embedded widget would use it: load the collection,
// geocode what the CMS left unresolved, rank from an origin and fetch a tile.
//
// Usage:
//
//	go run ./cmd/probe \
//	  -base-url https://example.com/map \
//	  -token "$TOKEN" \
//	  -address "350 5th Ave, New York" \
//	  -unit mi
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/store-locator/internal/domain"
	"github.com/couchcryptid/store-locator/internal/ranker"
	"github.com/couchcryptid/store-locator/internal/widget"
)

// phase tracks pass/fail for a probe phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	baseURL string
	token   string
	address string
	lat     float64
	lon     float64
	unit    ranker.Unit
	style   string
	top     int
	timeout time.Duration
}

// fixedPosition stands in for device geolocation with a known point.
type fixedPosition struct {
	pos ranker.Position
}

func (f fixedPosition) Permission(context.Context) (widget.PermissionState, error) {
	return widget.PermissionGranted, nil
}

func (f fixedPosition) CurrentPosition(context.Context) (ranker.Position, error) {
	return f.pos, nil
}

func main() {
	baseURL := flag.String("base-url", "", "gateway root, including any base path")
	token := flag.String("token", "", "capability token to probe with")
	address := flag.String("address", "", "rank from this address")
	lat := flag.Float64("lat", 0, "rank from this latitude (with -lon)")
	lon := flag.Float64("lon", 0, "rank from this longitude (with -lat)")
	unit := flag.String("unit", "mi", "distance unit: mi or km")
	style := flag.String("style", "", "tile style, e.g. streets or satellite")
	top := flag.Int("top", 5, "number of ranked locations to print")
	timeout := flag.Duration("timeout", 30*time.Second, "overall probe timeout")
	flag.Parse()

	if *baseURL == "" || *token == "" {
		flag.Usage()
		os.Exit(1)
	}
	u, err := ranker.ParseUnit(*unit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	opts := options{
		baseURL: *baseURL,
		token:   *token,
		address: *address,
		lat:     *lat,
		lon:     *lon,
		unit:    u,
		style:   *style,
		top:     *top,
		timeout: *timeout,
	}
	os.Exit(run(opts))
}

func run(opts options) int {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	httpClient := &http.Client{Timeout: 15 * time.Second}
	client := widget.NewRegistry(httpClient).Client(opts.baseURL)

	fmt.Println("=== Store Locator Probe ===")
	fmt.Printf("Gateway: %s\n\n", client.BaseURL())

	origin := fixedPosition{pos: ranker.Position{Latitude: opts.lat, Longitude: opts.lon}}
	locator := widget.NewLocator(client, opts.token, origin, opts.unit, logger)

	phases := []*phase{
		probeLocations(ctx, client, opts.token),
		probeLoad(ctx, locator),
		probeRanking(ctx, locator, opts),
		probeTile(ctx, httpClient, client, opts),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll probes passed.")
		return 0
	}
	fmt.Println("\nProbe FAILED.")
	return 1
}

// ── Phases ──

func probeLocations(ctx context.Context, client *widget.Client, token string) *phase {
	p := &phase{name: "Phase 1: Collection access"}

	locs, err := client.Locations(ctx, token)
	if err != nil {
		p.errorf("GET /api/locations: %s", describe(err))
		return p
	}
	if len(locs) == 0 {
		p.errorf("collection is empty")
	}

	seen := make(map[string]bool, len(locs))
	for _, loc := range locs {
		if loc.ID == "" {
			p.errorf("location %q has no id", loc.Name)
			continue
		}
		if seen[loc.ID] {
			p.errorf("duplicate location id %s", loc.ID)
		}
		seen[loc.ID] = true
	}

	resolved := 0
	for _, loc := range locs {
		if loc.Coordinate.IsResolved() {
			resolved++
		}
	}
	fmt.Printf("Locations: %d total, %d with coordinates\n", len(locs), resolved)
	return p
}

func probeLoad(ctx context.Context, locator *widget.Locator) *phase {
	p := &phase{name: "Phase 2: Load and geocode"}

	if err := locator.Load(ctx); err != nil {
		p.errorf("load: %s", describe(err))
		return p
	}
	view := locator.View()
	unresolved := 0
	for _, loc := range view.Locations {
		if !loc.Coordinate.IsResolved() {
			unresolved++
			if strings.TrimSpace(loc.Address) != "" {
				p.errorf("location %s has an address but no coordinates after geocoding", loc.ID)
			}
		}
	}
	fmt.Printf("After geocoding: %d of %d unresolved\n", unresolved, len(view.Locations))
	return p
}

func probeRanking(ctx context.Context, locator *widget.Locator, opts options) *phase {
	p := &phase{name: "Phase 3: Distance ranking"}

	var err error
	switch {
	case opts.address != "":
		err = locator.SearchAddress(ctx, opts.address)
	case opts.lat != 0 || opts.lon != 0:
		err = locator.UseDeviceLocation(ctx)
	default:
		fmt.Println("Ranking: skipped (no -address or -lat/-lon)")
		return p
	}
	if err != nil {
		p.errorf("rank: %s", describe(err))
		return p
	}

	view := locator.View()
	if view.Origin == nil {
		p.errorf("ranking finished without an origin")
		return p
	}
	fmt.Printf("Origin: %.5f, %.5f\n", view.Origin.Latitude, view.Origin.Longitude)

	prev := -1.0
	for i, loc := range view.Locations {
		if !loc.HasDistance() {
			continue
		}
		if loc.DistanceKm < prev {
			p.errorf("position %d (%s) is closer than the entry before it", i, loc.ID)
		}
		prev = loc.DistanceKm
		if i < opts.top {
			fmt.Printf("  %2d. %-32s %s\n", i+1, loc.Name, loc.Format(view.Unit))
		}
	}
	return p
}

func probeTile(ctx context.Context, httpClient *http.Client, client *widget.Client, opts options) *phase {
	p := &phase{name: "Phase 4: Tile proxy"}

	tileURL := strings.NewReplacer("{z}", "0", "{x}", "0", "{y}", "0").
		Replace(client.TileURLTemplate(opts.token, opts.style))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		p.errorf("create request: %v", err)
		return p
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		p.errorf("GET tile: %v", err)
		return p
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.errorf("read tile: %v", err)
		return p
	}
	if resp.StatusCode != http.StatusOK {
		p.errorf("GET tile: status %d", resp.StatusCode)
		return p
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		p.errorf("tile content type %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc == "" {
		p.errorf("tile response has no Cache-Control")
	}
	fmt.Printf("Tile 0/0/0: %d bytes\n", len(body))
	return p
}

func describe(err error) string {
	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode == http.StatusUnauthorized {
		return "token rejected (401)"
	}
	return err.Error()
}
