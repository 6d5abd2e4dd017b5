package gate

import (
	"net/http"
	"strings"
)

const (
	allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	allowHeaders = "Content-Type, Authorization, X-Requested-With, Accept, Origin, X-Operator-Key"
	maxAge       = "86400"
)

// CORS sets cross-origin headers on every response, including gate
// rejections and errors, so the embedding page can read them. Allowed
// origins are echoed; anything else gets "*". Preflight requests end here
// with 204.
//
// Entries may contain one "*" standing for a single host label sequence,
// e.g. "https://*.webflow.io".
func CORS(allowed []string) func(http.Handler) http.Handler {
	matcher := newOriginMatcher(allowed)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			if origin != "" && matcher.allows(origin) {
				h.Set("Access-Control-Allow-Origin", origin)
			} else {
				h.Set("Access-Control-Allow-Origin", "*")
			}
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Max-Age", maxAge)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type wildcard struct {
	prefix, suffix string
}

type originMatcher struct {
	exact     map[string]bool
	wildcards []wildcard
}

func newOriginMatcher(allowed []string) originMatcher {
	m := originMatcher{exact: make(map[string]bool, len(allowed))}
	for _, a := range allowed {
		if prefix, suffix, ok := strings.Cut(a, "*"); ok {
			m.wildcards = append(m.wildcards, wildcard{prefix: prefix, suffix: suffix})
			continue
		}
		m.exact[a] = true
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	if m.exact[origin] {
		return true
	}
	for _, w := range m.wildcards {
		if len(origin) <= len(w.prefix)+len(w.suffix) {
			continue
		}
		if !strings.HasPrefix(origin, w.prefix) || !strings.HasSuffix(origin, w.suffix) {
			continue
		}
		// The wildcard covers host labels only, never a path or port.
		middle := origin[len(w.prefix) : len(origin)-len(w.suffix)]
		if !strings.ContainsAny(middle, "/:") {
			return true
		}
	}
	return false
}
