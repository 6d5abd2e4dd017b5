package gate

import (
	"crypto/subtle"
	"net/http"
)

// OperatorKeyHeader carries the operator API key on issuance requests.
const OperatorKeyHeader = "X-Operator-Key"

// RequireOperator admits requests whose X-Operator-Key matches apiKey. It
// stands in for the operator login, which lives outside this service.
func RequireOperator(apiKey string) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(OperatorKeyHeader))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Operator authentication required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
