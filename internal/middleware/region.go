package middleware

import (
	"context"
	"net/http"

	"clipforge/internal/infra/geoip"
)

// Region resolves the client's ISO country code and attaches it to the
// request context for logging. A nil resolver disables the lookup.
func Region(resolver geoip.CountryResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				next.ServeHTTP(w, r)
				return
			}
			code, err := resolver.CountryCode(ClientIP(r))
			if err != nil || code == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), regionKey, code)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RegionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(regionKey).(string); ok {
		return v
	}
	return ""
}
