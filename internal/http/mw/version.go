package mw

import (
	"net/http"

	"github.com/jmylchreest/wallet-engine/internal/version"
)

// APIVersion sets X-API-Version to info.Short() on every response.
func APIVersion(info version.Info) func(http.Handler) http.Handler {
	v := info.Short()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-API-Version", v)
			next.ServeHTTP(w, r)
		})
	}
}
