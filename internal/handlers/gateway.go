package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/tavolo-app/api/internal/platform/httpx"
)

const gatewayTokenHeader = "X-Gateway-Token"

// GatewayTokenMiddleware rejects requests that did not pass through the
// fronting gateway. Identity headers such as X-Actor-Id are only trustworthy
// on requests carrying the shared token. An empty token disables the check,
// which is the local development posture.
func GatewayTokenMiddleware(token string) func(http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := strings.TrimSpace(r.Header.Get(gatewayTokenHeader))
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				httpx.WriteError(r.Context(), w, httpx.NewError("gateway_token_invalid", "request did not originate from the gateway", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
