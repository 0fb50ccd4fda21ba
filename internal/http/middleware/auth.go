package middleware

import (
	"net/http"

	"github.com/tuanvumaihuynh/storefront/internal/auth"
)

// TokenVerifier turns a bearer credential into an identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Authenticate rejects requests without a valid bearer token through onError
// and stores the verified identity in the request context otherwise.
func Authenticate(verifier TokenVerifier, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))

			id, err := verifier.Verify(token)
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), id)))
		})
	}
}
