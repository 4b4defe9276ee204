package services

import (
	"errors"
	"net/http"
	"strings"

	"goa.design/goa/v3/security"
)

// muxer is the part of goahttp.Muxer the handlers mount on
type muxer interface {
	Handle(method, pattern string, handler http.HandlerFunc)
	Vars(*http.Request) map[string]string
}

var errMissingToken = errors.New("authorization header required")

// bearerToken extracts the token from the Authorization header. Browsers cannot
// set headers on a WebSocket upgrade, so a token query parameter is accepted too.
func bearerToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", errors.New("invalid authorization header format")
		}
		return parts[1], nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", errMissingToken
}

// Require wraps h so it only runs for an authenticated user holding one of scopes
func (s *AuthService) Require(h http.HandlerFunc, scopes ...string) http.HandlerFunc {
	scheme := &security.JWTScheme{Name: "jwt", Scopes: []string{ScopeAdmin, ScopeStaff}, RequiredScopes: scopes}
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeError(r.Context(), w, MakeUnauthorized(err))
			return
		}

		ctx, err := s.JWTAuth(r.Context(), token, scheme)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		h(w, r.WithContext(ctx))
	}
}

// Optional wraps h so an authenticated user is put in the context when a valid
// token is present. Requests without a token pass through anonymously.
func (s *AuthService) Optional(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if errors.Is(err, errMissingToken) {
			h(w, r)
			return
		}
		if err != nil {
			writeError(r.Context(), w, MakeUnauthorized(err))
			return
		}

		ctx, err := s.JWTAuth(r.Context(), token, nil)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		h(w, r.WithContext(ctx))
	}
}
