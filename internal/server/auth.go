package server

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashKey returns the bcrypt hash of an API key for server.api_key_hash.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("api key must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing api key: %w", err)
	}
	return string(hash), nil
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// requireKey rejects requests whose bearer token does not match the
// configured hash. With no hash configured the endpoint does not exist.
func (s *Server) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.keyHash) == 0 {
			http.NotFound(w, r)
			return
		}
		token, ok := bearerToken(r)
		if !ok || bcrypt.CompareHashAndPassword(s.keyHash, []byte(token)) != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="cakeday"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			s.logger.Warn("rejected api request", "remote", r.RemoteAddr, "path", r.URL.Path)
			return
		}
		next(w, r)
	}
}
