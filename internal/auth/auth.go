// Package auth is the token-verification boundary. Token issuance lives
// outside this service; handlers only need a yes/no on a presented bearer
// token.
package auth

import (
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Verifier authorizes a presented API token.
type Verifier interface {
	Verify(token string) bool
}

// StaticVerifier checks tokens against a single bcrypt hash from
// configuration.
type StaticVerifier struct {
	hash []byte
}

func NewStaticVerifier(bcryptHash string) *StaticVerifier {
	return &StaticVerifier{hash: []byte(bcryptHash)}
}

func (v *StaticVerifier) Verify(token string) bool {
	if token == "" || len(v.hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(token)) == nil
}

// HashToken produces the bcrypt hash for a token (setup tooling).
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// AllowAll accepts every request. Used when no token hash is configured;
// startup logs the open surface.
type AllowAll struct{}

func (AllowAll) Verify(string) bool { return true }

// Middleware rejects requests without a valid bearer token.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if !v.Verify(token) {
				log.Printf("auth: rejected request to %s", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
