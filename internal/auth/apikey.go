package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyChecker guards management endpoints with a bcrypt-hashed admin key.
type APIKeyChecker struct {
	hash []byte
}

func NewAPIKeyChecker(hash string) *APIKeyChecker {
	return &APIKeyChecker{hash: []byte(hash)}
}

func HashAPIKey(key string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Check reads the key from X-API-Key or a bearer Authorization header.
func (a *APIKeyChecker) Check(r *http.Request) bool {
	if len(a.hash) == 0 {
		return false
	}
	key := r.Header.Get("X-API-Key")
	if key == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			key = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(key)) == nil
}
