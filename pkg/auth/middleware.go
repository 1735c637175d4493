package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Veilstone-Labs/fhegate/pkg/oracle"
)

// Claims are the JWT claims expected on the gateway API.
type Claims struct {
	jwt.RegisteredClaims
	Actor string   `json:"actor"`
	Roles []string `json:"roles"`
}

// JWTValidator validates HS256 tokens against a shared secret.
type JWTValidator struct {
	Secret []byte
}

// NewJWTValidator returns nil for an empty secret, which makes the
// middleware fail closed.
func NewJWTValidator(secret []byte) *JWTValidator {
	if len(secret) == 0 {
		return nil
	}
	return &JWTValidator{Secret: secret}
}

// Validate parses and validates a token string.
func (v *JWTValidator) Validate(tokenStr string) (*Claims, error) {
	if v == nil {
		return nil, fmt.Errorf("validator uninitialized")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// publicPaths need no authentication. The callback route is publicly
// reachable by design: the protocol assumes an adversarial caller there
// and defends with its own commitment, proof, and replay checks.
var publicPaths = []string{
	"/health",
	oracle.DefaultCallback,
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// writeUnauthorized emits a 401 problem response. Kept local so this
// package stays below the HTTP surface in the import graph.
func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://veilstone.dev/fhegate/errors/401",
		"title":  "Unauthorized",
		"status": http.StatusUnauthorized,
		"detail": detail,
	})
}

// NewMiddleware creates the JWT auth middleware. A nil validator rejects
// all non-public requests (fail closed).
func NewMiddleware(validator *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "Missing Authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeUnauthorized(w, "Invalid Authorization header format (expected 'Bearer <token>')")
				return
			}

			if validator == nil {
				writeUnauthorized(w, "Authentication not configured")
				return
			}

			claims, err := validator.Validate(parts[1])
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			principal := Principal{Actor: claims.Actor, Roles: claims.Roles}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
