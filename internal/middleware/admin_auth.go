package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BradenHooton/bulwark/pkg/httpx"
)

// AdminAuth guards the administrative endpoints. Operators present a Bearer
// JWT signed with the shared admin secret and carrying role=admin; tokens are
// issued out of band by the operations tooling.
func AdminAuth(secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				httpx.WriteUnauthorized(w, "admin access is not configured")
				return
			}

			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				httpx.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil {
				httpx.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			if role, _ := claims["role"].(string); role != "admin" {
				httpx.WriteUnauthorized(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
