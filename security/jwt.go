package security

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

type UserClaims struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
	jwt.StandardClaims
}

// KeyUserID and KeyRole are the context keys under which AuthMiddleware
// stores the resolved identity.
type KeyUserID struct{}

type KeyRole struct{}

const tokenTTL = 7 * 24 * time.Hour

func NewAccessToken(userID, role string, isActive bool) (string, error) {
	claims := UserClaims{
		ID:       userID,
		Role:     role,
		IsActive: isActive,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(tokenTTL).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return accessToken.SignedString([]byte(os.Getenv("TOKEN_SECRET")))
}

func ParseAccessToken(accessToken string) (*UserClaims, error) {
	parsedAccessToken, err := jwt.ParseWithClaims(accessToken, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("TOKEN_SECRET")), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsedAccessToken.Claims.(*UserClaims)
	if !ok || !parsedAccessToken.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ContextWithUser attaches a resolved identity to the context. Exposed so
// tests can build authenticated requests without minting tokens.
func ContextWithUser(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, KeyUserID{}, userID)
	return context.WithValue(ctx, KeyRole{}, role)
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(KeyUserID{}).(string)
	return id
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(KeyRole{}).(string)
	return role
}

// AuthMiddleware resolves the Bearer token into a user identity and stores
// it on the request context. Everything behind it trusts that identity.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid token format", http.StatusUnauthorized)
			return
		}

		claims, err := ParseAccessToken(parts[1])
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
			return
		}
		if !claims.IsActive {
			http.Error(w, "Account is deactivated", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), claims.ID, claims.Role)))
	})
}

// RequireRole gates a subrouter on the authenticated role.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}
