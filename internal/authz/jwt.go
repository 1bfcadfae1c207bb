package authz

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/stanstork/campus-api/internal/models"
)

// IssueToken signs an HS256 token carrying the user id as "sub" and the roles
// as "roles". Tokens are minted by the identity service in production; this
// is used by the CLI and tests.
func IssueToken(secret, userID string, roles []models.Role, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret is empty")
	}
	rolesClaim := make([]string, 0, len(roles))
	for _, role := range roles {
		rolesClaim = append(rolesClaim, string(role))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"roles": rolesClaim,
		"exp":   time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return signed, nil
}

// JWTMiddleware validates the bearer token and puts the caller's identity on
// the request context.
func JWTMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
				return
			}
			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}
			userID, _ := claims["sub"].(string)
			if strings.TrimSpace(userID) == "" {
				http.Error(w, "Missing subject claim", http.StatusUnauthorized)
				return
			}
			roles, ok := rolesFromClaims(claims)
			if !ok {
				http.Error(w, "Missing role claim", http.StatusUnauthorized)
				return
			}
			ctx := WithIdentity(r.Context(), userID, roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rolesFromClaims(claims jwt.MapClaims) ([]models.Role, bool) {
	var raw []string
	switch v := claims["roles"].(type) {
	case []interface{}:
		for _, val := range v {
			str, ok := val.(string)
			if !ok {
				return nil, false
			}
			raw = append(raw, str)
		}
	case []string:
		raw = v
	case string:
		raw = []string{v}
	case nil:
		if single, ok := claims["role"].(string); ok {
			raw = []string{single}
		}
	default:
		return nil, false
	}

	roles := make([]models.Role, 0, len(raw))
	for _, str := range raw {
		role := models.NormalizeRole(models.Role(str))
		if !models.IsValidRole(role) {
			return nil, false
		}
		roles = append(roles, role)
	}
	return roles, len(roles) > 0
}
