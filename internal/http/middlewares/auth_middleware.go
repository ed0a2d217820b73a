package middlewares

import (
	"net/http"
	"strings"

	"github.com/artify/contesthub/internal/auth"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth enforces the credential contract: a missing bearer token is 401,
// a token that fails verification is 403. On success the verified principal
// (email, name, photoURL) is stashed on the context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid Authorization header",
				},
			})
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing access token",
				},
			})
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Invalid or expired access token",
				},
			})
			return
		}

		SetPrincipal(c, Principal{Email: claims.Email, Name: claims.Name, PhotoURL: claims.PhotoURL})
		c.Set(ctxRoleKey, claims.Role)

		c.Next()
	}
}

// Principal is the authenticated identity derived from the verified token.
type Principal struct {
	Email    string
	Name     string
	PhotoURL string
}

// SetPrincipal stashes the verified identity on the request context. Exposed
// so handler tests can mount a principal without minting tokens.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(ctxEmailKey, p.Email)
	c.Set(ctxNameKey, p.Name)
	c.Set(ctxPhotoURLKey, p.PhotoURL)
}

// Optional helpers so handlers don't need to know the magic keys.

func PrincipalFromContext(c *gin.Context) (Principal, bool) {
	email, ok := stringFromContext(c, ctxEmailKey)

	if !ok || email == "" {
		return Principal{}, false
	}

	name, _ := stringFromContext(c, ctxNameKey)
	photo, _ := stringFromContext(c, ctxPhotoURLKey)

	return Principal{Email: email, Name: name, PhotoURL: photo}, true
}

func EmailFromContext(c *gin.Context) (string, bool) {
	return stringFromContext(c, ctxEmailKey)
}

func stringFromContext(c *gin.Context, key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
