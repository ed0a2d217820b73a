package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/artify/contesthub/internal/config"
	"github.com/gin-gonic/gin"
)

// RolePolicy maps "METHOD /route/template" to the role that route requires.
// Routes absent from the table need authentication only. One table, one
// enforcement point, instead of role checks scattered per handler.
type RolePolicy map[string]string

// RoleReader looks up the persisted role for an email. The lookup happens on
// every request: roles change between requests and must take effect
// immediately, so there is deliberately no caching here.
type RoleReader interface {
	RoleByEmail(ctx context.Context, email string) (string, error)
}

// EnforcePolicy authorizes the current principal against the policy table.
// Runs after RequireAuth on the protected route group.
func EnforcePolicy(policy RolePolicy, roles RoleReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		required, gated := policy[c.Request.Method+" "+c.FullPath()]

		if !gated {
			c.Next()
			return
		}

		email, ok := EmailFromContext(c)

		if !ok || email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}

		cctx, cancel := config.WithTimeout(2 * time.Second)
		defer cancel()

		role, err := roles.RoleByEmail(cctx, email)

		if err != nil || role != required {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": required + " role required",
				},
			})
			return
		}

		c.Set(ctxRoleKey, role)

		c.Next()
	}
}
