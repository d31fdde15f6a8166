package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	contextUserKey  = "auth_user"
	contextIDKey    = "user_id"
	contextEmailKey = "user_email"
)

// Middleware wires a Provider and admin list into gin.
type Middleware struct {
	provider Provider
	admins   AdminList
}

func NewMiddleware(provider Provider, admins AdminList) *Middleware {
	return &Middleware{provider: provider, admins: admins}
}

// OptionalUser attaches the user when a valid token is present and otherwise
// lets the request through anonymously.
func (m *Middleware) OptionalUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if u, err := m.provider.Authenticate(c.Request.Context(), token); err == nil {
				setUser(c, u)
			}
		}
		c.Next()
	}
}

// RequireUser rejects requests without a valid bearer token with 401.
func (m *Middleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		u, err := m.provider.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		setUser(c, u)
		c.Next()
	}
}

// RequireAdmin must run after RequireUser. Authenticated non-admins get 403.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !m.admins.IsAdmin(u) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// RequireSecret guards machine endpoints with a shared bearer secret.
func RequireSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if secret == "" || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid cron secret"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user attached by the middleware, if any.
func CurrentUser(c *gin.Context) (*User, bool) {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*User)
	return u, ok && u != nil
}

func setUser(c *gin.Context, u *User) {
	c.Set(contextUserKey, u)
	c.Set(contextIDKey, u.ID)
	c.Set(contextEmailKey, u.Email)
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
