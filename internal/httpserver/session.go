package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/session"
)

const sessionContextKey = "storefront_session"

// createSession issues a fresh anonymous storefront session.
func (h *handlers) createSession(c *gin.Context) {
	sess, err := h.deps.Sessions.Issue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "could not create session"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":     sess.Token,
		"expiresAt": sess.ExpiresAt,
	})
}

// sessionMiddleware resolves the bearer token into a session and aborts with
// 401 when it is missing, unknown, or expired.
func sessionMiddleware(store SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing session token"})
			return
		}
		sess, err := store.Resolve(c.Request.Context(), token)
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSessionExpired):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid session"})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "session lookup failed"})
			return
		}
		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Session {
	v, _ := c.Get(sessionContextKey)
	sess, _ := v.(*session.Session)
	return sess
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
