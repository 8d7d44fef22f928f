package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rcallen/chatd/internal/models"
	"github.com/rcallen/chatd/internal/user"
)

const userKey = "authUser"

// Identity resolves the caller from the X-Auth-User header set by the
// access gate in front of this service and verifies the account exists.
// Session and credential mechanics are the gate's concern, not ours.
func Identity(users *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetHeader("X-Auth-User")
		if username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-Auth-User header"})
			return
		}
		u, err := users.Lookup(username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// RequireRoot rejects callers without the root role.
func RequireRoot() gin.HandlerFunc {
	return func(c *gin.Context) {
		if caller(c).Role != models.AccountRoot {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "root access required"})
			return
		}
		c.Next()
	}
}

func caller(c *gin.Context) models.User {
	u, _ := c.MustGet(userKey).(models.User)
	return u
}
