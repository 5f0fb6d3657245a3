package auth

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codesketch/hub/internal/domain"
)

// IdentityKey is where the middleware stores the verified identity in
// the gin context.
const IdentityKey = "identity"

func extractToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	hdr := c.GetHeader("Authorization")
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// Middleware runs the authentication gate. In hardened mode a missing
// or invalid token rejects the connection. In permissive mode a
// tokenless client gets a guest identity pinned to its cookie session,
// so rate limiting and the participant audit still have a durable id.
func Middleware(m *JWTManager, permissive bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			if !permissive {
				log.Warn().Str("module", "auth").Str("ip", c.ClientIP()).Msg("no token provided")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication token required"})
				return
			}
			sess := sessions.Default(c)
			gid, _ := sess.Get("guest_id").(string)
			if gid == "" {
				gid = uuid.NewString()
				sess.Set("guest_id", gid)
				_ = sess.Save()
			}
			c.Set(IdentityKey, &domain.Identity{ID: gid})
			c.Next()
			return
		}

		identity, err := m.Verify(token)
		if err != nil {
			log.Warn().Err(err).Str("module", "auth").Str("ip", c.ClientIP()).Msg("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		log.Info().Str("module", "auth").Str("user", identity.Email).Msg("user authenticated")
		c.Set(IdentityKey, identity)
		c.Next()
	}
}
