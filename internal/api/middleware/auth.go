package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/internal/api/handlers"
	"github.com/Wirlhawk/skillswap-sub000/internal/apperrors"
	"github.com/Wirlhawk/skillswap-sub000/internal/session"
)

// Session resolves the Authorization header into a session and stores it in the
// request context. Requests without credentials pass through with no session; an
// invalid or expired token is rejected.
func Session(provider session.Provider) gin.HandlerFunc {
	if provider == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		sess, err := provider.GetSession(c.Request.Header)
		if err != nil {
			log.Warn().Err(err).Str("request_id", RequestIDFrom(c)).Msg("Invalid session token")
			handlers.WriteError(c, apperrors.Authentication("invalid or expired session"))
			return
		}

		if sess != nil {
			c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), sess))
		}
		c.Next()
	}
}
