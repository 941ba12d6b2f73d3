package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/clubpay/internal/authorization"
	obscontext "github.com/smallbiznis/clubpay/internal/observability/context"
)

const (
	HeaderActor     = "X-Actor"
	contextActorKey = "actor"
)

// ActorRequired resolves the calling actor from the X-Actor header.
// Authentication happens upstream; the header carries the already verified role.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderActor))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actorType, actorID, err := authorization.ParseActor(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextActorKey, raw)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), actorType, actorID))
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetString(contextActorKey)
		if actor == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
