// Package middleware provides caller identity, validation and error recovery middleware for the Gin web framework.
package middleware

import (
	"context"
	"strings"
	"time"

	"bugtracker/internal/config"
	contextutils "bugtracker/internal/utils"

	"github.com/gin-gonic/gin"
)

// Gin context keys for caller information
const (
	// ActorKey is the key used to store the caller identity on the gin context
	ActorKey = "actor"
	// SessionKey is the key used to store the caller session on the gin context
	SessionKey = "session_id"
)

// ActorContext reads the caller identity from X-Actor and the session from
// X-Session-ID. A missing actor falls back to defaultActor.
func ActorContext(defaultActor string) gin.HandlerFunc {
	if strings.TrimSpace(defaultActor) == "" {
		defaultActor = contextutils.UnknownActor
	}

	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(config.ActorHeader))
		if actor == "" {
			actor = defaultActor
		}
		session := strings.TrimSpace(c.GetHeader(config.SessionHeader))

		ctx := contextutils.WithActor(c.Request.Context(), actor)
		if session != "" {
			ctx = contextutils.WithSession(ctx, session)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Set(ActorKey, actor)
		c.Set(SessionKey, session)
		c.Next()
	}
}

// Actor returns the caller identity set by ActorContext
func Actor(c *gin.Context) string {
	if actor := c.GetString(ActorKey); actor != "" {
		return actor
	}
	return contextutils.GetActorFromContext(c.Request.Context())
}

// Session returns the caller session set by ActorContext, or "" when none was sent
func Session(c *gin.Context) string {
	return c.GetString(SessionKey)
}

// RequestTimeout bounds the request context. Store calls observe the deadline.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
