// Package httpapi is the HTTP ingress: the endpoint an application
// backend POSTs broadcast requests to.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gosocket/gosocket"
	"github.com/gosocket/gosocket/internal/metrics"
)

// Broadcaster fans a validated request out to its targets.
type Broadcaster interface {
	Broadcast(ctx context.Context, req *gosocket.BroadcastRequest) error
}

// BroadcastFunc adapts a function to Broadcaster.
type BroadcastFunc func(ctx context.Context, req *gosocket.BroadcastRequest) error

func (f BroadcastFunc) Broadcast(ctx context.Context, req *gosocket.BroadcastRequest) error {
	return f(ctx, req)
}

// Config configures the ingress routes.
type Config struct {
	// Path is the broadcast endpoint path. Empty means
	// gosocket.DefaultBroadcastPath.
	Path string

	// Token guards the endpoint. Empty disables the check, for setups
	// that terminate auth in front of the server.
	Token string
}

// NewEngine builds the gin engine serving the ingress routes.
func NewEngine(cfg Config, b Broadcaster) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	path := cfg.Path
	if path == "" {
		path = gosocket.DefaultBroadcastPath
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST(path, requireToken(cfg.Token), func(c *gin.Context) {
		var req gosocket.BroadcastRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if err := b.Broadcast(c.Request.Context(), &req); err != nil {
			switch {
			case errors.Is(err, gosocket.ErrEventRequired),
				errors.Is(err, gosocket.ErrTargetRequired),
				errors.Is(err, gosocket.ErrUnknownBroadcastType):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "broadcast failed"})
			}
			return
		}

		metrics.Mark("ingress.broadcasts", 1)
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	})

	return r
}

// requireToken checks the Authorization header against the configured
// ingress token. A missing or mismatched token yields 401 before the
// body is read.
func requireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := bearerToken(c.GetHeader("Authorization"))
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			metrics.Mark("ingress.unauthorized", 1)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func bearerToken(authz string) string {
	authz = strings.TrimSpace(authz)
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return authz
}
