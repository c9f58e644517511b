package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/meridian/internal/config"
	"github.com/huangang/meridian/internal/services"
	"github.com/huangang/meridian/internal/utils"
	"github.com/huangang/meridian/pkg/logger"
	"github.com/huangang/meridian/pkg/response"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// AuthRequired resolves the caller from the edge identity and makes sure a
// local user exists for it.
func AuthRequired(cfg config.AuthConfig, users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := callerIdentity(c, cfg)
		if err != nil {
			logger.Debug().Err(err).Str("path", logger.RoutePath(c)).Msg("rejected caller identity")
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}

		user, err := users.EnsureUser(identity)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUsername, user.DisplayName)
		c.Next()
	}
}

func callerIdentity(c *gin.Context, cfg config.AuthConfig) (*services.Identity, error) {
	if cfg.DevBypass {
		id := DevIdentity
		return &id, nil
	}

	switch cfg.Mode {
	case config.AuthModeJWT:
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return nil, errNoIdentity
		}
		claims, err := utils.ParseToken(parts[1])
		if err != nil {
			return nil, err
		}
		return &services.Identity{
			Provider:   claims.Provider,
			ExternalID: claims.Subject,
			TenantID:   claims.TenantID,
			Email:      claims.Email,
			Name:       claims.Name,
		}, nil
	default:
		header := c.GetHeader(PrincipalHeader)
		if header == "" {
			return nil, errNoIdentity
		}
		return DecodePrincipal(header)
	}
}

// GetUserID gets the current user ID from context
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		return id.(uint)
	}
	return 0
}

// GetUsername gets the current display name from context
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(ContextUsername); exists {
		return username.(string)
	}
	return ""
}
