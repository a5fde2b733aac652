package handlers

import (
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/medcode-academy/assignment-service/internal/config"
	"github.com/medcode-academy/assignment-service/internal/models"
	"github.com/medcode-academy/assignment-service/internal/repositories"
	"github.com/medcode-academy/assignment-service/internal/utils"
)

// CasdoorAuthMiddleware verifies bearer tokens issued by the Casdoor instance
// and resolves the authenticated user.
type CasdoorAuthMiddleware struct {
	client   *casdoorsdk.Client
	userRepo repositories.UserRepository
	logger   utils.Logger
}

func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)
	return &CasdoorAuthMiddleware{client: client, userRepo: userRepo, logger: logger}
}

// AuthMiddleware requires a valid bearer token and populates the gin context
// with user_id, user, user_role and user_email.
func (m *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "authorization token required"})
			return
		}

		claims, err := m.client.ParseJwtToken(token)
		if err != nil {
			utils.GetLogger(c, m.logger).Warn("token validation failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid or expired token"})
			return
		}

		user, err := m.extractUserFromClaims(c, claims)
		if err != nil {
			utils.GetLogger(c, m.logger).Error("failed to resolve user from token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "failed to resolve user"})
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("user_role", user.Role)
		c.Set("user_email", user.Email)
		c.Next()
	}
}

// RequireRoleMiddleware allows only the listed roles. Admins always pass.
func (m *CasdoorAuthMiddleware) RequireRoleMiddleware(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("user_role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "authentication required"})
			return
		}

		userRole, ok := value.(models.UserRole)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Message: "authentication required"})
			return
		}

		if userRole == models.RoleAdmin {
			c.Next()
			return
		}
		for _, role := range roles {
			if userRole == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Message: "insufficient permissions"})
	}
}

// extractUserFromClaims prefers the repository record so role changes made
// after token issuance take effect; falls back to the claims themselves.
func (m *CasdoorAuthMiddleware) extractUserFromClaims(c *gin.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	if claims.Id != "" && m.userRepo != nil {
		user, err := m.userRepo.GetByID(c.Request.Context(), claims.Id)
		if err == nil && user != nil {
			return user, nil
		}
		if err != nil && !repositories.IsNotFoundError(err) {
			utils.GetLogger(c, m.logger).Warn("user lookup failed, using token claims", "user_id", claims.Id, "error", err)
		}
	}
	return userFromClaims(claims), nil
}

func userFromClaims(claims *casdoorsdk.Claims) *models.User {
	role := models.RoleStudent
	if claims.IsAdmin {
		role = models.RoleAdmin
	}
	return &models.User{
		ID:       claims.Id,
		FullName: claims.DisplayName,
		Email:    claims.Email,
		Role:     role,
	}
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
