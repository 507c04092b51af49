package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
	"github.com/noah-isme/cemetery-api/pkg/response"
)

// ContextUserKey is the gin context key storing the authenticated principal.
const ContextUserKey = "currentUser"

type tokenAuthenticator interface {
	Authenticate(token string) (*models.Principal, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(auth tokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		principal, err := auth.Authenticate(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, principal)
		c.Next()
	}
}

// PrincipalFromContext returns the principal stored by JWT, or nil.
func PrincipalFromContext(c *gin.Context) *models.Principal {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	principal, _ := value.(*models.Principal)
	return principal
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
