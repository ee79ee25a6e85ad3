package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/premiosplatzi/polls/internal/auth"
	"github.com/premiosplatzi/polls/internal/models"
	"github.com/premiosplatzi/polls/pkg/response"
)

const claimsKey = "polls.claims"

var (
	errNoCredentials = errors.New("missing authorization header")
	errBadScheme     = errors.New("authorization header must be \"Bearer <token>\"")
)

// JWT authenticates the request from its bearer token. The claims are available to later
// handlers through CurrentUser.
func JWT(tokens *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}
		claims, err := tokens.Validate(raw)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// CurrentUser returns the claims JWT stored on c.
func CurrentUser(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// RequireEditor lets through only accounts allowed to author questions. Must run after JWT.
func RequireEditor() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !claims.Role.CanAuthor() {
			response.Forbidden(c, "only editors can author questions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole lets through the listed roles only. Must run after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "insufficient permissions")
		c.Abort()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errBadScheme
	}
	return token, nil
}
