package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	appErr "gavel/pkg/errors"
	"gavel/pkg/utils/contextkey"
	"gavel/pkg/utils/response"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID int64
	Role   string
}

// RoleAdmin gates the admin route group.
const RoleAdmin = "admin"

// AuthConfig holds JWT validation settings.
type AuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Authenticator validates bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	if cfg.Secret == "" {
		return nil, appErr.ValidationError("secret", "required")
	}
	return &Authenticator{secret: []byte(cfg.Secret), issuer: cfg.Issuer}, nil
}

type tokenClaims struct {
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Authenticate validates a raw token and returns the caller identity.
func (a *Authenticator) Authenticate(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, appErr.New(appErr.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, appErr.New(appErr.TokenExpired)
		}
		return Identity{}, appErr.New(appErr.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Identity{}, appErr.New(appErr.TokenInvalid)
	}
	if a.issuer != "" && claims.Issuer != a.issuer {
		return Identity{}, appErr.New(appErr.TokenInvalid)
	}
	if claims.TokenType != "access" {
		return Identity{}, appErr.New(appErr.TokenInvalid)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, appErr.New(appErr.TokenInvalid)
	}
	return Identity{UserID: userID, Role: claims.Role}, nil
}

// Auth enforces JWT validation for protected routes and stamps the caller
// into the request context for downstream logs.
func Auth(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		identity, err := auth.Authenticate(token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Set("user_id", identity.UserID)
		c.Set("user_role", identity.Role)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole gates a route group on the authenticated role. Must run after
// Auth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(c.GetString("user_role"), role) {
			response.AbortWithErrorCode(c, appErr.PermissionDenied, "insufficient role")
			return
		}
		c.Next()
	}
}

// CallerID returns the authenticated user id stamped by Auth.
func CallerID(c *gin.Context) int64 {
	return c.GetInt64("user_id")
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
