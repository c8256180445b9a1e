package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/tenant"
)

const (
	tokenIssuer = "backoffice-api"

	orgIDKey   = "orgID"
	actorIDKey = "actorID"
)

// TenantClaims are the claims of a tenant access token. Subject is the actor.
type TenantClaims struct {
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// GenerateTenantToken signs an access token for actorID acting in orgID.
func GenerateTenantToken(secret []byte, orgID, actorID string, ttl time.Duration) (string, error) {
	if orgID == "" {
		return "", errors.New("organization is required")
	}
	now := time.Now()
	claims := &TenantClaims{
		OrgID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   actorID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseTenantToken validates a tenant access token and returns its claims.
func ParseTenantToken(secret []byte, tokenString string) (*TenantClaims, error) {
	claims := &TenantClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid tenant token")
	}
	if claims.OrgID == "" {
		return nil, errors.New("token carries no organization")
	}
	return claims, nil
}

// TenantMiddleware verifies the bearer token and scopes the request context
// to the organization it names.
func TenantMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Authorization header is required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format"))
			return
		}

		claims, err := ParseTenantToken(key, parts[1])
		if err != nil {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token"))
			return
		}

		ctx := tenant.WithOrg(c.Request.Context(), claims.OrgID)
		ctx = tenant.WithActor(ctx, claims.Subject)
		c.Request = c.Request.WithContext(ctx)

		c.Set(orgIDKey, claims.OrgID)
		c.Set(actorIDKey, claims.Subject)
		c.Next()
	}
}
