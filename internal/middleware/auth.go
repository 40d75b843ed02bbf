package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	principalKey   = "principal_id"
	userIDHeader   = "X-User-ID"
	bearerPrefix   = "bearer "
	authHeaderName = "Authorization"
)

// Claims are the JWT claims issued by the identity provider.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Authenticator resolves the authenticated principal of a request.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates an Authenticator for HS256 tokens signed with
// secret. With an empty secret the principal is read from the X-User-ID
// header set by a trusted gateway.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Middleware rejects requests without a principal and stores it in the context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := a.principal(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func (a *Authenticator) principal(r *http.Request) (string, error) {
	if len(a.secret) == 0 {
		id := strings.TrimSpace(r.Header.Get(userIDHeader))
		if id == "" {
			return "", errors.New("missing " + userIDHeader + " header")
		}
		return id, nil
	}

	header := r.Header.Get(authHeaderName)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", errors.New("missing bearer token")
	}

	claims, err := a.ParseToken(strings.TrimSpace(header[len(bearerPrefix):]))
	if err != nil {
		return "", err
	}

	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", errors.New("token has no subject")
}

// ParseToken validates a token and returns its claims.
func (a *Authenticator) ParseToken(token string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// PrincipalID returns the authenticated principal stored by Middleware.
func PrincipalID(c *gin.Context) string {
	return c.GetString(principalKey)
}
