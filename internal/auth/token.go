// Package auth identifies the admin behind a request. Tokens are issued by the
// admin console; this service only verifies them.
package auth

import (
	"time"

	"BranchLMS/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContextKey is where the JWT middleware stores *Claims on the echo context.
const ContextKey = "admin"

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	AdminID string `json:"adminId"` // Admin document id, hex
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"` // casbin subject
	jwt.RegisteredClaims
}

// AdminObjectID parses AdminID.
func (c *Claims) AdminObjectID() (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.AdminID)
	if err != nil {
		return primitive.NilObjectID, errors.Wrap(ErrInvalidToken, "adminId is not an object id")
	}
	return id, nil
}

// Actor names the admin in audit entries.
func (c *Claims) Actor() string {
	if c.Email != "" {
		return c.Email
	}
	return c.AdminID
}

type Tokens struct {
	key []byte
}

func NewTokens(cfg *config.Config) *Tokens {
	return &Tokens{key: []byte(cfg.JWTSecret)}
}

// Generate signs claims with HS256, expiring after ttl.
func (t *Tokens) Generate(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString(t.key)
}

// Validate checks signature and expiry and returns the claims.
func (t *Tokens) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.key, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.AdminObjectID(); err != nil {
		return nil, err
	}
	if claims.Role == "" {
		return nil, errors.Wrap(ErrInvalidToken, "role missing")
	}
	return claims, nil
}

// FromContext returns the claims the JWT middleware stored.
func FromContext(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(ContextKey).(*Claims)
	return claims, ok && claims != nil
}

// AdminFromContext returns the claims and the parsed admin id for handlers
// behind the JWT middleware.
func AdminFromContext(c echo.Context) (*Claims, primitive.ObjectID, error) {
	claims, ok := FromContext(c)
	if !ok {
		return nil, primitive.NilObjectID, errors.Wrap(ErrInvalidToken, "no admin claims on request")
	}
	id, err := claims.AdminObjectID()
	if err != nil {
		return nil, primitive.NilObjectID, err
	}
	return claims, id, nil
}
