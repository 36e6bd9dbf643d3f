package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/models"
)

// Context keys set by the auth middlewares.
const (
	UserIDKey = "userID"
	EmailKey  = "email"
	ClaimsKey = "user"
)

// JWTAuthMiddleware checks for a valid HS256 access token and stores its subject as the user id.
func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims := &models.JwtCustomClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil {
				if errors.Is(err, jwt.ErrSignatureInvalid) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}
			if !token.Valid || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set(ClaimsKey, claims)
			c.Set(UserIDKey, claims.Subject)
			c.Set(EmailKey, claims.Email)
			return next(c)
		}
	}
}

// UserID returns the authenticated user id, or "" outside the auth middlewares.
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}

// Email returns the authenticated user's email claim.
func Email(c echo.Context) string {
	email, _ := c.Get(EmailKey).(string)
	return email
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return token, nil
}
