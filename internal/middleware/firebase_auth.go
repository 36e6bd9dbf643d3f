package middleware

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
)

// IDTokenVerifier is the part of the Firebase auth client the middleware needs.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthMiddleware verifies a Firebase ID token and stores its UID as the user id.
func FirebaseAuthMiddleware(verifier IDTokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			token, err := verifier.VerifyIDToken(c.Request().Context(), idToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
			}

			email, _ := token.Claims["email"].(string)
			c.Set(UserIDKey, token.UID)
			c.Set(EmailKey, email)
			c.Set("firebaseToken", token)
			return next(c)
		}
	}
}

// FirebaseToken returns the verified Firebase token stored by FirebaseAuthMiddleware.
func FirebaseToken(c echo.Context) *auth.Token {
	token, _ := c.Get("firebaseToken").(*auth.Token)
	return token
}
