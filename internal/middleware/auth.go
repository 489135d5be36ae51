package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// Auth returns a gin middleware that validates a JWT bearer token and stores
// the caller's identity ("user_id", and "member_id" when the claim is
// present) in the gin context.
//
// Browser websocket clients cannot set the Authorization header on the
// upgrade request, so a "token" query parameter is accepted as a fallback.
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else if errors.Is(err, jwt.ErrTokenMalformed) {
				logrus.Warnf("Auth middleware: Malformed token format: %v", err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			} else {
				logrus.WithError(err).Warn("Auth middleware: Error extracting token")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Could not process token"})
			}
			c.Abort()
			return
		}

		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Invalid token")

			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) {
				if validationError.Errors&jwt.ValidationErrorExpired != 0 {
					logCtx.Warn("Reason: Token is expired")
				}
				if validationError.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
					logCtx.Warn("Reason: Token signature is invalid")
				}
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, ok := uintClaim(claims, "user_id")
		if !ok {
			logrus.Error("Auth middleware: 'user_id' claim missing or invalid in token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Token processing error: invalid user_id"})
			c.Abort()
			return
		}
		c.Set("user_id", userID)

		// member_id is optional: dispatchers without a phone-queue member
		// record still get an authenticated session.
		if memberID, ok := uintClaim(claims, "member_id"); ok {
			c.Set("member_id", memberID)
		}

		logrus.WithField("user_id", userID).Debug("Auth middleware: User authenticated via JWT")
		c.Next()
	}
}

// ErrMissingAuthHeader indicates no credentials were supplied at all.
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// extractToken pulls the bearer token from the Authorization header, falling
// back to the "token" query parameter for websocket upgrades.
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// validateToken parses and verifies a JWT token string.
func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}

// uintClaim reads a numeric JWT claim as uint. JWT numbers decode as
// float64, so the value is range-checked before conversion.
func uintClaim(claims jwt.MapClaims, name string) (uint, bool) {
	raw, ok := claims[name]
	if !ok {
		return 0, false
	}
	f, ok := raw.(float64)
	if !ok || f <= 0 || f != float64(uint(f)) {
		return 0, false
	}
	return uint(f), true
}
