package middleware

import (
	"context"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/aetherium-labs/aetherium-backend/internal/auth"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
)

// TokenVerifier is satisfied by *firebase auth.Client.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Mode selects how missing credentials are treated.
type Mode string

const (
	// ModeRequired rejects requests without a valid ID token.
	ModeRequired Mode = "firebase"
	// ModeOptional lets requests without a token through under the
	// X-User-Id header or the anonymous uid. Invalid tokens are still rejected.
	ModeOptional Mode = "optional"
)

// FirebaseAuthMiddleware validates Firebase ID tokens and extracts user info
func FirebaseAuthMiddleware(verifier TokenVerifier, mode Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" || verifier == nil {
			if mode != ModeOptional {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing authorization token"})
				return
			}
			uid := strings.TrimSpace(c.GetHeader("X-User-Id"))
			if uid == "" {
				uid = auth.AnonymousUID
			}
			c.Set(auth.CtxFirebaseUID, uid)
			c.Set(auth.CtxAnonymous, true)
			c.Next()
			return
		}

		decodedToken, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			logging.FromContext(c.Request.Context()).LogWarnf("auth", "rejecting token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
			return
		}

		// Store user info in context
		c.Set(auth.CtxFirebaseUID, decodedToken.UID)

		// Extract email from claims if available
		if email, ok := decodedToken.Claims["email"].(string); ok {
			c.Set(auth.CtxEmail, email)
		}

		c.Set(auth.CtxToken, decodedToken)
		c.Next()
	}
}

// extractToken extracts the Bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return strings.TrimSpace(bearerToken[7:])
	}
	return ""
}
