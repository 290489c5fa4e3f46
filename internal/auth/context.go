package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxEmail       = "email"
	CtxAnonymous   = "anonymous"
	CtxToken       = "firebase_token"

	// AnonymousUID is used in optional mode when the caller sends neither a
	// token nor an X-User-Id header.
	AnonymousUID = "anonymous"
)

// UserFirebaseUID extracts the Firebase UID from the Gin context
// This is set by FirebaseAuthMiddleware
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}

// UserEmail returns the email claim of the caller, if any.
func UserEmail(c *gin.Context) string {
	return c.GetString(CtxEmail)
}

// IsAnonymous reports whether the caller fell back to an anonymous identity.
func IsAnonymous(c *gin.Context) bool {
	return c.GetBool(CtxAnonymous)
}
