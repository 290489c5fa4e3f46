package auth

import (
	"net/http"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/aetherium-labs/aetherium-backend/internal/users"
)

// WithUser upserts the authenticated caller's profile. It must run after the
// auth middleware. Anonymous callers are not recorded.
func WithUser(userRepo users.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		fuid := UserFirebaseUID(c)
		if fuid == "" || IsAnonymous(c) {
			c.Next()
			return
		}

		u := users.UpsertUser{FirebaseUID: fuid, Email: UserEmail(c)}
		if tok, ok := c.Get(CtxToken); ok {
			if t, ok := tok.(*fbauth.Token); ok {
				fillProfile(&u, t.Claims)
			}
		}
		if _, err := userRepo.EnsureUser(c.Request.Context(), u); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensure user: " + err.Error()})
			return
		}
		c.Next()
	}
}

func fillProfile(u *users.UpsertUser, claims map[string]interface{}) {
	if name, ok := claims["name"].(string); ok {
		u.DisplayName = name
	}
	if pic, ok := claims["picture"].(string); ok {
		u.PhotoURL = pic
	}
}
