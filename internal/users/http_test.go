package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo Repository, uid string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if uid != "" {
			c.Set("firebase_uid", uid)
		}
		c.Next()
	})
	NewHandler(repo, "firebase_uid").Register(r.Group("/users"))
	return r
}

func TestHandler_Me(t *testing.T) {
	repo := NewMemoryRepo()
	_, err := repo.EnsureUser(context.Background(), UpsertUser{FirebaseUID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	newTestRouter(repo, "u1").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a@example.com")

	w = httptest.NewRecorder()
	newTestRouter(repo, "").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	newTestRouter(repo, "ghost").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UpdateMe(t *testing.T) {
	repo := NewMemoryRepo()
	_, err := repo.EnsureUser(context.Background(), UpsertUser{FirebaseUID: "u1", Email: "a@example.com", DisplayName: "Old"})
	require.NoError(t, err)
	r := newTestRouter(repo, "u1")

	put := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/users/me", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, put(`{}`).Code)

	w := put(`{"displayName":"New"}`)
	require.Equal(t, http.StatusOK, w.Code)

	u, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "New", u.DisplayName)
	assert.Equal(t, "a@example.com", u.Email)
}
