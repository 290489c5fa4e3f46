package bootstrap

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/aetherium-labs/aetherium-backend/internal/api/http"
	"github.com/aetherium-labs/aetherium-backend/internal/api/http/middleware"
	"github.com/aetherium-labs/aetherium-backend/internal/api/http/routes"
	authmw "github.com/aetherium-labs/aetherium-backend/internal/auth/middleware"
	"github.com/aetherium-labs/aetherium-backend/internal/workspace"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	AllowedOrigins []string
	AuthMode       authmw.Mode
	Verifier       authmw.TokenVerifier
	DB             *pgxpool.Pool
	Redis          *redis.Client
	V1             routes.V1Deps
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(cors.New(corsConfig(dep.AllowedOrigins)))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")
	api.Use(authmw.FirebaseAuthMiddleware(dep.Verifier, dep.AuthMode))
	routes.RegisterV1(api, dep.V1)

	return r
}

// corsConfig allows every origin, without credentials, when the list holds "*".
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID, "X-User-Id", workspace.SessionHeader},
		ExposeHeaders:    []string{middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	}
	return cfg
}
