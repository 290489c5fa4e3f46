package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/aetherium-labs/aetherium-backend/internal/actions"
	"github.com/aetherium-labs/aetherium-backend/internal/api/http/aiflows"
	"github.com/aetherium-labs/aetherium-backend/internal/assets"
	"github.com/aetherium-labs/aetherium-backend/internal/auth"
	"github.com/aetherium-labs/aetherium-backend/internal/invitations"
	mjhttp "github.com/aetherium-labs/aetherium-backend/internal/mediajobs/http"
	mjservice "github.com/aetherium-labs/aetherium-backend/internal/mediajobs/service"
	projecthttp "github.com/aetherium-labs/aetherium-backend/internal/projects/http"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/service"
	"github.com/aetherium-labs/aetherium-backend/internal/users"
	"github.com/aetherium-labs/aetherium-backend/internal/workspace"
)

type V1Deps struct {
	Users       users.Repository
	Projects    *service.ProjectService
	Actions     *actions.Service
	Invitations *invitations.Service
	Assets      *assets.Service
	Flows       *aiflows.Handler
	Workspaces  *workspace.Handler
	// Jobs is nil when no Redis is configured; the media-job routes are then absent.
	Jobs *mjservice.JobService
}

// RegisterV1 mounts every /api/v1 route on api, which must already carry the
// auth middleware.
func RegisterV1(api *gin.RouterGroup, dep V1Deps) {
	api.Use(auth.WithUser(dep.Users))

	users.NewHandler(dep.Users, auth.CtxFirebaseUID).Register(api.Group("/users"))

	projectsGroup := api.Group("/projects")
	projecthttp.New(dep.Projects).Register(projectsGroup)
	actions.NewHandler(dep.Actions).Register(projectsGroup)

	inv := invitations.NewHandler(dep.Invitations)
	inv.RegisterProjectRoutes(projectsGroup)
	inv.Register(api.Group("/invitations"))

	projecthttp.New(dep.Projects).RegisterShared(api.Group("/shared"))

	dep.Workspaces.Register(api.Group("/workspace"))
	dep.Flows.Register(api.Group("/flows"))
	assets.NewHandler(dep.Assets).Register(api.Group("/clients"))

	if dep.Jobs != nil {
		mjhttp.New(dep.Jobs).Register(api.Group("/media-jobs"))
	}
}
