package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aetherium-labs/aetherium-backend/config"
	"github.com/aetherium-labs/aetherium-backend/internal/actions"
	"github.com/aetherium-labs/aetherium-backend/internal/api/http/aiflows"
	"github.com/aetherium-labs/aetherium-backend/internal/api/http/routes"
	"github.com/aetherium-labs/aetherium-backend/internal/assets"
	authmw "github.com/aetherium-labs/aetherium-backend/internal/auth/middleware"
	"github.com/aetherium-labs/aetherium-backend/internal/flows"
	"github.com/aetherium-labs/aetherium-backend/internal/invitations"
	"github.com/aetherium-labs/aetherium-backend/internal/llm"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
	mjrepo "github.com/aetherium-labs/aetherium-backend/internal/mediajobs/repository"
	mjservice "github.com/aetherium-labs/aetherium-backend/internal/mediajobs/service"
	"github.com/aetherium-labs/aetherium-backend/internal/projects/service"
	"github.com/aetherium-labs/aetherium-backend/internal/workspace"
)

// JanitorSchedule expires stale media jobs once a minute.
const JanitorSchedule = "0 * * * * *"

// App is the assembled API process.
type App struct {
	Router     *gin.Engine
	Backends   *Backends
	Flows      *flows.Service
	Workspaces *workspace.Registry
	Jobs       *mjservice.JobService
	janitor    *cron.Cron
}

// NewApp builds every service from cfg. llmClient may be nil, in which case
// a Gemini client is created from cfg.AI.
func NewApp(ctx context.Context, cfg *config.Config, llmClient llm.Client) (*App, error) {
	b, err := OpenBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Backends: b}

	if llmClient == nil {
		llmClient, err = llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey:     cfg.AI.APIKey,
			Vertex:     cfg.AI.Backend == "vertex",
			Project:    cfg.AI.Project,
			Location:   cfg.AI.Location,
			TextModel:  cfg.AI.TextModel,
			ImageModel: cfg.AI.ImageModel,
			TTSModel:   cfg.AI.TTSModel,
			VideoModel: cfg.AI.VideoModel,
			RateLimit:  cfg.AI.RateLimit,
			RateBurst:  cfg.AI.RateBurst,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
	}

	prompts, err := LoadPrompts(cfg.AI.PromptsFile)
	if err != nil {
		b.Close()
		return nil, err
	}
	app.Flows, err = flows.New(llmClient,
		flows.WithPrompts(prompts),
		flows.WithPollPolicy(flows.PollPolicy{
			Interval:    cfg.Video.PollInterval,
			MaxAttempts: cfg.Video.MaxAttempts,
			Timeout:     cfg.Video.Timeout,
		}),
	)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("flows: %w", err)
	}

	projects := service.NewProjectService(b.Projects)
	app.Workspaces = workspace.NewRegistry(projects, workspace.RegistryOptions{
		Concurrency:     workspace.Concurrency(cfg.Sync.Concurrency),
		SessionTTL:      cfg.Sync.SessionTTL,
		CleanupInterval: time.Minute,
	})

	if b.Redis != nil {
		// a job may run for the whole poll budget plus upload time
		budget := cfg.Video.Timeout + 2*time.Minute
		app.Jobs = mjservice.NewJobService(mjrepo.NewJobRepository(b.Redis), app.Flows, b.Blobs, budget)
		if app.janitor, err = app.Jobs.StartJanitor(JanitorSchedule); err != nil {
			b.Close()
			return nil, fmt.Errorf("media job janitor: %w", err)
		}
	} else {
		logging.L().Warn("REDIS_ADDR not set: media jobs disabled, revalidation signals stay in-process")
	}

	for _, w := range cfg.Warnings() {
		logging.L().Warn(w)
	}

	var verifier authmw.TokenVerifier
	if b.AuthClient != nil {
		verifier = b.AuthClient
	}

	app.Router = BuildRouter(RouterDeps{
		ServiceName:    cfg.App.ServiceName,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthMode:       authmw.Mode(cfg.Server.AuthMode),
		Verifier:       verifier,
		DB:             b.Pool,
		Redis:          b.Redis,
		V1: routes.V1Deps{
			Users:       b.Users,
			Projects:    projects,
			Actions:     actions.New(projects, b.Bus, app.Workspaces),
			Invitations: invitations.NewService(b.Invitations, projects, b.Resolver),
			Assets:      assets.NewService(b.Assets, b.Blobs),
			Flows:       aiflows.NewHandler(app.Flows),
			Workspaces:  workspace.NewHandler(app.Workspaces, b.Bus),
			Jobs:        app.Jobs,
		},
	})
	return app, nil
}

// Shutdown stops background work, flushes open workspaces and closes the
// backends, in that order.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.janitor != nil {
		<-a.janitor.Stop().Done()
	}
	if a.Jobs != nil {
		if err := a.Jobs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("media jobs: %w", err))
		}
	}
	if err := a.Workspaces.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("workspaces: %w", err))
	}
	if err := a.Backends.Close(); err != nil {
		errs = append(errs, fmt.Errorf("backends: %w", err))
	}
	err := errors.Join(errs...)
	if err != nil {
		logging.L().Warn("shutdown incomplete", zap.Error(err))
	}
	return err
}
