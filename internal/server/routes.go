package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/toolbridge/toolbridge/internal/agent"
	"github.com/toolbridge/toolbridge/internal/dispatch"
	"github.com/toolbridge/toolbridge/internal/handler"
	"github.com/toolbridge/toolbridge/internal/middleware"
	"github.com/toolbridge/toolbridge/internal/security"
	"github.com/toolbridge/toolbridge/internal/tools"
	"github.com/toolbridge/toolbridge/internal/upstream"
)

func (s *Server) setupRoutes() (http.Handler, error) {
	cfg := s.cfg

	// ─── Backends ───────────────────────────────────────────────────────────────
	var translator tools.Translator
	upstreamEnabled := cfg.UpstreamBaseURL != "" && cfg.UpstreamAPIKey != ""
	if upstreamEnabled {
		translator = upstream.New(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, cfg.UpstreamModel)
	} else {
		log.Warn().Msg("UPSTREAM_BASE_URL/UPSTREAM_API_KEY not set - translate_text uses the offline table")
	}

	guard, err := security.NewPathGuard(cfg.SandboxRoot)
	if err != nil {
		return nil, err
	}
	auditLogger := security.NewAuditLogger(cfg.EnableAuditLogging)

	dailyPlan, err := tools.NewDailyPlan(cfg.DailyPlanRoot)
	if err != nil {
		return nil, err
	}

	// ─── Tool Registry ──────────────────────────────────────────────────────────
	// Built once here; read-only for the life of the process.
	registry := tools.NewRegistry()
	builtins := []tools.Tool{
		tools.CurrentTimeTool(),
		tools.WeatherTool(cfg.WeatherBaseURL, nil),
		tools.CalculateTool(),
		tools.TranslateTool(translator, cfg.DefaultTargetLang),
		tools.FileInfoTool(guard),
		tools.ListDirectoryTool(guard),
	}
	builtins = append(builtins, dailyPlan.Tools()...)
	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	// ─── Dispatch ───────────────────────────────────────────────────────────────
	executor := dispatch.NewExecutor(time.Duration(cfg.ToolTimeoutSeconds) * time.Second)
	dispatcher := dispatch.NewDispatcher(registry, executor, auditLogger, handler.ServiceName)

	// ─── AI Agent ───────────────────────────────────────────────────────────────
	var toolAgent *agent.Agent
	if cfg.AnthropicAPIKey != "" {
		toolAgent = agent.New(cfg.AnthropicAPIKey, cfg.AgentModel, cfg.AnthropicBaseURL, registry, executor)
	} else {
		log.Warn().Msg("ANTHROPIC_API_KEY not set - AI agent disabled")
	}

	log.Info().
		Strs("tools", registry.Names()).
		Bool("agent_enabled", toolAgent != nil).
		Bool("upstream_enabled", upstreamEnabled).
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Bool("sandbox_restricted", guard.Restricted()).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Msg("service configuration")

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - auth gate disabled")
	}

	// ─── Handlers ───────────────────────────────────────────────────────────────
	healthH := handler.NewHealthHandler(registry, toolAgent != nil, upstreamEnabled, guard.Root())
	toolsH := handler.NewToolsHandler(registry)
	chatH := handler.NewChatHandler(dispatcher)
	agentH := handler.NewAgentHandler(toolAgent, auditLogger, cfg.AgentTimeout)

	// ─── Router ─────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/", healthH.Info)
	r.Get("/health", healthH.Health)
	r.Get("/tools", toolsH.List)

	// Auth + rate limiting for dispatch routes
	apiMiddleware := []func(http.Handler) http.Handler{
		middleware.RateLimit(cfg.RateLimitPerMinute),
	}
	if cfg.EnableAuth && len(cfg.APIKeys) > 0 {
		apiMiddleware = append(apiMiddleware, middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
	}

	r.Group(func(r chi.Router) {
		for _, m := range apiMiddleware {
			r.Use(m)
		}
		r.Post("/v1/chat/completions", chatH.Completions)
		r.Post("/v1/agent", agentH.Chat)
	})

	return r, nil
}
