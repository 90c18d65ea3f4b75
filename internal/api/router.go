package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"invoria/internal/app"
	iauth "invoria/internal/auth"
	"invoria/internal/handlers"
	"invoria/internal/middleware"
	"invoria/internal/services"
)

// Services bundles the constructed service layer handed to the router.
type Services struct {
	JWT      *iauth.JWTService
	Google   *iauth.GoogleService
	Users    *services.UserService
	Accounts *services.EmailAccountService
	Invites  *services.InviteService
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, cfg *app.Config, svcs Services) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svcs.JWT == nil || svcs.Google == nil || svcs.Users == nil || svcs.Accounts == nil || svcs.Invites == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.FrontendURL))
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	r.NoRoute(middleware.NotFoundHandler)

	if cfg.Monitoring.Health.Enabled {
		healthHandler := handlers.NewHealthHandler(db)
		r.GET("/health", healthHandler.Health)
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(svcs.Google, svcs.Users, svcs.JWT)
	inviteHandler := handlers.NewInviteHandler(svcs.Invites, svcs.Accounts)
	accountHandler := handlers.NewEmailAccountHandler(svcs.Google, svcs.Accounts, svcs.Invites)

	// Public auth routes: the callback page posts the authorization code here
	// before any session exists.
	authRoutes := r.Group("/auth/google")
	{
		authRoutes.GET("/login", authHandler.GoogleLogin)
		authRoutes.POST("/exchange", authHandler.Exchange)
	}

	// Public invite routes: opened from emailed links by users without sessions.
	publicInvites := r.Group("/api/invites")
	{
		publicInvites.GET("/validate/:token", inviteHandler.Validate)
		publicInvites.POST("/accept-public", inviteHandler.AcceptPublic)
	}

	// Public OAuth routes for the invited-user mailbox connection flow.
	publicOAuth := r.Group("/api/email-accounts/oauth/:provider")
	{
		publicOAuth.GET("/url-public", accountHandler.AuthURLPublic)
		publicOAuth.POST("/callback-public", accountHandler.CallbackPublic)
	}

	requireAuth := middleware.Auth(svcs.JWT)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	invites := api.Group("/invites")
	{
		invites.POST("/", inviteHandler.CreateShare)
		invites.POST("/email-account", inviteHandler.CreateEmailAccount)
		invites.POST("/accept", inviteHandler.Accept)
		invites.GET("/", inviteHandler.List)
		invites.GET("/:id", inviteHandler.Get)
		invites.DELETE("/:id", inviteHandler.Delete)
	}

	accounts := api.Group("/email-accounts")
	{
		accounts.GET("", accountHandler.List)
		accounts.DELETE("/:id", accountHandler.Delete)
		accounts.GET("/oauth/:provider/url", accountHandler.AuthURL)
		accounts.POST("/oauth/:provider/callback", accountHandler.Callback)
	}

	return r, nil
}
