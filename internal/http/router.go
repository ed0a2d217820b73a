package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/artify/contesthub/internal/auth"
	"github.com/artify/contesthub/internal/cache"
	"github.com/artify/contesthub/internal/config"
	"github.com/artify/contesthub/internal/http/handlers"
	"github.com/artify/contesthub/internal/http/middlewares"
	"github.com/artify/contesthub/internal/observability"
	"github.com/artify/contesthub/internal/payments"
	"github.com/artify/contesthub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const approvedListTTL = 30 * time.Second

// rolePolicy is the single authorization table for the protected surface.
// Routes not listed here require authentication only.
func rolePolicy() middlewares.RolePolicy {
	return middlewares.RolePolicy{
		"POST /contests":                     "creator",
		"GET /contests/creator/:email":       "creator",
		"PATCH /contests/:id":                "creator",
		"DELETE /contests/:id":               "creator",
		"PATCH /contests/declare-winner/:id": "creator",

		"GET /admin/contests":         "admin",
		"PATCH /admin/contests/:id":   "admin",
		"DELETE /admin/contests/:id":  "admin",
		"GET /admin/users":            "admin",
		"PATCH /admin/users/role/:id": "admin",
	}
}

func NewRouter(log *slog.Logger, cfg config.Config, pool *pgxpool.Pool, popular *cache.RedisCache) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(prom.GinHandleMiddleware())
	r.Use(otelgin.Middleware("contesthub-api"))
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(1 << 20))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	contestsRepo := postgres.NewContestsRepo(pool, prom)
	registrationsRepo := postgres.NewRegistrationsRepo(pool, prom)
	paymentSessionsRepo := postgres.NewPaymentSessionsRepo(pool, prom, registrationsRepo)
	refreshTokensRepo := postgres.NewRefreshTokensRepo(pool, prom)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	authMW := middlewares.NewAuthMiddleware(jwtManager)

	provider := payments.NewHTTPProvider(cfg.PaymentAPIBase, cfg.PaymentSecretKey)

	// wire up handlers
	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, refreshTokensRepo, cfg)
	usersHandler := handlers.NewUsersHandler(usersRepo)
	contestsHandler := handlers.NewContestsHandler(contestsRepo, approvedListTTL, popular)
	registrationsHandler := handlers.NewRegistrationsHandler(registrationsRepo, contestsRepo, usersRepo, popular)
	adminHandler := handlers.NewAdminHandler(contestsRepo, usersRepo, contestsHandler.InvalidateListings)
	paymentsHandler := handlers.NewPaymentsHandler(
		provider,
		paymentSessionsRepo,
		contestsRepo,
		registrationsRepo,
		cfg.PaymentWebhookSecret,
		cfg.PaymentSuccessURL,
		cfg.PaymentCancelURL,
		prom,
		popular,
	)

	// rate limiters: a tight one on credential endpoints, a loose one elsewhere
	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)
	apiLimiter := middlewares.NewRateLimiter(120, time.Minute)

	// public surface

	authRoutes := r.Group("/auth")
	authRoutes.Use(loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	{
		authRoutes.POST("/signup", authHandler.SignUp)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.Refresh)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	r.GET("/contests", contestsHandler.ListApproved)
	r.GET("/contests/popular", contestsHandler.ListPopular)
	r.GET("/contests/search", contestsHandler.Search)
	r.GET("/contests/:id", contestsHandler.GetByID)

	// provider-facing confirmation paths carry no bearer token
	r.POST("/payments/confirm", paymentsHandler.Confirm)
	r.POST("/payments/webhook", paymentsHandler.Webhook)

	// protected surface

	protected := r.Group("")
	protected.Use(authMW.RequireAuth())
	protected.Use(apiLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	protected.Use(middlewares.EnforcePolicy(rolePolicy(), usersRepo))
	{
		protected.POST("/users", usersHandler.CreateUser)
		protected.GET("/users/:email", usersHandler.GetUser)
		protected.PUT("/users/:email", usersHandler.UpdateProfile)

		protected.POST("/contests", contestsHandler.CreateContest)
		protected.GET("/contests/creator/:email", contestsHandler.ListByCreator)
		protected.PATCH("/contests/:id", contestsHandler.EditContest)
		protected.DELETE("/contests/:id", contestsHandler.DeleteContest)

		protected.PATCH("/contests/register/:id", registrationsHandler.Register)
		protected.POST("/contests/:id/submit-task", registrationsHandler.SubmitTask)
		protected.PATCH("/contests/declare-winner/:id", registrationsHandler.DeclareWinner)
		protected.GET("/contests/submissions/:id", registrationsHandler.ListSubmissions)
		protected.GET("/contests/participants/:id", registrationsHandler.ListParticipants)
		protected.GET("/participated-contests/:email", registrationsHandler.ListParticipated)
		protected.GET("/winning-contests/:email", registrationsHandler.ListWinning)

		protected.POST("/create-checkout-session", paymentsHandler.CreateCheckout)

		protected.GET("/admin/contests", adminHandler.ListContests)
		protected.PATCH("/admin/contests/:id", adminHandler.SetContestStatus)
		protected.DELETE("/admin/contests/:id", adminHandler.DeleteContest)
		protected.GET("/admin/users", adminHandler.ListUsers)
		protected.PATCH("/admin/users/role/:id", adminHandler.SetUserRole)
	}

	return r
}
