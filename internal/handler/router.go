package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/middleware"
)

// Handlers groups the route handlers. Nil handlers leave their routes
// unregistered.
type Handlers struct {
	Transcript    *TranscriptHandler
	Summary       *SummaryHandler
	Vispark       *VisparkHandler
	Channels      *ChannelHandler
	Push          *PushHandler
	Subscriptions *SubscriptionHandler
	Notifications *NotificationHandler
	Admin         *AdminHandler
	Health        *HealthHandler
}

// RouterConfig carries the middleware the router installs.
type RouterConfig struct {
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	AllowedOrigin string
	RateLimiter   *middleware.RateLimiter
	JWT           *middleware.JWTAuth
	APIKeys       *middleware.APIKeyAuth
}

// NewRouter builds the gin engine serving every route.
func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(cfg.Logger), middleware.RequestLogger(cfg.Logger, cfg.Metrics))

	if h.Health != nil {
		r.GET("/health", h.Health.ReadinessProbe)
		r.GET("/health/live", h.Health.LivenessProbe)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	fn := r.Group("/functions/v1", middleware.CORS(cfg.AllowedOrigin))
	if h.Push != nil {
		fn.GET("/youtube-push-callback", h.Push.Verify)
		fn.POST("/youtube-push-callback", h.Push.Receive)
	}

	// CORS aborts preflights before this handler runs.
	fn.OPTIONS("/*path", func(*gin.Context) {})

	jwt := cfg.JWT
	if jwt == nil {
		jwt = middleware.NewJWTAuth("", cfg.Logger)
	}

	user := fn.Group("")
	if cfg.RateLimiter != nil {
		user.Use(cfg.RateLimiter.Middleware())
	}
	user.Use(jwt.Middleware())

	if h.Transcript != nil {
		user.POST("/transcript", h.Transcript.Fetch)
	}
	if h.Summary != nil {
		user.POST("/summary", h.Summary.Summarize)
	}
	if h.Vispark != nil {
		user.POST("/vispark", h.Vispark.Create)
		user.GET("/vispark", h.Vispark.List)
		user.GET("/vispark/:id", h.Vispark.Get)
		user.DELETE("/vispark/:id", h.Vispark.Delete)
	}
	if h.Channels != nil {
		user.POST("/youtube-channel-search", h.Channels.Search)
		user.POST("/youtube-channel-details", h.Channels.Details)
	}

	api := r.Group("/api/v1")
	if h.Subscriptions != nil || h.Notifications != nil {
		authed := api.Group("", jwt.Middleware())
		if h.Subscriptions != nil {
			authed.GET("/subscriptions", h.Subscriptions.List)
			authed.POST("/subscriptions", h.Subscriptions.Create)
			authed.DELETE("/subscriptions/:channelId", h.Subscriptions.Delete)
		}
		if h.Notifications != nil {
			authed.GET("/notifications", h.Notifications.List)
			authed.PATCH("/notifications/:id", h.Notifications.Update)
		}
	}

	if h.Admin != nil && cfg.APIKeys != nil {
		admin := api.Group("/admin", cfg.APIKeys.Middleware())
		admin.GET("/quota", h.Admin.Quota)
		admin.GET("/hub-subscriptions", h.Admin.HubSubscriptions)
		admin.GET("/hub-subscriptions/:id", h.Admin.HubSubscription)
	}

	return r
}
