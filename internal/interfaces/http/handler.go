package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"supportdesk/internal/entities"
	"supportdesk/internal/tools"
	"supportdesk/internal/usecases"
)

// Deps carries everything the router needs. Device and Queue may be nil.
type Deps struct {
	Webhook    WebhookConfig
	Jobs       JobQueue
	Queue      QueueStats
	Chat       *usecases.ChatUsecase
	Auth       *usecases.AuthUsecase
	Dashboard  *usecases.DashboardUsecase
	Tools      *tools.Registry
	ToolsKey   string
	Device     DeviceLink
	Health     *HealthHandler
	Middleware *Middleware
	MaxBody    int64
}

func SetupRoutes(r *gin.Engine, d Deps) {
	chat := NewChatHandler(d.Chat)
	webhook := NewWebhookHandler(d.Webhook, d.Jobs)
	toolsHandler := NewToolsHandler(d.Tools)
	dashboard := NewDashboardHandler(d.Dashboard)
	adminHandler := NewAdminHandler(d.Auth, d.Device, d.Queue)

	maxBody := d.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Apply Security Middleware
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(maxBody))
	r.Use(d.Middleware.CORSMiddleware())

	if d.Health != nil {
		r.GET("/api/health", d.Health.Health)
	}

	// Meta webhook; never rate limited so deliveries are not bounced.
	r.GET("/webhook/whatsapp", webhook.Verify)
	r.POST("/webhook/whatsapp", webhook.Receive)
	r.POST("/webhook/evolution", webhook.ReceiveEvolution)

	public := r.Group("/api")
	public.Use(d.Middleware.RateLimitByClient())
	{
		public.POST("/chat", chat.Chat)

		public.POST("/auth/login", func(c *gin.Context) {
			var loginReq struct {
				Username string `json:"username" binding:"required"`
				Password string `json:"password" binding:"required"`
			}
			if err := c.ShouldBindJSON(&loginReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := d.Auth.Login(c.Request.Context(), loginReq.Username, loginReq.Password)
			if err != nil {
				if !errors.Is(err, usecases.ErrInvalidCredentials) {
					log.Error().Err(err).Msg("login failed")
				}
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})
	}

	toolAPI := r.Group("/api/tools")
	toolAPI.Use(APIKeyRequired(d.ToolsKey))
	{
		toolAPI.GET("", toolsHandler.List)
		toolAPI.POST("/:name", toolsHandler.Call)
	}

	// Protected Dashboard Routes
	api := r.Group("/api/dashboard")
	api.Use(d.Middleware.AuthRequired())
	{
		api.GET("/conversations", dashboard.ListConversations)
		api.GET("/conversations/:id/messages", dashboard.ConversationMessages)
		api.PUT("/conversations/:id/status", dashboard.UpdateConversationStatus)
		api.POST("/conversations/:id/reply", dashboard.Reply)

		api.GET("/returns", dashboard.ListReturns)
		api.PUT("/returns/:id/status", dashboard.TransitionReturn)

		api.GET("/promotions", dashboard.ListPromotions)
		api.POST("/promotions", dashboard.CreatePromotion)
		api.PUT("/promotions/:id", dashboard.UpdatePromotion)
		api.DELETE("/promotions/:id", dashboard.DeletePromotion)

		api.GET("/usage", dashboard.Usage)
	}

	// Admin-only Routes
	admin := r.Group("/api/admin")
	admin.Use(d.Middleware.AuthRequired())
	admin.Use(d.Middleware.AdminRequired())
	{
		admin.GET("/users", adminHandler.GetAllUsers)
		admin.POST("/users", func(c *gin.Context) {
			var regReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&regReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			if !ValidSlug(regReq.Username) || len(regReq.Password) < 8 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username or password (min 8 chars)"})
				return
			}
			if err := d.Auth.Register(c.Request.Context(), regReq.Username, regReq.Password); err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusCreated, gin.H{"status": "registered"})
		})

		admin.GET("/config", dashboard.GetAllConfigs)
		admin.POST("/config", dashboard.SetConfig)

		admin.GET("/dead-letters", dashboard.ListDeadLetters)
		admin.POST("/dead-letters/:id/replay", dashboard.ReplayDeadLetter)
		admin.GET("/queue", adminHandler.QueueStats)

		admin.GET("/whatsapp/qr", adminHandler.WhatsAppQR)
		admin.GET("/whatsapp/status", adminHandler.WhatsAppStatus)
		admin.POST("/whatsapp/logout", adminHandler.WhatsAppLogout)
	}
}

// respondError maps usecase and store errors to a status code.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entities.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entities.ErrInvalidTransition), errors.Is(err, usecases.ErrNotReplayable),
		errors.Is(err, usecases.ErrUsernameTaken), errors.Is(err, entities.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, usecases.ErrEmptyReply), errors.Is(err, usecases.ErrInvalidStatus),
		errors.Is(err, usecases.ErrInvalidPromo), errors.Is(err, usecases.ErrSettingRequired):
		status = http.StatusBadRequest
	case errors.Is(err, usecases.ErrNoRecipient):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
