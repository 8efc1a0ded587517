package http

import (
	"github.com/gin-gonic/gin"

	"line-relay/internal/bootstrap"
	"line-relay/internal/transport/http/handler"
	"line-relay/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	webhookHandler := handler.NewWebhookHandler(app.Dispatcher)

	router.StaticFile("/", "web/index.html")
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
	router.POST("/line/webhook", webhookHandler.Receive)

	if !app.Config.AdminEnabled() {
		app.Logger.Info("ADMIN_JWT_SECRET not set, admin api disabled")
		return router
	}

	greetingHandler := handler.NewGreetingHandler(app.Greetings)
	historyHandler := handler.NewHistoryHandler(app.Store, app.TurnEvents)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Admin.JWTSecret))
	v1.POST("/greetings/preview", greetingHandler.Preview)
	v1.POST("/greetings/send", greetingHandler.Send)
	v1.GET("/history/:userId", historyHandler.Get)
	v1.DELETE("/history/:userId", historyHandler.Clear)
	v1.GET("/events", historyHandler.Events)

	return router
}
