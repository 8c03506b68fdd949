package api

import (
	"net/http"

	"github.com/daniil11ru/bustrack/cli/tracker/auth"
	"github.com/gin-gonic/gin"
)

// NewRouter маршруты HTTP: проверка состояния, канал реального времени и справочные запросы
func NewRouter(handler *Handler, authenticator *auth.Authenticator, socket http.Handler, frontendURL string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), Logger(), CORS(frontendURL))

	router.GET("/health", handler.Health)
	router.GET("/socket", gin.WrapH(socket))

	api := router.Group("/api", Authenticate(authenticator))
	{
		api.GET("/buses/:busId/location", handler.GetBusLocation)
		api.GET("/live/stats", RequireRole(auth.RoleAdmin), handler.GetLiveStats)
	}

	return router
}
