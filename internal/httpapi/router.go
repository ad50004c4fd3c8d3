package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/shibakov/calroies-info-ms/internal/app"
)

type Handler struct {
	app *app.App
}

// NewRouter builds the gin engine for a and wraps it in a permissive CORS handler.
func NewRouter(a *app.App) http.Handler {
	if a.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := &Handler{app: a}

	r := gin.New()
	r.Use(requestLogger(a.Logger), recovery(a.Logger), noCache())

	r.GET("/health", h.health)

	api := r.Group("/api")
	{
		api.GET("/search", h.search)
		api.POST("/auto-add", h.autoAdd)

		dict := api.Group("/dict")
		dict.POST("/create_via_gpt", h.createViaEstimator)
		dict.POST("/update", h.updateDictEntry)

		logs := api.Group("/log")
		logs.POST("/add_list", h.addList)
		logs.POST("/update_item", h.updateItem)

		api.GET("/stats/daily", h.dailyStats)

		api.GET("/targets", h.getTargets)
		api.POST("/targets", h.setTargets)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	})
	return c.Handler(r)
}
