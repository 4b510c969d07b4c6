package api

import (
	"log/slog"

	"order_go/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the gin engine with middleware, API routes and /metrics.
func NewRouter(h *Handler, metrics *infra.Metrics, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Tracing())
	r.Use(Metrics(metrics))
	r.Use(Logger(slog.Default().With(slog.String("module", "http"))))

	h.RegisterRoutes(r)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return r
}
