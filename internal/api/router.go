package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsPath = "/internal/metrics"

// NewRouter mounts every route. reg is served at /internal/metrics; a nil
// reg disables the endpoint.
func NewRouter(storage *Storage, reg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(storage.Log, metricsPath))

	if reg != nil {
		r.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	meta := r.Group("/api/meta/:entity/modules")
	{
		meta.GET("", MetaListHandler(storage))
		meta.GET("/:module", MetaModuleHandler(storage))
		meta.PUT("/:module", MetaUpsertHandler(storage))
		meta.DELETE("/:module", MetaDeleteHandler(storage))
		meta.GET("/:module/columns/:column/options", LookupOptionsHandler(storage))
	}

	dash := r.Group("/api/dashboard/:entity")
	{
		dash.GET("", DashboardHandler(storage))
		dash.GET("/config", GetDashboardConfigHandler(storage))
		dash.PUT("/config", PutDashboardConfigHandler(storage))
		dash.DELETE("/config", DeleteDashboardConfigHandler(storage))
	}

	admin := r.Group("/api/admin")
	{
		admin.POST("/reload", AdminReloadHandler(storage))
		admin.GET("/lint", AdminLintHandler(storage))
	}

	apiGroup := r.Group("/api/:entity/:module")
	{
		// static service routes first
		apiGroup.POST("/_bulk", BulkCreateHandler(storage))
		apiGroup.POST("/_bulk_delete", BulkDeleteHandler(storage))
		apiGroup.POST("/_batch", BatchHandler(storage))
		apiGroup.GET("/_events", EventsHandler(storage))
		apiGroup.GET("/_views", ListViewsHandler(storage))
		apiGroup.GET("/_views/:name", GetViewHandler(storage))
		apiGroup.PUT("/_views/:name", PutViewHandler(storage))

		apiGroup.GET("", GridHandler(storage))
		apiGroup.POST("", CreateHandler(storage))
		apiGroup.GET("/:id", GetOneHandler(storage))
		apiGroup.PATCH("/:id", UpdatePartialHandler(storage))
		apiGroup.DELETE("/:id", DeleteHandler(storage))
	}

	return r
}
