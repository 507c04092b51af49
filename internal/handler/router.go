package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cemetery-api/internal/middleware"
	"github.com/noah-isme/cemetery-api/internal/models"
)

// AuditFactory builds request audit middleware for an action on a resource.
type AuditFactory func(action, resource, resourceParam string) gin.HandlerFunc

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Plots        *PlotHandler
	Exhumations  *ExhumationHandler
	Reservations *ReservationHandler
	Documents    *DocumentHandler
	Exports      *ExportHandler
	Metrics      *MetricsHandler

	// Auth authenticates the caller; every API route requires it.
	Auth  gin.HandlerFunc
	Audit AuditFactory
}

// Register mounts the public probes on r and the API under prefix.
func (rt Routes) Register(r *gin.Engine, prefix string) {
	if rt.Metrics != nil {
		r.GET("/health", rt.Metrics.Health)
		r.GET("/ready", rt.Metrics.Ready)
		r.GET("/metrics", rt.Metrics.Prometheus)
	}

	audit := rt.Audit
	if audit == nil {
		audit = func(string, string, string) gin.HandlerFunc { return func(c *gin.Context) { c.Next() } }
	}

	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())
	if rt.Auth != nil {
		api.Use(rt.Auth)
	}
	admin := middleware.RequireAdmin()

	if rt.Plots != nil {
		plots := api.Group("/plots")
		plots.GET("", rt.Plots.Search)
		plots.GET("/stats", rt.Plots.Stats)
		plots.GET("/:id", rt.Plots.Get)
		plots.POST("", admin, rt.Plots.Create)
		plots.PUT("/:id", admin, rt.Plots.Update)
		plots.DELETE("/:id", admin, rt.Plots.Delete)
		plots.POST("/:id/clear", admin, rt.Plots.Clear)
	}

	if rt.Documents != nil {
		api.POST("/documents", audit(models.AuditActionDocumentUpload, "document", ""), rt.Documents.Upload)
		api.GET("/documents/:token", rt.Documents.Download)
	}

	if rt.Exhumations != nil {
		ex := api.Group("/exhumations")
		ex.POST("", rt.Exhumations.Submit)
		ex.POST("/validate", rt.Exhumations.Validate)
		ex.GET("/mine", rt.Exhumations.Mine)
		ex.GET("/:id", rt.Exhumations.Get)
		ex.GET("", admin, rt.Exhumations.List)
		ex.POST("/:id/transition", admin, rt.Exhumations.Transition)
	}

	if rt.Reservations != nil {
		res := api.Group("/reservations")
		res.POST("", rt.Reservations.Submit)
		res.GET("/mine", rt.Reservations.Mine)
		res.GET("/:id", rt.Reservations.Get)
		res.POST("/:id/cancel", rt.Reservations.Cancel)
		res.GET("", admin, rt.Reservations.List)
		res.POST("/:id/transition", admin, rt.Reservations.Transition)
	}

	if rt.Exports != nil {
		exports := api.Group("/exports", admin)
		exports.GET("/plots", audit(models.AuditActionExport, "plots", ""), rt.Exports.Plots)
		exports.GET("/exhumations", audit(models.AuditActionExport, "exhumations", ""), rt.Exports.Exhumations)
	}
}
