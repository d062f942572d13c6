// Package diag exposes the engine's statistics and invalidation surface
// over HTTP for diagnostics screens and health checks.
package diag

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/offsync/cache-common/store"
)

// Engine is the narrow view of a cache manager the diagnostics surface
// needs. manager.Manager satisfies it for any payload type.
type Engine interface {
	IsNetworkReachable() bool
	DomainStatistics() map[string]store.Statistics
	GlobalStatistics() store.Statistics
	InvalidateByTags(tags []string, domains ...string) int
}

// Handler serves diagnostics requests against an Engine
type Handler struct {
	engine Engine
}

// NewHandler creates a new Handler
func NewHandler(engine Engine) *Handler {
	return &Handler{
		engine: engine,
	}
}

// NewRouter creates a gin router with all diagnostics routes mounted
func NewRouter(engine Engine) *gin.Engine {
	handler := NewHandler(engine)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", handler.GetHealth)
	router.GET("/statistics", handler.GetStatistics)
	router.GET("/statistics/:domain", handler.GetDomainStatistics)
	router.POST("/invalidate", handler.Invalidate)

	return router
}

// GetHealth returns liveness and the current reachability flag
func (handler *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"network_reachable": handler.engine.IsNetworkReachable(),
	})
}

// GetStatistics returns the aggregate and per-domain statistics snapshot
func (handler *Handler) GetStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"global":  handler.engine.GlobalStatistics(),
		"domains": handler.engine.DomainStatistics(),
	})
}

// GetDomainStatistics returns the statistics snapshot of one domain
func (handler *Handler) GetDomainStatistics(c *gin.Context) {
	domain := c.Param("domain")

	statistics, ok := handler.engine.DomainStatistics()[domain]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "unknown domain " + domain,
		})
		return
	}

	c.JSON(http.StatusOK, statistics)
}

// invalidateRequest is the body of an invalidation request
type invalidateRequest struct {
	Tags    []string `json:"tags" binding:"required"`
	Domains []string `json:"domains"`
}

// Invalidate removes entries by tags across the named or all domains
func (handler *Handler) Invalidate(c *gin.Context) {
	request := invalidateRequest{}
	err := c.ShouldBindJSON(&request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	removed := handler.engine.InvalidateByTags(request.Tags, request.Domains...)
	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
	})
}
