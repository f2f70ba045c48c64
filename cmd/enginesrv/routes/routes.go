// Package routes registers every echo.Group against the running
// container.
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/orbitalflow/engine/cmd/enginesrv/container"
	"github.com/orbitalflow/engine/cmd/enginesrv/handlers"
	"github.com/orbitalflow/engine/common/middleware"
)

// Register wires every route group onto e.
func Register(e *echo.Echo, c *container.Container) {
	bpHandler := handlers.NewBlueprintHandler(c)
	execHandler := handlers.NewExecutionHandler(c)
	wsHandler := handlers.NewWSHandler(c)

	var rateLimit echo.MiddlewareFunc
	if c.RateLimiter != nil {
		rateLimit = middleware.GlobalRateLimitMiddleware(c.RateLimiter, 200)
	} else {
		rateLimit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	e.Use(middleware.ExtractUsername())

	api := e.Group("/api/v1", rateLimit)

	blueprints := api.Group("/blueprints")
	blueprints.POST("", bpHandler.CreateBlueprint)
	blueprints.GET("", bpHandler.ListBlueprints)
	blueprints.GET("/:id", bpHandler.GetBlueprint)
	blueprints.PUT("/:id", bpHandler.UpdateBlueprint)
	blueprints.PATCH("/:id", bpHandler.PatchBlueprint)
	blueprints.POST("/:id/executions", execHandler.StartExecution)

	executions := api.Group("/executions")
	executions.GET("/:execID", execHandler.GetExecution)
	executions.POST("/:execID/cancel", execHandler.CancelExecution)

	e.GET("/ws", wsHandler.Stream)
}
