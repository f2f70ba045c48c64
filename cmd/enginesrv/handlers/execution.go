package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/orbitalflow/engine/cmd/enginesrv/container"
	"github.com/orbitalflow/engine/common/middleware"
	"github.com/orbitalflow/engine/common/ratelimit"
	"github.com/orbitalflow/engine/internal/store"
)

// ExecutionHandler serves run start/status/cancel endpoints.
type ExecutionHandler struct {
	c *container.Container
}

func NewExecutionHandler(c *container.Container) *ExecutionHandler {
	return &ExecutionHandler{c: c}
}

type startExecutionRequest struct {
	Inputs map[string]any `json:"inputs"`
}

// StartExecution compiles the named blueprint's current version and runs
// it synchronously to completion, returning the final execution record.
// Callers that want progress as it happens should subscribe over the
// websocket hub instead of polling this endpoint.
func (h *ExecutionHandler) StartExecution(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid blueprint id")
	}
	bp, ok := h.c.Blueprints.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "blueprint not found")
	}

	var req startExecutionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if h.c.RateLimiter != nil {
		if username := middleware.GetUsername(c); username != "" {
			profile := ratelimit.InspectBlueprint(bp.Nodes)
			result, err := h.c.RateLimiter.CheckTieredLimit(c.Request().Context(), username, profile.Tier)
			if err == nil && !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":               "tiered_rate_limit_exceeded",
					"tier":                profile.Tier.String(),
					"retry_after_seconds": result.RetryAfterSeconds,
				})
			}
		}
	}

	cg, err := h.c.Compiler.Compile(bp)
	if err != nil {
		return writeErr(c, err)
	}

	rec, err := h.c.Engine.Run(c.Request().Context(), cg, req.Inputs)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// GetExecution returns the current state of a previously started execution.
func (h *ExecutionHandler) GetExecution(c echo.Context) error {
	id, err := uuid.Parse(c.Param("execID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid execution id")
	}
	rec, err := h.c.Store.Get(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

type cancelExecutionRequest struct {
	Reason string `json:"reason"`
}

// CancelExecution marks a still-running execution cancelled. It does not
// interrupt an in-flight node; the node's own context is cancelled only
// when the caller's HTTP request context is, which the engine already
// observes mid-run.
func (h *ExecutionHandler) CancelExecution(c echo.Context) error {
	id, err := uuid.Parse(c.Param("execID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid execution id")
	}
	var req cancelExecutionRequest
	_ = c.Bind(&req)
	if req.Reason == "" {
		req.Reason = "cancelled by caller"
	}

	rec, err := h.c.Store.TransitionExecution(c.Request().Context(), id, store.StatusCancelled, req.Reason)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}
