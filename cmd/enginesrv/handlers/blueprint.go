// Package handlers implements the HTTP surface for blueprint CRUD and
// execution control.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/orbitalflow/engine/cmd/enginesrv/container"
	"github.com/orbitalflow/engine/internal/blueprint"
	"github.com/orbitalflow/engine/internal/orcherr"
)

// BlueprintHandler serves the blueprint CRUD endpoints.
type BlueprintHandler struct {
	c *container.Container
}

func NewBlueprintHandler(c *container.Container) *BlueprintHandler {
	return &BlueprintHandler{c: c}
}

// CreateBlueprint validates and stores a brand-new blueprint at version 1.
// The request body is the blueprint itself; the caller must supply
// X-Version-Lock: __new__ to make the create-vs-update intent explicit.
func (h *BlueprintHandler) CreateBlueprint(c echo.Context) error {
	lock := c.Request().Header.Get("X-Version-Lock")
	if lock != blueprint.NewSentinel {
		return echo.NewHTTPError(http.StatusPreconditionRequired, "X-Version-Lock: __new__ required to create a blueprint")
	}

	var bp blueprint.Blueprint
	if err := c.Bind(&bp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid blueprint body")
	}
	bp.ID = uuid.New()

	if err := bp.Validate(); err != nil {
		return writeErr(c, err)
	}
	if _, err := h.c.Compiler.Compile(&bp); err != nil {
		return writeErr(c, err)
	}
	if err := h.c.Blueprints.Create(&bp); err != nil {
		return writeErr(c, err)
	}

	return c.JSON(http.StatusCreated, &bp)
}

// GetBlueprint returns the current version of a blueprint.
func (h *BlueprintHandler) GetBlueprint(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid blueprint id")
	}
	bp, ok := h.c.Blueprints.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "blueprint not found")
	}
	return c.JSON(http.StatusOK, bp)
}

// ListBlueprints returns every blueprint's current version.
func (h *BlueprintHandler) ListBlueprints(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"blueprints": h.c.Blueprints.List()})
}

// UpdateBlueprint replaces a blueprint's node graph, enforcing the
// optimistic version lock supplied via X-Version-Lock.
func (h *BlueprintHandler) UpdateBlueprint(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid blueprint id")
	}
	existing, ok := h.c.Blueprints.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "blueprint not found")
	}

	if err := checkVersionLockHeader(c, existing); err != nil {
		return err
	}

	var bp blueprint.Blueprint
	if err := c.Bind(&bp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid blueprint body")
	}
	bp.ID = id
	bp.Version = existing.Version
	bp.CreatedAt = existing.CreatedAt

	if err := bp.Validate(); err != nil {
		return writeErr(c, err)
	}
	if _, err := h.c.Compiler.Compile(&bp); err != nil {
		return writeErr(c, err)
	}

	if err := h.c.Blueprints.Update(&bp); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, &bp)
}

// PatchBlueprint applies an RFC 6902 JSON Patch document to a blueprint's
// current version rather than requiring the caller to resend the whole
// graph, enforcing the version lock and the patch-level node-count guard
// before the patched document ever reaches the compiler.
func (h *BlueprintHandler) PatchBlueprint(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid blueprint id")
	}
	existing, ok := h.c.Blueprints.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "blueprint not found")
	}

	if err := checkVersionLockHeader(c, existing); err != nil {
		return err
	}

	var ops []map[string]interface{}
	if err := c.Bind(&ops); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patch document")
	}
	if err := h.c.PatchValidator.ValidateOperations(ops); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	patchJSON, err := json.Marshal(ops)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patch document")
	}
	baseJSON, err := json.Marshal(existing)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to serialize blueprint")
	}

	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to decode patch: "+err.Error())
	}
	patchedJSON, err := patch.Apply(baseJSON)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to apply patch: "+err.Error())
	}

	var bp blueprint.Blueprint
	if err := json.Unmarshal(patchedJSON, &bp); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to decode patched blueprint")
	}
	bp.ID = id
	bp.Version = existing.Version
	bp.CreatedAt = existing.CreatedAt

	if err := bp.Validate(); err != nil {
		return writeErr(c, err)
	}
	if _, err := h.c.Compiler.Compile(&bp); err != nil {
		return writeErr(c, err)
	}

	if err := h.c.Blueprints.Update(&bp); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, &bp)
}

// checkVersionLockHeader distinguishes an absent X-Version-Lock header
// (412 Precondition Failed is wrong here since there's nothing to
// precondition on yet — 428 Precondition Required tells the caller to send
// the header at all)
// from a present header that simply doesn't match (409, via
// CheckVersionLock/writeErr).
func checkVersionLockHeader(c echo.Context, existing *blueprint.Blueprint) error {
	lock := c.Request().Header.Get("X-Version-Lock")
	if lock == "" {
		return echo.NewHTTPError(http.StatusPreconditionRequired, "X-Version-Lock header is required")
	}
	if err := existing.CheckVersionLock(lock); err != nil {
		return writeErr(c, err)
	}
	return nil
}

// writeErr maps an *orcherr.Error to an HTTP status the way the invariant
// it violates implies; any other error falls back to 500.
func writeErr(c echo.Context, err error) error {
	var oerr *orcherr.Error
	if !errors.As(err, &oerr) {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}

	status := http.StatusInternalServerError
	switch oerr.Kind {
	case orcherr.KindValidation, orcherr.KindCircularDependency, orcherr.KindDimensionMismatch:
		status = http.StatusBadRequest
	case orcherr.KindVersionConflict:
		status = http.StatusConflict
	case orcherr.KindTimeout:
		status = http.StatusGatewayTimeout
	case orcherr.KindCancelled:
		status = http.StatusConflict
	case orcherr.KindBudgetExceeded:
		status = http.StatusTooManyRequests
	}
	return c.JSON(status, map[string]any{
		"error":     oerr.Kind,
		"message":   oerr.Message,
		"node_id":   oerr.NodeID,
		"retriable": oerr.Retriable,
	})
}
