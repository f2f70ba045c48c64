package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/orbitalflow/engine/cmd/enginesrv/container"
)

// WSHandler exposes the event hub's upgrade endpoint through echo.
type WSHandler struct {
	c *container.Container
}

func NewWSHandler(c *container.Container) *WSHandler {
	return &WSHandler{c: c}
}

// Stream upgrades the connection and streams lifecycle events for the
// execution_id query parameter until the client disconnects.
func (h *WSHandler) Stream(c echo.Context) error {
	h.c.Hub.ServeHTTP(c.Response(), c.Request())
	return nil
}
