package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/orbitalflow/engine/cmd/enginesrv/container"
	"github.com/orbitalflow/engine/cmd/enginesrv/routes"
	"github.com/orbitalflow/engine/common/bootstrap"
	"github.com/orbitalflow/engine/common/server"
)

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "enginesrv")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap enginesrv: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	c, err := container.New(ctx, components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize container: %v\n", err)
		os.Exit(1)
	}

	if n, err := c.Store.SweepRestarts(ctx); err != nil {
		components.Logger.Error("sweep restarts failed", "error", err)
	} else if n > 0 {
		components.Logger.Warn("swept stale running executions to failed", "count", n)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components)
	routes.Register(e, c)

	startServer(e, components)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

func setupMiddleware(e *echo.Echo) {
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.RequestID())
}

func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{"status": "unhealthy", "error": err.Error()})
		}
		return c.JSON(200, map[string]string{"status": "ok", "service": "enginesrv"})
	})
}

func startServer(e *echo.Echo, components *bootstrap.Components) {
	srv := server.New("enginesrv", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
