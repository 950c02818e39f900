package bridge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientCounter reports how many sessions are live. *core.Registry
// satisfies it.
type ClientCounter interface {
	Count() int
}

// App is the Echo application hosting the WebSocket bridge, the health
// probe, and the Prometheus scrape endpoint.
type App struct {
	echo     *echo.Echo
	sessions ClientCounter
}

// NewApp constructs the Echo app and registers its routes.
func NewApp(sessions ClientCounter, ws *WSHandler) *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	a := &App{echo: e, sessions: sessions}
	e.GET("/health", a.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	ws.Register(e)
	return a
}

// Echo exposes the underlying Echo instance for tests.
func (a *App) Echo() *echo.Echo {
	return a.echo
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (a *App) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := a.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.echo.Shutdown(shutCtx)
		return nil
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

func (a *App) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Clients: a.sessions.Count(),
	})
}
