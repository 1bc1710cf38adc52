// Package binderyecho mounts bindery prerendering and live sessions on an
// Echo instance or group.
//
//	e := echo.New()
//	binderyecho.Mount(e, build)
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	binderyecho.MountGroup(g, build, binderyecho.WithStripPrefix("/app"))
package binderyecho

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/pthm/bindery"
	"github.com/pthm/bindery/lib/bridge"
)

// Option configures Mount and MountGroup.
type Option func(*options)

type options struct {
	livePath string
	strip    string
	log      *slog.Logger
	onError  func(http.ResponseWriter, *http.Request, error)
}

// WithLivePath sets the websocket path for live sessions. Defaults to
// "/_live". An empty path disables live sessions.
func WithLivePath(path string) Option {
	return func(o *options) {
		o.livePath = path
	}
}

// WithStripPrefix removes prefix from request paths before they are
// routed, so a group mounted at "/app" can register "users/:id".
func WithStripPrefix(prefix string) Option {
	return func(o *options) {
		o.strip = prefix
	}
}

// WithLogger sets the logger for the server and the live handler.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithErrorHandler replaces the default status mapping of prerender
// failures.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// Handlers are the handlers mounted by Mount and MountGroup.
type Handlers struct {
	Server *bindery.Server
	Live   *bridge.Handler
}

// Mount serves every GET and HEAD request of e with a fresh App from build
// and live sessions on the live path.
func Mount(e *echo.Echo, build bindery.BuildFunc, opts ...Option) *Handlers {
	h, o := newHandlers(build, opts)
	if h.Live != nil {
		e.GET(o.livePath, wrap(h.Live, o.strip))
	}
	e.Any("/*", wrap(h.Server, o.strip))
	return h
}

// MountGroup is Mount for a group, so pages share the group middleware
// (auth, logging, etc.).
func MountGroup(g *echo.Group, build bindery.BuildFunc, opts ...Option) *Handlers {
	h, o := newHandlers(build, opts)
	if h.Live != nil {
		g.GET(o.livePath, wrap(h.Live, o.strip))
	}
	g.Any("/*", wrap(h.Server, o.strip))
	return h
}

func newHandlers(build bindery.BuildFunc, opts []Option) (*Handlers, *options) {
	o := &options{livePath: "/_live"}
	for _, opt := range opts {
		opt(o)
	}
	h := &Handlers{Server: bindery.NewServer(build, o.log)}
	if o.onError != nil {
		h.Server.OnError = o.onError
	}
	if o.livePath != "" {
		h.Live = bridge.New(build, o.log)
	}
	return h, o
}

func wrap(h http.Handler, strip string) echo.HandlerFunc {
	if strip != "" {
		h = http.StripPrefix(strip, h)
	}
	return echo.WrapHandler(h)
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return binderyecho.Render(c, layout())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}

// RenderApp writes the current document of app to the Echo response.
func RenderApp(c echo.Context, app *bindery.App) error {
	return Render(c, bindery.DocumentComponent(app.Document()))
}
