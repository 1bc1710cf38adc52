package bindery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"runtime/debug"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/net/html"

	"github.com/pthm/bindery/internal/logging"
	"github.com/pthm/bindery/lib/directive"
	"github.com/pthm/bindery/lib/dom"
	"github.com/pthm/bindery/lib/encoding"
	"github.com/pthm/bindery/lib/expr"
	"github.com/pthm/bindery/lib/listen"
	"github.com/pthm/bindery/lib/render"
	"github.com/pthm/bindery/lib/route"
	"github.com/pthm/bindery/lib/script"
	"github.com/pthm/bindery/lib/views"
)

// DefaultDocument is the document an App starts with when none is given.
const DefaultDocument = `<!DOCTYPE html><html><head></head><body><main b-view></main></body></html>`

// Factory builds a fresh controller. The result must be a pointer to a
// struct embedding *Controller.
type Factory func() any

// Options configures New. Zero values fall back to Config or defaults.
type Options struct {
	Config   Config
	Logger   *slog.Logger
	Document *dom.Document

	HTTP    HTTPCollaborator
	Storage StorageCollaborator
	Auth    AuthCollaborator
	Views   ViewFetcher

	Localizer  *i18n.Localizer
	Transforms map[string]render.Transform
}

// Slot is one side of the navigation context.
type Slot struct {
	URI        string
	Controller any
}

// NavContext holds the current and previous navigation.
type NavContext struct {
	Current  Slot
	Previous Slot
}

// App routes addresses to controllers and drives their lifecycle over one
// document. An App is not safe for concurrent use: every call must come
// from one goroutine at a time.
type App struct {
	cfg     Config
	log     *slog.Logger
	doc     *dom.Document
	matcher *route.Matcher
	render  *render.Engine
	listen  *listen.Engine
	fridge  *Fridge
	codec   *encoding.Codec
	nav     NavContext
	current *Controller

	http    HTTPCollaborator
	storage StorageCollaborator
	auth    AuthCollaborator
	views   ViewFetcher

	middleware map[string]route.Handler

	// OnError is called with every HandlerError. The default logs it.
	OnError func(error)
}

// New creates an App. It fails with a ConfigurationError when the
// options are inconsistent and with a CollaboratorError when a persisted
// fridge cannot be restored.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		lv := new(slog.LevelVar)
		lv.Set(logging.ParseLevel(cfg.LogLevel))
		if cfg.Debug {
			lv.Set(slog.LevelDebug)
		}
		log = logging.New(os.Stderr, lv)
	}
	log = log.With("app", cfg.Name)

	doc := opts.Document
	if doc == nil {
		var err error
		if doc, err = dom.ParseString(DefaultDocument); err != nil {
			return nil, &ConfigurationError{Op: "parse document", Err: err}
		}
	}

	a := &App{
		cfg:        cfg,
		log:        log,
		doc:        doc,
		matcher:    route.New(),
		render:     render.New(log.With("component", "render")),
		listen:     listen.New(log.With("component", "listen")),
		fridge:     NewFridge(),
		http:       opts.HTTP,
		storage:    opts.Storage,
		auth:       opts.Auth,
		views:      opts.Views,
		middleware: make(map[string]route.Handler),
	}
	a.OnError = func(err error) {
		a.log.Error("handler failed", "err", err)
	}

	if cfg.AbortOnError {
		a.matcher.Policy = route.AbortOnError
	}
	a.matcher.Strict = cfg.StrictRoutes
	a.matcher.OnRedirect = func(tx *route.Transaction, from, to string) {
		a.log.Debug("redirect", "uri", tx.URI, "from", from, "to", to)
	}

	a.render.PhaseDelay = cfg.PhaseDelay.Duration
	if cfg.MaxRepeat > 0 {
		a.render.MaxRepeat = cfg.MaxRepeat
	}
	for name, fn := range opts.Transforms {
		a.render.Transforms[name] = fn
	}
	localizer := opts.Localizer
	if localizer == nil && cfg.LocalesDir != "" {
		bundle, err := render.LoadBundle(cfg.LocalesDir, cfg.Language)
		if err != nil {
			return nil, &ConfigurationError{Op: "load locales", Err: err}
		}
		localizer = i18n.NewLocalizer(bundle, cfg.Language)
	}
	if localizer != nil {
		a.render.SetLocalizer(localizer)
	}

	a.listen.Navigate = a.Navigate
	if cfg.InlineScripts == "goja" {
		a.listen.Script = script.New(log.With("component", "script"))
	}

	if a.views == nil && cfg.ViewsDir != "" {
		a.views = views.NewCached(views.NewDir(cfg.ViewsDir))
	}

	if cfg.PersistFridge {
		if a.storage == nil {
			return nil, &ConfigurationError{Op: "persist fridge", Err: errors.New("no storage collaborator")}
		}
		key := cfg.SnapshotKey
		if key == "" {
			key = cfg.Name
		}
		codec, err := encoding.NewCodec([]byte(key))
		if err != nil {
			return nil, &ConfigurationError{Op: "snapshot codec", Err: err}
		}
		a.codec = codec
		if err := a.fridge.Restore(ctx, a.storage, codec, cfg.SealSnapshots); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Config returns the App configuration.
func (a *App) Config() Config { return a.cfg }

// Logger returns the App logger.
func (a *App) Logger() *slog.Logger { return a.log }

// Document returns the live document.
func (a *App) Document() *dom.Document { return a.doc }

// Fridge returns the shared fridge.
func (a *App) Fridge() *Fridge { return a.fridge }

// Matcher returns the route table.
func (a *App) Matcher() *route.Matcher { return a.matcher }

// Nav returns the navigation context.
func (a *App) Nav() NavContext { return a.nav }

// Current returns the active controller, or nil.
func (a *App) Current() any { return a.nav.Current.Controller }

// Sweeps returns the number of completed render sweeps.
func (a *App) Sweeps() uint64 { return a.render.Sweeps() }

// Use names a middleware so route tables can refer to it.
func (a *App) Use(name string, h route.Handler) {
	a.middleware[name] = h
}

// Route registers pattern with middleware followed by the activation of
// the controller built by factory.
func (a *App) Route(pattern string, factory Factory, middleware ...route.Handler) error {
	if factory == nil {
		return &ConfigurationError{Op: "route " + pattern, Err: errors.New("nil factory")}
	}
	chain := append(append([]route.Handler(nil), middleware...), a.activation(factory))
	return configError("route "+pattern, a.matcher.Register(pattern, chain...))
}

// Redirect makes from run the chain registered for to.
func (a *App) Redirect(from, to string) error {
	return configError("redirect "+from, a.matcher.Redirect(from, to))
}

// NotFound registers the controller activated when nothing matches.
func (a *App) NotFound(factory Factory, middleware ...route.Handler) error {
	chain := append(append([]route.Handler(nil), middleware...), a.activation(factory))
	return configError("not found", a.matcher.NotFound(chain...))
}

// Always registers handlers run after every navigation.
func (a *App) Always(handlers ...route.Handler) error {
	return configError("always", a.matcher.Always(handlers...))
}

// Navigate runs the route chain for uri. Handler failures go to OnError;
// CollaboratorErrors are returned joined.
func (a *App) Navigate(ctx context.Context, uri string) error {
	tx, err := a.matcher.Run(ctx, uri)
	a.log.Debug("navigation", "uri", uri, "pattern", tx.Pattern, "elapsed", tx.Elapsed)

	var returned []error
	for _, e := range flatten(err) {
		if IsCollaboratorError(e) || errors.Is(e, context.Canceled) || errors.Is(e, context.DeadlineExceeded) {
			returned = append(returned, e)
			continue
		}
		a.report(&HandlerError{Stage: "route " + uri, Err: e})
	}
	return errors.Join(returned...)
}

// Back navigates to the previous address.
func (a *App) Back(ctx context.Context) error {
	if a.nav.Previous.URI == "" {
		return ErrNoHistory
	}
	return a.Navigate(ctx, a.nav.Previous.URI)
}

// Reload navigates to the current address again.
func (a *App) Reload(ctx context.Context) error {
	if a.nav.Current.URI == "" {
		return ErrNoHistory
	}
	return a.Navigate(ctx, a.nav.Current.URI)
}

// Dispatch delivers an event to the document.
func (a *App) Dispatch(target *html.Node, ev *dom.Event) *dom.Event {
	return a.doc.Dispatch(target, ev)
}

// SaveFridge persists the fridge when persistence is configured.
func (a *App) SaveFridge(ctx context.Context) error {
	if a.codec == nil || a.storage == nil {
		return nil
	}
	return a.fridge.Save(ctx, a.storage, a.codec, a.cfg.SealSnapshots)
}

// Close destroys the active controller and persists the fridge.
func (a *App) Close(ctx context.Context) error {
	a.teardown(ctx)
	a.nav = NavContext{}
	return a.SaveFridge(ctx)
}

// Outlet returns the element views load into, or nil.
func (a *App) Outlet() *html.Node {
	if a.cfg.Outlet != "" {
		return a.doc.ByID(a.cfg.Outlet)
	}
	nodes := dom.WithAttr(a.doc.Root, directive.View)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func (a *App) report(err error) {
	if a.OnError != nil {
		a.OnError(err)
	}
}

// activation builds the route handler that replaces the active
// controller with one from factory.
func (a *App) activation(factory Factory) route.Handler {
	return func(ctx context.Context, tx *route.Transaction) error {
		a.teardown(ctx)

		inst := factory()
		c, err := a.inject(inst, tx)
		if err != nil {
			return err
		}

		a.nav.Previous = a.nav.Current
		a.nav.Current = Slot{URI: tx.URI, Controller: inst}
		a.current = c
		return a.activate(ctx, c, tx)
	}
}

// inject finds the embedded *Controller of inst, allocating it if nil,
// and fills in the cross-cutting properties.
func (a *App) inject(inst any, tx *route.Transaction) (*Controller, error) {
	val := reflect.ValueOf(inst)
	if val.Kind() != reflect.Ptr || val.IsNil() || val.Elem().Kind() != reflect.Struct {
		return nil, &ConfigurationError{Op: "controller", Err: fmt.Errorf("%T: %w", inst, ErrNoController)}
	}
	field, found := findEmbeddedController(val.Elem())
	if !found {
		return nil, &ConfigurationError{Op: "controller", Err: fmt.Errorf("%T: %w", inst, ErrNoController)}
	}
	if field.IsNil() {
		field.Set(reflect.ValueOf(&Controller{}))
	}
	c := field.Interface().(*Controller)

	name := strings.TrimPrefix(fmt.Sprintf("%T", inst), "*")
	*c = Controller{
		Name:      a.cfg.Name,
		Debug:     a.cfg.Debug,
		Log:       a.log.With("controller", name),
		Model:     NewModel(),
		Fridge:    a.fridge,
		Tx:        tx,
		HTTP:      a.http,
		Storage:   a.storage,
		Auth:      a.auth,
		Views:     a.views,
		listeners: &listen.Registry{},
		resolver:  expr.NewResolver(a.log.With("component", "expr")),
		app:       a,
		self:      inst,
	}
	c.Model.resolver = c.resolver
	return c, nil
}

// findEmbeddedController finds the embedded *Controller field.
func findEmbeddedController(val reflect.Value) (reflect.Value, bool) {
	want := reflect.TypeOf((*Controller)(nil))
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == want {
			return val.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// activate runs Load, Init, Render and PostRender. Hook failures are
// reported and never stop later hooks; view fetch failures are returned.
// A hook that navigates replaces c, and activation stops there.
func (a *App) activate(ctx context.Context, c *Controller, tx *route.Transaction) error {
	var collabErr error
	replaced := func() bool { return a.current != c }

	c.state = Loading
	if h, ok := c.self.(Loader); ok {
		a.hook(c, "load", func() error { return h.Load(ctx, tx) })
		if replaced() {
			return nil
		}
	}
	if v, ok := c.self.(Viewer); ok {
		collabErr = a.loadView(ctx, v.View())
	}

	c.state = Initializing
	if h, ok := c.self.(Initializer); ok {
		a.hook(c, "init", func() error { return h.Init(ctx) })
		if replaced() {
			return collabErr
		}
	}

	// later writes render against a context that outlives this navigation
	live := context.WithoutCancel(ctx)
	c.Model.setRender(func(root string) {
		sc := render.Full()
		if a.cfg.ScopedRender {
			sc = render.Roots(root)
		}
		if err := a.sweep(live, c, sc); err != nil {
			a.report(&HandlerError{Stage: "render", Err: err})
		}
	})
	c.Model.setLive(true)

	c.state = Rendering
	if h, ok := c.self.(Renderer); ok {
		a.hook(c, "render", func() error { return h.Render(ctx) })
		if replaced() {
			return collabErr
		}
	}
	if err := a.sweep(ctx, c, render.Full()); err != nil {
		a.report(&HandlerError{Stage: "render", Err: err})
	}

	c.state = PostRendering
	if h, ok := c.self.(PostRenderer); ok {
		a.hook(c, "post-render", func() error { return h.PostRender(ctx) })
		if replaced() {
			return collabErr
		}
	}

	c.state = Active
	return collabErr
}

// teardown destroys the active controller: Destroy hook, listener drain,
// model clear and field reset. The fridge is untouched.
func (a *App) teardown(ctx context.Context) {
	c := a.current
	if c == nil {
		return
	}
	a.current = nil

	c.state = Destroying
	if h, ok := c.self.(Destroyer); ok {
		a.hook(c, "destroy", func() error { return h.Destroy(ctx) })
	}
	c.listeners.Drain(a.doc)
	c.Model.setLive(false)
	c.Model.setRender(nil)
	c.Model.Clear()
	resetFields(c.self)
	c.state = Destroyed
}

// resetFields zeroes every field of inst except the embedded *Controller.
func resetFields(inst any) {
	val := reflect.ValueOf(inst).Elem()
	field, ok := findEmbeddedController(val)
	if !ok {
		return
	}
	keep := field.Interface()
	val.Set(reflect.Zero(val.Type()))
	if f, ok := findEmbeddedController(val); ok {
		f.Set(reflect.ValueOf(keep))
	}
}

// hook runs one lifecycle hook, turning errors and panics into reported
// HandlerErrors.
func (a *App) hook(c *Controller, stage string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.Log.Error("hook panicked", "stage", stage, "stack", string(debug.Stack()))
			a.report(&HandlerError{Stage: stage, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	if err := fn(); err != nil {
		a.report(&HandlerError{Stage: stage, Err: err})
	}
}

// sweep renders the document against c and rebinds its listeners.
func (a *App) sweep(ctx context.Context, c *Controller, sc render.Scope) error {
	if err := a.render.Sweep(ctx, a.doc, c.Scope(), sc); err != nil {
		return err
	}
	return a.listen.Bind(ctx, a.doc, c.listeners, c)
}

// loadView fetches path into the outlet.
func (a *App) loadView(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if a.views == nil {
		return &CollaboratorError{Op: "load view " + path, Err: errors.New("no view fetcher")}
	}
	outlet := a.Outlet()
	if outlet == nil {
		return &CollaboratorError{Op: "load view " + path, Err: errors.New("no outlet element")}
	}
	markup, err := a.views.Fetch(ctx, path)
	if err != nil {
		return &CollaboratorError{Op: "load view " + path, Err: err}
	}
	if err := dom.SetInnerHTML(outlet, markup); err != nil {
		return &CollaboratorError{Op: "load view " + path, Err: err}
	}
	return nil
}

// flatten unpacks joined and wrapped-joined errors.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range j.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}
