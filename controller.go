package bindery

import (
	"context"
	"log/slog"
	"reflect"
	"unicode"
	"unicode/utf8"

	"github.com/pthm/bindery/lib/dom"
	"github.com/pthm/bindery/lib/expr"
	"github.com/pthm/bindery/lib/listen"
	"github.com/pthm/bindery/lib/render"
	"github.com/pthm/bindery/lib/route"
)

// State is a controller's position in its lifecycle.
type State int

const (
	Idle State = iota
	Loading
	Initializing
	Rendering
	PostRendering
	Active
	Destroying
	Destroyed
)

var stateNames = [...]string{"idle", "loading", "initializing", "rendering", "post-rendering", "active", "destroying", "destroyed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Controller is the base type embedded by user controllers.
//
// Controllers embed *Controller to gain the model, the shared fridge and
// the collaborators the App injects on activation. The embedding pattern
// promotes methods onto the user's type, so markup can call them too:
//
//	type Cart struct {
//	    *bindery.Controller
//	    items []Item
//	}
//
//	func (c *Cart) Init(ctx context.Context) error {
//	    return c.Model.Set("count", 0)
//	}
//
//	func (c *Cart) Add(name string) {
//	    c.items = append(c.items, Item{Name: name})
//	    c.Set("count", len(c.items))
//	}
//
//	<button b-click="add('apple')">Add</button> <span b-text="count"></span>
//
// Directive paths and handler names resolve against the model first and
// the controller's own fields and methods second.
//
// Every field of the user struct other than the embedded *Controller is
// reset to its zero value when the controller is navigated away from.
type Controller struct {
	// Name is the App name.
	Name   string
	Debug  bool
	Log    *slog.Logger
	Model  *Model
	Fridge *Fridge
	// Tx is the transaction of the navigation that activated the
	// controller.
	Tx *route.Transaction

	HTTP    HTTPCollaborator
	Storage StorageCollaborator
	Auth    AuthCollaborator
	Views   ViewFetcher

	listeners *listen.Registry
	resolver  *expr.Resolver
	app       *App
	self      any
	state     State
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Listeners returns the listener registry.
func (c *Controller) Listeners() *listen.Registry {
	return c.listeners
}

// Document returns the App document.
func (c *Controller) Document() *dom.Document {
	if c.app == nil {
		return nil
	}
	return c.app.doc
}

// Get resolves path against the controller scope.
func (c *Controller) Get(path string) (any, bool) {
	return c.resolver.Lookup(c.Scope(), path)
}

// Set writes through the model notifier. A path rooted at one of the
// controller's own fields, with no model property of that name, writes
// the field and then notifies.
func (c *Controller) Set(path string, value any) error {
	root := expr.Root(path)
	if c.self != nil && !c.Model.Has(root) {
		if _, ok := c.field(root); ok {
			if err := c.resolver.SetValue(c.self, path, value); err != nil {
				return err
			}
			c.Model.Notify(path, value)
			return nil
		}
	}
	return c.Model.Set(path, value)
}

// Refresh runs a full sweep and listener rebind.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	return c.app.sweep(ctx, c, render.Full())
}

// Navigate asks the App to navigate to uri.
func (c *Controller) Navigate(ctx context.Context, uri string) error {
	if c.app == nil {
		return ErrNoController
	}
	return c.app.Navigate(ctx, uri)
}

// Scope is the resolution root of directives and handlers.
func (c *Controller) Scope() any {
	return scope{c}
}

// field returns an exported field declared on the user struct itself.
func (c *Controller) field(name string) (reflect.Value, bool) {
	rv := reflect.ValueOf(c.self)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	for _, candidate := range []string{name, upperFirst(name)} {
		sf, ok := rv.Type().FieldByName(candidate)
		if ok && sf.IsExported() && !sf.Anonymous && len(sf.Index) == 1 {
			f, err := rv.FieldByIndexErr(sf.Index)
			if err != nil {
				return reflect.Value{}, false
			}
			return f, true
		}
	}
	return reflect.Value{}, false
}

// scope layers the model over the controller's fields and methods.
type scope struct {
	c *Controller
}

func (s scope) Lookup(name string) (any, bool) {
	if v, ok := s.c.Model.Lookup(name); ok {
		return v, true
	}
	switch name {
	case "model":
		return s.c.Model, true
	case "fridge":
		return s.c.Fridge, true
	}
	if s.c.self == nil {
		return nil, false
	}
	// methods stay funcs here so calls bind them; reads compute them
	if m := reflect.ValueOf(s.c.self).MethodByName(upperFirst(name)); m.IsValid() {
		return m.Interface(), true
	}
	if f, ok := s.c.field(name); ok {
		return f.Interface(), true
	}
	return nil, false
}

func (s scope) Assign(name string, value any) error {
	return s.c.Set(name, value)
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
