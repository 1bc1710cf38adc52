package bindery

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pthm/bindery/lib/route"
)

// Static is the controller of a route table entry: it loads the entry's
// view and copies its state into the model on Init.
type Static struct {
	*Controller

	view  string
	state map[string]any
}

// NewStatic returns a factory for a Static controller.
func NewStatic(view string, state map[string]any) Factory {
	return func() any {
		return &Static{view: view, state: state}
	}
}

// View implements Viewer.
func (s *Static) View() string { return s.view }

// Init copies the entry state and the route parameters into the model.
// Parameters are stored under "params" and query values under "query".
func (s *Static) Init(ctx context.Context) error {
	keys := make([]string, 0, len(s.state))
	for k := range s.state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.Model.Set(k, s.state[k]); err != nil {
			return err
		}
	}
	if s.Tx != nil {
		if err := s.Model.Set("params", s.Tx.Params); err != nil {
			return err
		}
		if err := s.Model.Set("query", s.Tx.Query); err != nil {
			return err
		}
	}
	return nil
}

// LoadRoutes registers every entry of a route table. Handler names must
// have been registered with Use.
func (a *App) LoadRoutes(t *route.Table) error {
	for _, e := range t.Routes {
		if e.Redirect != "" {
			if err := a.Redirect(e.Pattern, e.Redirect); err != nil {
				return err
			}
			continue
		}
		mw, err := a.named(e.Handlers)
		if err != nil {
			return &ConfigurationError{Op: "route " + e.Pattern, Err: err}
		}
		if err := a.Route(e.Pattern, NewStatic(e.View, e.State), mw...); err != nil {
			return err
		}
	}
	if t.NotFound != nil {
		mw, err := a.named(t.NotFound.Handlers)
		if err != nil {
			return &ConfigurationError{Op: "not found", Err: err}
		}
		if err := a.NotFound(NewStatic(t.NotFound.View, t.NotFound.State), mw...); err != nil {
			return err
		}
	}
	if len(t.Always) > 0 {
		hs, err := a.named(t.Always)
		if err != nil {
			return &ConfigurationError{Op: "always", Err: err}
		}
		return a.Always(hs...)
	}
	return nil
}

// LoadRoutesFile reads a YAML route table from path.
func (a *App) LoadRoutesFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &ConfigurationError{Op: "load routes", Err: err}
	}
	defer f.Close()
	return a.LoadRoutesFrom(f)
}

// LoadRoutesFrom reads a YAML route table from r.
func (a *App) LoadRoutesFrom(r io.Reader) error {
	t, err := route.LoadTable(r)
	if err != nil {
		return &ConfigurationError{Op: "load routes", Err: err}
	}
	return a.LoadRoutes(t)
}

func (a *App) named(names []string) ([]route.Handler, error) {
	hs := make([]route.Handler, 0, len(names))
	for _, n := range names {
		h, ok := a.middleware[n]
		if !ok {
			return nil, fmt.Errorf("unknown handler %q", n)
		}
		hs = append(hs, h)
	}
	return hs, nil
}
