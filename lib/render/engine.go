// Package render implements the directive rendering sweep: six phases that
// read the live document and apply every binding against controller state.
//
// The engine keeps no state between sweeps. Each sweep first removes the
// clones produced by the previous one, so repeated sweeps over unchanged
// state produce an identical document.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/net/html"

	"github.com/pthm/bindery/internal/logging"
	"github.com/pthm/bindery/lib/directive"
	"github.com/pthm/bindery/lib/dom"
	"github.com/pthm/bindery/lib/expr"
)

// Engine runs sweeps. Configure it before the first sweep.
type Engine struct {
	Resolver *expr.Resolver
	Log      *slog.Logger

	// PhaseDelay is waited between phases, yielding to the host.
	PhaseDelay time.Duration

	// Transforms is the pipe whitelist.
	Transforms map[string]Transform

	// MaxRepeat caps the clones of one b-repeat template. Zero means no cap.
	MaxRepeat int

	sweeps atomic.Uint64
}

// DefaultMaxRepeat is the b-repeat cap of a new engine.
const DefaultMaxRepeat = 10000

// New returns an engine with the default transforms.
func New(log *slog.Logger) *Engine {
	log = logging.OrDiscard(log)
	return &Engine{
		Resolver:   expr.NewResolver(log),
		Log:        log,
		Transforms: DefaultTransforms(),
		MaxRepeat:  DefaultMaxRepeat,
	}
}

// Sweeps returns the number of sweeps started so far.
func (e *Engine) Sweeps() uint64 { return e.sweeps.Load() }

type phase struct {
	name string
	run  func(doc *dom.Document, root any, scope Scope)
}

// Sweep renders doc against root. Directive errors are logged and the
// sweep continues; only context cancellation stops it early.
func (e *Engine) Sweep(ctx context.Context, doc *dom.Document, root any, scope Scope) error {
	e.sweeps.Inc()
	phases := []phase{
		{"unclone", e.unclone},
		{"each", e.each},
		{"repeat", e.repeat},
		{"conditionals", e.conditionals},
		{"writers", e.writers},
		{"attributes", e.attributes},
	}
	for i, p := range phases {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && e.PhaseDelay > 0 {
			t := time.NewTimer(e.PhaseDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		p.run(doc, root, scope)
		e.Log.Debug("render phase done", "phase", p.name, "sweep", e.sweeps.Load())
	}
	return nil
}

// bound pairs a node with one of its parsed directives.
type bound struct {
	node    *html.Node
	binding directive.Binding
}

// collect gathers the visitable bindings for attr in document order. The
// tree is read completely before any mutation.
func (e *Engine) collect(doc *dom.Document, root any, attr string, scope Scope) []bound {
	var out []bound
	for _, n := range dom.WithAttr(doc.Root, attr) {
		if b, ok := e.parse(n, attr); ok && visit(n, b, scope, root) {
			out = append(out, bound{n, b})
		}
	}
	return out
}

func (e *Engine) parse(n *html.Node, attr string) (directive.Binding, bool) {
	raw, _ := dom.Attr(n, attr)
	b, err := directive.Parse(attr, raw)
	if err != nil {
		e.Log.Error("invalid directive", "attr", attr, "value", raw, "err", err)
		return b, false
	}
	return b, true
}

// evaluate resolves a base expression: a call, an inline expression, a
// string with {{tokens}}, a literal, or a property path. The second result
// is false when the value is undefined.
func (e *Engine) evaluate(root any, base string) (any, bool) {
	switch {
	case expr.IsCall(base):
		call, err := expr.ParseCall(base, expr.Env{})
		if err != nil {
			e.Log.Error("invalid call", "expr", base, "err", err)
			return nil, false
		}
		v, err := e.Resolver.Execute(root, call)
		if err != nil {
			e.Log.Error("call failed", "expr", base, "err", err)
			return nil, false
		}
		return v, true
	case expr.IsInline(base):
		v, err := e.Resolver.EvalInline(root, base, readOnly)
		if err != nil {
			e.Log.Error("inline expression failed", "expr", base, "err", err)
			return nil, false
		}
		return v, true
	case directive.HasTokens(base):
		return directive.Interpolate(base, func(tok string) string {
			v, _ := e.evaluate(root, tok)
			return expr.String(v)
		}), true
	}
	if v, ok := literal(base); ok {
		return v, true
	}
	return e.Resolver.GetValue(root, base)
}

func readOnly(path string, _ any) error {
	return fmt.Errorf("%w: assignment to %q during render", expr.ErrNotAssignable, path)
}

func literal(s string) (any, bool) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	if s == "null" {
		return nil, true
	}
	if v := expr.Coerce(s); v != any(s) {
		return v, true
	}
	return nil, false
}

// stringify renders a value for a writer: nil is empty, strings as is,
// numbers and booleans literally, anything else as JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	if scalar(v) {
		return expr.String(v)
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(bs)
}

func scalar(v any) bool {
	switch v.(type) {
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// pipe applies the binding's transform chain. Unknown names are logged
// and skipped.
func (e *Engine) pipe(b directive.Binding, v any) any {
	for _, name := range b.Pipe() {
		fn, ok := e.Transforms[strings.ToLower(name)]
		if !ok {
			e.Log.Warn("unknown transform", "transform", name, "attr", b.Attr)
			continue
		}
		out, err := fn(v)
		if err != nil {
			e.Log.Error("transform failed", "transform", name, "err", err)
			continue
		}
		v = out
	}
	return v
}
