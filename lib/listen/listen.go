// Package listen binds listener directives to document events.
//
// Every Bind starts by draining the registry, so listeners never
// accumulate across sweeps: each node ends up with exactly one handler per
// listener directive it carries.
package listen

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/pthm/bindery/internal/logging"
	"github.com/pthm/bindery/lib/directive"
	"github.com/pthm/bindery/lib/dom"
	"github.com/pthm/bindery/lib/expr"
	"github.com/pthm/bindery/lib/render"
)

// NavigateEvent is dispatched on the document root after a navigation
// link is followed. Its Value is the address.
const NavigateEvent = "navigate"

// Target is the controller side of a binding.
type Target interface {
	// Scope is the root that handler names and paths resolve against.
	Scope() any
	// Set writes a value through the model so that the change is
	// rendered and broadcast.
	Set(path string, value any) error
}

// Interpreter evaluates parenthesized inline bodies when configured.
type Interpreter interface {
	Eval(src string, scope any, set func(path string, value any) error) (any, error)
}

// Engine binds listeners. Navigate is required for b-href.
type Engine struct {
	Resolver *expr.Resolver
	Log      *slog.Logger
	Script   Interpreter
	Navigate func(ctx context.Context, uri string) error
}

// New returns an engine logging to log.
func New(log *slog.Logger) *Engine {
	log = logging.OrDiscard(log)
	return &Engine{Resolver: expr.NewResolver(log), Log: log}
}

// Bind drains reg and registers a listener for every eligible listener
// directive in doc. ctx is kept for the handlers it registers.
func (e *Engine) Bind(ctx context.Context, doc *dom.Document, reg *Registry, target Target) error {
	reg.Drain(doc)
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, n := range dom.Elements(doc.Root) {
		if !render.Eligible(n) {
			continue
		}
		for _, attr := range directive.Listeners {
			raw, ok := dom.Attr(n, attr)
			if !ok {
				continue
			}
			b, err := directive.Parse(attr, raw)
			if err != nil {
				e.Log.Error("invalid listener", "attr", attr, "value", raw, "err", err)
				continue
			}
			e.bind(ctx, doc, reg, target, n, b)
		}
	}
	return nil
}

func (e *Engine) add(doc *dom.Document, reg *Registry, n *html.Node, attr, event string, fn dom.Listener) {
	id := doc.AddEventListener(n, event, fn)
	reg.Add(Record{Attr: attr, Node: n, Event: event, ID: id})
}

func (e *Engine) bind(ctx context.Context, doc *dom.Document, reg *Registry, target Target, n *html.Node, b directive.Binding) {
	switch b.Attr {
	case directive.Href:
		if n.Data == "a" {
			dom.SetAttr(n, "href", e.address(target, b.Base))
		}
		e.add(doc, reg, n, b.Attr, "click", func(ev *dom.Event) {
			ev.PreventDefault()
			uri := e.address(target, b.Base)
			if e.Navigate == nil {
				e.Log.Warn("navigation link without a navigator", "uri", uri)
				return
			}
			if err := e.Navigate(ctx, uri); err != nil {
				e.Log.Error("navigation failed", "uri", uri, "err", err)
			}
			doc.Dispatch(doc.Root, &dom.Event{Type: NavigateEvent, Value: uri})
		})

	case directive.Click:
		e.add(doc, reg, n, b.Attr, "click", e.handler(target, n, b.Base))

	case directive.Change:
		e.add(doc, reg, n, b.Attr, "change", e.handler(target, n, b.Base))

	case directive.Bind:
		if v, ok := e.Resolver.Lookup(target.Scope(), b.Base); ok {
			dom.SetValue(n, expr.String(v))
		}
		e.add(doc, reg, n, b.Attr, "input", e.capture(target, b.Base))

	case directive.Input:
		e.add(doc, reg, n, b.Attr, "input", e.capture(target, b.Base))

	case directive.Enter:
		run := e.handler(target, n, b.Base)
		e.add(doc, reg, n, b.Attr, "keyup", func(ev *dom.Event) {
			if keyMatches(ev, "13") {
				run(ev)
			}
		})

	case directive.Keyup:
		run := e.handler(target, n, b.Base)
		filter := ""
		if o, ok := b.Option(directive.OptKey); ok {
			filter = o.Arg
		}
		e.add(doc, reg, n, b.Attr, "keyup", func(ev *dom.Event) {
			if filter == "" || keyMatches(ev, filter) {
				run(ev)
			}
		})

	case directive.On:
		for _, part := range SplitEvents(b.Base) {
			event, body, ok := strings.Cut(part, ":")
			event, body = strings.TrimSpace(event), strings.TrimSpace(body)
			if !ok || event == "" || body == "" {
				e.Log.Error("invalid listener", "attr", b.Attr, "part", part)
				continue
			}
			e.add(doc, reg, n, b.Attr, event, e.handler(target, n, body))
		}
	}
}

// address resolves a navigation link value: tokens are interpolated and
// everything else is taken literally.
func (e *Engine) address(target Target, base string) string {
	return directive.Interpolate(base, func(tok string) string {
		v, _ := e.Resolver.GetValue(target.Scope(), tok)
		return expr.String(v)
	})
}

// capture writes the control value into path. A path that already holds
// a non-string value receives the coerced input.
func (e *Engine) capture(target Target, path string) dom.Listener {
	return func(ev *dom.Event) {
		var v any = ev.Value
		if cur, ok := e.Resolver.Lookup(target.Scope(), path); ok && cur != nil {
			if _, isStr := cur.(string); !isStr {
				v = expr.Coerce(ev.Value)
			}
		}
		if err := target.Set(path, v); err != nil {
			e.Log.Error("input capture failed", "path", path, "err", err)
		}
	}
}

// handler runs a body: one parenthesized inline expression or a list of
// semicolon-separated calls. Failures are logged and never escape into
// dispatch.
func (e *Engine) handler(target Target, n *html.Node, body string) dom.Listener {
	return func(ev *dom.Event) {
		defer func() {
			if r := recover(); r != nil {
				e.Log.Error("listener panicked", "body", body, "panic", fmt.Sprint(r))
			}
		}()

		if expr.IsInline(body) {
			var err error
			if e.Script != nil {
				_, err = e.Script.Eval(body, target.Scope(), target.Set)
			} else {
				_, err = e.Resolver.EvalInline(target.Scope(), body, target.Set)
			}
			if err != nil {
				e.Log.Error("inline handler failed", "body", body, "err", err)
			}
			return
		}

		calls, err := expr.SplitCalls(body)
		if err != nil {
			e.Log.Error("invalid handler", "body", body, "err", err)
			return
		}
		env := expr.Env{Node: n, Event: ev, Value: func() any { return dom.Value(n) }}
		for _, def := range calls {
			call, err := expr.ParseCall(def, env)
			if err != nil {
				e.Log.Error("invalid handler", "call", def, "err", err)
				continue
			}
			if _, err := e.Resolver.Execute(target.Scope(), call); err != nil {
				e.Log.Error("handler failed", "call", call.Name, "err", err)
			}
		}
	}
}

var keyNames = map[string]int{
	"backspace": 8, "tab": 9, "enter": 13, "escape": 27, "esc": 27, " ": 32, "space": 32,
	"arrowleft": 37, "arrowup": 38, "arrowright": 39, "arrowdown": 40, "delete": 46,
}

// keyMatches compares ev against a key code ("13") or a key name
// ("Enter").
func keyMatches(ev *dom.Event, filter string) bool {
	want, err := strconv.Atoi(filter)
	if err != nil {
		if strings.EqualFold(ev.Key, filter) {
			return true
		}
		code, known := keyNames[strings.ToLower(filter)]
		return known && ev.KeyCode == code
	}
	if ev.KeyCode == want {
		return true
	}
	code, known := keyNames[strings.ToLower(ev.Key)]
	return known && code == want
}

// SplitEvents splits "click:a() && dblclick:b()" on top-level " && ".
func SplitEvents(s string) []string {
	var out []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case depth == 0 && strings.HasPrefix(s[i:], " && "):
			out = append(out, s[start:i])
			start = i + 4
			i += 3
		}
	}
	return append(out, s[start:])
}
