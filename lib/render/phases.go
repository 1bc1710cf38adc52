package render

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/pthm/bindery/lib/directive"
	"github.com/pthm/bindery/lib/dom"
	"github.com/pthm/bindery/lib/expr"
)

type branch struct {
	node    *html.Node
	binding directive.Binding
	valid   bool
}

// conditionals hides every branch of each b-if group and reveals the
// first truthy one. b-else is always truthy.
func (e *Engine) conditionals(doc *dom.Document, root any, scope Scope) {
	var groups [][]branch
	for _, head := range dom.WithAttr(doc.Root, directive.If) {
		if !Eligible(head) {
			continue
		}
		group := e.group(head)
		hit := false
		for _, br := range group {
			if br.valid && visit(br.node, br.binding, scope, root) {
				hit = true
			}
		}
		if hit {
			groups = append(groups, group)
		}
	}

	for _, group := range groups {
		for _, br := range group {
			dom.SetHidden(br.node, true)
		}
		for _, br := range group {
			if !br.valid {
				continue
			}
			if br.binding.Attr == directive.Else {
				dom.SetHidden(br.node, false)
				break
			}
			if v, _ := e.evaluate(root, br.binding.Base); expr.Truthy(v) {
				dom.SetHidden(br.node, false)
				break
			}
		}
	}
}

// group collects head and the contiguous element siblings carrying
// b-elseif, ending after the first b-else.
func (e *Engine) group(head *html.Node) []branch {
	b, ok := e.parse(head, directive.If)
	out := []branch{{head, b, ok}}
	for sib := head.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode {
			continue
		}
		attr := ""
		switch {
		case dom.HasAttr(sib, directive.ElseIf):
			attr = directive.ElseIf
		case dom.HasAttr(sib, directive.Else):
			attr = directive.Else
		default:
			return out
		}
		b, ok := e.parse(sib, attr)
		out = append(out, branch{sib, b, ok})
		if attr == directive.Else {
			return out
		}
	}
	return out
}

// writers fills text and markup content.
func (e *Engine) writers(doc *dom.Document, root any, scope Scope) {
	for _, bd := range e.collect(doc, root, directive.Text, scope) {
		v, _ := e.evaluate(root, bd.binding.Base)
		dom.SetText(bd.node, stringify(e.pipe(bd.binding, v)))
	}
	for _, bd := range e.collect(doc, root, directive.HTML, scope) {
		v, _ := e.evaluate(root, bd.binding.Base)
		if err := dom.SetInnerHTML(bd.node, stringify(e.pipe(bd.binding, v))); err != nil {
			e.Log.Error("markup injection failed", "expr", bd.binding.Base, "err", err)
			continue
		}
		quarantine(bd.node)
	}
}

// quarantine disables rendering of directive-bearing descendants of
// injected markup and hides injected templates.
func quarantine(host *html.Node) {
	for _, n := range dom.Elements(host) {
		if n == host || !hasDirective(n) {
			continue
		}
		dom.SetAttr(n, directive.NoRender, "")
		if dom.HasAttr(n, directive.Each) || dom.HasAttr(n, directive.Repeat) {
			dom.SetHidden(n, true)
		}
	}
}

func hasDirective(n *html.Node) bool {
	for _, a := range n.Attr {
		if directive.IsDirective(a.Key) {
			return true
		}
	}
	return false
}

// attributes applies the attribute managers.
func (e *Engine) attributes(doc *dom.Document, root any, scope Scope) {
	var all []bound
	for _, attr := range directive.Managers {
		all = append(all, e.collect(doc, root, attr, scope)...)
	}
	for _, n := range dom.Elements(doc.Root) {
		for _, a := range n.Attr {
			if !strings.HasPrefix(a.Key, directive.AttrPrefix) || !directive.IsDirective(a.Key) {
				continue
			}
			if b, ok := e.parse(n, a.Key); ok && visit(n, b, scope, root) {
				all = append(all, bound{n, b})
			}
		}
	}

	for _, bd := range all {
		v, ok := e.evaluate(root, bd.binding.Base)
		e.manage(bd.node, bd.binding, v, ok)
	}
}

func (e *Engine) manage(n *html.Node, b directive.Binding, v any, ok bool) {
	switch b.Attr {
	case directive.Disabled, directive.Checked, directive.Selected:
		dom.ToggleAttr(n, strings.TrimPrefix(b.Attr, directive.Prefix), expr.Truthy(v))
		return
	}
	if !ok {
		return
	}
	v = e.pipe(b, v)

	switch b.Attr {
	case directive.Value:
		dom.SetValue(n, stringify(v))
	case directive.Src:
		dom.SetAttr(n, "src", stringify(v))
	case directive.Class:
		merge(n, "class", directive.ClassStatic, strings.Join(classes(v), " "), " ")
	case directive.Style:
		merge(n, "style", directive.StyleStatic, styles(v), "; ")
	default:
		name := strings.TrimPrefix(b.Attr, directive.AttrPrefix)
		if on, isBool := v.(bool); isBool {
			dom.ToggleAttr(n, name, on)
			return
		}
		dom.SetAttr(n, name, stringify(v))
	}
}

// merge writes static+dynamic into attr. The static part is captured in
// marker on first use so later sweeps start from the authored value.
func merge(n *html.Node, attr, marker, dynamic, sep string) {
	static, ok := dom.Attr(n, marker)
	if !ok {
		static, _ = dom.Attr(n, attr)
		dom.SetAttr(n, marker, static)
	}
	static = strings.TrimRight(strings.TrimSpace(static), ";")
	var parts []string
	for _, p := range []string{static, dynamic} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		dom.RemoveAttr(n, attr)
		return
	}
	dom.SetAttr(n, attr, strings.Join(parts, sep))
}

// classes reads a class binding: a string of names, a list of names, or a
// map of name to condition.
func classes(v any) []string {
	switch t := v.(type) {
	case string:
		return strings.Fields(t)
	case []string:
		return t
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		var out []string
		for i := 0; i < rv.Len(); i++ {
			out = append(out, strings.Fields(expr.String(rv.Index(i).Interface()))...)
		}
		return out
	case reflect.Map:
		var out []string
		for _, k := range rv.MapKeys() {
			if expr.Truthy(rv.MapIndex(k).Interface()) {
				out = append(out, fmt.Sprint(k.Interface()))
			}
		}
		sort.Strings(out)
		return out
	}
	return strings.Fields(stringify(v))
}

// styles reads a style binding: a declaration string or a map of property
// to value.
func styles(v any) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return strings.TrimRight(strings.TrimSpace(stringify(v)), ";")
	}
	var decls []string
	for _, k := range rv.MapKeys() {
		val := expr.String(rv.MapIndex(k).Interface())
		if val == "" {
			continue
		}
		decls = append(decls, fmt.Sprintf("%v: %s", k.Interface(), val))
	}
	sort.Strings(decls)
	return strings.Join(decls, "; ")
}
