package render

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"golang.org/x/net/html"

	"github.com/pthm/bindery/lib/directive"
	"github.com/pthm/bindery/lib/dom"
	"github.com/pthm/bindery/lib/expr"
)

// templateAttrs are stripped from the root of every clone.
var templateAttrs = []string{directive.Each, directive.Repeat, directive.UID, directive.NoRender, "hidden"}

// unclone removes the clones of every template in scope. Clones whose
// template no longer exists are always removed.
func (e *Engine) unclone(doc *dom.Document, root any, scope Scope) {
	templates := map[string]*html.Node{}
	for _, n := range dom.WithAttr(doc.Root, directive.UID) {
		uid, _ := dom.Attr(n, directive.UID)
		templates[uid] = n
	}
	for _, n := range dom.WithAttr(doc.Root, directive.CloneOf) {
		uid, _ := dom.Attr(n, directive.CloneOf)
		if tpl := templates[uid]; tpl != nil && !e.templateInScope(tpl, root, scope) {
			continue
		}
		dom.Remove(n)
	}
}

func (e *Engine) templateInScope(tpl *html.Node, root any, scope Scope) bool {
	if scope.IsFull() {
		return true
	}
	attr := directive.Each
	if !dom.HasAttr(tpl, attr) {
		attr = directive.Repeat
	}
	raw, _ := dom.Attr(tpl, attr)
	b, err := directive.Parse(attr, raw)
	if err != nil || b.Has(directive.OptForce) {
		return true
	}
	roots, all := templateRefs(tpl, b)
	return scope.Intersects(widen(root, roots, all))
}

func (e *Engine) each(doc *dom.Document, root any, scope Scope) {
	e.expandAll(doc, doc.Root, root, scope, directive.Each, []string{directive.Each})
}

// repeat also expands each templates found inside its clones, since the
// each phase has already run.
func (e *Engine) repeat(doc *dom.Document, root any, scope Scope) {
	e.expandAll(doc, doc.Root, root, scope, directive.Repeat, []string{directive.Each, directive.Repeat})
}

// expandAll expands every attr template under subtree. Templates inside
// new clones are expanded immediately for each of the nested kinds.
func (e *Engine) expandAll(doc *dom.Document, subtree *html.Node, root any, scope Scope, attr string, nested []string) {
	for _, tpl := range dom.WithAttr(subtree, attr) {
		clones := e.expand(doc, tpl, root, scope, attr)
		for _, c := range clones {
			for _, kind := range nested {
				e.expandAll(doc, c, root, Full(), kind, nested)
			}
		}
	}
}

type entry struct {
	key   any
	value any
}

func (e *Engine) expand(doc *dom.Document, tpl *html.Node, root any, scope Scope, attr string) []*html.Node {
	if dom.HasAttr(tpl, directive.Each) && dom.HasAttr(tpl, directive.Repeat) {
		if attr == directive.Each {
			e.Log.Error("invalid directive", "err",
				fmt.Errorf("%w: %s and %s on one node", directive.ErrMalformed, directive.Each, directive.Repeat))
		}
		return nil
	}
	b, ok := e.parse(tpl, attr)
	if !ok || !visitTemplate(tpl, b, scope, root) || tpl.Parent == nil {
		return nil
	}

	uid, ok := dom.Attr(tpl, directive.UID)
	if !ok {
		uid = doc.NextUID()
		dom.SetAttr(tpl, directive.UID, uid)
	}
	dom.SetHidden(tpl, true)
	dom.SetAttr(tpl, directive.NoRender, "")

	entries := e.entries(root, b, attr)
	if len(entries) == 0 {
		return nil
	}

	markup := dom.Render(tpl)
	valueName, keyName := b.LoopNames()
	clones := make([]*html.Node, 0, len(entries))
	for i, en := range entries {
		loop := map[string]any{valueName: en.value, keyName: en.key}
		clone, err := e.buildClone(tpl, markup, root, loop)
		if err != nil {
			e.Log.Error("clone failed", "attr", attr, "uid", uid, "index", i, "err", err)
			continue
		}
		index := strconv.Itoa(i)
		for _, a := range templateAttrs {
			dom.RemoveAttr(clone, a)
		}
		dom.SetAttr(clone, directive.Render, "")
		dom.SetAttr(clone, directive.CloneOf, uid)
		dom.SetAttr(clone, directive.CloneIndex, index)

		// ids are suffixed with the clone index so they stay unique
		for _, n := range dom.Elements(clone) {
			if id, ok := dom.Attr(n, "id"); ok && id != "" {
				dom.SetAttr(n, "id", id+"-"+index)
			}
		}

		// nested templates get identities derived from their position
		k := 0
		for _, n := range dom.Elements(clone) {
			if n == clone || !(dom.HasAttr(n, directive.Each) || dom.HasAttr(n, directive.Repeat)) {
				continue
			}
			dom.SetAttr(n, directive.UID, uid+"."+index+"."+strconv.Itoa(k))
			dom.RemoveAttr(n, directive.NoRender)
			k++
		}
		clones = append(clones, clone)
	}
	dom.InsertAfter(tpl, clones...)
	return clones
}

// buildClone substitutes tokens in the serialized template and parses the
// result back. Loop variables resolve first; other tokens resolve against
// root and are left untouched when root does not define them, so tokens
// of nested templates survive for their own expansion.
func (e *Engine) buildClone(tpl *html.Node, markup string, root any, loop map[string]any) (*html.Node, error) {
	resolve := func(tok string) string {
		tok = html.UnescapeString(tok)
		name := expr.Root(tok)
		if _, isLoop := loop[name]; isLoop {
			v, _ := e.Resolver.GetValue(loop, tok)
			return html.EscapeString(stringify(v))
		}
		if !expr.IsCall(tok) && !expr.IsInline(tok) {
			if _, ok := e.Resolver.Lookup(root, name); !ok {
				return "{{" + tok + "}}"
			}
		}
		v, _ := e.evaluate(root, tok)
		return html.EscapeString(stringify(v))
	}
	out := directive.Interpolate(markup, resolve)
	clone, err := dom.ParseElement(tpl.Parent, out)
	if err != nil {
		return nil, err
	}
	if clone == nil {
		return nil, fmt.Errorf("template produced no element")
	}
	return clone, nil
}

// entries lists the iterations of a template: collection entries for
// b-each (slices by index, maps by sorted key) and indexes for b-repeat.
func (e *Engine) entries(root any, b directive.Binding, attr string) []entry {
	v, ok := e.evaluate(root, b.Base)
	if !ok || v == nil {
		return nil
	}

	if attr == directive.Repeat {
		if s, isStr := v.(string); isStr {
			v = expr.Coerce(s)
		}
		n, ok := count(v)
		if !ok {
			e.Log.Warn("repeat count is not a number", "expr", b.Base, "value", v)
			return nil
		}
		if e.MaxRepeat > 0 && n > e.MaxRepeat {
			e.Log.Warn("repeat count capped", "expr", b.Base, "count", n, "max", e.MaxRepeat)
			n = e.MaxRepeat
		}
		out := make([]entry, n)
		for i := range out {
			out[i] = entry{key: i, value: i}
		}
		return out
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]entry, rv.Len())
		for i := range out {
			out[i] = entry{key: i, value: rv.Index(i).Interface()}
		}
		return out
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		out := make([]entry, len(keys))
		for i, k := range keys {
			out[i] = entry{key: k.Interface(), value: rv.MapIndex(k).Interface()}
		}
		return out
	}
	e.Log.Warn("each collection is not iterable", "expr", b.Base, "type", fmt.Sprintf("%T", v))
	return nil
}

func count(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return clamp(int(rv.Int())), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return clamp(int(rv.Uint())), true
	case reflect.Float32, reflect.Float64:
		return clamp(int(rv.Float())), true
	}
	return 0, false
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
