package render

import (
	"golang.org/x/net/html"

	"github.com/pthm/bindery/lib/directive"
	"github.com/pthm/bindery/lib/dom"
	"github.com/pthm/bindery/lib/expr"
)

// Scope names the root properties a sweep re-renders. The zero value is
// the full scope.
type Scope struct {
	roots map[string]bool
}

// Full is the scope that covers every binding.
func Full() Scope { return Scope{} }

// Roots limits a sweep to bindings that read one of the given root
// properties. With no names it is the full scope.
func Roots(names ...string) Scope {
	if len(names) == 0 {
		return Full()
	}
	s := Scope{roots: make(map[string]bool, len(names))}
	for _, n := range names {
		s.roots[n] = true
	}
	return s
}

// IsFull reports whether s covers every binding.
func (s Scope) IsFull() bool { return s.roots == nil }

// Intersects reports whether a binding reading roots (or everything, when
// all is set) falls in s.
func (s Scope) Intersects(roots []string, all bool) bool {
	if s.IsFull() || all {
		return true
	}
	for _, r := range roots {
		if s.roots[r] {
			return true
		}
	}
	return false
}

// Eligible reports whether n may be rendered: the nearest render marker
// on n or its ancestors must not be the render-disabled marker.
func Eligible(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if dom.HasAttr(cur, directive.Render) {
			return true
		}
		if dom.HasAttr(cur, directive.NoRender) {
			return false
		}
	}
	return true
}

// Visit is the visiting rule applied to every directive: n is processed
// when it is eligible and either the scope is full, the binding forces
// rendering, or the binding reads a property in scope.
func Visit(n *html.Node, b directive.Binding, scope Scope) bool {
	return visit(n, b, scope, nil)
}

func visit(n *html.Node, b directive.Binding, scope Scope, root any) bool {
	if !Eligible(n) {
		return false
	}
	if scope.IsFull() || b.Has(directive.OptForce) {
		return true
	}
	roots, all := b.References()
	return scope.Intersects(widen(root, roots, all))
}

// widen makes a binding whose root resolves on root to a method or func
// read everything, the same as a call.
func widen(root any, roots []string, all bool) ([]string, bool) {
	if all || root == nil {
		return roots, all
	}
	for _, r := range roots {
		if expr.IsComputed(root, r) {
			return nil, true
		}
	}
	return roots, false
}

// visitTemplate applies Visit to a cloning template. The template itself
// carries the render-disabled marker, so eligibility is decided by its
// parent, and its references include every token in its subtree.
func visitTemplate(n *html.Node, b directive.Binding, scope Scope, root any) bool {
	if n.Parent != nil && !Eligible(n.Parent) {
		return false
	}
	// disabled without an identity: quarantined by markup injection
	if dom.HasAttr(n, directive.NoRender) && !dom.HasAttr(n, directive.UID) {
		return false
	}
	if scope.IsFull() || b.Has(directive.OptForce) {
		return true
	}
	roots, all := templateRefs(n, b)
	return scope.Intersects(widen(root, roots, all))
}

func templateRefs(n *html.Node, b directive.Binding) ([]string, bool) {
	roots, all := b.References()
	if all {
		return nil, true
	}
	more, all := directive.TokenRoots(dom.Render(n))
	if all {
		return nil, true
	}
	return append(roots, more...), false
}
