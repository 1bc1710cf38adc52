// Package dom is the document tree the engines render into: a parsed
// golang.org/x/net/html tree plus a listener table standing in for the
// host's event dispatch.
package dom

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"go.uber.org/atomic"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document owns a node tree and the listeners registered on it. It is not
// safe for concurrent use.
type Document struct {
	Root *html.Node

	listeners map[*html.Node][]*registration
	ids       atomic.Uint64
	uids      atomic.Uint64
}

// Parse reads a complete HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return New(root), nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// New wraps an existing tree.
func New(root *html.Node) *Document {
	return &Document{Root: root, listeners: map[*html.Node][]*registration{}}
}

// HTML serializes the whole document.
func (d *Document) HTML() string {
	return Render(d.Root)
}

// Body returns the body element, or the root when there is none.
func (d *Document) Body() *html.Node {
	if n := FindFirst(d.Root, func(n *html.Node) bool { return n.DataAtom == atom.Body }); n != nil {
		return n
	}
	return d.Root
}

// ByID returns the element with the given id attribute.
func (d *Document) ByID(id string) *html.Node {
	return FindFirst(d.Root, func(n *html.Node) bool {
		v, ok := Attr(n, "id")
		return ok && v == id
	})
}

// NextUID returns a fresh template identity.
func (d *Document) NextUID() string {
	return strconv.FormatUint(d.uids.Inc(), 10)
}

// Render serializes n and its subtree.
func Render(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	var sb strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// Walk visits n and its descendants in document order. Returning false
// from fn skips the children of that node. The sibling link is read
// before descending, so fn may detach the node it is given.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// Elements returns every element under (and including) n in document
// order. The slice is a snapshot, safe to iterate while mutating the tree.
func Elements(n *html.Node) []*html.Node {
	var out []*html.Node
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
		return true
	})
	return out
}

// WithAttr returns the elements carrying attribute name.
func WithAttr(n *html.Node, name string) []*html.Node {
	var out []*html.Node
	for _, el := range Elements(n) {
		if HasAttr(el, name) {
			out = append(out, el)
		}
	}
	return out
}

// FindFirst returns the first node in document order satisfying match.
func FindFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	Walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// Attr returns the value of attribute name.
func Attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether n carries attribute name.
func HasAttr(n *html.Node, name string) bool {
	_, ok := Attr(n, name)
	return ok
}

// SetAttr sets or adds attribute name.
func SetAttr(n *html.Node, name, value string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes attribute name if present.
func RemoveAttr(n *html.Node, name string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// ToggleAttr adds a valueless attribute when on and removes it otherwise.
func ToggleAttr(n *html.Node, name string, on bool) {
	if on {
		if !HasAttr(n, name) {
			SetAttr(n, name, "")
		}
		return
	}
	RemoveAttr(n, name)
}
