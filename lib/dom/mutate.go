package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Hidden reports whether n carries the hidden attribute.
func Hidden(n *html.Node) bool {
	return HasAttr(n, "hidden")
}

// SetHidden hides or reveals n.
func SetHidden(n *html.Node, hidden bool) {
	ToggleAttr(n, "hidden", hidden)
}

// Remove detaches n from its parent.
func Remove(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// InsertAfter inserts nodes, in order, as the next siblings of ref.
func InsertAfter(ref *html.Node, nodes ...*html.Node) {
	parent := ref.Parent
	if parent == nil {
		return
	}
	next := ref.NextSibling
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.InsertBefore(n, next)
	}
}

// ParseNodes parses markup as the content of context.
func ParseNodes(context *html.Node, markup string) ([]*html.Node, error) {
	ctx := context
	if ctx == nil || ctx.Type != html.ElementNode {
		ctx = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	return html.ParseFragment(strings.NewReader(markup), ctx)
}

// ParseElement parses markup expected to hold one element, in the
// context of parent. It returns nil when the markup yields no element.
func ParseElement(parent *html.Node, markup string) (*html.Node, error) {
	nodes, err := ParseNodes(parent, markup)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n, nil
		}
	}
	return nil, nil
}

// Clear removes every child of n.
func Clear(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

// SetText replaces the children of n with one text node.
func SetText(n *html.Node, text string) {
	Clear(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// SetInnerHTML replaces the children of n with parsed markup.
func SetInnerHTML(n *html.Node, markup string) error {
	nodes, err := ParseNodes(n, markup)
	if err != nil {
		return err
	}
	Clear(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// Value returns the current value of a form control.
func Value(n *html.Node) string {
	switch n.DataAtom {
	case atom.Textarea:
		return Text(n)
	case atom.Select:
		var first string
		found := false
		for _, opt := range options(n) {
			if !found {
				first, found = optionValue(opt), true
			}
			if HasAttr(opt, "selected") {
				return optionValue(opt)
			}
		}
		return first
	}
	v, _ := Attr(n, "value")
	return v
}

// SetValue writes the value of a form control.
func SetValue(n *html.Node, value string) {
	switch n.DataAtom {
	case atom.Textarea:
		SetText(n, value)
	case atom.Select:
		for _, opt := range options(n) {
			ToggleAttr(opt, "selected", optionValue(opt) == value)
		}
	default:
		SetAttr(n, "value", value)
	}
}

func options(n *html.Node) []*html.Node {
	var out []*html.Node
	for _, el := range Elements(n) {
		if el.DataAtom == atom.Option {
			out = append(out, el)
		}
	}
	return out
}

func optionValue(opt *html.Node) string {
	if v, ok := Attr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(Text(opt))
}
