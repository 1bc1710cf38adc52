package dom

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Path addresses n by element-child indexes from the document root, e.g.
// "0.1.3". Paths are how a remote host names the target of an event.
func (d *Document) Path(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur != d.Root; cur = cur.Parent {
		i := 0
		for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode {
				i++
			}
		}
		parts = append(parts, strconv.Itoa(i))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// NodeAt resolves a path produced by Path. An element id prefixed with
// "#" is accepted as well.
func (d *Document) NodeAt(path string) (*html.Node, error) {
	if strings.HasPrefix(path, "#") {
		if n := d.ByID(path[1:]); n != nil {
			return n, nil
		}
		return nil, fmt.Errorf("dom: no element with id %q", path[1:])
	}
	cur := d.Root
	if path == "" {
		return cur, nil
	}
	for _, part := range strings.Split(path, ".") {
		want, err := strconv.Atoi(part)
		if err != nil || want < 0 {
			return nil, fmt.Errorf("dom: bad path %q", path)
		}
		var next *html.Node
		i := 0
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if i == want {
				next = c
				break
			}
			i++
		}
		if next == nil {
			return nil, fmt.Errorf("dom: path %q leaves the tree", path)
		}
		cur = next
	}
	return cur, nil
}
