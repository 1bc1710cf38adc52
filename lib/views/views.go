// Package views provides view fetchers: sources of markup fragments that
// the App loads into its outlet element.
package views

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/a-h/templ"

	"github.com/pthm/bindery/lib/collab"
)

// ErrNotFound is returned when no view exists at a path.
var ErrNotFound = errors.New("views: not found")

// IsNotFound reports whether err is a missing view.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Fetcher returns the markup of the view at path.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, path string) (string, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Map serves views from memory.
type Map map[string]string

// Fetch returns the stored markup.
func (m Map) Fetch(_ context.Context, p string) (string, error) {
	v, ok := m[p]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return v, nil
}

// Dir serves view files from a file system. Paths without an extension
// get Ext appended.
type Dir struct {
	FS  fs.FS
	Ext string
}

// NewDir serves the files under root with the ".html" extension.
func NewDir(root string) *Dir {
	return &Dir{FS: os.DirFS(root), Ext: ".html"}
}

// Fetch reads the file at p.
func (d *Dir) Fetch(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if path.Ext(name) == "" {
		name += d.Ext
	}
	data, err := fs.ReadFile(d.FS, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return "", fmt.Errorf("views: read %s: %w", name, err)
	}
	return string(data), nil
}

// Templ renders templ components as views.
type Templ map[string]templ.Component

// Fetch renders the component registered at p.
func (t Templ) Fetch(ctx context.Context, p string) (string, error) {
	c, ok := t[p]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", fmt.Errorf("views: render %s: %w", p, err)
	}
	return sb.String(), nil
}

// Requester is the outbound request collaborator HTTP fetches through.
type Requester interface {
	Request(ctx context.Context, url, method string, body any) (*collab.Response, error)
}

// HTTP fetches views over the network. A 404 maps to ErrNotFound and
// any other non-2xx status is an error.
type HTTP struct {
	Client Requester
	Prefix string
}

// Fetch requests Prefix+p.
func (h *HTTP) Fetch(ctx context.Context, p string) (string, error) {
	resp, err := h.Client.Request(ctx, h.Prefix+p, "GET", nil)
	if err != nil {
		return "", err
	}
	if resp.Status == 404 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if !resp.OK() {
		return "", fmt.Errorf("views: fetch %s: status %d", p, resp.Status)
	}
	return string(resp.Content), nil
}

// Cached remembers successful fetches from Next.
type Cached struct {
	Next Fetcher

	mu    sync.RWMutex
	views map[string]string
}

// NewCached wraps next.
func NewCached(next Fetcher) *Cached {
	return &Cached{Next: next, views: make(map[string]string)}
}

// Fetch returns the cached view or fetches and stores it. Failures are
// not cached.
func (c *Cached) Fetch(ctx context.Context, p string) (string, error) {
	c.mu.RLock()
	v, ok := c.views[p]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err := c.Next.Fetch(ctx, p)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	if c.views == nil {
		c.views = make(map[string]string)
	}
	c.views[p] = v
	c.mu.Unlock()
	return v, nil
}

// Invalidate drops p from the cache, or everything when p is empty.
func (c *Cached) Invalidate(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == "" {
		c.views = make(map[string]string)
		return
	}
	delete(c.views, p)
}
