package bindery

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/pthm/bindery/internal/logging"
	"github.com/pthm/bindery/lib/dom"
)

// TestResult holds the document after a test interaction.
//
// Provides convenience methods for asserting on HTML content, node text,
// visibility and the handler errors reported during the interaction.
type TestResult struct {
	HTML   string
	Errors []error
	App    *App
}

// NewTestApp creates an App over markup with a discarding logger, for
// tests of controllers and views.
//
//	app, _ := bindery.NewTestApp(`<main b-view><p b-text="greeting"></p></main>`, bindery.Options{})
//	app.Route("/", func() any { return &Home{} })
//	result, _ := bindery.TestNavigate(app, "/")
//	if !result.HTMLContains("hello") { ... }
func NewTestApp(markup string, opts Options) (*App, error) {
	doc, err := dom.ParseString(markup)
	if err != nil {
		return nil, err
	}
	opts.Document = doc
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return New(context.Background(), opts)
}

// TestNavigate navigates and returns the resulting document.
//
// Handler errors reported to OnError during the navigation are captured
// in the result; collaborator errors are returned.
func TestNavigate(app *App, uri string) (*TestResult, error) {
	return TestNavigateWithContext(context.Background(), app, uri)
}

// TestNavigateWithContext is TestNavigate with a custom context.
func TestNavigateWithContext(ctx context.Context, app *App, uri string) (*TestResult, error) {
	return capture(app, func() error { return app.Navigate(ctx, uri) })
}

// TestClick dispatches a click on the node at path. Paths are "#id" or
// element-child indexes such as "0.1.2".
func TestClick(app *App, path string) (*TestResult, error) {
	return TestDispatch(app, path, &dom.Event{Type: "click"})
}

// TestInput types value into the control at path.
func TestInput(app *App, path, value string) (*TestResult, error) {
	return TestDispatch(app, path, &dom.Event{Type: "input", Value: value, HasValue: true})
}

// TestChange sets the control at path to value and dispatches change.
func TestChange(app *App, path, value string) (*TestResult, error) {
	return TestDispatch(app, path, &dom.Event{Type: "change", Value: value, HasValue: true})
}

// TestKey releases key on the node at path.
func TestKey(app *App, path, key string) (*TestResult, error) {
	code := 0
	if key == "Enter" {
		code = 13
	}
	return TestDispatch(app, path, &dom.Event{Type: "keyup", Key: key, KeyCode: code})
}

// TestDispatch dispatches ev on the node at path.
func TestDispatch(app *App, path string, ev *dom.Event) (*TestResult, error) {
	n, err := app.doc.NodeAt(path)
	if err != nil {
		return nil, err
	}
	return capture(app, func() error {
		app.Dispatch(n, ev)
		return nil
	})
}

func capture(app *App, fn func() error) (*TestResult, error) {
	result := &TestResult{App: app}
	prev := app.OnError
	app.OnError = func(err error) {
		result.Errors = append(result.Errors, err)
		if prev != nil {
			prev(err)
		}
	}
	err := fn()
	app.OnError = prev
	result.HTML = app.doc.HTML()
	return result, err
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLContainsAny checks if the HTML contains any of the given substrings.
func (r *TestResult) HTMLContainsAny(substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(r.HTML, s) {
			return true
		}
	}
	return false
}

// Text returns the text content of the node at path.
func (r *TestResult) Text(path string) string {
	n, err := r.App.doc.NodeAt(path)
	if err != nil {
		return ""
	}
	return dom.Text(n)
}

// Visible reports whether the node at path exists and is not hidden.
func (r *TestResult) Visible(path string) bool {
	n, err := r.App.doc.NodeAt(path)
	if err != nil {
		return false
	}
	return !dom.Hidden(n)
}

// Count returns the number of visible elements carrying attribute attr.
func (r *TestResult) Count(attr string) int {
	count := 0
	for _, n := range dom.WithAttr(r.App.doc.Root, attr) {
		if !dom.Hidden(n) {
			count++
		}
	}
	return count
}

// HasErrors reports whether any handler error was captured.
func (r *TestResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasErrorAt reports whether a handler error was captured for stage.
func (r *TestResult) HasErrorAt(stage string) bool {
	for _, err := range r.Errors {
		if he, ok := err.(*HandlerError); ok && he.Stage == stage {
			return true
		}
	}
	return false
}

// Node returns the node at path or panics, for compact test setup.
func (r *TestResult) Node(path string) *html.Node {
	n, err := r.App.doc.NodeAt(path)
	if err != nil {
		panic(fmt.Sprintf("bindery: no node at %q: %v", path, err))
	}
	return n
}
