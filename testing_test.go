package bindery

import (
	"context"
	"errors"
	"testing"

	"github.com/pthm/bindery/lib/directive"
	"github.com/pthm/bindery/lib/route"
)

const formPage = `<main b-view>` +
	`<input id="name" b-bind="name"><p id="echo" b-text="name"></p>` +
	`<input id="q" b-enter="search()"><ul><li b-each="hits">{{value}}</li></ul>` +
	`<select id="sel" b-change="pick($value)"><option>a</option><option>b</option></select>` +
	`<p id="picked" b-text="picked"></p>` +
	`<p id="empty" b-if="hits">results</p>` +
	`</main>`

type form struct {
	*Controller
	Searches int
}

func (f *form) Init(ctx context.Context) error {
	if err := f.Model.Set("name", "ann"); err != nil {
		return err
	}
	if err := f.Model.Set("hits", []any{}); err != nil {
		return err
	}
	return f.Model.Set("picked", "")
}

func (f *form) Search() error {
	f.Searches++
	return f.Set("hits", []any{"x", "y"})
}

func (f *form) Pick(v string) error {
	return f.Set("picked", v)
}

func formApp(t *testing.T) *App {
	t.Helper()
	app, err := NewTestApp(formPage, Options{})
	must(t, err)
	must(t, app.Route("/", func() any { return &form{} }))
	if _, err := TestNavigate(app, "/"); err != nil {
		t.Fatal(err)
	}
	return app
}

func TestTestInput(t *testing.T) {
	app := formApp(t)
	result, err := TestInput(app, "#name", "bob")
	must(t, err)
	if got := result.Text("#echo"); got != "bob" {
		t.Errorf("#echo = %q", got)
	}
	if v, _ := app.Current().(*form).Model.Get("name"); v != "bob" {
		t.Errorf("model name = %v", v)
	}
}

func TestTestInputClearsBoundValue(t *testing.T) {
	app := formApp(t)
	result, err := TestInput(app, "#name", "")
	must(t, err)
	if got := result.Text("#echo"); got != "" {
		t.Errorf("#echo = %q, want empty", got)
	}
	if v, _ := app.Current().(*form).Model.Get("name"); v != "" {
		t.Errorf("model name = %v, want empty", v)
	}
}

func TestTestKey(t *testing.T) {
	app := formApp(t)

	result, err := TestKey(app, "#q", "a")
	must(t, err)
	if result.Count(directive.CloneOf) != 0 || result.Visible("#empty") {
		t.Error("non-enter key searched")
	}

	result, err = TestKey(app, "#q", "Enter")
	must(t, err)
	if got := app.Current().(*form).Searches; got != 1 {
		t.Errorf("searches = %d", got)
	}
	if got := result.Count(directive.CloneOf); got != 2 {
		t.Errorf("clones = %d, want 2", got)
	}
	if !result.Visible("#empty") || !result.HTMLContainsAll(">x</li>", ">y</li>") {
		t.Errorf("html = %s", result.HTML)
	}
}

func TestTestChange(t *testing.T) {
	app := formApp(t)
	result, err := TestChange(app, "#sel", "b")
	must(t, err)
	if got := result.Text("#picked"); got != "b" {
		t.Errorf("#picked = %q", got)
	}
}

func TestResultHelpers(t *testing.T) {
	app := formApp(t)
	if _, err := TestClick(app, "#missing"); err == nil {
		t.Error("TestClick on a missing node succeeded")
	}

	result, err := TestNavigate(app, "/")
	must(t, err)
	if result.Text("#missing") != "" || result.Visible("#missing") {
		t.Error("missing node reported content")
	}
	if !result.HTMLContains(`id="echo"`) || result.HTMLContainsAny("nope", "never") {
		t.Error("HTMLContains helpers")
	}
	if result.Node("#echo").Data != "p" {
		t.Error("Node returned the wrong element")
	}
	if result.HasErrors() {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestCaptureRestoresOnError(t *testing.T) {
	app := newApp(t, Options{})
	var seen []error
	app.OnError = func(err error) { seen = append(seen, err) }
	must(t, app.Route("/", func() any { return &plain{} }, func(ctx context.Context, tx *route.Transaction) error {
		return errors.New("nope")
	}))

	result, err := TestNavigate(app, "/")
	must(t, err)
	if len(result.Errors) != 1 || len(seen) != 1 {
		t.Errorf("captured %d, forwarded %d", len(result.Errors), len(seen))
	}
	if !IsHandlerError(result.Errors[0]) {
		t.Errorf("error = %v", result.Errors[0])
	}

	app.report(errors.New("later"))
	if len(result.Errors) != 1 || len(seen) != 2 {
		t.Error("OnError not restored after capture")
	}
}
