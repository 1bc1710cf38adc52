package expr

import (
	"errors"
	"reflect"
	"regexp"
	"testing"
)

type cart struct {
	Items []string
	Total int
}

func (c *cart) Add(item string, qty int) int {
	for i := 0; i < qty; i++ {
		c.Items = append(c.Items, item)
	}
	c.Total += qty
	return c.Total
}

func (c *cart) Fail() error { return errors.New("boom") }

func (c *cart) Explode() { panic("kaboom") }

func (c *cart) Join(sep string, parts ...string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

type page struct {
	Cart  *cart
	Title string
	Seen  []any
}

func (p *page) Record(args ...any) { p.Seen = append(p.Seen, args...) }

func TestParseCallClassifiesArguments(t *testing.T) {
	node := struct{ id string }{"n1"}
	event := "click-event"
	env := Env{Node: node, Event: event, Value: func() any { return "typed" }}

	call, err := ParseCall(`record($node, $value, $event, "a,b", 'c', -3, 2.5, true, /ab+c/i, null, user.name)`, env)
	if err != nil {
		t.Fatalf("ParseCall error = %v", err)
	}
	if call.Name != "record" {
		t.Errorf("Name = %q, want record", call.Name)
	}

	wantKinds := []ArgKind{ArgNode, ArgNodeValue, ArgEvent, ArgString, ArgString, ArgNumber, ArgNumber, ArgBool, ArgRegexp, ArgNull, ArgPath}
	if len(call.Args) != len(wantKinds) {
		t.Fatalf("got %d args, want %d: %+v", len(call.Args), len(wantKinds), call.Args)
	}
	for i, k := range wantKinds {
		if call.Args[i].Kind != k {
			t.Errorf("arg %d (%q) kind = %v, want %v", i, call.Args[i].Raw, call.Args[i].Kind, k)
		}
	}

	if call.Args[0].Value != node {
		t.Errorf("$node = %v", call.Args[0].Value)
	}
	if call.Args[1].Value != "typed" {
		t.Errorf("$value = %v", call.Args[1].Value)
	}
	if call.Args[3].Value != "a,b" || call.Args[4].Value != "c" {
		t.Errorf("strings = %v, %v", call.Args[3].Value, call.Args[4].Value)
	}
	if call.Args[5].Value != -3 || call.Args[6].Value != 2.5 {
		t.Errorf("numbers = %v, %v", call.Args[5].Value, call.Args[6].Value)
	}
	re, ok := call.Args[8].Value.(*regexp.Regexp)
	if !ok || !re.MatchString("xABBC") {
		t.Errorf("regexp = %v", call.Args[8].Value)
	}
}

func TestParseCallErrors(t *testing.T) {
	for _, def := range []string{"notacall", "f(a, (b)", `f("open)`} {
		if _, err := ParseCall(def, Env{}); !errors.Is(err, ErrSyntax) {
			t.Errorf("ParseCall(%q) err = %v, want ErrSyntax", def, err)
		}
	}
}

func TestSplitCalls(t *testing.T) {
	got, err := SplitCalls(`a(); b("x;y") ;  c(1, 2);`)
	if err != nil {
		t.Fatalf("SplitCalls error = %v", err)
	}
	want := []string{"a()", `b("x;y")`, "c(1, 2)"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitCalls = %q, want %q", got, want)
	}
}

func TestExecute(t *testing.T) {
	p := &page{Cart: &cart{}, Title: "shop"}
	root := map[string]any{
		"page":  p,
		"item":  "apple",
		"shout": func(s string) string { return s + "!" },
	}
	r := &Resolver{}

	t.Run("method keeps receiver", func(t *testing.T) {
		call, _ := ParseCall(`page.cart.add(item, 2)`, Env{})
		got, err := r.Execute(root, call)
		if err != nil {
			t.Fatalf("Execute error = %v", err)
		}
		if got != 2 || len(p.Cart.Items) != 2 || p.Cart.Items[0] != "apple" {
			t.Errorf("result = %v, cart = %+v", got, p.Cart)
		}
	})

	t.Run("func stored in map", func(t *testing.T) {
		call, _ := ParseCall(`shout("hey")`, Env{})
		got, err := r.Execute(root, call)
		if err != nil || got != "hey!" {
			t.Errorf("Execute = %v, %v", got, err)
		}
	})

	t.Run("variadic", func(t *testing.T) {
		call, _ := ParseCall(`page.cart.join("-", "a", "b", "c")`, Env{})
		got, err := r.Execute(root, call)
		if err != nil || got != "a-b-c" {
			t.Errorf("Execute = %v, %v", got, err)
		}
	})

	t.Run("missing args are zero values", func(t *testing.T) {
		call, _ := ParseCall(`page.cart.add("pear")`, Env{})
		if _, err := r.Execute(root, call); err != nil {
			t.Errorf("Execute error = %v", err)
		}
	})

	t.Run("error result", func(t *testing.T) {
		call, _ := ParseCall(`page.cart.fail()`, Env{})
		if _, err := r.Execute(root, call); err == nil || err.Error() != "boom" {
			t.Errorf("err = %v, want boom", err)
		}
	})

	t.Run("panic is recovered", func(t *testing.T) {
		call, _ := ParseCall(`page.cart.explode()`, Env{})
		if _, err := r.Execute(root, call); err == nil {
			t.Error("expected error from panicking call")
		}
	})

	t.Run("unresolved", func(t *testing.T) {
		call, _ := ParseCall(`page.nothing.here()`, Env{})
		if _, err := r.Execute(root, call); !errors.Is(err, ErrUnresolved) {
			t.Errorf("err = %v, want ErrUnresolved", err)
		}
		call, _ = ParseCall(`page.title()`, Env{})
		if _, err := r.Execute(root, call); !errors.Is(err, ErrUnresolved) {
			t.Errorf("non-func err = %v, want ErrUnresolved", err)
		}
	})
}

func TestEvalInline(t *testing.T) {
	r := &Resolver{}
	root := map[string]any{"count": 1, "open": false, "name": "ada"}
	set := func(path string, v any) error { return r.SetValue(root, path, v) }

	tests := []struct {
		src  string
		path string
		want any
	}{
		{"(count++)", "count", 2},
		{"(count += 3)", "count", 5},
		{"(count = count * 2)", "count", 10},
		{"(count--)", "count", 9},
		{"(open = !open)", "open", true},
		{"(name = 'hi ' + name)", "name", "hi ada"},
		{"(flag = count > 3)", "flag", true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if _, err := r.EvalInline(root, tt.src, set); err != nil {
				t.Fatalf("EvalInline error = %v", err)
			}
			if got := root[tt.path]; got != tt.want {
				t.Errorf("%s = %#v, want %#v", tt.path, got, tt.want)
			}
		})
	}

	got, err := r.EvalInline(root, "(count == 9 && open)", set)
	if err != nil || got != true {
		t.Errorf("pure expression = %v, %v", got, err)
	}

	if _, err := r.EvalInline(root, "(count = 1 / 0)", set); err == nil {
		t.Error("expected division by zero error")
	}
}
