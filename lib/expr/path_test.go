package expr

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

type address struct {
	City string `json:"city"`
}

type account struct {
	Name    string
	Tags    []string
	Address *address
	Extra   map[string]int
	private string
}

func (a *account) Greeting() string { return "hi " + a.Name }

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"a", []string{"a"}},
		{"a.b.c", []string{"a", "b", "c"}},
		{"this.a.b", []string{"a", "b"}},
		{"items[0].name", []string{"items", "0", "name"}},
		{`labels["a b"]`, []string{"labels", "a b"}},
		{"m['k'][2]", []string{"m", "k", "2"}},
		{"this", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := SplitPath(tt.path)
			if err != nil {
				t.Fatalf("SplitPath(%q) error = %v", tt.path, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}

	if _, err := SplitPath("a[0"); !errors.Is(err, ErrSyntax) {
		t.Errorf("unclosed bracket: err = %v, want ErrSyntax", err)
	}
}

func TestGetValue(t *testing.T) {
	acct := &account{
		Name:    "ada",
		Tags:    []string{"x", "y"},
		Address: &address{City: "london"},
		Extra:   map[string]int{"n": 3},
		private: "hidden",
	}
	root := map[string]any{
		"user":  acct,
		"items": []any{map[string]any{"name": "first"}, "second"},
		"count": 2,
	}
	r := &Resolver{}

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"count", 2, true},
		{"items[0].name", "first", true},
		{"items.1", "second", true},
		{"user.name", "ada", true},
		{"user.Name", "ada", true},
		{"user.tags[1]", "y", true},
		{"user.address.city", "london", true},
		{"user.extra.n", 3, true},
		{"user.greeting", "hi ada", true},
		{"user.private", nil, false},
		{"items[5]", nil, false},
		{"count.deeper", nil, false},
		{"missing.path", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := r.GetValue(root, tt.path)
			if ok != tt.wantOK {
				t.Fatalf("GetValue(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetValue(%q) = %#v, want %#v", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetValueLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	r := NewResolver(slog.New(slog.NewTextHandler(&buf, nil)))

	if _, ok := r.GetValue(map[string]any{}, "nope.deeper"); ok {
		t.Fatal("expected missing path")
	}
	if !strings.Contains(buf.String(), "unresolved property path") {
		t.Errorf("expected a resolution warning, got %q", buf.String())
	}

	buf.Reset()
	r.Lookup(map[string]any{}, "nope")
	if buf.Len() != 0 {
		t.Errorf("Lookup should not warn, got %q", buf.String())
	}
}

func TestSetValue(t *testing.T) {
	r := &Resolver{}

	t.Run("creates intermediates", func(t *testing.T) {
		root := map[string]any{}
		if err := r.SetValue(root, "a.b.c", 5); err != nil {
			t.Fatalf("SetValue error = %v", err)
		}
		got, ok := r.GetValue(root, "a.b.c")
		if !ok || got != 5 {
			t.Errorf("a.b.c = %v (ok=%v), want 5", got, ok)
		}
	})

	t.Run("struct field with conversion", func(t *testing.T) {
		acct := &account{Extra: map[string]int{}}
		if err := r.SetValue(acct, "name", "grace"); err != nil {
			t.Fatalf("SetValue error = %v", err)
		}
		if err := r.SetValue(acct, "extra.n", "7"); err != nil {
			t.Fatalf("SetValue error = %v", err)
		}
		if acct.Name != "grace" || acct.Extra["n"] != 7 {
			t.Errorf("account = %+v", acct)
		}
	})

	t.Run("slice element", func(t *testing.T) {
		root := map[string]any{"items": []any{"a", "b"}}
		if err := r.SetValue(root, "items[1]", "z"); err != nil {
			t.Fatalf("SetValue error = %v", err)
		}
		if root["items"].([]any)[1] != "z" {
			t.Errorf("items = %v", root["items"])
		}
	})

	t.Run("not assignable", func(t *testing.T) {
		root := map[string]any{"n": 3}
		if err := r.SetValue(root, "n.x", 1); !errors.Is(err, ErrNotAssignable) {
			t.Errorf("err = %v, want ErrNotAssignable", err)
		}
	})
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"5", 5},
		{"-12", -12},
		{"007", "007"},
		{"1.5", 1.5},
		{"true", true},
		{"false", false},
		{"foo", "foo"},
		{"", ""},
		{`{"a":1}`, map[string]any{"a": 1}},
		{"[1,2.5]", []any{1, 2.5}},
		{"[oops", "[oops"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Coerce(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Coerce(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruthyAndString(t *testing.T) {
	truthy := []any{true, 1, -1.5, "x", []int{1}, map[string]int{"a": 1}, &account{}}
	falsy := []any{nil, false, 0, 0.0, "", []any{}, map[string]any{}}

	for _, v := range truthy {
		if !Truthy(v) {
			t.Errorf("Truthy(%#v) = false, want true", v)
		}
	}
	for _, v := range falsy {
		if Truthy(v) {
			t.Errorf("Truthy(%#v) = true, want false", v)
		}
	}

	strs := map[string]any{
		"":        nil,
		"abc":     "abc",
		"42":      42,
		"2.5":     2.5,
		"true":    true,
		`{"a":1}`: map[string]int{"a": 1},
		`[1,2]`:   []int{1, 2},
	}
	for want, in := range strs {
		if got := String(in); got != want {
			t.Errorf("String(%#v) = %q, want %q", in, got, want)
		}
	}
}
