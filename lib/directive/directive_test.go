package directive

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		attr    string
		raw     string
		base    string
		options []Option
	}{
		{"bare", Text, "user.name", "user.name", nil},
		{"trimmed", Text, "  user.name  ", "user.name", nil},
		{"one option", Text, "title --pipe:upper.trim", "title", []Option{{"pipe", "upper.trim"}}},
		{"flag and arg", Each, "items --force --as:item,i", "items", []Option{{"force", ""}, {"as", "item,i"}}},
		{"options only", Else, "--force", "", []Option{{"force", ""}}},
		{"empty else", Else, "", "", nil},
		{"call keeps dashes", Click, "save(a-b)", "save(a-b)", nil},
		{"arg with colon", Keyup, "search() --key:13", "search()", []Option{{"key", "13"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Parse(tt.attr, tt.raw)
			if err != nil {
				t.Fatalf("Parse error = %v", err)
			}
			if b.Base != tt.base {
				t.Errorf("Base = %q, want %q", b.Base, tt.base)
			}
			if !reflect.DeepEqual(b.Options, tt.options) {
				t.Errorf("Options = %+v, want %+v", b.Options, tt.options)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		attr, raw string
	}{
		{Text, ""},
		{If, "  "},
		{Text, "a --"},
		{Text, "a --:x"},
	}
	for _, tt := range tests {
		if _, err := Parse(tt.attr, tt.raw); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%s, %q) err = %v, want ErrMalformed", tt.attr, tt.raw, err)
		}
	}
}

func TestBindingHelpers(t *testing.T) {
	b, err := Parse(Each, "rows --as:row --pipe:lower. trim")
	if err != nil {
		t.Fatal(err)
	}
	if v, k := b.LoopNames(); v != "row" || k != "key" {
		t.Errorf("LoopNames = %q, %q", v, k)
	}
	if got := b.Pipe(); !reflect.DeepEqual(got, []string{"lower", "trim"}) {
		t.Errorf("Pipe = %v", got)
	}
	if b.Has(OptForce) {
		t.Error("unexpected force option")
	}

	plain, _ := Parse(Each, "rows")
	if v, k := plain.LoopNames(); v != "value" || k != "key" {
		t.Errorf("default LoopNames = %q, %q", v, k)
	}
}

func TestReferences(t *testing.T) {
	tests := []struct {
		base  string
		roots []string
		all   bool
	}{
		{"user.name", []string{"user"}, false},
		{"this.items[0]", []string{"items"}, false},
		{"count()", nil, true},
		{"(count + 1)", nil, true},
		{"'literal'", nil, false},
		{"42", nil, false},
		{"true", nil, false},
		{"/img/{{user.id}}/{{size}}.png", []string{"user", "size"}, false},
		{"{{total()}}", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			roots, all := References(tt.base)
			if all != tt.all || !reflect.DeepEqual(roots, tt.roots) {
				t.Errorf("References = %v, %v; want %v, %v", roots, all, tt.roots, tt.all)
			}
		})
	}
}

func TestIsDirective(t *testing.T) {
	for _, attr := range []string{Each, Text, Class, Click, On, "b-attr-href", View} {
		if !IsDirective(attr) {
			t.Errorf("IsDirective(%q) = false", attr)
		}
	}
	for _, attr := range []string{UID, Render, NoRender, CloneOf, "b-attr-", "class", "b-unknown"} {
		if IsDirective(attr) {
			t.Errorf("IsDirective(%q) = true", attr)
		}
	}
}

func TestInterpolate(t *testing.T) {
	values := map[string]string{
		"key":   "k1",
		"val":   "v1",
		"outer": "[{{inner}}]",
		"inner": "deep",
		"loop":  "{{loop}}",
	}
	resolve := func(e string) string { return values[e] }

	tests := []struct {
		in, want string
	}{
		{"<li>{{key}}:{{val}}</li>", "<li>k1:v1</li>"},
		{"{{ key }}", "k1"},
		{"{{outer}}", "[deep]"},
		{"no tokens", "no tokens"},
		{"{{missing}}!", "!"},
	}
	for _, tt := range tests {
		if got := Interpolate(tt.in, resolve); got != tt.want {
			t.Errorf("Interpolate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	calls := 0
	counting := func(e string) string { calls++; return values[e] }
	if got := Interpolate("{{loop}}", counting); !strings.Contains(got, "{{loop}}") {
		t.Errorf("self-referencing token = %q", got)
	}
	if calls != MaxDepth {
		t.Errorf("resolver called %d times, want %d", calls, MaxDepth)
	}
}
