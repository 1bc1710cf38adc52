package render

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/pthm/bindery/lib/directive"
	"github.com/pthm/bindery/lib/dom"
)

func parse(t *testing.T, body string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString("<html><head></head><body>" + body + "</body></html>")
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}
	return doc
}

func sweep(t *testing.T, e *Engine, doc *dom.Document, root any, scope Scope) {
	t.Helper()
	if err := e.Sweep(context.Background(), doc, root, scope); err != nil {
		t.Fatalf("Sweep error = %v", err)
	}
}

func clonesOf(doc *dom.Document, uid string) []*html.Node {
	var out []*html.Node
	for _, n := range dom.WithAttr(doc.Root, directive.CloneOf) {
		if v, _ := dom.Attr(n, directive.CloneOf); v == uid {
			out = append(out, n)
		}
	}
	return out
}

func TestEachClonesAfterTemplate(t *testing.T) {
	doc := parse(t, `<ul id="list"><li id="tpl" b-each="items --as:val,key">{{key}}:{{val}}</li><li id="tail">end</li></ul>`)
	root := map[string]any{"items": []any{"a", "b"}}
	e := New(nil)
	sweep(t, e, doc, root, Full())

	tpl := doc.ByID("tpl")
	if !dom.Hidden(tpl) || !dom.HasAttr(tpl, directive.NoRender) {
		t.Errorf("template not disabled: %s", dom.Render(tpl))
	}

	var got []string
	for n := tpl.NextSibling; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode {
			got = append(got, dom.Text(n))
		}
	}
	want := []string{"0:a", "1:b", "end"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("siblings = %v, want %v", got, want)
	}

	clones := clonesOf(doc, "1")
	if len(clones) != 2 {
		t.Fatalf("got %d clones, want 2", len(clones))
	}
	for i, c := range clones {
		if dom.Hidden(c) || dom.HasAttr(c, directive.Each) || !dom.HasAttr(c, directive.Render) {
			t.Errorf("clone %d = %s", i, dom.Render(c))
		}
		if idx, _ := dom.Attr(c, directive.CloneIndex); idx != []string{"0", "1"}[i] {
			t.Errorf("clone %d index = %q", i, idx)
		}
		if id, _ := dom.Attr(c, "id"); id != []string{"tpl-0", "tpl-1"}[i] {
			t.Errorf("clone %d id = %q", i, id)
		}
	}
}

func TestCloneIDsAreUnique(t *testing.T) {
	doc := parse(t, `<div id="row" b-each="rows --as:row"><span id="cell" b-each="cols">{{value}}</span></div>`)
	root := map[string]any{"rows": []any{"x", "y"}, "cols": []any{"a", "b"}}
	sweep(t, New(nil), doc, root, Full())

	seen := map[string]int{}
	for _, n := range dom.Elements(doc.Body()) {
		if id, ok := dom.Attr(n, "id"); ok {
			seen[id]++
		}
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("id %q used %d times", id, n)
		}
	}
	for _, id := range []string{"row", "cell", "row-0", "cell-0", "cell-0-0", "cell-0-1", "row-1", "cell-1-0", "cell-1-1"} {
		if seen[id] != 1 {
			t.Errorf("id %q missing, have %v", id, seen)
		}
	}
}

func TestRepeatIsCapped(t *testing.T) {
	tests := []struct {
		name  string
		max   int
		n     int
		want  int
		warns bool
	}{
		{"under cap", 5, 3, 3, false},
		{"at cap", 5, 5, 5, false},
		{"over cap", 5, 1000000, 5, true},
		{"no cap", 0, 20, 20, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			e := New(slog.New(slog.NewTextHandler(&buf, nil)))
			e.MaxRepeat = tt.max
			doc := parse(t, `<b b-repeat="n">x</b>`)
			sweep(t, e, doc, map[string]any{"n": tt.n}, Full())

			if got := len(dom.WithAttr(doc.Root, directive.CloneOf)); got != tt.want {
				t.Errorf("clones = %d, want %d", got, tt.want)
			}
			if got := strings.Contains(buf.String(), "repeat count capped"); got != tt.warns {
				t.Errorf("warned = %v, want %v: %s", got, tt.warns, buf.String())
			}
		})
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	body := `<ul><li b-each="rows --as:row">{{row.name}}<span b-each="rows.{{key}}.tags --as:tag">[{{tag}}]</span></li></ul>
<p b-repeat="stars">*</p>
<p b-text="title --pipe:upper" b-class="kind" class="base"></p>
<div b-if="open">open</div><div b-else>closed</div>`
	root := map[string]any{
		"rows": []any{
			map[string]any{"name": "x", "tags": []any{"t1", "t2"}},
			map[string]any{"name": "y", "tags": []any{}},
		},
		"stars": 3,
		"title": "hello",
		"kind":  map[string]bool{"on": true, "off": false},
		"open":  false,
	}
	doc := parse(t, body)
	e := New(nil)

	sweep(t, e, doc, root, Full())
	first := doc.HTML()
	sweep(t, e, doc, root, Full())
	if second := doc.HTML(); second != first {
		t.Errorf("second sweep changed the document:\n%s\n---\n%s", first, second)
	}
	if e.Sweeps() != 2 {
		t.Errorf("Sweeps = %d", e.Sweeps())
	}

	if got := strings.Count(first, "[t1]"); got != 1 {
		t.Errorf("nested clone count = %d in %s", got, first)
	}
	if got := len(dom.WithAttr(doc.Root, directive.CloneOf)); got != 2+2+3 {
		t.Errorf("clone count = %d, want 7", got)
	}
	if !strings.Contains(first, `class="base on"`) || !strings.Contains(first, "HELLO") {
		t.Errorf("writers or managers missing from %s", first)
	}
}

func TestConditionalGroup(t *testing.T) {
	doc := parse(t, `<div id="a" b-if="a">A</div>
<div id="b" b-elseif="b">B</div>
<div id="c" b-else>C</div>
<div id="d">D</div>`)
	root := map[string]any{"a": false, "b": false}
	e := New(nil)

	visible := func() []string {
		var out []string
		for _, id := range []string{"a", "b", "c", "d"} {
			if !dom.Hidden(doc.ByID(id)) {
				out = append(out, id)
			}
		}
		return out
	}

	sweep(t, e, doc, root, Full())
	if got := strings.Join(visible(), ""); got != "cd" {
		t.Errorf("visible = %q, want cd", got)
	}

	root["a"] = true
	sweep(t, e, doc, root, Full())
	if got := strings.Join(visible(), ""); got != "ad" {
		t.Errorf("visible = %q, want ad", got)
	}

	root["a"], root["b"] = false, "yes"
	sweep(t, e, doc, root, Full())
	if got := strings.Join(visible(), ""); got != "bd" {
		t.Errorf("visible = %q, want bd", got)
	}
}

func TestScopedSweepMatchesFullSweep(t *testing.T) {
	body := `<h1 b-text="title"></h1>
<ul><li b-each="items">{{value}}/{{count}}</li></ul>
<span b-text="count"></span>
<em b-if="count"></em><em b-else></em>
<input b-value="count" b-disabled="locked">
<b b-text="stamp() --force"></b>
<s b-text="twice"></s>`
	newRoot := func() map[string]any {
		n := 0
		root := map[string]any{
			"title":  "t",
			"items":  []any{"a", "b"},
			"count":  0,
			"locked": true,
			"stamp":  func() int { n++; return n },
		}
		root["twice"] = func() int { return 2 * root["count"].(int) }
		return root
	}

	scoped, full := parse(t, body), parse(t, body)
	rs, rf := newRoot(), newRoot()
	es, ef := New(nil), New(nil)
	sweep(t, es, scoped, rs, Full())
	sweep(t, ef, full, rf, Full())

	for _, v := range []int{1, 2, 0} {
		rs["count"], rf["count"] = v, v
		sweep(t, es, scoped, rs, Roots("count"))
		sweep(t, ef, full, rf, Full())
		if scoped.HTML() != full.HTML() {
			t.Fatalf("count=%d scoped:\n%s\nfull:\n%s", v, scoped.HTML(), full.HTML())
		}
	}
}

func TestVisit(t *testing.T) {
	doc := parse(t, `<div b-norender><p id="off" b-text="x"></p><section b-render><p id="on" b-text="x"></p></section></div><p id="top" b-text="y --force"></p>`)
	bx, _ := directive.Parse(directive.Text, "x")
	by, _ := directive.Parse(directive.Text, "y --force")
	call, _ := directive.Parse(directive.Text, "x()")

	tests := []struct {
		name  string
		id    string
		b     directive.Binding
		scope Scope
		want  bool
	}{
		{"disabled ancestor", "off", bx, Full(), false},
		{"re-enabled", "on", bx, Full(), true},
		{"in scope", "on", bx, Roots("x"), true},
		{"out of scope", "on", bx, Roots("z"), false},
		{"forced", "top", by, Roots("z"), true},
		{"call reads everything", "on", call, Roots("z"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Visit(doc.ByID(tt.id), tt.b, tt.scope); got != tt.want {
				t.Errorf("Visit = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWritersAndMarkupQuarantine(t *testing.T) {
	doc := parse(t, `<p id="t" b-text="user"></p><div id="h" b-html="snippet"></div><div id="md" b-html="notes --pipe:markdown"></div><p id="n" b-text="missing"></p>`)
	root := map[string]any{
		"user":    map[string]any{"name": "ada"},
		"snippet": `<span b-text="user.name">x</span><i b-each="list">{{value}}</i>`,
		"notes":   "**bold**",
	}
	sweep(t, New(nil), doc, root, Full())

	if got := dom.Text(doc.ByID("t")); got != `{"name":"ada"}` {
		t.Errorf("b-text = %q", got)
	}
	h := doc.ByID("h")
	span := dom.FindFirst(h, func(n *html.Node) bool { return n.Data == "span" })
	if span == nil || dom.Text(span) != "x" || !dom.HasAttr(span, directive.NoRender) {
		t.Errorf("injected span = %s", dom.Render(span))
	}
	tpl := dom.FindFirst(h, func(n *html.Node) bool { return n.Data == "i" })
	if tpl == nil || !dom.Hidden(tpl) {
		t.Errorf("injected template = %s", dom.Render(tpl))
	}
	if got := dom.InnerHTML(doc.ByID("md")); !strings.Contains(got, "<strong>bold</strong>") {
		t.Errorf("markdown = %q", got)
	}
	if got := dom.Text(doc.ByID("n")); got != "" {
		t.Errorf("undefined writer = %q", got)
	}
}

func TestAttributeManagers(t *testing.T) {
	doc := parse(t, `<input id="i" b-value="name" b-checked="agree" b-disabled="missing" disabled>
<img id="img" b-src="/img/{{id}}.png" b-attr-alt="name" b-attr-hidden="gone">
<div id="d" class="card" style="color: red" b-class="classes" b-style="css"></div>
<div id="u" title="keep" b-attr-title="nothing.here"></div>`)
	root := map[string]any{
		"name":    "ada",
		"agree":   1,
		"id":      7,
		"gone":    false,
		"classes": []any{"wide", "dark"},
		"css":     map[string]any{"margin": "0", "padding": ""},
	}
	sweep(t, New(nil), doc, root, Full())

	in := doc.ByID("i")
	if dom.Value(in) != "ada" || !dom.HasAttr(in, "checked") || dom.HasAttr(in, "disabled") {
		t.Errorf("input = %s", dom.Render(in))
	}
	img := doc.ByID("img")
	if src, _ := dom.Attr(img, "src"); src != "/img/7.png" {
		t.Errorf("src = %q", src)
	}
	if alt, _ := dom.Attr(img, "alt"); alt != "ada" || dom.HasAttr(img, "hidden") {
		t.Errorf("img = %s", dom.Render(img))
	}
	d := doc.ByID("d")
	if class, _ := dom.Attr(d, "class"); class != "card wide dark" {
		t.Errorf("class = %q", class)
	}
	if style, _ := dom.Attr(d, "style"); style != "color: red; margin: 0" {
		t.Errorf("style = %q", style)
	}
	if title, _ := dom.Attr(doc.ByID("u"), "title"); title != "keep" {
		t.Errorf("undefined value should not change title, got %q", title)
	}
}

func TestClassMergeKeepsStaticClasses(t *testing.T) {
	doc := parse(t, `<div id="d" class="card" b-class="kind"></div>`)
	root := map[string]any{"kind": "dark"}
	e := New(nil)

	sweep(t, e, doc, root, Full())
	root["kind"] = "light"
	sweep(t, e, doc, root, Full())

	if class, _ := dom.Attr(doc.ByID("d"), "class"); class != "card light" {
		t.Errorf("class = %q, want %q", class, "card light")
	}
}

func TestRepeatAndConflicts(t *testing.T) {
	doc := parse(t, `<b id="r" b-repeat="n --as:i">{{i}}</b><i id="x" b-each="list" b-repeat="n">bad</i>`)
	root := map[string]any{"n": "3", "list": []any{1}}
	sweep(t, New(nil), doc, root, Full())

	body := dom.Text(doc.Body())
	if !strings.Contains(body, "012") {
		t.Errorf("repeat output = %q", body)
	}
	if dom.HasAttr(doc.ByID("x"), directive.UID) {
		t.Error("node with both each and repeat should be skipped")
	}
}

func TestMapCollectionsAreSorted(t *testing.T) {
	doc := parse(t, `<p b-each="m">{{key}}={{value}};</p>`)
	sweep(t, New(nil), doc, map[string]any{"m": map[string]int{"b": 2, "a": 1, "c": 3}}, Full())
	if got := dom.Text(doc.Body()); !strings.HasSuffix(got, "a=1;b=2;c=3;") {
		t.Errorf("text = %q", got)
	}
}

func TestCloneValuesAreEscaped(t *testing.T) {
	doc := parse(t, `<p b-each="xs">{{value}}</p>`)
	sweep(t, New(nil), doc, map[string]any{"xs": []any{"<script>x</script>"}}, Full())
	if dom.FindFirst(doc.Body(), func(n *html.Node) bool { return n.Data == "script" }) != nil {
		t.Errorf("value was parsed as markup: %s", doc.HTML())
	}
	if !strings.Contains(dom.Text(doc.Body()), "<script>x</script>") {
		t.Errorf("text = %q", dom.Text(doc.Body()))
	}
}

func TestSweepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc := parse(t, `<p b-text="x"></p>`)
	if err := New(nil).Sweep(ctx, doc, map[string]any{"x": 1}, Full()); err == nil {
		t.Error("expected context error")
	}
}
