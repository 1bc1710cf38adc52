package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v2"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const routes = `
routes:
  - pattern: users/:id
    view: user.html
  - pattern: members/:id
    redirect: users/:id
notfound:
  view: missing.html
`

func TestMatch(t *testing.T) {
	table := write(t, t.TempDir(), "routes.yaml", routes)
	out, err := run(t, "match", table, "members/3?tab=posts", "nowhere")
	if err != nil {
		t.Fatalf("match: %v\n%s", err, out)
	}

	var got []matchResult
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	if len(got) != 2 {
		t.Fatalf("results = %+v", got)
	}
	r := got[0]
	if r.Pattern != "users/:id" || r.View != "user.html" || r.Redirected != "members/:id" {
		t.Errorf("redirected result = %+v", r)
	}
	if r.Params["id"] != 3 || r.Query["tab"] != "posts" {
		t.Errorf("params = %v, query = %v", r.Params, r.Query)
	}
	if got[1].View != "missing.html" {
		t.Errorf("fallback result = %+v", got[1])
	}
}

func TestMatchBadTable(t *testing.T) {
	table := write(t, t.TempDir(), "routes.yaml", "routes:\n  - view: x.html\n")
	if _, err := run(t, "match", table, "x"); err == nil {
		t.Fatal("expected an error for a route without a pattern")
	}
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	view := write(t, dir, "page.html", `<h1 b-text="title"></h1><p b-text="query.tab"></p>`)
	state := write(t, dir, "state.yaml", "title: Hello\n")

	out, err := run(t, "render", view, "--state", state, "--uri", "/?tab=posts", "--fragment")
	if err != nil {
		t.Fatalf("render: %v\n%s", err, out)
	}
	if !strings.Contains(out, ">Hello</h1>") || !strings.Contains(out, ">posts</p>") {
		t.Errorf("output = %s", out)
	}
	if strings.Contains(out, "<body>") {
		t.Errorf("fragment output includes the document: %s", out)
	}
}

func TestVetReportsIssues(t *testing.T) {
	dir := t.TempDir()
	views := filepath.Join(dir, "views")
	if err := os.Mkdir(views, 0o755); err != nil {
		t.Fatal(err)
	}
	write(t, views, "page.html", `<p b-txt="x"></p>`)

	out, err := run(t, "vet", "--views", views, dir)
	if err == nil {
		t.Fatal("expected vet to fail")
	}
	if !strings.Contains(out, "page.html:1") || !strings.Contains(out, "unknown directive") {
		t.Errorf("output = %s", out)
	}
}
