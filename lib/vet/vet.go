// Package vet statically checks view files and the controllers that own
// them: every b- attribute must parse, and every handler a listener
// directive calls must be a method of the controller whose View returns
// that file.
package vet

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/pthm/bindery/lib/directive"
	"github.com/pthm/bindery/lib/expr"
	"github.com/pthm/bindery/lib/listen"
)

// Options configures the checker.
type Options struct {
	// Ext is the view file extension, ".html" by default.
	Ext string
}

// Checker scans views and Go packages.
type Checker struct {
	opts Options
	fset *token.FileSet
}

// New creates a new checker.
func New(opts Options) *Checker {
	if opts.Ext == "" {
		opts.Ext = ".html"
	}
	return &Checker{opts: opts, fset: token.NewFileSet()}
}

// Issue is one problem found by the checker.
type Issue struct {
	File string
	Line int
	Attr string
	Msg  string
}

func (i Issue) String() string {
	if i.Attr == "" {
		return fmt.Sprintf("%s:%d: %s", i.File, i.Line, i.Msg)
	}
	return fmt.Sprintf("%s:%d: %s: %s", i.File, i.Line, i.Attr, i.Msg)
}

// Handler is a handler name called by a listener directive.
type Handler struct {
	Name string
	Attr string
	Line int
}

// View is a scanned view file.
type View struct {
	// Path is the slash-separated path relative to the views directory,
	// as a Viewer would return it.
	Path     string
	File     string
	Handlers []Handler
	Issues   []Issue
}

// ControllerInfo holds information about a discovered controller type.
type ControllerInfo struct {
	SourceFile string
	TypeName   string
	View       string // literal returned by View(), empty if none
	Methods    []string
}

// builtins are the methods every controller gains from *bindery.Controller.
var builtins = []string{"Get", "Set", "Navigate", "Refresh", "Scope", "State", "Listeners", "Document"}

// Run scans the views under viewDir and the controllers in the given
// package patterns and returns every issue, sorted by file and line.
func (c *Checker) Run(viewDir string, patterns ...string) ([]Issue, error) {
	views, err := c.Views(viewDir)
	if err != nil {
		return nil, err
	}
	var issues []Issue
	for _, v := range views {
		issues = append(issues, v.Issues...)
	}
	if len(patterns) > 0 {
		ctrls, err := c.Controllers(patterns...)
		if err != nil {
			return nil, err
		}
		issues = append(issues, c.CheckHandlers(views, ctrls)...)
	}
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].File != issues[j].File {
			return issues[i].File < issues[j].File
		}
		return issues[i].Line < issues[j].Line
	})
	return issues, nil
}

// Views scans every view file under dir.
func (c *Checker) Views(dir string) ([]*View, error) {
	var views []*View
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(p) != c.opts.Ext {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		v, err := c.View(p, f)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		v.Path = filepath.ToSlash(rel)
		views = append(views, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// View scans one view. Issues are reported against file.
func (c *Checker) View(file string, r io.Reader) (*View, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	v := &View{Path: filepath.ToSlash(file), File: file}

	z := html.NewTokenizer(bytes.NewReader(src))
	line := 1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				return v, nil
			}
			return nil, z.Err()
		}
		at := line
		line += bytes.Count(z.Raw(), []byte("\n"))
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		for _, a := range tok.Attr {
			if strings.HasPrefix(a.Key, directive.Prefix) {
				c.checkAttr(v, at, a.Key, a.Val)
			}
		}
	}
}

func (c *Checker) checkAttr(v *View, line int, attr, raw string) {
	report := func(format string, args ...any) {
		v.Issues = append(v.Issues, Issue{File: v.File, Line: line, Attr: attr, Msg: fmt.Sprintf(format, args...)})
	}

	if !directive.IsDirective(attr) {
		report("unknown directive")
		return
	}
	b, err := directive.Parse(attr, raw)
	if err != nil {
		report("%v", err)
		return
	}

	switch attr {
	case directive.Click, directive.Change, directive.Enter, directive.Keyup:
		c.checkBody(v, line, attr, b.Base, report)
	case directive.On:
		for _, part := range listen.SplitEvents(b.Base) {
			event, body, ok := strings.Cut(part, ":")
			if !ok || strings.TrimSpace(event) == "" {
				report("%q is not event:handler", part)
				continue
			}
			c.checkBody(v, line, attr, body, report)
		}
	}
}

func (c *Checker) checkBody(v *View, line int, attr, body string, report func(string, ...any)) {
	body = strings.TrimSpace(body)
	if expr.IsInline(body) {
		return
	}
	calls, err := expr.SplitCalls(body)
	if err != nil {
		report("%v", err)
		return
	}
	for _, def := range calls {
		call, err := expr.ParseCall(def, expr.Env{})
		if err != nil {
			report("%v", err)
			continue
		}
		if strings.Contains(call.Name, ".") {
			// nested receivers are resolved at dispatch
			continue
		}
		v.Handlers = append(v.Handlers, Handler{Name: call.Name, Attr: attr, Line: line})
	}
}

// CheckHandlers reports handlers called from a controller's view that the
// controller does not define.
func (c *Checker) CheckHandlers(views []*View, ctrls []*ControllerInfo) []Issue {
	byPath := make(map[string]*View, len(views))
	for _, v := range views {
		byPath[v.Path] = v
	}

	var issues []Issue
	for _, ctrl := range ctrls {
		if ctrl.View == "" {
			continue
		}
		v := byPath[c.viewPath(ctrl.View)]
		if v == nil {
			issues = append(issues, Issue{
				File: ctrl.SourceFile,
				Msg:  fmt.Sprintf("%s: view %q not found", ctrl.TypeName, ctrl.View),
			})
			continue
		}
		methods := map[string]bool{}
		for _, m := range append(ctrl.Methods, builtins...) {
			methods[m] = true
		}
		for _, h := range v.Handlers {
			if !methods[upperFirst(h.Name)] {
				issues = append(issues, Issue{
					File: v.File,
					Line: h.Line,
					Attr: h.Attr,
					Msg:  fmt.Sprintf("%s has no method %s", ctrl.TypeName, upperFirst(h.Name)),
				})
			}
		}
	}
	return issues
}

func (c *Checker) viewPath(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if path.Ext(p) == "" {
		p += c.opts.Ext
	}
	return p
}

// Controllers finds every type embedding *bindery.Controller in the given
// package patterns. A trailing "/..." walks subdirectories.
func (c *Checker) Controllers(patterns ...string) ([]*ControllerInfo, error) {
	packages, err := findPackages(patterns)
	if err != nil {
		return nil, err
	}
	var out []*ControllerInfo
	for _, dir := range packages {
		found, err := c.controllersIn(dir)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", dir, err)
		}
		out = append(out, found...)
	}
	return out, nil
}

// findPackages resolves package patterns to directory paths.
func findPackages(patterns []string) ([]string, error) {
	var packages []string
	for _, pattern := range patterns {
		if !strings.HasSuffix(pattern, "/...") {
			packages = append(packages, pattern)
			continue
		}
		root := strings.TrimSuffix(pattern, "/...")
		if root == "" {
			root = "."
		}
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			base := d.Name()
			if p != root && (strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") || base == "vendor" || base == "testdata") {
				return filepath.SkipDir
			}
			entries, err := os.ReadDir(p)
			if err != nil {
				return nil
			}
			for _, e := range entries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), ".go") && !strings.HasSuffix(e.Name(), "_test.go") {
					packages = append(packages, p)
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return packages, nil
}

func (c *Checker) controllersIn(dir string) ([]*ControllerInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []*ast.File
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(c.fset, filepath.Join(dir, name), nil, 0)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return c.FindControllers(files...), nil
}

// FindControllers finds controller types and their methods across the
// files of one package.
func (c *Checker) FindControllers(files ...*ast.File) []*ControllerInfo {
	byName := map[string]*ControllerInfo{}
	var order []string

	for _, file := range files {
		for _, decl := range file.Decls {
			genDecl, ok := decl.(*ast.GenDecl)
			if !ok || genDecl.Tok != token.TYPE {
				continue
			}
			for _, spec := range genDecl.Specs {
				typeSpec, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				structType, ok := typeSpec.Type.(*ast.StructType)
				if !ok || !embedsController(structType) {
					continue
				}
				name := typeSpec.Name.Name
				byName[name] = &ControllerInfo{
					SourceFile: c.fset.Position(typeSpec.Pos()).Filename,
					TypeName:   name,
				}
				order = append(order, name)
			}
		}
	}

	for _, file := range files {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || len(fn.Recv.List) != 1 {
				continue
			}
			ctrl := byName[receiverName(fn.Recv.List[0].Type)]
			if ctrl == nil || !fn.Name.IsExported() {
				continue
			}
			ctrl.Methods = append(ctrl.Methods, fn.Name.Name)
			if fn.Name.Name == "View" {
				ctrl.View = returnedLiteral(fn)
			}
		}
	}

	out := make([]*ControllerInfo, 0, len(order))
	for _, name := range order {
		sort.Strings(byName[name].Methods)
		out = append(out, byName[name])
	}
	return out
}

// embedsController checks if a struct embeds *bindery.Controller (or
// *Controller inside the bindery package itself).
func embedsController(st *ast.StructType) bool {
	for _, field := range st.Fields.List {
		if len(field.Names) != 0 {
			continue
		}
		star, ok := field.Type.(*ast.StarExpr)
		if !ok {
			continue
		}
		switch x := star.X.(type) {
		case *ast.SelectorExpr:
			if ident, ok := x.X.(*ast.Ident); ok && ident.Name == "bindery" && x.Sel.Name == "Controller" {
				return true
			}
		case *ast.Ident:
			if x.Name == "Controller" {
				return true
			}
		}
	}
	return false
}

func receiverName(e ast.Expr) string {
	if star, ok := e.(*ast.StarExpr); ok {
		e = star.X
	}
	if ident, ok := e.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

// returnedLiteral returns the string literal of a single-return body.
func returnedLiteral(fn *ast.FuncDecl) string {
	if fn.Body == nil || len(fn.Body.List) != 1 {
		return ""
	}
	ret, ok := fn.Body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return ""
	}
	lit, ok := ret.Results[0].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return ""
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return ""
	}
	return s
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
