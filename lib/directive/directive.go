// Package directive defines the attribute vocabulary read by the render and
// listener engines, and parses one directive value into a Binding.
//
// A directive value has the shape
//
//	<base>[ --option]*
//
// where options are separated by the literal token " --" and each option
// is either a bare name ("force") or "name:arg" ("pipe:upper.trim").
package directive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pthm/bindery/lib/expr"
)

// Prefix starts every directive and marker attribute.
const Prefix = "b-"

// Structural, writer and attribute-manager directives.
const (
	Each     = "b-each"
	Repeat   = "b-repeat"
	If       = "b-if"
	ElseIf   = "b-elseif"
	Else     = "b-else"
	Text     = "b-text"
	HTML     = "b-html"
	Value    = "b-value"
	Disabled = "b-disabled"
	Checked  = "b-checked"
	Selected = "b-selected"
	Class    = "b-class"
	Style    = "b-style"
	Src      = "b-src"

	// AttrPrefix starts arbitrary-attribute directives: b-attr-href="url"
	// manages the href attribute.
	AttrPrefix = "b-attr-"
)

// Listener directives.
const (
	Href   = "b-href"
	Click  = "b-click"
	Bind   = "b-bind"
	Input  = "b-input"
	Enter  = "b-enter"
	Keyup  = "b-keyup"
	Change = "b-change"
	On     = "b-on"
)

// View marks the outlet element that receives a controller's view.
const View = "b-view"

// Markers written by the engines. They are never parsed as directives.
const (
	NoRender    = "b-norender"
	Render      = "b-render"
	UID         = "b-uid"
	CloneOf     = "b-clone-of"
	CloneIndex  = "b-clone-index"
	ClassStatic = "b-class-static"
	StyleStatic = "b-style-static"
)

// Option names understood by the engines.
const (
	OptForce = "force" // render regardless of scope
	OptPipe  = "pipe"  // dot-chained transform list
	OptAs    = "as"    // loop variable names: "value,key"
	OptKey   = "key"   // key filter for keyup listeners
)

// Managers are the attribute-manager directives in application order.
var Managers = []string{Value, Disabled, Checked, Selected, Class, Style, Src}

// Listeners are the listener directives in binding order.
var Listeners = []string{Href, Click, Bind, Input, Enter, Keyup, Change, On}

var known = map[string]bool{}

func init() {
	for _, name := range []string{Each, Repeat, If, ElseIf, Else, Text, HTML, View} {
		known[name] = true
	}
	for _, name := range Managers {
		known[name] = true
	}
	for _, name := range Listeners {
		known[name] = true
	}
}

// IsDirective reports whether attr names a directive (not a marker).
func IsDirective(attr string) bool {
	return known[attr] || (strings.HasPrefix(attr, AttrPrefix) && len(attr) > len(AttrPrefix))
}

// IsTemplate reports whether attr makes its node a template whose subtree
// must not be interpreted directly.
func IsTemplate(attr string) bool {
	return attr == Each || attr == Repeat
}

// ErrMalformed is wrapped by Parse errors.
var ErrMalformed = errors.New("directive: malformed value")

// Option is one " --" separated token.
type Option struct {
	Name string
	Arg  string
}

// Binding is one parsed directive. It is rebuilt from the attribute string
// on every sweep and never cached.
type Binding struct {
	Attr    string
	Base    string
	Options []Option
}

// Parse splits raw into its base expression and options.
func Parse(attr, raw string) (Binding, error) {
	b := Binding{Attr: attr}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "--") {
		// options only: "--force"
		raw = " " + raw
	}
	parts := strings.Split(raw, " --")
	b.Base = strings.TrimSpace(parts[0])

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			return b, fmt.Errorf("%w: empty option in %s=%q", ErrMalformed, attr, raw)
		}
		name, arg, _ := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return b, fmt.Errorf("%w: option without a name in %s=%q", ErrMalformed, attr, raw)
		}
		b.Options = append(b.Options, Option{Name: name, Arg: strings.TrimSpace(arg)})
	}

	if b.Base == "" && requiresBase(attr) {
		return b, fmt.Errorf("%w: %s needs an expression", ErrMalformed, attr)
	}
	return b, nil
}

func requiresBase(attr string) bool {
	switch attr {
	case Else, View:
		return false
	}
	return true
}

// Option returns the named option.
func (b Binding) Option(name string) (Option, bool) {
	for _, o := range b.Options {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

// Has reports whether the named option is present.
func (b Binding) Has(name string) bool {
	_, ok := b.Option(name)
	return ok
}

// Pipe returns the transform chain named by the pipe option.
func (b Binding) Pipe() []string {
	o, ok := b.Option(OptPipe)
	if !ok || o.Arg == "" {
		return nil
	}
	var out []string
	for _, name := range strings.Split(o.Arg, ".") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// LoopNames returns the loop variable names, defaulting to value and key.
func (b Binding) LoopNames() (value, key string) {
	value, key = "value", "key"
	o, ok := b.Option(OptAs)
	if !ok {
		return value, key
	}
	v, k, _ := strings.Cut(o.Arg, ",")
	if v = strings.TrimSpace(v); v != "" {
		value = v
	}
	if k = strings.TrimSpace(k); k != "" {
		key = k
	}
	return value, key
}

// References returns the root property names the base expression reads.
// all is true when the expression may read anything (calls, inline
// expressions), in which case roots is nil.
func (b Binding) References() (roots []string, all bool) {
	return References(b.Base)
}

// References is Binding.References for a bare expression.
func References(base string) (roots []string, all bool) {
	base = strings.TrimSpace(base)
	switch {
	case base == "":
		return nil, false
	case expr.IsCall(base), expr.IsInline(base):
		return nil, true
	case HasTokens(base):
		return TokenRoots(base)
	}
	if isLiteral(base) {
		return nil, false
	}
	if root := expr.Root(base); root != "" {
		return []string{root}, false
	}
	return nil, true
}

func isLiteral(s string) bool {
	if s == "true" || s == "false" || s == "null" {
		return true
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return true
	}
	_, isString := expr.Coerce(s).(string)
	return !isString
}
