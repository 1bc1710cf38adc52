package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ArgKind classifies one argument of a parsed call.
type ArgKind int

const (
	ArgPath      ArgKind = iota // controller property, resolved at execution
	ArgNode                     // $node: the node that owns the directive
	ArgNodeValue                // $value: the node's current bound value
	ArgEvent                    // $event: the event being dispatched
	ArgString
	ArgNumber
	ArgBool
	ArgRegexp
	ArgNull
)

// Arg is one classified call argument. Value holds the literal for
// literal kinds and the context object for $node, $value and $event.
type Arg struct {
	Kind  ArgKind
	Raw   string
	Value any
}

// Env supplies the per-dispatch context objects a call may reference.
type Env struct {
	Node  any
	Event any
	Value func() any
}

// Call is a parsed `name(args)` expression.
type Call struct {
	Name string
	Args []Arg
}

var callPattern = regexp.MustCompile(`(?s)^\s*((?:this\.)?[A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)*)\s*\((.*)\)\s*$`)

// IsCall reports whether def has the shape name(args).
func IsCall(def string) bool {
	return callPattern.MatchString(def)
}

// ParseCall parses def as a single call and classifies its arguments.
func ParseCall(def string, env Env) (*Call, error) {
	m := callPattern.FindStringSubmatch(def)
	if m == nil {
		return nil, fmt.Errorf("%w: %q is not a call", ErrSyntax, def)
	}

	call := &Call{Name: strings.TrimPrefix(m[1], "this.")}
	raw := strings.TrimSpace(m[2])
	if raw == "" {
		return call, nil
	}

	parts, err := splitTopLevel(raw, ',')
	if err != nil {
		return nil, err
	}
	for _, part := range parts {
		arg, err := classify(strings.TrimSpace(part), env)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
	return call, nil
}

var (
	numberArg = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	regexArg  = regexp.MustCompile(`^/(.*)/([gimsuy]*)$`)
)

func classify(raw string, env Env) (Arg, error) {
	arg := Arg{Raw: raw}
	switch {
	case raw == "$node" || raw == "this":
		arg.Kind, arg.Value = ArgNode, env.Node
	case raw == "$value":
		arg.Kind = ArgNodeValue
		if env.Value != nil {
			arg.Value = env.Value()
		}
	case raw == "$event":
		arg.Kind, arg.Value = ArgEvent, env.Event
	case raw == "true" || raw == "false":
		arg.Kind, arg.Value = ArgBool, raw == "true"
	case raw == "null" || raw == "nil" || raw == "undefined":
		arg.Kind = ArgNull
	case len(raw) >= 2 && isQuote(raw[0]) && raw[len(raw)-1] == raw[0]:
		arg.Kind, arg.Value = ArgString, unquote(raw)
	case numberArg.MatchString(raw):
		arg.Kind = ArgNumber
		if i, err := strconv.Atoi(strings.TrimPrefix(raw, "+")); err == nil {
			arg.Value = i
		} else {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return arg, fmt.Errorf("%w: bad number %q", ErrSyntax, raw)
			}
			arg.Value = f
		}
	case regexArg.MatchString(raw):
		m := regexArg.FindStringSubmatch(raw)
		re, err := compileRegexp(m[1], m[2])
		if err != nil {
			return arg, fmt.Errorf("%w: bad regexp %q: %v", ErrSyntax, raw, err)
		}
		arg.Kind, arg.Value = ArgRegexp, re
	default:
		arg.Kind = ArgPath
	}
	return arg, nil
}

// compileRegexp maps the i, m and s flags to inline Go flags; g, u and y
// have no Go equivalent and are ignored.
func compileRegexp(src, flags string) (*regexp.Regexp, error) {
	var inline string
	for _, f := range flags {
		if strings.ContainsRune("ims", f) && !strings.ContainsRune(inline, f) {
			inline += string(f)
		}
	}
	if inline != "" {
		src = "(?" + inline + ")" + src
	}
	return regexp.Compile(src)
}

func isQuote(c byte) bool {
	return c == '"' || c == '\'' || c == '`'
}

func unquote(raw string) string {
	body := raw[1 : len(raw)-1]
	if !strings.Contains(body, `\`) {
		return body
	}
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(body[i])
			}
			continue
		}
		sb.WriteByte(body[i])
	}
	return sb.String()
}

// SplitCalls splits a handler body on top-level semicolons.
func SplitCalls(body string) ([]string, error) {
	parts, err := splitTopLevel(body, ';')
	if err != nil {
		return nil, err
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// splitTopLevel splits s on sep outside quotes, brackets, parens and
// regexp literals.
func splitTopLevel(s string, sep byte) ([]string, error) {
	var parts []string
	depth := 0
	start := 0
	var quote byte
	inRegexp := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case inRegexp:
			if c == '\\' {
				i++
			} else if c == '/' {
				inRegexp = false
			}
		case isQuote(c):
			quote = c
		case c == '/' && strings.TrimSpace(s[start:i]) == "":
			inRegexp = true
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced %q in %q", ErrSyntax, c, s)
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if quote != 0 || depth != 0 {
		return nil, fmt.Errorf("%w: unterminated expression %q", ErrSyntax, s)
	}
	return append(parts, s[start:]), nil
}
