// Package route matches addresses against an ordered pattern table and runs
// the matched handler chain.
//
// Patterns are "/"-separated segments. A segment starting with ":" is a
// named parameter. Patterns without parameters are matched as anchored,
// case-insensitive regular expressions over the whole path. A pattern with
// parameters matches a path with as many segments that starts with the
// pattern's parameter-free prefix; set Matcher.Strict to also require a
// segment boundary after the prefix and equal literal segments after the
// first parameter.
//
//	m := route.New()
//	m.Register("users/:id", loadUser, showUser)
//	m.NotFound(show404)
//	tx, err := m.Run(ctx, "/users/42?tab=posts")
//	// tx.Params["id"] == 42, tx.Query["tab"] == "posts"
package route

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Reserved patterns.
const (
	NotFoundPattern = "*"
	AlwaysPattern   = "**"
)

// ParamMarker starts a parameter segment.
const ParamMarker = ':'

// Registration errors.
var (
	ErrInvalidPattern = errors.New("route: invalid pattern")
	ErrDuplicate      = errors.New("route: reserved route already registered")
	ErrUnknownTarget  = errors.New("route: redirect target is not registered")
)

// Handler is one step of a route's chain. Handlers may mutate tx.
type Handler func(ctx context.Context, tx *Transaction) error

// Policy decides what happens to the always handlers after a handler in
// the matched chain fails.
type Policy int

const (
	// RunAlwaysOnError still runs the always handlers.
	RunAlwaysOnError Policy = iota
	// AbortOnError stops the whole transaction.
	AbortOnError
)

// Definition is one registered route.
type Definition struct {
	Pattern  string
	Handlers []Handler

	segments []string
	fixed    *regexp.Regexp // nil for parameterized patterns
	prefix   *regexp.Regexp
	bounded  *regexp.Regexp // prefix followed by a separator or the end
	first    int            // index of the first parameter segment
}

// Matcher holds the route table. It is not safe for concurrent
// registration; matching is read-only.
type Matcher struct {
	// Policy applies when a handler returns an error.
	Policy Policy

	// OnRedirect is called when a redirected route starts running.
	OnRedirect func(tx *Transaction, from, to string)

	// Strict tightens parameterized matching: "usersX/5" no longer
	// matches "users/:id", nor "a/5/foo" match "a/:x/b".
	Strict bool

	defs     []*Definition
	notFound *Definition
	always   *Definition
}

// New returns an empty matcher with the default policy.
func New() *Matcher {
	return &Matcher{}
}

// Register appends a route. The reserved patterns fill their own slots.
func (m *Matcher) Register(pattern string, handlers ...Handler) error {
	switch strings.TrimSpace(pattern) {
	case NotFoundPattern:
		return m.NotFound(handlers...)
	case AlwaysPattern:
		return m.Always(handlers...)
	}
	def, err := compile(pattern, handlers)
	if err != nil {
		return err
	}
	m.defs = append(m.defs, def)
	return nil
}

// NotFound registers the handlers run when nothing matches.
func (m *Matcher) NotFound(handlers ...Handler) error {
	if m.notFound != nil {
		return fmt.Errorf("%w: %q", ErrDuplicate, NotFoundPattern)
	}
	m.notFound = &Definition{Pattern: NotFoundPattern, Handlers: handlers}
	return nil
}

// Always registers the handlers run after every transaction.
func (m *Matcher) Always(handlers ...Handler) error {
	if m.always != nil {
		return fmt.Errorf("%w: %q", ErrDuplicate, AlwaysPattern)
	}
	m.always = &Definition{Pattern: AlwaysPattern, Handlers: handlers}
	return nil
}

// Redirect registers from with the current handlers of the route
// registered as to, prefixed by a step that records the redirect.
func (m *Matcher) Redirect(from, to string) error {
	target := m.lookup(to)
	if target == nil {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, to)
	}
	mark := func(ctx context.Context, tx *Transaction) error {
		tx.Redirected = from
		if m.OnRedirect != nil {
			m.OnRedirect(tx, from, to)
		}
		return nil
	}
	chain := make([]Handler, 0, len(target.Handlers)+1)
	chain = append(chain, mark)
	chain = append(chain, target.Handlers...)
	return m.Register(from, chain...)
}

// Definitions returns the ordinary routes in registration order.
func (m *Matcher) Definitions() []*Definition {
	out := make([]*Definition, len(m.defs))
	copy(out, m.defs)
	return out
}

func (m *Matcher) lookup(pattern string) *Definition {
	norm := normalize(pattern)
	for _, def := range m.defs {
		if strings.EqualFold(normalize(def.Pattern), norm) {
			return def
		}
	}
	return nil
}

// Match finds the first route whose pattern accepts uri. The transaction
// is filled with parameters and query values either way; def is nil when
// nothing matched.
func (m *Matcher) Match(uri string) (*Definition, *Transaction) {
	tx := newTransaction(uri)
	for _, def := range m.defs {
		if !def.matches(tx.Path, tx.segments, m.Strict) {
			continue
		}
		tx.Pattern = def.Pattern
		for i, seg := range def.segments {
			if isParam(seg) {
				tx.Params[seg[1:]] = coerce(tx.segments[i])
			}
		}
		return def, tx
	}
	return nil, tx
}

// Run matches uri and executes the chain followed by the always handlers.
// Without a match the not-found handlers run in place of the chain; with
// neither a match nor a not-found route Run does nothing.
//
// A failing handler stops its chain. Under RunAlwaysOnError the always
// handlers still run and every error is returned joined.
func (m *Matcher) Run(ctx context.Context, uri string) (*Transaction, error) {
	start := time.Now()
	def, tx := m.Match(uri)
	if def == nil {
		if m.notFound == nil {
			return newTransaction(uri), nil
		}
		def = m.notFound
	}

	err := run(ctx, def, tx)
	if m.always != nil && (err == nil || m.Policy == RunAlwaysOnError) {
		err = errors.Join(err, run(ctx, m.always, tx))
	}
	tx.Elapsed = time.Since(start)
	return tx, err
}

func run(ctx context.Context, def *Definition, tx *Transaction) error {
	for i, h := range def.Handlers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h(ctx, tx); err != nil {
			return fmt.Errorf("route %q handler %d: %w", def.Pattern, i, err)
		}
	}
	return nil
}

func compile(pattern string, handlers []Handler) (*Definition, error) {
	def := &Definition{Pattern: pattern, Handlers: handlers, first: -1}
	norm := normalize(pattern)
	def.segments = split(norm)

	for i, seg := range def.segments {
		if !isParam(seg) {
			continue
		}
		if len(seg) == 1 {
			return nil, fmt.Errorf("%w: %q has an unnamed parameter", ErrInvalidPattern, pattern)
		}
		if def.first < 0 {
			def.first = i
		}
	}

	if def.first < 0 {
		re, err := regexp.Compile("(?i)^" + norm + "$")
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
		}
		def.fixed = re
		return def, nil
	}

	prefix := strings.Join(def.segments[:def.first], "/")
	re, err := regexp.Compile("(?i)^" + prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	def.prefix = re
	def.bounded = regexp.MustCompile(re.String() + "(/|$)")
	return def, nil
}

func (def *Definition) matches(path string, segments []string, strict bool) bool {
	if len(segments) != len(def.segments) {
		return false
	}
	if def.fixed != nil {
		return def.fixed.MatchString(path)
	}
	if !strict {
		return def.prefix.MatchString(path)
	}
	if def.first > 0 && !def.bounded.MatchString(path) {
		return false
	}
	for i := def.first; i < len(def.segments); i++ {
		seg := def.segments[i]
		if !isParam(seg) && !strings.EqualFold(seg, segments[i]) {
			return false
		}
	}
	return true
}

func isParam(seg string) bool {
	return len(seg) > 0 && seg[0] == ParamMarker
}

// normalize strips the query and fragment and the surrounding separators.
func normalize(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}
	return strings.Trim(strings.TrimSpace(uri), "/")
}

func split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
