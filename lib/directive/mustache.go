package directive

import (
	"regexp"
	"strings"

	"github.com/pthm/bindery/lib/expr"
)

// MaxDepth bounds recursive interpolation: a resolved value that itself
// contains {{...}} is expanded again, at most this many times.
const MaxDepth = 8

var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// HasTokens reports whether s contains a {{expression}} token.
func HasTokens(s string) bool {
	return tokenPattern.MatchString(s)
}

// Tokens returns the trimmed expressions of every token in s, in order.
func Tokens(s string) []string {
	var out []string
	for _, m := range tokenPattern.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// TokenRoots returns the distinct root names referenced by the tokens in s.
// all is true when a token holds a call or inline expression.
func TokenRoots(s string) (roots []string, all bool) {
	seen := map[string]bool{}
	for _, tok := range Tokens(s) {
		if expr.IsCall(tok) || expr.IsInline(tok) {
			return nil, true
		}
		root := expr.Root(tok)
		if root == "" || seen[root] {
			continue
		}
		seen[root] = true
		roots = append(roots, root)
	}
	return roots, false
}

// Interpolate replaces each token in s with resolve(expression). Output
// that still contains tokens is interpolated again, up to MaxDepth passes.
func Interpolate(s string, resolve func(expression string) string) string {
	for depth := 0; depth < MaxDepth && HasTokens(s); depth++ {
		s = tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
			m := tokenPattern.FindStringSubmatch(tok)
			return resolve(strings.TrimSpace(m[1]))
		})
	}
	return s
}
