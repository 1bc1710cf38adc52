package route

import (
	"net/url"
	"strings"
	"time"

	"github.com/pthm/bindery/lib/expr"
)

// Transaction is created per navigation and handed to every handler of the
// chain. Handlers may add their own fields with Set.
type Transaction struct {
	URI     string
	Path    string // normalized path without query or separators
	Pattern string // matched pattern, empty when nothing matched
	Params  map[string]any
	Query   map[string]any
	Elapsed time.Duration

	// Redirected holds the original pattern when the route was reached
	// through Matcher.Redirect.
	Redirected string

	Values map[string]any

	segments []string
}

func newTransaction(uri string) *Transaction {
	tx := &Transaction{
		URI:    uri,
		Path:   normalize(uri),
		Params: map[string]any{},
		Query:  parseQuery(uri),
		Values: map[string]any{},
	}
	tx.segments = split(tx.Path)
	return tx
}

// Set stores a caller-defined field.
func (tx *Transaction) Set(key string, value any) {
	if tx.Values == nil {
		tx.Values = map[string]any{}
	}
	tx.Values[key] = value
}

// Get returns a caller-defined field.
func (tx *Transaction) Get(key string) (any, bool) {
	v, ok := tx.Values[key]
	return v, ok
}

// Param returns a coerced parameter or nil.
func (tx *Transaction) Param(name string) any {
	return tx.Params[name]
}

// Lookup exposes params, query values and fields to property paths:
// "params.id", "query.tab", "uri" or any Set key.
func (tx *Transaction) Lookup(name string) (any, bool) {
	switch name {
	case "uri":
		return tx.URI, true
	case "path":
		return tx.Path, true
	case "params":
		return tx.Params, true
	case "query":
		return tx.Query, true
	}
	return tx.Get(name)
}

func parseQuery(uri string) map[string]any {
	out := map[string]any{}
	i := strings.IndexByte(uri, '?')
	if i < 0 {
		return out
	}
	raw := uri[i+1:]
	if j := strings.IndexByte(raw, '#'); j >= 0 {
		raw = raw[:j]
	}
	values, err := url.ParseQuery(raw)
	if err != nil && len(values) == 0 {
		return out
	}
	for k, vs := range values {
		if len(vs) > 0 {
			out[k] = expr.Coerce(vs[0])
		}
	}
	return out
}

func coerce(segment string) any {
	if s, err := url.PathUnescape(segment); err == nil {
		segment = s
	}
	return expr.Coerce(segment)
}
