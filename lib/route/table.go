package route

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

// Table is a declarative route table:
//
//	routes:
//	  - pattern: users/:id
//	    view: views/user.html
//	    handlers: [auth]
//	    state:
//	      title: User
//	  - pattern: members/:id
//	    redirect: users/:id
//	notfound:
//	  view: views/404.html
//	always: [analytics]
type Table struct {
	Routes   []Entry  `yaml:"routes"`
	NotFound *Entry   `yaml:"notfound"`
	Always   []string `yaml:"always"`
}

// Entry is one row of a Table.
type Entry struct {
	Pattern  string         `yaml:"pattern"`
	View     string         `yaml:"view"`
	Redirect string         `yaml:"redirect"`
	Handlers []string       `yaml:"handlers"`
	State    map[string]any `yaml:"state"`
}

// LoadTable decodes a YAML route table.
func LoadTable(r io.Reader) (*Table, error) {
	bs, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var t Table
	if err := yaml.Unmarshal(bs, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	for i := range t.Routes {
		e := &t.Routes[i]
		if e.Pattern == "" {
			return nil, fmt.Errorf("%w: route %d has no pattern", ErrInvalidPattern, i)
		}
		if e.View == "" && e.Redirect == "" && len(e.Handlers) == 0 {
			return nil, fmt.Errorf("%w: route %q has nothing to do", ErrInvalidPattern, e.Pattern)
		}
		e.State = StringMaps(e.State).(map[string]any)
	}
	if t.NotFound != nil {
		t.NotFound.State = StringMaps(t.NotFound.State).(map[string]any)
	}
	return &t, nil
}

// StringMaps recursively converts the map[interface{}]interface{} values
// produced by yaml.v2 into map[string]any. A nil map[string]any becomes an
// empty one.
func StringMaps(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[fmt.Sprint(k)] = StringMaps(x)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = StringMaps(x)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = StringMaps(x)
		}
		return out
	}
	return v
}
