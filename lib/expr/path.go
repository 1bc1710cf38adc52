// Package expr resolves property paths and single function calls against
// controller state.
//
// Paths use dotted and bracket notation ("user.tags[0]", `labels["a b"]`)
// and are walked explicitly over maps, slices, structs and values that
// implement Getter or Setter. Nothing is ever compiled or evaluated as
// code.
package expr

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pthm/bindery/internal/logging"
)

// Sentinel errors for path and call resolution.
var (
	ErrUnresolved    = errors.New("expr: unresolved name")
	ErrNotAssignable = errors.New("expr: path is not assignable")
	ErrSyntax        = errors.New("expr: syntax error")
)

// Getter is implemented by containers that resolve their own names, such
// as the controller scope that layers the model over controller fields.
type Getter interface {
	Lookup(name string) (any, bool)
}

// Setter is implemented by containers that accept assignments by name.
type Setter interface {
	Assign(name string, value any) error
}

// Resolver walks paths. The zero value is usable and logs nothing.
type Resolver struct {
	Log *slog.Logger
}

// NewResolver returns a resolver that reports resolution warnings to log.
func NewResolver(log *slog.Logger) *Resolver {
	return &Resolver{Log: logging.OrDiscard(log)}
}

func (r *Resolver) warn(path, segment string) {
	if r == nil || r.Log == nil {
		return
	}
	r.Log.Warn("unresolved property path", "path", path, "segment", segment)
}

// GetValue resolves path against root. A missing or non-container
// intermediate yields (nil, false) and a resolution warning; it never
// panics.
func (r *Resolver) GetValue(root any, path string) (any, bool) {
	v, ok, seg := lookup(root, path)
	if !ok {
		r.warn(path, seg)
	}
	return v, ok
}

// Lookup is GetValue without the warning, for probing optional names.
func (r *Resolver) Lookup(root any, path string) (any, bool) {
	v, ok, _ := lookup(root, path)
	return v, ok
}

func lookup(root any, path string) (any, bool, string) {
	segs, err := SplitPath(path)
	if err != nil || len(segs) == 0 {
		return nil, false, path
	}
	cur := root
	for _, seg := range segs {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false, seg
		}
		cur = Computed(next)
	}
	return cur, true, ""
}

// IsComputed reports whether name resolves on root to a func, such as a
// bound getter method, whose value may depend on any property.
func IsComputed(root any, name string) bool {
	v, ok := step(root, name)
	if !ok || v == nil {
		return false
	}
	return reflect.ValueOf(v).Kind() == reflect.Func
}

// Computed calls v when it is a func taking no arguments and returning a
// single value (optionally followed by an error), so getter methods read
// like properties. Any other value is returned unchanged.
func Computed(v any) any {
	fv := reflect.ValueOf(v)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return v
	}
	ft := fv.Type()
	if ft.NumIn() != 0 || ft.IsVariadic() {
		return v
	}
	switch ft.NumOut() {
	case 1:
	case 2:
		if !ft.Out(1).Implements(errorType) {
			return v
		}
	default:
		return v
	}
	defer func() { _ = recover() }()
	out := fv.Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return nil
	}
	return out[0].Interface()
}

// SetValue assigns value at path, creating empty maps for missing
// intermediate segments.
func (r *Resolver) SetValue(root any, path string, value any) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrNotAssignable)
	}

	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := step(cur, seg)
		if !ok || next == nil {
			created := map[string]any{}
			if err := assign(cur, seg, created); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			next = created
		}
		cur = next
	}

	if err := assign(cur, segs[len(segs)-1], value); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// SplitPath splits "a.b[0]['c']" into its segments. A leading "this."
// is dropped.
func SplitPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "this.")
	if path == "this" || path == "" {
		return nil, nil
	}

	var segs []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		c := path[i]
		switch c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed bracket in %q", ErrSyntax, path)
			}
			key := strings.TrimSpace(path[i+1 : i+end])
			key = strings.Trim(key, `"'`)
			segs = append(segs, key)
			i += end
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return segs, nil
}

// Root returns the first segment of a path, or "" if there is none.
func Root(path string) string {
	segs, err := SplitPath(path)
	if err != nil || len(segs) == 0 {
		return ""
	}
	return segs[0]
}

// step resolves one segment on cur.
func step(cur any, seg string) (any, bool) {
	if cur == nil {
		return nil, false
	}
	switch t := cur.(type) {
	case Getter:
		return t.Lookup(seg)
	case map[string]any:
		v, ok := t[seg]
		return v, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(t) {
			return nil, false
		}
		return t[i], true
	}

	orig := reflect.ValueOf(cur)
	rv := orig
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	case reflect.Struct:
		if f, ok := field(rv, seg); ok {
			return f.Interface(), true
		}
		if m, ok := method(orig, seg); ok {
			return m.Interface(), true
		}
	}
	return nil, false
}

// assign sets seg on container cur.
func assign(cur any, seg string, value any) error {
	switch t := cur.(type) {
	case Setter:
		return t.Assign(seg, value)
	case map[string]any:
		t[seg] = value
		return nil
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(t) {
			return fmt.Errorf("%w: index %q", ErrNotAssignable, seg)
		}
		t[i] = value
		return nil
	case nil:
		return fmt.Errorf("%w: nil container at %q", ErrNotAssignable, seg)
	}

	rv := reflect.ValueOf(cur)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return fmt.Errorf("%w: nil container at %q", ErrNotAssignable, seg)
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		kt := rv.Type().Key()
		if kt.Kind() != reflect.String {
			return fmt.Errorf("%w: non-string map key", ErrNotAssignable)
		}
		if rv.IsNil() {
			return fmt.Errorf("%w: nil map at %q", ErrNotAssignable, seg)
		}
		val, err := convert(value, rv.Type().Elem())
		if err != nil {
			return err
		}
		rv.SetMapIndex(reflect.ValueOf(seg).Convert(kt), val)
		return nil
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= rv.Len() {
			return fmt.Errorf("%w: index %q", ErrNotAssignable, seg)
		}
		elem := rv.Index(i)
		if !elem.CanSet() {
			return fmt.Errorf("%w: index %q", ErrNotAssignable, seg)
		}
		val, err := convert(value, elem.Type())
		if err != nil {
			return err
		}
		elem.Set(val)
		return nil
	case reflect.Struct:
		f, ok := field(rv, seg)
		if !ok || !f.CanSet() {
			return fmt.Errorf("%w: field %q", ErrNotAssignable, seg)
		}
		val, err := convert(value, f.Type())
		if err != nil {
			return err
		}
		f.Set(val)
		return nil
	}
	return fmt.Errorf("%w: %T is not a container", ErrNotAssignable, cur)
}

// field finds an exported field by exact name, by name with the first
// letter upper-cased, or by json tag.
func field(rv reflect.Value, name string) (reflect.Value, bool) {
	for _, candidate := range []string{name, upperFirst(name)} {
		sf, ok := rv.Type().FieldByName(candidate)
		if ok && sf.IsExported() {
			f, err := rv.FieldByIndexErr(sf.Index)
			if err != nil {
				return reflect.Value{}, false
			}
			return f, true
		}
	}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := strings.Split(sf.Tag.Get("json"), ",")[0]
		if tag == name {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// method finds an exported method bound to its receiver.
func method(rv reflect.Value, name string) (reflect.Value, bool) {
	if !rv.IsValid() {
		return reflect.Value{}, false
	}
	for _, candidate := range []string{name, upperFirst(name)} {
		if m := rv.MethodByName(candidate); m.IsValid() {
			return m, true
		}
	}
	return reflect.Value{}, false
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// convert adapts value to type t. Strings are parsed into numbers and
// bools, numbers are converted between widths.
func convert(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if f, _, ok := number(value); ok {
			return reflect.ValueOf(f).Convert(t), nil
		}
	case reflect.String:
		return reflect.ValueOf(String(value)).Convert(t), nil
	case reflect.Bool:
		if s, ok := value.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				return reflect.ValueOf(b), nil
			}
		}
		return reflect.ValueOf(Truthy(value)), nil
	case reflect.Interface:
		if v.Type().Implements(t) {
			return v, nil
		}
	}

	if v.Type().ConvertibleTo(t) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrNotAssignable, value, t)
}
