package expr

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Execute resolves call.Name from root and invokes it with the call's
// arguments. The final name segment is bound as a method of the object
// that owns it, so receivers stay correct for dotted names such as
// "cart.add(item)". Unresolved names return an error wrapping
// ErrUnresolved; a panicking target is recovered into an error.
func (r *Resolver) Execute(root any, call *Call) (result any, err error) {
	segs, err := SplitPath(call.Name)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: empty call name", ErrUnresolved)
	}

	owner := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := step(owner, seg)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnresolved, call.Name)
		}
		owner = Computed(next)
	}

	fn, ok := callable(owner, segs[len(segs)-1])
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolved, call.Name)
	}

	args := make([]any, len(call.Args))
	for i, a := range call.Args {
		if a.Kind == ArgPath {
			args[i], _ = r.GetValue(root, a.Raw)
			continue
		}
		args[i] = a.Value
	}

	defer func() {
		if p := recover(); p != nil {
			result, err = nil, fmt.Errorf("expr: %s panicked: %v", call.Name, p)
		}
	}()
	return invoke(fn, args)
}

// callable finds name on owner as a bound method or a stored func value.
func callable(owner any, name string) (reflect.Value, bool) {
	if owner == nil {
		return reflect.Value{}, false
	}
	var v any
	var found bool
	if g, ok := owner.(Getter); ok {
		v, found = g.Lookup(name)
	} else if m, ok := method(reflect.ValueOf(owner), name); ok {
		return m, true
	}

	switch t := owner.(type) {
	case Getter:
	case map[string]any:
		v, found = t[name]
	default:
		rv := reflect.ValueOf(owner)
		for rv.Kind() == reflect.Ptr && !rv.IsNil() {
			rv = rv.Elem()
		}
		if rv.Kind() == reflect.Struct {
			if f, ok := field(rv, name); ok {
				v, found = f.Interface(), true
			}
		}
	}
	if !found || v == nil {
		return reflect.Value{}, false
	}
	fv := reflect.ValueOf(v)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return reflect.Value{}, false
	}
	return fv, true
}

// invoke calls fn with args converted to its parameter types. Missing
// arguments are zero values and extra arguments are dropped.
func invoke(fn reflect.Value, args []any) (any, error) {
	ft := fn.Type()
	n := ft.NumIn()
	var in []reflect.Value

	if ft.IsVariadic() {
		fixed := n - 1
		for i := 0; i < fixed; i++ {
			v, err := argValue(args, i, ft.In(i))
			if err != nil {
				return nil, err
			}
			in = append(in, v)
		}
		elem := ft.In(fixed).Elem()
		for i := fixed; i < len(args); i++ {
			v, err := convert(args[i], elem)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			in = append(in, v)
		}
	} else {
		for i := 0; i < n; i++ {
			v, err := argValue(args, i, ft.In(i))
			if err != nil {
				return nil, err
			}
			in = append(in, v)
		}
	}

	out := fn.Call(in)
	if len(out) == 0 {
		return nil, nil
	}
	last := out[len(out)-1]
	if last.Type().Implements(errorType) {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		if len(out) == 1 {
			return nil, nil
		}
	}
	return out[0].Interface(), nil
}

func argValue(args []any, i int, t reflect.Type) (reflect.Value, error) {
	if i >= len(args) {
		return reflect.Zero(t), nil
	}
	v, err := convert(args[i], t)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("argument %d: %w", i, err)
	}
	return v, nil
}
