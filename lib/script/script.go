// Package script evaluates inline handler bodies with an ECMAScript
// interpreter.
//
// A body such as "(count += 1)" runs inside a with-block over the
// controller, so free names resolve to controller properties (getter
// methods read as values). Assigning a top-level name goes through the
// supplied setter; anything else the script does to Go values is not
// observed by the model.
package script

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/pthm/bindery/internal/logging"
	"github.com/pthm/bindery/lib/expr"
)

// DefaultTimeout bounds a single evaluation.
const DefaultTimeout = 250 * time.Millisecond

// ErrInterrupted is returned when an evaluation exceeds its timeout.
var ErrInterrupted = errors.New("script: interrupted")

// Interpreter compiles and runs inline bodies. Compiled programs are
// cached; every evaluation gets a fresh runtime.
type Interpreter struct {
	Timeout  time.Duration
	Log      *slog.Logger
	Resolver *expr.Resolver

	programs sync.Map // string -> *goja.Program
}

// New returns an interpreter with the default timeout.
func New(log *slog.Logger) *Interpreter {
	log = logging.OrDiscard(log)
	return &Interpreter{Timeout: DefaultTimeout, Log: log, Resolver: expr.NewResolver(log)}
}

// Compile parses src once and caches the program.
func (i *Interpreter) Compile(src string) (*goja.Program, error) {
	if p, ok := i.programs.Load(src); ok {
		return p.(*goja.Program), nil
	}
	p, err := goja.Compile("inline", "with ($scope) {\n"+src+"\n}", false)
	if err != nil {
		return nil, fmt.Errorf("script: compile %q: %w", src, err)
	}
	i.programs.Store(src, p)
	return p, nil
}

// Eval runs src against scope and returns the exported completion value.
func (i *Interpreter) Eval(src string, scope any, set func(path string, value any) error) (any, error) {
	p, err := i.Compile(src)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	s := &scopeObject{vm: vm, root: scope, set: set, res: i.Resolver}
	if err := vm.Set("$scope", vm.NewDynamicObject(s)); err != nil {
		return nil, err
	}

	if i.Timeout > 0 {
		t := time.AfterFunc(i.Timeout, func() { vm.Interrupt(ErrInterrupted) })
		defer t.Stop()
	}

	v, err := vm.RunProgram(p)
	if err != nil {
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			return nil, ErrInterrupted
		}
		return nil, fmt.Errorf("script: %w", err)
	}
	if s.err != nil {
		return nil, s.err
	}
	if v == nil {
		return nil, nil
	}
	return v.Export(), nil
}

// scopeObject exposes controller properties as script variables.
type scopeObject struct {
	vm   *goja.Runtime
	root any
	set  func(path string, value any) error
	res  *expr.Resolver
	err  error
}

func (s *scopeObject) Get(key string) goja.Value {
	v, ok := s.res.Lookup(s.root, key)
	if !ok {
		return goja.Undefined()
	}
	return s.vm.ToValue(v)
}

func (s *scopeObject) Set(key string, val goja.Value) bool {
	if s.set == nil {
		return false
	}
	if err := s.set(key, val.Export()); err != nil {
		s.err = errors.Join(s.err, err)
		return false
	}
	return true
}

func (s *scopeObject) Has(key string) bool {
	_, ok := s.res.Lookup(s.root, key)
	return ok
}

func (s *scopeObject) Delete(string) bool { return false }

func (s *scopeObject) Keys() []string { return nil }
