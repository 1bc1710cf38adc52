package expr

import (
	"fmt"
	"math"
	"strings"
)

// IsInline reports whether def is a parenthesized inline expression.
func IsInline(def string) bool {
	def = strings.TrimSpace(def)
	return len(def) >= 2 && def[0] == '(' && def[len(def)-1] == ')'
}

// EvalInline evaluates a restricted inline expression:
//
//	(target = expression)
//	(target += expression)  (target -= expression)
//	(target++)              (target--)
//	(expression)
//
// Expressions combine literals, property paths and negated operands
// (!path) with + - * / % == != < > <= >= && || at the usual precedence.
// There are no calls or parentheses. Assignments go through set so that
// writes reach the model notifier.
func (r *Resolver) EvalInline(root any, src string, set func(path string, value any) error) (any, error) {
	src = strings.TrimSpace(src)
	if IsInline(src) {
		src = strings.TrimSpace(src[1 : len(src)-1])
	}
	if src == "" {
		return nil, fmt.Errorf("%w: empty inline expression", ErrSyntax)
	}

	if strings.HasSuffix(src, "++") || strings.HasSuffix(src, "--") {
		target := strings.TrimSpace(src[:len(src)-2])
		delta := 1
		if strings.HasSuffix(src, "--") {
			delta = -1
		}
		cur, _ := r.Lookup(root, target)
		next, err := arith("+", cur, delta)
		if err != nil {
			return nil, err
		}
		return next, set(target, next)
	}

	if target, op, rhs, ok := splitAssignment(src); ok {
		v, err := r.evalBinary(root, rhs)
		if err != nil {
			return nil, err
		}
		if op != "" {
			cur, _ := r.Lookup(root, target)
			if v, err = arith(op, cur, v); err != nil {
				return nil, err
			}
		}
		return v, set(target, v)
	}

	return r.evalBinary(root, src)
}

// splitAssignment finds a top-level "=", "+=" or "-=" that is not part of
// a comparison operator.
func splitAssignment(src string) (target, op, rhs string, ok bool) {
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		if isQuote(c) {
			quote = c
			continue
		}
		if c != '=' {
			continue
		}
		if i+1 < len(src) && src[i+1] == '=' {
			i++
			continue
		}
		if i == 0 {
			return "", "", "", false
		}
		prev := src[i-1]
		switch prev {
		case '!', '<', '>', '=':
			continue
		case '+', '-':
			return strings.TrimSpace(src[:i-1]), string(prev), strings.TrimSpace(src[i+1:]), true
		}
		return strings.TrimSpace(src[:i]), "", strings.TrimSpace(src[i+1:]), true
	}
	return "", "", "", false
}

// precedence lists binary operator groups from loosest to tightest.
var precedence = [][]string{
	{"||"},
	{"&&"},
	{"==", "!="},
	{"<=", ">=", "<", ">"},
	{"+", "-"},
	{"*", "/", "%"},
}

func (r *Resolver) evalBinary(root any, src string) (any, error) {
	src = strings.TrimSpace(src)
	for _, group := range precedence {
		left, op, right, ok := splitBinary(src, group)
		if !ok {
			continue
		}
		lv, err := r.evalBinary(root, left)
		if err != nil {
			return nil, err
		}
		rv, err := r.evalBinary(root, right)
		if err != nil {
			return nil, err
		}
		switch op {
		case "&&":
			return Truthy(lv) && Truthy(rv), nil
		case "||":
			if Truthy(lv) {
				return lv, nil
			}
			return rv, nil
		case "==":
			return equal(lv, rv), nil
		case "!=":
			return !equal(lv, rv), nil
		case "<", ">", "<=", ">=":
			return compare(op, lv, rv)
		}
		return arith(op, lv, rv)
	}
	return r.operand(root, src)
}

// splitBinary splits src at the last top-level occurrence of an operator
// from group, so operators of equal precedence associate to the left. An
// operator with nothing but operators before it is a unary sign and does
// not split.
func splitBinary(src string, group []string) (left, op, right string, ok bool) {
	var quote byte
	at := -1
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		if isQuote(c) {
			quote = c
			continue
		}
		if matched := operatorAt(src, i); matched != "" {
			if contains(group, matched) && !isUnary(src, i) {
				at, op = i, matched
			}
			i += len(matched) - 1
		}
	}
	if at < 0 {
		return "", "", "", false
	}
	return strings.TrimSpace(src[:at]), op, strings.TrimSpace(src[at+len(op):]), true
}

var operators = []string{"&&", "||", "==", "!=", "<=", ">=", "<", ">", "+", "-", "*", "/", "%"}

func operatorAt(src string, i int) string {
	for _, candidate := range operators {
		if strings.HasPrefix(src[i:], candidate) {
			return candidate
		}
	}
	return ""
}

func isUnary(src string, i int) bool {
	prev := strings.TrimSpace(src[:i])
	if prev == "" {
		return true
	}
	return operatorAt(prev, len(prev)-1) != "" || strings.HasSuffix(prev, "!")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *Resolver) operand(root any, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: missing operand", ErrSyntax)
	}
	if strings.HasPrefix(raw, "!") {
		v, err := r.operand(root, raw[1:])
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil
	}
	arg, err := classify(raw, Env{})
	if err != nil {
		return nil, err
	}
	switch arg.Kind {
	case ArgPath:
		v, _ := r.GetValue(root, raw)
		return v, nil
	case ArgNode, ArgNodeValue, ArgEvent:
		return nil, fmt.Errorf("%w: %s is not available in inline expressions", ErrSyntax, raw)
	}
	return arg.Value, nil
}

func equal(a, b any) bool {
	af, _, aok := number(a)
	bf, _, bok := number(b)
	if aok && bok {
		if _, isStr := a.(string); !isStr {
			if _, isStr := b.(string); !isStr {
				return af == bf
			}
		}
	}
	return String(a) == String(b) && (a == nil) == (b == nil)
}

func compare(op string, a, b any) (bool, error) {
	af, _, aok := number(a)
	bf, _, bok := number(b)
	if !aok || !bok {
		as, bs := String(a), String(b)
		switch op {
		case "<":
			return as < bs, nil
		case ">":
			return as > bs, nil
		case "<=":
			return as <= bs, nil
		default:
			return as >= bs, nil
		}
	}
	switch op {
	case "<":
		return af < bf, nil
	case ">":
		return af > bf, nil
	case "<=":
		return af <= bf, nil
	default:
		return af >= bf, nil
	}
}

// arith applies op to two operands. "+" concatenates when either side is
// a non-numeric string. Integer operands keep an int result.
func arith(op string, a, b any) (any, error) {
	if a == nil {
		a = 0
	}
	_, aStr := a.(string)
	_, bStr := b.(string)
	af, aInt, aok := number(a)
	bf, bInt, bok := number(b)

	if op == "+" && (aStr || bStr) && (!aok || !bok || aStr && bStr) {
		return String(a) + String(b), nil
	}
	if !aok || !bok {
		return nil, fmt.Errorf("%w: %q needs numeric operands", ErrSyntax, op)
	}

	var out float64
	switch op {
	case "+":
		out = af + bf
	case "-":
		out = af - bf
	case "*":
		out = af * bf
	case "/":
		if bf == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrSyntax)
		}
		out = af / bf
	case "%":
		if bf == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrSyntax)
		}
		out = math.Mod(af, bf)
	default:
		return nil, fmt.Errorf("%w: unknown operator %q", ErrSyntax, op)
	}

	if aInt && bInt && out == math.Trunc(out) && math.Abs(out) < 1<<53 {
		return int(out), nil
	}
	return out, nil
}
