// expr.go - Expression Compiler core: lowers an expression tree (itself
// represented as a Value, since pipelines arrive as structured data, not
// text to parse) into an Evaluator closure, with structural-key
// memoization so repeated subtrees across a pipeline share one compiled
// Evaluator.
//
// An expression is one of:
//   - a literal Value (any Value whose top-level shape is not one of the
//     two cases below)
//   - a field path: a String beginning with "$" (e.g. "$a.b.0") or one of
//     the system variables "$$ROOT", "$$NOW", "$$REMOVE"
//   - an operator call: an Object with exactly one key beginning with "$"
//     naming the operator, e.g. {"$add": [{...}, 1]}
//   - {"$literal": v} explicitly escapes v so a string that happens to
//     start with "$" can be used as a literal.

package aggo

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// EvalContext carries the per-evaluation state an Evaluator needs beyond
// the document itself: the pipeline-wide $$NOW snapshot (fixed once per
// aggregate()/ingest() call so repeated references agree) and the
// variable bindings introduced by $filter/$map's "as" clause.
type EvalContext struct {
	Now  time.Time
	Vars map[string]Value
}

// withVar returns a shallow-copied EvalContext with name bound to v,
// leaving the receiver's bindings untouched.
func (c *EvalContext) withVar(name string, v Value) *EvalContext {
	vars := make(map[string]Value, len(c.Vars)+1)
	for k, val := range c.Vars {
		vars[k] = val
	}
	vars[name] = v
	return &EvalContext{Now: c.Now, Vars: vars}
}

// Evaluator is a compiled expression: a pure function from (context, root
// document value) to Value. It never mutates ctx or root.
type Evaluator func(ctx *EvalContext, root Value) Value

// ExprCompiler compiles expression trees into Evaluators, memoizing by a
// structural hash of the expression so that identical subtrees anywhere in
// a pipeline (or across pipelines sharing a compiler) compile once.
type ExprCompiler struct {
	cache *lru.Cache[uint64, Evaluator]
	group singleflight.Group
}

// NewExprCompiler returns a compiler with an LRU evaluator cache of the
// given size (0 disables caching).
func NewExprCompiler(cacheSize int) *ExprCompiler {
	c := &ExprCompiler{}
	if cacheSize > 0 {
		c.cache, _ = lru.New[uint64, Evaluator](cacheSize)
	}
	return c
}

// Compile lowers expr into an Evaluator. Compilation errors (unknown
// operator, arity mismatch) are returned as *EngineError with kind
// InvalidPipeline or UnsupportedFeature; they are fatal at compile time.
func (c *ExprCompiler) Compile(expr Value) (Evaluator, error) {
	if c.cache == nil {
		return c.compileUncached(expr)
	}
	key := structuralHash(expr)
	if ev, ok := c.cache.Get(key); ok {
		return ev, nil
	}
	// singleflight collapses concurrent compiles of the same structural
	// key into one, since independent pipeline instances sharing one
	// compiler may run concurrently on separate goroutines.
	v, err, _ := c.group.Do(strconv.FormatUint(key, 36), func() (interface{}, error) {
		if ev, ok := c.cache.Get(key); ok {
			return ev, nil
		}
		ev, err := c.compileUncached(expr)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, ev)
		return ev, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Evaluator), nil
}

func structuralHash(v Value) uint64 {
	var sb strings.Builder
	writeStructuralKey(&sb, v)
	return xxhash.Sum64String(sb.String())
}

// writeStructuralKey is GroupKey's encoding reused for expression trees:
// it is order-sensitive for arrays (argument order matters) but otherwise
// identical in shape.
func writeStructuralKey(sb *strings.Builder, v Value) {
	writeGroupKey(sb, v)
}

func (c *ExprCompiler) compileUncached(expr Value) (Evaluator, error) {
	switch expr.Kind() {
	case KindString:
		s := expr.AsString()
		if strings.HasPrefix(s, "$$") {
			return compileSystemVar(s)
		}
		if strings.HasPrefix(s, "$") {
			return compileFieldPath(s[1:]), nil
		}
		lit := expr
		return func(*EvalContext, Value) Value { return lit }, nil
	case KindObject:
		obj := expr.AsObject()
		if obj.Len() == 1 {
			key := obj.Keys()[0]
			if strings.HasPrefix(key, "$") {
				if key == "$literal" {
					lit := obj.Get(key)
					return func(*EvalContext, Value) Value { return lit }, nil
				}
				return c.compileOperator(key, obj.Get(key))
			}
		}
		// A document literal: compile each field so nested expressions and
		// $$REMOVE still work inside object-construction contexts.
		return c.compileObjectLiteral(obj)
	case KindArray:
		evs := make([]Evaluator, len(expr.AsArray()))
		for i, e := range expr.AsArray() {
			ev, err := c.Compile(e)
			if err != nil {
				return nil, err
			}
			evs[i] = ev
		}
		return func(ctx *EvalContext, root Value) Value {
			out := make([]Value, len(evs))
			for i, ev := range evs {
				out[i] = ev(ctx, root)
			}
			return Array(out...)
		}, nil
	default:
		lit := expr
		return func(*EvalContext, Value) Value { return lit }, nil
	}
}

func (c *ExprCompiler) compileObjectLiteral(obj *Object) (Evaluator, error) {
	type field struct {
		key string
		ev  Evaluator
	}
	fields := make([]field, 0, obj.Len())
	for _, k := range obj.Keys() {
		ev, err := c.Compile(obj.Get(k))
		if err != nil {
			return nil, err
		}
		fields = append(fields, field{key: k, ev: ev})
	}
	return func(ctx *EvalContext, root Value) Value {
		out := NewObject()
		for _, f := range fields {
			v := f.ev(ctx, root)
			if v.IsMissing() {
				continue // $$REMOVE or an absent field path is omitted
			}
			out.Set(f.key, v)
		}
		return ObjectValue(out)
	}, nil
}

func compileSystemVar(s string) (Evaluator, error) {
	switch s {
	case "$$ROOT":
		return func(_ *EvalContext, root Value) Value { return root }, nil
	case "$$NOW":
		return func(ctx *EvalContext, _ Value) Value { return Date(ctx.Now) }, nil
	case "$$REMOVE":
		return func(*EvalContext, Value) Value { return Missing() }, nil
	default:
		name := strings.TrimPrefix(s, "$$")
		return func(ctx *EvalContext, _ Value) Value {
			if v, ok := ctx.Vars[name]; ok {
				return v
			}
			return Missing()
		}, nil
	}
}

// compileFieldPath compiles a dotted field path (without the leading "$")
// into an Evaluator that walks the document.
func compileFieldPath(path string) Evaluator {
	segs := strings.Split(path, ".")
	return func(_ *EvalContext, root Value) Value {
		return resolvePath(root, segs)
	}
}

// resolvePath walks segs through v, descending into objects by key and
// into arrays by either a numeric index or (MongoDB-style) implicitly
// mapping the remaining path over every element. Missing is returned as
// soon as a segment cannot be resolved.
func resolvePath(v Value, segs []string) Value {
	cur := v
	for i, seg := range segs {
		switch cur.Kind() {
		case KindObject:
			cur = cur.AsObject().Get(seg)
		case KindArray:
			if idx, err := strconv.Atoi(seg); err == nil {
				arr := cur.AsArray()
				if idx < 0 || idx >= len(arr) {
					return Missing()
				}
				cur = arr[idx]
			} else {
				// Map the rest of the path over every element.
				rest := segs[i:]
				arr := cur.AsArray()
				out := make([]Value, 0, len(arr))
				for _, e := range arr {
					rv := resolvePath(e, rest)
					if !rv.IsMissing() {
						out = append(out, rv)
					}
				}
				return Array(out...)
			}
		default:
			return Missing()
		}
		if cur.IsMissing() {
			return Missing()
		}
	}
	return cur
}

// resolvePathExists reports whether path fully resolves (including to an
// explicit null), used by $exists.
func resolvePathExists(v Value, path string) bool {
	segs := strings.Split(path, ".")
	cur := v
	for _, seg := range segs {
		switch cur.Kind() {
		case KindObject:
			if !cur.AsObject().Has(seg) {
				return false
			}
			cur = cur.AsObject().Get(seg)
		case KindArray:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return false
			}
			arr := cur.AsArray()
			if idx < 0 || idx >= len(arr) {
				return false
			}
			cur = arr[idx]
		default:
			return false
		}
	}
	return true
}

// operator-call compilation.

type exprBuilder func(c *ExprCompiler, args []Value) (Evaluator, error)

var (
	exprOperatorsOnce sync.Once
	exprOperators     map[string]exprBuilder
	exprReserved      map[string]struct{}
)

func operatorArgs(expr Value) []Value {
	if expr.Kind() == KindArray {
		return expr.AsArray()
	}
	return []Value{expr}
}

func (c *ExprCompiler) compileOperator(name string, expr Value) (Evaluator, error) {
	initExprOperators()
	if b, ok := exprOperators[name]; ok {
		return b(c, operatorArgs(expr))
	}
	if _, ok := exprReserved[name]; ok {
		return nil, &EngineError{Kind: UnsupportedFeature, Message: fmt.Sprintf("operator %s recognized but not implemented by any tier", name), Path: name}
	}
	return nil, &EngineError{Kind: InvalidPipeline, Message: fmt.Sprintf("unknown expression operator %s", name), Path: name}
}

func compileArgs(c *ExprCompiler, args []Value) ([]Evaluator, error) {
	evs := make([]Evaluator, len(args))
	for i, a := range args {
		ev, err := c.Compile(a)
		if err != nil {
			return nil, err
		}
		evs[i] = ev
	}
	return evs, nil
}

func requireArity(op string, args []Value, n int) error {
	if len(args) != n {
		return &EngineError{Kind: InvalidPipeline, Message: fmt.Sprintf("%s expects %d argument(s), got %d", op, n, len(args)), Path: op}
	}
	return nil
}

func requireArityRange(op string, args []Value, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return &EngineError{Kind: InvalidPipeline, Message: fmt.Sprintf("%s expects between %d and %d arguments, got %d", op, min, max, len(args)), Path: op}
	}
	return nil
}
