// match.go - compiles a $match stage's MongoDB-style query filter document
// into a boolean Evaluator. This is distinct from expr.go's expression
// compiler: a $match document is a query filter (implicit field equality,
// {field: {$gt: v}} operator objects, $and/$or/$nor/$not), not an
// aggregation expression tree, even though both share the same Value
// representation and field-path/$$ROOT plumbing underneath.

package aggo

import "strings"

// CompileMatch compiles a $match filter document into an Evaluator that
// returns Bool(true) for documents the filter selects.
func CompileMatch(c *ExprCompiler, filter Value) (Evaluator, error) {
	if filter.Kind() != KindObject {
		return nil, NewEngineError(InvalidPipeline, "$match", "expects a document")
	}
	return compileFilterObject(c, filter.AsObject())
}

func compileFilterObject(c *ExprCompiler, obj *Object) (Evaluator, error) {
	var clauses []Evaluator
	for _, k := range obj.Keys() {
		v := obj.Get(k)
		var ev Evaluator
		var err error
		switch k {
		case "$and":
			ev, err = compileLogical(c, v, func(results []bool) bool {
				for _, r := range results {
					if !r {
						return false
					}
				}
				return true
			})
		case "$or":
			ev, err = compileLogical(c, v, func(results []bool) bool {
				for _, r := range results {
					if r {
						return true
					}
				}
				return false
			})
		case "$nor":
			ev, err = compileLogical(c, v, func(results []bool) bool {
				for _, r := range results {
					if r {
						return false
					}
				}
				return true
			})
		default:
			ev, err = compileFieldFilter(c, k, v)
		}
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ev)
	}
	return func(ctx *EvalContext, root Value) Value {
		for _, cl := range clauses {
			if !cl(ctx, root).Truthy() {
				return Bool(false)
			}
		}
		return Bool(true)
	}, nil
}

func compileLogical(c *ExprCompiler, arr Value, combine func([]bool) bool) (Evaluator, error) {
	if arr.Kind() != KindArray {
		return nil, NewEngineError(InvalidPipeline, "$and/$or/$nor", "expects an array of filter documents")
	}
	var subs []Evaluator
	for _, sub := range arr.AsArray() {
		if sub.Kind() != KindObject {
			return nil, NewEngineError(InvalidPipeline, "$and/$or/$nor", "each clause must be a document")
		}
		ev, err := compileFilterObject(c, sub.AsObject())
		if err != nil {
			return nil, err
		}
		subs = append(subs, ev)
	}
	return func(ctx *EvalContext, root Value) Value {
		results := make([]bool, len(subs))
		for i, s := range subs {
			results[i] = s(ctx, root).Truthy()
		}
		return Bool(combine(results))
	}, nil
}

func compileFieldFilter(c *ExprCompiler, field string, spec Value) (Evaluator, error) {
	segs := strings.Split(field, ".")
	getField := func(root Value) Value { return resolvePath(root, segs) }

	if spec.Kind() != KindObject {
		return func(_ *EvalContext, root Value) Value {
			return Bool(Equal(getField(root), spec))
		}, nil
	}
	// Could still be a literal object to match by deep equality (no $ keys).
	hasOperators := false
	for _, k := range spec.AsObject().Keys() {
		if strings.HasPrefix(k, "$") {
			hasOperators = true
			break
		}
	}
	if !hasOperators {
		return func(_ *EvalContext, root Value) Value {
			return Bool(Equal(getField(root), spec))
		}, nil
	}

	var checks []func(v Value) bool
	var rootEvals []Evaluator
	for _, op := range spec.AsObject().Keys() {
		opv := spec.AsObject().Get(op)
		switch op {
		case "$eq":
			checks = append(checks, func(v Value) bool { return Equal(v, opv) })
		case "$ne":
			checks = append(checks, func(v Value) bool { return !Equal(v, opv) })
		case "$gt":
			checks = append(checks, func(v Value) bool { return !v.IsMissing() && Compare(v, opv) > 0 })
		case "$gte":
			checks = append(checks, func(v Value) bool { return !v.IsMissing() && Compare(v, opv) >= 0 })
		case "$lt":
			checks = append(checks, func(v Value) bool { return !v.IsMissing() && Compare(v, opv) < 0 })
		case "$lte":
			checks = append(checks, func(v Value) bool { return !v.IsMissing() && Compare(v, opv) <= 0 })
		case "$in":
			if opv.Kind() != KindArray {
				return nil, NewEngineError(InvalidPipeline, field, "$in expects an array")
			}
			set := opv.AsArray()
			checks = append(checks, func(v Value) bool {
				for _, e := range set {
					if Equal(v, e) {
						return true
					}
				}
				return false
			})
		case "$nin":
			if opv.Kind() != KindArray {
				return nil, NewEngineError(InvalidPipeline, field, "$nin expects an array")
			}
			set := opv.AsArray()
			checks = append(checks, func(v Value) bool {
				for _, e := range set {
					if Equal(v, e) {
						return false
					}
				}
				return true
			})
		case "$exists":
			want := opv.Truthy()
			checks = append(checks, func(v Value) bool { return !v.IsMissing() == want })
		case "$regex":
			if opv.Kind() != KindString {
				return nil, NewEngineError(InvalidPipeline, field, "$regex expects a string pattern")
			}
			re, err := compileRegexCached(opv.AsString())
			if err != nil {
				return nil, NewEngineError(InvalidPipeline, field, "invalid $regex pattern: %v", err)
			}
			checks = append(checks, func(v Value) bool {
				return v.Kind() == KindString && re.MatchString(v.AsString())
			})
		case "$size":
			n, ok := opv.Numeric()
			if !ok {
				return nil, NewEngineError(InvalidPipeline, field, "$size expects a number")
			}
			checks = append(checks, func(v Value) bool {
				return v.Kind() == KindArray && len(v.AsArray()) == int(n)
			})
		case "$not":
			sub, err := compileFieldFilter(c, field, opv)
			if err != nil {
				return nil, err
			}
			rootEvals = append(rootEvals, func(ctx *EvalContext, root Value) Value {
				return Bool(!sub(ctx, root).Truthy())
			})
		case "$all":
			if opv.Kind() != KindArray {
				return nil, NewEngineError(InvalidPipeline, field, "$all expects an array")
			}
			want := opv.AsArray()
			checks = append(checks, func(v Value) bool {
				if v.Kind() != KindArray {
					return false
				}
				for _, w := range want {
					found := false
					for _, e := range v.AsArray() {
						if Equal(e, w) {
							found = true
							break
						}
					}
					if !found {
						return false
					}
				}
				return true
			})
		default:
			return nil, NewEngineError(UnsupportedFeature, field, "query operator %s is not implemented", op)
		}
	}
	return func(ctx *EvalContext, root Value) Value {
		v := getField(root)
		for _, chk := range checks {
			if !chk(v) {
				return Bool(false)
			}
		}
		for _, re := range rootEvals {
			if !re(ctx, root).Truthy() {
				return Bool(false)
			}
		}
		return Bool(true)
	}, nil
}
