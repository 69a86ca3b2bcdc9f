// expr_ops_set.go - set-theoretic array operators, which treat their
// array arguments as unordered, duplicate-insensitive sets of Values.

package aggo

func toSet(v Value) (map[string]Value, bool) {
	if v.Kind() != KindArray {
		return nil, false
	}
	set := make(map[string]Value, len(v.AsArray()))
	for _, e := range v.AsArray() {
		set[GroupKey(e)] = e
	}
	return set, true
}

func registerSetOps(reg map[string]exprBuilder) {
	reg["$setEquals"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArityRange("$setEquals", args, 2, -1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			first, ok := toSet(evs[0](ctx, root))
			if !ok {
				return Bool(false)
			}
			for _, ev := range evs[1:] {
				other, ok := toSet(ev(ctx, root))
				if !ok || len(other) != len(first) {
					return Bool(false)
				}
				for k := range first {
					if _, ok := other[k]; !ok {
						return Bool(false)
					}
				}
			}
			return Bool(true)
		}, nil
	}

	reg["$setIntersection"] = setCombine("$setIntersection", func(acc, next map[string]Value) map[string]Value {
		out := make(map[string]Value)
		for k, v := range acc {
			if _, ok := next[k]; ok {
				out[k] = v
			}
		}
		return out
	})

	reg["$setUnion"] = setCombine("$setUnion", func(acc, next map[string]Value) map[string]Value {
		out := make(map[string]Value, len(acc)+len(next))
		for k, v := range acc {
			out[k] = v
		}
		for k, v := range next {
			out[k] = v
		}
		return out
	})

	reg["$setDifference"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$setDifference", args, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			a, aok := toSet(evs[0](ctx, root))
			b, bok := toSet(evs[1](ctx, root))
			if !aok || !bok {
				return Null()
			}
			out := make([]Value, 0, len(a))
			for k, v := range a {
				if _, ok := b[k]; !ok {
					out = append(out, v)
				}
			}
			return Array(out...)
		}, nil
	}

	reg["$setIsSubset"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$setIsSubset", args, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			a, aok := toSet(evs[0](ctx, root))
			b, bok := toSet(evs[1](ctx, root))
			if !aok || !bok {
				return Bool(false)
			}
			for k := range a {
				if _, ok := b[k]; !ok {
					return Bool(false)
				}
			}
			return Bool(true)
		}, nil
	}

	reg["$anyElementTrue"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$anyElementTrue", args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			v := evs[0](ctx, root)
			if v.Kind() != KindArray {
				return Bool(false)
			}
			for _, e := range v.AsArray() {
				if e.Truthy() {
					return Bool(true)
				}
			}
			return Bool(false)
		}, nil
	}

	reg["$allElementsTrue"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$allElementsTrue", args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			v := evs[0](ctx, root)
			if v.Kind() != KindArray {
				return Bool(false)
			}
			for _, e := range v.AsArray() {
				if !e.Truthy() {
					return Bool(false)
				}
			}
			return Bool(true)
		}, nil
	}
}

func setCombine(op string, combine func(acc, next map[string]Value) map[string]Value) exprBuilder {
	return func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArityRange(op, args, 2, -1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			acc, ok := toSet(evs[0](ctx, root))
			if !ok {
				return Null()
			}
			for _, ev := range evs[1:] {
				next, ok := toSet(ev(ctx, root))
				if !ok {
					return Null()
				}
				acc = combine(acc, next)
			}
			out := make([]Value, 0, len(acc))
			for _, v := range acc {
				out = append(out, v)
			}
			return Array(out...)
		}, nil
	}
}
