// expr_ops_misc.go - object-construction and type-predicate operators.

package aggo

func registerObjectOps(reg map[string]exprBuilder) {
	reg["$mergeObjects"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			out := NewObject()
			for _, ev := range evs {
				v := ev(ctx, root)
				if v.Kind() != KindObject {
					continue
				}
				for _, k := range v.AsObject().Keys() {
					out.Set(k, v.AsObject().Get(k))
				}
			}
			return ObjectValue(out)
		}, nil
	}
}

func registerTypeOps(reg map[string]exprBuilder) {
	reg["$isString"] = typePredicate("$isString", KindString)
	reg["$isNumber"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$isNumber", args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			_, ok := evs[0](ctx, root).Numeric()
			return Bool(ok)
		}, nil
	}
	reg["$isArray"] = typePredicate("$isArray", KindArray)
	reg["$isNull"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$isNull", args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			return Bool(evs[0](ctx, root).IsNull())
		}, nil
	}
	reg["$exists"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$exists", args, 1); err != nil {
			return nil, err
		}
		if args[0].Kind() != KindString {
			return nil, NewEngineError(InvalidPipeline, "$exists", "expects a field path string")
		}
		path := args[0].AsString()
		if len(path) == 0 || path[0] != '$' {
			return nil, NewEngineError(InvalidPipeline, "$exists", "expects a field path starting with $")
		}
		path = path[1:]
		return func(_ *EvalContext, root Value) Value {
			return Bool(resolvePathExists(root, path))
		}, nil
	}
}

func typePredicate(op string, want Kind) exprBuilder {
	return func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity(op, args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			return Bool(evs[0](ctx, root).Kind() == want)
		}, nil
	}
}
