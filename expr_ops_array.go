// expr_ops_array.go - array expression operators, including $filter/$map
// which introduce a bound variable via EvalContext.withVar.

package aggo

func registerArrayOps(reg map[string]exprBuilder) {
	reg["$size"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$size", args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			v := evs[0](ctx, root)
			if v.Kind() != KindArray {
				return Missing()
			}
			return Int(int64(len(v.AsArray())))
		}, nil
	}

	reg["$arrayElemAt"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$arrayElemAt", args, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			arrv := evs[0](ctx, root)
			idxv := evs[1](ctx, root)
			if arrv.Kind() != KindArray {
				return Missing()
			}
			n, ok := idxv.Numeric()
			if !ok {
				return Missing()
			}
			idx := int(n)
			arr := arrv.AsArray()
			if idx < 0 {
				idx += len(arr)
			}
			if idx < 0 || idx >= len(arr) {
				return Missing()
			}
			return arr[idx]
		}, nil
	}

	reg["$slice"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArityRange("$slice", args, 2, 3); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			arrv := evs[0](ctx, root)
			if arrv.Kind() != KindArray {
				return Missing()
			}
			arr := arrv.AsArray()
			if len(evs) == 2 {
				n, _ := evs[1](ctx, root).Numeric()
				count := int(n)
				if count >= 0 {
					return Array(arr[:clampIdx(count, len(arr))]...)
				}
				start := len(arr) + count
				return Array(arr[clampIdx(start, len(arr)):]...)
			}
			pn, _ := evs[1](ctx, root).Numeric()
			cn, _ := evs[2](ctx, root).Numeric()
			pos := int(pn)
			if pos < 0 {
				pos += len(arr)
			}
			pos = clampIdx(pos, len(arr))
			end := clampIdx(pos+int(cn), len(arr))
			if end < pos {
				end = pos
			}
			return Array(arr[pos:end]...)
		}, nil
	}

	reg["$concatArrays"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			var out []Value
			for _, ev := range evs {
				v := ev(ctx, root)
				if v.Kind() != KindArray {
					return Null()
				}
				out = append(out, v.AsArray()...)
			}
			return Array(out...)
		}, nil
	}

	reg["$reverseArray"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$reverseArray", args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			v := evs[0](ctx, root)
			if v.Kind() != KindArray {
				return Null()
			}
			src := v.AsArray()
			out := make([]Value, len(src))
			for i, e := range src {
				out[len(src)-1-i] = e
			}
			return Array(out...)
		}, nil
	}

	reg["$in"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$in", args, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			needle := evs[0](ctx, root)
			hay := evs[1](ctx, root)
			if hay.Kind() != KindArray {
				return Bool(false)
			}
			for _, e := range hay.AsArray() {
				if Equal(needle, e) {
					return Bool(true)
				}
			}
			return Bool(false)
		}, nil
	}

	reg["$indexOfArray"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArityRange("$indexOfArray", args, 2, 4); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			hay := evs[0](ctx, root)
			needle := evs[1](ctx, root)
			if hay.Kind() != KindArray {
				return Int(-1)
			}
			for i, e := range hay.AsArray() {
				if Equal(needle, e) {
					return Int(int64(i))
				}
			}
			return Int(-1)
		}, nil
	}

	reg["$filter"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$filter", args, 1); err != nil {
			return nil, err
		}
		opts := args[0]
		if opts.Kind() != KindObject {
			return nil, NewEngineError(InvalidPipeline, "$filter", "expects a document with input and cond")
		}
		inputEv, err := c.Compile(opts.AsObject().Get("input"))
		if err != nil {
			return nil, err
		}
		as := "this"
		if opts.AsObject().Has("as") {
			as = opts.AsObject().Get("as").AsString()
		}
		condEv, err := c.Compile(opts.AsObject().Get("cond"))
		if err != nil {
			return nil, err
		}
		var limitEv Evaluator
		if opts.AsObject().Has("limit") {
			limitEv, err = c.Compile(opts.AsObject().Get("limit"))
			if err != nil {
				return nil, err
			}
		}
		return func(ctx *EvalContext, root Value) Value {
			in := inputEv(ctx, root)
			if in.Kind() != KindArray {
				return Null()
			}
			limit := -1
			if limitEv != nil {
				if n, ok := limitEv(ctx, root).Numeric(); ok {
					limit = int(n)
				}
			}
			var out []Value
			for _, e := range in.AsArray() {
				if limit >= 0 && len(out) >= limit {
					break
				}
				sub := ctx.withVar(as, e)
				if condEv(sub, root).Truthy() {
					out = append(out, e)
				}
			}
			return Array(out...)
		}, nil
	}

	reg["$map"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$map", args, 1); err != nil {
			return nil, err
		}
		opts := args[0]
		if opts.Kind() != KindObject {
			return nil, NewEngineError(InvalidPipeline, "$map", "expects a document with input and in")
		}
		inputEv, err := c.Compile(opts.AsObject().Get("input"))
		if err != nil {
			return nil, err
		}
		as := "this"
		if opts.AsObject().Has("as") {
			as = opts.AsObject().Get("as").AsString()
		}
		inEv, err := c.Compile(opts.AsObject().Get("in"))
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			in := inputEv(ctx, root)
			if in.Kind() != KindArray {
				return Null()
			}
			src := in.AsArray()
			out := make([]Value, len(src))
			for i, e := range src {
				sub := ctx.withVar(as, e)
				out[i] = inEv(sub, root)
			}
			return Array(out...)
		}, nil
	}
}
