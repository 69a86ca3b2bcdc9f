// expr_ops_core.go - arithmetic, comparison, boolean, and conditional
// expression operators, plus the registry those families (and the ones in
// expr_ops_string.go, expr_ops_array.go, expr_ops_date.go,
// expr_ops_set.go) are assembled into.
//
// Grounded on FerretDB's operators.go registry shape (a map from operator
// name to a constructor, plus a parallel set of names that are recognized
// but not implemented, so an unsupported operator and an unknown one
// report distinct errors).

package aggo

import (
	"math"
)

func initExprOperators() {
	exprOperatorsOnce.Do(func() {
		exprOperators = map[string]exprBuilder{}
		registerArithmeticOps(exprOperators)
		registerComparisonOps(exprOperators)
		registerBooleanOps(exprOperators)
		registerConditionalOps(exprOperators)
		registerStringOps(exprOperators)
		registerArrayOps(exprOperators)
		registerDateOps(exprOperators)
		registerSetOps(exprOperators)
		registerObjectOps(exprOperators)
		registerTypeOps(exprOperators)

		// Recognized by name (so a caller gets UnsupportedFeature, not
		// InvalidPipeline) but not implemented by any tier yet.
		exprReserved = map[string]struct{}{
			"$reduce":       {},
			"$zip":          {},
			"$function":     {},
			"$accumulator":  {},
			"$dateFromParts": {},
			"$dateToParts":   {},
			"$dateFromString": {},
			"$convert":       {},
			"$regexFind":     {},
			"$regexFindAll":  {},
		}
	})
}

// numericBinary builds an operator over exactly two numeric-coercible
// arguments. Non-numeric or nullish operands propagate Null per MongoDB's
// arithmetic-operator convention (rather than erroring), except that a
// Missing operand propagates Missing.
func numericBinary(op string, fn func(a, b float64) Value) exprBuilder {
	return func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity(op, args, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			a := evs[0](ctx, root)
			b := evs[1](ctx, root)
			if a.IsMissing() || b.IsMissing() {
				return Missing()
			}
			if a.IsNull() || b.IsNull() {
				return Null()
			}
			an, aok := a.Numeric()
			bn, bok := b.Numeric()
			if !aok || !bok {
				return Null()
			}
			return fn(an, bn)
		}, nil
	}
}

// numericVariadic folds a numeric reducer (e.g. $add, $multiply) over any
// number of arguments, starting from identity.
func numericVariadic(op string, identity float64, fn func(acc, v float64) float64) exprBuilder {
	return func(c *ExprCompiler, args []Value) (Evaluator, error) {
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			acc := identity
			anyFloat := false
			for _, ev := range evs {
				v := ev(ctx, root)
				if v.IsMissing() {
					return Missing()
				}
				if v.IsNull() {
					return Null()
				}
				n, ok := v.Numeric()
				if !ok {
					return Null()
				}
				if v.Kind() == KindFloat {
					anyFloat = true
				}
				acc = fn(acc, n)
			}
			if !anyFloat && acc == math.Trunc(acc) {
				return Int(int64(acc))
			}
			return Float(acc)
		}, nil
	}
}

func numericUnary(op string, fn func(v float64) float64) exprBuilder {
	return func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity(op, args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			v := evs[0](ctx, root)
			if v.IsMissing() {
				return Missing()
			}
			if v.IsNull() {
				return Null()
			}
			n, ok := v.Numeric()
			if !ok {
				return Null()
			}
			return Float(fn(n))
		}, nil
	}
}

func registerArithmeticOps(reg map[string]exprBuilder) {
	reg["$add"] = numericVariadic("$add", 0, func(a, b float64) float64 { return a + b })
	reg["$multiply"] = numericVariadic("$multiply", 1, func(a, b float64) float64 { return a * b })
	reg["$subtract"] = numericBinary("$subtract", func(a, b float64) Value { return numFromFloat(a - b) })
	reg["$divide"] = numericBinary("$divide", func(a, b float64) Value { return Float(a / b) })
	reg["$mod"] = numericBinary("$mod", func(a, b float64) Value { return numFromFloat(math.Mod(a, b)) })
	reg["$pow"] = numericBinary("$pow", func(a, b float64) Value { return numFromFloat(math.Pow(a, b)) })
	reg["$abs"] = numericUnaryPreserving("$abs", math.Abs)
	reg["$ceil"] = numericUnaryPreserving("$ceil", math.Ceil)
	reg["$floor"] = numericUnaryPreserving("$floor", math.Floor)
	reg["$sqrt"] = numericUnary("$sqrt", math.Sqrt)
	reg["$round"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArityRange("$round", args, 1, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			v := evs[0](ctx, root)
			if v.IsMissing() {
				return Missing()
			}
			if v.IsNull() {
				return Null()
			}
			n, ok := v.Numeric()
			if !ok {
				return Null()
			}
			place := 0.0
			if len(evs) == 2 {
				pv := evs[1](ctx, root)
				if p, ok := pv.Numeric(); ok {
					place = p
				}
			}
			scale := math.Pow(10, place)
			return numFromFloat(math.Round(n*scale) / scale)
		}, nil
	}
}

// numFromFloat returns an Int Value when f has no fractional part,
// otherwise a Float, matching MongoDB's habit of returning int-typed
// results from integer-only arithmetic.
func numFromFloat(f float64) Value {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return Int(int64(f))
	}
	return Float(f)
}

func numericUnaryPreserving(op string, fn func(float64) float64) exprBuilder {
	return func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity(op, args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			v := evs[0](ctx, root)
			if v.IsMissing() {
				return Missing()
			}
			if v.IsNull() {
				return Null()
			}
			n, ok := v.Numeric()
			if !ok {
				return Null()
			}
			return numFromFloat(fn(n))
		}, nil
	}
}

func comparisonOp(op string, match func(cmp int) bool) exprBuilder {
	return func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity(op, args, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			a := evs[0](ctx, root)
			b := evs[1](ctx, root)
			return Bool(match(Compare(a, b)))
		}, nil
	}
}

func registerComparisonOps(reg map[string]exprBuilder) {
	reg["$eq"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$eq", args, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			return Bool(Equal(evs[0](ctx, root), evs[1](ctx, root)))
		}, nil
	}
	reg["$ne"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$ne", args, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			return Bool(!Equal(evs[0](ctx, root), evs[1](ctx, root)))
		}, nil
	}
	reg["$lt"] = comparisonOp("$lt", func(cmp int) bool { return cmp < 0 })
	reg["$lte"] = comparisonOp("$lte", func(cmp int) bool { return cmp <= 0 })
	reg["$gt"] = comparisonOp("$gt", func(cmp int) bool { return cmp > 0 })
	reg["$gte"] = comparisonOp("$gte", func(cmp int) bool { return cmp >= 0 })
	reg["$cmp"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$cmp", args, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			return Int(int64(Compare(evs[0](ctx, root), evs[1](ctx, root))))
		}, nil
	}
}

func registerBooleanOps(reg map[string]exprBuilder) {
	reg["$and"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			for _, ev := range evs {
				if !ev(ctx, root).Truthy() {
					return Bool(false)
				}
			}
			return Bool(true)
		}, nil
	}
	reg["$or"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			for _, ev := range evs {
				if ev(ctx, root).Truthy() {
					return Bool(true)
				}
			}
			return Bool(false)
		}, nil
	}
	reg["$not"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$not", args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			return Bool(!evs[0](ctx, root).Truthy())
		}, nil
	}
}

func registerConditionalOps(reg map[string]exprBuilder) {
	reg["$cond"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$cond", args, 3); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			if evs[0](ctx, root).Truthy() {
				return evs[1](ctx, root)
			}
			return evs[2](ctx, root)
		}, nil
	}
	reg["$ifNull"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArityRange("$ifNull", args, 2, -1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			for _, ev := range evs[:len(evs)-1] {
				v := ev(ctx, root)
				if !v.IsNullish() {
					return v
				}
			}
			return evs[len(evs)-1](ctx, root)
		}, nil
	}
	reg["$switch"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$switch", args, 1); err != nil {
			return nil, err
		}
		obj := args[0]
		if obj.Kind() != KindObject {
			return nil, NewEngineError(InvalidPipeline, "$switch", "expects a document with branches and default")
		}
		branchesV := obj.AsObject().Get("branches")
		if branchesV.Kind() != KindArray {
			return nil, NewEngineError(InvalidPipeline, "$switch", "branches must be an array")
		}
		type branch struct {
			cond Evaluator
			then Evaluator
		}
		var branches []branch
		for _, b := range branchesV.AsArray() {
			if b.Kind() != KindObject {
				return nil, NewEngineError(InvalidPipeline, "$switch", "each branch must be a document")
			}
			condEv, err := c.Compile(b.AsObject().Get("case"))
			if err != nil {
				return nil, err
			}
			thenEv, err := c.Compile(b.AsObject().Get("then"))
			if err != nil {
				return nil, err
			}
			branches = append(branches, branch{cond: condEv, then: thenEv})
		}
		var defaultEv Evaluator
		if obj.AsObject().Has("default") {
			ev, err := c.Compile(obj.AsObject().Get("default"))
			if err != nil {
				return nil, err
			}
			defaultEv = ev
		}
		return func(ctx *EvalContext, root Value) Value {
			for _, b := range branches {
				if b.cond(ctx, root).Truthy() {
					return b.then(ctx, root)
				}
			}
			if defaultEv != nil {
				return defaultEv(ctx, root)
			}
			return Missing()
		}, nil
	}
}
