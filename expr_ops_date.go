// expr_ops_date.go - date-component extraction operators. All operate in
// UTC, matching Value.Date's normalization.

package aggo

func registerDateOps(reg map[string]exprBuilder) {
	reg["$year"] = dateYMD("$year", func(y, m, d int) int64 { return int64(y) })
	reg["$month"] = dateYMD("$month", func(y, m, d int) int64 { return int64(m) })
	reg["$dayOfMonth"] = dateYMD("$dayOfMonth", func(y, m, d int) int64 { return int64(d) })
	reg["$hour"] = dateHMS("$hour", 0)
	reg["$minute"] = dateHMS("$minute", 1)
	reg["$second"] = dateHMS("$second", 2)
	reg["$millisecond"] = dateHMS("$millisecond", 3)
	reg["$dayOfYear"] = dateExtra("$dayOfYear", 0)
	reg["$dayOfWeek"] = dateExtra("$dayOfWeek", 1)
}

func dateYMD(op string, fn func(y, m, d int) int64) exprBuilder {
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
			if v.Kind() != KindDate {
				return Missing()
			}
			t := v.AsDate()
			return Int(fn(t.Year(), int(t.Month()), t.Day()))
		}, nil
	}
}

func dateHMS(op string, which int) exprBuilder {
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
			if v.Kind() != KindDate {
				return Missing()
			}
			t := v.AsDate()
			switch which {
			case 0:
				return Int(int64(t.Hour()))
			case 1:
				return Int(int64(t.Minute()))
			case 2:
				return Int(int64(t.Second()))
			default:
				return Int(int64(t.Nanosecond() / 1e6))
			}
		}, nil
	}
}

func dateExtra(op string, which int) exprBuilder {
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
			if v.Kind() != KindDate {
				return Missing()
			}
			t := v.AsDate()
			if which == 0 {
				return Int(int64(t.YearDay()))
			}
			// MongoDB's $dayOfWeek is 1 (Sunday) through 7 (Saturday).
			return Int(int64(t.Weekday()) + 1)
		}, nil
	}
}
