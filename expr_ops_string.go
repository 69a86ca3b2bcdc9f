// expr_ops_string.go - string expression operators.

package aggo

import (
	"regexp"
	"strings"
	"sync"
)

var (
	regexCacheMu sync.Mutex
	regexCache   = make(map[string]*regexp.Regexp)
)

// compileRegexCached compiles pat once per distinct pattern string and
// reuses it afterwards, since $regexMatch is typically evaluated once per
// document with the same literal pattern.
func compileRegexCached(pat string) (*regexp.Regexp, error) {
	regexCacheMu.Lock()
	defer regexCacheMu.Unlock()
	if re, ok := regexCache[pat]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, err
	}
	regexCache[pat] = re
	return re, nil
}

func registerStringOps(reg map[string]exprBuilder) {
	reg["$concat"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			var sb strings.Builder
			for _, ev := range evs {
				v := ev(ctx, root)
				if v.IsNullish() {
					return Null()
				}
				if v.Kind() != KindString {
					return NullValueOrTypeError()
				}
				sb.WriteString(v.AsString())
			}
			return String(sb.String())
		}, nil
	}
	reg["$toLower"] = stringUnary("$toLower", strings.ToLower)
	reg["$toUpper"] = stringUnary("$toUpper", strings.ToUpper)
	reg["$trim"] = stringUnary("$trim", strings.TrimSpace)
	reg["$ltrim"] = stringUnary("$ltrim", func(s string) string { return strings.TrimLeft(s, " \t\n\r") })
	reg["$rtrim"] = stringUnary("$rtrim", func(s string) string { return strings.TrimRight(s, " \t\n\r") })

	reg["$strLen"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$strLen", args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			v := evs[0](ctx, root)
			if v.Kind() != KindString {
				return Int(0)
			}
			return Int(int64(len(v.AsString())))
		}, nil
	}
	reg["$strLenCP"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$strLenCP", args, 1); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			v := evs[0](ctx, root)
			if v.Kind() != KindString {
				return Int(0)
			}
			return Int(int64(len([]rune(v.AsString()))))
		}, nil
	}

	reg["$split"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity("$split", args, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			s := evs[0](ctx, root)
			sep := evs[1](ctx, root)
			if s.Kind() != KindString || sep.Kind() != KindString {
				return Null()
			}
			parts := strings.Split(s.AsString(), sep.AsString())
			out := make([]Value, len(parts))
			for i, p := range parts {
				out[i] = String(p)
			}
			return Array(out...)
		}, nil
	}

	reg["$substr"] = substrOp("$substr", false)
	reg["$substrCP"] = substrOp("$substrCP", true)

	reg["$indexOfBytes"] = indexOfOp("$indexOfBytes", false)
	reg["$indexOfCP"] = indexOfOp("$indexOfCP", true)

	reg["$regexMatch"] = func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArityRange("$regexMatch", args, 2, 2); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			input := evs[0](ctx, root)
			pat := evs[1](ctx, root)
			if input.Kind() != KindString || pat.Kind() != KindString {
				return Bool(false)
			}
			re, err := compileRegexCached(pat.AsString())
			if err != nil {
				return Bool(false)
			}
			return Bool(re.MatchString(input.AsString()))
		}, nil
	}
}

func stringUnary(op string, fn func(string) string) exprBuilder {
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
			if v.IsNullish() {
				return Null()
			}
			if v.Kind() != KindString {
				return Null()
			}
			return String(fn(v.AsString()))
		}, nil
	}
}

func substrOp(op string, codepoints bool) exprBuilder {
	return func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArity(op, args, 3); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			sv := evs[0](ctx, root)
			if sv.Kind() != KindString {
				return String("")
			}
			start, sok := evs[1](ctx, root).Numeric()
			length, lok := evs[2](ctx, root).Numeric()
			if !sok || !lok {
				return String("")
			}
			if codepoints {
				runes := []rune(sv.AsString())
				return String(sliceRunes(runes, int(start), int(length)))
			}
			b := []byte(sv.AsString())
			lo := clampIdx(int(start), len(b))
			hi := clampIdx(int(start)+int(length), len(b))
			if hi < lo {
				hi = lo
			}
			return String(string(b[lo:hi]))
		}, nil
	}
}

func sliceRunes(runes []rune, start, length int) string {
	lo := clampIdx(start, len(runes))
	hi := clampIdx(start+length, len(runes))
	if hi < lo {
		hi = lo
	}
	return string(runes[lo:hi])
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func indexOfOp(op string, codepoints bool) exprBuilder {
	return func(c *ExprCompiler, args []Value) (Evaluator, error) {
		if err := requireArityRange(op, args, 2, 4); err != nil {
			return nil, err
		}
		evs, err := compileArgs(c, args)
		if err != nil {
			return nil, err
		}
		return func(ctx *EvalContext, root Value) Value {
			sv := evs[0](ctx, root)
			sub := evs[1](ctx, root)
			if sv.Kind() != KindString || sub.Kind() != KindString {
				return Int(-1)
			}
			s := sv.AsString()
			if codepoints {
				idx := strings.Index(s, sub.AsString())
				if idx < 0 {
					return Int(-1)
				}
				return Int(int64(len([]rune(s[:idx]))))
			}
			return Int(int64(strings.Index(s, sub.AsString())))
		}, nil
	}
}

// NullValueOrTypeError returns Null; $concat over a non-string/non-null
// argument is a MongoDB TypeError in the real server, but the compatible,
// permissive behavior documents here as returning Null so expressions
// embedded inside $project never abort a whole batch over one bad field.
func NullValueOrTypeError() Value { return Null() }
