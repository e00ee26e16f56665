package platform

import (
	"fmt"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// evaluator compiles rule conditions into HCL expressions and evaluates them
// against a fixed context. Parsed expressions are cached by source text.
type evaluator struct {
	ctx   *hcl.EvalContext
	mu    sync.Mutex
	cache map[string]hclsyntax.Expression
}

func newEvaluator(pctx Context) *evaluator {
	return &evaluator{ctx: evalContext(pctx), cache: map[string]hclsyntax.Expression{}}
}

// evalContext exposes the platform context to conditions:
//
//	platform, configuration, target, target_type, engine_version  strings
//	flags                                                          object of bools
//	in_group(name)                                                 bool
func evalContext(pctx Context) *hcl.EvalContext {
	flags := cty.EmptyObjectVal
	if len(pctx.Flags) > 0 {
		values := make(map[string]cty.Value, len(pctx.Flags))
		for name, on := range pctx.Flags {
			values[name] = cty.BoolVal(on)
		}
		flags = cty.ObjectVal(values)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"platform":       cty.StringVal(pctx.Platform),
			"configuration":  cty.StringVal(string(pctx.configuration())),
			"target":         cty.StringVal(pctx.Target),
			"target_type":    cty.StringVal(pctx.TargetType),
			"engine_version": cty.StringVal(pctx.EngineVersion),
			"flags":          flags,
		},
		Functions: map[string]function.Function{
			"in_group": inGroupFunc(pctx),
		},
	}
}

func inGroupFunc(pctx Context) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "group", Type: cty.String}},
		Type:   function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.BoolVal(pctx.InGroup(args[0].AsString())), nil
		},
	})
}

// eval reports whether the condition holds. An empty condition always holds.
func (e *evaluator) eval(src string) (bool, error) {
	if src == "" {
		return true, nil
	}
	expr, err := e.parse(src)
	if err != nil {
		return false, err
	}
	val, diags := expr.Value(e.ctx)
	if diags.HasErrors() {
		return false, diags
	}
	if val.IsNull() {
		return false, fmt.Errorf("condition evaluated to null")
	}
	if !val.IsWhollyKnown() {
		return false, fmt.Errorf("condition value is unknown")
	}
	converted, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("condition must be a bool, got %s", val.Type().FriendlyName())
	}
	return converted.True(), nil
}

func (e *evaluator) parse(src string) (hclsyntax.Expression, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if expr, ok := e.cache[src]; ok {
		return expr, nil
	}
	expr, diags := hclsyntax.ParseExpression([]byte(src), "when", hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return nil, diags
	}
	e.cache[src] = expr
	return expr, nil
}
