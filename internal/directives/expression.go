package directives

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
	"google.golang.org/protobuf/types/known/structpb"

	"txservice/internal/directive"
	"txservice/internal/row"
)

// Expressions see three variables: row (field name -> value, first
// occurrence wins), value (the target column's value, when the directive has
// one) and vars (the transient store contents).
var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("value", cel.DynType),
		cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
	)
})

// Expression is a compiled CEL program. Programs are stateless and safe for
// concurrent evaluation.
type Expression struct {
	Source   string
	program  cel.Program
	usesVars bool
}

func CompileExpression(src string) (*Expression, error) {
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("expression environment: %w", err)
	}
	ast, iss := env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, directive.InvalidArgf("expression %q: %v", src, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, directive.InvalidArgf("expression %q: %v", src, err)
	}
	return &Expression{Source: src, program: prg, usesVars: strings.Contains(src, "vars")}, nil
}

// Eval runs the expression against r. value is bound to the "value"
// variable.
func (e *Expression) Eval(ctx context.Context, r *row.Row, value any, ectx directive.ExecutorContext) (any, error) {
	vars := map[string]any{}
	if e.usesVars {
		var err error
		if vars, err = storeVars(ctx, ectx); err != nil {
			return nil, err
		}
	}
	out, _, err := e.program.Eval(map[string]any{
		"row":   r.Map(),
		"value": value,
		"vars":  vars,
	})
	if err != nil {
		return nil, err
	}
	return toNative(out)
}

// EvalBool is Eval for conditions.
func (e *Expression) EvalBool(ctx context.Context, r *row.Row, ectx directive.ExecutorContext) (bool, error) {
	v, err := e.Eval(ctx, r, nil, ectx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q returned %T, want bool", e.Source, v)
	}
	return b, nil
}

func toNative(v ref.Val) (any, error) {
	switch x := v.Value().(type) {
	case bool, int64, uint64, float64, string, []byte:
		return x, nil
	case structpb.NullValue:
		return nil, nil
	}
	pv, err := v.ConvertToNative(reflect.TypeOf(&structpb.Value{}))
	if err != nil {
		return nil, err
	}
	return pv.(*structpb.Value).AsInterface(), nil
}

func storeVars(ctx context.Context, ectx directive.ExecutorContext) (map[string]any, error) {
	vars := map[string]any{}
	if ectx == nil || ectx.TransientStore() == nil {
		return vars, nil
	}
	st := ectx.TransientStore()
	keys, err := st.Keys(ctx)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		v, ok, err := st.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			vars[k] = v
		}
	}
	return vars, nil
}
