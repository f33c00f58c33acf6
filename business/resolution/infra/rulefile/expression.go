package rulefile

import (
	"fmt"

	"github.com/google/cel-go/cel"

	feeddomain "github.com/fd1az/oracle-resolver/business/feed/domain"
	"github.com/fd1az/oracle-resolver/business/resolution/domain"
)

var _ domain.Predicate = (*Expression)(nil)

// Expression is a compiled CEL predicate over `value`.
type Expression struct {
	source string
	prg    cel.Program
}

// CompileExpression compiles src. It must yield a boolean.
func CompileExpression(src string) (*Expression, error) {
	env, err := cel.NewEnv(cel.Variable("value", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression %q yields %s, want bool", src, out)
	}

	prg, err := env.Program(ast, cel.CostLimit(10_000))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return &Expression{source: src, prg: prg}, nil
}

// Holds evaluates the expression. Evaluation errors and non-boolean
// results do not hold.
func (e *Expression) Holds(v feeddomain.Value) bool {
	native := v.Native()
	if native == nil {
		return false
	}
	out, _, err := e.prg.Eval(map[string]any{"value": native})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

func (e *Expression) String() string {
	return e.source
}
