// Package extract turns decoded JSON into a feed value with a CEL expression.
package extract

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/fd1az/oracle-resolver/business/feed/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
)

// Extractor evaluates a CEL expression over the decoded response `body`.
type Extractor struct {
	expr string
	prg  cel.Program
}

// New compiles expr, e.g. `body.bpi.USD.rate_float`.
func New(expr string) (*Extractor, error) {
	env, err := cel.NewEnv(cel.Variable("body", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("extract "+expr), apperror.WithCause(issues.Err()))
	}

	prg, err := env.Program(ast, cel.CostLimit(10_000))
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("extract "+expr), apperror.WithCause(err))
	}
	return &Extractor{expr: expr, prg: prg}, nil
}

// Extract evaluates against body. Numbers become float64 values and
// booleans stay booleans; anything else is an error.
func (e *Extractor) Extract(body any) (domain.Value, error) {
	out, _, err := e.prg.Eval(map[string]any{"body": body})
	if err != nil {
		return domain.Value{}, fmt.Errorf("evaluate %s: %w", e.expr, err)
	}

	switch v := out.Value().(type) {
	case float64:
		return domain.NumberValue(v), nil
	case int64:
		return domain.NumberValue(float64(v)), nil
	case uint64:
		return domain.NumberValue(float64(v)), nil
	case bool:
		return domain.BoolValue(v), nil
	default:
		return domain.Value{}, fmt.Errorf("evaluate %s: unsupported result type %T", e.expr, v)
	}
}
