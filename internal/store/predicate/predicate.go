// Package predicate compiles a declarative predicate map into the filter
// expression consumed by the columnar engine (C2).
//
// Grounded on
// original_source/app/storage/vastdbmanager/queries/predicate_builder.py.
package predicate

import (
	"fmt"
	"strings"
	"time"

	"github.com/jesseVast/tamscore/pkg/logger"
)

var log = logger.NewDefault("predicate")

// Predicate is the declarative input: a column name mapped either to a
// scalar (equality) or to an operator object {op: operand}.
type Predicate map[string]any

// Op objects are represented as map[string]any{"op": operand} so callers
// building predicates in Go get compile-time structure via this helper
// rather than hand-rolled maps.
func Op(operator string, operand any) map[string]any {
	return map[string]any{operator: operand}
}

// Compiled is the output: a parameterized expression plus its positional
// arguments, so both the in-memory reference engine and a future
// SQL-backed one can consume it without re-parsing.
type Compiled struct {
	Expr string
	Args []any
}

// Compile converts p into a Compiled filter. An empty predicate compiles to
// a Compiled with an empty Expr (match-all). Unknown operators or type
// mismatches are logged and the offending clause is skipped — the overall
// query is never failed by one bad clause.
func Compile(p Predicate) Compiled {
	if len(p) == 0 {
		return Compiled{}
	}

	var parts []string
	var args []any

	for column, condition := range p {
		switch v := condition.(type) {
		case map[string]any:
			for op, operand := range v {
				part, opArgs, ok := compileComplex(column, op, operand)
				if ok {
					parts = append(parts, part)
					args = append(args, opArgs...)
				}
			}
		default:
			part, opArgs, ok := compileSimple(column, v)
			if ok {
				parts = append(parts, part)
				args = append(args, opArgs...)
			}
		}
	}

	if len(parts) == 0 {
		return Compiled{}
	}
	return Compiled{Expr: strings.Join(parts, " AND "), Args: args}
}

func compileSimple(column string, value any) (string, []any, bool) {
	if value == nil {
		return fmt.Sprintf("%s IS NULL", column), nil, true
	}
	switch value.(type) {
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%s = ?", column), []any{value}, true
	default:
		log.Warnf("unsupported value type for column %s: %T", column, value)
		return "", nil, false
	}
}

func compileComplex(column, op string, value any) (string, []any, bool) {
	switch op {
	case "eq":
		return compileSimple(column, value)
	case "ne":
		if value == nil {
			return fmt.Sprintf("%s IS NOT NULL", column), nil, true
		}
		return fmt.Sprintf("%s != ?", column), []any{value}, true
	case "gt":
		return fmt.Sprintf("%s > ?", column), []any{value}, true
	case "gte":
		return fmt.Sprintf("%s >= ?", column), []any{value}, true
	case "lt":
		return fmt.Sprintf("%s < ?", column), []any{value}, true
	case "lte":
		return fmt.Sprintf("%s <= ?", column), []any{value}, true
	case "between":
		bounds, ok := asSlice(value)
		if !ok || len(bounds) != 2 {
			log.Warnf("invalid 'between' value for column %s: %v", column, value)
			return "", nil, false
		}
		return fmt.Sprintf("%s BETWEEN ? AND ?", column), bounds, true
	case "in":
		items, ok := asSlice(value)
		if !ok || len(items) == 0 {
			log.Warnf("invalid 'in' value for column %s: %v", column, value)
			return "", nil, false
		}
		placeholders := make([]string, len(items))
		for i := range items {
			placeholders[i] = "?"
		}
		return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), items, true
	case "contains":
		s, ok := value.(string)
		if !ok {
			log.Warnf("invalid 'contains' value for column %s: %v", column, value)
			return "", nil, false
		}
		return fmt.Sprintf("%s LIKE ?", column), []any{"%" + s + "%"}, true
	case "starts_with":
		s, ok := value.(string)
		if !ok {
			log.Warnf("invalid 'starts_with' value for column %s: %v", column, value)
			return "", nil, false
		}
		return fmt.Sprintf("%s LIKE ?", column), []any{s + "%"}, true
	case "ends_with":
		s, ok := value.(string)
		if !ok {
			log.Warnf("invalid 'ends_with' value for column %s: %v", column, value)
			return "", nil, false
		}
		return fmt.Sprintf("%s LIKE ?", column), []any{"%" + s}, true
	default:
		log.Warnf("unsupported operator %q for column %s", op, column)
		return "", nil, false
	}
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	case []time.Time:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	default:
		return nil, false
	}
}
