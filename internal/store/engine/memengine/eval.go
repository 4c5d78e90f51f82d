package memengine

import (
	"fmt"
	"strings"

	"github.com/jesseVast/tamscore/internal/store/engine"
)

// evalExpr interprets the small, fixed grammar produced by
// internal/store/predicate.Compile: clauses of the form
//
//	col = ?
//	col != ?
//	col > ? / >= ? / < ? / <= ?
//	col BETWEEN ? AND ?
//	col IN (?, ?, ...)
//	col LIKE ?
//	col IS NULL / col IS NOT NULL
//
// joined by " AND ". This engine has no SQL planner of its own, so rather
// than re-deriving a general expression parser it walks the clause list
// predicate.Compile is known to emit.
func evalExpr(row engine.Row, expr string, args []any) bool {
	clauses := strings.Split(expr, " AND ")
	argIdx := 0
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		ok, consumed := evalClause(row, clause, args[argIdx:])
		if !ok {
			return false
		}
		argIdx += consumed
	}
	return true
}

func evalClause(row engine.Row, clause string, args []any) (bool, int) {
	switch {
	case strings.HasSuffix(clause, "IS NOT NULL"):
		col := strings.TrimSpace(strings.TrimSuffix(clause, "IS NOT NULL"))
		return row[col] != nil, 0
	case strings.HasSuffix(clause, "IS NULL"):
		col := strings.TrimSpace(strings.TrimSuffix(clause, "IS NULL"))
		return row[col] == nil, 0
	case strings.Contains(clause, "BETWEEN"):
		parts := strings.SplitN(clause, "BETWEEN", 2)
		col := strings.TrimSpace(parts[0])
		if len(args) < 2 {
			return false, 0
		}
		return compare(row[col], args[0]) >= 0 && compare(row[col], args[1]) <= 0, 2
	case strings.Contains(clause, " IN ("):
		parts := strings.SplitN(clause, " IN (", 2)
		col := strings.TrimSpace(parts[0])
		n := strings.Count(parts[1], "?")
		if len(args) < n {
			return false, 0
		}
		for i := 0; i < n; i++ {
			if compare(row[col], args[i]) == 0 {
				return true, n
			}
		}
		return false, n
	case strings.Contains(clause, "LIKE"):
		parts := strings.SplitN(clause, "LIKE", 2)
		col := strings.TrimSpace(parts[0])
		if len(args) < 1 {
			return false, 0
		}
		pattern, _ := args[0].(string)
		return likeMatch(fmt.Sprintf("%v", row[col]), pattern), 1
	case strings.Contains(clause, ">="):
		col := strings.TrimSpace(strings.SplitN(clause, ">=", 2)[0])
		return compare(row[col], args[0]) >= 0, 1
	case strings.Contains(clause, "<="):
		col := strings.TrimSpace(strings.SplitN(clause, "<=", 2)[0])
		return compare(row[col], args[0]) <= 0, 1
	case strings.Contains(clause, "!="):
		col := strings.TrimSpace(strings.SplitN(clause, "!=", 2)[0])
		return compare(row[col], args[0]) != 0, 1
	case strings.Contains(clause, ">"):
		col := strings.TrimSpace(strings.SplitN(clause, ">", 2)[0])
		return compare(row[col], args[0]) > 0, 1
	case strings.Contains(clause, "<"):
		col := strings.TrimSpace(strings.SplitN(clause, "<", 2)[0])
		return compare(row[col], args[0]) < 0, 1
	case strings.Contains(clause, "="):
		col := strings.TrimSpace(strings.SplitN(clause, "=", 2)[0])
		return compare(row[col], args[0]) == 0, 1
	default:
		return true, 0
	}
}

// compare returns -1/0/1 for a<b/a==b/a>b across the scalar types
// predicate.Compile accepts (string, int, int64, float64, bool).
func compare(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	return strings.Compare(as, bs)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func likeMatch(value, pattern string) bool {
	switch {
	case strings.HasPrefix(pattern, "%") && strings.HasSuffix(pattern, "%") && len(pattern) >= 2:
		return strings.Contains(value, pattern[1:len(pattern)-1])
	case strings.HasPrefix(pattern, "%"):
		return strings.HasSuffix(value, pattern[1:])
	case strings.HasSuffix(pattern, "%"):
		return strings.HasPrefix(value, pattern[:len(pattern)-1])
	default:
		return value == pattern
	}
}
