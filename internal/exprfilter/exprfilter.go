// Package exprfilter evaluates go-bexpr boolean expressions against a flat
// field map, additive to CRUD's mandatory strict-equality `filter`. It
// compiles and caches bexpr evaluators the same way Casbin's bexpr
// matcher does.
package exprfilter

import (
	"strings"
	"sync"

	"github.com/hashicorp/go-bexpr"
)

var cache sync.Map // expr string -> *bexpr.Evaluator

// Match evaluates expr against fields. An empty expression matches
// everything. An invalid expression or evaluation failure is treated as a
// non-match (deny-by-default).
func Match(expr string, fields map[string]any) bool {
	if strings.TrimSpace(expr) == "" {
		return true
	}

	if cached, ok := cache.Load(expr); ok {
		evaluator := cached.(*bexpr.Evaluator)
		matched, err := evaluator.Evaluate(fields)
		return err == nil && matched
	}

	evaluator, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return false
	}
	cache.Store(expr, evaluator)

	matched, err := evaluator.Evaluate(fields)
	return err == nil && matched
}
