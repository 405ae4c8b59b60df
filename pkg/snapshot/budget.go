package snapshot

import "math"

// budgetGate tracks the running total of included bytes and vetoes
// candidates that no longer fit the configured total budget.
type budgetGate struct {
	used  int64
	limit int64
}

func newBudgetGate(limit int64) *budgetGate {
	return &budgetGate{limit: limit}
}

// Admit reports whether a candidate of the given on-disk size still fits.
// It does not advance the running total; Commit does, with the byte count
// actually read, so the accounting stays exact when stat and read diverge.
func (g *budgetGate) Admit(size int64) bool {
	return saturatingAdd(g.used, size) <= g.limit
}

// Commit adds the actual bytes read of an included file to the running total.
func (g *budgetGate) Commit(size int64) {
	g.used = saturatingAdd(g.used, size)
}

func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
