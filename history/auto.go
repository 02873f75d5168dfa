package history

import "github.com/wudi/pdfoverlay/layer"

// AutoCommitter commits states produced outside the interaction layer (batch
// imports, script runs, recognized text) while suppressing repeats. A burst of
// updates that lands on the same state yields one entry.
type AutoCommitter struct {
	m    *Manager
	last layer.State
	seen bool
}

func NewAutoCommitter(m *Manager) *AutoCommitter {
	return &AutoCommitter{m: m}
}

// Observe is called with the collections after an external change. It commits
// when the state differs both from the last observed state and from the
// history cursor, and reports whether an entry was added.
func (a *AutoCommitter) Observe(s layer.State) bool {
	if a.seen && a.last.Same(s) {
		return false
	}
	a.last, a.seen = s, true
	return a.m.Commit(s)
}

// Forget clears the last observed state, e.g. after an undo moved the cursor.
func (a *AutoCommitter) Forget() {
	a.last, a.seen = layer.State{}, false
}
