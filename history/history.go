// Package history keeps snapshot-based undo/redo over the whole overlay model.
//
// Every entry is a complete layer.State. Undo and redo move a cursor and hand
// back the state to restore; callers replace their collections with it rather
// than merging. The buffer is linear: committing after an undo discards the
// redo tail.
package history

import "github.com/wudi/pdfoverlay/layer"

// DefaultCapacity bounds the number of retained snapshots.
const DefaultCapacity = 50

// Manager is not safe for concurrent use.
type Manager struct {
	capacity int
	entries  []layer.State
	cursor   int
}

// New returns a manager whose first entry is initial. capacity <= 1 falls back
// to DefaultCapacity.
func New(capacity int, initial layer.State) *Manager {
	if capacity <= 1 {
		capacity = DefaultCapacity
	}
	m := &Manager{capacity: capacity}
	m.Reset(initial)
	return m
}

// Reset drops every entry and starts over from initial.
func (m *Manager) Reset(initial layer.State) {
	m.entries = []layer.State{initial.Clone()}
	m.cursor = 0
}

// Commit records s as the newest entry. It returns false when s is
// structurally equal to the entry under the cursor, in which case nothing
// changes (the redo tail included).
func (m *Manager) Commit(s layer.State) bool {
	if m.Current().Equal(s) {
		return false
	}
	m.entries = append(m.entries[:m.cursor+1], s.Clone())
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = append([]layer.State(nil), m.entries[over:]...)
	}
	m.cursor = len(m.entries) - 1
	return true
}

// Current returns the entry under the cursor.
func (m *Manager) Current() layer.State { return m.entries[m.cursor] }

// Undo steps back one entry. At the oldest entry it is a no-op and ok is false.
func (m *Manager) Undo() (layer.State, bool) {
	if !m.CanUndo() {
		return m.Current(), false
	}
	m.cursor--
	return m.Current().Clone(), true
}

// Redo steps forward one entry. At the newest entry it is a no-op.
func (m *Manager) Redo() (layer.State, bool) {
	if !m.CanRedo() {
		return m.Current(), false
	}
	m.cursor++
	return m.Current().Clone(), true
}

func (m *Manager) CanUndo() bool { return m.cursor > 0 }
func (m *Manager) CanRedo() bool { return m.cursor < len(m.entries)-1 }

// Len is the number of retained entries, the baseline included.
func (m *Manager) Len() int { return len(m.entries) }

// Cursor is the index of the current entry.
func (m *Manager) Cursor() int { return m.cursor }

func (m *Manager) Capacity() int { return m.capacity }
