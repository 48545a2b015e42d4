package norms

import (
	"sort"
	"time"

	"github.com/gyeh/grdload/internal/model"
)

// Table is an immutable snapshot of the norm keyed by classification code.
type Table struct {
	entries  map[string]model.NormEntry
	loadedAt time.Time
	source   string
}

// NewTable builds a table from entries. Later entries replace earlier ones
// with the same code.
func NewTable(entries []model.NormEntry, loadedAt time.Time, source string) *Table {
	t := &Table{
		entries:  make(map[string]model.NormEntry, len(entries)),
		loadedAt: loadedAt,
		source:   source,
	}
	for _, e := range entries {
		t.entries[e.Code] = e
	}
	return t
}

// Lookup returns a copy of the entry for code.
func (t *Table) Lookup(code string) (model.NormEntry, bool) {
	if t == nil {
		return model.NormEntry{}, false
	}
	e, ok := t.entries[code]
	return e, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// LoadedAt returns when the table was loaded from its source.
func (t *Table) LoadedAt() time.Time { return t.loadedAt }

// Source names where the table came from.
func (t *Table) Source() string { return t.source }

// Entries returns all entries ordered by code.
func (t *Table) Entries() []model.NormEntry {
	out := make([]model.NormEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
