package schema

import (
	"github.com/google/uuid"
)

// TableView is a read-only copy of a table for API responses.
type TableView struct {
	ID        uuid.UUID    `json:"id"`
	Schema    string       `json:"schema,omitempty"`
	Name      string       `json:"name"`
	Persisted bool         `json:"persisted"`
	Columns   []ColumnView `json:"columns"`
	Rows      []RowView    `json:"rows,omitempty"`
}

type ColumnView struct {
	ID        uuid.UUID `json:"id"`
	Persisted bool      `json:"persisted"`
	ColumnSpec
}

type RowView struct {
	ID        uuid.UUID      `json:"id"`
	Persisted bool           `json:"persisted"`
	Values    map[string]any `json:"values"`
}

// Snapshot copies the live tables of the catalog.
func (c *Catalog) Snapshot() []TableView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]TableView, 0, len(c.tables))
	for _, t := range c.tables {
		if t.Dropped {
			continue
		}
		out = append(out, t.view())
	}
	return out
}

func (t *Table) view() TableView {
	v := TableView{
		ID:        t.ID,
		Schema:    t.Schema,
		Name:      t.Name,
		Persisted: t.Persisted,
		Columns:   make([]ColumnView, 0, len(t.Columns)),
	}
	for _, col := range t.Columns {
		if col.Dropped {
			continue
		}
		v.Columns = append(v.Columns, ColumnView{ID: col.ID, Persisted: col.Persisted, ColumnSpec: col.Spec})
	}
	for _, row := range t.Rows {
		if row.Deleted {
			continue
		}
		v.Rows = append(v.Rows, RowView{ID: row.ID, Persisted: row.Persisted, Values: copyValues(row.Values)})
	}
	return v
}
