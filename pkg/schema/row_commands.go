package schema

import (
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/edit"
)

// InsertRow inserts a new row.
type InsertRow struct {
	row *Row
}

func NewInsertRow(row *Row) *InsertRow {
	return &InsertRow{row: row}
}

func (c *InsertRow) Object() edit.Object { return c.row }
func (c *InsertRow) Title() string       { return "Insert row into " + c.row.table.Name }
func (c *InsertRow) Undoable() bool      { return true }

func (c *InsertRow) Merge(prev edit.Command, params edit.UserParams) edit.Command {
	return c
}

func (c *InsertRow) Validate() error {
	if len(c.row.Values) == 0 {
		return errors.Errorf("row for %s has no values", c.row.table.Name)
	}
	return validateValues(c.row.Values)
}

func (c *InsertRow) PersistActions() []edit.PersistAction {
	table := c.row.table
	if table.isDropped() {
		return nil
	}
	return []edit.PersistAction{&sqlAction{
		title:   c.Title(),
		kind:    edit.ActionNormal,
		catalog: table.catalog,
		build: func() (string, []any, error) {
			return insertSQL(table.catalog.Flavor(), table, c.row.Values)
		},
	}}
}

func (c *InsertRow) UpdateModel() error {
	c.row.table.catalog.update(func() {
		c.row.Persisted = true
		c.row.Original = copyValues(c.row.Values)
	})
	return nil
}

func (c *InsertRow) redo() {
	c.row.Deleted = false
	c.row.table.addRow(c.row)
}

func (c *InsertRow) undo() {
	c.row.table.removeRow(c.row)
}

// UpdateRow changes column values of an existing row.
type UpdateRow struct {
	row      *Row
	changes  map[string]any
	previous map[string]any
	// missing lists the changed columns the row had no value for.
	missing map[string]bool
}

func NewUpdateRow(row *Row, changes map[string]any) *UpdateRow {
	c := &UpdateRow{
		row:      row,
		changes:  copyValues(changes),
		previous: make(map[string]any),
		missing:  make(map[string]bool),
	}
	for k := range changes {
		if v, ok := row.Values[k]; ok {
			c.previous[k] = v
		} else {
			c.missing[k] = true
		}
	}
	return c
}

func (c *UpdateRow) Object() edit.Object { return c.row }
func (c *UpdateRow) Title() string       { return "Update row in " + c.row.table.Name }
func (c *UpdateRow) Undoable() bool      { return true }

func (c *UpdateRow) Merge(prev edit.Command, params edit.UserParams) edit.Command {
	switch p := prev.(type) {
	case nil:
		if len(c.changes) == 0 || !c.row.isPersisted() {
			return nil
		}
		return c
	case *InsertRow:
		return p
	case *UpdateRow:
		merged := &UpdateRow{
			row:      c.row,
			changes:  copyValues(p.changes),
			previous: copyValues(c.previous),
			missing:  make(map[string]bool),
		}
		for k, v := range c.changes {
			merged.changes[k] = v
		}
		for k := range c.missing {
			merged.missing[k] = true
		}
		for k, v := range p.previous {
			merged.previous[k] = v
			delete(merged.missing, k)
		}
		for k := range p.missing {
			merged.missing[k] = true
			delete(merged.previous, k)
		}
		return merged
	default:
		return c
	}
}

func (c *UpdateRow) Validate() error {
	if len(c.row.table.PrimaryKey()) == 0 {
		return errors.Errorf("table %s has no primary key", c.row.table.Name)
	}
	return validateValues(c.changes)
}

func (c *UpdateRow) PersistActions() []edit.PersistAction {
	table := c.row.table
	if table.isDropped() {
		return nil
	}
	return []edit.PersistAction{&sqlAction{
		title:   c.Title(),
		kind:    edit.ActionNormal,
		catalog: table.catalog,
		build: func() (string, []any, error) {
			return updateSQL(table.catalog.Flavor(), table, c.row.Original, c.changes)
		},
	}}
}

func (c *UpdateRow) UpdateModel() error {
	c.row.table.catalog.update(func() {
		if c.row.Original == nil {
			c.row.Original = make(map[string]any)
		}
		for k, v := range c.changes {
			c.row.Original[k] = v
		}
	})
	return nil
}

func (c *UpdateRow) redo() {
	for k, v := range c.changes {
		c.row.Values[k] = v
	}
}

func (c *UpdateRow) undo() {
	for k, v := range c.previous {
		c.row.Values[k] = v
	}
	for k := range c.missing {
		delete(c.row.Values, k)
	}
}

// DeleteRow deletes a row.
type DeleteRow struct {
	row *Row
}

func NewDeleteRow(row *Row) *DeleteRow {
	return &DeleteRow{row: row}
}

func (c *DeleteRow) Object() edit.Object { return c.row }
func (c *DeleteRow) Title() string       { return "Delete row from " + c.row.table.Name }
func (c *DeleteRow) Undoable() bool      { return true }

func (c *DeleteRow) Merge(prev edit.Command, params edit.UserParams) edit.Command {
	switch p := prev.(type) {
	case nil:
		if !c.row.isPersisted() {
			return nil
		}
		return c
	case *InsertRow:
		return nil
	case *UpdateRow:
		return &DeleteRow{row: c.row}
	case *DeleteRow:
		return p
	default:
		return c
	}
}

func (c *DeleteRow) Validate() error {
	if len(c.row.table.PrimaryKey()) == 0 {
		return errors.Errorf("table %s has no primary key", c.row.table.Name)
	}
	return nil
}

func (c *DeleteRow) PersistActions() []edit.PersistAction {
	table := c.row.table
	if table.isDropped() {
		return nil
	}
	return []edit.PersistAction{&sqlAction{
		title:   c.Title(),
		kind:    edit.ActionNormal,
		catalog: table.catalog,
		build: func() (string, []any, error) {
			return deleteSQL(table.catalog.Flavor(), table, c.row.Original)
		},
	}}
}

func (c *DeleteRow) UpdateModel() error {
	c.row.table.catalog.update(func() {
		c.row.Persisted = false
		c.row.table.removeRow(c.row)
	})
	return nil
}

func (c *DeleteRow) redo() {
	c.row.Deleted = true
}

func (c *DeleteRow) undo() {
	c.row.Deleted = false
}
