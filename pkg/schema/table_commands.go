package schema

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/edit"
)

// CreateTable creates a new table. As the aggregator of a save it also
// creates the columns added to its table by pending AddColumn commands.
type CreateTable struct {
	table      *Table
	initial    []*Column
	aggregated []*AddColumn
}

func NewCreateTable(table *Table) *CreateTable {
	return &CreateTable{table: table, initial: append([]*Column(nil), table.Columns...)}
}

func (c *CreateTable) Object() edit.Object { return c.table }
func (c *CreateTable) Title() string       { return "Create table " + c.table.Name }
func (c *CreateTable) Undoable() bool      { return true }

func (c *CreateTable) Merge(prev edit.Command, params edit.UserParams) edit.Command {
	return c
}

func (c *CreateTable) Validate() error {
	if c.table.Schema != "" {
		if err := ValidateIdentifier("schema", c.table.Schema); err != nil {
			return err
		}
	}
	if err := ValidateIdentifier("table", c.table.Name); err != nil {
		return err
	}
	columns := c.columns()
	if len(columns) == 0 {
		return errors.Errorf("table %s must have at least one column", c.table.Name)
	}
	for _, col := range columns {
		if err := validateColumn(col.Spec); err != nil {
			return err
		}
	}
	return nil
}

// columns returns the columns the CREATE statement defines.
func (c *CreateTable) columns() []*Column {
	var out []*Column
	for _, col := range c.initial {
		if !col.Dropped {
			out = append(out, col)
		}
	}
	for _, add := range c.aggregated {
		if !add.column.Dropped {
			out = append(out, add.column)
		}
	}
	return out
}

func (c *CreateTable) PersistActions() []edit.PersistAction {
	catalog := c.table.catalog
	columns := c.columns()
	actions := []edit.PersistAction{&sqlAction{
		title:   "Create table " + c.table.Name,
		kind:    edit.ActionNormal,
		catalog: catalog,
		build: func() (string, []any, error) {
			return createTableSQL(catalog.Flavor(), c.table, columns)
		},
		after: func() {
			c.table.dbName = c.table.Name
		},
	}}
	return append(actions, commentActions(catalog, c.table, columns)...)
}

func (c *CreateTable) UpdateModel() error {
	c.table.catalog.update(func() {
		c.table.Persisted = true
		for _, col := range c.columns() {
			col.Persisted = true
		}
	})
	return nil
}

func (c *CreateTable) ResetAggregatedCommands() {
	c.aggregated = nil
}

func (c *CreateTable) AggregateCommand(cmd edit.Command) bool {
	add, ok := cmd.(*AddColumn)
	if !ok || add.column.table != c.table {
		return false
	}
	c.aggregated = append(c.aggregated, add)
	return true
}

func (c *CreateTable) redo() {
	c.table.Dropped = false
	c.table.catalog.addTable(c.table)
}

func (c *CreateTable) undo() {
	c.table.catalog.removeTable(c.table)
}

// RenameTable renames a table.
type RenameTable struct {
	table   *Table
	oldName string
	newName string
}

func NewRenameTable(table *Table, newName string) *RenameTable {
	return &RenameTable{table: table, oldName: table.Name, newName: newName}
}

func (c *RenameTable) Object() edit.Object { return c.table }
func (c *RenameTable) Undoable() bool      { return true }

func (c *RenameTable) Title() string {
	return fmt.Sprintf("Rename table %s to %s", c.oldName, c.newName)
}

func (c *RenameTable) Merge(prev edit.Command, params edit.UserParams) edit.Command {
	switch p := prev.(type) {
	case nil:
		if c.oldName == c.newName || !c.table.isPersisted() {
			return nil
		}
		return c
	case *CreateTable:
		return p
	case *RenameTable:
		if p.oldName == c.newName {
			return nil
		}
		return &RenameTable{table: c.table, oldName: p.oldName, newName: c.newName}
	default:
		return c
	}
}

func (c *RenameTable) Validate() error {
	return ValidateIdentifier("table", c.newName)
}

func (c *RenameTable) PersistActions() []edit.PersistAction {
	return []edit.PersistAction{&sqlAction{
		title:   c.Title(),
		kind:    edit.ActionNormal,
		catalog: c.table.catalog,
		build: tableStatement(c.table, func(name string) string {
			return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", name, c.newName)
		}),
		after: func() {
			c.table.dbName = c.newName
		},
	}}
}

func (c *RenameTable) UpdateModel() error {
	return nil
}

func (c *RenameTable) redo() {
	c.table.Name = c.newName
}

func (c *RenameTable) undo() {
	c.table.Name = c.oldName
}

// DropTable drops a table.
type DropTable struct {
	table *Table
	name  string
}

func NewDropTable(table *Table) *DropTable {
	return &DropTable{table: table, name: table.Name}
}

func (c *DropTable) Object() edit.Object { return c.table }
func (c *DropTable) Title() string       { return "Drop table " + c.name }
func (c *DropTable) Undoable() bool      { return true }

func (c *DropTable) Merge(prev edit.Command, params edit.UserParams) edit.Command {
	switch p := prev.(type) {
	case nil:
		if !c.table.isPersisted() {
			return nil
		}
		return c
	case *CreateTable:
		return nil
	case *RenameTable:
		return &DropTable{table: c.table, name: p.oldName}
	case *DropTable:
		return p
	default:
		return c
	}
}

func (c *DropTable) Validate() error {
	return nil
}

func (c *DropTable) PersistActions() []edit.PersistAction {
	return []edit.PersistAction{&sqlAction{
		title:   c.Title(),
		kind:    edit.ActionNormal,
		catalog: c.table.catalog,
		build: tableStatement(c.table, func(name string) string {
			return "DROP TABLE " + name
		}),
	}}
}

func (c *DropTable) UpdateModel() error {
	c.table.catalog.update(func() {
		c.table.Persisted = false
		c.table.catalog.removeTable(c.table)
	})
	return nil
}

func (c *DropTable) redo() {
	c.table.Dropped = true
}

func (c *DropTable) undo() {
	c.table.Dropped = false
}
