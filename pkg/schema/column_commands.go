package schema

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/edit"
)

func validateColumn(spec ColumnSpec) error {
	if err := ValidateIdentifier("column", spec.Name); err != nil {
		return err
	}
	if strings.TrimSpace(spec.Type) == "" {
		return errors.Errorf("column %s has no type", spec.Name)
	}
	return nil
}

// AddColumn adds a column to an existing table.
type AddColumn struct {
	column *Column
}

func NewAddColumn(column *Column) *AddColumn {
	return &AddColumn{column: column}
}

func (c *AddColumn) Object() edit.Object { return c.column }
func (c *AddColumn) Undoable() bool      { return true }

func (c *AddColumn) Title() string {
	return fmt.Sprintf("Add column %s.%s", c.column.table.Name, c.column.Spec.Name)
}

func (c *AddColumn) Merge(prev edit.Command, params edit.UserParams) edit.Command {
	return c
}

func (c *AddColumn) Validate() error {
	return validateColumn(c.column.Spec)
}

func (c *AddColumn) PersistActions() []edit.PersistAction {
	table := c.column.table
	if table.isDropped() {
		return nil
	}
	catalog := table.catalog
	actions := []edit.PersistAction{&sqlAction{
		title:   c.Title(),
		kind:    edit.ActionNormal,
		catalog: catalog,
		build: func() (string, []any, error) {
			def := strings.Join(columnDefinition(catalog.Flavor(), c.column.Spec), " ")
			return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table.storedName(), def), nil, nil
		},
	}}
	return append(actions, commentActions(catalog, table, []*Column{c.column})...)
}

func (c *AddColumn) UpdateModel() error {
	c.column.table.catalog.update(func() {
		c.column.Persisted = true
	})
	return nil
}

func (c *AddColumn) redo() {
	c.column.Dropped = false
	c.column.table.addColumn(c.column)
}

func (c *AddColumn) undo() {
	c.column.table.removeColumn(c.column)
}

// AlterColumn changes the attributes of a column.
type AlterColumn struct {
	column *Column
	before ColumnSpec
	after  ColumnSpec
}

func NewAlterColumn(column *Column, spec ColumnSpec) *AlterColumn {
	return &AlterColumn{column: column, before: column.Spec, after: spec}
}

func (c *AlterColumn) Object() edit.Object { return c.column }
func (c *AlterColumn) Undoable() bool      { return true }

func (c *AlterColumn) Title() string {
	return fmt.Sprintf("Alter column %s.%s", c.column.table.Name, c.before.Name)
}

func (c *AlterColumn) Merge(prev edit.Command, params edit.UserParams) edit.Command {
	switch p := prev.(type) {
	case nil:
		if c.before.equal(c.after) || !c.column.isPersisted() {
			return nil
		}
		return c
	case *AddColumn:
		return p
	case *AlterColumn:
		if p.before.equal(c.after) {
			return nil
		}
		return &AlterColumn{column: c.column, before: p.before, after: c.after}
	default:
		return c
	}
}

func (c *AlterColumn) Validate() error {
	return validateColumn(c.after)
}

func (c *AlterColumn) PersistActions() []edit.PersistAction {
	table := c.column.table
	if table.isDropped() {
		return nil
	}
	catalog := table.catalog
	before, after := c.before, c.after

	var actions []edit.PersistAction
	add := func(kind edit.ActionKind, title string, format func(name string) string) {
		actions = append(actions, &sqlAction{title: title, kind: kind, catalog: catalog, build: tableStatement(table, format)})
	}

	if before.Name != after.Name {
		add(edit.ActionNormal, fmt.Sprintf("Rename column %s to %s", before.Name, after.Name), func(name string) string {
			return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", name, before.Name, after.Name)
		})
	}

	switch catalog.Flavor() {
	case sqlbuilder.MySQL:
		if before.Type != after.Type || before.Nullable != after.Nullable || !sameDefault(before.Default, after.Default) || before.Comment != after.Comment {
			def := strings.Join(columnDefinition(sqlbuilder.MySQL, after), " ")
			add(edit.ActionNormal, c.Title(), func(name string) string {
				return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", name, def)
			})
		}
	case sqlbuilder.PostgreSQL:
		alter := func(clause string) func(name string) string {
			return func(name string) string {
				return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", name, after.Name, clause)
			}
		}
		if before.Type != after.Type {
			add(edit.ActionNormal, "Change type of "+after.Name, alter("TYPE "+after.Type))
		}
		if before.Nullable != after.Nullable {
			if after.Nullable {
				add(edit.ActionNormal, "Drop not null on "+after.Name, alter("DROP NOT NULL"))
			} else {
				add(edit.ActionNormal, "Set not null on "+after.Name, alter("SET NOT NULL"))
			}
		}
		if !sameDefault(before.Default, after.Default) {
			if after.Default == nil {
				add(edit.ActionNormal, "Drop default of "+after.Name, alter("DROP DEFAULT"))
			} else {
				add(edit.ActionNormal, "Set default of "+after.Name, alter("SET DEFAULT "+*after.Default))
			}
		}
		if before.Comment != after.Comment {
			add(edit.ActionOptional, "Comment column "+after.Name, func(name string) string {
				return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", name, after.Name, quoteString(after.Comment))
			})
		}
	default:
		if before.Type != after.Type || before.Nullable != after.Nullable || !sameDefault(before.Default, after.Default) {
			actions = append(actions, &sqlAction{
				title:   c.Title(),
				kind:    edit.ActionNormal,
				catalog: catalog,
				build: func() (string, []any, error) {
					return "", nil, errors.Errorf("%s cannot alter column %s in place", catalog.Flavor(), after.Name)
				},
			})
		}
	}
	return actions
}

func sameDefault(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (c *AlterColumn) UpdateModel() error {
	return nil
}

func (c *AlterColumn) redo() {
	c.column.Spec = c.after
}

func (c *AlterColumn) undo() {
	c.column.Spec = c.before
}

// DropColumn removes a column from its table.
type DropColumn struct {
	column *Column
	name   string
}

func NewDropColumn(column *Column) *DropColumn {
	return &DropColumn{column: column, name: column.Spec.Name}
}

func (c *DropColumn) Object() edit.Object { return c.column }
func (c *DropColumn) Undoable() bool      { return true }

func (c *DropColumn) Title() string {
	return fmt.Sprintf("Drop column %s.%s", c.column.table.Name, c.name)
}

func (c *DropColumn) Merge(prev edit.Command, params edit.UserParams) edit.Command {
	switch p := prev.(type) {
	case nil:
		if !c.column.isPersisted() {
			return nil
		}
		return c
	case *AddColumn:
		return nil
	case *AlterColumn:
		return &DropColumn{column: c.column, name: p.before.Name}
	case *DropColumn:
		return p
	default:
		return c
	}
}

func (c *DropColumn) Validate() error {
	return nil
}

func (c *DropColumn) PersistActions() []edit.PersistAction {
	table := c.column.table
	if table.isDropped() {
		return nil
	}
	return []edit.PersistAction{&sqlAction{
		title:   c.Title(),
		kind:    edit.ActionNormal,
		catalog: table.catalog,
		build: tableStatement(table, func(name string) string {
			return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", name, c.name)
		}),
	}}
}

func (c *DropColumn) UpdateModel() error {
	c.column.table.catalog.update(func() {
		c.column.Persisted = false
		c.column.table.removeColumn(c.column)
	})
	return nil
}

func (c *DropColumn) redo() {
	c.column.Dropped = true
}

func (c *DropColumn) undo() {
	c.column.Dropped = false
}
