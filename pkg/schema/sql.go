package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/edit"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// sqlAction builds its statement from the model when it runs, so it always
// reflects the latest state of merged commands.
type sqlAction struct {
	title   string
	kind    edit.ActionKind
	catalog *Catalog
	build   func() (string, []any, error)
	// after runs with the catalog locked once the statement succeeded.
	after func()
}

func (a *sqlAction) Title() string {
	return a.title
}

func (a *sqlAction) Kind() edit.ActionKind {
	return a.kind
}

func (a *sqlAction) Execute(ctx context.Context, pc edit.PersistContext) error {
	ctx, span := tracing.StartSpan(ctx, "schema.sqlAction.Execute")
	defer span.End()

	var (
		stmt string
		args []any
		err  error
	)
	a.catalog.View(func() {
		stmt, args, err = a.build()
	})
	if err != nil {
		return err
	}
	if err := pc.Exec(ctx, stmt, args...); err != nil {
		return err
	}
	if a.after != nil {
		a.catalog.update(a.after)
	}
	return nil
}

// tableStatement formats a statement around the name the table currently
// has in the database.
func tableStatement(table *Table, format func(name string) string) func() (string, []any, error) {
	return func() (string, []any, error) {
		return format(table.storedName()), nil, nil
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func columnDefinition(flavor sqlbuilder.Flavor, spec ColumnSpec) []string {
	def := []string{spec.Name, spec.Type}
	if !spec.Nullable {
		def = append(def, "NOT NULL")
	}
	if spec.Default != nil {
		def = append(def, "DEFAULT", *spec.Default)
	}
	if flavor == sqlbuilder.MySQL && spec.Comment != "" {
		def = append(def, "COMMENT", quoteString(spec.Comment))
	}
	return def
}

func createTableSQL(flavor sqlbuilder.Flavor, table *Table, columns []*Column) (string, []any, error) {
	if len(columns) == 0 {
		return "", nil, errors.Errorf("table %s has no columns", table.Name)
	}
	ctb := flavor.NewCreateTableBuilder()
	ctb.CreateTable(table.QualifiedName())
	var keys []string
	for _, col := range columns {
		ctb.Define(columnDefinition(flavor, col.Spec)...)
		if col.Spec.PrimaryKey {
			keys = append(keys, col.Spec.Name)
		}
	}
	if len(keys) > 0 {
		ctb.Define("PRIMARY KEY", "("+strings.Join(keys, ", ")+")")
	}
	sql, args := ctb.Build()
	return sql, args, nil
}

// commentActions returns the optional COMMENT statements for dialects that
// keep comments outside the column definition.
func commentActions(catalog *Catalog, table *Table, columns []*Column) []edit.PersistAction {
	if catalog.Flavor() != sqlbuilder.PostgreSQL {
		return nil
	}
	var actions []edit.PersistAction
	for _, col := range columns {
		if col.Spec.Comment == "" {
			continue
		}
		actions = append(actions, &sqlAction{
			title:   fmt.Sprintf("Comment column %s.%s", table.Name, col.Spec.Name),
			kind:    edit.ActionOptional,
			catalog: catalog,
			build: func() (string, []any, error) {
				return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
					table.storedName(), col.Spec.Name, quoteString(col.Spec.Comment)), nil, nil
			},
		})
	}
	return actions
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateValues(values map[string]any) error {
	for name := range values {
		if err := ValidateIdentifier("column", name); err != nil {
			return err
		}
	}
	return nil
}

func insertSQL(flavor sqlbuilder.Flavor, table *Table, values map[string]any) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, errors.Errorf("row for %s has no values", table.Name)
	}
	cols := sortedKeys(values)
	vals := make([]any, 0, len(cols))
	for _, col := range cols {
		vals = append(vals, values[col])
	}
	ib := flavor.NewInsertBuilder()
	ib.InsertInto(table.storedName()).Cols(cols...).Values(vals...)
	sql, args := ib.Build()
	return sql, args, nil
}

type whereBuilder interface {
	Equal(field string, value any) string
	IsNull(field string) string
}

func keyConditions(b whereBuilder, table *Table, original map[string]any) ([]string, error) {
	keys := table.PrimaryKey()
	if len(keys) == 0 {
		return nil, errors.Errorf("table %s has no primary key", table.Name)
	}
	conds := make([]string, 0, len(keys))
	for _, key := range keys {
		v, ok := original[key]
		if !ok {
			return nil, errors.Errorf("row of %s has no value for key column %s", table.Name, key)
		}
		if v == nil {
			conds = append(conds, b.IsNull(key))
			continue
		}
		conds = append(conds, b.Equal(key, v))
	}
	return conds, nil
}

func updateSQL(flavor sqlbuilder.Flavor, table *Table, original, changes map[string]any) (string, []any, error) {
	ub := flavor.NewUpdateBuilder()
	ub.Update(table.storedName())
	for _, col := range sortedKeys(changes) {
		ub.SetMore(ub.Assign(col, changes[col]))
	}
	conds, err := keyConditions(ub, table, original)
	if err != nil {
		return "", nil, err
	}
	ub.Where(conds...)
	sql, args := ub.Build()
	return sql, args, nil
}

func deleteSQL(flavor sqlbuilder.Flavor, table *Table, original map[string]any) (string, []any, error) {
	db := flavor.NewDeleteBuilder()
	db.DeleteFrom(table.storedName())
	conds, err := keyConditions(db, table, original)
	if err != nil {
		return "", nil, err
	}
	db.Where(conds...)
	sql, args := db.Build()
	return sql, args, nil
}
