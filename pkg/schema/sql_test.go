package schema

import (
	"testing"

	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemsTable(flavor sqlbuilder.Flavor) *Table {
	return NewCatalog(flavor).AttachTable("", "items",
		ColumnSpec{Name: "id", Type: "INTEGER", PrimaryKey: true},
		ColumnSpec{Name: "name", Type: "TEXT", Nullable: true},
	)
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"items", true},
		{"_tmp2", true},
		{"Items_Archive", true},
		{"2items", false},
		{"items;drop", false},
		{"", false},
		{"with space", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier("table", tt.name)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCreateTableSQL(t *testing.T) {
	table := itemsTable(sqlbuilder.PostgreSQL)
	table.Columns[1].Spec.Default = strPtr("'none'")

	sql, args, err := createTableSQL(sqlbuilder.PostgreSQL, table, table.Columns)
	require.NoError(t, err)
	assert.Empty(t, args)
	assert.Contains(t, sql, "CREATE TABLE items")
	assert.Contains(t, sql, "id INTEGER NOT NULL")
	assert.Contains(t, sql, "name TEXT DEFAULT 'none'")
	assert.Contains(t, sql, "PRIMARY KEY (id)")

	_, _, err = createTableSQL(sqlbuilder.PostgreSQL, table, nil)
	assert.Error(t, err)
}

func TestColumnDefinition_MySQLInlinesComment(t *testing.T) {
	spec := ColumnSpec{Name: "note", Type: "TEXT", Nullable: true, Comment: "it's free text"}
	assert.Equal(t, []string{"note", "TEXT", "COMMENT", "'it''s free text'"}, columnDefinition(sqlbuilder.MySQL, spec))
	assert.Equal(t, []string{"note", "TEXT"}, columnDefinition(sqlbuilder.PostgreSQL, spec))
}

func TestInsertSQL(t *testing.T) {
	tests := []struct {
		flavor sqlbuilder.Flavor
		want   string
	}{
		{sqlbuilder.PostgreSQL, "INSERT INTO items (id, name) VALUES ($1, $2)"},
		{sqlbuilder.MySQL, "INSERT INTO items (id, name) VALUES (?, ?)"},
		{sqlbuilder.SQLite, "INSERT INTO items (id, name) VALUES (?, ?)"},
	}
	for _, tt := range tests {
		t.Run(tt.flavor.String(), func(t *testing.T) {
			table := itemsTable(tt.flavor)
			sql, args, err := insertSQL(tt.flavor, table, map[string]any{"name": "a", "id": 1})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
			assert.Equal(t, []any{1, "a"}, args)
		})
	}

	_, _, err := insertSQL(sqlbuilder.SQLite, itemsTable(sqlbuilder.SQLite), nil)
	assert.Error(t, err)
}

func TestUpdateSQL_UsesOriginalKey(t *testing.T) {
	table := itemsTable(sqlbuilder.PostgreSQL)
	sql, args, err := updateSQL(sqlbuilder.PostgreSQL, table,
		map[string]any{"id": 7, "name": "old"},
		map[string]any{"id": 8, "name": "new"})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE items SET id = $1, name = $2 WHERE id = $3", sql)
	assert.Equal(t, []any{8, "new", 7}, args)
}

func TestDeleteSQL(t *testing.T) {
	table := itemsTable(sqlbuilder.MySQL)
	sql, args, err := deleteSQL(sqlbuilder.MySQL, table, map[string]any{"id": 3})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM items WHERE id = ?", sql)
	assert.Equal(t, []any{3}, args)

	sql, _, err = deleteSQL(sqlbuilder.MySQL, table, map[string]any{"id": nil})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM items WHERE id IS NULL", sql)
}

func TestKeyConditions_RequireKey(t *testing.T) {
	keyless := NewCatalog(sqlbuilder.SQLite).AttachTable("", "log", ColumnSpec{Name: "line", Type: "TEXT"})
	_, _, err := deleteSQL(sqlbuilder.SQLite, keyless, map[string]any{"line": "x"})
	assert.Error(t, err)

	_, _, err = deleteSQL(sqlbuilder.SQLite, itemsTable(sqlbuilder.SQLite), map[string]any{"name": "x"})
	assert.Error(t, err)
}

func TestTable_QualifiedName(t *testing.T) {
	table := NewCatalog(sqlbuilder.PostgreSQL).NewTable("sales", "orders")
	assert.Equal(t, "sales.orders", table.QualifiedName())
}
