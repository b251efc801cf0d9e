// Package schema is the in-memory model of the tables, columns and rows a
// session edits, together with the edit commands that change them.
package schema

import (
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/edit"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier rejects names that would need quoting.
func ValidateIdentifier(kind, name string) error {
	if !identifierPattern.MatchString(name) {
		return errors.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

// ColumnSpec holds the user editable attributes of a column.
type ColumnSpec struct {
	Name       string  `json:"name" yaml:"name"`
	Type       string  `json:"type" yaml:"type"`
	Nullable   bool    `json:"nullable" yaml:"nullable"`
	Default    *string `json:"default,omitempty" yaml:"default,omitempty"`
	Comment    string  `json:"comment,omitempty" yaml:"comment,omitempty"`
	PrimaryKey bool    `json:"primary_key" yaml:"primary_key"`
}

func (s ColumnSpec) equal(o ColumnSpec) bool {
	if s.Name != o.Name || s.Type != o.Type || s.Nullable != o.Nullable || s.Comment != o.Comment || s.PrimaryKey != o.PrimaryKey {
		return false
	}
	if s.Default == nil || o.Default == nil {
		return s.Default == nil && o.Default == nil
	}
	return *s.Default == *o.Default
}

// Catalog is the set of tables known to one session. Commands mutate it
// through the Reflector; every other access goes through View.
type Catalog struct {
	mu     sync.RWMutex
	flavor sqlbuilder.Flavor
	tables []*Table
}

func NewCatalog(flavor sqlbuilder.Flavor) *Catalog {
	return &Catalog{flavor: flavor}
}

func (c *Catalog) Flavor() sqlbuilder.Flavor {
	return c.flavor
}

// View runs fn with the catalog read-locked.
func (c *Catalog) View(fn func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn()
}

func (c *Catalog) update(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// NewTable returns a table that does not exist yet. It joins the catalog
// when a CreateTable command for it is applied.
func (c *Catalog) NewTable(schemaName, name string, columns ...ColumnSpec) *Table {
	t := &Table{ID: uuid.New(), Schema: schemaName, Name: name, catalog: c}
	for _, spec := range columns {
		t.Columns = append(t.Columns, &Column{ID: uuid.New(), Spec: spec, table: t})
	}
	return t
}

// AttachTable registers an existing database table.
func (c *Catalog) AttachTable(schemaName, name string, columns ...ColumnSpec) *Table {
	t := c.NewTable(schemaName, name, columns...)
	t.Persisted = true
	t.dbName = name
	for _, col := range t.Columns {
		col.Persisted = true
	}
	c.update(func() {
		c.tables = append(c.tables, t)
	})
	return t
}

// Table finds a live table by id.
func (c *Catalog) Table(id uuid.UUID) *Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tables {
		if t.ID == id && !t.Dropped {
			return t
		}
	}
	return nil
}

// FindTable finds a live table by name.
func (c *Catalog) FindTable(name string) *Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tables {
		if t.Name == name && !t.Dropped {
			return t
		}
	}
	return nil
}

// Tables returns the live tables.
func (c *Catalog) Tables() []*Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		if !t.Dropped {
			out = append(out, t)
		}
	}
	return out
}

func (c *Catalog) addTable(t *Table) {
	for _, existing := range c.tables {
		if existing == t {
			return
		}
	}
	c.tables = append(c.tables, t)
}

func (c *Catalog) removeTable(t *Table) {
	for i, existing := range c.tables {
		if existing == t {
			c.tables = append(c.tables[:i:i], c.tables[i+1:]...)
			return
		}
	}
}

type Table struct {
	ID        uuid.UUID
	Schema    string
	Name      string
	Columns   []*Column
	Rows      []*Row
	Persisted bool
	Dropped   bool

	catalog *Catalog
	// dbName is the name the table has in the database.
	dbName string
}

func (t *Table) ObjectID() string {
	return "table:" + t.ID.String()
}

func (t *Table) Catalog() *Catalog {
	return t.catalog
}

// QualifiedName is the schema qualified model name of the table.
func (t *Table) QualifiedName() string {
	return t.qualify(t.Name)
}

func (t *Table) isPersisted() bool {
	t.catalog.mu.RLock()
	defer t.catalog.mu.RUnlock()
	return t.Persisted
}

func (t *Table) isDropped() bool {
	t.catalog.mu.RLock()
	defer t.catalog.mu.RUnlock()
	return t.Dropped
}

func (t *Table) storedName() string {
	if t.dbName == "" {
		return t.QualifiedName()
	}
	return t.qualify(t.dbName)
}

func (t *Table) qualify(name string) string {
	if t.Schema == "" {
		return name
	}
	return t.Schema + "." + name
}

// NewColumn returns a column that joins the table when an AddColumn
// command for it is applied.
func (t *Table) NewColumn(spec ColumnSpec) *Column {
	return &Column{ID: uuid.New(), Spec: spec, table: t}
}

func (t *Table) Column(id uuid.UUID) *Column {
	t.catalog.mu.RLock()
	defer t.catalog.mu.RUnlock()
	for _, col := range t.Columns {
		if col.ID == id && !col.Dropped {
			return col
		}
	}
	return nil
}

func (t *Table) FindColumn(name string) *Column {
	t.catalog.mu.RLock()
	defer t.catalog.mu.RUnlock()
	for _, col := range t.Columns {
		if col.Spec.Name == name && !col.Dropped {
			return col
		}
	}
	return nil
}

// PrimaryKey returns the names of the live primary key columns.
func (t *Table) PrimaryKey() []string {
	var keys []string
	for _, col := range t.Columns {
		if col.Spec.PrimaryKey && !col.Dropped {
			keys = append(keys, col.Spec.Name)
		}
	}
	return keys
}

// NewRow returns a row that joins the table when an InsertRow command for
// it is applied.
func (t *Table) NewRow(values map[string]any) *Row {
	return &Row{ID: uuid.New(), Values: copyValues(values), table: t}
}

// AttachRow registers a row that already exists in the database.
func (t *Table) AttachRow(values map[string]any) *Row {
	row := t.NewRow(values)
	row.Persisted = true
	row.Original = copyValues(values)
	t.catalog.update(func() {
		t.Rows = append(t.Rows, row)
	})
	return row
}

func (t *Table) Row(id uuid.UUID) *Row {
	t.catalog.mu.RLock()
	defer t.catalog.mu.RUnlock()
	for _, row := range t.Rows {
		if row.ID == id && !row.Deleted {
			return row
		}
	}
	return nil
}

func (t *Table) addColumn(col *Column) {
	for _, existing := range t.Columns {
		if existing == col {
			return
		}
	}
	t.Columns = append(t.Columns, col)
}

func (t *Table) removeColumn(col *Column) {
	for i, existing := range t.Columns {
		if existing == col {
			t.Columns = append(t.Columns[:i:i], t.Columns[i+1:]...)
			return
		}
	}
}

func (t *Table) addRow(row *Row) {
	for _, existing := range t.Rows {
		if existing == row {
			return
		}
	}
	t.Rows = append(t.Rows, row)
}

func (t *Table) removeRow(row *Row) {
	for i, existing := range t.Rows {
		if existing == row {
			t.Rows = append(t.Rows[:i:i], t.Rows[i+1:]...)
			return
		}
	}
}

type Column struct {
	ID        uuid.UUID
	Spec      ColumnSpec
	Persisted bool
	Dropped   bool

	table *Table
}

func (c *Column) ObjectID() string {
	return "column:" + c.ID.String()
}

func (c *Column) ParentObject() edit.Object {
	return c.table
}

func (c *Column) Table() *Table {
	return c.table
}

func (c *Column) isPersisted() bool {
	c.table.catalog.mu.RLock()
	defer c.table.catalog.mu.RUnlock()
	return c.Persisted
}

type Row struct {
	ID     uuid.UUID
	Values map[string]any
	// Original holds the values last written to the database; key lookups
	// use it.
	Original  map[string]any
	Persisted bool
	Deleted   bool

	table *Table
}

func (r *Row) ObjectID() string {
	return "row:" + r.ID.String()
}

func (r *Row) ParentObject() edit.Object {
	return r.table
}

func (r *Row) Table() *Table {
	return r.table
}

func (r *Row) isPersisted() bool {
	r.table.catalog.mu.RLock()
	defer r.table.catalog.mu.RUnlock()
	return r.Persisted
}

func copyValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
