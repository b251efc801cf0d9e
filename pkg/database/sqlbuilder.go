package database

import (
	"github.com/huandu/go-sqlbuilder"
)

// NewStruct returns a struct mapper that builds statements in the dialect of
// db.
func NewStruct(v any, db DB) *sqlbuilder.Struct {
	return sqlbuilder.NewStruct(v).For(db.Flavor())
}

func NewInsertBuilder(db DB) *sqlbuilder.InsertBuilder {
	return db.Flavor().NewInsertBuilder()
}

func NewSelectBuilder(db DB) *sqlbuilder.SelectBuilder {
	return db.Flavor().NewSelectBuilder()
}

func NewDeleteBuilder(db DB) *sqlbuilder.DeleteBuilder {
	return db.Flavor().NewDeleteBuilder()
}
