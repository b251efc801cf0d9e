package schema

import (
	"github.com/Ramsey-B/fern/pkg/edit"
)

type reflective interface {
	redo()
	undo()
}

// Reflector applies schema commands to the catalog model.
type Reflector struct {
	catalog *Catalog
}

func NewReflector(catalog *Catalog) *Reflector {
	return &Reflector{catalog: catalog}
}

func (r *Reflector) RedoCommand(cmd edit.Command) {
	if rc, ok := cmd.(reflective); ok {
		r.catalog.update(rc.redo)
	}
}

func (r *Reflector) UndoCommand(cmd edit.Command) {
	if rc, ok := cmd.(reflective); ok {
		r.catalog.update(rc.undo)
	}
}
