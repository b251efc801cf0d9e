package session

import (
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/schema"
)

// Failure describes a persist action that failed in the last save.
type Failure struct {
	Command string `json:"command"`
	Action  string `json:"action"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

// State is the externally visible state of a session.
type State struct {
	ID            uuid.UUID          `json:"id"`
	Name          string             `json:"name"`
	Dirty         bool               `json:"dirty"`
	Undo          string             `json:"undo,omitempty"`
	Redo          string             `json:"redo,omitempty"`
	UndoHistory   []string           `json:"undo_history"`
	FinalCommands []string           `json:"final_commands"`
	EditedObjects []string           `json:"edited_objects"`
	Failures      []Failure          `json:"failures,omitempty"`
	Tables        []schema.TableView `json:"tables"`
}

func (s *Session) State() State {
	cc := s.Context
	st := State{
		ID:            s.ID,
		Name:          s.Name,
		Dirty:         cc.IsDirty(),
		UndoHistory:   []string{},
		FinalCommands: []string{},
		EditedObjects: []string{},
		Tables:        s.Catalog.Snapshot(),
	}
	if cmd := cc.GetUndoCommand(); cmd != nil {
		st.Undo = cmd.Title()
	}
	if cmd := cc.GetRedoCommand(); cmd != nil {
		st.Redo = cmd.Title()
	}
	for _, cmd := range cc.UndoCommands() {
		st.UndoHistory = append(st.UndoHistory, cmd.Title())
	}
	for _, cmd := range cc.FinalCommands() {
		st.FinalCommands = append(st.FinalCommands, cmd.Title())
	}
	for _, obj := range cc.EditedObjects() {
		st.EditedObjects = append(st.EditedObjects, obj.ObjectID())
	}
	for _, f := range cc.PersistFailures() {
		st.Failures = append(st.Failures, Failure{
			Command: f.Command.Title(),
			Action:  f.Action,
			Kind:    f.Kind.String(),
			Error:   f.Err.Error(),
		})
	}
	return st
}
