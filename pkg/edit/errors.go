package edit

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotConnected is returned by SaveChanges when the provider is offline.
	ErrNotConnected = errors.New("not connected to database")
	// ErrNothingToUndo is returned when the log is empty.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNotUndoable is returned when the newest batch cannot be undone.
	ErrNotUndoable = errors.New("last executed command is not undoable")
	// ErrNothingToRedo is returned when the undo stack is empty.
	ErrNothingToRedo = errors.New("nothing to redo")
	// ErrSaveCanceled is returned when the save context is done mid-flush.
	ErrSaveCanceled = errors.New("save canceled")
	// ErrMergeCycle reports a merged-by chain that never reaches a live record.
	ErrMergeCycle = errors.New("merged-by chain does not terminate")
)

// ValidationError wraps a Command.Validate failure.
type ValidationError struct {
	Command Command
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %q: %v", e.Command.Title(), e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistError wraps the first blocking persist action failure of a record.
type PersistError struct {
	Command Command
	Action  string
	Kind    ActionKind
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %q: %s action %q: %v", e.Command.Title(), e.Kind, e.Action, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
