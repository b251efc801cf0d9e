package edit

import "context"

// Object is the target of a Command. Objects are grouped by ObjectID, which
// must stay stable for the lifetime of the object.
type Object interface {
	ObjectID() string
}

// NestedObject is an Object that belongs to a parent object. When the
// parent already has a queue, the child queue is attached to it.
type NestedObject interface {
	Object
	ParentObject() Object
}

// UserParams is scratch state shared by every Merge call of a context. It is
// cleared after a successful save and on reset.
type UserParams map[string]any

// Command is a single user edit against one Object.
//
// Commands are compared by identity, so implementations should be pointer
// types. Merge is called with prev == nil for the first command of a queue
// and must support it.
type Command interface {
	Object() Object
	Title() string
	Undoable() bool
	// Merge combines the command with an earlier one on the same object.
	// Returning nil cancels both, returning the receiver means the two are
	// unrelated, returning prev means the receiver is folded into prev, and
	// any other command replaces both.
	Merge(prev Command, params UserParams) Command
	Validate() error
	PersistActions() []PersistAction
	// UpdateModel reflects persisted changes into the in-memory model.
	UpdateModel() error
}

// Aggregator is a Command that can absorb the persistence of other pending
// commands into its own actions.
type Aggregator interface {
	Command
	ResetAggregatedCommands()
	AggregateCommand(cmd Command) bool
}

// ActionKind controls how a PersistAction behaves around failures.
type ActionKind int

const (
	// ActionNormal actions run once; a failure blocks the rest of the record.
	ActionNormal ActionKind = iota
	// ActionOptional failures are recorded but never block.
	ActionOptional
	// ActionFinalizer actions always run, even after a blocking failure.
	ActionFinalizer
)

func (k ActionKind) String() string {
	switch k {
	case ActionNormal:
		return "normal"
	case ActionOptional:
		return "optional"
	case ActionFinalizer:
		return "finalizer"
	default:
		return "unknown"
	}
}

// PersistAction is one low-level statement derived from a Command.
type PersistAction interface {
	Title() string
	Kind() ActionKind
	Execute(ctx context.Context, pc PersistContext) error
}

// Purpose tags why a persistence context was opened.
type Purpose string

const (
	PurposeUser       Purpose = "user"
	PurposeUserScript Purpose = "user_script"
	PurposeMeta       Purpose = "meta"
	PurposeUtil       Purpose = "util"
)

// PersistContext is an open connection scope used by the actions of a single
// live record.
type PersistContext interface {
	Exec(ctx context.Context, statement string, args ...any) error
	Close(ctx context.Context) error
}

// PersistenceProvider opens persistence contexts against the live database.
type PersistenceProvider interface {
	IsConnected(ctx context.Context) bool
	OpenContext(ctx context.Context, purpose Purpose, description string) (PersistContext, error)
}

// Reflector applies and reverts the in-memory effect of a command.
type Reflector interface {
	UndoCommand(cmd Command)
	RedoCommand(cmd Command)
}

// Listener receives change notifications from a CommandContext. Callbacks
// run outside of the context locks.
type Listener interface {
	OnCommandChange(cmd Command)
	OnSave()
	OnReset()
}

// UndoStateListener is an optional Listener extension notified whenever the
// undo or redo candidates may have changed.
type UndoStateListener interface {
	OnUndoStateChange(undo, redo Command)
}

// QueueFilter is an optional Object extension that may reorder or drop the
// merged commands of its queue.
type QueueFilter interface {
	FilterCommands(queue *CommandQueue)
}
