package edit

import (
	"context"
	"errors"
	"sync"

	"github.com/Gobusters/ectologger"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type testObject struct {
	id     string
	parent Object
}

func (o *testObject) ObjectID() string {
	return o.id
}

type nestedObject struct {
	testObject
}

func (o *nestedObject) ParentObject() Object {
	return o.parent
}

type mergeFunc func(self *testCommand, prev Command, params UserParams) Command

type testCommand struct {
	object      Object
	title       string
	notUndoable bool
	merge       mergeFunc
	actions     []PersistAction
	validateErr error

	mu      sync.Mutex
	updated int
}

func newCommand(obj Object, title string, actions ...PersistAction) *testCommand {
	return &testCommand{object: obj, title: title, actions: actions}
}

func (c *testCommand) Object() Object  { return c.object }
func (c *testCommand) Title() string   { return c.title }
func (c *testCommand) Undoable() bool  { return !c.notUndoable }
func (c *testCommand) Validate() error { return c.validateErr }
func (c *testCommand) PersistActions() []PersistAction {
	return c.actions
}

func (c *testCommand) Merge(prev Command, params UserParams) Command {
	if c.merge == nil {
		return c
	}
	return c.merge(c, prev, params)
}

func (c *testCommand) UpdateModel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updated++
	return nil
}

func (c *testCommand) updates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updated
}

// aggregatorCommand collects other commands into its own persistence.
type aggregatorCommand struct {
	testCommand
	accept     func(Command) bool
	aggregated []Command
	resets     int
}

func (a *aggregatorCommand) ResetAggregatedCommands() {
	a.resets++
	a.aggregated = nil
}

func (a *aggregatorCommand) AggregateCommand(cmd Command) bool {
	if a.accept != nil && !a.accept(cmd) {
		return false
	}
	a.aggregated = append(a.aggregated, cmd)
	return true
}

func (a *aggregatorCommand) Merge(prev Command, params UserParams) Command {
	return a
}

type testAction struct {
	title string
	kind  ActionKind
	// failures is the number of leading calls that fail.
	failures int
	onExec   func(ctx context.Context)

	mu    sync.Mutex
	calls int
}

func newAction(title string, kind ActionKind) *testAction {
	return &testAction{title: title, kind: kind}
}

func (a *testAction) Title() string    { return a.title }
func (a *testAction) Kind() ActionKind { return a.kind }

func (a *testAction) Execute(ctx context.Context, pc PersistContext) error {
	a.mu.Lock()
	a.calls++
	fail := a.calls <= a.failures
	a.mu.Unlock()
	if a.onExec != nil {
		a.onExec(ctx)
	}
	if fail {
		return errors.New(a.title + " failed")
	}
	return pc.Exec(ctx, a.title)
}

func (a *testAction) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeProvider struct {
	disconnected bool
	openErr      error

	mu         sync.Mutex
	opened     []string
	closed     int
	statements []string
}

func (p *fakeProvider) IsConnected(ctx context.Context) bool {
	return !p.disconnected
}

func (p *fakeProvider) OpenContext(ctx context.Context, purpose Purpose, description string) (PersistContext, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, description)
	return &fakePersistContext{provider: p}, nil
}

type fakePersistContext struct {
	provider *fakeProvider
}

func (c *fakePersistContext) Exec(ctx context.Context, statement string, args ...any) error {
	c.provider.mu.Lock()
	defer c.provider.mu.Unlock()
	c.provider.statements = append(c.provider.statements, statement)
	return nil
}

func (c *fakePersistContext) Close(ctx context.Context) error {
	c.provider.mu.Lock()
	defer c.provider.mu.Unlock()
	c.provider.closed++
	return nil
}

type recordingReflector struct {
	events []string
}

func (r *recordingReflector) UndoCommand(cmd Command) {
	r.events = append(r.events, "undo:"+cmd.Title())
}

func (r *recordingReflector) RedoCommand(cmd Command) {
	r.events = append(r.events, "redo:"+cmd.Title())
}

type recordingListener struct {
	changes   []string
	saves     int
	resets    int
	undoState []string
}

func (l *recordingListener) OnCommandChange(cmd Command) {
	l.changes = append(l.changes, cmd.Title())
}

func (l *recordingListener) OnSave()  { l.saves++ }
func (l *recordingListener) OnReset() { l.resets++ }

func (l *recordingListener) OnUndoStateChange(undo, redo Command) {
	state := "undo=-"
	if undo != nil {
		state = "undo=" + undo.Title()
	}
	if redo != nil {
		state += ",redo=" + redo.Title()
	} else {
		state += ",redo=-"
	}
	l.undoState = append(l.undoState, state)
}

func titles(cmds []Command) []string {
	out := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, cmd.Title())
	}
	return out
}

// foldInto folds a command into whatever precedes it on the object.
func foldInto(self *testCommand, prev Command, _ UserParams) Command {
	if prev == nil {
		return self
	}
	return prev
}

// dropMerge cancels the given pending create.
func dropMerge(create *testCommand) mergeFunc {
	return func(self *testCommand, prev Command, _ UserParams) Command {
		if prev != nil && sameCommand(prev, create) {
			return nil
		}
		return self
	}
}
