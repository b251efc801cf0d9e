package edit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCommand_ExecuteAppliesReflector(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	reflector := &recordingReflector{}
	cc.AddCommand(newCommand(&testObject{id: "a"}, "a"), reflector, true)
	cc.AddCommand(newCommand(&testObject{id: "b"}, "b"), reflector, false)

	assert.Equal(t, []string{"redo:a"}, reflector.events)
}

func TestUndoRedo_SingleCommands(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	reflector := &recordingReflector{}
	a := newCommand(&testObject{id: "a"}, "a")
	b := newCommand(&testObject{id: "b"}, "b")
	cc.AddCommand(a, reflector, false)
	cc.AddCommand(b, reflector, false)

	assert.Same(t, b, cc.GetUndoCommand())
	require.NoError(t, cc.UndoCommand())
	assert.Same(t, a, cc.GetUndoCommand())
	assert.Same(t, b, cc.GetRedoCommand())
	assert.Equal(t, []string{"a"}, titles(cc.Commands()))

	require.NoError(t, cc.RedoCommand())
	assert.Equal(t, []string{"a", "b"}, titles(cc.Commands()))
	assert.Nil(t, cc.GetRedoCommand())
	assert.Equal(t, []string{"undo:b", "redo:b"}, reflector.events)
}

func TestUndo_EmptyLog(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	assert.ErrorIs(t, cc.UndoCommand(), ErrNothingToUndo)
	assert.ErrorIs(t, cc.RedoCommand(), ErrNothingToRedo)
	assert.Nil(t, cc.GetUndoCommand())
	assert.Nil(t, cc.GetRedoCommand())
}

func TestUndo_NotUndoable(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	cmd := newCommand(&testObject{id: "a"}, "truncate")
	cmd.notUndoable = true
	cc.AddCommand(cmd, nil, false)

	assert.Nil(t, cc.GetUndoCommand())
	assert.ErrorIs(t, cc.UndoCommand(), ErrNotUndoable)
	assert.Len(t, cc.Commands(), 1)
}

func TestUndoRedo_BatchIsAtomic(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	reflector := &recordingReflector{}
	single := newCommand(&testObject{id: "a"}, "single")
	cc.AddCommand(single, reflector, false)
	batch := []Command{
		newCommand(&testObject{id: "b"}, "b1"),
		newCommand(&testObject{id: "b"}, "b2"),
		newCommand(&testObject{id: "c"}, "b3"),
	}
	cc.AddCommandBatch(batch, reflector, false)

	assert.Same(t, batch[0], cc.GetUndoCommand())
	assert.Equal(t, []string{"b1", "single"}, titles(cc.UndoCommands()))

	require.NoError(t, cc.UndoCommand())
	assert.Equal(t, []string{"single"}, titles(cc.Commands()))
	assert.Equal(t, []string{"undo:b3", "undo:b2", "undo:b1"}, reflector.events)
	assert.Same(t, batch[0], cc.GetRedoCommand())

	require.NoError(t, cc.UndoCommand())
	assert.Empty(t, cc.Commands())
	assert.Same(t, single, cc.GetRedoCommand())

	reflector.events = nil
	require.NoError(t, cc.RedoCommand())
	assert.Equal(t, []string{"single"}, titles(cc.Commands()))
	require.NoError(t, cc.RedoCommand())
	assert.Equal(t, []string{"single", "b1", "b2", "b3"}, titles(cc.Commands()))
	assert.Equal(t, []string{"redo:single", "redo:b1", "redo:b2", "redo:b3"}, reflector.events)
}

func TestCommandBlock_GroupsAddedCommands(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	cc.AddCommand(newCommand(&testObject{id: "a"}, "before"), nil, false)
	cc.StartCommandBlock()
	first := newCommand(&testObject{id: "a"}, "first")
	cc.AddCommand(first, nil, false)
	cc.AddCommand(newCommand(&testObject{id: "b"}, "second"), nil, false)
	cc.EndCommandBlock()

	assert.Same(t, first, cc.GetUndoCommand())
	require.NoError(t, cc.UndoCommand())
	assert.Equal(t, []string{"before"}, titles(cc.Commands()))
}

func TestAddCommand_ClearsRedoStack(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	cc.AddCommand(newCommand(&testObject{id: "a"}, "a"), nil, false)
	require.NoError(t, cc.UndoCommand())
	require.NotNil(t, cc.GetRedoCommand())

	cc.AddCommand(newCommand(&testObject{id: "b"}, "b"), nil, false)
	assert.Nil(t, cc.GetRedoCommand())
}

func TestRemoveCommand(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	listener := &recordingListener{}
	cc.AddListener(listener)
	a := newCommand(&testObject{id: "a"}, "a")
	cc.AddCommand(a, nil, false)
	cc.RemoveCommand(a)
	cc.RemoveCommand(newCommand(&testObject{id: "x"}, "unknown"))

	assert.Empty(t, cc.Commands())
	assert.False(t, cc.IsDirty())
	assert.Equal(t, []string{"a", "a"}, listener.changes)
}

func TestUpdateCommand(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	listener := &recordingListener{}
	cc.AddListener(listener)
	a := newCommand(&testObject{id: "a"}, "a")

	cc.UpdateCommand(a, nil)
	assert.Equal(t, []string{"a"}, titles(cc.Commands()))

	cc.UpdateCommand(a, nil)
	assert.Len(t, cc.Commands(), 1)
	assert.Equal(t, []string{"a", "a"}, listener.changes)
}

func TestResetChanges_UndoesEverything(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	listener := &recordingListener{}
	cc.AddListener(listener)
	reflector := &recordingReflector{}
	cc.AddCommand(newCommand(&testObject{id: "a"}, "a"), reflector, false)
	cc.AddCommand(newCommand(&testObject{id: "b"}, "b"), reflector, false)
	cc.UserParams()["x"] = 1

	require.NoError(t, cc.ResetChanges())
	assert.Equal(t, []string{"undo:b", "undo:a"}, reflector.events)
	assert.Empty(t, cc.Commands())
	assert.Nil(t, cc.GetRedoCommand())
	assert.Empty(t, cc.UserParams())
	assert.False(t, cc.IsDirty())
	assert.Equal(t, 1, listener.resets)
}

func TestResetChanges_StopsAtNonUndoable(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	listener := &recordingListener{}
	cc.AddListener(listener)
	reflector := &recordingReflector{}
	fixed := newCommand(&testObject{id: "a"}, "fixed")
	fixed.notUndoable = true
	cc.AddCommand(fixed, reflector, false)
	cc.AddCommand(newCommand(&testObject{id: "b"}, "b"), reflector, false)

	err := cc.ResetChanges()
	assert.ErrorIs(t, err, ErrNotUndoable)
	assert.Equal(t, []string{"undo:b"}, reflector.events)
	assert.Empty(t, cc.Commands())
	assert.False(t, cc.IsDirty())
	assert.Equal(t, 1, listener.resets)
}

func TestUndoStateListener_Notified(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	listener := &recordingListener{}
	cc.AddListener(listener)

	cc.AddCommand(newCommand(&testObject{id: "a"}, "a"), nil, false)
	require.NoError(t, cc.UndoCommand())

	assert.Equal(t, []string{"undo=a,redo=-", "undo=-,redo=a"}, listener.undoState)
}

func TestEditedObjects(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	a := &testObject{id: "a"}
	b := &testObject{id: "b"}
	cc.AddCommand(newCommand(a, "a1"), nil, false)
	cc.AddCommand(newCommand(b, "b1"), nil, false)
	cc.AddCommand(newCommand(a, "a2"), nil, false)

	assert.Equal(t, []Object{a, b}, cc.EditedObjects())
}

func TestUndoRedo_RebuildQueuesEagerly(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	obj := &testObject{id: "users"}
	cc.AddCommand(newCommand(obj, "create users"), nil, false)
	cc.AddCommand(newCommand(obj, "rename users"), nil, false)
	assert.False(t, cc.queuesValid)

	require.NoError(t, cc.UndoCommand())
	assert.True(t, cc.queuesValid)
	require.Len(t, cc.queues, 1)
	assert.Equal(t, []string{"create users"}, titles(cc.queues[0].Commands()))

	require.NoError(t, cc.RedoCommand())
	assert.True(t, cc.queuesValid)
	require.Len(t, cc.queues, 1)
	assert.Equal(t, []string{"create users", "rename users"}, titles(cc.queues[0].Commands()))
}
