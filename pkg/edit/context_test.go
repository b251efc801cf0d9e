package edit

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandContext_ConcurrentEditsAndSave(t *testing.T) {
	provider := &fakeProvider{}
	cc := NewCommandContext(provider, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				obj := &testObject{id: fmt.Sprintf("obj-%d", i)}
				cc.AddCommand(newCommand(obj, fmt.Sprintf("%d-%d", i, j), newAction("stmt", ActionNormal)), nil, false)
				cc.IsDirty()
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, cc.Commands(), 200)
	require.NoError(t, cc.SaveChanges(context.Background()))
	assert.Len(t, provider.statements, 200)
	assert.False(t, cc.IsDirty())
}

func TestCommandContext_RemoveListener(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	listener := &recordingListener{}
	cc.AddListener(listener)
	cc.RemoveListener(listener)

	cc.AddCommand(newCommand(&testObject{id: "a"}, "a"), nil, false)
	assert.Empty(t, listener.changes)
}

func TestSameCommand(t *testing.T) {
	a := newCommand(&testObject{id: "a"}, "a")
	b := newCommand(&testObject{id: "a"}, "a")

	assert.True(t, sameCommand(a, a))
	assert.False(t, sameCommand(a, b))
	assert.False(t, sameCommand(a, nil))
	assert.True(t, sameCommand(nil, nil))
}

func TestResolve_DetectsCycle(t *testing.T) {
	cc := NewCommandContext(&fakeProvider{}, testLogger())
	first := cc.newRecord(newCommand(&testObject{id: "a"}, "a"), nil, false)
	second := cc.newRecord(newCommand(&testObject{id: "a"}, "b"), nil, false)
	first.mergedBy = second.id
	second.mergedBy = first.id

	_, err := cc.resolve(first)
	assert.ErrorIs(t, err, ErrMergeCycle)
}
