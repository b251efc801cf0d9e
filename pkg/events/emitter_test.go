package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/edit"
	"github.com/Ramsey-B/fern/pkg/kafka"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*kafka.SessionEvent
	err    error
}

func (p *recordingPublisher) PublishSessionEvents(ctx context.Context, events []*kafka.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type object string

func (o object) ObjectID() string { return string(o) }

type command struct {
	obj edit.Object
}

func (c *command) Object() edit.Object                                          { return c.obj }
func (c *command) Title() string                                                { return "Rename table a to b" }
func (c *command) Undoable() bool                                               { return true }
func (c *command) Merge(prev edit.Command, params edit.UserParams) edit.Command { return c }
func (c *command) Validate() error                                              { return nil }
func (c *command) PersistActions() []edit.PersistAction                         { return nil }
func (c *command) UpdateModel() error                                           { return nil }

func TestSessionListener_EmitsLifecycle(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewEmitter(pub, Config{FlushInterval: 10 * time.Millisecond}, testLogger())

	l := emitter.SessionListener("s-1", "nightly")
	l.Opened()
	l.OnCommandChange(&command{obj: object("table:1")})
	l.OnSave()
	l.OnReset()
	l.Closed()
	emitter.Close()

	assert.Equal(t, []string{
		EventSessionOpened,
		EventCommandChanged,
		EventSessionSaved,
		EventSessionReset,
		EventSessionClosed,
	}, pub.types())

	changed := pub.events[1]
	assert.Equal(t, "s-1", changed.SessionID)
	assert.Equal(t, "nightly", changed.SessionName)
	assert.Equal(t, "Rename table a to b", changed.Command)
	assert.Equal(t, "table:1", changed.ObjectID)
}

func TestEmitter_FlushesOnInterval(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewEmitter(pub, Config{FlushInterval: 5 * time.Millisecond}, testLogger())
	defer emitter.Close()

	emitter.SessionListener("s-1", "").OnSave()

	require.Eventually(t, func() bool {
		return len(pub.types()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEmitter_PublishFailureIsLogged(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	emitter := NewEmitter(pub, Config{}, testLogger())

	emitter.SessionListener("s-1", "").OnSave()
	emitter.Close()

	assert.Empty(t, pub.types())
}

func TestEmitter_DropsAfterClose(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewEmitter(pub, Config{}, testLogger())
	emitter.Close()
	emitter.Close()

	emitter.SessionListener("s-1", "").OnSave()
	assert.Empty(t, pub.types())
}

var _ edit.Listener = (*SessionListener)(nil)
