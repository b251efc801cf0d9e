package edit

import (
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

// CommandContext is the edit transaction of one editing session.
//
// All mutating operations may be called from any goroutine. Merge and filter
// callbacks run while the log lock is held and must not call back into the
// context. Reflector and Listener callbacks run after the lock is released.
type CommandContext struct {
	provider PersistenceProvider
	logger   ectologger.Logger

	logMu       sync.Mutex
	records     map[recordID]*commandRecord
	nextID      recordID
	commands    []recordID
	undid       []recordID
	queues      []*CommandQueue
	queuesValid bool
	userParams  UserParams
	batchPrev   *recordID

	listenersMu sync.RWMutex
	listeners   []Listener

	saveMu sync.Mutex
}

// NewCommandContext returns an empty context that persists through provider.
func NewCommandContext(provider PersistenceProvider, logger ectologger.Logger) *CommandContext {
	return &CommandContext{
		provider:   provider,
		logger:     logger,
		records:    make(map[recordID]*commandRecord),
		userParams: make(UserParams),
	}
}

// AddCommand appends a command to the log. When execute is set the
// reflector's RedoCommand is applied once the log is updated.
func (c *CommandContext) AddCommand(cmd Command, reflector Reflector, execute bool) {
	c.logMu.Lock()
	rec := c.newRecord(cmd, reflector, false)
	if c.batchPrev != nil {
		rec.prevInBatch = *c.batchPrev
		*c.batchPrev = rec.id
	}
	c.commands = append(c.commands, rec.id)
	c.clearUndidLocked()
	c.invalidateLocked()
	c.logMu.Unlock()

	metrics.CommandsTotal.WithLabelValues("add").Inc()
	c.logger.WithField("command", cmd.Title()).Debug("command added")

	c.fireCommandChange(cmd)
	if execute && reflector != nil {
		reflector.RedoCommand(cmd)
	}
	c.fireUndoState()
}

// AddCommandBatch appends several commands as one undo unit.
func (c *CommandContext) AddCommandBatch(cmds []Command, reflector Reflector, execute bool) {
	if len(cmds) == 0 {
		return
	}
	c.logMu.Lock()
	var prev recordID
	for _, cmd := range cmds {
		rec := c.newRecord(cmd, reflector, false)
		rec.prevInBatch = prev
		prev = rec.id
		c.commands = append(c.commands, rec.id)
	}
	c.clearUndidLocked()
	c.invalidateLocked()
	c.logMu.Unlock()

	metrics.CommandsTotal.WithLabelValues("add").Add(float64(len(cmds)))

	for _, cmd := range cmds {
		c.fireCommandChange(cmd)
	}
	if execute && reflector != nil {
		for _, cmd := range cmds {
			reflector.RedoCommand(cmd)
		}
	}
	c.fireUndoState()
}

// StartCommandBlock opens a batch: commands added until EndCommandBlock are
// undone and redone together. Blocks do not nest.
func (c *CommandContext) StartCommandBlock() {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	var head recordID
	c.batchPrev = &head
}

// EndCommandBlock closes the batch opened by StartCommandBlock.
func (c *CommandContext) EndCommandBlock() {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	c.batchPrev = nil
}

// RemoveCommand drops the first log entry holding cmd. Unknown commands are
// ignored.
func (c *CommandContext) RemoveCommand(cmd Command) {
	c.logMu.Lock()
	rec, i := c.findRecord(cmd)
	if rec == nil {
		c.logMu.Unlock()
		return
	}
	c.commands = append(c.commands[:i:i], c.commands[i+1:]...)
	c.forget(rec.id)
	c.clearUndidLocked()
	c.invalidateLocked()
	c.logMu.Unlock()

	metrics.CommandsTotal.WithLabelValues("remove").Inc()
	c.fireCommandChange(cmd)
	c.fireUndoState()
}

// UpdateCommand marks a logged command as changed, or adds it when it is
// not in the log.
func (c *CommandContext) UpdateCommand(cmd Command, reflector Reflector) {
	c.logMu.Lock()
	rec, _ := c.findRecord(cmd)
	if rec == nil {
		c.logMu.Unlock()
		c.AddCommand(cmd, reflector, false)
		return
	}
	c.clearUndidLocked()
	c.invalidateLocked()
	c.logMu.Unlock()

	metrics.CommandsTotal.WithLabelValues("update").Inc()
	c.fireCommandChange(cmd)
	c.fireUndoState()
}

// IsDirty reports whether any queue has pending commands.
func (c *CommandContext) IsDirty() bool {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	return len(c.queuesLocked()) > 0
}

// CommandQueues returns the merged queues in first-touch order.
func (c *CommandContext) CommandQueues() []*CommandQueue {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	return append([]*CommandQueue(nil), c.queuesLocked()...)
}

// FinalCommands returns the distinct live commands that a save would
// execute, in queue order.
func (c *CommandContext) FinalCommands() []Command {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	var out []Command
	seen := make(map[recordID]bool)
	for _, q := range c.queuesLocked() {
		for _, rec := range q.records {
			live, err := c.resolve(rec)
			if err != nil {
				c.logger.WithError(err).Error("failed to resolve merged command")
				continue
			}
			if seen[live.id] {
				continue
			}
			seen[live.id] = true
			out = append(out, live.command)
		}
	}
	return out
}

// EditedObjects returns the objects that have pending commands.
func (c *CommandContext) EditedObjects() []Object {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	queues := c.queuesLocked()
	out := make([]Object, 0, len(queues))
	for _, q := range queues {
		out = append(out, q.object)
	}
	return out
}

// UserParams returns the map shared by Merge calls.
func (c *CommandContext) UserParams() UserParams {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	return c.userParams
}

// Commands returns the raw log in insertion order.
func (c *CommandContext) Commands() []Command {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	out := make([]Command, 0, len(c.commands))
	for _, id := range c.commands {
		out = append(out, c.records[id].command)
	}
	return out
}

// ActionFailure describes a persist action that failed during the last save
// and has not been retried successfully.
type ActionFailure struct {
	Command Command
	Action  string
	Kind    ActionKind
	Err     error
}

// PersistFailures lists the recorded action failures of pending commands.
func (c *CommandContext) PersistFailures() []ActionFailure {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	var out []ActionFailure
	seen := make(map[recordID]bool)
	for _, q := range c.queuesLocked() {
		for _, rec := range q.records {
			live, err := c.resolve(rec)
			if err != nil || seen[live.id] {
				continue
			}
			seen[live.id] = true
			for _, info := range live.persist {
				if info.err == nil {
					continue
				}
				out = append(out, ActionFailure{
					Command: live.command,
					Action:  info.action.Title(),
					Kind:    info.action.Kind(),
					Err:     info.err,
				})
			}
		}
	}
	return out
}

func (c *CommandContext) AddListener(l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *CommandContext) RemoveListener(l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	for i, existing := range c.listeners {
		if existing == l {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return
		}
	}
}

func (c *CommandContext) snapshotListeners() []Listener {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	return append([]Listener(nil), c.listeners...)
}

func (c *CommandContext) fireCommandChange(cmd Command) {
	for _, l := range c.snapshotListeners() {
		l.OnCommandChange(cmd)
	}
}

func (c *CommandContext) fireSave() {
	for _, l := range c.snapshotListeners() {
		l.OnSave()
	}
}

func (c *CommandContext) fireReset() {
	for _, l := range c.snapshotListeners() {
		l.OnReset()
	}
}

func (c *CommandContext) fireUndoState() {
	listeners := c.snapshotListeners()
	if len(listeners) == 0 {
		return
	}
	undo, redo := c.GetUndoCommand(), c.GetRedoCommand()
	for _, l := range listeners {
		if ul, ok := l.(UndoStateListener); ok {
			ul.OnUndoStateChange(undo, redo)
		}
	}
}
