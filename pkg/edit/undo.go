package edit

import (
	"github.com/Ramsey-B/fern/pkg/metrics"
)

// batchAt walks back from the log entry at end across its batch and
// returns the batch records newest first. Only contiguous log entries are
// treated as one batch.
func (c *CommandContext) batchAt(end int) []*commandRecord {
	if end < 0 {
		return nil
	}
	rec := c.records[c.commands[end]]
	batch := []*commandRecord{rec}
	for i := end - 1; i >= 0 && rec.prevInBatch != noRecord; i-- {
		if c.commands[i] != rec.prevInBatch {
			break
		}
		rec = c.records[c.commands[i]]
		batch = append(batch, rec)
	}
	return batch
}

// GetUndoCommand returns the first command of the newest batch, or nil when
// there is nothing undoable.
func (c *CommandContext) GetUndoCommand() Command {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	batch := c.batchAt(len(c.commands) - 1)
	if len(batch) == 0 {
		return nil
	}
	head := batch[len(batch)-1]
	if !head.command.Undoable() {
		return nil
	}
	return head.command
}

// GetRedoCommand returns the first command of the most recently undone
// batch, or nil.
func (c *CommandContext) GetRedoCommand() Command {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	batch := c.redoBatchLocked()
	if len(batch) == 0 {
		return nil
	}
	head := batch[0]
	if !head.command.Undoable() {
		return nil
	}
	return head.command
}

// UndoCommands returns the representatives of every undoable batch, newest
// first, stopping at the first batch that cannot be undone.
func (c *CommandContext) UndoCommands() []Command {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	var out []Command
	for end := len(c.commands) - 1; end >= 0; {
		batch := c.batchAt(end)
		head := batch[len(batch)-1]
		if !head.command.Undoable() {
			break
		}
		out = append(out, head.command)
		end -= len(batch)
	}
	return out
}

// redoBatchLocked returns the top undone batch in original log order.
func (c *CommandContext) redoBatchLocked() []*commandRecord {
	var batch []*commandRecord
	for i := len(c.undid) - 1; i >= 0; i-- {
		rec := c.records[c.undid[i]]
		if len(batch) > 0 && rec.prevInBatch != batch[len(batch)-1].id {
			break
		}
		batch = append(batch, rec)
	}
	return batch
}

// UndoCommand reverts the newest batch. Reflectors are called newest first.
func (c *CommandContext) UndoCommand() error {
	c.logMu.Lock()
	if len(c.commands) == 0 {
		c.logMu.Unlock()
		return ErrNothingToUndo
	}
	batch := c.batchAt(len(c.commands) - 1)
	if !batch[len(batch)-1].command.Undoable() || !batch[0].command.Undoable() {
		c.logMu.Unlock()
		return ErrNotUndoable
	}
	c.commands = c.commands[:len(c.commands)-len(batch)]
	for _, rec := range batch {
		c.undid = append(c.undid, rec.id)
	}
	c.invalidateLocked()
	c.queuesLocked()
	c.logMu.Unlock()

	for _, rec := range batch {
		if rec.reflector != nil {
			rec.reflector.UndoCommand(rec.command)
		}
	}
	metrics.UndoTotal.WithLabelValues("undo").Inc()
	c.logger.WithField("command", batch[len(batch)-1].command.Title()).Debug("command undone")
	c.fireUndoState()
	return nil
}

// RedoCommand re-applies the most recently undone batch in its original
// order.
func (c *CommandContext) RedoCommand() error {
	c.logMu.Lock()
	batch := c.redoBatchLocked()
	if len(batch) == 0 {
		c.logMu.Unlock()
		return ErrNothingToRedo
	}
	c.undid = c.undid[:len(c.undid)-len(batch)]
	for _, rec := range batch {
		c.commands = append(c.commands, rec.id)
	}
	c.invalidateLocked()
	c.queuesLocked()
	c.logMu.Unlock()

	for _, rec := range batch {
		if rec.reflector != nil {
			rec.reflector.RedoCommand(rec.command)
		}
	}
	metrics.UndoTotal.WithLabelValues("redo").Inc()
	c.logger.WithField("command", batch[0].command.Title()).Debug("command redone")
	c.fireUndoState()
	return nil
}
