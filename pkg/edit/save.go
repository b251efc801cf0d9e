package edit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type saveStep struct {
	live     *commandRecord
	absorbed []recordID
}

type savePlan struct {
	steps    []saveStep
	live     []*commandRecord
	snapshot []recordID
}

// planLocked snapshots the queues into the ordered list of live records a
// save will visit.
func (c *CommandContext) planLocked() (*savePlan, error) {
	queues := c.queuesLocked()
	plan := &savePlan{snapshot: append([]recordID(nil), c.commands...)}

	owners := make(map[recordID][]recordID)
	for _, id := range c.commands {
		live, err := c.resolve(c.records[id])
		if err != nil {
			return nil, err
		}
		owners[live.id] = append(owners[live.id], id)
	}

	seen := make(map[recordID]bool)
	for _, q := range queues {
		for _, rec := range q.records {
			live, err := c.resolve(rec)
			if err != nil {
				return nil, err
			}
			plan.steps = append(plan.steps, saveStep{live: live, absorbed: owners[live.id]})
			if !seen[live.id] {
				seen[live.id] = true
				plan.live = append(plan.live, live)
			}
		}
	}
	return plan, nil
}

// SaveChanges validates and persists every pending command.
//
// A record leaves the log as soon as all of its actions complete, so a
// failed save keeps only the unfinished work. Model updates, cache reset and
// OnSave notification happen whether or not the save succeeds.
func (c *CommandContext) SaveChanges(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "edit.CommandContext.SaveChanges")
	defer span.End()

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	log := c.logger.WithContext(ctx)

	if !c.provider.IsConnected(ctx) {
		return ErrNotConnected
	}

	c.logMu.Lock()
	plan, err := c.planLocked()
	c.logMu.Unlock()
	if err != nil {
		return err
	}

	for _, rec := range plan.live {
		if verr := rec.command.Validate(); verr != nil {
			metrics.SavesTotal.WithLabelValues("invalid").Inc()
			return &ValidationError{Command: rec.command, Err: verr}
		}
	}

	start := time.Now()
	var processed []Command
	done := make(map[recordID]bool)

	defer func() {
		c.finishSave(ctx, processed)
		status := "ok"
		switch {
		case errors.Is(err, ErrSaveCanceled):
			status = "canceled"
		case err != nil:
			status = "failed"
		}
		metrics.SavesTotal.WithLabelValues(status).Inc()
		metrics.SaveDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	for _, step := range plan.steps {
		if ctx.Err() != nil {
			log.Warn("save canceled")
			return ErrSaveCanceled
		}
		rec := step.live
		c.logMu.Lock()
		pending := !rec.executed
		if pending {
			rec.materialize()
		}
		actions := rec.persist
		c.logMu.Unlock()

		if pending && len(actions) > 0 {
			if perr := c.persistRecord(ctx, rec, actions); perr != nil {
				return perr
			}
		}

		c.logMu.Lock()
		rec.executed = true
		var removed []recordID
		for _, id := range step.absorbed {
			var ok bool
			if c.commands, ok = removeID(c.commands, id); ok {
				removed = append(removed, id)
			}
		}
		if len(removed) > 0 {
			c.forget(removed...)
			c.invalidateLocked()
		}
		c.logMu.Unlock()

		if !done[rec.id] {
			done[rec.id] = true
			processed = append(processed, rec.command)
		}
	}

	c.logMu.Lock()
	for _, id := range plan.snapshot {
		var ok bool
		if c.commands, ok = removeID(c.commands, id); ok {
			c.forget(id)
		}
	}
	c.userParams = make(UserParams)
	c.invalidateLocked()
	c.logMu.Unlock()

	log.WithField("commands", len(processed)).Info("changes saved")
	return nil
}

// persistRecord runs the actions of one live record in a fresh persistence
// context. It returns nil only when every action completed. Action outcomes
// are published under the log lock; the I/O itself runs outside it.
func (c *CommandContext) persistRecord(ctx context.Context, rec *commandRecord, actions []*persistInfo) (err error) {
	title := rec.command.Title()
	pc, err := c.provider.OpenContext(ctx, PurposeUserScript, "Execute "+title)
	if err != nil {
		return errors.Wrapf(err, "failed to open persist context for %q", title)
	}
	defer func() {
		if cerr := pc.Close(ctx); cerr != nil {
			c.logger.WithContext(ctx).WithError(cerr).Errorf("failed to close persist context for %q", title)
		}
	}()

	var blocking error
	for _, info := range actions {
		kind := info.action.Kind()
		if info.executed && kind == ActionNormal {
			continue
		}
		if blocking != nil && kind != ActionFinalizer {
			continue
		}
		if ctx.Err() != nil {
			if blocking != nil {
				return blocking
			}
			return ErrSaveCanceled
		}

		xerr := info.action.Execute(ctx, pc)
		c.recordOutcome(info, xerr)
		if xerr != nil {
			metrics.PersistActionsTotal.WithLabelValues(kind.String(), "failed").Inc()
			c.logger.WithContext(ctx).WithError(xerr).WithFields(map[string]any{
				"command": title,
				"action":  info.action.Title(),
				"kind":    kind.String(),
			}).Warn("persist action failed")
			if kind != ActionOptional && blocking == nil {
				blocking = &PersistError{Command: rec.command, Action: info.action.Title(), Kind: kind, Err: xerr}
			}
			continue
		}
		metrics.PersistActionsTotal.WithLabelValues(kind.String(), "ok").Inc()
	}
	return blocking
}

func (c *CommandContext) recordOutcome(info *persistInfo, err error) {
	c.logMu.Lock()
	defer c.logMu.Unlock()
	info.executed = err == nil
	info.err = err
}

func (c *CommandContext) finishSave(ctx context.Context, processed []Command) {
	for _, cmd := range processed {
		if err := cmd.UpdateModel(); err != nil {
			c.logger.WithContext(ctx).WithError(err).Errorf("failed to update model for %q", cmd.Title())
		}
	}

	c.logMu.Lock()
	c.clearUndidLocked()
	c.invalidateLocked()
	c.logMu.Unlock()

	c.fireSave()
	c.fireUndoState()
}

// ResetChanges undoes every batch and clears all pending state. When a batch
// cannot be undone the remaining log is discarded and ErrNotUndoable is
// returned. OnReset always fires.
func (c *CommandContext) ResetChanges() (err error) {
	defer func() {
		c.fireReset()
		c.fireUndoState()
	}()

	for {
		c.logMu.Lock()
		pending := len(c.commands)
		c.logMu.Unlock()
		if pending == 0 {
			break
		}
		if uerr := c.UndoCommand(); uerr != nil {
			if errors.Is(uerr, ErrNothingToUndo) {
				break
			}
			err = uerr
			c.logger.WithError(uerr).Warn("reset stopped at a command that cannot be undone")
			break
		}
	}

	c.logMu.Lock()
	discarded := c.commands
	c.commands = nil
	c.forget(discarded...)
	c.clearUndidLocked()
	c.userParams = make(UserParams)
	c.invalidateLocked()
	c.logMu.Unlock()

	metrics.UndoTotal.WithLabelValues("reset").Inc()
	return err
}
