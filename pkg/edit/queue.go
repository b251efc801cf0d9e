package edit

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

// CommandQueue holds the merged, persistable commands of one object.
type CommandQueue struct {
	owner     *CommandContext
	object    Object
	parent    *CommandQueue
	subQueues []*CommandQueue

	source  []*commandRecord
	records []*commandRecord
}

func (q *CommandQueue) Object() Object {
	return q.object
}

func (q *CommandQueue) Parent() *CommandQueue {
	return q.parent
}

func (q *CommandQueue) SubQueues() []*CommandQueue {
	return append([]*CommandQueue(nil), q.subQueues...)
}

// Commands returns the merged commands of the queue in persist order.
func (q *CommandQueue) Commands() []Command {
	out := make([]Command, 0, len(q.records))
	for _, rec := range q.records {
		out = append(out, rec.command)
	}
	return out
}

func (q *CommandQueue) Len() int {
	return len(q.records)
}

// Add appends a command that has no log entry of its own. It is meant for
// queue filters that need to inject extra work.
func (q *CommandQueue) Add(cmd Command) {
	rec := q.owner.newRecord(cmd, nil, true)
	q.records = append(q.records, rec)
}

// Remove drops a command from the queue. The log entry, if any, stays.
func (q *CommandQueue) Remove(cmd Command) bool {
	for i, rec := range q.records {
		if sameCommand(rec.command, cmd) {
			q.records = append(q.records[:i:i], q.records[i+1:]...)
			return true
		}
	}
	return false
}

// Retain keeps only the commands for which keep returns true.
func (q *CommandQueue) Retain(keep func(Command) bool) {
	kept := q.records[:0:0]
	for _, rec := range q.records {
		if keep(rec.command) {
			kept = append(kept, rec)
		}
	}
	q.records = kept
}

// SortStable reorders the queue, keeping equal commands in log order.
func (q *CommandQueue) SortStable(less func(a, b Command) bool) {
	sort.SliceStable(q.records, func(i, j int) bool {
		return less(q.records[i].command, q.records[j].command)
	})
}

func findQueue(queues []*CommandQueue, obj Object) *CommandQueue {
	key := objectKey(obj)
	for _, q := range queues {
		if objectKey(q.object) == key {
			return q
		}
	}
	return nil
}

func pruneQueues(queues []*CommandQueue) []*CommandQueue {
	kept := queues[:0]
	for _, q := range queues {
		if len(q.records) > 0 {
			kept = append(kept, q)
		}
	}
	for _, q := range kept {
		subs := q.subQueues[:0]
		for _, sub := range q.subQueues {
			if len(sub.records) > 0 {
				subs = append(subs, sub)
			}
		}
		q.subQueues = subs
	}
	return kept
}

func (c *CommandContext) invalidateLocked() {
	c.queues = nil
	c.queuesValid = false
}

// queuesLocked returns the cached queues, rebuilding them from the log when
// the cache was invalidated. Callers hold logMu.
func (c *CommandContext) queuesLocked() []*CommandQueue {
	if c.queuesValid {
		return c.queues
	}
	metrics.QueueRebuildsTotal.Inc()

	previous := c.dropSyntheticLocked()

	var queues []*CommandQueue
	var aggregator *commandRecord
	for _, id := range c.commands {
		rec := c.records[id]
		rec.mergedBy = noRecord
		if _, ok := rec.command.(Aggregator); ok {
			aggregator = rec
		}
		obj := rec.command.Object()
		q := findQueue(queues, obj)
		if q == nil {
			q = &CommandQueue{owner: c, object: obj}
			if nested, ok := obj.(NestedObject); ok && nested.ParentObject() != nil {
				if parent := findQueue(queues, nested.ParentObject()); parent != nil {
					q.parent = parent
					parent.subQueues = append(parent.subQueues, q)
				}
			}
			queues = append(queues, q)
		}
		q.source = append(q.source, rec)
	}

	for _, q := range queues {
		c.mergeQueue(q)
	}
	queues = pruneQueues(queues)

	for _, q := range queues {
		if filter, ok := q.object.(QueueFilter); ok {
			filter.FilterCommands(q)
		}
	}
	queues = pruneQueues(queues)

	if aggregator != nil && isLive(queues, aggregator) {
		c.aggregate(queues, aggregator)
	}

	c.carrySyntheticState(queues, previous)

	c.queues = queues
	c.queuesValid = true
	return queues
}

// dropSyntheticLocked removes the synthetic records of the previous build and
// returns those that already started persisting, keyed by constituents.
func (c *CommandContext) dropSyntheticLocked() map[string]*commandRecord {
	previous := make(map[string]*commandRecord)
	for id, rec := range c.records {
		if !rec.synthetic {
			continue
		}
		if rec.constituents != "" && rec.started() {
			previous[rec.constituents] = rec
		}
		delete(c.records, id)
	}
	return previous
}

func (c *CommandContext) carrySyntheticState(queues []*CommandQueue, previous map[string]*commandRecord) {
	members := make(map[recordID][]recordID)
	for _, q := range queues {
		for _, rec := range q.source {
			live, err := c.resolve(rec)
			if err != nil || !live.synthetic {
				continue
			}
			members[live.id] = append(members[live.id], rec.id)
		}
	}
	for id, ids := range members {
		rec := c.records[id]
		rec.constituents = constituentKey(ids)
		if old, ok := previous[rec.constituents]; ok {
			rec.persist = old.persist
			rec.materialized = old.materialized
			rec.executed = old.executed
		}
	}
}

type synthesis struct {
	command Command
	record  *commandRecord
}

// mergeQueue coalesces the source records of a queue into its persistable
// records.
func (c *CommandContext) mergeQueue(q *CommandQueue) {
	var cache []synthesis
	merged := make([]*commandRecord, 0, len(q.source))

	for i, current := range q.source {
		if len(merged) == 0 {
			result := current.command.Merge(nil, c.userParams)
			switch {
			case result == nil:
				continue
			case sameCommand(result, current.command):
				merged = append(merged, current)
			default:
				rep := c.representative(q, i, result, &cache)
				current.mergedBy = rep.id
				merged = appendOnce(merged, rep)
			}
			continue
		}

		var (
			result    Command
			candidate *commandRecord
			canceled  bool
			matched   = -1
		)
		for k := len(merged) - 1; k >= 0; k-- {
			candidate = merged[k]
			result = current.command.Merge(candidate.command, c.userParams)
			if result == nil {
				merged = append(merged[:k:k], merged[k+1:]...)
				canceled = true
				continue
			}
			if !sameCommand(result, current.command) {
				matched = k
				break
			}
		}
		if canceled {
			continue
		}
		if matched < 0 {
			merged = append(merged, current)
			continue
		}
		if sameCommand(result, candidate.command) {
			current.mergedBy = candidate.id
			continue
		}

		rep := c.representative(q, i, result, &cache)
		current.mergedBy = rep.id
		if !rep.synthetic {
			merged = appendOnce(merged, rep)
			continue
		}
		candidate.mergedBy = rep.id
		if containsRecord(merged, rep) {
			merged = append(merged[:matched:matched], merged[matched+1:]...)
		} else {
			merged[matched] = rep
		}
	}
	q.records = merged
}

// representative finds the record standing for a merge result: a cached
// synthesis of this pass, an earlier log record, or a new synthetic record.
func (c *CommandContext) representative(q *CommandQueue, upto int, result Command, cache *[]synthesis) *commandRecord {
	for _, s := range *cache {
		if sameCommand(s.command, result) {
			return s.record
		}
	}
	var rep *commandRecord
	for k := upto; k >= 0; k-- {
		if sameCommand(q.source[k].command, result) {
			rep = q.source[k]
			break
		}
	}
	if rep == nil {
		rep = c.newRecord(result, nil, true)
	}
	*cache = append(*cache, synthesis{command: result, record: rep})
	return rep
}

func (c *CommandContext) aggregate(queues []*CommandQueue, aggregator *commandRecord) {
	agg := aggregator.command.(Aggregator)
	agg.ResetAggregatedCommands()
	for _, q := range queues {
		for _, rec := range q.records {
			if rec == aggregator || rec.mergedBy != noRecord {
				continue
			}
			if _, ok := rec.command.(Aggregator); ok {
				continue
			}
			if agg.AggregateCommand(rec.command) {
				rec.mergedBy = aggregator.id
			}
		}
	}
}

func isLive(queues []*CommandQueue, rec *commandRecord) bool {
	if rec.mergedBy != noRecord {
		return false
	}
	for _, q := range queues {
		if containsRecord(q.records, rec) {
			return true
		}
	}
	return false
}

func containsRecord(records []*commandRecord, rec *commandRecord) bool {
	for _, r := range records {
		if r == rec {
			return true
		}
	}
	return false
}

func appendOnce(records []*commandRecord, rec *commandRecord) []*commandRecord {
	if containsRecord(records, rec) {
		return records
	}
	return append(records, rec)
}
