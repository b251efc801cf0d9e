package edit

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
)

type recordID int

const noRecord recordID = 0

type persistInfo struct {
	action   PersistAction
	executed bool
	err      error
}

// commandRecord is the bookkeeping entry for one command, either taken from
// the log or synthesized by a merge. Links between records are arena ids.
type commandRecord struct {
	id          recordID
	command     Command
	reflector   Reflector
	synthetic   bool
	mergedBy    recordID
	prevInBatch recordID

	persist      []*persistInfo
	materialized bool
	executed     bool

	// constituents identifies the log records folded into a synthetic
	// record so its persist state can survive a queue rebuild.
	constituents string
}

func (r *commandRecord) materialize() {
	if r.materialized {
		return
	}
	r.materialized = true
	for _, action := range r.command.PersistActions() {
		if action == nil {
			continue
		}
		r.persist = append(r.persist, &persistInfo{action: action})
	}
}

func (r *commandRecord) started() bool {
	if r.executed {
		return true
	}
	for _, info := range r.persist {
		if info.executed || info.err != nil {
			return true
		}
	}
	return false
}

func (c *CommandContext) newRecord(cmd Command, reflector Reflector, synthetic bool) *commandRecord {
	c.nextID++
	rec := &commandRecord{
		id:        c.nextID,
		command:   cmd,
		reflector: reflector,
		synthetic: synthetic,
	}
	c.records[rec.id] = rec
	return rec
}

// resolve follows the merged-by chain of a record to its live record.
func (c *CommandContext) resolve(rec *commandRecord) (*commandRecord, error) {
	for steps := 0; steps <= len(c.records); steps++ {
		if rec.mergedBy == noRecord {
			return rec, nil
		}
		next, ok := c.records[rec.mergedBy]
		if !ok {
			return rec, nil
		}
		rec = next
	}
	return nil, ErrMergeCycle
}

func (c *CommandContext) findRecord(cmd Command) (*commandRecord, int) {
	for i, id := range c.commands {
		rec := c.records[id]
		if sameCommand(rec.command, cmd) {
			return rec, i
		}
	}
	return nil, -1
}

// forget drops records from the arena once they are in neither the log nor
// the undo stack.
func (c *CommandContext) forget(ids ...recordID) {
	for _, id := range ids {
		delete(c.records, id)
	}
	if len(c.commands) == 0 && len(c.undid) == 0 {
		c.records = make(map[recordID]*commandRecord)
	}
}

func (c *CommandContext) clearUndidLocked() {
	if len(c.undid) == 0 {
		return
	}
	undid := c.undid
	c.undid = nil
	c.forget(undid...)
}

func removeID(ids []recordID, id recordID) ([]recordID, bool) {
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == id {
			return append(ids[:i:i], ids[i+1:]...), true
		}
	}
	return ids, false
}

func constituentKey(ids []recordID) string {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}

// sameCommand reports whether a and b are the same command instance.
func sameCommand(a, b Command) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func objectKey(obj Object) string {
	if obj == nil {
		return ""
	}
	return obj.ObjectID()
}
