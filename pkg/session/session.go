// Package session keeps the open edit sessions of the service. Each session
// owns a schema catalog and the CommandContext collecting its pending edits.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/edit"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSaveInProgress  = errors.New("another save of this session is in progress")
	ErrSessionClosed   = errors.New("session is closed")
)

// Locker serialises saves of one session across service replicas.
type Locker interface {
	Hold(ctx context.Context, key string) (func(context.Context) error, error)
}

type Session struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time

	Catalog   *schema.Catalog
	Reflector *schema.Reflector
	Context   *edit.CommandContext

	logger   ectologger.Logger
	locker   Locker
	listener *events.SessionListener
	lastUsed atomic.Int64

	mu     sync.Mutex
	active int
	closed bool
}

// SaveLockKey is the lock held while the session saves.
func SaveLockKey(id uuid.UUID) string {
	return "save:" + id.String()
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// LastUsed is the time of the last request that used the session.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// closeIfIdle marks the session closed when no request holds it and it was
// last used more than timeout before now.
func (s *Session) closeIfIdle(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.active > 0 || now.Sub(s.LastUsed()) <= timeout {
		return false
	}
	s.closed = true
	return true
}

func (s *Session) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Edit applies fn to the session while holding it active.
func (s *Session) Edit(fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.active++
	s.mu.Unlock()

	defer func() {
		s.touch()
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()
	return fn()
}

// Save persists the pending commands of the session under its save lock.
func (s *Session) Save(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "session.Session.Save")
	defer span.End()

	return s.Edit(func() error {
		if s.locker != nil {
			release, err := s.locker.Hold(ctx, SaveLockKey(s.ID))
			if errors.Is(err, redis.ErrLockNotAcquired) {
				return ErrSaveInProgress
			}
			if err != nil {
				return errors.Wrap(err, "failed to acquire save lock")
			}
			defer func() {
				if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
					s.logger.WithContext(ctx).WithError(rerr).Warn("failed to release save lock")
				}
			}()
		}
		return s.Context.SaveChanges(ctx)
	})
}

// Undo reverts the most recent batch of commands.
func (s *Session) Undo() error {
	return s.Edit(s.Context.UndoCommand)
}

// Redo re-applies the most recently undone batch.
func (s *Session) Redo() error {
	return s.Edit(s.Context.RedoCommand)
}

// Reset discards every pending command.
func (s *Session) Reset() error {
	return s.Edit(s.Context.ResetChanges)
}

// Execute adds cmd to the log and applies it to the catalog.
func (s *Session) Execute(cmd edit.Command) error {
	return s.Edit(func() error {
		s.Context.AddCommand(cmd, s.Reflector, true)
		return nil
	})
}

// ExecuteBatch adds cmds as one undo step.
func (s *Session) ExecuteBatch(cmds ...edit.Command) error {
	return s.Edit(func() error {
		s.Context.AddCommandBatch(cmds, s.Reflector, true)
		return nil
	})
}
