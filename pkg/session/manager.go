package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/edit"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/schema"
)

// Journal supplies the statement observer recording a session's SQL.
type Journal interface {
	Observer(sessionID string) database.StatementObserver
}

type Config struct {
	// IdleTimeout closes sessions unused for this long. Zero disables eviction.
	IdleTimeout time.Duration
	// Transactional runs the actions of one command in a single transaction.
	Transactional bool
}

type Manager struct {
	db      database.DB
	logger  ectologger.Logger
	config  Config
	journal Journal
	locker  Locker
	emitter *events.Emitter

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

type Option func(*Manager)

func WithJournal(journal Journal) Option {
	return func(m *Manager) {
		m.journal = journal
	}
}

func WithLocker(locker Locker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

func WithEmitter(emitter *events.Emitter) Option {
	return func(m *Manager) {
		m.emitter = emitter
	}
}

func NewManager(db database.DB, config Config, logger ectologger.Logger, opts ...Option) *Manager {
	m := &Manager{
		db:       db,
		logger:   logger,
		config:   config,
		sessions: make(map[uuid.UUID]*Session),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts a new edit session against the manager's database.
func (m *Manager) Open(ctx context.Context, name string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("session name is required")
	}

	id := uuid.New()
	logger := m.logger.WithField("session_id", id.String())

	providerOpts := []database.ProviderOption{database.WithTransactions(m.config.Transactional)}
	if m.journal != nil {
		providerOpts = append(providerOpts, database.WithStatementObserver(m.journal.Observer(id.String())))
	}
	provider := database.NewPersistenceProvider(m.db, logger, providerOpts...)

	catalog := schema.NewCatalog(m.db.Flavor())
	s := &Session{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Catalog:   catalog,
		Reflector: schema.NewReflector(catalog),
		Context:   edit.NewCommandContext(provider, logger),
		logger:    logger,
		locker:    m.locker,
	}
	s.touch()
	if m.emitter != nil {
		s.listener = m.emitter.SessionListener(id.String(), name)
		s.Context.AddListener(s.listener)
		s.listener.Opened()
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	metrics.SessionsActive.Inc()

	logger.WithContext(ctx).WithField("name", name).Info("session opened")
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// List returns the open sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close discards the pending commands of a session and forgets it.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	m.closeSession(ctx, s, "closed")
	return nil
}

func (m *Manager) closeSession(ctx context.Context, s *Session, reason string) {
	s.markClosed()
	pending := len(s.Context.Commands())
	if s.listener != nil {
		s.listener.Closed()
		s.Context.RemoveListener(s.listener)
	}
	metrics.SessionsActive.Dec()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"reason":  reason,
		"pending": pending,
	})
	if pending > 0 {
		log.Warn("session closed with unsaved commands")
		return
	}
	log.Info("session closed")
}

// EvictIdle closes sessions idle for longer than the configured timeout and
// returns how many were closed.
func (m *Manager) EvictIdle(ctx context.Context, now time.Time) int {
	if m.config.IdleTimeout <= 0 {
		return 0
	}

	var evicted []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.closeIfIdle(now, m.config.IdleTimeout) {
			delete(m.sessions, id)
			evicted = append(evicted, s)
		}
	}
	m.mu.Unlock()

	for _, s := range evicted {
		m.closeSession(ctx, s, "idle")
	}
	return len(evicted)
}

// Start runs idle eviction until Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	if m.config.IdleTimeout <= 0 {
		return nil
	}
	interval := m.config.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case now := <-ticker.C:
				if n := m.EvictIdle(context.Background(), now); n > 0 {
					m.logger.WithField("evicted", n).Info("evicted idle sessions")
				}
			}
		}
	}()
	return nil
}

// Stop ends idle eviction and closes every session.
func (m *Manager) Stop(ctx context.Context) error {
	m.once.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.closeSession(ctx, s, "shutdown")
	}
	return nil
}
