package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/edit"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Statement describes one statement executed through a persistence context.
type Statement struct {
	Purpose     edit.Purpose
	Description string
	SQL         string
	Args        []any
	Duration    time.Duration
	Err         error
}

// StatementObserver is told about every statement a persistence context runs.
type StatementObserver interface {
	StatementExecuted(ctx context.Context, stmt Statement)
}

// PersistenceProvider opens edit persistence contexts on a database.
type PersistenceProvider struct {
	db            DB
	logger        ectologger.Logger
	transactional bool
	observers     []StatementObserver
}

type ProviderOption func(*PersistenceProvider)

// WithTransactions makes every persistence context a transaction that
// commits on close when no statement failed.
func WithTransactions(enabled bool) ProviderOption {
	return func(p *PersistenceProvider) {
		p.transactional = enabled
	}
}

func WithStatementObserver(observer StatementObserver) ProviderOption {
	return func(p *PersistenceProvider) {
		p.observers = append(p.observers, observer)
	}
}

func NewPersistenceProvider(db DB, logger ectologger.Logger, opts ...ProviderOption) *PersistenceProvider {
	p := &PersistenceProvider{db: db, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PersistenceProvider) DB() DB {
	return p.db
}

func (p *PersistenceProvider) IsConnected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.db.PingContext(ctx); err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("database ping failed")
		return false
	}
	return true
}

func (p *PersistenceProvider) OpenContext(ctx context.Context, purpose edit.Purpose, description string) (edit.PersistContext, error) {
	pc := &persistContext{provider: p, purpose: purpose, description: description}
	if p.transactional {
		_, tx, err := p.db.GetTx(ctx, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to begin persist transaction")
		}
		pc.tx = tx
		return pc, nil
	}
	conn, err := p.db.Connx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire persist connection")
	}
	pc.conn = conn
	return pc, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type persistContext struct {
	provider    *PersistenceProvider
	purpose     edit.Purpose
	description string
	conn        *sqlx.Conn
	tx          Tx
	failed      bool
}

func (c *persistContext) Exec(ctx context.Context, statement string, args ...any) error {
	ctx, span := tracing.StartSpan(ctx, "database.persistContext.Exec")
	defer span.End()

	var target execer = c.conn
	if c.tx != nil {
		target = c.tx
	}

	start := time.Now()
	_, err := target.ExecContext(ctx, statement, args...)
	elapsed := time.Since(start)
	if err != nil {
		c.failed = true
		span.RecordError(err)
	}

	stmt := Statement{
		Purpose:     c.purpose,
		Description: c.description,
		SQL:         statement,
		Args:        args,
		Duration:    elapsed,
		Err:         err,
	}
	for _, observer := range c.provider.observers {
		observer.StatementExecuted(ctx, stmt)
	}

	c.provider.logger.WithContext(ctx).WithFields(map[string]any{
		"purpose":   string(c.purpose),
		"statement": statement,
		"elapsed":   elapsed.String(),
	}).Debug("statement executed")

	return err
}

func (c *persistContext) Close(ctx context.Context) error {
	if c.tx != nil {
		if c.failed {
			return c.tx.Rollback(ctx)
		}
		return c.tx.Commit(ctx)
	}
	return c.conn.Close()
}
