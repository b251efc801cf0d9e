package journal

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const journalTable = "edit_journal"

var journalColumns = []string{
	"id", "session_id", "purpose", "description", "statement", "args", "duration_ms", "error", "executed_at",
}

// Repository stores the statements executed by session saves.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Record inserts an entry, filling in the id and timestamp when unset.
func (r *Repository) Record(ctx context.Context, entry *models.JournalEntry) error {
	ctx, span := tracing.StartSpan(ctx, "journal.Repository.Record")
	defer span.End()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now().UTC()
	}
	if entry.Args.Data == nil {
		entry.Args.Data = []any{}
	}

	ib := database.NewInsertBuilder(r.db)
	ib.InsertInto(journalTable).
		Cols(journalColumns...).
		Values(entry.ID, entry.SessionID, entry.Purpose, entry.Description, entry.Statement,
			entry.Args, entry.DurationMS, entry.Error, entry.ExecutedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"session_id": entry.SessionID,
		}).Error("failed to record journal entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record journal entry")
	}
	return nil
}

// ListBySession returns the entries of a session oldest first. A limit of
// zero returns every entry.
func (r *Repository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.JournalEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "journal.Repository.ListBySession")
	defer span.End()

	sb := database.NewStruct(new(models.JournalEntry), r.db).SelectFrom(journalTable)
	sb.Where(sb.Equal("session_id", sessionID))
	sb.OrderBy("executed_at").Asc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	entries := []models.JournalEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"session_id": sessionID,
		}).Error("failed to list journal entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list journal entries")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entry_count": len(entries),
	}).Debugf("Listed %s", journalTable)
	return entries, nil
}

// DeleteBySession removes the journal of a closed session.
func (r *Repository) DeleteBySession(ctx context.Context, sessionID string) error {
	ctx, span := tracing.StartSpan(ctx, "journal.Repository.DeleteBySession")
	defer span.End()

	db := database.NewDeleteBuilder(r.db)
	db.DeleteFrom(journalTable).Where(db.Equal("session_id", sessionID))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"session_id": sessionID,
		}).Error("failed to delete journal entries")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete journal entries")
	}
	return nil
}

// Observer returns a statement observer that journals into this repository
// under sessionID. Recording failures are logged and never fail a save.
func (r *Repository) Observer(sessionID string) database.StatementObserver {
	return &observer{repo: r, sessionID: sessionID}
}

type observer struct {
	repo      *Repository
	sessionID string
}

func (o *observer) StatementExecuted(ctx context.Context, stmt database.Statement) {
	status := "ok"
	entry := &models.JournalEntry{
		SessionID:   o.sessionID,
		Purpose:     string(stmt.Purpose),
		Description: stmt.Description,
		Statement:   stmt.SQL,
		Args:        database.JSON[[]any]{Data: stmt.Args},
		DurationMS:  stmt.Duration.Milliseconds(),
	}
	if stmt.Err != nil {
		status = "failed"
		msg := stmt.Err.Error()
		entry.Error = &msg
	}
	metrics.JournalStatementsTotal.WithLabelValues(status).Inc()

	// the journal write must not ride on a transaction the statement may roll back
	if err := o.repo.Record(context.WithoutCancel(ctx), entry); err != nil {
		o.repo.logger.WithContext(ctx).WithError(err).Warn("journal entry dropped")
	}
}
