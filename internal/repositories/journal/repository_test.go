package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/edit"
	"github.com/Ramsey-B/fern/pkg/models"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	db, err := database.Open(context.Background(), database.Config{
		Driver: database.DriverSQLite,
		Name:   filepath.Join(t.TempDir(), "journal.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{FolderPath: "../../../db/migrations"})
	require.NoError(t, migrations.Migrate(db))
	return NewRepository(db, logger)
}

func TestRepository_RecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	first := &models.JournalEntry{
		SessionID:   "s1",
		Purpose:     string(edit.PurposeUserScript),
		Description: "Execute create table people",
		Statement:   "CREATE TABLE people (id INTEGER)",
		ExecutedAt:  time.Now().Add(-time.Minute).UTC(),
	}
	require.NoError(t, repo.Record(ctx, first))
	failure := "table exists"
	require.NoError(t, repo.Record(ctx, &models.JournalEntry{
		SessionID: "s1",
		Purpose:   string(edit.PurposeUserScript),
		Statement: "INSERT INTO people (id) VALUES (?)",
		Args:      database.JSON[[]any]{Data: []any{float64(7)}},
		Error:     &failure,
	}))
	require.NoError(t, repo.Record(ctx, &models.JournalEntry{SessionID: "s2", Statement: "DROP TABLE x"}))

	entries, err := repo.ListBySession(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, "Execute create table people", entries[0].Description)
	assert.Nil(t, entries[0].Error)
	assert.Equal(t, []any{float64(7)}, entries[1].Args.Data)
	require.NotNil(t, entries[1].Error)
	assert.Equal(t, "table exists", *entries[1].Error)

	limited, err := repo.ListBySession(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, repo.DeleteBySession(ctx, "s1"))
	entries, err = repo.ListBySession(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestObserver_RecordsStatements(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)
	observer := repo.Observer("session-1")

	observer.StatementExecuted(ctx, database.Statement{
		Purpose:     edit.PurposeUserScript,
		Description: "Execute insert",
		SQL:         "INSERT INTO t VALUES (?)",
		Args:        []any{"a"},
		Duration:    1500 * time.Millisecond,
	})
	observer.StatementExecuted(ctx, database.Statement{
		Purpose: edit.PurposeUserScript,
		SQL:     "bogus",
		Err:     errors.New("syntax error"),
	})

	entries, err := repo.ListBySession(ctx, "session-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1500), entries[0].DurationMS)
	assert.Equal(t, []any{"a"}, entries[0].Args.Data)
	require.NotNil(t, entries[1].Error)
	assert.Equal(t, "syntax error", *entries[1].Error)
}
