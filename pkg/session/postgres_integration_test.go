//go:build integration

package session

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Ramsey-B/fern/internal/repositories/journal"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/schema"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) (string, string) {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)
	return host, mapped.Port()
}

func TestPostgres_SessionSaveWithJournalAndLock(t *testing.T) {
	ctx := context.Background()

	pgHost, pgPort := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "fern",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")
	redisHost, redisPort := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, "6379")

	logger := testLogger()
	db, err := database.Open(ctx, database.Config{
		Driver:   database.DriverPostgres,
		Host:     pgHost,
		Port:     pgPort,
		User:     "user",
		Password: "password",
		Name:     "fern",
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrationService(logger, &database.MigrationConfig{
		FolderPath:   "../../db/migrations",
		AutoRollback: true,
	}).Migrate(db))

	port, err := strconv.Atoi(redisPort)
	require.NoError(t, err)
	client, err := redis.NewClient(ctx, redis.Config{Host: redisHost, Port: port}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo := journal.NewRepository(db, logger)
	locker := redis.NewLocker(client, "", time.Minute, 0)
	m := NewManager(db, Config{Transactional: true}, logger, WithJournal(repo), WithLocker(locker))

	s, err := m.Open(ctx, "postgres")
	require.NoError(t, err)

	table := s.Catalog.NewTable("public", "gadgets",
		schema.ColumnSpec{Name: "id", Type: "integer", PrimaryKey: true},
		schema.ColumnSpec{Name: "label", Type: "text", Nullable: true, Comment: "display label"},
	)
	require.NoError(t, s.Execute(schema.NewCreateTable(table)))
	row := table.NewRow(map[string]any{"id": 1, "label": "spring"})
	require.NoError(t, s.Execute(schema.NewInsertRow(row)))
	require.NoError(t, s.Save(ctx))

	require.NoError(t, s.Execute(schema.NewUpdateRow(row, map[string]any{"label": "coil"})))
	require.NoError(t, s.Execute(schema.NewRenameTable(table, "widgets")))

	release, err := locker.Hold(ctx, SaveLockKey(s.ID))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Save(ctx), ErrSaveInProgress)
	require.NoError(t, release(ctx))
	require.NoError(t, s.Save(ctx))

	var label string
	require.NoError(t, db.GetContext(ctx, &label, "SELECT label FROM public.widgets WHERE id = 1"))
	assert.Equal(t, "coil", label)

	var comment string
	require.NoError(t, db.GetContext(ctx, &comment,
		"SELECT col_description('public.widgets'::regclass, 2)"))
	assert.Equal(t, "display label", comment)

	entries, err := repo.ListBySession(ctx, s.ID.String(), 20)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 5)
}
