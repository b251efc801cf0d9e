package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/edit"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func openSQLite(t *testing.T) DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		Name:   filepath.Join(t.TempDir(), "fern.db"),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type recordingObserver struct {
	mu         sync.Mutex
	statements []Statement
}

func (o *recordingObserver) StatementExecuted(ctx context.Context, stmt Statement) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statements = append(o.statements, stmt)
}

func TestFlavorFor(t *testing.T) {
	assert.Equal(t, sqlbuilder.PostgreSQL, FlavorFor(DriverPostgres))
	assert.Equal(t, sqlbuilder.PostgreSQL, FlavorFor(DriverPgx))
	assert.Equal(t, sqlbuilder.MySQL, FlavorFor(DriverMySQL))
	assert.Equal(t, sqlbuilder.SQLite, FlavorFor(DriverSQLite))
}

func TestConfig_DataSourceName(t *testing.T) {
	dsn, err := Config{Driver: DriverPostgres, Host: "db", Port: "5432", User: "fern", Password: "pw", Name: "fern"}.DataSourceName()
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=fern password=pw dbname=fern sslmode=disable", dsn)

	dsn, err = Config{Driver: DriverMySQL, Host: "db", Port: "3306", User: "fern", Password: "pw", Name: "fern"}.DataSourceName()
	require.NoError(t, err)
	assert.Contains(t, dsn, "fern:pw@tcp(db:3306)/fern")
	assert.Contains(t, dsn, "parseTime=true")

	dsn, err = Config{Driver: "oracle", DSN: "custom"}.DataSourceName()
	require.NoError(t, err)
	assert.Equal(t, "custom", dsn)

	_, err = Config{Driver: "oracle"}.DataSourceName()
	assert.Error(t, err)

	_, err = Config{Driver: DriverSQLite}.DataSourceName()
	assert.Error(t, err)
}

func TestMigrationService_SQLite(t *testing.T) {
	db := openSQLite(t)
	svc := NewMigrationService(testLogger(), &MigrationConfig{FolderPath: "../../db/migrations"})

	require.NoError(t, svc.Migrate(db))
	require.NoError(t, svc.Migrate(db))

	var count int
	require.NoError(t, db.GetContext(context.Background(), &count, "SELECT COUNT(*) FROM edit_journal"))
	assert.Equal(t, 0, count)
}

func TestPersistenceProvider_ConnectionMode(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	observer := &recordingObserver{}
	provider := NewPersistenceProvider(db, testLogger(), WithStatementObserver(observer))

	require.True(t, provider.IsConnected(ctx))

	pc, err := provider.OpenContext(ctx, edit.PurposeUserScript, "Execute create")
	require.NoError(t, err)
	require.NoError(t, pc.Exec(ctx, "CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT)"))
	require.NoError(t, pc.Exec(ctx, "INSERT INTO people (id, name) VALUES (?, ?)", 1, "ada"))
	assert.Error(t, pc.Exec(ctx, "INSERT INTO missing VALUES (1)"))
	require.NoError(t, pc.Close(ctx))

	var name string
	require.NoError(t, db.GetContext(ctx, &name, "SELECT name FROM people WHERE id = 1"))
	assert.Equal(t, "ada", name)

	require.Len(t, observer.statements, 3)
	assert.Equal(t, "Execute create", observer.statements[0].Description)
	assert.Equal(t, edit.PurposeUserScript, observer.statements[0].Purpose)
	assert.Equal(t, []any{1, "ada"}, observer.statements[1].Args)
	assert.Error(t, observer.statements[2].Err)
}

func TestPersistenceProvider_TransactionalRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	_, err := db.ExecContext(ctx, "CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	provider := NewPersistenceProvider(db, testLogger(), WithTransactions(true))

	pc, err := provider.OpenContext(ctx, edit.PurposeUserScript, "Execute insert")
	require.NoError(t, err)
	require.NoError(t, pc.Exec(ctx, "INSERT INTO people (id, name) VALUES (1, 'ada')"))
	require.Error(t, pc.Exec(ctx, "INSERT INTO people (id, name) VALUES (1, 'dup')"))
	require.NoError(t, pc.Close(ctx))

	var count int
	require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM people"))
	assert.Equal(t, 0, count)

	pc, err = provider.OpenContext(ctx, edit.PurposeUserScript, "Execute insert")
	require.NoError(t, err)
	require.NoError(t, pc.Exec(ctx, "INSERT INTO people (id, name) VALUES (1, 'ada')"))
	require.NoError(t, pc.Close(ctx))

	require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM people"))
	assert.Equal(t, 1, count)
}

func TestGetTx_ReusesContextTransaction(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	txCtx, tx, err := db.GetTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(txCtx, "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)

	_, inner, err := db.GetTx(txCtx, nil)
	require.NoError(t, err)
	require.NoError(t, inner.Commit(txCtx))
	assert.True(t, tx.IsOpen())

	require.NoError(t, tx.Commit(txCtx))
	assert.False(t, tx.IsOpen())
	require.NoError(t, tx.Commit(txCtx))
}

func TestJSON_ScanAndValue(t *testing.T) {
	var j JSON[[]string]
	require.NoError(t, j.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, []string{"a", "b"}, j.Data)
	require.NoError(t, j.Scan(`["c"]`))
	assert.Equal(t, []string{"c"}, j.Data)
	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j.Data)
	assert.Error(t, j.Scan(42))

	v, err := JSON[map[string]int]{Data: map[string]int{"x": 1}}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, v)
}
