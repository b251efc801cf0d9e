package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(strings.TrimSuffix(format, "\n"), v...)
}

type MigrationConfig struct {
	// FolderPath holds one sub folder of migrations per driver family.
	FolderPath string
	Version    uint
	Force      int
	// AutoRollback forces a dirty database back to the last clean version.
	AutoRollback bool
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

// MigrationDialect returns the migrations sub folder used for a driver.
func MigrationDialect(driver string) string {
	switch driver {
	case DriverPostgres, DriverPgx:
		return "postgres"
	default:
		return driver
	}
}

func (ms *MigrationService) resolveFolder(driver string) string {
	folder := filepath.Join(ms.config.FolderPath, MigrationDialect(driver))
	if filepath.IsAbs(folder) {
		return folder
	}
	if _, err := os.Stat(folder); err == nil {
		abs, absErr := filepath.Abs(folder)
		if absErr == nil {
			return abs
		}
	}
	wd, _ := os.Getwd()
	return filepath.Join(wd, folder)
}

// Migrate applies the migrations for the driver of db.
func (ms *MigrationService) Migrate(db DB) error {
	instance, ok := db.(*DatabaseInstance)
	if !ok {
		return errors.New("migrations require a *DatabaseInstance")
	}
	driver, err := migrationDriver(instance.DB)
	if err != nil {
		return err
	}

	folder := ms.resolveFolder(instance.DriverName())
	if _, err := os.Stat(folder); err != nil {
		return errors.Wrapf(err, "migration folder %s does not exist", folder)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(folder), MigrationDialect(instance.DriverName()), driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}
	m.Log = MigrationLogger{Logger: ms.logger}

	return ms.run(m)
}

func migrationDriver(db *sqlx.DB) (migratedb.Driver, error) {
	switch db.DriverName() {
	case DriverPostgres, DriverPgx:
		return migratepostgres.WithInstance(db.DB, &migratepostgres.Config{})
	case DriverMySQL:
		return migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	case DriverSQLite:
		return migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	default:
		return nil, fmt.Errorf("no migration driver for %q", db.DriverName())
	}
}

func (ms *MigrationService) run(m *migrate.Migrate) error {
	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	previous, _, versionErr := m.Version()
	if versionErr != nil && versionErr != migrate.ErrNilVersion {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
	}

	start := time.Now()
	var err error
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}
	ms.logger.Infof("Database migrations completed in %v", time.Since(start))

	switch {
	case err == nil:
		ms.logger.Info("Successfully applied migrations")
		return nil
	case err == migrate.ErrNoChange:
		ms.logger.Info("No new migrations to apply")
		return nil
	}

	ms.logger.WithError(err).Errorf("Migration failed with error: %v", err)

	version, dirty, versionErr := m.Version()
	if versionErr != nil || !dirty || !ms.config.AutoRollback {
		return err
	}

	target := int(previous)
	if target == 0 && version > 0 {
		target = int(version) - 1
	}
	if target == 0 {
		target = migratedb.NilVersion
	}
	ms.logger.Warnf("Database is dirty at version %d. Reverting to version %d", version, target)
	if forceErr := m.Force(target); forceErr != nil {
		ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", target)
		return forceErr
	}
	return err
}
