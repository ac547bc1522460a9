package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sei-platform/seibackend/config"
	"github.com/sei-platform/seibackend/logger"
)

// DB bundles the GORM handle used by the repositories with the raw *sql.DB the
// squirrel-based Store issues its parameterized queries on. Both share one pool.
type DB struct {
	Gorm   *gorm.DB
	SQL    *sql.DB
	Driver string
}

// Open connects to the relational store for the given driver ("sqlite" or "postgres").
func Open(driver, dsn string, log *logger.Logger) (*DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(sqliteDSN(dsn))
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", driver)
	}

	gormLogger := gormlogger.New(
		zap.NewStdLog(log.SugaredLogger.Desugar()),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	if driver == config.DriverSQLite {
		// enable write-ahead logging for better concurrency
		if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			log.Warn("failed to set WAL mode", "error", err)
		}
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Info("database initialized", "driver", driver)
	return &DB{Gorm: gdb, SQL: sqlDB, Driver: driver}, nil
}

// Store returns the parameterized-query access layer over this connection.
func (db *DB) Store() *Store {
	return NewStore(db.SQL, db.Driver)
}

func (db *DB) Close() error {
	return db.SQL.Close()
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000&_foreign_keys=on"
}
