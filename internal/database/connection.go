package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mailsink/mailsink/internal/errors"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver string

	// sqlite
	FilePath string

	// postgres
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConn         int
	MaxIdleConn     int
	ConnMaxLifetime int
	LogLevel        string
}

// NewConnection opens the ledger database. SQLite is the embedded default;
// Postgres is available for deployments that already run one.
func NewConnection(dbConfig *DatabaseConfig) (*gorm.DB, error) {
	if dbConfig == nil {
		return nil, errors.ErrInvalidConfig
	}

	var (
		db  *gorm.DB
		err error
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(dbConfig.LogLevel)),
	}

	switch dbConfig.Driver {
	case DriverSQLite, "":
		if dbConfig.FilePath == "" {
			return nil, fmt.Errorf("%w: sqlite ledger path is empty", errors.ErrInvalidConfig)
		}
		if err := os.MkdirAll(filepath.Dir(dbConfig.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		db, err = gorm.Open(sqlite.Open(dbConfig.FilePath), gormConfig)
	case DriverPostgres:
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			dbConfig.Host, dbConfig.Port, dbConfig.User, dbConfig.Password, dbConfig.DBName, dbConfig.SSLMode,
		)
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	default:
		return nil, fmt.Errorf("%w: unknown ledger driver %q", errors.ErrInvalidConfig, dbConfig.Driver)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if dbConfig.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	}
	if dbConfig.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)
	}

	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToUpper(level) {
	case "INFO":
		return logger.Info
	case "WARN":
		return logger.Warn
	case "ERROR":
		return logger.Error
	default:
		return logger.Silent
	}
}
