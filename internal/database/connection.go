// internal/database/connection.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"whatsapp-campaigns/internal/config"
)

// Connection represents a database connection
type Connection struct {
	DB    *gorm.DB
	SqlDB *sql.DB
}

// NewConnection creates a new database connection
func NewConnection(cfg *config.Config) (*Connection, error) {
	// Configure GORM
	gormConfig := &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}

	// Set log level based on environment
	if cfg.IsProduction() && !cfg.Server.Debug {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Error)
	} else {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	// Open connection with GORM
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{
		DB:    db,
		SqlDB: sqlDB,
	}, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	if c.SqlDB != nil {
		return c.SqlDB.Close()
	}
	return nil
}

// HealthCheck performs a health check on the database
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c.SqlDB == nil {
		return fmt.Errorf("database connection is nil")
	}
	return c.SqlDB.PingContext(ctx)
}
