package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"grantdesk/internal/config"
	"grantdesk/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var (
	db *gorm.DB
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = 10 * time.Minute
	pingTimeout     = 5 * time.Second
)

// Init initializes the global database connection from configuration and migrates the schema
func Init() error {
	cfg := config.Get()

	log.SetPrefix("[DB] ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	defer log.SetPrefix("")

	conn, err := Open(&cfg.Database)
	if err != nil {
		return err
	}

	log.Println("Running database migrations...")
	if err := Migrate(conn); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	db = conn
	log.Println("Database connected and migrated successfully")
	return nil
}

// Open connects to PostgreSQL or SQLite depending on the configured URL
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	var sqliteDB *sql.DB

	if cfg.IsPostgres() {
		log.Println("Connecting to PostgreSQL database...")
		dialector = postgres.Open(cfg.GetPostgresDSN())
	} else {
		log.Println("Connecting to SQLite database...")
		dbPath := cfg.GetSQLitePath()
		var err error
		sqliteDB, err = sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		// SQLite allows one writer at a time, and every connection to ":memory:"
		// would otherwise get its own empty database.
		sqliteDB.SetMaxOpenConns(1)
		dialector = sqlite.Dialector{
			DriverName: "sqlite",
			DSN:        dbPath,
			Conn:       sqliteDB,
		}
	}

	// Never log SQL queries: they carry message bodies and contact details
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	conn, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.IsPostgres() {
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}

		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetMaxIdleConns(maxIdleConns)
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
		sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

		log.Printf("Connection pool configured: maxOpen=%d, maxIdle=%d", maxOpenConns, maxIdleConns)
	}

	if err := ping(conn); err != nil {
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}
	return conn, nil
}

// Migrate creates or updates every table the service owns
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&domain.User{},
		&domain.Inquiry{},
		&domain.Message{},
	)
}

func ping(conn *gorm.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	if db == nil {
		log.Fatal("Database not initialized. Call database.Init() first.")
	}
	return db
}

// InitWithDB installs a pre-configured connection, used by tests and tools
func InitWithDB(conn *gorm.DB) {
	db = conn
}

// HealthCheck performs a database health check
func HealthCheck() error {
	return ping(GetDB())
}

// Close releases the underlying connection pool
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetStats returns database connection statistics
func GetStats() (*sql.DBStats, error) {
	sqlDB, err := GetDB().DB()
	if err != nil {
		return nil, err
	}
	stats := sqlDB.Stats()
	return &stats, nil
}
