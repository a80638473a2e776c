package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/streamtheme-io/streamtheme/internal/config"
	"github.com/streamtheme-io/streamtheme/internal/models"
)

// Init opens the database, configures the pool and applies migrations
func Init(cfg *config.Config) (*sql.DB, error) {
	log.Printf("[DB] Database type: %s", cfg.Database.Type)

	var db *sql.DB
	var err error

	switch cfg.Database.Type {
	case "mysql":
		db, err = initMySQL(cfg)
	case "sqlite", "":
		db, err = initSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}

	log.Printf("[DB] Running database migrations")
	if err = RunMigrations(db, cfg.Database.Type); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	if err := seedDefaults(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed defaults: %v", err)
	}

	log.Printf("[DB] Database initialized successfully")
	return db, nil
}

// initMySQL opens the MySQL connection and configures the pool
func initMySQL(cfg *config.Config) (*sql.DB, error) {
	log.Printf("[DB] Connecting to MySQL at %s:%s/%s as %s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Name, cfg.Database.User)

	// parseTime maps DATETIME columns onto time.Time in scans
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
	)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %v", err)
	}

	if cfg.Database.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxConns)
	}
	if cfg.Database.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdle)
	}
	if cfg.Database.ConnMaxLifetime != "" && cfg.Database.ConnMaxLifetime != "0" {
		if duration, err := time.ParseDuration(cfg.Database.ConnMaxLifetime); err == nil {
			db.SetConnMaxLifetime(duration)
		}
	}

	return db, nil
}

// initSQLite opens the SQLite connection, creating the data directory if needed
func initSQLite(cfg *config.Config) (*sql.DB, error) {
	log.Printf("[DB] Opening SQLite database at %s", cfg.Database.Path)

	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on", cfg.Database.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %v", err)
	}

	return db, nil
}

// StartKeepalive pings the database on an interval so idle pool
// connections are not reaped by the server side. Returns a stop func.
func StartKeepalive(db *sql.DB, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := db.Ping(); err != nil {
					log.Printf("[DB] Keepalive ping failed: %v", err)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// seedDefaults inserts the catalog rows and the default admin account
// that a fresh installation needs. Every insert is idempotent.
func seedDefaults(db *sql.DB) error {
	type planSeed struct {
		id     string
		name   string
		price  float64
		months int
		order  int
	}
	plans := []planSeed{
		{"monthly", "Monthly", 299, 1, 1},
		{"semi_annual", "6 Months", 1599, 6, 2},
		{"yearly", "Yearly", 2999, 12, 3},
	}
	for _, p := range plans {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM subscription_plans WHERE id = ?", p.id).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			continue
		}
		_, err = db.Exec(
			"INSERT INTO subscription_plans (id, name, price, duration_months, is_active, display_order) VALUES (?, ?, ?, ?, 1, ?)",
			p.id, p.name, p.price, p.months, p.order,
		)
		if err != nil {
			return err
		}
		log.Printf("[DB] Seeded plan %s", p.id)
	}

	var layoutCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM layouts WHERE id = ?", models.DefaultLayoutID).Scan(&layoutCount); err != nil {
		return err
	}
	if layoutCount == 0 {
		_, err := db.Exec(
			"INSERT INTO layouts (id, name, description, is_active, is_featured, display_order, base_price) VALUES (?, ?, ?, 1, 1, 1, ?)",
			models.DefaultLayoutID, "Master Standard", "The standard stream overlay layout", 299.0,
		)
		if err != nil {
			return err
		}
		log.Printf("[DB] Seeded default layout %s", models.DefaultLayoutID)
	}

	var adminCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM admins").Scan(&adminCount); err != nil {
		return err
	}
	if adminCount == 0 {
		password := os.Getenv("ADMIN_PASSWORD")
		if password == "" {
			password = "admin123"
			log.Printf("[DB] ADMIN_PASSWORD not set, using default admin credentials")
		}
		hash, err := models.HashPassword(password)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		_, err = db.Exec(
			"INSERT INTO admins (username, password_hash, created_at) VALUES (?, ?, ?)",
			"admin", hash, now,
		)
		if err != nil {
			return err
		}
		log.Printf("[DB] Seeded default admin account")
	}

	return nil
}
