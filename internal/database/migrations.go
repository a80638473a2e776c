package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all database migrations
func GetMigrations(dbType string) []Migration {
	if dbType == "mysql" {
		return getMySQLMigrations()
	}
	return getSQLiteMigrations()
}

// getMySQLMigrations returns MySQL migrations
func getMySQLMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				full_name VARCHAR(255) NOT NULL,
				email VARCHAR(255) UNIQUE NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				phone_number VARCHAR(32),
				age INT,
				is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
				verification_token VARCHAR(64),
				trial_used BOOLEAN NOT NULL DEFAULT FALSE,
				trial_expiry DATETIME,
				password_reset_token VARCHAR(64),
				password_reset_expiry DATETIME,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     2,
			Description: "Create subscription_plans table",
			SQL: `CREATE TABLE IF NOT EXISTS subscription_plans (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				price DECIMAL(10,2) NOT NULL,
				duration_months INT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				display_order INT NOT NULL DEFAULT 0
			)`,
		},
		{
			Version:     3,
			Description: "Create layouts table",
			SQL: `CREATE TABLE IF NOT EXISTS layouts (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				thumbnail_url TEXT,
				preview_url TEXT,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				is_featured BOOLEAN NOT NULL DEFAULT FALSE,
				display_order INT NOT NULL DEFAULT 0,
				base_price DECIMAL(10,2) NOT NULL DEFAULT 0,
				price_1mo DECIMAL(10,2),
				price_3mo DECIMAL(10,2),
				price_6mo DECIMAL(10,2),
				price_1yr DECIMAL(10,2)
			)`,
		},
		{
			Version:     4,
			Description: "Create subscriptions table",
			SQL: `CREATE TABLE IF NOT EXISTS subscriptions (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				user_id BIGINT NOT NULL,
				plan_id VARCHAR(64) NOT NULL,
				layout_id VARCHAR(64) NOT NULL,
				start_date DATETIME NOT NULL,
				expiry_date DATETIME NOT NULL,
				price_paid DECIMAL(10,2) NOT NULL DEFAULT 0,
				order_id VARCHAR(128),
				payment_id VARCHAR(128),
				status VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
				public_token VARCHAR(64) UNIQUE NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
		},
		{
			Version:     5,
			Description: "Create theme_customizations table",
			SQL: `CREATE TABLE IF NOT EXISTS theme_customizations (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				user_id BIGINT NOT NULL,
				layout_id VARCHAR(64) NOT NULL,
				config JSON NOT NULL,
				public_token VARCHAR(64) UNIQUE NOT NULL,
				active_session_id VARCHAR(128),
				last_heartbeat DATETIME,
				updated_at DATETIME NOT NULL,
				UNIQUE KEY uniq_user_layout (user_id, layout_id),
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
		},
		{
			Version:     6,
			Description: "Create products and product_purchases tables",
			SQL: `CREATE TABLE IF NOT EXISTS products (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				price DECIMAL(10,2) NOT NULL,
				file_url TEXT NOT NULL,
				file_type VARCHAR(64),
				thumbnail_url TEXT,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at DATETIME NOT NULL
			);
			CREATE TABLE IF NOT EXISTS product_purchases (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				user_id BIGINT NOT NULL,
				product_id BIGINT NOT NULL,
				transaction_id VARCHAR(128) NOT NULL,
				price_paid DECIMAL(10,2) NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
				FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
			)`,
		},
		{
			Version:     7,
			Description: "Create coupons table",
			SQL: `CREATE TABLE IF NOT EXISTS coupons (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				code VARCHAR(64) UNIQUE NOT NULL,
				discount_type VARCHAR(16) NOT NULL DEFAULT 'PERCENT',
				discount_value DECIMAL(10,2) NOT NULL,
				description TEXT,
				layout_id VARCHAR(64),
				max_uses INT NOT NULL DEFAULT 0,
				used_count INT NOT NULL DEFAULT 0,
				expiry_date DATETIME,
				created_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     8,
			Description: "Create admins table",
			SQL: `CREATE TABLE IF NOT EXISTS admins (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				username VARCHAR(64) UNIQUE NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				created_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     9,
			Description: "Create support_queries table",
			SQL: `CREATE TABLE IF NOT EXISTS support_queries (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) NOT NULL,
				subject VARCHAR(255),
				message TEXT NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'OPEN',
				created_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     10,
			Description: "Create transactions table",
			SQL: `CREATE TABLE IF NOT EXISTS transactions (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				user_id BIGINT,
				order_id VARCHAR(128),
				payment_id VARCHAR(128),
				amount DECIMAL(10,2),
				status VARCHAR(16) NOT NULL,
				created_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     11,
			Description: "Create indexes",
			SQL: `CREATE INDEX idx_subscriptions_user_id ON subscriptions(user_id);
				CREATE INDEX idx_subscriptions_public_token ON subscriptions(public_token);
				CREATE INDEX idx_subscriptions_status_expiry ON subscriptions(status, expiry_date);
				CREATE INDEX idx_theme_customizations_token ON theme_customizations(public_token);
				CREATE INDEX idx_product_purchases_user_id ON product_purchases(user_id);
				CREATE INDEX idx_transactions_user_id ON transactions(user_id)`,
		},
	}
}

// getSQLiteMigrations returns SQLite migrations
func getSQLiteMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				full_name TEXT NOT NULL,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				phone_number TEXT,
				age INTEGER,
				is_email_verified BOOLEAN NOT NULL DEFAULT 0,
				verification_token TEXT,
				trial_used BOOLEAN NOT NULL DEFAULT 0,
				trial_expiry DATETIME,
				password_reset_token TEXT,
				password_reset_expiry DATETIME,
				is_active BOOLEAN NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     2,
			Description: "Create subscription_plans table",
			SQL: `CREATE TABLE IF NOT EXISTS subscription_plans (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT,
				price REAL NOT NULL,
				duration_months INTEGER NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT 1,
				display_order INTEGER NOT NULL DEFAULT 0
			)`,
		},
		{
			Version:     3,
			Description: "Create layouts table",
			SQL: `CREATE TABLE IF NOT EXISTS layouts (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT,
				thumbnail_url TEXT,
				preview_url TEXT,
				is_active BOOLEAN NOT NULL DEFAULT 1,
				is_featured BOOLEAN NOT NULL DEFAULT 0,
				display_order INTEGER NOT NULL DEFAULT 0,
				base_price REAL NOT NULL DEFAULT 0,
				price_1mo REAL,
				price_3mo REAL,
				price_6mo REAL,
				price_1yr REAL
			)`,
		},
		{
			Version:     4,
			Description: "Create subscriptions table",
			SQL: `CREATE TABLE IF NOT EXISTS subscriptions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				plan_id TEXT NOT NULL,
				layout_id TEXT NOT NULL,
				start_date DATETIME NOT NULL,
				expiry_date DATETIME NOT NULL,
				price_paid REAL NOT NULL DEFAULT 0,
				order_id TEXT,
				payment_id TEXT,
				status TEXT NOT NULL DEFAULT 'ACTIVE',
				public_token TEXT UNIQUE NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
		},
		{
			Version:     5,
			Description: "Create theme_customizations table",
			SQL: `CREATE TABLE IF NOT EXISTS theme_customizations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				layout_id TEXT NOT NULL,
				config TEXT NOT NULL,
				public_token TEXT UNIQUE NOT NULL,
				active_session_id TEXT,
				last_heartbeat DATETIME,
				updated_at DATETIME NOT NULL,
				UNIQUE (user_id, layout_id),
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
		},
		{
			Version:     6,
			Description: "Create products and product_purchases tables",
			SQL: `CREATE TABLE IF NOT EXISTS products (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				description TEXT,
				price REAL NOT NULL,
				file_url TEXT NOT NULL,
				file_type TEXT,
				thumbnail_url TEXT,
				is_active BOOLEAN NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL
			);
			CREATE TABLE IF NOT EXISTS product_purchases (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				product_id INTEGER NOT NULL,
				transaction_id TEXT NOT NULL,
				price_paid REAL NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
				FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
			)`,
		},
		{
			Version:     7,
			Description: "Create coupons table",
			SQL: `CREATE TABLE IF NOT EXISTS coupons (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				code TEXT UNIQUE NOT NULL,
				discount_type TEXT NOT NULL DEFAULT 'PERCENT',
				discount_value REAL NOT NULL,
				description TEXT,
				layout_id TEXT,
				max_uses INTEGER NOT NULL DEFAULT 0,
				used_count INTEGER NOT NULL DEFAULT 0,
				expiry_date DATETIME,
				created_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     8,
			Description: "Create admins table",
			SQL: `CREATE TABLE IF NOT EXISTS admins (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     9,
			Description: "Create support_queries table",
			SQL: `CREATE TABLE IF NOT EXISTS support_queries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				email TEXT NOT NULL,
				subject TEXT,
				message TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'OPEN',
				created_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     10,
			Description: "Create transactions table",
			SQL: `CREATE TABLE IF NOT EXISTS transactions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER,
				order_id TEXT,
				payment_id TEXT,
				amount REAL,
				status TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     11,
			Description: "Create indexes",
			SQL: `CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id ON subscriptions(user_id);
				CREATE INDEX IF NOT EXISTS idx_subscriptions_public_token ON subscriptions(public_token);
				CREATE INDEX IF NOT EXISTS idx_subscriptions_status_expiry ON subscriptions(status, expiry_date);
				CREATE INDEX IF NOT EXISTS idx_theme_customizations_token ON theme_customizations(public_token);
				CREATE INDEX IF NOT EXISTS idx_product_purchases_user_id ON product_purchases(user_id);
				CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id)`,
		},
	}
}

// createMigrationsTable creates the migrations tracking table
func createMigrationsTable(db *sql.DB, dbType string) error {
	var query string
	if dbType == "mysql" {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at DATETIME NOT NULL
		)`
	} else {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	}

	_, err := db.Exec(query)
	return err
}

// getAppliedMigrations returns the list of applied migration versions
func getAppliedMigrations(db *sql.DB) (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return applied, err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return applied, err
		}
		applied[version] = true
	}

	return applied, nil
}

// recordMigration records that a migration has been applied
func recordMigration(db *sql.DB, version int) error {
	_, err := db.Exec(
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)",
		version,
	)
	return err
}

// RunMigrations runs all pending migrations
func RunMigrations(db *sql.DB, dbType string) error {
	if err := createMigrationsTable(db, dbType); err != nil {
		return fmt.Errorf("failed to create migrations table: %v", err)
	}

	applied, err := getAppliedMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %v", err)
	}

	migrations := GetMigrations(dbType)

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}

		log.Printf("[DB] Applying migration %d: %s", migration.Version, migration.Description)

		// Split SQL by semicolon and execute each statement
		statements := strings.Split(migration.SQL, ";")
		for _, stmt := range statements {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}

			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to apply migration %d: %v", migration.Version, err)
			}
		}

		if err := recordMigration(db, migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %v", migration.Version, err)
		}
	}

	return nil
}
