package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/streamtheme-io/streamtheme/internal/config"
)

// DatabaseTestSuite exercises init, migrations and seeding on SQLite
type DatabaseTestSuite struct {
	suite.Suite
	db  *sql.DB
	cfg *config.Config
}

func (s *DatabaseTestSuite) SetupTest() {
	s.cfg = &config.Config{}
	s.cfg.Database.Type = "sqlite"
	s.cfg.Database.Path = filepath.Join(s.T().TempDir(), "streamtheme_test.db")

	db, err := Init(s.cfg)
	assert.NoError(s.T(), err, "Database initialization should succeed")
	s.db = db
}

func (s *DatabaseTestSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func TestDatabaseTestSuite(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}

func (s *DatabaseTestSuite) TestMigrationsApplied() {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), len(GetMigrations("sqlite")), count)

	// All tables should exist and be queryable
	tables := []string{
		"users", "subscription_plans", "subscriptions", "layouts",
		"theme_customizations", "products", "product_purchases",
		"coupons", "admins", "support_queries", "transactions",
	}
	for _, table := range tables {
		var n int
		err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
		assert.NoError(s.T(), err, "table %s should exist", table)
	}
}

func (s *DatabaseTestSuite) TestSeedsPresent() {
	var planCount int
	err := s.db.QueryRow("SELECT COUNT(*) FROM subscription_plans").Scan(&planCount)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 3, planCount)

	var layoutID string
	err = s.db.QueryRow("SELECT id FROM layouts LIMIT 1").Scan(&layoutID)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), "master-standard", layoutID)

	var adminCount int
	err = s.db.QueryRow("SELECT COUNT(*) FROM admins").Scan(&adminCount)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 1, adminCount)
}

func (s *DatabaseTestSuite) TestInitIsIdempotent() {
	s.db.Close()

	db, err := Init(s.cfg)
	assert.NoError(s.T(), err, "Reopening an existing database should succeed")
	s.db = db

	// Seeds must not duplicate on reopen
	var planCount int
	err = s.db.QueryRow("SELECT COUNT(*) FROM subscription_plans").Scan(&planCount)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 3, planCount)
}

func (s *DatabaseTestSuite) TestUnsupportedDriver() {
	cfg := &config.Config{}
	cfg.Database.Type = "oracle"

	_, err := Init(cfg)
	assert.Error(s.T(), err)
	assert.Contains(s.T(), err.Error(), "unsupported database type")
}
