package store

import (
	"database/sql"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/streamtheme-io/streamtheme/internal/config"
	"github.com/streamtheme-io/streamtheme/internal/database"
	"github.com/streamtheme-io/streamtheme/internal/models"
)

type StoreTestSuite struct {
	suite.Suite
	db    *sql.DB
	store *Store
}

func (s *StoreTestSuite) SetupTest() {
	log.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.Database.Type = "sqlite"
	cfg.Database.Path = filepath.Join(s.T().TempDir(), "store_test.db")

	db, err := database.Init(cfg)
	assert.NoError(s.T(), err)
	s.db = db
	s.store = New(db)
}

func (s *StoreTestSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
	log.SetOutput(io.Discard)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) createUser(email string) *models.User {
	hash, err := models.HashPassword("secret123")
	assert.NoError(s.T(), err)
	user, err := s.store.CreateUser("Test Streamer", email, hash, nil, nil, uuid.NewString())
	assert.NoError(s.T(), err)
	return user
}

func (s *StoreTestSuite) TestCreateAndGetUser() {
	user := s.createUser("streamer@example.com")
	assert.NotZero(s.T(), user.ID)
	assert.False(s.T(), user.IsEmailVerified)
	assert.True(s.T(), user.IsActive)
	assert.False(s.T(), user.TrialUsed)

	found, err := s.store.GetUserByEmail("streamer@example.com")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), user.ID, found.ID)
	assert.Equal(s.T(), "Test Streamer", found.FullName)

	_, err = s.store.GetUserByEmail("nobody@example.com")
	assert.ErrorIs(s.T(), err, sql.ErrNoRows)
}

func (s *StoreTestSuite) TestDuplicateEmailRejected() {
	s.createUser("dup@example.com")

	hash, _ := models.HashPassword("secret123")
	_, err := s.store.CreateUser("Other", "dup@example.com", hash, nil, nil, uuid.NewString())
	assert.Error(s.T(), err)
}

func (s *StoreTestSuite) TestVerifyUserEmail() {
	user := s.createUser("verify@example.com")

	err := s.store.VerifyUserEmail(*user.VerificationToken)
	assert.NoError(s.T(), err)

	found, err := s.store.GetUserByID(user.ID)
	assert.NoError(s.T(), err)
	assert.True(s.T(), found.IsEmailVerified)
	assert.Nil(s.T(), found.VerificationToken)

	// Token is single use
	err = s.store.VerifyUserEmail(*user.VerificationToken)
	assert.ErrorIs(s.T(), err, sql.ErrNoRows)
}

func (s *StoreTestSuite) TestActivateTrialIsOneWay() {
	user := s.createUser("trial@example.com")
	expiry := time.Now().UTC().Add(24 * time.Hour)

	err := s.store.ActivateTrial(user.ID, expiry)
	assert.NoError(s.T(), err)

	found, err := s.store.GetUserByID(user.ID)
	assert.NoError(s.T(), err)
	assert.True(s.T(), found.TrialUsed)
	assert.NotNil(s.T(), found.TrialExpiry)

	// A second activation touches no row, even with a later expiry
	err = s.store.ActivateTrial(user.ID, expiry.Add(48*time.Hour))
	assert.ErrorIs(s.T(), err, sql.ErrNoRows)
}

func (s *StoreTestSuite) TestPasswordResetFlow() {
	user := s.createUser("reset@example.com")
	token := uuid.NewString()
	now := time.Now().UTC()

	err := s.store.SetPasswordResetToken(user.ID, token, now.Add(time.Hour))
	assert.NoError(s.T(), err)

	found, err := s.store.GetUserByResetToken(token, now)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), user.ID, found.ID)

	// Expired tokens do not resolve
	_, err = s.store.GetUserByResetToken(token, now.Add(2*time.Hour))
	assert.ErrorIs(s.T(), err, sql.ErrNoRows)

	newHash, _ := models.HashPassword("newpass456")
	err = s.store.ResetPassword(user.ID, newHash)
	assert.NoError(s.T(), err)

	found, err = s.store.GetUserByID(user.ID)
	assert.NoError(s.T(), err)
	assert.True(s.T(), found.ValidatePassword("newpass456"))
	assert.Nil(s.T(), found.PasswordResetToken)
}

func (s *StoreTestSuite) createSubscription(userID int64, expiry time.Time) *models.Subscription {
	now := time.Now().UTC()
	sub := &models.Subscription{
		UserID:      userID,
		PlanID:      "monthly",
		LayoutID:    models.DefaultLayoutID,
		StartDate:   now,
		ExpiryDate:  expiry,
		PricePaid:   299,
		Status:      models.SubscriptionStatusActive,
		PublicToken: uuid.NewString(),
	}
	err := s.store.CreateSubscription(sub)
	assert.NoError(s.T(), err)
	return sub
}

func (s *StoreTestSuite) TestGetActiveSubscription() {
	user := s.createUser("subs@example.com")
	now := time.Now().UTC()

	_, err := s.store.GetActiveSubscription(user.ID, now)
	assert.ErrorIs(s.T(), err, sql.ErrNoRows)

	s.createSubscription(user.ID, now.Add(-time.Hour)) // lapsed
	short := s.createSubscription(user.ID, now.AddDate(0, 1, 0))
	long := s.createSubscription(user.ID, now.AddDate(0, 12, 0))

	active, err := s.store.GetActiveSubscription(user.ID, now)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), long.ID, active.ID, "the furthest expiry wins")
	assert.NotEqual(s.T(), short.ID, active.ID)
}

func (s *StoreTestSuite) TestLapsedSubscriptionInvisibleWithoutSweeper() {
	user := s.createUser("lapsed@example.com")
	now := time.Now().UTC()
	sub := s.createSubscription(user.ID, now.Add(time.Minute))

	_, err := s.store.GetActiveSubscription(user.ID, now)
	assert.NoError(s.T(), err)

	// Same row, read after expiry: gone, with no status change in the table
	_, err = s.store.GetActiveSubscription(user.ID, now.Add(2*time.Minute))
	assert.ErrorIs(s.T(), err, sql.ErrNoRows)

	stored, err := s.store.GetSubscriptionByPublicToken(sub.PublicToken)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), models.SubscriptionStatusActive, stored.Status)
}

func (s *StoreTestSuite) TestRevokeActiveSubscriptions() {
	user := s.createUser("revoke@example.com")
	now := time.Now().UTC()
	s.createSubscription(user.ID, now.AddDate(0, 1, 0))
	s.createSubscription(user.ID, now.AddDate(0, 6, 0))
	s.createSubscription(user.ID, now.Add(-time.Hour)) // already lapsed

	revoked, err := s.store.RevokeActiveSubscriptions(user.ID, now)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), revoked)

	_, err = s.store.GetActiveSubscription(user.ID, now.Add(time.Second))
	assert.ErrorIs(s.T(), err, sql.ErrNoRows)
}

func (s *StoreTestSuite) TestExtendSubscription() {
	user := s.createUser("extend@example.com")
	now := time.Now().UTC()
	sub := s.createSubscription(user.ID, now.AddDate(0, 1, 0))

	extended, err := s.store.ExtendSubscription(sub.ID, 3)
	assert.NoError(s.T(), err)
	assert.WithinDuration(s.T(), sub.ExpiryDate.AddDate(0, 3, 0), extended.ExpiryDate, time.Second)
	assert.Equal(s.T(), models.SubscriptionStatusActive, extended.Status)
}

func (s *StoreTestSuite) TestUpsertThemeConfigPreservesToken() {
	user := s.createUser("theme@example.com")

	first, err := s.store.UpsertThemeConfig(user.ID, models.DefaultLayoutID, `{"color":"red"}`, uuid.NewString())
	assert.NoError(s.T(), err)
	assert.NotEmpty(s.T(), first.PublicToken)

	second, err := s.store.UpsertThemeConfig(user.ID, models.DefaultLayoutID, `{"color":"blue"}`, uuid.NewString())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), first.PublicToken, second.PublicToken, "re-saving must not rotate the public token")
	assert.Equal(s.T(), `{"color":"blue"}`, second.Config)

	// A different layout gets its own row and token
	other, err := s.store.UpsertThemeConfig(user.ID, "neon-night", `{"color":"green"}`, uuid.NewString())
	assert.NoError(s.T(), err)
	assert.NotEqual(s.T(), first.PublicToken, other.PublicToken)
}

func (s *StoreTestSuite) TestSessionLockLastWriterWins() {
	user := s.createUser("lock@example.com")
	now := time.Now().UTC()
	_, err := s.store.UpsertThemeConfig(user.ID, models.DefaultLayoutID, `{}`, uuid.NewString())
	assert.NoError(s.T(), err)

	err = s.store.ClaimOverlaySession(user.ID, models.DefaultLayoutID, "session-a", now)
	assert.NoError(s.T(), err)

	rows, err := s.store.RefreshHeartbeat(user.ID, models.DefaultLayoutID, "session-a", now)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), rows)

	// Another viewer claims the lock unconditionally
	err = s.store.ClaimOverlaySession(user.ID, models.DefaultLayoutID, "session-b", now)
	assert.NoError(s.T(), err)

	rows, err = s.store.RefreshHeartbeat(user.ID, models.DefaultLayoutID, "session-a", now)
	assert.NoError(s.T(), err)
	assert.Zero(s.T(), rows, "superseded session must not refresh the lock")

	rows, err = s.store.RefreshHeartbeat(user.ID, models.DefaultLayoutID, "session-b", now)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), rows)
}

func (s *StoreTestSuite) TestUpdatePlanPartialFields() {
	newPrice := 349.0
	err := s.store.UpdatePlan("monthly", PlanUpdate{Price: &newPrice})
	assert.NoError(s.T(), err)

	plan, err := s.store.GetPlan("monthly")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 349.0, plan.Price)
	assert.Equal(s.T(), "Monthly", plan.Name, "untouched fields keep their values")
	assert.Equal(s.T(), 1, plan.DurationMonths)

	err = s.store.UpdatePlan("missing", PlanUpdate{Price: &newPrice})
	assert.ErrorIs(s.T(), err, sql.ErrNoRows)
}

func (s *StoreTestSuite) TestListPlansActiveOnly() {
	inactive := false
	err := s.store.UpdatePlan("yearly", PlanUpdate{IsActive: &inactive})
	assert.NoError(s.T(), err)

	active, err := s.store.ListPlans(true)
	assert.NoError(s.T(), err)
	assert.Len(s.T(), active, 2)

	all, err := s.store.ListPlans(false)
	assert.NoError(s.T(), err)
	assert.Len(s.T(), all, 3)
}

func (s *StoreTestSuite) TestTransactionsAndRevenue() {
	user := s.createUser("money@example.com")
	amount := 299.0
	orderID := "order_1"
	paymentID := "pay_1"

	err := s.store.CreateTransaction(&models.Transaction{
		UserID: &user.ID, OrderID: &orderID, PaymentID: &paymentID,
		Amount: &amount, Status: "SUCCESS",
	})
	assert.NoError(s.T(), err)

	now := time.Now().UTC()
	s.createSubscription(user.ID, now.AddDate(0, 1, 0))

	revenue, err := s.store.TotalRevenue()
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 299.0, revenue)

	txs, err := s.store.ListTransactions()
	assert.NoError(s.T(), err)
	assert.Len(s.T(), txs, 1)
	assert.NotNil(s.T(), txs[0].UserName)
	assert.Equal(s.T(), "Test Streamer", *txs[0].UserName)
}

func (s *StoreTestSuite) TestDeleteUserCascades() {
	user := s.createUser("gone@example.com")
	now := time.Now().UTC()
	sub := s.createSubscription(user.ID, now.AddDate(0, 1, 0))
	_, err := s.store.UpsertThemeConfig(user.ID, models.DefaultLayoutID, `{}`, uuid.NewString())
	assert.NoError(s.T(), err)

	orderID := "order_del"
	err = s.store.CreateTransaction(&models.Transaction{UserID: &user.ID, OrderID: &orderID, Status: "SUCCESS"})
	assert.NoError(s.T(), err)

	err = s.store.DeleteUser(user.ID)
	assert.NoError(s.T(), err)

	_, err = s.store.GetUserByID(user.ID)
	assert.ErrorIs(s.T(), err, sql.ErrNoRows)
	_, err = s.store.GetSubscriptionByPublicToken(sub.PublicToken)
	assert.ErrorIs(s.T(), err, sql.ErrNoRows)

	txs, err := s.store.ListTransactions()
	assert.NoError(s.T(), err)
	assert.Empty(s.T(), txs)
}

func (s *StoreTestSuite) TestSupportQueryDefaultsToOpen() {
	query := &models.SupportQuery{
		Name:    "Viewer",
		Email:   "viewer@example.com",
		Message: "Overlay is not loading",
		Status:  "WHATEVER",
	}
	err := s.store.CreateSupportQuery(query)
	assert.NoError(s.T(), err)

	queries, err := s.store.ListSupportQueries()
	assert.NoError(s.T(), err)
	assert.Len(s.T(), queries, 1)
	assert.Equal(s.T(), models.SupportStatusOpen, queries[0].Status)

	err = s.store.UpdateSupportQueryStatus(queries[0].ID, models.SupportStatusClosed)
	assert.NoError(s.T(), err)
}

func (s *StoreTestSuite) TestListUsersWithStats() {
	user := s.createUser("stats@example.com")
	now := time.Now().UTC()
	s.createSubscription(user.ID, now.AddDate(0, 1, 0))

	users, err := s.store.ListUsersWithStats(now)
	assert.NoError(s.T(), err)
	assert.Len(s.T(), users, 1)
	assert.Equal(s.T(), 1, users[0].PurchaseCount)
	assert.Equal(s.T(), 299.0, users[0].TotalSpent)
	assert.NotNil(s.T(), users[0].ActivePlan)
}

func (s *StoreTestSuite) TestGetAdminByUsername() {
	admin, err := s.store.GetAdminByUsername("admin")
	assert.NoError(s.T(), err)
	assert.True(s.T(), admin.ValidatePassword("admin123"))

	_, err = s.store.GetAdminByUsername("ghost")
	assert.ErrorIs(s.T(), err, sql.ErrNoRows)
}
