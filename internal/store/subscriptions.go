package store

import (
	"time"

	"github.com/streamtheme-io/streamtheme/internal/models"
)

const subscriptionColumns = `id, user_id, plan_id, layout_id, start_date, expiry_date,
	price_paid, order_id, payment_id, status, public_token, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	sub := &models.Subscription{}
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.LayoutID, &sub.StartDate,
		&sub.ExpiryDate, &sub.PricePaid, &sub.OrderID, &sub.PaymentID,
		&sub.Status, &sub.PublicToken, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CreateSubscription inserts a new subscription row
func (s *Store) CreateSubscription(sub *models.Subscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.Exec(
		`INSERT INTO subscriptions (user_id, plan_id, layout_id, start_date, expiry_date,
			price_paid, order_id, payment_id, status, public_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.UserID, sub.PlanID, sub.LayoutID, sub.StartDate, sub.ExpiryDate,
		sub.PricePaid, sub.OrderID, sub.PaymentID, sub.Status, sub.PublicToken, sub.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID = id
	return nil
}

// GetActiveSubscription returns the unexpired ACTIVE subscription with the
// latest expiry for a user, or sql.ErrNoRows
func (s *Store) GetActiveSubscription(userID int64, now time.Time) (*models.Subscription, error) {
	return scanSubscription(s.db.QueryRow(
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ? AND status = 'ACTIVE' AND expiry_date > ?
		ORDER BY expiry_date DESC LIMIT 1`,
		userID, now,
	))
}

// HasActiveSubscriptionForLayout reports whether the user holds an
// unexpired ACTIVE subscription covering the given layout
func (s *Store) HasActiveSubscriptionForLayout(userID int64, layoutID string, now time.Time) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM subscriptions
		WHERE user_id = ? AND layout_id = ? AND status = 'ACTIVE' AND expiry_date > ?`,
		userID, layoutID, now,
	).Scan(&count)
	return count > 0, err
}

// GetSubscriptionByPublicToken retrieves a subscription by its overlay token
func (s *Store) GetSubscriptionByPublicToken(token string) (*models.Subscription, error) {
	return scanSubscription(s.db.QueryRow(
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE public_token = ?",
		token,
	))
}

// ListUserSubscriptions returns all subscriptions for a user, newest first
func (s *Store) ListUserSubscriptions(userID int64) ([]*models.Subscription, error) {
	rows, err := s.db.Query(
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE user_id = ? ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListActiveUserSubscriptions returns the user's unexpired ACTIVE subscriptions
func (s *Store) ListActiveUserSubscriptions(userID int64, now time.Time) ([]*models.Subscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = ? AND status = 'ACTIVE' AND expiry_date > ?
		ORDER BY expiry_date DESC`,
		userID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ExtendSubscription pushes a subscription's expiry forward by whole months
func (s *Store) ExtendSubscription(subID int64, months int) (*models.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = ?", subID,
	))
	if err != nil {
		return nil, err
	}

	sub.ExpiryDate = sub.ExpiryDate.AddDate(0, months, 0)
	_, err = s.db.Exec(
		"UPDATE subscriptions SET expiry_date = ?, status = 'ACTIVE' WHERE id = ?",
		sub.ExpiryDate, sub.ID,
	)
	if err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatusActive
	return sub, nil
}

// RevokeActiveSubscriptions expires all of a user's live subscriptions
// immediately. Returns the number of rows revoked.
func (s *Store) RevokeActiveSubscriptions(userID int64, now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE subscriptions SET status = 'EXPIRED', expiry_date = ?
		WHERE user_id = ? AND status = 'ACTIVE' AND expiry_date > ?`,
		now, userID, now,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountActiveSubscriptions returns the number of live subscriptions
func (s *Store) CountActiveSubscriptions(now time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM subscriptions WHERE status = 'ACTIVE' AND expiry_date > ?",
		now,
	).Scan(&count)
	return count, err
}

// TotalRevenue returns the sum paid across all subscriptions
func (s *Store) TotalRevenue() (float64, error) {
	var revenue float64
	err := s.db.QueryRow("SELECT COALESCE(SUM(price_paid), 0) FROM subscriptions").Scan(&revenue)
	return revenue, err
}

// CreateTransaction appends a payment verification record
func (s *Store) CreateTransaction(tx *models.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.Exec(
		"INSERT INTO transactions (user_id, order_id, payment_id, amount, status, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		tx.UserID, tx.OrderID, tx.PaymentID, tx.Amount, tx.Status, tx.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	tx.ID = id
	return nil
}

// ListTransactions returns all transactions joined with user identity
func (s *Store) ListTransactions() ([]*models.Transaction, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.user_id, t.order_id, t.payment_id, t.amount, t.status, t.created_at,
			u.full_name, u.email
		FROM transactions t
		LEFT JOIN users u ON u.id = t.user_id
		ORDER BY t.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx := &models.Transaction{}
		err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.OrderID, &tx.PaymentID, &tx.Amount,
			&tx.Status, &tx.CreatedAt, &tx.UserName, &tx.UserEmail,
		)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
