package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User represents a streamer account in the database
type User struct {
	ID                  int64      `json:"id" db:"id"`
	FullName            string     `json:"name" db:"full_name"`
	Email               string     `json:"email" db:"email"`
	PasswordHash        string     `json:"-" db:"password_hash"`
	PhoneNumber         *string    `json:"phone" db:"phone_number"`
	Age                 *int       `json:"age" db:"age"`
	IsEmailVerified     bool       `json:"is_email_verified" db:"is_email_verified"`
	VerificationToken   *string    `json:"-" db:"verification_token"`
	TrialUsed           bool       `json:"trial_used" db:"trial_used"`
	TrialExpiry         *time.Time `json:"trial_expiry" db:"trial_expiry"`
	PasswordResetToken  *string    `json:"-" db:"password_reset_token"`
	PasswordResetExpiry *time.Time `json:"-" db:"password_reset_expiry"`
	IsActive            bool       `json:"is_active" db:"is_active"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// SubscriptionPlan is a static catalog entry managed by admins
type SubscriptionPlan struct {
	ID             string  `json:"id" db:"id"`
	Name           string  `json:"name" db:"name"`
	Description    *string `json:"description" db:"description"`
	Price          float64 `json:"price" db:"price"`
	DurationMonths int     `json:"duration_months" db:"duration_months"`
	IsActive       bool    `json:"is_active" db:"is_active"`
	DisplayOrder   int     `json:"display_order" db:"display_order"`
}

// Subscription is one purchased or granted access grant. Rows are
// append-only for their payment fields; only status and expiry_date
// ever change after insert (revocation).
type Subscription struct {
	ID          int64              `json:"id" db:"id"`
	UserID      int64              `json:"user_id" db:"user_id"`
	PlanID      string             `json:"plan_id" db:"plan_id"`
	LayoutID    string             `json:"layout_id" db:"layout_id"`
	StartDate   time.Time          `json:"start_date" db:"start_date"`
	ExpiryDate  time.Time          `json:"expiry_date" db:"expiry_date"`
	PricePaid   float64            `json:"price_paid" db:"price_paid"`
	OrderID     *string            `json:"order_id" db:"order_id"`
	PaymentID   *string            `json:"payment_id" db:"payment_id"`
	Status      SubscriptionStatus `json:"status" db:"status"`
	PublicToken string             `json:"public_token" db:"public_token"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
}

// Layout is a theme catalog entry
type Layout struct {
	ID           string   `json:"id" db:"id"`
	Name         string   `json:"name" db:"name"`
	Description  *string  `json:"description" db:"description"`
	ThumbnailURL *string  `json:"thumbnail_url" db:"thumbnail_url"`
	PreviewURL   *string  `json:"preview_url" db:"preview_url"`
	IsActive     bool     `json:"is_active" db:"is_active"`
	IsFeatured   bool     `json:"is_featured" db:"is_featured"`
	DisplayOrder int      `json:"display_order" db:"display_order"`
	BasePrice    float64  `json:"base_price" db:"base_price"`
	Price1Mo     *float64 `json:"price_1mo" db:"price_1mo"`
	Price3Mo     *float64 `json:"price_3mo" db:"price_3mo"`
	Price6Mo     *float64 `json:"price_6mo" db:"price_6mo"`
	Price1Yr     *float64 `json:"price_1yr" db:"price_1yr"`
}

// ThemeCustomization is one saved visual configuration per (user,
// layout) pair. The session-lock fields are mutated by public viewers,
// never by the owner.
type ThemeCustomization struct {
	ID              int64      `json:"id" db:"id"`
	UserID          int64      `json:"user_id" db:"user_id"`
	LayoutID        string     `json:"layout_id" db:"layout_id"`
	Config          string     `json:"config" db:"config"` // JSON blob of style parameters
	PublicToken     string     `json:"public_token" db:"public_token"`
	ActiveSessionID *string    `json:"active_session_id" db:"active_session_id"`
	LastHeartbeat   *time.Time `json:"last_heartbeat" db:"last_heartbeat"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Product is a one-time digital good
type Product struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Description  *string   `json:"description" db:"description"`
	Price        float64   `json:"price" db:"price"`
	FileURL      string    `json:"file_url" db:"file_url"`
	FileType     *string   `json:"file_type" db:"file_type"`
	ThumbnailURL *string   `json:"thumbnail_url" db:"thumbnail_url"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ProductPurchase records a verified one-time purchase
type ProductPurchase struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	ProductID     int64     `json:"product_id" db:"product_id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	PricePaid     float64   `json:"price_paid" db:"price_paid"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Coupon is an admin-managed discount code
type Coupon struct {
	ID            int64        `json:"id" db:"id"`
	Code          string       `json:"code" db:"code"`
	DiscountType  DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue float64      `json:"discount_value" db:"discount_value"`
	Description   *string      `json:"description" db:"description"`
	LayoutID      *string      `json:"layout_id" db:"layout_id"`
	LayoutName    *string      `json:"layout_name,omitempty" db:"layout_name"`
	MaxUses       int          `json:"max_uses" db:"max_uses"`
	UsedCount     int          `json:"used_count" db:"used_count"`
	ExpiryDate    *time.Time   `json:"expiry_date" db:"expiry_date"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// Admin is a back-office account, separate from users
type Admin struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SupportQuery is a message submitted through the public support form
type SupportQuery struct {
	ID        int64         `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Email     string        `json:"email" db:"email"`
	Subject   *string       `json:"subject" db:"subject"`
	Message   string        `json:"message" db:"message"`
	Status    SupportStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// Transaction is a bookkeeping record of a payment verification attempt
type Transaction struct {
	ID        int64     `json:"id" db:"id"`
	UserID    *int64    `json:"user_id" db:"user_id"`
	OrderID   *string   `json:"order_id" db:"order_id"`
	PaymentID *string   `json:"payment_id" db:"payment_id"`
	Amount    *float64  `json:"amount" db:"amount"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UserName  *string   `json:"user_name,omitempty" db:"user_name"`
	UserEmail *string   `json:"user_email,omitempty" db:"user_email"`
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "ACTIVE"
	SubscriptionStatusExpired SubscriptionStatus = "EXPIRED"
)

type DiscountType string

const (
	DiscountTypePercent DiscountType = "PERCENT"
	DiscountTypeFixed   DiscountType = "FIXED"
)

type SupportStatus string

const (
	SupportStatusOpen   SupportStatus = "OPEN"
	SupportStatusClosed SupportStatus = "CLOSED"
)

// AccessType classifies the kind of access a user currently holds
type AccessType string

const (
	AccessTypeSubscription AccessType = "SUBSCRIPTION"
	AccessTypeTrial        AccessType = "TRIAL"
	AccessTypeNone         AccessType = "NONE"
)

// DefaultLayoutID is the layout a trial grants access to
const DefaultLayoutID = "master-standard"

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ValidatePassword checks if the provided password matches the user's hash
func (u *User) ValidatePassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// ValidatePassword checks if the provided password matches the admin's hash
func (a *Admin) ValidatePassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
	return err == nil
}

// IsExpired reports whether the subscription's expiry is in the past.
// Expiration is computed against "now" at read time, never swept by a job.
func (s *Subscription) IsExpired(now time.Time) bool {
	return !s.ExpiryDate.After(now)
}

// TrialActive reports whether the user's trial window is still open
func (u *User) TrialActive(now time.Time) bool {
	return u.TrialExpiry != nil && u.TrialExpiry.After(now)
}
