package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/streamtheme-io/streamtheme/internal/models"
)

// ---- Subscription plans ----

const planColumns = "id, name, description, price, duration_months, is_active, display_order"

func scanPlan(row interface{ Scan(...any) error }) (*models.SubscriptionPlan, error) {
	plan := &models.SubscriptionPlan{}
	err := row.Scan(
		&plan.ID, &plan.Name, &plan.Description, &plan.Price,
		&plan.DurationMonths, &plan.IsActive, &plan.DisplayOrder,
	)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// ListPlans returns plans, optionally filtered to active ones
func (s *Store) ListPlans(activeOnly bool) ([]*models.SubscriptionPlan, error) {
	query := "SELECT " + planColumns + " FROM subscription_plans"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY display_order"

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*models.SubscriptionPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// GetPlan retrieves a plan by ID
func (s *Store) GetPlan(id string) (*models.SubscriptionPlan, error) {
	return scanPlan(s.db.QueryRow(
		"SELECT "+planColumns+" FROM subscription_plans WHERE id = ?", id,
	))
}

// PlanUpdate carries the plan fields an admin may change
type PlanUpdate struct {
	Name           *string  `json:"name"`
	Description    *string  `json:"description"`
	Price          *float64 `json:"price"`
	DurationMonths *int     `json:"duration_months"`
	IsActive       *bool    `json:"is_active"`
	DisplayOrder   *int     `json:"display_order"`
}

// UpdatePlan applies a partial update to a plan
func (s *Store) UpdatePlan(id string, upd PlanUpdate) error {
	var sets []string
	var args []any
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *upd.Price)
	}
	if upd.DurationMonths != nil {
		sets = append(sets, "duration_months = ?")
		args = append(args, *upd.DurationMonths)
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *upd.IsActive)
	}
	if upd.DisplayOrder != nil {
		sets = append(sets, "display_order = ?")
		args = append(args, *upd.DisplayOrder)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	result, err := s.db.Exec(
		"UPDATE subscription_plans SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ---- Layouts ----

const layoutColumns = `id, name, description, thumbnail_url, preview_url, is_active,
	is_featured, display_order, base_price, price_1mo, price_3mo, price_6mo, price_1yr`

func scanLayout(row interface{ Scan(...any) error }) (*models.Layout, error) {
	layout := &models.Layout{}
	err := row.Scan(
		&layout.ID, &layout.Name, &layout.Description, &layout.ThumbnailURL,
		&layout.PreviewURL, &layout.IsActive, &layout.IsFeatured, &layout.DisplayOrder,
		&layout.BasePrice, &layout.Price1Mo, &layout.Price3Mo, &layout.Price6Mo, &layout.Price1Yr,
	)
	if err != nil {
		return nil, err
	}
	return layout, nil
}

// ListLayouts returns layouts, optionally filtered to active ones
func (s *Store) ListLayouts(activeOnly bool) ([]*models.Layout, error) {
	query := "SELECT " + layoutColumns + " FROM layouts"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY display_order"

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var layouts []*models.Layout
	for rows.Next() {
		layout, err := scanLayout(rows)
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, layout)
	}
	return layouts, rows.Err()
}

// GetLayout retrieves a layout by ID
func (s *Store) GetLayout(id string) (*models.Layout, error) {
	return scanLayout(s.db.QueryRow(
		"SELECT "+layoutColumns+" FROM layouts WHERE id = ?", id,
	))
}

// CreateLayout inserts a new layout
func (s *Store) CreateLayout(layout *models.Layout) error {
	_, err := s.db.Exec(
		`INSERT INTO layouts (id, name, description, thumbnail_url, preview_url, is_active,
			is_featured, display_order, base_price, price_1mo, price_3mo, price_6mo, price_1yr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		layout.ID, layout.Name, layout.Description, layout.ThumbnailURL, layout.PreviewURL,
		layout.IsActive, layout.IsFeatured, layout.DisplayOrder, layout.BasePrice,
		layout.Price1Mo, layout.Price3Mo, layout.Price6Mo, layout.Price1Yr,
	)
	return err
}

// LayoutUpdate carries the layout fields an admin may change
type LayoutUpdate struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	ThumbnailURL *string  `json:"thumbnail_url"`
	PreviewURL   *string  `json:"preview_url"`
	IsActive     *bool    `json:"is_active"`
	IsFeatured   *bool    `json:"is_featured"`
	DisplayOrder *int     `json:"display_order"`
	BasePrice    *float64 `json:"base_price"`
	Price1Mo     *float64 `json:"price_1mo"`
	Price3Mo     *float64 `json:"price_3mo"`
	Price6Mo     *float64 `json:"price_6mo"`
	Price1Yr     *float64 `json:"price_1yr"`
}

// UpdateLayout applies a partial update to a layout
func (s *Store) UpdateLayout(id string, upd LayoutUpdate) error {
	var sets []string
	var args []any
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.ThumbnailURL != nil {
		sets = append(sets, "thumbnail_url = ?")
		args = append(args, *upd.ThumbnailURL)
	}
	if upd.PreviewURL != nil {
		sets = append(sets, "preview_url = ?")
		args = append(args, *upd.PreviewURL)
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *upd.IsActive)
	}
	if upd.IsFeatured != nil {
		sets = append(sets, "is_featured = ?")
		args = append(args, *upd.IsFeatured)
	}
	if upd.DisplayOrder != nil {
		sets = append(sets, "display_order = ?")
		args = append(args, *upd.DisplayOrder)
	}
	if upd.BasePrice != nil {
		sets = append(sets, "base_price = ?")
		args = append(args, *upd.BasePrice)
	}
	if upd.Price1Mo != nil {
		sets = append(sets, "price_1mo = ?")
		args = append(args, *upd.Price1Mo)
	}
	if upd.Price3Mo != nil {
		sets = append(sets, "price_3mo = ?")
		args = append(args, *upd.Price3Mo)
	}
	if upd.Price6Mo != nil {
		sets = append(sets, "price_6mo = ?")
		args = append(args, *upd.Price6Mo)
	}
	if upd.Price1Yr != nil {
		sets = append(sets, "price_1yr = ?")
		args = append(args, *upd.Price1Yr)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	result, err := s.db.Exec(
		"UPDATE layouts SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteLayout removes a layout from the catalog
func (s *Store) DeleteLayout(id string) error {
	result, err := s.db.Exec("DELETE FROM layouts WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ---- Products ----

const productColumns = "id, name, description, price, file_url, file_type, thumbnail_url, is_active, created_at"

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID, &product.Name, &product.Description, &product.Price,
		&product.FileURL, &product.FileType, &product.ThumbnailURL,
		&product.IsActive, &product.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts returns products, optionally filtered to active ones
func (s *Store) ListProducts(activeOnly bool) ([]*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(id int64) (*models.Product, error) {
	return scanProduct(s.db.QueryRow(
		"SELECT "+productColumns+" FROM products WHERE id = ?", id,
	))
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(product *models.Product) error {
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.Exec(
		`INSERT INTO products (name, description, price, file_url, file_type, thumbnail_url, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		product.Name, product.Description, product.Price, product.FileURL,
		product.FileType, product.ThumbnailURL, product.IsActive, product.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	product.ID = id
	return nil
}

// ProductUpdate carries the product fields an admin may change
type ProductUpdate struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Price        *float64 `json:"price"`
	FileURL      *string  `json:"file_url"`
	FileType     *string  `json:"file_type"`
	ThumbnailURL *string  `json:"thumbnail_url"`
	IsActive     *bool    `json:"is_active"`
}

// UpdateProduct applies a partial update to a product
func (s *Store) UpdateProduct(id int64, upd ProductUpdate) error {
	var sets []string
	var args []any
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *upd.Price)
	}
	if upd.FileURL != nil {
		sets = append(sets, "file_url = ?")
		args = append(args, *upd.FileURL)
	}
	if upd.FileType != nil {
		sets = append(sets, "file_type = ?")
		args = append(args, *upd.FileType)
	}
	if upd.ThumbnailURL != nil {
		sets = append(sets, "thumbnail_url = ?")
		args = append(args, *upd.ThumbnailURL)
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *upd.IsActive)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	result, err := s.db.Exec(
		"UPDATE products SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(id int64) error {
	result, err := s.db.Exec("DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateProductPurchase records a verified one-time purchase
func (s *Store) CreateProductPurchase(purchase *models.ProductPurchase) error {
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.Exec(
		"INSERT INTO product_purchases (user_id, product_id, transaction_id, price_paid, created_at) VALUES (?, ?, ?, ?, ?)",
		purchase.UserID, purchase.ProductID, purchase.TransactionID, purchase.PricePaid, purchase.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	purchase.ID = id
	return nil
}

// ---- Coupons ----

// ListCoupons returns all coupons joined with their layout names
func (s *Store) ListCoupons() ([]*models.Coupon, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.code, c.discount_type, c.discount_value, c.description,
			c.layout_id, l.name, c.max_uses, c.used_count, c.expiry_date, c.created_at
		FROM coupons c
		LEFT JOIN layouts l ON l.id = c.layout_id
		ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coupons []*models.Coupon
	for rows.Next() {
		coupon := &models.Coupon{}
		err := rows.Scan(
			&coupon.ID, &coupon.Code, &coupon.DiscountType, &coupon.DiscountValue,
			&coupon.Description, &coupon.LayoutID, &coupon.LayoutName,
			&coupon.MaxUses, &coupon.UsedCount, &coupon.ExpiryDate, &coupon.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, coupon)
	}
	return coupons, rows.Err()
}

// CreateCoupon inserts a new coupon
func (s *Store) CreateCoupon(coupon *models.Coupon) error {
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.Exec(
		`INSERT INTO coupons (code, discount_type, discount_value, description, layout_id, max_uses, expiry_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		coupon.Code, coupon.DiscountType, coupon.DiscountValue, coupon.Description,
		coupon.LayoutID, coupon.MaxUses, coupon.ExpiryDate, coupon.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	coupon.ID = id
	return nil
}

// DeleteCoupon removes a coupon
func (s *Store) DeleteCoupon(id int64) error {
	result, err := s.db.Exec("DELETE FROM coupons WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ---- Support queries ----

// CreateSupportQuery stores a message from the public support form
func (s *Store) CreateSupportQuery(query *models.SupportQuery) error {
	if query.CreatedAt.IsZero() {
		query.CreatedAt = time.Now().UTC()
	}
	query.Status = models.SupportStatusOpen
	result, err := s.db.Exec(
		"INSERT INTO support_queries (name, email, subject, message, status, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		query.Name, query.Email, query.Subject, query.Message, query.Status, query.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	query.ID = id
	return nil
}

// ListSupportQueries returns all support queries, newest first
func (s *Store) ListSupportQueries() ([]*models.SupportQuery, error) {
	rows, err := s.db.Query(
		"SELECT id, name, email, subject, message, status, created_at FROM support_queries ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []*models.SupportQuery
	for rows.Next() {
		query := &models.SupportQuery{}
		err := rows.Scan(
			&query.ID, &query.Name, &query.Email, &query.Subject,
			&query.Message, &query.Status, &query.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		queries = append(queries, query)
	}
	return queries, rows.Err()
}

// UpdateSupportQueryStatus sets a support query's status
func (s *Store) UpdateSupportQueryStatus(id int64, status models.SupportStatus) error {
	result, err := s.db.Exec("UPDATE support_queries SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteSupportQuery removes a support query
func (s *Store) DeleteSupportQuery(id int64) error {
	result, err := s.db.Exec("DELETE FROM support_queries WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ---- Admins ----

// GetAdminByUsername retrieves an admin account
func (s *Store) GetAdminByUsername(username string) (*models.Admin, error) {
	admin := &models.Admin{}
	err := s.db.QueryRow(
		"SELECT id, username, password_hash, created_at FROM admins WHERE username = ?",
		username,
	).Scan(&admin.ID, &admin.Username, &admin.PasswordHash, &admin.CreatedAt)
	if err != nil {
		return nil, err
	}
	return admin, nil
}
