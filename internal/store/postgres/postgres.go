package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"botica/backend/internal/domain"
	"botica/backend/internal/store"
	"botica/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, name, COALESCE(description,''), COALESCE(category,''), price_cents, stock, reorder_level, expiry_date, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	var expiry sql.NullTime
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents, &p.Stock, &p.ReorderLevel, &expiry, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if expiry.Valid {
		e := dateUTC(expiry.Time)
		p.ExpiryDate = &e
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	if product.ReorderLevel < 1 {
		product.ReorderLevel = domain.DefaultReorderLevel
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, category, price_cents, stock, reorder_level, expiry_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, product.ID, product.Name, nullIfEmpty(product.Description), nullIfEmpty(product.Category),
		product.PriceCents, product.Stock, product.ReorderLevel, nullDate(product.ExpiryDate),
		product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, category = $4, price_cents = $5, reorder_level = $6, expiry_date = $7, updated_at = $8
		WHERE id = $1
	`, product.ID, product.Name, nullIfEmpty(product.Description), nullIfEmpty(product.Category),
		product.PriceCents, product.ReorderLevel, nullDate(product.ExpiryDate), product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrProductNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var referenced bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM sale_items WHERE product_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return store.ErrProductHasSales
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrProductNotFound
	}

	return tx.Commit()
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current int
	err = tx.QueryRowContext(ctx, `
		SELECT stock
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}
	if current+delta < 0 {
		return nil, &store.InsufficientStockError{ProductID: id, Requested: -delta, Available: current}
	}

	row := tx.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns+`
	`, id, delta)
	product, err := scanProduct(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Store) ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE stock <= reorder_level
		ORDER BY stock ASC, name
	`
	args := []any{}
	if threshold > 0 {
		query = `
			SELECT ` + productColumns + `
			FROM products
			WHERE stock <= $1
			ORDER BY stock ASC, name
		`
		args = append(args, threshold)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListNearExpiry(ctx context.Context, until time.Time) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE expiry_date IS NOT NULL AND expiry_date <= $1
		ORDER BY expiry_date ASC, name
	`, dateUTC(until))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

const clientColumns = `id, name, document, COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''), created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (*domain.Client, error) {
	var c domain.Client
	if err := row.Scan(&c.ID, &c.Name, &c.Document, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0, 64)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *Store) CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	now := time.Now().UTC()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, document, email, phone, address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, client.ID, client.Name, client.Document, nullIfEmpty(client.Email),
		nullIfEmpty(client.Phone), nullIfEmpty(client.Address), client.CreatedAt, client.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateIdentity
		}
		return nil, err
	}

	created := client
	return &created, nil
}

func (s *Store) GetClientByID(ctx context.Context, id string) (*domain.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE id = $1
	`, id)
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrClientNotFound
		}
		return nil, err
	}
	return client, nil
}

func (s *Store) UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error) {
	client.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET name = $2, email = $3, phone = $4, address = $5, updated_at = $6
		WHERE id = $1
	`, client.ID, client.Name, nullIfEmpty(client.Email), nullIfEmpty(client.Phone),
		nullIfEmpty(client.Address), client.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateIdentity
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrClientNotFound
	}

	updated := client
	return &updated, nil
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var referenced bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM sales WHERE client_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return store.ErrClientHasSales
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrClientNotFound
	}

	return tx.Commit()
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyOrder
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	productIDs := uniqueProductIDs(sale.Items)

	productRows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, price_cents, stock
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, productIDs)
	if err != nil {
		return nil, err
	}
	type lockedProduct struct {
		name       string
		priceCents int64
		stock      int
	}
	productMap := make(map[string]lockedProduct, len(productIDs))
	for productRows.Next() {
		var id string
		var p lockedProduct
		if err := productRows.Scan(&id, &p.name, &p.priceCents, &p.stock); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		productMap[id] = p
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	// Duplicate line items share one stock pool, so availability is
	// checked against the summed quantity per product before any write.
	requested := make(map[string]int, len(productIDs))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrEmptyOrder
		}
		requested[item.ProductID] += item.Qty
	}
	for _, id := range productIDs {
		product, exists := productMap[id]
		if !exists {
			return nil, store.ErrProductNotFound
		}
		if product.stock < requested[id] {
			return nil, &store.InsufficientStockError{ProductID: id, Requested: requested[id], Available: product.stock}
		}
	}

	totalCents := int64(0)
	pricedItems := make([]domain.SaleLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		product := productMap[item.ProductID]
		line := domain.SaleLine{
			ProductID:      item.ProductID,
			ProductName:    product.name,
			Qty:            item.Qty,
			UnitPriceCents: product.priceCents,
			SubtotalCents:  product.priceCents * int64(item.Qty),
		}
		totalCents += line.SubtotalCents
		pricedItems = append(pricedItems, line)
	}

	for _, id := range productIDs {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2
		`, requested[id], id)
		if err != nil {
			return nil, err
		}
	}

	sale.TotalCents = totalCents
	sale.Items = pricedItems
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, client_id, payment_method, status, total_cents, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, sale.ID, sale.ClientID, sale.PaymentMethod, sale.Status, sale.TotalCents, sale.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, store.ErrClientNotFound
		}
		return nil, err
	}

	for _, item := range sale.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4)
		`, sale.ID, item.ProductID, item.Qty, item.UnitPriceCents)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.client_id, COALESCE(c.name,''), s.payment_method, s.status, s.total_cents, s.created_at
		FROM sales s
		LEFT JOIN clients c ON c.id = s.client_id
		WHERE s.id = $1
	`, id).Scan(&sale.ID, &sale.ClientID, &sale.ClientName, &sale.PaymentMethod, &sale.Status, &sale.TotalCents, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSaleNotFound
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, COALESCE(p.name,''), si.qty, si.unit_price_cents
		FROM sale_items si
		LEFT JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.id ASC
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleLine, 0, 8)
	for rows.Next() {
		var item domain.SaleLine
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Qty, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		item.SubtotalCents = item.UnitPriceCents * int64(item.Qty)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sale.Items = items

	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.client_id, COALESCE(c.name,''), s.payment_method, s.status, s.total_cents, s.created_at
		FROM sales s
		LEFT JOIN clients c ON c.id = s.client_id
		WHERE s.created_at >= $1 AND s.created_at < $2
		ORDER BY s.created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.ClientID, &sale.ClientName, &sale.PaymentMethod, &sale.Status, &sale.TotalCents, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return sales, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT si.sale_id, si.product_id, COALESCE(p.name,''), si.qty, si.unit_price_cents
		FROM sale_items si
		LEFT JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = ANY($1)
		ORDER BY si.id ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	itemMap := make(map[string][]domain.SaleLine, len(ids))
	for itemRows.Next() {
		var saleID string
		var item domain.SaleLine
		if err := itemRows.Scan(&saleID, &item.ProductID, &item.ProductName, &item.Qty, &item.UnitPriceCents); err != nil {
			return nil, err
		}
		item.SubtotalCents = item.UnitPriceCents * int64(item.Qty)
		itemMap[saleID] = append(itemMap[saleID], item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		sales[i].Items = itemMap[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) VoidSale(ctx context.Context, id string) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var sale domain.Sale
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, client_id, payment_method, status, total_cents, created_at
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&sale.ID, &sale.ClientID, &sale.PaymentMethod, &sale.Status, &sale.TotalCents, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSaleNotFound
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT product_id, qty, unit_price_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	items := make([]domain.SaleLine, 0, 8)
	for itemRows.Next() {
		var item domain.SaleLine
		if err := itemRows.Scan(&item.ProductID, &item.Qty, &item.UnitPriceCents); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		item.SubtotalCents = item.UnitPriceCents * int64(item.Qty)
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()
	sale.Items = items

	for _, item := range items {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + $1, updated_at = now()
			WHERE id = $2
		`, item.Qty, item.ProductID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrProductNotFound
		}
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (s *Store) DailyTotal(ctx context.Context, day time.Time) (domain.PeriodTotal, error) {
	from := dateUTC(day)
	to := from.AddDate(0, 0, 1)
	return s.periodTotal(ctx, from.Format("2006-01-02"), from, to)
}

func (s *Store) MonthlyTotal(ctx context.Context, month time.Time) (domain.PeriodTotal, error) {
	m := month.UTC()
	from := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	return s.periodTotal(ctx, from.Format("2006-01"), from, to)
}

func (s *Store) periodTotal(ctx context.Context, period string, from time.Time, to time.Time) (domain.PeriodTotal, error) {
	total := domain.PeriodTotal{Period: period}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint, COALESCE(SUM(total_cents),0)::bigint
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&total.Sales, &total.TotalCents)
	return total, err
}

func (s *Store) SalesReport(ctx context.Context) (domain.SalesReport, error) {
	report := domain.SalesReport{
		TotalsByDay: make([]domain.DailyBucket, 0, 32),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents),0)::bigint
		FROM sales
	`).Scan(&report.TotalAllTimeCents)
	if err != nil {
		return report, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COALESCE(SUM(total_cents),0)::bigint,
			COUNT(*)::bigint
		FROM sales
		GROUP BY day
		ORDER BY day ASC
	`)
	if err != nil {
		return report, err
	}
	defer rows.Close()

	for rows.Next() {
		var bucket domain.DailyBucket
		if err := rows.Scan(&bucket.Date, &bucket.TotalCents, &bucket.Sales); err != nil {
			return report, err
		}
		report.TotalsByDay = append(report.TotalsByDay, bucket)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}

	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrDuplicateUser
	}
	if user.Role == "" {
		user.Role = "seller"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrUserNotFound
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func uniqueProductIDs(items []domain.SaleLine) []string {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			continue
		}
		set[item.ProductID] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func dateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return dateUTC(*val)
}
