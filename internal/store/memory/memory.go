package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"botica/backend/internal/domain"
	"botica/backend/internal/store"
	"botica/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	clients         map[string]domain.Client
	salesByID       map[string]*domain.Sale
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "seller123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_SELLER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"seller", sellerPwd, "seller"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	soon := now.AddDate(0, 0, 20)
	later := now.AddDate(1, 0, 0)

	products := []domain.Product{
		{ID: "prod-paracetamol-500", Name: "Paracetamol 500mg x20", Category: "analgesic", PriceCents: 450, Stock: 140, ReorderLevel: 20, ExpiryDate: &later},
		{ID: "prod-ibuprofen-400", Name: "Ibuprofeno 400mg x10", Category: "analgesic", PriceCents: 620, Stock: 90, ReorderLevel: 15, ExpiryDate: &later},
		{ID: "prod-amoxicillin-500", Name: "Amoxicilina 500mg x12", Category: "antibiotic", PriceCents: 1850, Stock: 60, ReorderLevel: 10, ExpiryDate: &soon},
		{ID: "prod-loratadine-10", Name: "Loratadina 10mg x10", Category: "antihistamine", PriceCents: 780, Stock: 75, ReorderLevel: 12, ExpiryDate: &later},
		{ID: "prod-omeprazole-20", Name: "Omeprazol 20mg x14", Category: "antacid", PriceCents: 1240, Stock: 50, ReorderLevel: 10, ExpiryDate: &later},
		{ID: "prod-vitamin-c", Name: "Vitamina C 1g efervescente", Category: "supplement", PriceCents: 980, Stock: 110, ReorderLevel: 15},
		{ID: "prod-saline-500", Name: "Suero fisiologico 500ml", Category: "solution", PriceCents: 560, Stock: 45, ReorderLevel: 8, ExpiryDate: &later},
		{ID: "prod-gauze-10", Name: "Gasas esteriles x10", Category: "first-aid", PriceCents: 340, Stock: 200, ReorderLevel: 25},
		{ID: "prod-alcohol-70", Name: "Alcohol 70% 250ml", Category: "antiseptic", PriceCents: 410, Stock: 130, ReorderLevel: 20},
		{ID: "prod-cough-syrup", Name: "Jarabe para la tos 120ml", Category: "respiratory", PriceCents: 1520, Stock: 35, ReorderLevel: 10, ExpiryDate: &soon},
	}

	clients := []domain.Client{
		{ID: "cli-walkin", Name: "Cliente General", Document: "00000000"},
		{ID: "cli-maria", Name: "Maria Fernandez", Document: "45821673", Email: "maria.fernandez@example.com", Phone: "987654321"},
		{ID: "cli-jorge", Name: "Jorge Castillo", Document: "72910485", Email: "jorge.castillo@example.com"},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		productMap[p.ID] = p
	}
	clientMap := make(map[string]domain.Client, len(clients))
	for _, c := range clients {
		c.CreatedAt = now
		c.UpdatedAt = now
		clientMap[c.ID] = c
	}

	return &Store{
		products:        productMap,
		clients:         clientMap,
		salesByID:       make(map[string]*domain.Sale),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	s.products[product.ID] = cloneProduct(product)
	created := cloneProduct(product)
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrProductNotFound
	}
	copyProduct := cloneProduct(product)
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrProductNotFound
	}
	product.Stock = current.Stock
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()

	s.products[product.ID] = cloneProduct(product)
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrProductNotFound
	}
	for _, sale := range s.salesByID {
		for _, item := range sale.Items {
			if item.ProductID == id {
				return store.ErrProductHasSales
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrProductNotFound
	}
	if product.Stock+delta < 0 {
		return nil, &store.InsufficientStockError{ProductID: id, Requested: -delta, Available: product.Stock}
	}
	product.Stock += delta
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product

	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) ListLowStock(_ context.Context, threshold int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 32)
	for _, p := range s.products {
		limit := p.ReorderLevel
		if threshold > 0 {
			limit = threshold
		}
		if p.Stock <= limit {
			products = append(products, cloneProduct(p))
		}
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Stock == b.Stock {
			return cmpString(a.Name, b.Name)
		}
		if a.Stock < b.Stock {
			return -1
		}
		return 1
	})
	return products, nil
}

func (s *Store) ListNearExpiry(_ context.Context, until time.Time) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := dateUTC(until)
	products := make([]domain.Product, 0, 32)
	for _, p := range s.products {
		if p.ExpiryDate == nil {
			continue
		}
		if dateUTC(*p.ExpiryDate).After(cutoff) {
			continue
		}
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.ExpiryDate.Equal(*b.ExpiryDate) {
			return cmpString(a.Name, b.Name)
		}
		if a.ExpiryDate.Before(*b.ExpiryDate) {
			return -1
		}
		return 1
	})
	return products, nil
}

func (s *Store) ListClients(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	slices.SortFunc(clients, func(a, b domain.Client) int {
		return cmpString(a.Name, b.Name)
	})
	return clients, nil
}

func (s *Store) CreateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.clients {
		if existing.Document == client.Document {
			return nil, store.ErrDuplicateIdentity
		}
		if client.Email != "" && existing.Email == client.Email {
			return nil, store.ErrDuplicateIdentity
		}
	}

	if client.ID == "" {
		client.ID = xid.New("cli")
	}
	now := time.Now().UTC()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	s.clients[client.ID] = client
	created := client
	return &created, nil
}

func (s *Store) GetClientByID(_ context.Context, id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, exists := s.clients[id]
	if !exists {
		return nil, store.ErrClientNotFound
	}
	copyClient := client
	return &copyClient, nil
}

func (s *Store) UpdateClient(_ context.Context, client domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.clients[client.ID]
	if !exists {
		return nil, store.ErrClientNotFound
	}
	for id, existing := range s.clients {
		if id == client.ID {
			continue
		}
		if client.Email != "" && existing.Email == client.Email {
			return nil, store.ErrDuplicateIdentity
		}
	}
	client.Document = current.Document
	client.CreatedAt = current.CreatedAt
	client.UpdatedAt = time.Now().UTC()

	s.clients[client.ID] = client
	updated := client
	return &updated, nil
}

func (s *Store) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[id]; !exists {
		return store.ErrClientNotFound
	}
	for _, sale := range s.salesByID {
		if sale.ClientID == id {
			return store.ErrClientHasSales
		}
	}
	delete(s.clients, id)
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyOrder
	}
	client, exists := s.clients[sale.ClientID]
	if !exists {
		return nil, store.ErrClientNotFound
	}

	// Availability is checked against the summed quantity per product so
	// duplicate line items cannot oversell a shared stock pool.
	requested := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Qty < 1 {
			return nil, store.ErrEmptyOrder
		}
		requested[item.ProductID] += item.Qty
	}
	for productID, qty := range requested {
		product, exists := s.products[productID]
		if !exists {
			return nil, store.ErrProductNotFound
		}
		if product.Stock < qty {
			return nil, &store.InsufficientStockError{ProductID: productID, Requested: qty, Available: product.Stock}
		}
	}

	total := int64(0)
	pricedItems := make([]domain.SaleLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		product := s.products[item.ProductID]
		line := domain.SaleLine{
			ProductID:      item.ProductID,
			ProductName:    product.Name,
			Qty:            item.Qty,
			UnitPriceCents: product.PriceCents,
			SubtotalCents:  product.PriceCents * int64(item.Qty),
		}
		total += line.SubtotalCents
		pricedItems = append(pricedItems, line)
	}

	now := time.Now().UTC()
	for productID, qty := range requested {
		product := s.products[productID]
		product.Stock -= qty
		product.UpdatedAt = now
		s.products[productID] = product
	}

	sale.Items = pricedItems
	sale.TotalCents = total
	sale.ClientName = client.Name
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	saved := cloneSale(&sale)
	s.salesByID[sale.ID] = saved
	return cloneSale(saved), nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrSaleNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	result := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneSale(sale))
	}

	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) VoidSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrSaleNotFound
	}

	// Resolve every product up front so a missing row cannot leave a
	// partially restocked catalog behind.
	for _, item := range sale.Items {
		if _, exists := s.products[item.ProductID]; !exists {
			return nil, store.ErrProductNotFound
		}
	}

	now := time.Now().UTC()
	for _, item := range sale.Items {
		product := s.products[item.ProductID]
		product.Stock += item.Qty
		product.UpdatedAt = now
		s.products[item.ProductID] = product
	}

	delete(s.salesByID, id)
	return cloneSale(sale), nil
}

func (s *Store) DailyTotal(_ context.Context, day time.Time) (domain.PeriodTotal, error) {
	from := dateUTC(day)
	to := from.AddDate(0, 0, 1)
	return s.periodTotal(from.Format("2006-01-02"), from, to), nil
}

func (s *Store) MonthlyTotal(_ context.Context, month time.Time) (domain.PeriodTotal, error) {
	m := month.UTC()
	from := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	return s.periodTotal(from.Format("2006-01"), from, to), nil
}

func (s *Store) periodTotal(period string, from time.Time, to time.Time) domain.PeriodTotal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := domain.PeriodTotal{Period: period}
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		total.Sales++
		total.TotalCents += sale.TotalCents
	}
	return total
}

func (s *Store) SalesReport(_ context.Context) (domain.SalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.SalesReport{
		TotalsByDay: make([]domain.DailyBucket, 0, 32),
	}
	byDay := map[string]*domain.DailyBucket{}
	for _, sale := range s.salesByID {
		report.TotalAllTimeCents += sale.TotalCents
		day := sale.CreatedAt.UTC().Format("2006-01-02")
		bucket := byDay[day]
		if bucket == nil {
			bucket = &domain.DailyBucket{Date: day}
			byDay[day] = bucket
		}
		bucket.Sales++
		bucket.TotalCents += sale.TotalCents
	}

	for _, bucket := range byDay {
		report.TotalsByDay = append(report.TotalsByDay, *bucket)
	}
	slices.SortFunc(report.TotalsByDay, func(a, b domain.DailyBucket) int {
		return cmpString(a.Date, b.Date)
	})
	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrDuplicateUser
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrDuplicateUser
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "seller"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrUserNotFound
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrUserNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func dateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneProduct(src domain.Product) domain.Product {
	dup := src
	if src.ExpiryDate != nil {
		expiry := src.ExpiryDate.UTC()
		dup.ExpiryDate = &expiry
	}
	return dup
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.SaleLine, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}
