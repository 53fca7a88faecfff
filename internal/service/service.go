package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"botica/backend/internal/advisor"
	"botica/backend/internal/domain"
	"botica/backend/internal/store"
	"botica/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// ErrInvalidInput marks request validation failures so the HTTP layer can
// map them to a 400 without inspecting message text.
var ErrInvalidInput = errors.New("invalid input")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}

type Service struct {
	repo              store.Repository
	advisor           *advisor.Engine
	expiryHorizonDays int
}

// New builds the service. expiryHorizonDays is the near-expiry lookahead
// used when a request does not specify one; non-positive values fall back
// to domain.DefaultExpiryHorizonDays.
func New(repo store.Repository, advisorEngine *advisor.Engine, expiryHorizonDays int) *Service {
	if expiryHorizonDays < 1 {
		expiryHorizonDays = domain.DefaultExpiryHorizonDays
	}
	return &Service{repo: repo, advisor: advisorEngine, expiryHorizonDays: expiryHorizonDays}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)

	if req.Name == "" {
		return domain.Product{}, invalidf("product name is required")
	}
	if req.PriceCents < 1 {
		return domain.Product{}, invalidf("price must be positive")
	}
	if req.Stock < 0 || req.ReorderLevel < 0 {
		return domain.Product{}, invalidf("stock and reorder level cannot be negative")
	}

	expiry, err := parseOptionalDate(req.ExpiryDate)
	if err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:           xid.New("prod"),
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		PriceCents:   req.PriceCents,
		Stock:        req.Stock,
		ReorderLevel: req.ReorderLevel,
		ExpiryDate:   expiry,
	}
	if product.ReorderLevel < 1 {
		product.ReorderLevel = domain.DefaultReorderLevel
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.Stock))
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrProductNotFound
	}
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrProductNotFound
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, invalidf("product name is required")
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, invalidf("price must be positive")
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.ReorderLevel != nil {
		if *req.ReorderLevel < 0 {
			return domain.Product{}, invalidf("reorder level cannot be negative")
		}
		updated.ReorderLevel = *req.ReorderLevel
	}
	if req.ExpiryDate != nil {
		expiry, err := parseOptionalDate(*req.ExpiryDate)
		if err != nil {
			return domain.Product{}, err
		}
		updated.ExpiryDate = expiry
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("price=%d,reorder=%d", saved.PriceCents, saved.ReorderLevel))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrProductNotFound
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

func (s *Service) AdjustStock(ctx context.Context, id string, req domain.StockAdjustRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrProductNotFound
	}
	if req.Delta == 0 {
		return domain.Product{}, invalidf("delta must be non-zero")
	}

	updated, err := s.repo.AdjustStock(ctx, id, req.Delta)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "stock_adjust", "product", id, fmt.Sprintf("delta=%d,stock=%d,reason=%s", req.Delta, updated.Stock, strings.TrimSpace(req.Reason)))
	return *updated, nil
}

// ListLowStock returns products at or below the threshold. A non-positive
// threshold falls back to each product's own reorder level.
func (s *Service) ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	return s.repo.ListLowStock(ctx, threshold)
}

// ListNearExpiry returns products expiring within horizonDays. Non-positive
// values fall back to the configured default horizon.
func (s *Service) ListNearExpiry(ctx context.Context, horizonDays int) ([]domain.Product, error) {
	if horizonDays < 1 {
		horizonDays = s.expiryHorizonDays
	}
	until := time.Now().UTC().AddDate(0, 0, horizonDays)
	return s.repo.ListNearExpiry(ctx, until)
}

// StockAdvisory compiles low-stock and expiry alerts for the whole catalog.
func (s *Service) StockAdvisory(ctx context.Context, horizonDays int) (domain.StockAdvisory, error) {
	if s.advisor == nil {
		return domain.StockAdvisory{}, fmt.Errorf("advisory engine not configured")
	}
	if horizonDays < 1 {
		horizonDays = s.expiryHorizonDays
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.StockAdvisory{}, err
	}
	return s.advisor.Advise(ctx, products, horizonDays), nil
}

func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.ListClients(ctx)
}

func (s *Service) CreateClient(ctx context.Context, req domain.ClientCreateRequest) (domain.Client, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Document = strings.TrimSpace(req.Document)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Name == "" {
		return domain.Client{}, invalidf("client name is required")
	}
	if req.Document == "" {
		return domain.Client{}, invalidf("client document is required")
	}

	client := domain.Client{
		ID:       xid.New("cli"),
		Name:     req.Name,
		Document: req.Document,
		Email:    req.Email,
		Phone:    strings.TrimSpace(req.Phone),
		Address:  strings.TrimSpace(req.Address),
	}

	created, err := s.repo.CreateClient(ctx, client)
	if err != nil {
		return domain.Client{}, err
	}

	s.logAudit(ctx, "client_create", "client", created.ID, fmt.Sprintf("document=%s", created.Document))
	return *created, nil
}

func (s *Service) GetClient(ctx context.Context, id string) (domain.Client, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Client{}, store.ErrClientNotFound
	}
	client, err := s.repo.GetClientByID(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}
	return *client, nil
}

func (s *Service) UpdateClient(ctx context.Context, id string, req domain.ClientUpdateRequest) (domain.Client, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Client{}, store.ErrClientNotFound
	}

	existing, err := s.repo.GetClientByID(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Client{}, invalidf("client name is required")
		}
		updated.Name = name
	}
	if req.Email != nil {
		updated.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}

	saved, err := s.repo.UpdateClient(ctx, updated)
	if err != nil {
		return domain.Client{}, err
	}

	s.logAudit(ctx, "client_update", "client", saved.ID, "")
	return *saved, nil
}

func (s *Service) DeleteClient(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrClientNotFound
	}

	if err := s.repo.DeleteClient(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "client_delete", "client", id, "")
	return nil
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return domain.Sale{}, invalidf("unsupported payment method %q", req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return domain.Sale{}, store.ErrEmptyOrder
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Qty < 1 {
			return domain.Sale{}, store.ErrEmptyOrder
		}
	}

	if _, err := s.repo.GetClientByID(ctx, req.ClientID); err != nil {
		return domain.Sale{}, err
	}

	// Line items pass through unmerged; the store validates availability
	// against summed per-product quantities and snapshots unit prices.
	lines := make([]domain.SaleLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.SaleLine{ProductID: strings.TrimSpace(item.ProductID), Qty: item.Qty})
	}

	sale := domain.Sale{
		ID:            xid.New("sale"),
		ClientID:      req.ClientID,
		PaymentMethod: req.PaymentMethod,
		Status:        domain.SaleStatusCompleted,
		CreatedAt:     time.Now().UTC(),
		Items:         lines,
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("client=%s,total=%d,items=%d,payment=%s", created.ClientID, created.TotalCents, len(created.Items), created.PaymentMethod))
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrSaleNotFound
	}
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// ListSales returns sales for the given day, or the most recent sales when
// date is empty.
func (s *Service) ListSales(ctx context.Context, date string, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 200
	}

	var from, to time.Time
	if strings.TrimSpace(date) == "" {
		to = time.Now().UTC().Add(time.Minute)
		from = to.AddDate(-10, 0, 0)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, invalidf("invalid date %q, want YYYY-MM-DD", date)
		}
		from = parsed.UTC()
		to = from.AddDate(0, 0, 1)
	}

	return s.repo.ListSales(ctx, from, to, limit)
}

func (s *Service) VoidSale(ctx context.Context, id string, reason string) (domain.VoidSaleResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.VoidSaleResponse{}, store.ErrSaleNotFound
	}
	if strings.TrimSpace(reason) == "" {
		reason = "unspecified"
	}

	voided, err := s.repo.VoidSale(ctx, id)
	if err != nil {
		return domain.VoidSaleResponse{}, err
	}

	voidedAt := time.Now().UTC()
	s.logAudit(ctx, "sale_void", "sale", voided.ID, fmt.Sprintf("total=%d,reason=%s", voided.TotalCents, strings.TrimSpace(reason)))

	return domain.VoidSaleResponse{
		SaleID:   voided.ID,
		VoidedAt: voidedAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) DailyTotal(ctx context.Context, date string) (domain.PeriodTotal, error) {
	day := time.Now().UTC()
	if strings.TrimSpace(date) != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return domain.PeriodTotal{}, invalidf("invalid date %q, want YYYY-MM-DD", date)
		}
		day = parsed.UTC()
	}
	return s.repo.DailyTotal(ctx, day)
}

func (s *Service) MonthlyTotal(ctx context.Context, month string) (domain.PeriodTotal, error) {
	m := time.Now().UTC()
	if strings.TrimSpace(month) != "" {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			return domain.PeriodTotal{}, invalidf("invalid month %q, want YYYY-MM", month)
		}
		m = parsed.UTC()
	}
	return s.repo.MonthlyTotal(ctx, m)
}

func (s *Service) SalesReport(ctx context.Context) (domain.SalesReport, error) {
	report, err := s.repo.SalesReport(ctx)
	if err != nil {
		return domain.SalesReport{}, err
	}
	report.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("admin role required")
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, invalidf("invalid date %q, want YYYY-MM-DD", date)
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func parseOptionalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, invalidf("invalid date %q, want YYYY-MM-DD", raw)
	}
	d := parsed.UTC()
	return &d, nil
}
