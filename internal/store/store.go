package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"botica/backend/internal/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrClientNotFound    = errors.New("client not found")
	ErrSaleNotFound      = errors.New("sale not found")
	ErrEmptyOrder        = errors.New("sale has no items")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductHasSales   = errors.New("product is referenced by sales")
	ErrClientHasSales    = errors.New("client has associated sales")
	ErrDuplicateIdentity = errors.New("client document or email already registered")
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUser     = errors.New("username already registered")
	ErrUnavailable       = errors.New("storage unavailable")
)

// InsufficientStockError reports which product fell short and by how much.
// errors.Is(err, ErrInsufficientStock) holds for every instance.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)
	ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error)
	ListNearExpiry(ctx context.Context, until time.Time) ([]domain.Product, error)

	ListClients(ctx context.Context) ([]domain.Client, error)
	CreateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	GetClientByID(ctx context.Context, id string) (*domain.Client, error)
	UpdateClient(ctx context.Context, client domain.Client) (*domain.Client, error)
	DeleteClient(ctx context.Context, id string) error

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error)
	VoidSale(ctx context.Context, id string) (*domain.Sale, error)

	DailyTotal(ctx context.Context, day time.Time) (domain.PeriodTotal, error)
	MonthlyTotal(ctx context.Context, month time.Time) (domain.PeriodTotal, error)
	SalesReport(ctx context.Context) (domain.SalesReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
