package domain

import "time"

type Product struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Category     string     `json:"category,omitempty"`
	PriceCents   int64      `json:"price_cents"`
	Stock        int        `json:"stock"`
	ReorderLevel int        `json:"reorder_level"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	PriceCents   int64  `json:"price_cents"`
	Stock        int    `json:"stock"`
	ReorderLevel int    `json:"reorder_level"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
}

type ProductUpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	Category     *string `json:"category,omitempty"`
	PriceCents   *int64  `json:"price_cents,omitempty"`
	ReorderLevel *int    `json:"reorder_level,omitempty"`
	ExpiryDate   *string `json:"expiry_date,omitempty"`
}

type StockAdjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Document  string    `json:"document"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ClientCreateRequest struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type ClientUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

type SaleItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type SaleCreateRequest struct {
	ClientID      string            `json:"client_id"`
	PaymentMethod string            `json:"payment_method"`
	Items         []SaleItemRequest `json:"items"`
}

type SaleLine struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name,omitempty"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type Sale struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"client_id"`
	ClientName    string     `json:"client_name,omitempty"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	TotalCents    int64      `json:"total_cents"`
	CreatedAt     time.Time  `json:"created_at"`
	Items         []SaleLine `json:"items"`
}

type VoidSaleRequest struct {
	Reason        string `json:"reason"`
	SupervisorPIN string `json:"supervisor_pin"`
}

type VoidSaleResponse struct {
	SaleID   string `json:"sale_id"`
	VoidedAt string `json:"voided_at"`
}

type DailyBucket struct {
	Date       string `json:"date"`
	TotalCents int64  `json:"total_cents"`
	Sales      int64  `json:"sales"`
}

type SalesReport struct {
	TotalAllTimeCents int64         `json:"total_all_time_cents"`
	TotalsByDay       []DailyBucket `json:"totals_by_day"`
	GeneratedAt       string        `json:"generated_at"`
}

type PeriodTotal struct {
	Period     string `json:"period"`
	TotalCents int64  `json:"total_cents"`
	Sales      int64  `json:"sales"`
}

type StockAlert struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Severity     string `json:"severity"`
	Code         string `json:"code"`
	Stock        int    `json:"stock"`
	ReorderLevel int    `json:"reorder_level,omitempty"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
	DaysToExpiry int    `json:"days_to_expiry,omitempty"`
}

type StockAdvisory struct {
	GeneratedAt string       `json:"generated_at"`
	HorizonDays int          `json:"horizon_days"`
	Alerts      []StockAlert `json:"alerts"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type SellerCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SellerUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	SaleStatusCompleted = "completed"
)

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

const (
	AlertLowStock   = "low_stock"
	AlertOutOfStock = "out_of_stock"
	AlertNearExpiry = "near_expiry"
	AlertExpired    = "expired"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// DefaultReorderLevel applies when a product is created without one.
const DefaultReorderLevel = 5

// DefaultExpiryHorizonDays is the near-expiry lookahead window.
const DefaultExpiryHorizonDays = 30

func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}
