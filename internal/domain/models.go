package domain

import "time"

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Barcode   string    `json:"barcode,omitempty"`
	Category  string    `json:"category"`
	CostPrice int64     `json:"cost_price"`
	SalePrice int64     `json:"sale_price"`
	Quantity  int64     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name      string `json:"name"`
	Barcode   string `json:"barcode,omitempty"`
	Category  string `json:"category"`
	CostPrice int64  `json:"cost_price"`
	SalePrice int64  `json:"sale_price"`
	Quantity  int64  `json:"quantity"`
}

type ProductUpdateRequest struct {
	Name      *string `json:"name,omitempty"`
	Barcode   *string `json:"barcode,omitempty"`
	Category  *string `json:"category,omitempty"`
	CostPrice *int64  `json:"cost_price,omitempty"`
	SalePrice *int64  `json:"sale_price,omitempty"`
	Quantity  *int64  `json:"quantity,omitempty"`
}

// SaleItem is a line on a committed sale. Prices are snapshots taken
// when the line entered the sale, so later product edits never change
// historical vouchers.
type SaleItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	CostPrice   int64  `json:"cost_price"`
	SalePrice   int64  `json:"sale_price"`
	TotalCost   int64  `json:"total_cost"`
	TotalSale   int64  `json:"total_sale"`
	Profit      int64  `json:"profit"`
}

type Sale struct {
	ID             string     `json:"id"`
	VoucherNumber  string     `json:"voucher_number"`
	Items          []SaleItem `json:"items"`
	TotalCost      int64      `json:"total_cost"`
	TotalSale      int64      `json:"total_sale"`
	Profit         int64      `json:"profit"`
	ReceivedAmount int64      `json:"received_amount"`
	ChangeAmount   int64      `json:"change_amount"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type SaleLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type SaleCommitRequest struct {
	Items          []SaleLineRequest `json:"items"`
	ReceivedAmount int64             `json:"received_amount"`
}

// SaleUpdateRequest edits a committed sale. Both fields are optional:
// absent items keep the persisted lines, absent received amount keeps
// the original payment. At least one must be present.
type SaleUpdateRequest struct {
	Items          []SaleLineRequest `json:"items,omitempty"`
	ReceivedAmount *int64            `json:"received_amount,omitempty"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

// HeldCart is a parked register cart, stored server-side so the
// terminal can ring up another customer and resume later. Items carry
// the price snapshots taken when the cart was parked; checkout
// re-validates stock and re-snapshots prices like any fresh commit.
type HeldCart struct {
	ID        string     `json:"id"`
	Label     string     `json:"label,omitempty"`
	Items     []SaleItem `json:"items"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

type HoldCartRequest struct {
	Label string            `json:"label,omitempty"`
	Items []SaleLineRequest `json:"items"`
}

type HeldCartCheckoutRequest struct {
	ReceivedAmount int64 `json:"received_amount"`
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

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is the persistence model for auth credentials. Password
// holds the bcrypt hash; it is serialized only inside backups, never
// on API responses (those use UserView).
type UserAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password_hash"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type PeriodStats struct {
	SalesCount int64 `json:"sales_count"`
	Revenue    int64 `json:"revenue"`
	Profit     int64 `json:"profit"`
}

type InventoryStats struct {
	ProductCount int64 `json:"product_count"`
	StockValue   int64 `json:"stock_value"`
	LowStock     int64 `json:"low_stock"`
	OutOfStock   int64 `json:"out_of_stock"`
}

type DashboardStats struct {
	Today     PeriodStats    `json:"today"`
	Month     PeriodStats    `json:"month"`
	Inventory InventoryStats `json:"inventory"`
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

// BackupSnapshot is the wire shape of an exported backup. Restore
// reproduces the records exactly as exported, totals and voucher
// numbers included.
type BackupSnapshot struct {
	Timestamp time.Time  `json:"timestamp"`
	Version   string     `json:"version"`
	Data      BackupData `json:"data"`
}

type BackupData struct {
	Products []Product     `json:"products"`
	Sales    []Sale        `json:"sales"`
	Users    []UserAccount `json:"users"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const BackupVersion = "1"
