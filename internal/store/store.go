package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zaypos/backend/internal/domain"
)

// Sentinels for errors.Is checks. The typed errors below wrap these so
// callers can branch on category without losing the detail fields.
var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrDuplicateBarcode    = errors.New("duplicate barcode")
	ErrDuplicateUsername   = errors.New("duplicate username")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrPersistence         = errors.New("persistence failure")
)

type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.EntityType, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type InsufficientStockError struct {
	ProductID string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type InsufficientPaymentError struct {
	TotalSale      int64
	ReceivedAmount int64
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: total %d, received %d", e.TotalSale, e.ReceivedAmount)
}

func (e *InsufficientPaymentError) Unwrap() error { return ErrInsufficientPayment }

type DuplicateBarcodeError struct {
	Barcode string
}

func (e *DuplicateBarcodeError) Error() string {
	return fmt.Sprintf("barcode %s already in use", e.Barcode)
}

func (e *DuplicateBarcodeError) Unwrap() error { return ErrDuplicateBarcode }

// PersistenceError marks a driver or transaction failure. The store
// guarantees no partial effect survived, so the whole logical operation
// is safe to retry once the backend is reachable again.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// SaleFilter narrows ListSales. Zero values mean no bound.
type SaleFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// SaleUpdate carries the optional parts of a sale edit. A nil Items
// keeps the persisted lines untouched; a nil ReceivedAmount keeps the
// original payment. Either way the stored change amount is recomputed
// so it always equals received minus the (possibly new) total.
type SaleUpdate struct {
	ID             string
	Items          []domain.SaleItem
	ReceivedAmount *int64
}

type Repository interface {
	ListProducts(ctx context.Context, category string, search string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]string, error)

	// CommitSale allocates the voucher number, persists the sale and
	// debits stock for every line in one atomic step. On any failure
	// nothing is persisted and no voucher number is consumed visibly.
	CommitSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	// UpdateSale applies a sale edit: when items are supplied it
	// replaces the lines and applies the per-product stock deltas
	// between old and new quantities; when a received amount is
	// supplied it replaces the payment. The change amount is always
	// recomputed as received minus the resulting total.
	UpdateSale(ctx context.Context, upd SaleUpdate) (*domain.Sale, error)
	// DeleteSale removes the sale and credits its quantities back to
	// stock. Lines whose product no longer exists are skipped.
	DeleteSale(ctx context.Context, id string) error
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, error)

	GetDashboardStats(ctx context.Context, now time.Time, lowStockThreshold int64) (*domain.DashboardStats, error)

	// Held carts park a register's in-progress cart server-side so
	// another customer can be rung up first. Pop removes and returns
	// the cart in one step for checkout.
	CreateHeldCart(ctx context.Context, held domain.HeldCart) (*domain.HeldCart, error)
	ListHeldCarts(ctx context.Context) ([]domain.HeldCart, error)
	PopHeldCart(ctx context.Context, id string) (*domain.HeldCart, error)
	DeleteHeldCart(ctx context.Context, id string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	DeleteUser(ctx context.Context, username string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	// ExportSnapshot and RestoreSnapshot back the backup endpoints.
	// Restore replaces the full store contents with the snapshot and
	// re-seeds voucher counters from the restored sales.
	ExportSnapshot(ctx context.Context) (*domain.BackupSnapshot, error)
	RestoreSnapshot(ctx context.Context, snapshot domain.BackupSnapshot) error
}
