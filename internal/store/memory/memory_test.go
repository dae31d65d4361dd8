package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"zaypos/backend/internal/domain"
	"zaypos/backend/internal/store"
)

func newTestStore(t *testing.T) (*Store, domain.Product) {
	t.Helper()
	s := New("V")
	created, err := s.CreateProduct(context.Background(), domain.Product{
		Name:      "Instant Noodles",
		Barcode:   "8851234567890",
		Category:  "grocery",
		CostPrice: 300,
		SalePrice: 500,
		Quantity:  10,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return s, *created
}

func commitRequest(productID string, qty int64, received int64) domain.Sale {
	return domain.Sale{
		Items:          []domain.SaleItem{{ProductID: productID, Quantity: qty}},
		ReceivedAmount: received,
		CreatedBy:      "pos-user",
	}
}

func TestCommitSaleHappyPath(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 3, 1500))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	if sale.TotalSale != 1500 || sale.TotalCost != 900 || sale.Profit != 600 {
		t.Fatalf("unexpected totals: %+v", sale)
	}
	if sale.ChangeAmount != 0 {
		t.Fatalf("expected change 0, got %d", sale.ChangeAmount)
	}
	if !strings.HasPrefix(sale.VoucherNumber, "V") || len(sale.VoucherNumber) != 12 {
		t.Fatalf("unexpected voucher number: %q", sale.VoucherNumber)
	}

	after, err := s.GetProductByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProductByID: %v", err)
	}
	if after.Quantity != 7 {
		t.Fatalf("expected stock 7 after commit, got %d", after.Quantity)
	}
}

func TestCommitSaleLineSnapshotsPrices(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 1, 500))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	p.SalePrice = 999
	if _, err := s.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	got, err := s.GetSaleByID(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSaleByID: %v", err)
	}
	if got.Items[0].SalePrice != 500 {
		t.Fatalf("price edits must not change committed sales, got %d", got.Items[0].SalePrice)
	}
}

func TestCommitSaleInsufficientStockRollsBackEverything(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	p.Quantity = 2
	if _, err := s.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	_, err := s.CommitSale(ctx, commitRequest(p.ID, 3, 1500))
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductID != p.ID || stockErr.Requested != 3 || stockErr.Available != 2 {
		t.Fatalf("unexpected detail: %+v", stockErr)
	}

	after, _ := s.GetProductByID(ctx, p.ID)
	if after.Quantity != 2 {
		t.Fatalf("failed commit must not touch stock, got %d", after.Quantity)
	}
	sales, err := s.ListSales(ctx, store.SaleFilter{})
	if err != nil {
		t.Fatalf("ListSales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("failed commit must not persist a sale")
	}

	// The failed attempt must not consume a voucher sequence either.
	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 1, 500))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}
	if !strings.HasSuffix(sale.VoucherNumber, "001") {
		t.Fatalf("expected first voucher of the day, got %q", sale.VoucherNumber)
	}
}

func TestCommitSaleInsufficientPayment(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	_, err := s.CommitSale(ctx, commitRequest(p.ID, 1, 300))
	var payErr *store.InsufficientPaymentError
	if !errors.As(err, &payErr) {
		t.Fatalf("expected InsufficientPaymentError, got %v", err)
	}
	if payErr.TotalSale != 500 || payErr.ReceivedAmount != 300 {
		t.Fatalf("unexpected detail: %+v", payErr)
	}

	after, _ := s.GetProductByID(ctx, p.ID)
	if after.Quantity != 10 {
		t.Fatalf("failed commit must not touch stock, got %d", after.Quantity)
	}
}

func TestCommitSaleMergesDuplicateLines(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, domain.Sale{
		Items: []domain.SaleItem{
			{ProductID: p.ID, Quantity: 2},
			{ProductID: p.ID, Quantity: 1},
		},
		ReceivedAmount: 1500,
	})
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}
	if len(sale.Items) != 1 || sale.Items[0].Quantity != 3 {
		t.Fatalf("expected one merged line of 3, got %+v", sale.Items)
	}
}

func TestVoucherNumbersMonotonicPerDay(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	var vouchers []string
	for i := 0; i < 3; i++ {
		sale, err := s.CommitSale(ctx, commitRequest(p.ID, 1, 500))
		if err != nil {
			t.Fatalf("CommitSale %d: %v", i, err)
		}
		vouchers = append(vouchers, sale.VoucherNumber)
	}

	for i := 1; i < len(vouchers); i++ {
		if vouchers[i] <= vouchers[i-1] {
			t.Fatalf("vouchers must increase: %v", vouchers)
		}
	}
}

func TestConcurrentCommitsAllocateUniqueVouchers(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	p.Quantity = 1000
	if _, err := s.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	vouchers := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, err := s.CommitSale(ctx, commitRequest(p.ID, 1, 500))
			if err != nil {
				t.Errorf("CommitSale: %v", err)
				return
			}
			vouchers <- sale.VoucherNumber
		}()
	}
	wg.Wait()
	close(vouchers)

	seen := make(map[string]bool)
	for v := range vouchers {
		if seen[v] {
			t.Fatalf("duplicate voucher %q", v)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d vouchers, got %d", n, len(seen))
	}

	after, _ := s.GetProductByID(ctx, p.ID)
	if after.Quantity != 1000-n {
		t.Fatalf("expected stock %d, got %d", 1000-n, after.Quantity)
	}
}

func TestConcurrentCommitsNeverOversell(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	p.Quantity = 5
	if _, err := s.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CommitSale(ctx, commitRequest(p.ID, 1, 500)); err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if committed != 5 {
		t.Fatalf("expected exactly 5 commits to win, got %d", committed)
	}
	after, _ := s.GetProductByID(ctx, p.ID)
	if after.Quantity != 0 {
		t.Fatalf("expected stock 0, got %d", after.Quantity)
	}
}

func TestUpdateSaleCreditsReducedQuantity(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 3, 1500))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	updated, err := s.UpdateSale(ctx, store.SaleUpdate{
		ID:    sale.ID,
		Items: []domain.SaleItem{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("UpdateSale: %v", err)
	}

	if updated.TotalSale != 500 || updated.Profit != 200 {
		t.Fatalf("unexpected totals after update: %+v", updated)
	}
	if updated.VoucherNumber != sale.VoucherNumber {
		t.Fatalf("update must not change the voucher number")
	}
	if updated.ReceivedAmount != 1500 {
		t.Fatalf("update without a new payment must keep the received amount, got %d", updated.ReceivedAmount)
	}

	after, _ := s.GetProductByID(ctx, p.ID)
	if after.Quantity != 9 {
		t.Fatalf("expected stock 9 after crediting 2, got %d", after.Quantity)
	}
}

func TestUpdateSaleRecomputesChangeAgainstNewTotal(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	// Exact payment: change starts at zero.
	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 3, 1500))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}
	if sale.ChangeAmount != 0 {
		t.Fatalf("expected change 0 after commit, got %d", sale.ChangeAmount)
	}

	updated, err := s.UpdateSale(ctx, store.SaleUpdate{
		ID:    sale.ID,
		Items: []domain.SaleItem{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("UpdateSale: %v", err)
	}
	if updated.ChangeAmount != 1000 {
		t.Fatalf("shrinking the sale to 500 must owe 1000 back, got %d", updated.ChangeAmount)
	}
	if updated.ChangeAmount != updated.ReceivedAmount-updated.TotalSale {
		t.Fatalf("change must equal received minus total: %+v", updated)
	}

	got, _ := s.GetSaleByID(ctx, sale.ID)
	if got.ChangeAmount != 1000 {
		t.Fatalf("recomputed change must be persisted, got %d", got.ChangeAmount)
	}
}

func TestUpdateSalePaymentOnly(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 2, 1000))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	received := int64(2000)
	updated, err := s.UpdateSale(ctx, store.SaleUpdate{ID: sale.ID, ReceivedAmount: &received})
	if err != nil {
		t.Fatalf("UpdateSale: %v", err)
	}
	if updated.ReceivedAmount != 2000 || updated.ChangeAmount != 1000 {
		t.Fatalf("unexpected payment after update: %+v", updated)
	}
	if updated.TotalSale != 1000 || len(updated.Items) != 1 || updated.Items[0].Quantity != 2 {
		t.Fatalf("payment-only update must keep the lines: %+v", updated)
	}

	after, _ := s.GetProductByID(ctx, p.ID)
	if after.Quantity != 8 {
		t.Fatalf("payment-only update must not touch stock, got %d", after.Quantity)
	}
}

func TestUpdateSaleRejectsPaymentBelowTotal(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 2, 1000))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	received := int64(700)
	_, err = s.UpdateSale(ctx, store.SaleUpdate{ID: sale.ID, ReceivedAmount: &received})
	var payErr *store.InsufficientPaymentError
	if !errors.As(err, &payErr) {
		t.Fatalf("expected InsufficientPaymentError, got %v", err)
	}

	got, _ := s.GetSaleByID(ctx, sale.ID)
	if got.ReceivedAmount != 1000 || got.ChangeAmount != 0 {
		t.Fatalf("failed update must not change the payment: %+v", got)
	}
}

func TestUpdateSaleRequiresSomeChange(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 1, 500))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	if _, err := s.UpdateSale(ctx, store.SaleUpdate{ID: sale.ID}); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for an empty update, got %v", err)
	}
}

func TestUpdateSaleDebitsIncreasedQuantity(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 3, 5000))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	if _, err := s.UpdateSale(ctx, store.SaleUpdate{
		ID:    sale.ID,
		Items: []domain.SaleItem{{ProductID: p.ID, Quantity: 5}},
	}); err != nil {
		t.Fatalf("UpdateSale: %v", err)
	}

	after, _ := s.GetProductByID(ctx, p.ID)
	if after.Quantity != 5 {
		t.Fatalf("expected stock 5 after debiting 2 more, got %d", after.Quantity)
	}
}

func TestUpdateSaleRejectsDebitBeyondStock(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 3, 10000))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	// Stock is 7; raising the sale from 3 to 11 needs 8 more.
	_, err = s.UpdateSale(ctx, store.SaleUpdate{
		ID:    sale.ID,
		Items: []domain.SaleItem{{ProductID: p.ID, Quantity: 11}},
	})
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 8 || stockErr.Available != 7 {
		t.Fatalf("delta must be checked, not the absolute quantity: %+v", stockErr)
	}

	after, _ := s.GetProductByID(ctx, p.ID)
	if after.Quantity != 7 {
		t.Fatalf("failed update must not touch stock, got %d", after.Quantity)
	}
	got, _ := s.GetSaleByID(ctx, sale.ID)
	if got.Items[0].Quantity != 3 {
		t.Fatalf("failed update must not change the sale")
	}
}

func TestUpdateSaleKeepsSurvivingLinePrices(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 2, 1000))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	p.SalePrice = 900
	p.Quantity = 8
	if _, err := s.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}

	updated, err := s.UpdateSale(ctx, store.SaleUpdate{
		ID:    sale.ID,
		Items: []domain.SaleItem{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("UpdateSale: %v", err)
	}
	if updated.Items[0].SalePrice != 500 {
		t.Fatalf("surviving line must keep its snapshot price, got %d", updated.Items[0].SalePrice)
	}
}

func TestUpdateSaleNewLineSnapshotsCurrentPrices(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	other, err := s.CreateProduct(ctx, domain.Product{
		Name:      "Bottled Water",
		Category:  "beverage",
		CostPrice: 100,
		SalePrice: 200,
		Quantity:  50,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 1, 2000))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	updated, err := s.UpdateSale(ctx, store.SaleUpdate{
		ID: sale.ID,
		Items: []domain.SaleItem{
			{ProductID: p.ID, Quantity: 1},
			{ProductID: other.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("UpdateSale: %v", err)
	}
	if len(updated.Items) != 2 || updated.Items[1].SalePrice != 200 {
		t.Fatalf("new line must snapshot current prices: %+v", updated.Items)
	}
	if updated.ChangeAmount != 2000-updated.TotalSale {
		t.Fatalf("change must track the grown total: %+v", updated)
	}

	water, _ := s.GetProductByID(ctx, other.ID)
	if water.Quantity != 48 {
		t.Fatalf("new line must debit stock, got %d", water.Quantity)
	}
}

func TestDeleteSaleRestoresStock(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 3, 1500))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	if err := s.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("DeleteSale: %v", err)
	}

	after, _ := s.GetProductByID(ctx, p.ID)
	if after.Quantity != 10 {
		t.Fatalf("expected stock restored to 10, got %d", after.Quantity)
	}
	if _, err := s.GetSaleByID(ctx, sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteSaleSkipsDeletedProducts(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 3, 1500))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}
	if err := s.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}

	if err := s.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete must skip missing products silently, got %v", err)
	}
}

func TestDuplicateBarcodeRejected(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateProduct(ctx, domain.Product{
		Name:      "Copycat",
		Barcode:   p.Barcode,
		CostPrice: 1,
		SalePrice: 2,
	})
	var dupErr *store.DuplicateBarcodeError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateBarcodeError, got %v", err)
	}
}

func TestGetProductByBarcode(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetProductByBarcode(ctx, p.Barcode)
	if err != nil {
		t.Fatalf("GetProductByBarcode: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("expected product %s, got %s", p.ID, got.ID)
	}

	if _, err := s.GetProductByBarcode(ctx, "no-such-code"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDashboardStats(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CommitSale(ctx, commitRequest(p.ID, 3, 1500)); err != nil {
		t.Fatalf("CommitSale: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{Name: "Empty", CostPrice: 50, SalePrice: 80, Quantity: 0}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{Name: "Low", CostPrice: 50, SalePrice: 80, Quantity: 2}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	stats, err := s.GetDashboardStats(ctx, time.Now().UTC(), 5)
	if err != nil {
		t.Fatalf("GetDashboardStats: %v", err)
	}
	if stats.Today.SalesCount != 1 || stats.Today.Revenue != 1500 || stats.Today.Profit != 600 {
		t.Fatalf("unexpected today stats: %+v", stats.Today)
	}
	if stats.Month.SalesCount != 1 {
		t.Fatalf("unexpected month stats: %+v", stats.Month)
	}
	if stats.Inventory.ProductCount != 3 || stats.Inventory.OutOfStock != 1 || stats.Inventory.LowStock != 2 {
		t.Fatalf("unexpected inventory stats: %+v", stats.Inventory)
	}
	// Seed product holds 7 after the sale: 7*300 + 0*50 + 2*50.
	if stats.Inventory.StockValue != 7*300+2*50 {
		t.Fatalf("unexpected stock value: %d", stats.Inventory.StockValue)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	sale, err := s.CommitSale(ctx, commitRequest(p.ID, 3, 1500))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}
	if err := s.CreateUser(ctx, domain.UserAccount{Username: "admin", Password: "hash", Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	snapshot, err := s.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	restored := New("V")
	if err := restored.RestoreSnapshot(ctx, *snapshot); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}

	got, err := restored.GetSaleByID(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSaleByID after restore: %v", err)
	}
	if got.VoucherNumber != sale.VoucherNumber || got.TotalSale != sale.TotalSale || got.Profit != sale.Profit {
		t.Fatalf("restore must reproduce the sale exactly: %+v vs %+v", got, sale)
	}

	prod, err := restored.GetProductByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProductByID after restore: %v", err)
	}
	if prod.Quantity != 7 {
		t.Fatalf("restore must reproduce stock, got %d", prod.Quantity)
	}

	// New vouchers continue past the restored sequence.
	next, err := restored.CommitSale(ctx, commitRequest(p.ID, 1, 500))
	if err != nil {
		t.Fatalf("CommitSale after restore: %v", err)
	}
	if next.VoucherNumber <= sale.VoucherNumber {
		t.Fatalf("voucher counter must resume past restored sales: %q then %q", sale.VoucherNumber, next.VoucherNumber)
	}
}

func TestListSalesNewestFirstWithRange(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	first, err := s.CommitSale(ctx, commitRequest(p.ID, 1, 500))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}
	second, err := s.CommitSale(ctx, commitRequest(p.ID, 1, 500))
	if err != nil {
		t.Fatalf("CommitSale: %v", err)
	}

	sales, err := s.ListSales(ctx, store.SaleFilter{})
	if err != nil {
		t.Fatalf("ListSales: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales, got %d", len(sales))
	}
	if sales[0].ID != second.ID && sales[0].VoucherNumber < sales[1].VoucherNumber {
		t.Fatalf("expected newest first: %q before %q", sales[0].VoucherNumber, sales[1].VoucherNumber)
	}

	future := time.Now().UTC().Add(time.Hour)
	none, err := s.ListSales(ctx, store.SaleFilter{From: future})
	if err != nil {
		t.Fatalf("ListSales: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty range, got %d", len(none))
	}
	_ = first
}

func TestHeldCartLifecycle(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	held, err := s.CreateHeldCart(ctx, domain.HeldCart{
		Label:     "table 4",
		Items:     []domain.SaleItem{{ProductID: p.ID, ProductName: p.Name, Quantity: 2, SalePrice: 500}},
		CreatedBy: "kasir1",
	})
	if err != nil {
		t.Fatalf("CreateHeldCart: %v", err)
	}
	if held.ID == "" || held.CreatedAt.IsZero() {
		t.Fatalf("hold must assign id and timestamp: %+v", held)
	}

	after, _ := s.GetProductByID(ctx, p.ID)
	if after.Quantity != 10 {
		t.Fatalf("holding a cart must not touch stock, got %d", after.Quantity)
	}

	carts, err := s.ListHeldCarts(ctx)
	if err != nil {
		t.Fatalf("ListHeldCarts: %v", err)
	}
	if len(carts) != 1 || carts[0].Label != "table 4" {
		t.Fatalf("unexpected held carts: %+v", carts)
	}

	popped, err := s.PopHeldCart(ctx, held.ID)
	if err != nil {
		t.Fatalf("PopHeldCart: %v", err)
	}
	if popped.ID != held.ID || len(popped.Items) != 1 {
		t.Fatalf("pop must return the parked cart: %+v", popped)
	}
	if _, err := s.PopHeldCart(ctx, held.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second pop must miss, got %v", err)
	}
}

func TestDeleteHeldCart(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	held, err := s.CreateHeldCart(ctx, domain.HeldCart{
		Items: []domain.SaleItem{{ProductID: p.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateHeldCart: %v", err)
	}

	if err := s.DeleteHeldCart(ctx, held.ID); err != nil {
		t.Fatalf("DeleteHeldCart: %v", err)
	}
	if err := s.DeleteHeldCart(ctx, held.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.CreateHeldCart(ctx, domain.HeldCart{}); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("empty cart must be rejected, got %v", err)
	}
}
