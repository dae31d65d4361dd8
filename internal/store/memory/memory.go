package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"zaypos/backend/internal/domain"
	"zaypos/backend/internal/store"
	"zaypos/backend/internal/xid"
)

// Store keeps everything behind one RWMutex. Commit, update and delete
// hold the write lock end to end, which makes the voucher-allocate +
// persist + stock-debit step trivially atomic.
type Store struct {
	mu              sync.RWMutex
	voucherPrefix   string
	products        map[string]domain.Product
	barcodeIndex    map[string]string
	salesByID       map[string]*domain.Sale
	voucherSeqByDay map[string]int64
	heldCarts       map[string]*domain.HeldCart
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New(voucherPrefix string) *Store {
	return &Store{
		voucherPrefix:   voucherPrefix,
		products:        make(map[string]domain.Product),
		barcodeIndex:    make(map[string]string),
		salesByID:       make(map[string]*domain.Sale),
		voucherSeqByDay: make(map[string]int64),
		heldCarts:       make(map[string]*domain.HeldCart),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func (s *Store) ListProducts(_ context.Context, category string, search string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(strings.TrimSpace(search))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if category != "" && p.Category != category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Barcode), search) {
			continue
		}
		products = append(products, p)
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

	if product.Name == "" || product.CostPrice < 0 || product.SalePrice < 0 || product.Quantity < 0 {
		return nil, store.ErrInvalidArgument
	}
	if product.Barcode != "" {
		if _, taken := s.barcodeIndex[product.Barcode]; taken {
			return nil, &store.DuplicateBarcodeError{Barcode: product.Barcode}
		}
	}

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	s.products[product.ID] = product
	if product.Barcode != "" {
		s.barcodeIndex[product.Barcode] = product.ID
	}
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, &store.NotFoundError{EntityType: "product", ID: id}
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.barcodeIndex[barcode]
	if !exists {
		return nil, &store.NotFoundError{EntityType: "product", ID: barcode}
	}
	product := s.products[id]
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.CostPrice < 0 || product.SalePrice < 0 || product.Quantity < 0 {
		return nil, store.ErrInvalidArgument
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, &store.NotFoundError{EntityType: "product", ID: product.ID}
	}
	if product.Barcode != "" {
		if owner, taken := s.barcodeIndex[product.Barcode]; taken && owner != product.ID {
			return nil, &store.DuplicateBarcodeError{Barcode: product.Barcode}
		}
	}

	if existing.Barcode != "" && existing.Barcode != product.Barcode {
		delete(s.barcodeIndex, existing.Barcode)
	}
	if product.Barcode != "" {
		s.barcodeIndex[product.Barcode] = product.ID
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return &store.NotFoundError{EntityType: "product", ID: id}
	}
	if product.Barcode != "" {
		delete(s.barcodeIndex, product.Barcode)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, p := range s.products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	slices.Sort(categories)
	return categories, nil
}

// CommitSale recomputes every line from the live product record,
// validates stock and payment, then allocates the voucher number and
// debits stock. Validation happens before any mutation, so a failed
// commit leaves no trace: no voucher consumed, no stock moved.
func (s *Store) CommitSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidArgument
	}

	merged, err := s.buildLines(sale.Items)
	if err != nil {
		return nil, err
	}

	var totalCost, totalSale int64
	for _, item := range merged {
		totalCost += item.TotalCost
		totalSale += item.TotalSale
	}
	if sale.ReceivedAmount < totalSale {
		return nil, &store.InsufficientPaymentError{TotalSale: totalSale, ReceivedAmount: sale.ReceivedAmount}
	}

	now := time.Now().UTC()
	day := store.VoucherDay(now)
	seq := s.voucherSeqByDay[day] + 1
	s.voucherSeqByDay[day] = seq

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	sale.VoucherNumber = store.FormatVoucher(s.voucherPrefix, now, seq)
	sale.Items = merged
	sale.TotalCost = totalCost
	sale.TotalSale = totalSale
	sale.Profit = totalSale - totalCost
	sale.ChangeAmount = sale.ReceivedAmount - totalSale
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now

	for _, item := range sale.Items {
		product := s.products[item.ProductID]
		product.Quantity -= item.Quantity
		product.UpdatedAt = now
		s.products[item.ProductID] = product
	}

	saleCopy := cloneSale(&sale)
	s.salesByID[sale.ID] = saleCopy
	return cloneSale(saleCopy), nil
}

// buildLines merges duplicate product ids in encounter order, snapshots
// prices from the live products and checks stock. Read-only; callers
// apply the debit after all validation passes.
func (s *Store) buildLines(items []domain.SaleItem) ([]domain.SaleItem, error) {
	merged := make([]domain.SaleItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, store.ErrInvalidArgument
		}
		if pos, ok := index[item.ProductID]; ok {
			merged[pos].Quantity += item.Quantity
			continue
		}
		product, exists := s.products[item.ProductID]
		if !exists {
			return nil, &store.NotFoundError{EntityType: "product", ID: item.ProductID}
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			CostPrice:   product.CostPrice,
			SalePrice:   product.SalePrice,
		})
	}

	for i := range merged {
		product := s.products[merged[i].ProductID]
		if merged[i].Quantity > product.Quantity {
			return nil, &store.InsufficientStockError{
				ProductID: merged[i].ProductID,
				Requested: merged[i].Quantity,
				Available: product.Quantity,
			}
		}
		merged[i].TotalCost = merged[i].CostPrice * merged[i].Quantity
		merged[i].TotalSale = merged[i].SalePrice * merged[i].Quantity
		merged[i].Profit = merged[i].TotalSale - merged[i].TotalCost
	}
	return merged, nil
}

// UpdateSale edits a persisted sale. When items are supplied, stock
// deltas are computed per product against the quantities actually on
// record, so concurrent editors can race (last writer wins) without
// ever double debiting; surviving lines keep their original price
// snapshots and new lines capture current prices. When a received
// amount is supplied it replaces the payment. The change amount is
// always recomputed as received minus the resulting total, and the
// voucher number never changes.
func (s *Store) UpdateSale(_ context.Context, upd store.SaleUpdate) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.salesByID[upd.ID]
	if !exists {
		return nil, &store.NotFoundError{EntityType: "sale", ID: upd.ID}
	}
	if upd.Items == nil && upd.ReceivedAmount == nil {
		return nil, store.ErrInvalidArgument
	}
	if upd.Items != nil && len(upd.Items) == 0 {
		return nil, store.ErrInvalidArgument
	}

	merged := cloneItems(existing.Items)
	type stockDelta struct {
		productID string
		delta     int64
	}
	var deltas []stockDelta

	if upd.Items != nil {
		oldQty := make(map[string]int64, len(existing.Items))
		oldLines := make(map[string]domain.SaleItem, len(existing.Items))
		for _, item := range existing.Items {
			oldQty[item.ProductID] += item.Quantity
			oldLines[item.ProductID] = item
		}

		// Merge the request first, then validate every delta before
		// any stock moves.
		merged = make([]domain.SaleItem, 0, len(upd.Items))
		index := make(map[string]int, len(upd.Items))
		for _, item := range upd.Items {
			if item.Quantity < 1 {
				return nil, store.ErrInvalidArgument
			}
			if pos, ok := index[item.ProductID]; ok {
				merged[pos].Quantity += item.Quantity
				continue
			}
			line := domain.SaleItem{ProductID: item.ProductID, Quantity: item.Quantity}
			if old, ok := oldLines[item.ProductID]; ok {
				line.ProductName = old.ProductName
				line.CostPrice = old.CostPrice
				line.SalePrice = old.SalePrice
			} else {
				product, found := s.products[item.ProductID]
				if !found {
					return nil, &store.NotFoundError{EntityType: "product", ID: item.ProductID}
				}
				line.ProductName = product.Name
				line.CostPrice = product.CostPrice
				line.SalePrice = product.SalePrice
			}
			index[item.ProductID] = len(merged)
			merged = append(merged, line)
		}

		deltas = make([]stockDelta, 0, len(merged)+len(oldQty))
		for i := range merged {
			delta := merged[i].Quantity - oldQty[merged[i].ProductID]
			product, found := s.products[merged[i].ProductID]
			if delta > 0 {
				if !found {
					return nil, &store.NotFoundError{EntityType: "product", ID: merged[i].ProductID}
				}
				if delta > product.Quantity {
					return nil, &store.InsufficientStockError{
						ProductID: merged[i].ProductID,
						Requested: delta,
						Available: product.Quantity,
					}
				}
			}
			if found && delta != 0 {
				deltas = append(deltas, stockDelta{productID: merged[i].ProductID, delta: delta})
			}
			merged[i].TotalCost = merged[i].CostPrice * merged[i].Quantity
			merged[i].TotalSale = merged[i].SalePrice * merged[i].Quantity
			merged[i].Profit = merged[i].TotalSale - merged[i].TotalCost
		}
		// Lines dropped from the sale credit their full quantity back.
		// Products deleted since the sale are skipped.
		for productID, qty := range oldQty {
			if _, kept := index[productID]; kept {
				continue
			}
			if _, found := s.products[productID]; !found {
				continue
			}
			deltas = append(deltas, stockDelta{productID: productID, delta: -qty})
		}
	}

	var totalCost, totalSale int64
	for _, item := range merged {
		totalCost += item.TotalCost
		totalSale += item.TotalSale
	}

	received := existing.ReceivedAmount
	if upd.ReceivedAmount != nil {
		if *upd.ReceivedAmount < 0 {
			return nil, store.ErrInvalidArgument
		}
		received = *upd.ReceivedAmount
	}
	if received < totalSale {
		return nil, &store.InsufficientPaymentError{TotalSale: totalSale, ReceivedAmount: received}
	}

	now := time.Now().UTC()
	for _, d := range deltas {
		product := s.products[d.productID]
		product.Quantity -= d.delta
		product.UpdatedAt = now
		s.products[d.productID] = product
	}

	updated := *existing
	updated.Items = merged
	updated.TotalCost = totalCost
	updated.TotalSale = totalSale
	updated.Profit = totalSale - totalCost
	updated.ReceivedAmount = received
	updated.ChangeAmount = received - totalSale
	updated.UpdatedAt = now

	saleCopy := cloneSale(&updated)
	s.salesByID[updated.ID] = saleCopy
	return cloneSale(saleCopy), nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return &store.NotFoundError{EntityType: "sale", ID: id}
	}

	now := time.Now().UTC()
	for _, item := range sale.Items {
		product, found := s.products[item.ProductID]
		if !found {
			continue
		}
		product.Quantity += item.Quantity
		product.UpdatedAt = now
		s.products[item.ProductID] = product
	}
	delete(s.salesByID, id)
	return nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, &store.NotFoundError{EntityType: "sale", ID: id}
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !sale.CreatedAt.Before(filter.To) {
			continue
		}
		sales = append(sales, *cloneSale(sale))
	}

	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.VoucherNumber, a.VoucherNumber)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if filter.Limit > 0 && len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func (s *Store) GetDashboardStats(_ context.Context, now time.Time, lowStockThreshold int64) (*domain.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var stats domain.DashboardStats
	for _, sale := range s.salesByID {
		if !sale.CreatedAt.Before(monthStart) {
			stats.Month.SalesCount++
			stats.Month.Revenue += sale.TotalSale
			stats.Month.Profit += sale.Profit
		}
		if !sale.CreatedAt.Before(dayStart) {
			stats.Today.SalesCount++
			stats.Today.Revenue += sale.TotalSale
			stats.Today.Profit += sale.Profit
		}
	}
	for _, p := range s.products {
		stats.Inventory.ProductCount++
		stats.Inventory.StockValue += p.CostPrice * p.Quantity
		if p.Quantity == 0 {
			stats.Inventory.OutOfStock++
		} else if p.Quantity < lowStockThreshold {
			stats.Inventory.LowStock++
		}
	}
	return &stats, nil
}

func (s *Store) CreateHeldCart(_ context.Context, held domain.HeldCart) (*domain.HeldCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(held.Items) == 0 {
		return nil, store.ErrInvalidArgument
	}
	if held.ID == "" {
		held.ID = xid.New("hold")
	}
	if held.CreatedAt.IsZero() {
		held.CreatedAt = time.Now().UTC()
	}

	s.heldCarts[held.ID] = cloneHeldCart(&held)
	return cloneHeldCart(&held), nil
}

func (s *Store) ListHeldCarts(_ context.Context) ([]domain.HeldCart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	carts := make([]domain.HeldCart, 0, len(s.heldCarts))
	for _, held := range s.heldCarts {
		carts = append(carts, *cloneHeldCart(held))
	}
	slices.SortFunc(carts, func(a, b domain.HeldCart) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return carts, nil
}

func (s *Store) PopHeldCart(_ context.Context, id string) (*domain.HeldCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, exists := s.heldCarts[id]
	if !exists {
		return nil, &store.NotFoundError{EntityType: "held cart", ID: id}
	}
	delete(s.heldCarts, id)
	return cloneHeldCart(held), nil
}

func (s *Store) DeleteHeldCart(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.heldCarts[id]; !exists {
		return &store.NotFoundError{EntityType: "held cart", ID: id}
	}
	delete(s.heldCarts, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidArgument
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrDuplicateUsername
	}
	user.Username = username
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, &store.NotFoundError{EntityType: "user", ID: username}
	}
	copyUser := user
	return &copyUser, nil
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

func (s *Store) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if _, exists := s.usersByUsername[username]; !exists {
		return &store.NotFoundError{EntityType: "user", ID: username}
	}
	delete(s.usersByUsername, username)
	return nil
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

	logs := make([]domain.AuditLog, 0, len(s.auditLogs))
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) ExportSnapshot(_ context.Context) (*domain.BackupSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := domain.BackupSnapshot{
		Timestamp: time.Now().UTC(),
		Version:   domain.BackupVersion,
	}
	snapshot.Data.Products = make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		snapshot.Data.Products = append(snapshot.Data.Products, p)
	}
	slices.SortFunc(snapshot.Data.Products, func(a, b domain.Product) int {
		return cmpString(a.ID, b.ID)
	})

	snapshot.Data.Sales = make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		snapshot.Data.Sales = append(snapshot.Data.Sales, *cloneSale(sale))
	}
	slices.SortFunc(snapshot.Data.Sales, func(a, b domain.Sale) int {
		return cmpString(a.VoucherNumber, b.VoucherNumber)
	})

	snapshot.Data.Users = make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		snapshot.Data.Users = append(snapshot.Data.Users, user)
	}
	slices.SortFunc(snapshot.Data.Users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})

	return &snapshot, nil
}

// RestoreSnapshot replaces the store contents wholesale. Restored
// records keep their stored totals and voucher numbers untouched;
// voucher counters are re-seeded from the highest restored sequence of
// each day so new sales never collide with restored ones.
func (s *Store) RestoreSnapshot(_ context.Context, snapshot domain.BackupSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make(map[string]domain.Product, len(snapshot.Data.Products))
	barcodes := make(map[string]string, len(snapshot.Data.Products))
	for _, p := range snapshot.Data.Products {
		if p.ID == "" {
			return store.ErrInvalidArgument
		}
		products[p.ID] = p
		if p.Barcode != "" {
			if _, taken := barcodes[p.Barcode]; taken {
				return &store.DuplicateBarcodeError{Barcode: p.Barcode}
			}
			barcodes[p.Barcode] = p.ID
		}
	}

	sales := make(map[string]*domain.Sale, len(snapshot.Data.Sales))
	seqByDay := make(map[string]int64)
	for i := range snapshot.Data.Sales {
		sale := snapshot.Data.Sales[i]
		if sale.ID == "" || sale.VoucherNumber == "" {
			return store.ErrInvalidArgument
		}
		sales[sale.ID] = cloneSale(&sale)
		if day, seq, ok := store.ParseVoucherSeq(s.voucherPrefix, sale.VoucherNumber); ok {
			if seq > seqByDay[day] {
				seqByDay[day] = seq
			}
		}
	}

	users := make(map[string]domain.UserAccount, len(snapshot.Data.Users))
	for _, user := range snapshot.Data.Users {
		users[strings.ToLower(user.Username)] = user
	}

	s.products = products
	s.barcodeIndex = barcodes
	s.salesByID = sales
	s.voucherSeqByDay = seqByDay
	s.usersByUsername = users
	return nil
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

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Items = cloneItems(src.Items)
	return &dup
}

func cloneItems(src []domain.SaleItem) []domain.SaleItem {
	items := make([]domain.SaleItem, len(src))
	copy(items, src)
	return items
}

func cloneHeldCart(src *domain.HeldCart) *domain.HeldCart {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Items = cloneItems(src.Items)
	return &dup
}
