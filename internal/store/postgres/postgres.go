package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"zaypos/backend/internal/domain"
	"zaypos/backend/internal/store"
	"zaypos/backend/internal/xid"
)

type Store struct {
	db            *sql.DB
	voucherPrefix string
}

func New(ctx context.Context, databaseURL string, voucherPrefix string) (*Store, error) {
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

	return &Store{db: db, voucherPrefix: voucherPrefix}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, category string, search string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, barcode, category, cost_price, sale_price, quantity, created_at, updated_at
		FROM products
		WHERE ($1 = '' OR category = $1)
			AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR barcode ILIKE '%' || $2 || '%')
		ORDER BY category, name
	`, category, strings.TrimSpace(search))
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
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.CostPrice < 0 || product.SalePrice < 0 || product.Quantity < 0 {
		return nil, store.ErrInvalidArgument
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, category, cost_price, sale_price, quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, product.ID, product.Name, nullIfEmpty(product.Barcode), product.Category,
		product.CostPrice, product.SalePrice, product.Quantity, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &store.DuplicateBarcodeError{Barcode: product.Barcode}
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, `
		SELECT id, name, barcode, category, cost_price, sale_price, quantity, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return s.getProduct(ctx, `
		SELECT id, name, barcode, category, cost_price, sale_price, quantity, created_at, updated_at
		FROM products
		WHERE barcode = $1
	`, barcode)
}

func (s *Store) getProduct(ctx context.Context, query string, arg string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{EntityType: "product", ID: arg}
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.CostPrice < 0 || product.SalePrice < 0 || product.Quantity < 0 {
		return nil, store.ErrInvalidArgument
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, category = $4, cost_price = $5, sale_price = $6, quantity = $7, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, nullIfEmpty(product.Barcode), product.Category,
		product.CostPrice, product.SalePrice, product.Quantity)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &store.DuplicateBarcodeError{Barcode: product.Barcode}
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, &store.NotFoundError{EntityType: "product", ID: product.ID}
	}

	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &store.NotFoundError{EntityType: "product", ID: id}
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category
		FROM products
		WHERE category <> ''
		ORDER BY category
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]string, 0, 16)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CommitSale runs the whole commit in one serializable transaction:
// product rows are locked FOR UPDATE, lines are recomputed from the
// locked rows, the per-day voucher counter is bumped with an upsert,
// and stock is debited. Rollback on any failure leaves the counter and
// the stock exactly as they were.
func (s *Store) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidArgument
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, persistErr("commit sale", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	merged, err := mergeLines(sale.Items)
	if err != nil {
		return nil, err
	}
	products, err := lockProducts(ctx, pgTx, productIDs(merged))
	if err != nil {
		return nil, err
	}

	var totalCost, totalSale int64
	for i := range merged {
		product, exists := products[merged[i].ProductID]
		if !exists {
			return nil, &store.NotFoundError{EntityType: "product", ID: merged[i].ProductID}
		}
		if merged[i].Quantity > product.Quantity {
			return nil, &store.InsufficientStockError{
				ProductID: merged[i].ProductID,
				Requested: merged[i].Quantity,
				Available: product.Quantity,
			}
		}
		merged[i].ProductName = product.Name
		merged[i].CostPrice = product.CostPrice
		merged[i].SalePrice = product.SalePrice
		merged[i].TotalCost = product.CostPrice * merged[i].Quantity
		merged[i].TotalSale = product.SalePrice * merged[i].Quantity
		merged[i].Profit = merged[i].TotalSale - merged[i].TotalCost
		totalCost += merged[i].TotalCost
		totalSale += merged[i].TotalSale
	}

	if sale.ReceivedAmount < totalSale {
		return nil, &store.InsufficientPaymentError{TotalSale: totalSale, ReceivedAmount: sale.ReceivedAmount}
	}

	now := time.Now().UTC()
	var seq int64
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO voucher_counters (day, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (day)
		DO UPDATE SET last_seq = voucher_counters.last_seq + 1
		RETURNING last_seq
	`, store.VoucherDay(now)).Scan(&seq)
	if err != nil {
		return nil, persistErr("commit sale", err)
	}

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

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, voucher_number, total_cost, total_sale, profit,
			received_amount, change_amount, created_by, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sale.ID, sale.VoucherNumber, sale.TotalCost, sale.TotalSale, sale.Profit,
		sale.ReceivedAmount, sale.ChangeAmount, sale.CreatedBy, sale.CreatedAt, sale.UpdatedAt)
	if err != nil {
		return nil, persistErr("commit sale", err)
	}

	if err := insertSaleItems(ctx, pgTx, sale.ID, sale.Items); err != nil {
		return nil, persistErr("commit sale", err)
	}

	for _, item := range sale.Items {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $1, updated_at = now()
			WHERE id = $2
		`, item.Quantity, item.ProductID)
		if err != nil {
			return nil, persistErr("commit sale", err)
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, persistErr("commit sale", err)
	}

	return &sale, nil
}

// UpdateSale applies per-product deltas between the persisted line
// quantities and the requested ones. Surviving lines keep their price
// snapshots; new lines capture current prices; lines dropped from the
// sale credit their quantity back. A nil Items keeps the persisted
// lines; a nil ReceivedAmount keeps the stored payment. The voucher
// number never changes, and the change amount is always recomputed
// against the new total.
func (s *Store) UpdateSale(ctx context.Context, upd store.SaleUpdate) (*domain.Sale, error) {
	if upd.Items == nil && upd.ReceivedAmount == nil {
		return nil, store.ErrInvalidArgument
	}
	if upd.Items != nil && len(upd.Items) == 0 {
		return nil, store.ErrInvalidArgument
	}
	if upd.ReceivedAmount != nil && *upd.ReceivedAmount < 0 {
		return nil, store.ErrInvalidArgument
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, persistErr("update sale", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	existing, err := getSaleTx(ctx, pgTx, upd.ID, true)
	if err != nil {
		return nil, err
	}

	merged := existing.Items
	totalCost := existing.TotalCost
	totalSale := existing.TotalSale
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

		merged, err = mergeLines(upd.Items)
		if err != nil {
			return nil, err
		}

		ids := productIDs(merged)
		for productID := range oldQty {
			ids = append(ids, productID)
		}
		products, err := lockProducts(ctx, pgTx, dedupe(ids))
		if err != nil {
			return nil, err
		}

		kept := make(map[string]struct{}, len(merged))
		totalCost, totalSale = 0, 0
		deltas = make([]stockDelta, 0, len(merged)+len(oldQty))
		for i := range merged {
			kept[merged[i].ProductID] = struct{}{}
			if old, ok := oldLines[merged[i].ProductID]; ok {
				merged[i].ProductName = old.ProductName
				merged[i].CostPrice = old.CostPrice
				merged[i].SalePrice = old.SalePrice
			} else {
				product, exists := products[merged[i].ProductID]
				if !exists {
					return nil, &store.NotFoundError{EntityType: "product", ID: merged[i].ProductID}
				}
				merged[i].ProductName = product.Name
				merged[i].CostPrice = product.CostPrice
				merged[i].SalePrice = product.SalePrice
			}

			delta := merged[i].Quantity - oldQty[merged[i].ProductID]
			product, exists := products[merged[i].ProductID]
			if delta > 0 {
				if !exists {
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
			if exists && delta != 0 {
				deltas = append(deltas, stockDelta{productID: merged[i].ProductID, delta: delta})
			}

			merged[i].TotalCost = merged[i].CostPrice * merged[i].Quantity
			merged[i].TotalSale = merged[i].SalePrice * merged[i].Quantity
			merged[i].Profit = merged[i].TotalSale - merged[i].TotalCost
			totalCost += merged[i].TotalCost
			totalSale += merged[i].TotalSale
		}
		for productID, qty := range oldQty {
			if _, ok := kept[productID]; ok {
				continue
			}
			if _, exists := products[productID]; !exists {
				continue
			}
			deltas = append(deltas, stockDelta{productID: productID, delta: -qty})
		}
	}

	received := existing.ReceivedAmount
	if upd.ReceivedAmount != nil {
		received = *upd.ReceivedAmount
	}
	if received < totalSale {
		return nil, &store.InsufficientPaymentError{TotalSale: totalSale, ReceivedAmount: received}
	}

	for _, d := range deltas {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $1, updated_at = now()
			WHERE id = $2
		`, d.delta, d.productID)
		if err != nil {
			return nil, persistErr("update sale", err)
		}
	}

	now := time.Now().UTC()
	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET total_cost = $2, total_sale = $3, profit = $4,
			received_amount = $5, change_amount = $6, updated_at = $7
		WHERE id = $1
	`, upd.ID, totalCost, totalSale, totalSale-totalCost, received, received-totalSale, now)
	if err != nil {
		return nil, persistErr("update sale", err)
	}

	if upd.Items != nil {
		if _, err := pgTx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, upd.ID); err != nil {
			return nil, persistErr("update sale", err)
		}
		if err := insertSaleItems(ctx, pgTx, upd.ID, merged); err != nil {
			return nil, persistErr("update sale", err)
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, persistErr("update sale", err)
	}

	updated := *existing
	updated.Items = merged
	updated.TotalCost = totalCost
	updated.TotalSale = totalSale
	updated.Profit = totalSale - totalCost
	updated.ReceivedAmount = received
	updated.ChangeAmount = received - totalSale
	updated.UpdatedAt = now
	return &updated, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return persistErr("delete sale", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	existing, err := getSaleTx(ctx, pgTx, id, true)
	if err != nil {
		return err
	}

	// Missing products simply match no row; their credit is skipped.
	for _, item := range existing.Items {
		_, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity + $1, updated_at = now()
			WHERE id = $2
		`, item.Quantity, item.ProductID)
		if err != nil {
			return persistErr("delete sale", err)
		}
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return persistErr("delete sale", err)
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return persistErr("delete sale", err)
	}

	if err := pgTx.Commit(); err != nil {
		return persistErr("delete sale", err)
	}
	return nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, voucher_number, total_cost, total_sale, profit,
			received_amount, change_amount, created_by, created_at, updated_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.VoucherNumber, &sale.TotalCost, &sale.TotalSale, &sale.Profit,
		&sale.ReceivedAmount, &sale.ChangeAmount, &sale.CreatedBy, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{EntityType: "sale", ID: id}
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.UpdatedAt = sale.UpdatedAt.UTC()

	items, err := s.loadItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, voucher_number, total_cost, total_sale, profit,
			received_amount, change_amount, created_by, created_at, updated_at
		FROM sales
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, voucher_number DESC
		LIMIT $3
	`, nullTimeValue(filter.From), nullTimeValue(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.VoucherNumber, &sale.TotalCost, &sale.TotalSale, &sale.Profit,
			&sale.ReceivedAmount, &sale.ChangeAmount, &sale.CreatedBy, &sale.CreatedAt, &sale.UpdatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sale.UpdatedAt = sale.UpdatedAt.UTC()
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) loadItems(ctx context.Context, saleIDs []string) (map[string][]domain.SaleItem, error) {
	result := make(map[string][]domain.SaleItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, quantity, cost_price, sale_price,
			total_cost, total_sale, profit
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var item domain.SaleItem
		if err := rows.Scan(&saleID, &item.ProductID, &item.ProductName, &item.Quantity,
			&item.CostPrice, &item.SalePrice, &item.TotalCost, &item.TotalSale, &item.Profit); err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], item)
	}
	return result, rows.Err()
}

func (s *Store) GetDashboardStats(ctx context.Context, now time.Time, lowStockThreshold int64) (*domain.DashboardStats, error) {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var stats domain.DashboardStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $1),
			COALESCE(SUM(total_sale) FILTER (WHERE created_at >= $1), 0),
			COALESCE(SUM(profit) FILTER (WHERE created_at >= $1), 0),
			COUNT(*) FILTER (WHERE created_at >= $2),
			COALESCE(SUM(total_sale) FILTER (WHERE created_at >= $2), 0),
			COALESCE(SUM(profit) FILTER (WHERE created_at >= $2), 0)
		FROM sales
	`, dayStart, monthStart).Scan(
		&stats.Today.SalesCount, &stats.Today.Revenue, &stats.Today.Profit,
		&stats.Month.SalesCount, &stats.Month.Revenue, &stats.Month.Profit,
	)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(cost_price * quantity), 0),
			COUNT(*) FILTER (WHERE quantity > 0 AND quantity < $1),
			COUNT(*) FILTER (WHERE quantity = 0)
		FROM products
	`, lowStockThreshold).Scan(
		&stats.Inventory.ProductCount, &stats.Inventory.StockValue,
		&stats.Inventory.LowStock, &stats.Inventory.OutOfStock,
	)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidArgument
	}
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, username, password, role, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.ID, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateUsername
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, role, created_at
		FROM app_users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&user.ID, &user.Username, &user.Password, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{EntityType: "user", ID: username}
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password, role, created_at
		FROM app_users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.Password, &user.Role, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM app_users WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &store.NotFoundError{EntityType: "user", ID: username}
	}
	return nil
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
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, nullTimeValue(from), nullTimeValue(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *Store) ExportSnapshot(ctx context.Context) (*domain.BackupSnapshot, error) {
	snapshot := domain.BackupSnapshot{
		Timestamp: time.Now().UTC(),
		Version:   domain.BackupVersion,
	}

	products, err := s.ListProducts(ctx, "", "")
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	snapshot.Data.Products = products

	sales, err := s.ListSales(ctx, store.SaleFilter{Limit: 1 << 20})
	if err != nil {
		return nil, err
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].VoucherNumber < sales[j].VoucherNumber })
	snapshot.Data.Sales = sales

	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Data.Users = users

	return &snapshot, nil
}

// RestoreSnapshot wipes and reloads every table in one transaction.
// Stored totals and voucher numbers are inserted verbatim; the voucher
// counters are rebuilt from the highest restored sequence per day.
func (s *Store) RestoreSnapshot(ctx context.Context, snapshot domain.BackupSnapshot) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return persistErr("restore snapshot", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	for _, table := range []string{"sale_items", "sales", "products", "app_users", "voucher_counters"} {
		if _, err := pgTx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
			return persistErr("restore snapshot", err)
		}
	}

	for _, p := range snapshot.Data.Products {
		if p.ID == "" {
			return store.ErrInvalidArgument
		}
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO products (id, name, barcode, category, cost_price, sale_price, quantity, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, p.ID, p.Name, nullIfEmpty(p.Barcode), p.Category, p.CostPrice, p.SalePrice, p.Quantity, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return &store.DuplicateBarcodeError{Barcode: p.Barcode}
			}
			return err
		}
	}

	seqByDay := make(map[string]int64)
	for _, sale := range snapshot.Data.Sales {
		if sale.ID == "" || sale.VoucherNumber == "" {
			return store.ErrInvalidArgument
		}
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sales (
				id, voucher_number, total_cost, total_sale, profit,
				received_amount, change_amount, created_by, created_at, updated_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, sale.ID, sale.VoucherNumber, sale.TotalCost, sale.TotalSale, sale.Profit,
			sale.ReceivedAmount, sale.ChangeAmount, sale.CreatedBy, sale.CreatedAt, sale.UpdatedAt)
		if err != nil {
			return err
		}
		if err := insertSaleItems(ctx, pgTx, sale.ID, sale.Items); err != nil {
			return err
		}
		if day, seq, ok := store.ParseVoucherSeq(s.voucherPrefix, sale.VoucherNumber); ok {
			if seq > seqByDay[day] {
				seqByDay[day] = seq
			}
		}
	}

	for day, seq := range seqByDay {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO voucher_counters (day, last_seq) VALUES ($1, $2)
		`, day, seq)
		if err != nil {
			return err
		}
	}

	for _, user := range snapshot.Data.Users {
		id := user.ID
		if id == "" {
			id = xid.New("user")
		}
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO app_users (id, username, password, role, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, id, strings.ToLower(user.Username), user.Password, user.Role, user.CreatedAt)
		if err != nil {
			return persistErr("restore snapshot", err)
		}
	}

	if err := pgTx.Commit(); err != nil {
		return persistErr("restore snapshot", err)
	}
	return nil
}

// CreateHeldCart parks a cart's lines as a JSON document; held carts
// are register state, not sales, so they sit outside the sales tables
// and hold no stock.
func (s *Store) CreateHeldCart(ctx context.Context, held domain.HeldCart) (*domain.HeldCart, error) {
	if len(held.Items) == 0 {
		return nil, store.ErrInvalidArgument
	}
	if held.ID == "" {
		held.ID = xid.New("hold")
	}
	if held.CreatedAt.IsZero() {
		held.CreatedAt = time.Now().UTC()
	}

	itemsJSON, err := json.Marshal(held.Items)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO held_carts (id, label, created_by, items, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, held.ID, held.Label, held.CreatedBy, itemsJSON, held.CreatedAt)
	if err != nil {
		return nil, persistErr("hold cart", err)
	}
	return &held, nil
}

func (s *Store) ListHeldCarts(ctx context.Context) ([]domain.HeldCart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, created_by, items, created_at
		FROM held_carts
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	carts := make([]domain.HeldCart, 0, 8)
	for rows.Next() {
		held, err := scanHeldCart(rows)
		if err != nil {
			return nil, err
		}
		carts = append(carts, held)
	}
	return carts, rows.Err()
}

// PopHeldCart removes the cart and returns it in one statement so two
// registers cannot both check out the same parked cart.
func (s *Store) PopHeldCart(ctx context.Context, id string) (*domain.HeldCart, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM held_carts
		WHERE id = $1
		RETURNING id, label, created_by, items, created_at
	`, id)
	held, err := scanHeldCart(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{EntityType: "held cart", ID: id}
		}
		return nil, err
	}
	return &held, nil
}

func (s *Store) DeleteHeldCart(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM held_carts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &store.NotFoundError{EntityType: "held cart", ID: id}
	}
	return nil
}

func getSaleTx(ctx context.Context, pgTx *sql.Tx, id string, forUpdate bool) (*domain.Sale, error) {
	query := `
		SELECT id, voucher_number, total_cost, total_sale, profit,
			received_amount, change_amount, created_by, created_at, updated_at
		FROM sales
		WHERE id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var sale domain.Sale
	err := pgTx.QueryRowContext(ctx, query, id).Scan(&sale.ID, &sale.VoucherNumber, &sale.TotalCost,
		&sale.TotalSale, &sale.Profit, &sale.ReceivedAmount, &sale.ChangeAmount,
		&sale.CreatedBy, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{EntityType: "sale", ID: id}
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.UpdatedAt = sale.UpdatedAt.UTC()

	rows, err := pgTx.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, cost_price, sale_price, total_cost, total_sale, profit
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.CostPrice,
			&item.SalePrice, &item.TotalCost, &item.TotalSale, &item.Profit); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, item)
	}
	return &sale, rows.Err()
}

func insertSaleItems(ctx context.Context, pgTx *sql.Tx, saleID string, items []domain.SaleItem) error {
	for position, item := range items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (
				sale_id, position, product_id, product_name, quantity,
				cost_price, sale_price, total_cost, total_sale, profit
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, saleID, position, item.ProductID, item.ProductName, item.Quantity,
			item.CostPrice, item.SalePrice, item.TotalCost, item.TotalSale, item.Profit)
		if err != nil {
			return err
		}
	}
	return nil
}

func lockProducts(ctx context.Context, pgTx *sql.Tx, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, cost_price, sale_price, quantity
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CostPrice, &p.SalePrice, &p.Quantity); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

// mergeLines folds duplicate product ids in encounter order; prices
// and totals are filled in by the caller from locked product rows.
func mergeLines(items []domain.SaleItem) ([]domain.SaleItem, error) {
	merged := make([]domain.SaleItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Quantity < 1 {
			return nil, store.ErrInvalidArgument
		}
		if pos, ok := index[item.ProductID]; ok {
			merged[pos].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, domain.SaleItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return merged, nil
}

func productIDs(items []domain.SaleItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func dedupe(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var barcode sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &barcode, &p.Category, &p.CostPrice, &p.SalePrice,
		&p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	if barcode.Valid {
		p.Barcode = barcode.String
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func scanHeldCart(row rowScanner) (domain.HeldCart, error) {
	var held domain.HeldCart
	var itemsJSON []byte
	if err := row.Scan(&held.ID, &held.Label, &held.CreatedBy, &itemsJSON, &held.CreatedAt); err != nil {
		return domain.HeldCart{}, err
	}
	if err := json.Unmarshal(itemsJSON, &held.Items); err != nil {
		return domain.HeldCart{}, err
	}
	held.CreatedAt = held.CreatedAt.UTC()
	return held, nil
}

// persistErr tags driver and transaction failures so callers can tell
// a retry-safe backend outage apart from a validation failure.
func persistErr(op string, err error) error {
	return &store.PersistenceError{Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTimeValue(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}
