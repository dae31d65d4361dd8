package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"zaypos/backend/internal/cache"
	"zaypos/backend/internal/cart"
	"zaypos/backend/internal/domain"
	"zaypos/backend/internal/reporting"
	"zaypos/backend/internal/store"
	"zaypos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const statsCacheKey = "zaypos:stats:dashboard"

type Service struct {
	repo              store.Repository
	stats             cache.StatsCache
	logger            *zap.Logger
	lowStockThreshold int64
	statsTTL          time.Duration
}

func New(repo store.Repository, stats cache.StatsCache, logger *zap.Logger, lowStockThreshold int64, statsTTL time.Duration) *Service {
	if stats == nil {
		stats = cache.NoopStatsCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if lowStockThreshold < 1 {
		lowStockThreshold = 5
	}
	if statsTTL <= 0 {
		statsTTL = 30 * time.Second
	}

	return &Service{
		repo:              repo,
		stats:             stats,
		logger:            logger,
		lowStockThreshold: lowStockThreshold,
		statsTTL:          statsTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context, category string, search string) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, strings.TrimSpace(category), strings.TrimSpace(search))
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, store.ErrInvalidArgument
	}
	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return domain.Product{}, store.ErrInvalidArgument
	}
	if req.CostPrice < 0 || req.SalePrice < 0 || req.Quantity < 0 {
		return domain.Product{}, store.ErrInvalidArgument
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:      req.Name,
		Barcode:   req.Barcode,
		Category:  req.Category,
		CostPrice: req.CostPrice,
		SalePrice: req.SalePrice,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,sale_price=%d,quantity=%d", created.Name, created.SalePrice, created.Quantity))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidArgument
		}
		updated.Name = name
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.CostPrice != nil {
		if *req.CostPrice < 0 {
			return domain.Product{}, store.ErrInvalidArgument
		}
		updated.CostPrice = *req.CostPrice
	}
	if req.SalePrice != nil {
		if *req.SalePrice < 0 {
			return domain.Product{}, store.ErrInvalidArgument
		}
		updated.SalePrice = *req.SalePrice
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return domain.Product{}, store.ErrInvalidArgument
		}
		updated.Quantity = *req.Quantity
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("sale_price=%d,quantity=%d", saved.SalePrice, saved.Quantity))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

// CommitSale hands the whole commit to the repository, which performs
// voucher allocation, persistence and the stock debit atomically. The
// service only shapes the request and records who rang it up.
func (s *Service) CommitSale(ctx context.Context, req domain.SaleCommitRequest) (domain.Sale, error) {
	if len(req.Items) == 0 {
		return domain.Sale{}, store.ErrInvalidArgument
	}
	if req.ReceivedAmount < 0 {
		return domain.Sale{}, store.ErrInvalidArgument
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, line := range req.Items {
		if line.ProductID == "" || line.Quantity < 1 {
			return domain.Sale{}, store.ErrInvalidArgument
		}
		items = append(items, domain.SaleItem{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	createdBy := "pos-user"
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		createdBy = actor.Username
	}

	sale, err := s.repo.CommitSale(ctx, domain.Sale{
		Items:          items,
		ReceivedAmount: req.ReceivedAmount,
		CreatedBy:      createdBy,
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "sale_commit", "sale", sale.ID, fmt.Sprintf("voucher=%s,total=%d,profit=%d", sale.VoucherNumber, sale.TotalSale, sale.Profit))
	s.logger.Info("sale committed",
		zap.String("sale_id", sale.ID),
		zap.String("voucher", sale.VoucherNumber),
		zap.Int64("total_sale", sale.TotalSale),
		zap.Int("items", len(sale.Items)),
		zap.String("created_by", createdBy),
	)
	return *sale, nil
}

// UpdateSale edits a committed sale's lines, its received amount, or
// both. The repository recomputes the stored change so it keeps equal
// to received minus the new total.
func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	if id == "" {
		return domain.Sale{}, store.ErrInvalidArgument
	}
	if req.Items == nil && req.ReceivedAmount == nil {
		return domain.Sale{}, store.ErrInvalidArgument
	}
	if req.ReceivedAmount != nil && *req.ReceivedAmount < 0 {
		return domain.Sale{}, store.ErrInvalidArgument
	}

	upd := store.SaleUpdate{ID: id, ReceivedAmount: req.ReceivedAmount}
	if req.Items != nil {
		if len(req.Items) == 0 {
			return domain.Sale{}, store.ErrInvalidArgument
		}
		items := make([]domain.SaleItem, 0, len(req.Items))
		for _, line := range req.Items {
			if line.ProductID == "" || line.Quantity < 1 {
				return domain.Sale{}, store.ErrInvalidArgument
			}
			items = append(items, domain.SaleItem{ProductID: line.ProductID, Quantity: line.Quantity})
		}
		upd.Items = items
	}

	sale, err := s.repo.UpdateSale(ctx, upd)
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "sale_update", "sale", sale.ID, fmt.Sprintf("voucher=%s,total=%d,change=%d", sale.VoucherNumber, sale.TotalSale, sale.ChangeAmount))
	return *sale, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	if id == "" {
		return store.ErrInvalidArgument
	}

	if err := s.repo.DeleteSale(ctx, id); err != nil {
		return err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "sale_delete", "sale", id, "stock restored")
	return nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// ListSales filters by an optional "2006-01-02" day (UTC). An empty
// date returns the most recent sales across all days.
func (s *Service) ListSales(ctx context.Context, date string, limit int) ([]domain.Sale, error) {
	filter := store.SaleFilter{Limit: limit}
	if date != "" {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidArgument
		}
		filter.From = day
		filter.To = day.AddDate(0, 0, 1)
	}
	return s.repo.ListSales(ctx, filter)
}

// HoldCart parks an in-progress cart server-side so the register is
// free for the next customer. Lines are staged through a cart, which
// merges duplicate products and caps each line at the stock on hand.
// Holding never debits stock.
func (s *Service) HoldCart(ctx context.Context, req domain.HoldCartRequest) (domain.HeldCart, error) {
	if len(req.Items) == 0 {
		return domain.HeldCart{}, store.ErrInvalidArgument
	}

	c := cart.New()
	for _, line := range req.Items {
		if line.ProductID == "" || line.Quantity < 1 {
			return domain.HeldCart{}, store.ErrInvalidArgument
		}
		product, err := s.repo.GetProductByID(ctx, line.ProductID)
		if err != nil {
			return domain.HeldCart{}, err
		}
		if err := c.Add(*product, line.Quantity); err != nil {
			return domain.HeldCart{}, err
		}
	}

	createdBy := "pos-user"
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		createdBy = actor.Username
	}

	items := make([]domain.SaleItem, 0, c.Len())
	for _, line := range c.Lines() {
		items = append(items, domain.SaleItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			CostPrice:   line.CostPrice,
			SalePrice:   line.SalePrice,
			TotalCost:   line.CostPrice * line.Quantity,
			TotalSale:   line.SalePrice * line.Quantity,
			Profit:      (line.SalePrice - line.CostPrice) * line.Quantity,
		})
	}

	held, err := s.repo.CreateHeldCart(ctx, domain.HeldCart{
		Label:     strings.TrimSpace(req.Label),
		Items:     items,
		CreatedBy: createdBy,
	})
	if err != nil {
		return domain.HeldCart{}, err
	}

	s.logAudit(ctx, "cart_hold", "held_cart", held.ID, fmt.Sprintf("label=%s,items=%d", held.Label, len(held.Items)))
	return *held, nil
}

func (s *Service) ListHeldCarts(ctx context.Context) ([]domain.HeldCart, error) {
	return s.repo.ListHeldCarts(ctx)
}

// CheckoutHeldCart pops the parked cart and commits it as a fresh
// sale: prices are re-snapshotted and stock re-validated against the
// current catalog. A failed commit puts the cart back so the operator
// can correct and resubmit.
func (s *Service) CheckoutHeldCart(ctx context.Context, id string, receivedAmount int64) (domain.Sale, error) {
	if id == "" || receivedAmount < 0 {
		return domain.Sale{}, store.ErrInvalidArgument
	}

	held, err := s.repo.PopHeldCart(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}

	c := cart.New()
	for _, item := range held.Items {
		product, err := s.repo.GetProductByID(ctx, item.ProductID)
		if err != nil {
			s.restoreHeldCart(ctx, held)
			return domain.Sale{}, err
		}
		if err := c.Add(*product, item.Quantity); err != nil {
			s.restoreHeldCart(ctx, held)
			return domain.Sale{}, err
		}
	}

	sale, err := s.CommitSale(ctx, c.ToSaleRequest(receivedAmount))
	if err != nil {
		s.restoreHeldCart(ctx, held)
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "cart_checkout", "held_cart", id, fmt.Sprintf("sale=%s,voucher=%s", sale.ID, sale.VoucherNumber))
	return sale, nil
}

func (s *Service) DeleteHeldCart(ctx context.Context, id string) error {
	if id == "" {
		return store.ErrInvalidArgument
	}
	if err := s.repo.DeleteHeldCart(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "cart_discard", "held_cart", id, "")
	return nil
}

func (s *Service) restoreHeldCart(ctx context.Context, held *domain.HeldCart) {
	if _, err := s.repo.CreateHeldCart(ctx, *held); err != nil {
		s.logger.Warn("held cart restore failed", zap.String("held_cart_id", held.ID), zap.Error(err))
	}
}

func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	if cached, ok, err := s.stats.Get(ctx, statsCacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		s.logger.Warn("stats cache read failed", zap.Error(err))
	}

	stats, err := s.repo.GetDashboardStats(ctx, time.Now().UTC(), s.lowStockThreshold)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	if err := s.stats.Set(ctx, statsCacheKey, stats, s.statsTTL); err != nil {
		s.logger.Warn("stats cache write failed", zap.Error(err))
	}
	return *stats, nil
}

// TopProducts ranks the best sellers over the trailing day window.
func (s *Service) TopProducts(ctx context.Context, days int, limit int) ([]reporting.ProductPerformance, error) {
	if days < 1 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	sales, err := s.repo.ListSales(ctx, store.SaleFilter{From: since, Limit: 10000})
	if err != nil {
		return nil, err
	}
	return reporting.TopProducts(sales, since, limit), nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserView, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.UserView{}, fmt.Errorf("admin role required")
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || len(req.Password) < 6 {
		return domain.UserView{}, store.ErrInvalidArgument
	}
	role := req.Role
	if role == "" {
		role = domain.RoleStaff
	}
	if role != domain.RoleAdmin && role != domain.RoleStaff {
		return domain.UserView{}, store.ErrInvalidArgument
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserView{}, err
	}

	account := domain.UserAccount{
		ID:        xid.New("user"),
		Username:  username,
		Password:  string(hash),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, account); err != nil {
		return domain.UserView{}, err
	}

	s.logAudit(ctx, "user_create", "user", account.ID, fmt.Sprintf("username=%s,role=%s", username, role))
	return domain.UserView{ID: account.ID, Username: username, Role: role, CreatedAt: account.CreatedAt}, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserView, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}

	accounts, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.UserView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, domain.UserView{
			ID:        account.ID,
			Username:  account.Username,
			Role:      account.Role,
			CreatedAt: account.CreatedAt,
		})
	}
	return views, nil
}

func (s *Service) DeleteUser(ctx context.Context, username string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if username == actor.Username {
		return fmt.Errorf("cannot delete your own account")
	}

	if err := s.repo.DeleteUser(ctx, username); err != nil {
		return err
	}

	s.logAudit(ctx, "user_delete", "user", username, "")
	return nil
}

func (s *Service) ExportBackup(ctx context.Context) (domain.BackupSnapshot, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.BackupSnapshot{}, fmt.Errorf("admin role required")
	}

	snapshot, err := s.repo.ExportSnapshot(ctx)
	if err != nil {
		return domain.BackupSnapshot{}, err
	}

	s.logAudit(ctx, "backup_export", "backup", snapshot.Timestamp.Format(time.RFC3339),
		fmt.Sprintf("products=%d,sales=%d,users=%d", len(snapshot.Data.Products), len(snapshot.Data.Sales), len(snapshot.Data.Users)))
	return *snapshot, nil
}

func (s *Service) RestoreBackup(ctx context.Context, snapshot domain.BackupSnapshot) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}
	if snapshot.Version != domain.BackupVersion {
		return fmt.Errorf("unsupported backup version %q", snapshot.Version)
	}

	if err := s.repo.RestoreSnapshot(ctx, snapshot); err != nil {
		return err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "backup_restore", "backup", snapshot.Timestamp.Format(time.RFC3339),
		fmt.Sprintf("products=%d,sales=%d,users=%d", len(snapshot.Data.Products), len(snapshot.Data.Sales), len(snapshot.Data.Users)))
	s.logger.Info("backup restored",
		zap.Time("backup_timestamp", snapshot.Timestamp),
		zap.Int("products", len(snapshot.Data.Products)),
		zap.Int("sales", len(snapshot.Data.Sales)),
	)
	return nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("admin role required")
	}

	var from, to time.Time
	if date != "" {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidArgument
		}
		from = day
		to = day.AddDate(0, 0, 1)
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// EnsureSeedUser creates the bootstrap admin when the user table is
// empty. No-op when any account exists or when no seed is configured.
func (s *Service) EnsureSeedUser(ctx context.Context, username string, password string) error {
	if username == "" || password == "" {
		return nil
	}

	existing, err := s.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	err = s.repo.CreateUser(ctx, domain.UserAccount{
		ID:        xid.New("user"),
		Username:  strings.ToLower(strings.TrimSpace(username)),
		Password:  string(hash),
		Role:      domain.RoleAdmin,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	s.logger.Info("seed admin created", zap.String("username", username))
	return nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.stats.Invalidate(ctx, statsCacheKey); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
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
		s.logger.Warn("audit log write failed",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}
