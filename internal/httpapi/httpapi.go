package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"zaypos/backend/internal/domain"
	"zaypos/backend/internal/money"
	"zaypos/backend/internal/service"
	"zaypos/backend/internal/store"
)

const maxBodyBytes = 1 << 20

// API wires the HTTP surface to the service layer. Authorization beyond
// "has a valid token" lives in the service, so handlers stay thin.
type API struct {
	service       *service.Service
	auth          *AuthManager
	logger        *zap.Logger
	allowedOrigin string
	formatter     money.Formatter
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, logger *zap.Logger, allowedOrigin string, formatter money.Formatter) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		logger:        logger,
		allowedOrigin: allowedOrigin,
		formatter:     formatter,
		loginLimiter:  newAttemptLimiter(10, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.withSecurity)
	r.Use(a.withRequestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Get("/products", a.handleListProducts)
			r.Post("/products", a.handleCreateProduct)
			r.Get("/products/barcode/{code}", a.handleProductByBarcode)
			r.Get("/products/{id}", a.handleGetProduct)
			r.Patch("/products/{id}", a.handleUpdateProduct)
			r.Delete("/products/{id}", a.handleDeleteProduct)
			r.Get("/categories", a.handleListCategories)

			r.Post("/sales", a.handleCommitSale)
			r.Get("/sales", a.handleListSales)
			r.Get("/sales/{id}", a.handleGetSale)
			r.Get("/sales/{id}/receipt", a.handleSaleReceipt)
			r.Put("/sales/{id}", a.handleUpdateSale)
			r.Delete("/sales/{id}", a.handleDeleteSale)

			r.Post("/carts", a.handleHoldCart)
			r.Get("/carts", a.handleListHeldCarts)
			r.Post("/carts/{id}/checkout", a.handleCheckoutHeldCart)
			r.Delete("/carts/{id}", a.handleDeleteHeldCart)

			r.Get("/stats/dashboard", a.handleDashboardStats)
			r.Get("/stats/top-products", a.handleTopProducts)

			r.Post("/users", a.handleCreateUser)
			r.Get("/users", a.handleListUsers)
			r.Delete("/users/{username}", a.handleDeleteUser)

			r.Get("/backup", a.handleExportBackup)
			r.Post("/backup/restore", a.handleRestoreBackup)

			r.Get("/audit-logs", a.handleListAuditLogs)
		})
	})

	return r
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	key := clientKey(r)
	if !a.loginLimiter.Allow(key) {
		writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.logger.Info("login rejected", zap.String("client", key))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	a.loginLimiter.Reset(key)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context(), r.URL.Query().Get("category"), r.URL.Query().Get("q"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleProductByBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProductByBarcode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ListCategories(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCommitSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCommitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := a.service.CommitSale(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	limit, ok := parsePositiveLimit(w, r.URL.Query().Get("limit"))
	if !ok {
		return
	}
	sales, err := a.service.ListSales(r.Context(), r.URL.Query().Get("date"), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// handleSaleReceipt renders a plain-text receipt for reprint from the
// sale history screen. Amounts use the configured currency formatter.
func (a *API) handleSaleReceipt(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Voucher %s\n", sale.VoucherNumber)
	fmt.Fprintf(&b, "Date    %s\n", sale.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Cashier %s\n\n", sale.CreatedBy)
	for _, item := range sale.Items {
		fmt.Fprintf(&b, "%-24s x%-3d %12s\n", item.ProductName, item.Quantity, a.formatter.Format(item.TotalSale))
	}
	fmt.Fprintf(&b, "\nTotal    %12s\n", a.formatter.Format(sale.TotalSale))
	fmt.Fprintf(&b, "Received %12s\n", a.formatter.Format(sale.ReceivedAmount))
	fmt.Fprintf(&b, "Change   %12s\n", a.formatter.Format(sale.ChangeAmount))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func (a *API) handleUpdateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := a.service.UpdateSale(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteSale(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleHoldCart(w http.ResponseWriter, r *http.Request) {
	var req domain.HoldCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	held, err := a.service.HoldCart(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, held)
}

func (a *API) handleListHeldCarts(w http.ResponseWriter, r *http.Request) {
	carts, err := a.service.ListHeldCarts(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, carts)
}

func (a *API) handleCheckoutHeldCart(w http.ResponseWriter, r *http.Request) {
	var req domain.HeldCartCheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sale, err := a.service.CheckoutHeldCart(r.Context(), chi.URLParam(r, "id"), req.ReceivedAmount)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (a *API) handleDeleteHeldCart(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteHeldCart(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.DashboardStats(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}
	limit, ok := parsePositiveLimit(w, r.URL.Query().Get("limit"))
	if !ok {
		return
	}

	ranked, err := a.service.TopProducts(r.Context(), days, limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := a.service.CreateUser(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.ListUsers(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteUser(r.Context(), chi.URLParam(r, "username")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleExportBackup(w http.ResponseWriter, r *http.Request) {
	snapshot, err := a.service.ExportBackup(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (a *API) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	var snapshot domain.BackupSnapshot
	if !decodeJSON(w, r, &snapshot) {
		return
	}
	if err := a.service.RestoreBackup(r.Context(), snapshot); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (a *API) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parsePositiveLimit(w, r.URL.Query().Get("limit"))
	if !ok {
		return
	}
	logs, err := a.service.ListAuditLogs(r.Context(), r.URL.Query().Get("date"), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// requireAuth validates the bearer token and injects the actor into the
// request context. Role checks stay in the service layer.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		actor, err := a.auth.ParseToken(strings.TrimSpace(token))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func (a *API) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		if a.allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (a *API) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(started)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// writeServiceError maps service/store errors onto HTTP statuses. Unknown
// errors are logged and masked so internals never leak to clients.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrDuplicateBarcode),
		errors.Is(err, store.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInsufficientPayment):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrPersistence):
		a.logger.Error("store unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
	case err.Error() == "admin role required" || err.Error() == "cannot delete your own account":
		writeError(w, http.StatusForbidden, err.Error())
	case strings.HasPrefix(err.Error(), "unsupported backup version"):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// attemptLimiter is a small fixed-window counter keyed by client address,
// used to slow down credential stuffing on the login endpoint.
type attemptLimiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	attempts map[string]*attemptWindow
}

type attemptWindow struct {
	count     int
	windowEnd time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	return &attemptLimiter{
		max:      max,
		window:   window,
		attempts: make(map[string]*attemptWindow),
	}
}

func (l *attemptLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.attempts[key]
	if !ok || now.After(entry.windowEnd) {
		l.attempts[key] = &attemptWindow{count: 1, windowEnd: now.Add(l.window)}
		return true
	}
	entry.count++
	return entry.count <= l.max
}

func (l *attemptLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

func clientKey(r *http.Request) string {
	if addrPort, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return addrPort.Addr().String()
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func parsePositiveLimit(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}
