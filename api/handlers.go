/*
handlers.go - HTTP API handlers for the personal-finance ledger

PURPOSE:
  Exposes the ledger core via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    GET    /api/accounts               List the caller's accounts
    POST   /api/accounts               Create account
    GET    /api/accounts/{id}          Get account details

  Transactions:
    GET    /api/transactions           List transactions (filterable)
    POST   /api/transactions           Record a financial event
    DELETE /api/transactions/{id}      Soft-delete a transaction

  Categories:
    GET    /api/categories             List expense categories
    POST   /api/categories             Create category

  Analytics:
    GET    /api/reports                Windowed report (month/week/range)
    GET    /api/analytics/monthly      Cached monthly snapshot

AUTHENTICATION:
  Every /api route requires a bearer token. The Authenticator maps the
  token to a UserID; handlers never see a request without one. All
  reads and writes are scoped to that user.

ERROR HANDLING:
  Domain errors map to HTTP status through the ledger error taxonomy:
  - 400: validation errors
  - 401: missing/unknown token
  - 404: resource absent or not owned (indistinguishable on purpose)
  - 409: conflict (duplicate account name)
  - 503: transient storage errors, safe to retry
  - 500: everything else

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/ledger"
)

// =============================================================================
// AUTHENTICATION
// =============================================================================

// Authenticator resolves a bearer token to a user. Implementations may
// back this with a session store or an identity provider; the handlers
// only care about the resulting UserID.
type Authenticator interface {
	Authenticate(token string) (ledger.UserID, error)
}

// StaticTokens is a fixed token -> user mapping, used in development
// and tests.
type StaticTokens map[string]ledger.UserID

func (s StaticTokens) Authenticate(token string) (ledger.UserID, error) {
	userID, ok := s[token]
	if !ok {
		return "", ledger.ErrUnauthorized
	}
	return userID, nil
}

type contextKey string

const userIDKey contextKey = "userID"

func userFrom(r *http.Request) ledger.UserID {
	userID, _ := r.Context().Value(userIDKey).(ledger.UserID)
	return userID
}

// RequireAuth extracts the bearer token, authenticates it, and stores
// the UserID in the request context.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}

			userID, err := auth.Authenticate(header[len(prefix):])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// CategoryStore is the category persistence surface the API needs on
// top of the validation/lookup contract of CategoryProvider.
type CategoryStore interface {
	ledger.CategoryProvider
	CreateCategory(ctx context.Context, category *ledger.Category) error
	ListCategories(ctx context.Context, userID ledger.UserID) ([]ledger.Category, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      ledger.Store
	Applier    *ledger.Applier
	Engine     *ledger.Engine
	Snapshots  *ledger.SnapshotCache
	Categories CategoryStore
}

// NewHandler wires the domain services onto one store.
func NewHandler(store ledger.TxStore, categories CategoryStore) *Handler {
	return &Handler{
		Store:      store,
		Applier:    ledger.NewApplier(store, categories),
		Engine:     ledger.NewEngine(store, categories),
		Snapshots:  ledger.NewSnapshotCache(store),
		Categories: categories,
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// CreateAccount creates a new account for the caller.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Account name is required", nil)
		return
	}
	if !ledger.ValidAccountType(ledger.AccountType(req.Type)) {
		writeError(w, http.StatusBadRequest, "Unknown account type", nil)
		return
	}

	opening := decimal.Zero
	if req.OpeningBalance != "" {
		var err error
		opening, err = decimal.NewFromString(req.OpeningBalance)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid openingBalance", err)
			return
		}
	}

	account := ledger.NewAccount(userFrom(r), req.Name, ledger.AccountType(req.Type), opening)
	if err := h.Store.CreateAccount(r.Context(), account); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// ListAccounts returns all of the caller's accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.ListAccounts(r.Context(), userFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(chi.URLParam(r, "id"))

	account, err := h.Store.GetAccount(r.Context(), userFrom(r), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction records one financial event through the applier.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	var date time.Time
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	tx, err := h.Applier.Apply(r.Context(), userFrom(r), ledger.TransactionRequest{
		Type:          ledger.TransactionType(req.Type),
		Amount:        amount,
		AccountID:     ledger.AccountID(req.AccountID),
		FromAccountID: ledger.AccountID(req.FromAccountID),
		ToAccountID:   ledger.AccountID(req.ToAccountID),
		CategoryID:    ledger.CategoryID(req.CategoryID),
		Date:          date,
		Note:          req.Note,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// ListTransactions returns the caller's transactions, optionally
// filtered by accountId, type, and month query parameters.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := ledger.TransactionFilter{
		AccountID: ledger.AccountID(r.URL.Query().Get("accountId")),
		Type:      ledger.TransactionType(r.URL.Query().Get("type")),
		Month:     r.URL.Query().Get("month"),
	}
	if filter.Type != "" && !ledger.ValidTransactionType(filter.Type) {
		writeError(w, http.StatusBadRequest, "Unknown transaction type", nil)
		return
	}

	txs, err := h.Store.ListTransactions(r.Context(), userFrom(r), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i := range txs {
		dtos[i] = toTransactionDTO(&txs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteTransaction soft-deletes a transaction and reverses its balance
// effect.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	if err := h.Applier.Delete(r.Context(), userFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": string(id)})
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// CreateCategory creates an expense category for the caller.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Category name is required", nil)
		return
	}

	category := &ledger.Category{
		ID:     ledger.NewCategoryID(),
		UserID: userFrom(r),
		Name:   req.Name,
	}
	if err := h.Categories.CreateCategory(r.Context(), category); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CategoryDTO{ID: string(category.ID), Name: category.Name})
}

// ListCategories returns the caller's categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Categories.ListCategories(r.Context(), userFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = CategoryDTO{ID: string(c.ID), Name: c.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

// GetReport computes a windowed report. The window comes from exactly
// one of: ?month=YYYY-MM, ?week=YYYY-Www, or ?startDate=&endDate=.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	report, err := h.Engine.GetReport(r.Context(), userFrom(r), ledger.ReportQuery{
		WindowQuery: ledger.WindowQuery{
			Month:     q.Get("month"),
			Week:      q.Get("week"),
			StartDate: q.Get("startDate"),
			EndDate:   q.Get("endDate"),
		},
		AccountID: ledger.AccountID(q.Get("accountId")),
		Type:      ledger.TransactionType(q.Get("type")),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// GetMonthlySnapshot serves the cached monthly summary for an account,
// recomputing it when stale.
func (h *Handler) GetMonthlySnapshot(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(r.URL.Query().Get("accountId"))
	month := r.URL.Query().Get("month")

	if accountID == "" {
		writeError(w, http.StatusBadRequest, "accountId is required", nil)
		return
	}

	snap, err := h.Snapshots.GetOrRecompute(r.Context(), userFrom(r), accountID, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger errors onto HTTP status codes. Internal
// details stay out of 500 responses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case ledger.IsUnauthorized(err):
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case ledger.IsRetryable(err):
		writeError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable, retry", nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}
