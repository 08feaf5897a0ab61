package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/finance-ledger/api"
	"github.com/warp/finance-ledger/ledger"
	"github.com/warp/finance-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	testToken = "test-token"
	testUser  = ledger.UserID("user-1")
)

func newTestServer(t *testing.T) (*httptest.Server, *store.TxMemory) {
	t.Helper()
	mem := store.NewTxMemory()
	handler := api.NewHandler(mem, mem)
	router := api.NewRouter(handler, api.StaticTokens{testToken: testUser})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, mem
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createAccount(t *testing.T, url string, name, accountType, opening string) api.AccountDTO {
	t.Helper()
	resp := doJSON(t, http.MethodPost, url+"/api/accounts", testToken, api.CreateAccountRequest{
		Name: name, Type: accountType, OpeningBalance: opening,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[api.AccountDTO](t, resp)
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAPI_MissingToken_Unauthorized(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/accounts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_UnknownToken_Unauthorized(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/accounts", "wrong-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_Healthz_NoAuthRequired(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAPI_CreateAndGetAccount(t *testing.T) {
	server, _ := newTestServer(t)

	created := createAccount(t, server.URL, "Checking", "BANK", "250.00")
	assert.Equal(t, "250", created.CurrentBalance)
	assert.True(t, created.IsActive)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/accounts/"+created.ID, testToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[api.AccountDTO](t, resp)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Checking", got.Name)
}

func TestAPI_CreateAccount_UnknownType_BadRequest(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/accounts", testToken, api.CreateAccountRequest{
		Name: "X", Type: "CRYPTO",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_CreateAccount_DuplicateName_Conflict(t *testing.T) {
	server, _ := newTestServer(t)
	createAccount(t, server.URL, "Checking", "BANK", "0")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/accounts", testToken, api.CreateAccountRequest{
		Name: "Checking", Type: "CASH",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_GetAccount_Unknown_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/accounts/nope", testToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestAPI_RecordIncome_UpdatesBalance(t *testing.T) {
	server, _ := newTestServer(t)
	account := createAccount(t, server.URL, "Checking", "BANK", "100")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/transactions", testToken, api.CreateTransactionRequest{
		Type: "INCOME", Amount: "45.50", AccountID: account.ID, Date: "2025-03-10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tx := decode[api.TransactionDTO](t, resp)
	assert.Equal(t, "2025-03", tx.Month)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/accounts/"+account.ID, testToken, nil)
	got := decode[api.AccountDTO](t, resp)
	assert.Equal(t, "145.5", got.CurrentBalance)
}

func TestAPI_Expense_WithoutCategory_BadRequest(t *testing.T) {
	server, _ := newTestServer(t)
	account := createAccount(t, server.URL, "Checking", "BANK", "100")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/transactions", testToken, api.CreateTransactionRequest{
		Type: "EXPENSE", Amount: "20", AccountID: account.ID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Expense_WithCategory(t *testing.T) {
	server, _ := newTestServer(t)
	account := createAccount(t, server.URL, "Checking", "BANK", "100")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/categories", testToken, api.CreateCategoryRequest{Name: "Groceries"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	category := decode[api.CategoryDTO](t, resp)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/transactions", testToken, api.CreateTransactionRequest{
		Type: "EXPENSE", Amount: "20", AccountID: account.ID, CategoryID: category.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/accounts/"+account.ID, testToken, nil)
	got := decode[api.AccountDTO](t, resp)
	assert.Equal(t, "80", got.CurrentBalance)
}

func TestAPI_ListTransactions_Filtered(t *testing.T) {
	server, _ := newTestServer(t)
	account := createAccount(t, server.URL, "Checking", "BANK", "0")

	for _, date := range []string{"2025-02-01", "2025-03-01", "2025-03-15"} {
		resp := doJSON(t, http.MethodPost, server.URL+"/api/transactions", testToken, api.CreateTransactionRequest{
			Type: "INCOME", Amount: "10", AccountID: account.ID, Date: date,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodGet, server.URL+"/api/transactions?month=2025-03", testToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	txs := decode[[]api.TransactionDTO](t, resp)
	assert.Len(t, txs, 2)
}

func TestAPI_DeleteTransaction_RestoresBalance(t *testing.T) {
	server, _ := newTestServer(t)
	account := createAccount(t, server.URL, "Checking", "BANK", "100")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/transactions", testToken, api.CreateTransactionRequest{
		Type: "INCOME", Amount: "50", AccountID: account.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tx := decode[api.TransactionDTO](t, resp)

	resp = doJSON(t, http.MethodDelete, server.URL+"/api/transactions/"+tx.ID, testToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/accounts/"+account.ID, testToken, nil)
	got := decode[api.AccountDTO](t, resp)
	assert.Equal(t, "100", got.CurrentBalance)

	resp = doJSON(t, http.MethodDelete, server.URL+"/api/transactions/"+tx.ID, testToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// ANALYTICS
// =============================================================================

func TestAPI_Report_MonthWindow(t *testing.T) {
	server, _ := newTestServer(t)
	account := createAccount(t, server.URL, "Checking", "BANK", "0")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/transactions", testToken, api.CreateTransactionRequest{
		Type: "INCOME", Amount: "300", AccountID: account.ID, Date: "2025-03-10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/reports?month=2025-03", testToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[api.ReportDTO](t, resp)

	assert.Equal(t, "2025-03-01", report.WindowStart)
	assert.Equal(t, "2025-03-31", report.WindowEnd)
	assert.Equal(t, "300", report.Income)
	assert.Equal(t, "0", report.OpeningBalance)
	assert.Equal(t, "300", report.ClosingBalance)
	require.NotNil(t, report.HighestTransaction)
	assert.Equal(t, "300", report.HighestTransaction.Amount)
}

func TestAPI_Report_ConflictingWindows_BadRequest(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/reports?month=2025-03&week=2025-W10", testToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_MonthlySnapshot(t *testing.T) {
	server, _ := newTestServer(t)
	account := createAccount(t, server.URL, "Checking", "BANK", "0")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/transactions", testToken, api.CreateTransactionRequest{
		Type: "INCOME", Amount: "120", AccountID: account.ID, Date: "2025-03-10",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/analytics/monthly?accountId="+account.ID+"&month=2025-03", testToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[api.SnapshotDTO](t, resp)

	assert.Equal(t, "2025-03", snap.Month)
	assert.Equal(t, "120", snap.Income)
	assert.Equal(t, "120", snap.ClosingBalance)
}

func TestAPI_MonthlySnapshot_MissingAccount_BadRequest(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/analytics/monthly?month=2025-03", testToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
