package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/finance-ledger/ledger"
	"github.com/warp/finance-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	alice = ledger.UserID("user-alice")
	bob   = ledger.UserID("user-bob")
)

func newTestApplier() (*ledger.Applier, *store.TxMemory) {
	mem := store.NewTxMemory()
	applier := ledger.NewApplier(mem, mem)
	applier.Now = func() time.Time {
		return time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	}
	return applier, mem
}

func seedAccount(t *testing.T, mem *store.TxMemory, userID ledger.UserID, name string, accountType ledger.AccountType, opening float64) *ledger.Account {
	t.Helper()
	account := ledger.NewAccount(userID, name, accountType, decimal.NewFromFloat(opening))
	require.NoError(t, mem.CreateAccount(context.Background(), account))
	return account
}

func seedCategory(mem *store.TxMemory, userID ledger.UserID, name string) ledger.CategoryID {
	id := ledger.NewCategoryID()
	mem.AddCategory(ledger.Category{ID: id, UserID: userID, Name: name})
	return id
}

func money(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func balanceOf(t *testing.T, mem *store.TxMemory, userID ledger.UserID, id ledger.AccountID) decimal.Decimal {
	t.Helper()
	account, err := mem.GetAccount(context.Background(), userID, id)
	require.NoError(t, err)
	return account.CurrentBalance
}

// =============================================================================
// SINGLE-ACCOUNT EVENTS
// =============================================================================

func TestApplier_Income_IncreasesBalance(t *testing.T) {
	// GIVEN: A bank account with 100
	// WHEN: Recording 50 of income
	// THEN: Balance is 150 and the ledger row carries the derived month

	applier, mem := newTestApplier()
	account := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 100)

	tx, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:      ledger.TxIncome,
		Amount:    money(50),
		AccountID: account.ID,
		Date:      time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "2025-03", tx.Month)
	assert.True(t, balanceOf(t, mem, alice, account.ID).Equal(money(150)),
		"expected 150, got %s", balanceOf(t, mem, alice, account.ID))
}

func TestApplier_Expense_DecreasesBalance(t *testing.T) {
	applier, mem := newTestApplier()
	account := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 100)
	groceries := seedCategory(mem, alice, "Groceries")

	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:       ledger.TxExpense,
		Amount:     money(30),
		AccountID:  account.ID,
		CategoryID: groceries,
	})
	require.NoError(t, err)

	assert.True(t, balanceOf(t, mem, alice, account.ID).Equal(money(70)))
}

func TestApplier_Expense_WithoutCategory_Rejected(t *testing.T) {
	applier, mem := newTestApplier()
	account := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 100)

	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:      ledger.TxExpense,
		Amount:    money(30),
		AccountID: account.ID,
	})

	assert.True(t, ledger.IsValidation(err), "expected validation error, got %v", err)
	assert.True(t, balanceOf(t, mem, alice, account.ID).Equal(money(100)), "balance must be untouched")
}

func TestApplier_Expense_ForeignCategory_NotFound(t *testing.T) {
	// GIVEN: A category owned by another user
	// WHEN: Alice references it on an expense
	// THEN: NotFound, indistinguishable from a missing category

	applier, mem := newTestApplier()
	account := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 100)
	bobsCategory := seedCategory(mem, bob, "Rent")

	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:       ledger.TxExpense,
		Amount:     money(30),
		AccountID:  account.ID,
		CategoryID: bobsCategory,
	})

	assert.True(t, ledger.IsNotFound(err), "expected not found, got %v", err)
}

func TestApplier_NonPositiveAmount_Rejected(t *testing.T) {
	applier, mem := newTestApplier()
	account := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 100)

	for _, amount := range []decimal.Decimal{decimal.Zero, money(-5)} {
		_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
			Type:      ledger.TxIncome,
			Amount:    amount,
			AccountID: account.ID,
		})
		assert.True(t, ledger.IsValidation(err), "amount %s should be rejected", amount)
	}
}

func TestApplier_ForeignAccount_NotFound(t *testing.T) {
	applier, mem := newTestApplier()
	bobsAccount := seedAccount(t, mem, bob, "Bob Checking", ledger.AccountBank, 100)

	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:      ledger.TxIncome,
		Amount:    money(50),
		AccountID: bobsAccount.ID,
	})

	assert.True(t, ledger.IsNotFound(err))
	assert.True(t, balanceOf(t, mem, bob, bobsAccount.ID).Equal(money(100)))
}

// =============================================================================
// CREDIT CARD SIGN CONVENTION
// =============================================================================

func TestApplier_CreditCard_ExpenseGrowsDebt(t *testing.T) {
	// GIVEN: A credit card with 0 balance
	// WHEN: Recording a 40 expense
	// THEN: Balance is +40 (debt grows)

	applier, mem := newTestApplier()
	card := seedAccount(t, mem, alice, "Visa", ledger.AccountCreditCard, 0)
	dining := seedCategory(mem, alice, "Dining")

	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:       ledger.TxExpense,
		Amount:     money(40),
		AccountID:  card.ID,
		CategoryID: dining,
	})
	require.NoError(t, err)

	assert.True(t, balanceOf(t, mem, alice, card.ID).Equal(money(40)))
}

func TestApplier_CreditCard_IncomeRejected(t *testing.T) {
	applier, mem := newTestApplier()
	card := seedAccount(t, mem, alice, "Visa", ledger.AccountCreditCard, 0)

	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:      ledger.TxIncome,
		Amount:    money(40),
		AccountID: card.ID,
	})

	assert.True(t, ledger.IsValidation(err), "credit cards accept only EXPENSE")
}

// =============================================================================
// TRANSFERS
// =============================================================================

func TestApplier_Transfer_ConservesValue(t *testing.T) {
	// GIVEN: Checking 200, Savings 50
	// WHEN: Transferring 80
	// THEN: Checking 120, Savings 130; the total is unchanged

	applier, mem := newTestApplier()
	checking := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 200)
	savings := seedAccount(t, mem, alice, "Savings", ledger.AccountSavings, 50)

	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:          ledger.TxTransfer,
		Amount:        money(80),
		FromAccountID: checking.ID,
		ToAccountID:   savings.ID,
	})
	require.NoError(t, err)

	from := balanceOf(t, mem, alice, checking.ID)
	to := balanceOf(t, mem, alice, savings.ID)
	assert.True(t, from.Equal(money(120)), "from balance: %s", from)
	assert.True(t, to.Equal(money(130)), "to balance: %s", to)
	assert.True(t, from.Add(to).Equal(money(250)), "transfer must conserve total value")
}

func TestApplier_Transfer_SameAccount_Rejected(t *testing.T) {
	applier, mem := newTestApplier()
	checking := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 200)

	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:          ledger.TxTransfer,
		Amount:        money(10),
		FromAccountID: checking.ID,
		ToAccountID:   checking.ID,
	})

	assert.True(t, ledger.IsValidation(err))
}

func TestApplier_Transfer_CreditCardLegs_Rejected(t *testing.T) {
	applier, mem := newTestApplier()
	checking := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 200)
	card := seedAccount(t, mem, alice, "Visa", ledger.AccountCreditCard, 0)

	// Into a card
	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:          ledger.TxTransfer,
		Amount:        money(10),
		FromAccountID: checking.ID,
		ToAccountID:   card.ID,
	})
	assert.True(t, ledger.IsValidation(err), "transfer into a card must fail")

	// Out of a card
	_, err = applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:          ledger.TxTransfer,
		Amount:        money(10),
		FromAccountID: card.ID,
		ToAccountID:   checking.ID,
	})
	assert.True(t, ledger.IsValidation(err), "transfer out of a card must fail")

	assert.True(t, balanceOf(t, mem, alice, checking.ID).Equal(money(200)))
	assert.True(t, balanceOf(t, mem, alice, card.ID).Equal(money(0)))
}

func TestApplier_Transfer_CrossUserCreditLeg_Allowed(t *testing.T) {
	// GIVEN: Bob owns the destination account
	// WHEN: Alice transfers out of her own account into it
	// THEN: Allowed; ownership is enforced on the debited leg only

	applier, mem := newTestApplier()
	checking := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 200)
	shared := seedAccount(t, mem, bob, "Household", ledger.AccountBank, 10)

	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:          ledger.TxTransfer,
		Amount:        money(60),
		FromAccountID: checking.ID,
		ToAccountID:   shared.ID,
	})
	require.NoError(t, err)

	assert.True(t, balanceOf(t, mem, alice, checking.ID).Equal(money(140)))
	assert.True(t, balanceOf(t, mem, bob, shared.ID).Equal(money(70)))
}

func TestApplier_Transfer_ForeignDebitLeg_NotFound(t *testing.T) {
	applier, mem := newTestApplier()
	bobs := seedAccount(t, mem, bob, "Bob Checking", ledger.AccountBank, 100)
	mine := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 100)

	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:          ledger.TxTransfer,
		Amount:        money(10),
		FromAccountID: bobs.ID,
		ToAccountID:   mine.ID,
	})

	assert.True(t, ledger.IsNotFound(err), "cannot debit another user's account")
}

// =============================================================================
// ATOMICITY
// =============================================================================

func TestApplier_FailedTransfer_RollsBackEverything(t *testing.T) {
	// GIVEN: A transfer whose credit leg targets a nonexistent account
	// WHEN: The applier runs; the debit adjustment succeeds before the failure
	// THEN: The debit is rolled back, no ledger row and no outbox row exist

	applier, mem := newTestApplier()
	checking := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 200)

	_, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:          ledger.TxTransfer,
		Amount:        money(80),
		FromAccountID: checking.ID,
		ToAccountID:   ledger.AccountID("no-such-account"),
	})
	require.Error(t, err)

	assert.True(t, balanceOf(t, mem, alice, checking.ID).Equal(money(200)), "debit must be rolled back")

	txs, err := mem.ListTransactions(context.Background(), alice, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs, "no ledger row may survive a failed transfer")

	pending, err := mem.UnpublishedOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "no outbox row may survive a failed transfer")
}

func TestApplier_Apply_WritesOutboxRowAtomically(t *testing.T) {
	applier, mem := newTestApplier()
	account := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 100)

	tx, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:      ledger.TxIncome,
		Amount:    money(25),
		AccountID: account.ID,
	})
	require.NoError(t, err)

	pending, err := mem.UnpublishedOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ledger.TopicTransactionCreated, pending[0].Topic)
	assert.Contains(t, string(pending[0].Payload), string(tx.ID))
}

// =============================================================================
// SOFT DELETE
// =============================================================================

func TestApplier_Delete_ReversesSingleAccountEffect(t *testing.T) {
	applier, mem := newTestApplier()
	account := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 100)
	groceries := seedCategory(mem, alice, "Groceries")

	tx, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:       ledger.TxExpense,
		Amount:     money(30),
		AccountID:  account.ID,
		CategoryID: groceries,
	})
	require.NoError(t, err)
	require.True(t, balanceOf(t, mem, alice, account.ID).Equal(money(70)))

	require.NoError(t, applier.Delete(context.Background(), alice, tx.ID))

	assert.True(t, balanceOf(t, mem, alice, account.ID).Equal(money(100)), "delete must restore the balance")

	txs, err := mem.ListTransactions(context.Background(), alice, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs, "deleted rows are invisible to reads")
}

func TestApplier_Delete_ReversesBothTransferLegs(t *testing.T) {
	applier, mem := newTestApplier()
	checking := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 200)
	savings := seedAccount(t, mem, alice, "Savings", ledger.AccountSavings, 50)

	tx, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:          ledger.TxSaving,
		Amount:        money(80),
		FromAccountID: checking.ID,
		ToAccountID:   savings.ID,
	})
	require.NoError(t, err)

	require.NoError(t, applier.Delete(context.Background(), alice, tx.ID))

	assert.True(t, balanceOf(t, mem, alice, checking.ID).Equal(money(200)))
	assert.True(t, balanceOf(t, mem, alice, savings.ID).Equal(money(50)))
}

func TestApplier_Delete_Twice_NotFound(t *testing.T) {
	// A deleted row is gone from every read path, including delete itself.

	applier, mem := newTestApplier()
	account := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 100)

	tx, err := applier.Apply(context.Background(), alice, ledger.TransactionRequest{
		Type:      ledger.TxIncome,
		Amount:    money(10),
		AccountID: account.ID,
	})
	require.NoError(t, err)

	require.NoError(t, applier.Delete(context.Background(), alice, tx.ID))
	err = applier.Delete(context.Background(), alice, tx.ID)

	assert.True(t, ledger.IsNotFound(err), "second delete must not double-reverse")
	assert.True(t, balanceOf(t, mem, alice, account.ID).Equal(money(100)))
}

func TestApplier_Delete_ForeignTransaction_NotFound(t *testing.T) {
	applier, mem := newTestApplier()
	account := seedAccount(t, mem, bob, "Bob Checking", ledger.AccountBank, 100)

	tx, err := applier.Apply(context.Background(), bob, ledger.TransactionRequest{
		Type:      ledger.TxIncome,
		Amount:    money(10),
		AccountID: account.ID,
	})
	require.NoError(t, err)

	err = applier.Delete(context.Background(), alice, tx.ID)
	assert.True(t, ledger.IsNotFound(err))
	assert.True(t, balanceOf(t, mem, bob, account.ID).Equal(money(110)), "bob's balance stays put")
}

// =============================================================================
// BALANCE CONSERVATION OVER A MIXED HISTORY
// =============================================================================

func TestApplier_BalanceMatchesReplayedHistory(t *testing.T) {
	// CurrentBalance must always equal OpeningBalance plus the signed sum
	// of the account's surviving transactions.

	applier, mem := newTestApplier()
	account := seedAccount(t, mem, alice, "Checking", ledger.AccountBank, 500)
	groceries := seedCategory(mem, alice, "Groceries")

	var deleted ledger.TransactionID
	steps := []ledger.TransactionRequest{
		{Type: ledger.TxIncome, Amount: money(120), AccountID: account.ID},
		{Type: ledger.TxExpense, Amount: money(45.50), AccountID: account.ID, CategoryID: groceries},
		{Type: ledger.TxExpense, Amount: money(14.25), AccountID: account.ID, CategoryID: groceries},
		{Type: ledger.TxIncome, Amount: money(3), AccountID: account.ID},
	}
	for i, req := range steps {
		tx, err := applier.Apply(context.Background(), alice, req)
		require.NoError(t, err)
		if i == 2 {
			deleted = tx.ID
		}
	}
	require.NoError(t, applier.Delete(context.Background(), alice, deleted))

	txs, err := mem.ListTransactions(context.Background(), alice, ledger.TransactionFilter{AccountID: account.ID})
	require.NoError(t, err)

	replayed := account.OpeningBalance
	for _, tx := range txs {
		delta, err := ledger.SignedDelta(ledger.AccountBank, tx.Type, tx.Amount)
		require.NoError(t, err)
		replayed = replayed.Add(delta)
	}

	current := balanceOf(t, mem, alice, account.ID)
	assert.True(t, current.Equal(replayed), "current %s != replayed %s", current, replayed)
	assert.True(t, current.Equal(money(577.50)))
}
