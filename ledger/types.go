/*
Package ledger is the transactional core of the personal-finance engine.

PURPOSE:
  Records income/expense/transfer transactions against user-owned accounts,
  maintains running account balances, and derives period-based financial
  reports from the transaction history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: per-user balance state, mutated only via balance adjustments
  - Transaction: an immutable (soft-deletable) ledger entry
  - MonthlySnapshot: a cached, recomputable monthly summary
  - DeriveMonth: the pure date -> "YYYY-MM" bucketing function

DESIGN PRINCIPLES:
  1. The transaction history is the source of truth. An account's
     CurrentBalance is a cached running total; it must always equal
     OpeningBalance plus the signed sum of the account's non-deleted
     transactions.
  2. Precision: amounts use decimal.Decimal, never float64.
  3. Transactions are never edited in place. The only mutation is the
     soft-delete flag, and flipping it re-adjusts the balance atomically.

SEE ALSO:
  - applier.go: the atomic balance applier
  - report.go: staged aggregation over the ledger
  - store.go: persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type AccountID string
type TransactionID string
type CategoryID string

func NewAccountID() AccountID         { return AccountID(uuid.NewString()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.NewString()) }
func NewCategoryID() CategoryID       { return CategoryID(uuid.NewString()) }

// =============================================================================
// ACCOUNT - Per-user balance state
// =============================================================================

type AccountType string

const (
	AccountCash       AccountType = "CASH"
	AccountBank       AccountType = "BANK"
	AccountCreditCard AccountType = "CREDIT_CARD"
	AccountWallet     AccountType = "WALLET"
	AccountSavings    AccountType = "SAVINGS"
)

// ValidAccountType reports whether t is one of the known account types.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountCash, AccountBank, AccountCreditCard, AccountWallet, AccountSavings:
		return true
	}
	return false
}

// Account holds the balance state for one user-owned account.
//
// INVARIANT:
//   CurrentBalance == OpeningBalance + signed sum of all non-deleted
//   transactions affecting this account.
//
// CurrentBalance is mutated only through AccountStore.AdjustBalance inside
// the applier's atomic unit, never by report code.
type Account struct {
	ID             AccountID
	UserID         UserID
	Name           string
	Type           AccountType
	OpeningBalance decimal.Decimal
	CurrentBalance decimal.Decimal
	IsActive       bool

	// LastTransactionAt drives snapshot staleness checks.
	// Zero means no transaction has ever touched the account.
	LastTransactionAt time.Time

	CreatedAt time.Time
}

// NewAccount builds an account with its balance seeded from the opening
// balance. The ID is server-assigned.
func NewAccount(userID UserID, name string, accountType AccountType, openingBalance decimal.Decimal) *Account {
	return &Account{
		ID:             NewAccountID(),
		UserID:         userID,
		Name:           name,
		Type:           accountType,
		OpeningBalance: openingBalance,
		CurrentBalance: openingBalance,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
}

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

type TransactionType string

const (
	TxIncome   TransactionType = "INCOME"
	TxExpense  TransactionType = "EXPENSE"
	TxTransfer TransactionType = "TRANSFER"
	TxSaving   TransactionType = "SAVING"
)

// ValidTransactionType reports whether t is one of the known transaction types.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TxIncome, TxExpense, TxTransfer, TxSaving:
		return true
	}
	return false
}

// Transaction is one financial event in the append-only ledger.
//
// Field requirements by type:
//   INCOME, EXPENSE:   AccountID set; CategoryID additionally set for EXPENSE
//   TRANSFER, SAVING:  FromAccountID and ToAccountID set
//
// Once written, the only permitted mutation is the IsDeleted soft-delete
// flag. Amount edits are corrections-by-deletion, never in-place updates.
type Transaction struct {
	ID     TransactionID
	UserID UserID
	Type   TransactionType

	// Amount is always positive; the sign of its balance effect is
	// determined by Type and the target account (see SignedDelta).
	Amount decimal.Decimal

	CategoryID    CategoryID
	AccountID     AccountID
	FromAccountID AccountID
	ToAccountID   AccountID

	Date  time.Time
	Month string // derived from Date at construction, "YYYY-MM"
	Note  string

	IsDeleted bool
	CreatedAt time.Time
}

// DeriveMonth buckets a date into its calendar month key ("YYYY-MM").
// Invoked at Transaction construction time, not as a storage-layer hook.
func DeriveMonth(date time.Time) string {
	return date.UTC().Format("2006-01")
}

// =============================================================================
// MONTHLY SNAPSHOT - Cached monthly summary
// =============================================================================

// MonthlySnapshot is a materialized per-(user, account, month) summary.
// It is a cache, not a source of truth: always reconstructible from the
// transaction ledger. Stale whenever LastComputedAt predates the account's
// LastTransactionAt.
type MonthlySnapshot struct {
	UserID    UserID
	AccountID AccountID
	Month     string

	OpeningBalance decimal.Decimal
	Income         decimal.Decimal
	Expense        decimal.Decimal
	Cashflow       decimal.Decimal
	ClosingBalance decimal.Decimal

	LastComputedAt time.Time
}

// =============================================================================
// SIGN CONVENTION
// =============================================================================

// SignedDelta returns the balance effect of applying a transaction of the
// given type to an account of the given type.
//
// Regular accounts: INCOME -> +amount, EXPENSE -> -amount.
// CREDIT_CARD accounts accept only EXPENSE, which increases the balance
// (debt grows by +amount); every other type is rejected.
func SignedDelta(accountType AccountType, txType TransactionType, amount decimal.Decimal) (decimal.Decimal, error) {
	if accountType == AccountCreditCard {
		if txType != TxExpense {
			return decimal.Zero, &ValidationError{
				Field:  "type",
				Reason: "credit card accounts accept only EXPENSE transactions",
			}
		}
		return amount, nil
	}

	switch txType {
	case TxIncome:
		return amount, nil
	case TxExpense:
		return amount.Neg(), nil
	default:
		return decimal.Zero, &ValidationError{
			Field:  "type",
			Reason: "no single-account balance effect for type " + string(txType),
		}
	}
}
