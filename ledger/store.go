/*
store.go - Persistence interfaces for accounts, ledger, snapshots, outbox

PURPOSE:
  Defines the boundary between domain logic and the database. Different
  implementations back these interfaces with SQLite or in-memory state.

NON-DELETED CONTRACT:
  Every ledger read (GetTransaction, ListTransactions) excludes
  soft-deleted rows. The predicate lives in the store implementations,
  in exactly one place per implementation, so no call site can forget it.

ATOMICITY:
  TxStore.WithTx is the single all-or-nothing boundary the applier relies
  on. Balance adjustments, the ledger append, and the outbox row for one
  financial event all land inside one WithTx call or not at all.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - ledger/store: in-memory for tests/dev

SEE ALSO:
  - applier.go: the only writer of balances and ledger rows
  - report.go, snapshot.go: read-only consumers
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT STORE
// =============================================================================

type AccountStore interface {
	// CreateAccount persists a new account.
	// Returns ConflictError if (userID, name) already exists.
	CreateAccount(ctx context.Context, account *Account) error

	// GetAccount returns the account, or NotFoundError if it does not
	// exist or does not belong to userID. An empty userID skips the
	// ownership check (credit leg of a transfer only).
	GetAccount(ctx context.Context, userID UserID, accountID AccountID) (*Account, error)

	// ListAccounts returns all accounts owned by userID.
	ListAccounts(ctx context.Context, userID UserID) ([]Account, error)

	// AdjustBalance applies delta to the account's current balance and
	// sets LastTransactionAt to asOf. Callers pass the wall-clock write
	// time, never the (possibly backdated) transaction date, so snapshot
	// staleness tracks writes. Must run inside the same atomic unit as
	// the corresponding ledger append.
	//
	// An empty userID skips the ownership check; this is used only for
	// the credit leg of a transfer, whose destination may belong to
	// another user. Every other call passes the caller's userID and
	// fails with NotFoundError when the account is absent or not owned.
	AdjustBalance(ctx context.Context, accountID AccountID, userID UserID, delta decimal.Decimal, asOf time.Time) error
}

// =============================================================================
// TRANSACTION STORE - The append-only (soft-deletable) ledger
// =============================================================================

// TransactionFilter narrows ledger reads. Zero values mean "no filter".
// Before/After bound Transaction.Date; both are inclusive instants.
type TransactionFilter struct {
	AccountID AccountID
	Type      TransactionType
	Month     string
	After     time.Time
	Before    time.Time
}

type TransactionStore interface {
	// AppendTransaction persists a new ledger row. There is no update
	// operation; corrections happen via MarkDeleted.
	AppendTransaction(ctx context.Context, tx *Transaction) error

	// GetTransaction returns a non-deleted transaction owned by userID,
	// or NotFoundError.
	GetTransaction(ctx context.Context, userID UserID, id TransactionID) (*Transaction, error)

	// MarkDeleted flips the soft-delete flag. The caller is responsible
	// for reversing the balance effect in the same atomic unit.
	MarkDeleted(ctx context.Context, userID UserID, id TransactionID) error

	// ListTransactions returns non-deleted transactions matching the
	// filter, ordered by date ascending then creation order. Dates are
	// the ordering key because reports replay history.
	ListTransactions(ctx context.Context, userID UserID, filter TransactionFilter) ([]Transaction, error)
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

type SnapshotStore interface {
	// GetSnapshot returns the snapshot for (userID, accountID, month),
	// or (nil, nil) on a cache miss.
	GetSnapshot(ctx context.Context, userID UserID, accountID AccountID, month string) (*MonthlySnapshot, error)

	// UpsertSnapshot stores the snapshot keyed by (userID, accountID,
	// month). Idempotent: recomputing from the same ledger state yields
	// the same row, so concurrent writers converge.
	UpsertSnapshot(ctx context.Context, snapshot *MonthlySnapshot) error
}

// =============================================================================
// OUTBOX STORE
// =============================================================================

type OutboxStore interface {
	// AppendOutbox persists an event record. Written in the same atomic
	// unit as the ledger append that triggered it.
	AppendOutbox(ctx context.Context, rec *OutboxRecord) error

	// UnpublishedOutbox returns up to limit unpublished records in
	// creation order.
	UnpublishedOutbox(ctx context.Context, limit int) ([]OutboxRecord, error)

	// MarkPublished records that the relay handed the event to the
	// transport. Redelivery before this call is possible; consumers
	// dedupe by transaction id.
	MarkPublished(ctx context.Context, id OutboxID, at time.Time) error
}

// =============================================================================
// AGGREGATE + TRANSACTIONAL STORE
// =============================================================================

// Store aggregates every persistence concern of the core.
type Store interface {
	AccountStore
	TransactionStore
	SnapshotStore
	OutboxStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a storage transaction.
	// If fn returns an error, every write inside it is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
