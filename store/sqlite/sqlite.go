/*
Package sqlite provides the SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements ledger.TxStore (accounts, transactions, snapshots, outbox)
  and ledger.CategoryProvider on one SQLite database. The same patterns
  apply to PostgreSQL with minor dialect differences.

ATOMICITY:
  WithTx wraps a database transaction; every store method runs against
  either the base connection or the enclosing transaction through a
  shared queryer interface. The applier's balance adjustments, ledger
  append, and outbox row commit together or roll back together.

NON-DELETED CONTRACT:
  Every transaction read carries the soft-delete predicate through one
  shared WHERE fragment (nonDeleted), so no query can forget it.

KEY TABLES:
  accounts:      per-user balance state, UNIQUE(user_id, name)
  transactions:  the ledger; is_deleted is the only mutable column
  snapshots:     monthly summaries, keyed (user_id, account_id, month)
  outbox:        durable transaction_created events awaiting publish
  categories:    expense metadata for validation and name resolution

TIME ENCODING:
  Timestamps are stored as fixed-width UTC strings (nanosecond
  precision) so lexicographic comparison in SQL matches chronological
  order.

WAL MODE:
  The database opens with WAL so report reads never block the single
  writer.

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/ledger"
)

// timeLayout is RFC3339 with a fixed nine-digit fraction. Fixed width
// keeps string comparison consistent with time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// nonDeleted is composed into every ledger read.
const nonDeleted = "is_deleted = 0"

// Store implements the ledger storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The sqlite driver serializes writers; a single connection avoids
	// spurious SQLITE_BUSY between pool connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Accounts (balance state, mutated only by AdjustBalance)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL,
		opening_balance TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_transaction_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(user_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_user
		ON accounts(user_id);

	-- Transactions (the ledger; append plus soft delete, no updates)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		category_id TEXT NOT NULL DEFAULT '',
		account_id TEXT NOT NULL DEFAULT '',
		from_account_id TEXT NOT NULL DEFAULT '',
		to_account_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		month TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	-- Report hot paths: per-account history replay and month buckets
	CREATE INDEX IF NOT EXISTS idx_transactions_user_account_date
		ON transactions(user_id, account_id, date);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_month
		ON transactions(user_id, month);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_category_month
		ON transactions(user_id, category_id, month);

	-- Monthly snapshots (cache, reconstructible from transactions)
	CREATE TABLE IF NOT EXISTS snapshots (
		user_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		month TEXT NOT NULL,
		opening_balance TEXT NOT NULL,
		income TEXT NOT NULL,
		expense TEXT NOT NULL,
		cashflow TEXT NOT NULL,
		closing_balance TEXT NOT NULL,
		last_computed_at TEXT NOT NULL,
		PRIMARY KEY(user_id, account_id, month)
	);

	-- Outbox (written atomically with the ledger append)
	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL,
		published_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_unpublished
		ON outbox(created_at) WHERE published_at IS NULL;

	-- Categories (expense metadata)
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_categories_user
		ON categories(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx so every store method
// can run inside or outside WithTx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, account *ledger.Account) error {
	return createAccount(ctx, s.db, account)
}

func createAccount(ctx context.Context, q queryer, account *ledger.Account) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts
		(id, user_id, name, account_type, opening_balance, current_balance, is_active, last_transaction_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.UserID,
		account.Name,
		account.Type,
		account.OpeningBalance.String(),
		account.CurrentBalance.String(),
		account.IsActive,
		formatTime(account.LastTransactionAt),
		formatTime(account.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.ConflictError{Kind: "account", Detail: "name already in use"}
		}
		return wrapStorageError("create account", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, userID ledger.UserID, accountID ledger.AccountID) (*ledger.Account, error) {
	return getAccount(ctx, s.db, userID, accountID)
}

func getAccount(ctx context.Context, q queryer, userID ledger.UserID, accountID ledger.AccountID) (*ledger.Account, error) {
	query := `
		SELECT id, user_id, name, account_type, opening_balance, current_balance, is_active, last_transaction_at, created_at
		FROM accounts
		WHERE id = ?`
	args := []any{accountID}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	account, err := scanAccount(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Kind: "account", ID: string(accountID)}
	}
	if err != nil {
		return nil, wrapStorageError("get account", err)
	}
	return account, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID ledger.UserID) ([]ledger.Account, error) {
	return listAccounts(ctx, s.db, userID)
}

func listAccounts(ctx context.Context, q queryer, userID ledger.UserID) ([]ledger.Account, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, name, account_type, opening_balance, current_balance, is_active, last_transaction_at, created_at
		FROM accounts
		WHERE user_id = ?
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, wrapStorageError("list accounts", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, wrapStorageError("scan account", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

func (s *Store) AdjustBalance(ctx context.Context, accountID ledger.AccountID, userID ledger.UserID, delta decimal.Decimal, asOf time.Time) error {
	return adjustBalance(ctx, s.db, accountID, userID, delta, asOf)
}

func adjustBalance(ctx context.Context, q queryer, accountID ledger.AccountID, userID ledger.UserID, delta decimal.Decimal, asOf time.Time) error {
	// Read-modify-write because decimal strings cannot be summed in SQL.
	// The enclosing storage transaction serializes same-account writers.
	account, err := getAccount(ctx, q, userID, accountID)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		UPDATE accounts
		SET current_balance = ?, last_transaction_at = ?
		WHERE id = ?`,
		account.CurrentBalance.Add(delta).String(),
		formatTime(asOf),
		accountID,
	)
	if err != nil {
		return wrapStorageError("adjust balance", err)
	}
	return nil
}

// =============================================================================
// TRANSACTION STORE
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	return appendTransaction(ctx, s.db, tx)
}

func appendTransaction(ctx context.Context, q queryer, tx *ledger.Transaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, user_id, tx_type, amount, category_id, account_id, from_account_id, to_account_id, date, month, note, is_deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.UserID,
		tx.Type,
		tx.Amount.String(),
		tx.CategoryID,
		tx.AccountID,
		tx.FromAccountID,
		tx.ToAccountID,
		formatTime(tx.Date),
		tx.Month,
		tx.Note,
		tx.IsDeleted,
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		return wrapStorageError("append transaction", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, userID ledger.UserID, id ledger.TransactionID) (*ledger.Transaction, error) {
	return getTransaction(ctx, s.db, userID, id)
}

func getTransaction(ctx context.Context, q queryer, userID ledger.UserID, id ledger.TransactionID) (*ledger.Transaction, error) {
	tx, err := scanTransaction(q.QueryRowContext(ctx, `
		SELECT id, user_id, tx_type, amount, category_id, account_id, from_account_id, to_account_id, date, month, note, is_deleted, created_at
		FROM transactions
		WHERE id = ? AND user_id = ? AND `+nonDeleted, id, userID))
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	if err != nil {
		return nil, wrapStorageError("get transaction", err)
	}
	return tx, nil
}

func (s *Store) MarkDeleted(ctx context.Context, userID ledger.UserID, id ledger.TransactionID) error {
	return markDeleted(ctx, s.db, userID, id)
}

func markDeleted(ctx context.Context, q queryer, userID ledger.UserID, id ledger.TransactionID) error {
	result, err := q.ExecContext(ctx, `
		UPDATE transactions SET is_deleted = 1
		WHERE id = ? AND user_id = ? AND `+nonDeleted, id, userID)
	if err != nil {
		return wrapStorageError("mark deleted", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapStorageError("mark deleted", err)
	}
	if affected == 0 {
		return &ledger.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, userID ledger.UserID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	return listTransactions(ctx, s.db, userID, filter)
}

func listTransactions(ctx context.Context, q queryer, userID ledger.UserID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	query := `
		SELECT id, user_id, tx_type, amount, category_id, account_id, from_account_id, to_account_id, date, month, note, is_deleted, created_at
		FROM transactions
		WHERE user_id = ? AND ` + nonDeleted
	args := []any{userID}

	if filter.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, filter.AccountID)
	}
	if filter.Type != "" {
		query += ` AND tx_type = ?`
		args = append(args, filter.Type)
	}
	if filter.Month != "" {
		query += ` AND month = ?`
		args = append(args, filter.Month)
	}
	if !filter.After.IsZero() {
		query += ` AND date >= ?`
		args = append(args, formatTime(filter.After))
	}
	if !filter.Before.IsZero() {
		query += ` AND date <= ?`
		args = append(args, formatTime(filter.Before))
	}
	query += ` ORDER BY date ASC, created_at ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorageError("list transactions", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, wrapStorageError("scan transaction", err)
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func (s *Store) GetSnapshot(ctx context.Context, userID ledger.UserID, accountID ledger.AccountID, month string) (*ledger.MonthlySnapshot, error) {
	return getSnapshot(ctx, s.db, userID, accountID, month)
}

func getSnapshot(ctx context.Context, q queryer, userID ledger.UserID, accountID ledger.AccountID, month string) (*ledger.MonthlySnapshot, error) {
	row := q.QueryRowContext(ctx, `
		SELECT user_id, account_id, month, opening_balance, income, expense, cashflow, closing_balance, last_computed_at
		FROM snapshots
		WHERE user_id = ? AND account_id = ? AND month = ?`, userID, accountID, month)

	var snap ledger.MonthlySnapshot
	var opening, income, expense, cashflow, closing, computedAt string
	err := row.Scan(&snap.UserID, &snap.AccountID, &snap.Month, &opening, &income, &expense, &cashflow, &closing, &computedAt)
	if err == sql.ErrNoRows {
		return nil, nil // cache miss, not an error
	}
	if err != nil {
		return nil, wrapStorageError("get snapshot", err)
	}

	snap.OpeningBalance = mustDecimal(opening)
	snap.Income = mustDecimal(income)
	snap.Expense = mustDecimal(expense)
	snap.Cashflow = mustDecimal(cashflow)
	snap.ClosingBalance = mustDecimal(closing)
	snap.LastComputedAt = parseTime(computedAt)
	return &snap, nil
}

func (s *Store) UpsertSnapshot(ctx context.Context, snapshot *ledger.MonthlySnapshot) error {
	return upsertSnapshot(ctx, s.db, snapshot)
}

func upsertSnapshot(ctx context.Context, q queryer, snapshot *ledger.MonthlySnapshot) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO snapshots
		(user_id, account_id, month, opening_balance, income, expense, cashflow, closing_balance, last_computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, account_id, month) DO UPDATE SET
			opening_balance = excluded.opening_balance,
			income = excluded.income,
			expense = excluded.expense,
			cashflow = excluded.cashflow,
			closing_balance = excluded.closing_balance,
			last_computed_at = excluded.last_computed_at`,
		snapshot.UserID,
		snapshot.AccountID,
		snapshot.Month,
		snapshot.OpeningBalance.String(),
		snapshot.Income.String(),
		snapshot.Expense.String(),
		snapshot.Cashflow.String(),
		snapshot.ClosingBalance.String(),
		formatTime(snapshot.LastComputedAt),
	)
	if err != nil {
		return wrapStorageError("upsert snapshot", err)
	}
	return nil
}

// =============================================================================
// OUTBOX STORE
// =============================================================================

func (s *Store) AppendOutbox(ctx context.Context, rec *ledger.OutboxRecord) error {
	return appendOutbox(ctx, s.db, rec)
}

func appendOutbox(ctx context.Context, q queryer, rec *ledger.OutboxRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO outbox (id, topic, payload, created_at, published_at)
		VALUES (?, ?, ?, ?, NULL)`,
		rec.ID, rec.Topic, string(rec.Payload), formatTime(rec.CreatedAt))
	if err != nil {
		return wrapStorageError("append outbox", err)
	}
	return nil
}

func (s *Store) UnpublishedOutbox(ctx context.Context, limit int) ([]ledger.OutboxRecord, error) {
	return unpublishedOutbox(ctx, s.db, limit)
}

func unpublishedOutbox(ctx context.Context, q queryer, limit int) ([]ledger.OutboxRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, topic, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, wrapStorageError("read outbox", err)
	}
	defer rows.Close()

	var records []ledger.OutboxRecord
	for rows.Next() {
		var rec ledger.OutboxRecord
		var payload, createdAt string
		if err := rows.Scan(&rec.ID, &rec.Topic, &payload, &createdAt); err != nil {
			return nil, wrapStorageError("scan outbox", err)
		}
		rec.Payload = []byte(payload)
		rec.CreatedAt = parseTime(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) MarkPublished(ctx context.Context, id ledger.OutboxID, at time.Time) error {
	return markPublished(ctx, s.db, id, at)
}

func markPublished(ctx context.Context, q queryer, id ledger.OutboxID, at time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE outbox SET published_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return wrapStorageError("mark published", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapStorageError("mark published", err)
	}
	if affected == 0 {
		return &ledger.NotFoundError{Kind: "outbox record", ID: string(id)}
	}
	return nil
}

// =============================================================================
// CATEGORY PROVIDER
// =============================================================================

func (s *Store) CreateCategory(ctx context.Context, category *ledger.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, created_at)
		VALUES (?, ?, ?, ?)`,
		category.ID, category.UserID, category.Name, formatTime(time.Now().UTC()))
	if err != nil {
		return wrapStorageError("create category", err)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context, userID ledger.UserID) ([]ledger.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name FROM categories
		WHERE user_id = ?
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, wrapStorageError("list categories", err)
	}
	defer rows.Close()

	var categories []ledger.Category
	for rows.Next() {
		var c ledger.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name); err != nil {
			return nil, wrapStorageError("scan category", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) CategoryExists(ctx context.Context, id ledger.CategoryID, userID ledger.UserID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM categories WHERE id = ? AND user_id = ?`, id, userID).Scan(&count)
	if err != nil {
		return false, wrapStorageError("category exists", err)
	}
	return count > 0, nil
}

func (s *Store) CategoryName(ctx context.Context, id ledger.CategoryID) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `
		SELECT name FROM categories WHERE id = ?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil // tolerate categories deleted after their transactions
	}
	if err != nil {
		return "", wrapStorageError("category name", err)
	}
	return name, nil
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn inside a database transaction. Rollback on error,
// commit on nil.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStorageError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txView{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return wrapStorageError("commit transaction", err)
	}
	return nil
}

// txView routes every store method through the enclosing *sql.Tx.
type txView struct {
	tx *sql.Tx
}

func (tv *txView) CreateAccount(ctx context.Context, account *ledger.Account) error {
	return createAccount(ctx, tv.tx, account)
}

func (tv *txView) GetAccount(ctx context.Context, userID ledger.UserID, accountID ledger.AccountID) (*ledger.Account, error) {
	return getAccount(ctx, tv.tx, userID, accountID)
}

func (tv *txView) ListAccounts(ctx context.Context, userID ledger.UserID) ([]ledger.Account, error) {
	return listAccounts(ctx, tv.tx, userID)
}

func (tv *txView) AdjustBalance(ctx context.Context, accountID ledger.AccountID, userID ledger.UserID, delta decimal.Decimal, asOf time.Time) error {
	return adjustBalance(ctx, tv.tx, accountID, userID, delta, asOf)
}

func (tv *txView) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	return appendTransaction(ctx, tv.tx, tx)
}

func (tv *txView) GetTransaction(ctx context.Context, userID ledger.UserID, id ledger.TransactionID) (*ledger.Transaction, error) {
	return getTransaction(ctx, tv.tx, userID, id)
}

func (tv *txView) MarkDeleted(ctx context.Context, userID ledger.UserID, id ledger.TransactionID) error {
	return markDeleted(ctx, tv.tx, userID, id)
}

func (tv *txView) ListTransactions(ctx context.Context, userID ledger.UserID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	return listTransactions(ctx, tv.tx, userID, filter)
}

func (tv *txView) GetSnapshot(ctx context.Context, userID ledger.UserID, accountID ledger.AccountID, month string) (*ledger.MonthlySnapshot, error) {
	return getSnapshot(ctx, tv.tx, userID, accountID, month)
}

func (tv *txView) UpsertSnapshot(ctx context.Context, snapshot *ledger.MonthlySnapshot) error {
	return upsertSnapshot(ctx, tv.tx, snapshot)
}

func (tv *txView) AppendOutbox(ctx context.Context, rec *ledger.OutboxRecord) error {
	return appendOutbox(ctx, tv.tx, rec)
}

func (tv *txView) UnpublishedOutbox(ctx context.Context, limit int) ([]ledger.OutboxRecord, error) {
	return unpublishedOutbox(ctx, tv.tx, limit)
}

func (tv *txView) MarkPublished(ctx context.Context, id ledger.OutboxID, at time.Time) error {
	return markPublished(ctx, tv.tx, id, at)
}

// =============================================================================
// SCAN + HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var account ledger.Account
	var opening, current, lastTx, createdAt string
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Name,
		&account.Type,
		&opening,
		&current,
		&account.IsActive,
		&lastTx,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	account.OpeningBalance = mustDecimal(opening)
	account.CurrentBalance = mustDecimal(current)
	account.LastTransactionAt = parseTime(lastTx)
	account.CreatedAt = parseTime(createdAt)
	return &account, nil
}

func scanTransaction(row rowScanner) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	var amount, date, createdAt string
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Type,
		&amount,
		&tx.CategoryID,
		&tx.AccountID,
		&tx.FromAccountID,
		&tx.ToAccountID,
		&date,
		&tx.Month,
		&tx.Note,
		&tx.IsDeleted,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Amount = mustDecimal(amount)
	tx.Date = parseTime(date)
	tx.CreatedAt = parseTime(createdAt)
	return &tx, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isBusyError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "database table is locked"))
}

func wrapStorageError(op string, err error) error {
	if isBusyError(err) {
		return fmt.Errorf("%s: %s: %w", op, err, ledger.ErrTransientStorage)
	}
	return fmt.Errorf("%s: %s: %w", op, err, ledger.ErrInternal)
}
