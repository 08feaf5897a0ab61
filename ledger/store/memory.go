// Package store provides an in-memory ledger.TxStore for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type snapshotKey struct {
	UserID    ledger.UserID
	AccountID ledger.AccountID
	Month     string
}

type Memory struct {
	mu           sync.RWMutex
	accounts     map[ledger.AccountID]ledger.Account
	transactions []ledger.Transaction
	snapshots    map[snapshotKey]ledger.MonthlySnapshot
	outbox       []ledger.OutboxRecord
	categories   map[ledger.CategoryID]ledger.Category
}

func NewMemory() *Memory {
	return &Memory{
		accounts:   make(map[ledger.AccountID]ledger.Account),
		snapshots:  make(map[snapshotKey]ledger.MonthlySnapshot),
		categories: make(map[ledger.CategoryID]ledger.Category),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) CreateAccount(_ context.Context, account *ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAccountLocked(account)
}

func (m *Memory) createAccountLocked(account *ledger.Account) error {
	for _, existing := range m.accounts {
		if existing.UserID == account.UserID && existing.Name == account.Name {
			return &ledger.ConflictError{Kind: "account", Detail: "name already in use"}
		}
	}
	m.accounts[account.ID] = *account
	return nil
}

func (m *Memory) GetAccount(_ context.Context, userID ledger.UserID, accountID ledger.AccountID) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(userID, accountID)
}

func (m *Memory) getAccountLocked(userID ledger.UserID, accountID ledger.AccountID) (*ledger.Account, error) {
	account, ok := m.accounts[accountID]
	if !ok || (userID != "" && account.UserID != userID) {
		return nil, &ledger.NotFoundError{Kind: "account", ID: string(accountID)}
	}
	out := account
	return &out, nil
}

func (m *Memory) ListAccounts(_ context.Context, userID ledger.UserID) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Account
	for _, account := range m.accounts {
		if account.UserID == userID {
			result = append(result, account)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) AdjustBalance(_ context.Context, accountID ledger.AccountID, userID ledger.UserID, delta decimal.Decimal, asOf time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustBalanceLocked(accountID, userID, delta, asOf)
}

func (m *Memory) adjustBalanceLocked(accountID ledger.AccountID, userID ledger.UserID, delta decimal.Decimal, asOf time.Time) error {
	account, ok := m.accounts[accountID]
	if !ok || (userID != "" && account.UserID != userID) {
		return &ledger.NotFoundError{Kind: "account", ID: string(accountID)}
	}
	account.CurrentBalance = account.CurrentBalance.Add(delta)
	account.LastTransactionAt = asOf
	m.accounts[accountID] = account
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) AppendTransaction(_ context.Context, tx *ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendTransactionLocked(tx)
	return nil
}

func (m *Memory) appendTransactionLocked(tx *ledger.Transaction) {
	m.transactions = append(m.transactions, *tx)
}

func (m *Memory) GetTransaction(_ context.Context, userID ledger.UserID, id ledger.TransactionID) (*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTransactionLocked(userID, id)
}

func (m *Memory) getTransactionLocked(userID ledger.UserID, id ledger.TransactionID) (*ledger.Transaction, error) {
	for i := range m.transactions {
		tx := m.transactions[i]
		if tx.ID == id && tx.UserID == userID && !tx.IsDeleted {
			return &tx, nil
		}
	}
	return nil, &ledger.NotFoundError{Kind: "transaction", ID: string(id)}
}

func (m *Memory) MarkDeleted(_ context.Context, userID ledger.UserID, id ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markDeletedLocked(userID, id)
}

func (m *Memory) markDeletedLocked(userID ledger.UserID, id ledger.TransactionID) error {
	for i := range m.transactions {
		if m.transactions[i].ID == id && m.transactions[i].UserID == userID && !m.transactions[i].IsDeleted {
			m.transactions[i].IsDeleted = true
			return nil
		}
	}
	return &ledger.NotFoundError{Kind: "transaction", ID: string(id)}
}

func (m *Memory) ListTransactions(_ context.Context, userID ledger.UserID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTransactionsLocked(userID, filter)
}

// listTransactionsLocked applies the non-deleted predicate in one place;
// every read path funnels through here.
func (m *Memory) listTransactionsLocked(userID ledger.UserID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	for _, tx := range m.transactions {
		if tx.IsDeleted || tx.UserID != userID {
			continue
		}
		if filter.AccountID != "" && tx.AccountID != filter.AccountID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.Month != "" && tx.Month != filter.Month {
			continue
		}
		if !filter.After.IsZero() && tx.Date.Before(filter.After) {
			continue
		}
		if !filter.Before.IsZero() && tx.Date.After(filter.Before) {
			continue
		}
		result = append(result, tx)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func (m *Memory) GetSnapshot(_ context.Context, userID ledger.UserID, accountID ledger.AccountID, month string) (*ledger.MonthlySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot, ok := m.snapshots[snapshotKey{UserID: userID, AccountID: accountID, Month: month}]
	if !ok {
		return nil, nil
	}
	out := snapshot
	return &out, nil
}

func (m *Memory) UpsertSnapshot(_ context.Context, snapshot *ledger.MonthlySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertSnapshotLocked(snapshot)
	return nil
}

func (m *Memory) upsertSnapshotLocked(snapshot *ledger.MonthlySnapshot) {
	key := snapshotKey{UserID: snapshot.UserID, AccountID: snapshot.AccountID, Month: snapshot.Month}
	m.snapshots[key] = *snapshot
}

// =============================================================================
// OUTBOX
// =============================================================================

func (m *Memory) AppendOutbox(_ context.Context, rec *ledger.OutboxRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendOutboxLocked(rec)
	return nil
}

func (m *Memory) appendOutboxLocked(rec *ledger.OutboxRecord) {
	m.outbox = append(m.outbox, *rec)
}

func (m *Memory) UnpublishedOutbox(_ context.Context, limit int) ([]ledger.OutboxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.OutboxRecord
	for _, rec := range m.outbox {
		if rec.PublishedAt == nil {
			result = append(result, rec)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *Memory) MarkPublished(_ context.Context, id ledger.OutboxID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.outbox {
		if m.outbox[i].ID == id {
			published := at
			m.outbox[i].PublishedAt = &published
			return nil
		}
	}
	return &ledger.NotFoundError{Kind: "outbox record", ID: string(id)}
}

// =============================================================================
// CATEGORIES - Memory also serves as a CategoryProvider
// =============================================================================

func (m *Memory) AddCategory(c ledger.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
}

func (m *Memory) CreateCategory(_ context.Context, category *ledger.Category) error {
	m.AddCategory(*category)
	return nil
}

func (m *Memory) ListCategories(_ context.Context, userID ledger.UserID) ([]ledger.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Category
	for _, c := range m.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CategoryExists(_ context.Context, id ledger.CategoryID, userID ledger.UserID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	return ok && c.UserID == userID, nil
}

func (m *Memory) CategoryName(_ context.Context, id ledger.CategoryID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.categories[id].Name, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against a view of the store, restoring the
// pre-transaction state if fn fails. The store lock is held for the
// whole call, which also gives same-account writes their serialization.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	backup := tm.snapshotState()
	view := &txMemoryView{parent: tm.Memory}

	if err := fn(view); err != nil {
		tm.restoreState(backup)
		return err
	}
	return nil
}

type memoryState struct {
	accounts     map[ledger.AccountID]ledger.Account
	transactions []ledger.Transaction
	snapshots    map[snapshotKey]ledger.MonthlySnapshot
	outbox       []ledger.OutboxRecord
}

func (tm *TxMemory) snapshotState() memoryState {
	accounts := make(map[ledger.AccountID]ledger.Account, len(tm.accounts))
	for k, v := range tm.accounts {
		accounts[k] = v
	}
	snapshots := make(map[snapshotKey]ledger.MonthlySnapshot, len(tm.snapshots))
	for k, v := range tm.snapshots {
		snapshots[k] = v
	}
	return memoryState{
		accounts:     accounts,
		transactions: append([]ledger.Transaction{}, tm.transactions...),
		snapshots:    snapshots,
		outbox:       append([]ledger.OutboxRecord{}, tm.outbox...),
	}
}

func (tm *TxMemory) restoreState(s memoryState) {
	tm.accounts = s.accounts
	tm.transactions = s.transactions
	tm.snapshots = s.snapshots
	tm.outbox = s.outbox
}

// txMemoryView calls the *Locked helpers directly: the enclosing WithTx
// already holds the store lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) CreateAccount(_ context.Context, account *ledger.Account) error {
	return tv.parent.createAccountLocked(account)
}

func (tv *txMemoryView) GetAccount(_ context.Context, userID ledger.UserID, accountID ledger.AccountID) (*ledger.Account, error) {
	return tv.parent.getAccountLocked(userID, accountID)
}

func (tv *txMemoryView) ListAccounts(_ context.Context, userID ledger.UserID) ([]ledger.Account, error) {
	var result []ledger.Account
	for _, account := range tv.parent.accounts {
		if account.UserID == userID {
			result = append(result, account)
		}
	}
	return result, nil
}

func (tv *txMemoryView) AdjustBalance(_ context.Context, accountID ledger.AccountID, userID ledger.UserID, delta decimal.Decimal, asOf time.Time) error {
	return tv.parent.adjustBalanceLocked(accountID, userID, delta, asOf)
}

func (tv *txMemoryView) AppendTransaction(_ context.Context, tx *ledger.Transaction) error {
	tv.parent.appendTransactionLocked(tx)
	return nil
}

func (tv *txMemoryView) GetTransaction(_ context.Context, userID ledger.UserID, id ledger.TransactionID) (*ledger.Transaction, error) {
	return tv.parent.getTransactionLocked(userID, id)
}

func (tv *txMemoryView) MarkDeleted(_ context.Context, userID ledger.UserID, id ledger.TransactionID) error {
	return tv.parent.markDeletedLocked(userID, id)
}

func (tv *txMemoryView) ListTransactions(_ context.Context, userID ledger.UserID, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	return tv.parent.listTransactionsLocked(userID, filter)
}

func (tv *txMemoryView) GetSnapshot(_ context.Context, userID ledger.UserID, accountID ledger.AccountID, month string) (*ledger.MonthlySnapshot, error) {
	snapshot, ok := tv.parent.snapshots[snapshotKey{UserID: userID, AccountID: accountID, Month: month}]
	if !ok {
		return nil, nil
	}
	out := snapshot
	return &out, nil
}

func (tv *txMemoryView) UpsertSnapshot(_ context.Context, snapshot *ledger.MonthlySnapshot) error {
	tv.parent.upsertSnapshotLocked(snapshot)
	return nil
}

func (tv *txMemoryView) AppendOutbox(_ context.Context, rec *ledger.OutboxRecord) error {
	tv.parent.appendOutboxLocked(rec)
	return nil
}

func (tv *txMemoryView) UnpublishedOutbox(_ context.Context, limit int) ([]ledger.OutboxRecord, error) {
	var result []ledger.OutboxRecord
	for _, rec := range tv.parent.outbox {
		if rec.PublishedAt == nil {
			result = append(result, rec)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (tv *txMemoryView) MarkPublished(_ context.Context, id ledger.OutboxID, at time.Time) error {
	for i := range tv.parent.outbox {
		if tv.parent.outbox[i].ID == id {
			published := at
			tv.parent.outbox[i].PublishedAt = &published
			return nil
		}
	}
	return &ledger.NotFoundError{Kind: "outbox record", ID: string(id)}
}
