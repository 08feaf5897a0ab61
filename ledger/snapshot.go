package ledger

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// SNAPSHOT CACHE - Lazily recomputed monthly summaries
// =============================================================================

// SnapshotCache serves per-(user, account, month) summaries, recomputing
// from the ledger whenever the cached row predates the account's last
// transaction.
//
// Recomputation is not mutually exclusive across racing callers: the
// upsert is idempotent (same ledger state, same outputs), so concurrent
// recomputes converge and the last writer wins harmlessly.
type SnapshotCache struct {
	Store Store

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewSnapshotCache(store Store) *SnapshotCache {
	return &SnapshotCache{Store: store, Now: time.Now}
}

// GetOrRecompute returns the snapshot for the month, recomputing and
// upserting it first when absent or stale.
func (c *SnapshotCache) GetOrRecompute(ctx context.Context, userID UserID, accountID AccountID, month string) (*MonthlySnapshot, error) {
	if _, err := MonthWindow(month); err != nil {
		return nil, err
	}

	account, err := c.Store.GetAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	snapshot, err := c.Store.GetSnapshot(ctx, userID, accountID, month)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	stale := snapshot == nil ||
		(!account.LastTransactionAt.IsZero() && snapshot.LastComputedAt.Before(account.LastTransactionAt))
	if !stale {
		return snapshot, nil
	}
	return c.Recompute(ctx, userID, accountID, month)
}

// Recompute rebuilds the month's summary from ledger history and upserts
// it. Opening balance replays everything before the month; totals cover
// the calendar month itself.
func (c *SnapshotCache) Recompute(ctx context.Context, userID UserID, accountID AccountID, month string) (*MonthlySnapshot, error) {
	window, err := MonthWindow(month)
	if err != nil {
		return nil, err
	}

	history, err := c.Store.ListTransactions(ctx, userID, TransactionFilter{
		AccountID: accountID,
		Before:    window.Start.Add(-time.Nanosecond),
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	inWindow, err := c.Store.ListTransactions(ctx, userID, TransactionFilter{
		AccountID: accountID,
		After:     window.Start,
		Before:    window.End,
	})
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}

	opening := OpeningBalance(history)
	income, expense := WindowTotals(inWindow, "")
	cashflow := income.Sub(expense)

	snapshot := &MonthlySnapshot{
		UserID:         userID,
		AccountID:      accountID,
		Month:          month,
		OpeningBalance: opening,
		Income:         income,
		Expense:        expense,
		Cashflow:       cashflow,
		ClosingBalance: opening.Add(cashflow),
		LastComputedAt: c.Now().UTC(),
	}

	if err := c.Store.UpsertSnapshot(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("upsert snapshot: %w", err)
	}
	return snapshot, nil
}
