/*
report.go - Stateless report engine over the transaction ledger

PURPOSE:
  Derives a period report (opening balance, window totals, superlatives,
  category breakdown) directly from ledger history. A pure read: no
  mutation, no caching side effect.

STAGED AGGREGATION:
  Each stage is an exported function over a transaction slice, composed
  by Engine.GetReport and independently testable:

    OpeningBalance    signed sum of history strictly before the window
    WindowTotals      income/expense/cashflow inside the window
    Superlatives      highest spend day and single largest transaction
    CategoryBreakdown per-category totals, descending

SIGN CONVENTION:
  Reports use the plain convention (INCOME +, EXPENSE -) of the ledger;
  TRANSFER/SAVING rows carry no primary-account reference and do not
  contribute. For every non-credit-card account this matches the live
  balance maintenance exactly, which is the consistency property the
  tests pin down.

TIES:
  Highest day/transaction/category ties resolve to the first row
  encountered in date order. Unspecified beyond that.
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ReportQuery selects the window, an optional account, and an optional
// transaction-type filter.
type ReportQuery struct {
	WindowQuery
	AccountID AccountID
	Type      TransactionType
}

// CategoryTotal is one row of the expense breakdown.
type CategoryTotal struct {
	CategoryID       CategoryID
	CategoryName     string
	Total            decimal.Decimal
	TransactionCount int
}

// DaySpend identifies the calendar day with the highest summed spend.
// CategoryID/CategoryName come from that day's largest transaction.
type DaySpend struct {
	Date         string // "YYYY-MM-DD"
	Total        decimal.Decimal
	CategoryID   CategoryID
	CategoryName string
}

// TransactionHighlight is the single largest transaction in the window.
type TransactionHighlight struct {
	TransactionID TransactionID
	Date          time.Time
	Amount        decimal.Decimal
	CategoryID    CategoryID
	CategoryName  string
	Note          string
}

// Report is the full result shape of the report endpoint.
type Report struct {
	Window Window

	OpeningBalance decimal.Decimal
	Income         decimal.Decimal
	Expense        decimal.Decimal
	Cashflow       decimal.Decimal
	ClosingBalance decimal.Decimal

	HighestDay         *DaySpend
	HighestTransaction *TransactionHighlight

	// Breakdown and HighestCategory are populated only when the spend
	// type under analysis is EXPENSE.
	Breakdown       []CategoryTotal
	HighestCategory *CategoryTotal
}

// Engine computes reports. Stateless: every call replays ledger data.
type Engine struct {
	Store      Store
	Categories CategoryProvider
}

func NewEngine(store Store, categories CategoryProvider) *Engine {
	return &Engine{Store: store, Categories: categories}
}

// GetReport resolves the window, verifies account ownership when an
// account filter is supplied, and runs the aggregation stages.
func (e *Engine) GetReport(ctx context.Context, userID UserID, q ReportQuery) (*Report, error) {
	window, err := ResolveWindow(q.WindowQuery)
	if err != nil {
		return nil, err
	}
	if q.Type != "" && !ValidTransactionType(q.Type) {
		return nil, &ValidationError{Field: "type", Reason: "unknown transaction type"}
	}
	if q.AccountID != "" {
		if _, err := e.Store.GetAccount(ctx, userID, q.AccountID); err != nil {
			return nil, err
		}
	}

	history, err := e.Store.ListTransactions(ctx, userID, TransactionFilter{
		AccountID: q.AccountID,
		Before:    window.Start.Add(-time.Nanosecond),
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	inWindow, err := e.Store.ListTransactions(ctx, userID, TransactionFilter{
		AccountID: q.AccountID,
		After:     window.Start,
		Before:    window.End,
	})
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}

	opening := OpeningBalance(history)
	income, expense := WindowTotals(inWindow, q.Type)
	cashflow := income.Sub(expense)

	report := &Report{
		Window:         window,
		OpeningBalance: opening,
		Income:         income,
		Expense:        expense,
		Cashflow:       cashflow,
		ClosingBalance: opening.Add(cashflow),
	}

	spendType := q.Type
	if spendType == "" {
		spendType = TxExpense
	}

	highestDay, highestTx := Superlatives(inWindow, spendType)
	if highestTx != nil {
		name, err := e.Categories.CategoryName(ctx, highestTx.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("resolve category: %w", err)
		}
		report.HighestTransaction = &TransactionHighlight{
			TransactionID: highestTx.ID,
			Date:          highestTx.Date,
			Amount:        highestTx.Amount,
			CategoryID:    highestTx.CategoryID,
			CategoryName:  name,
			Note:          highestTx.Note,
		}
	}
	if highestDay != nil {
		name, err := e.Categories.CategoryName(ctx, highestDay.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("resolve category: %w", err)
		}
		highestDay.CategoryName = name
		report.HighestDay = highestDay
	}

	if spendType == TxExpense {
		breakdown := CategoryBreakdown(inWindow)
		for i := range breakdown {
			name, err := e.Categories.CategoryName(ctx, breakdown[i].CategoryID)
			if err != nil {
				return nil, fmt.Errorf("resolve category: %w", err)
			}
			breakdown[i].CategoryName = name
		}
		report.Breakdown = breakdown
		if len(breakdown) > 0 {
			report.HighestCategory = &breakdown[0]
		}
	}

	return report, nil
}

// =============================================================================
// AGGREGATION STAGES
// =============================================================================

// OpeningBalance is the signed sum of history: INCOME adds, EXPENSE
// subtracts, everything else contributes nothing. Callers pass only
// transactions dated strictly before the window start.
func OpeningBalance(history []Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range history {
		switch tx.Type {
		case TxIncome:
			balance = balance.Add(tx.Amount)
		case TxExpense:
			balance = balance.Sub(tx.Amount)
		}
	}
	return balance
}

// WindowTotals sums income and expense inside the window, honoring an
// optional type filter ("" means both).
func WindowTotals(txs []Transaction, typeFilter TransactionType) (income, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if typeFilter != "" && tx.Type != typeFilter {
			continue
		}
		switch tx.Type {
		case TxIncome:
			income = income.Add(tx.Amount)
		case TxExpense:
			expense = expense.Add(tx.Amount)
		}
	}
	return income, expense
}

// Superlatives finds the calendar day with the highest summed amount and
// the single largest transaction, both restricted to spendType. Returns
// nils when the window holds no matching rows.
func Superlatives(txs []Transaction, spendType TransactionType) (*DaySpend, *Transaction) {
	type dayAgg struct {
		total decimal.Decimal
		topTx *Transaction
	}
	days := make(map[string]*dayAgg)
	var dayOrder []string

	var highestTx *Transaction
	for i := range txs {
		tx := &txs[i]
		if tx.Type != spendType {
			continue
		}

		day := tx.Date.UTC().Format("2006-01-02")
		agg, ok := days[day]
		if !ok {
			agg = &dayAgg{total: decimal.Zero}
			days[day] = agg
			dayOrder = append(dayOrder, day)
		}
		agg.total = agg.total.Add(tx.Amount)
		if agg.topTx == nil || tx.Amount.GreaterThan(agg.topTx.Amount) {
			agg.topTx = tx
		}

		if highestTx == nil || tx.Amount.GreaterThan(highestTx.Amount) {
			highestTx = tx
		}
	}
	if highestTx == nil {
		return nil, nil
	}

	var highestDay *DaySpend
	for _, day := range dayOrder {
		agg := days[day]
		if highestDay == nil || agg.total.GreaterThan(highestDay.Total) {
			highestDay = &DaySpend{Date: day, Total: agg.total, CategoryID: agg.topTx.CategoryID}
		}
	}
	return highestDay, highestTx
}

// CategoryBreakdown maps EXPENSE rows to per-category totals, sorted by
// total descending. Ties keep first-encountered order (stable sort over
// date-ordered input).
func CategoryBreakdown(txs []Transaction) []CategoryTotal {
	totals := make(map[CategoryID]*CategoryTotal)
	var order []CategoryID

	for _, tx := range txs {
		if tx.Type != TxExpense {
			continue
		}
		entry, ok := totals[tx.CategoryID]
		if !ok {
			entry = &CategoryTotal{CategoryID: tx.CategoryID, Total: decimal.Zero}
			totals[tx.CategoryID] = entry
			order = append(order, tx.CategoryID)
		}
		entry.Total = entry.Total.Add(tx.Amount)
		entry.TransactionCount++
	}

	result := make([]CategoryTotal, 0, len(order))
	for _, id := range order {
		result = append(result, *totals[id])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Total.GreaterThan(result[j].Total)
	})
	return result
}
