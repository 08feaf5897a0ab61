/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  The JSON shapes exchanged with clients. Domain types never cross the
  HTTP boundary directly; every response is mapped explicitly so the
  wire format can evolve without touching the core.

CONVENTIONS:
  - Monetary amounts are decimal strings ("123.45"), never JSON numbers
  - Dates are "2006-01-02"; timestamps are RFC 3339
  - Field names are camelCase

SEE ALSO:
  - handlers.go: where the mapping happens
*/
package api

import (
	"time"

	"github.com/warp/finance-ledger/ledger"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

type CreateAccountRequest struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	OpeningBalance string `json:"openingBalance"`
}

type AccountDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	OpeningBalance string `json:"openingBalance"`
	CurrentBalance string `json:"currentBalance"`
	IsActive       bool   `json:"isActive"`
	CreatedAt      string `json:"createdAt"`
}

func toAccountDTO(a *ledger.Account) AccountDTO {
	return AccountDTO{
		ID:             string(a.ID),
		Name:           a.Name,
		Type:           string(a.Type),
		OpeningBalance: a.OpeningBalance.String(),
		CurrentBalance: a.CurrentBalance.String(),
		IsActive:       a.IsActive,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type CreateTransactionRequest struct {
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	AccountID     string `json:"accountId,omitempty"`
	FromAccountID string `json:"fromAccountId,omitempty"`
	ToAccountID   string `json:"toAccountId,omitempty"`
	CategoryID    string `json:"categoryId,omitempty"`
	Date          string `json:"date,omitempty"` // "2006-01-02", defaults to today
	Note          string `json:"note,omitempty"`
}

type TransactionDTO struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	AccountID     string `json:"accountId,omitempty"`
	FromAccountID string `json:"fromAccountId,omitempty"`
	ToAccountID   string `json:"toAccountId,omitempty"`
	CategoryID    string `json:"categoryId,omitempty"`
	Date          string `json:"date"`
	Month         string `json:"month"`
	Note          string `json:"note,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

func toTransactionDTO(tx *ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:            string(tx.ID),
		Type:          string(tx.Type),
		Amount:        tx.Amount.String(),
		AccountID:     string(tx.AccountID),
		FromAccountID: string(tx.FromAccountID),
		ToAccountID:   string(tx.ToAccountID),
		CategoryID:    string(tx.CategoryID),
		Date:          tx.Date.UTC().Format(time.RFC3339),
		Month:         tx.Month,
		Note:          tx.Note,
		CreatedAt:     tx.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// =============================================================================
// CATEGORIES
// =============================================================================

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type CategoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// =============================================================================
// REPORTS
// =============================================================================

type CategoryTotalDTO struct {
	CategoryID       string `json:"categoryId"`
	CategoryName     string `json:"categoryName"`
	Total            string `json:"total"`
	TransactionCount int    `json:"transactionCount"`
}

type DaySpendDTO struct {
	Date         string `json:"date"`
	Total        string `json:"total"`
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

type TransactionHighlightDTO struct {
	TransactionID string `json:"transactionId"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	CategoryID    string `json:"categoryId"`
	CategoryName  string `json:"categoryName"`
	Note          string `json:"note,omitempty"`
}

type ReportDTO struct {
	WindowStart string `json:"windowStart"`
	WindowEnd   string `json:"windowEnd"`

	OpeningBalance string `json:"openingBalance"`
	Income         string `json:"income"`
	Expense        string `json:"expense"`
	Cashflow       string `json:"cashflow"`
	ClosingBalance string `json:"closingBalance"`

	HighestDay         *DaySpendDTO             `json:"highestDay,omitempty"`
	HighestTransaction *TransactionHighlightDTO `json:"highestTransaction,omitempty"`
	Breakdown          []CategoryTotalDTO       `json:"breakdown,omitempty"`
	HighestCategory    *CategoryTotalDTO        `json:"highestCategory,omitempty"`
}

func toReportDTO(rep *ledger.Report) ReportDTO {
	dto := ReportDTO{
		WindowStart:    rep.Window.Start.Format("2006-01-02"),
		WindowEnd:      rep.Window.End.Format("2006-01-02"),
		OpeningBalance: rep.OpeningBalance.String(),
		Income:         rep.Income.String(),
		Expense:        rep.Expense.String(),
		Cashflow:       rep.Cashflow.String(),
		ClosingBalance: rep.ClosingBalance.String(),
	}

	if rep.HighestDay != nil {
		dto.HighestDay = &DaySpendDTO{
			Date:         rep.HighestDay.Date,
			Total:        rep.HighestDay.Total.String(),
			CategoryID:   string(rep.HighestDay.CategoryID),
			CategoryName: rep.HighestDay.CategoryName,
		}
	}
	if rep.HighestTransaction != nil {
		dto.HighestTransaction = &TransactionHighlightDTO{
			TransactionID: string(rep.HighestTransaction.TransactionID),
			Date:          rep.HighestTransaction.Date.UTC().Format(time.RFC3339),
			Amount:        rep.HighestTransaction.Amount.String(),
			CategoryID:    string(rep.HighestTransaction.CategoryID),
			CategoryName:  rep.HighestTransaction.CategoryName,
			Note:          rep.HighestTransaction.Note,
		}
	}
	for _, row := range rep.Breakdown {
		dto.Breakdown = append(dto.Breakdown, toCategoryTotalDTO(row))
	}
	if rep.HighestCategory != nil {
		top := toCategoryTotalDTO(*rep.HighestCategory)
		dto.HighestCategory = &top
	}
	return dto
}

func toCategoryTotalDTO(row ledger.CategoryTotal) CategoryTotalDTO {
	return CategoryTotalDTO{
		CategoryID:       string(row.CategoryID),
		CategoryName:     row.CategoryName,
		Total:            row.Total.String(),
		TransactionCount: row.TransactionCount,
	}
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

type SnapshotDTO struct {
	AccountID      string `json:"accountId"`
	Month          string `json:"month"`
	OpeningBalance string `json:"openingBalance"`
	Income         string `json:"income"`
	Expense        string `json:"expense"`
	Cashflow       string `json:"cashflow"`
	ClosingBalance string `json:"closingBalance"`
	LastComputedAt string `json:"lastComputedAt"`
}

func toSnapshotDTO(snap *ledger.MonthlySnapshot) SnapshotDTO {
	return SnapshotDTO{
		AccountID:      string(snap.AccountID),
		Month:          snap.Month,
		OpeningBalance: snap.OpeningBalance.String(),
		Income:         snap.Income.String(),
		Expense:        snap.Expense.String(),
		Cashflow:       snap.Cashflow.String(),
		ClosingBalance: snap.ClosingBalance.String(),
		LastComputedAt: snap.LastComputedAt.UTC().Format(time.RFC3339),
	}
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
