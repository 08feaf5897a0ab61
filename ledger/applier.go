/*
applier.go - The atomic Transfer/Balance Applier

PURPOSE:
  The single write path of the system. For one logical financial event it
  updates one or two account balances, appends exactly one ledger row, and
  records the outgoing event, all-or-nothing.

FLOW:
  1. Validate type, amount, account references, category (no mutation yet)
  2. Inside one storage transaction:
     - apply balance adjustment(s) with the sign convention of SignedDelta
     - append the Transaction row
     - append the transaction_created outbox record
  3. Commit. The relay publishes the event after commit; a publish failure
     never rolls back the committed transaction.

TRANSFER SEMANTICS:
  TRANSFER and SAVING move value between two accounts: -amount on the
  debited leg, +amount on the credited leg. Ownership is enforced on the
  debited leg only; the credited account may belong to another user
  (shared accounts). Neither leg may be a credit card.

CONCURRENCY:
  Two events touching disjoint accounts proceed in parallel; events on
  the same account serialize at the storage layer. The applier holds no
  locks of its own.

SEE ALSO:
  - store.go: the WithTx atomicity boundary
  - outbox.go: event relay and consumer contract
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRequest carries the caller-supplied fields of one financial
// event. Exactly which account references are required depends on Type.
type TransactionRequest struct {
	Type          TransactionType
	Amount        decimal.Decimal
	AccountID     AccountID
	FromAccountID AccountID
	ToAccountID   AccountID
	CategoryID    CategoryID
	Date          time.Time // zero means "now"
	Note          string
}

// Applier is the transactional unit at the heart of the ledger.
type Applier struct {
	Store      TxStore
	Categories CategoryProvider

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewApplier(store TxStore, categories CategoryProvider) *Applier {
	return &Applier{Store: store, Categories: categories, Now: time.Now}
}

// Apply validates and atomically commits one financial event, returning
// the created ledger row.
//
// Error conditions:
//   ValidationError - bad type/amount, missing account refs, credit-card
//                     misuse, missing or foreign category
//   NotFoundError   - primary/debited account absent or not owned
func (a *Applier) Apply(ctx context.Context, userID UserID, req TransactionRequest) (*Transaction, error) {
	if err := a.validate(ctx, userID, req); err != nil {
		return nil, err
	}

	now := a.Now().UTC()
	date := req.Date
	if date.IsZero() {
		date = now
	}

	tx := &Transaction{
		ID:            NewTransactionID(),
		UserID:        userID,
		Type:          req.Type,
		Amount:        req.Amount,
		CategoryID:    req.CategoryID,
		AccountID:     req.AccountID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Date:          date,
		Month:         DeriveMonth(date),
		Note:          req.Note,
		CreatedAt:     now,
	}

	err := a.Store.WithTx(ctx, func(s Store) error {
		switch req.Type {
		case TxTransfer, TxSaving:
			if err := a.applyTransfer(ctx, s, userID, tx); err != nil {
				return err
			}
		default:
			if err := a.applySingle(ctx, s, userID, tx); err != nil {
				return err
			}
		}

		if err := s.AppendTransaction(ctx, tx); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}

		return s.AppendOutbox(ctx, NewOutboxRecord(TransactionCreated{
			UserID:        tx.UserID,
			TransactionID: tx.ID,
			Amount:        tx.Amount,
			Type:          tx.Type,
			AccountID:     tx.AccountID,
			CategoryID:    tx.CategoryID,
		}))
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Delete soft-deletes a transaction and reverses its balance effect in
// the same atomic unit, preserving the balance conservation invariant
// over non-deleted rows.
func (a *Applier) Delete(ctx context.Context, userID UserID, id TransactionID) error {
	now := a.Now().UTC()

	return a.Store.WithTx(ctx, func(s Store) error {
		tx, err := s.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}

		switch tx.Type {
		case TxTransfer, TxSaving:
			if err := s.AdjustBalance(ctx, tx.FromAccountID, userID, tx.Amount, now); err != nil {
				return err
			}
			if err := s.AdjustBalance(ctx, tx.ToAccountID, "", tx.Amount.Neg(), now); err != nil {
				return err
			}
		default:
			account, err := s.GetAccount(ctx, userID, tx.AccountID)
			if err != nil {
				return err
			}
			delta, err := SignedDelta(account.Type, tx.Type, tx.Amount)
			if err != nil {
				return err
			}
			if err := s.AdjustBalance(ctx, tx.AccountID, userID, delta.Neg(), now); err != nil {
				return err
			}
		}

		return s.MarkDeleted(ctx, userID, id)
	})
}

// =============================================================================
// VALIDATION - All checks run before any mutation
// =============================================================================

func (a *Applier) validate(ctx context.Context, userID UserID, req TransactionRequest) error {
	if !ValidTransactionType(req.Type) {
		return &ValidationError{Field: "type", Reason: "must be INCOME, EXPENSE, TRANSFER, or SAVING"}
	}
	if !req.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	switch req.Type {
	case TxTransfer, TxSaving:
		if req.FromAccountID == "" || req.ToAccountID == "" {
			return &ValidationError{
				Field:  "fromAccountId",
				Reason: "both fromAccountId and toAccountId are required for TRANSFER and SAVING",
			}
		}
		if req.FromAccountID == req.ToAccountID {
			return &ValidationError{Field: "toAccountId", Reason: "cannot transfer to the same account"}
		}

	case TxIncome:
		if req.AccountID == "" {
			return &ValidationError{Field: "accountId", Reason: "accountId is required for INCOME"}
		}

	case TxExpense:
		if req.AccountID == "" {
			return &ValidationError{Field: "accountId", Reason: "accountId is required for EXPENSE"}
		}
		if req.CategoryID == "" {
			return &ValidationError{Field: "categoryId", Reason: "categoryId is required for EXPENSE"}
		}
		ok, err := a.Categories.CategoryExists(ctx, req.CategoryID, userID)
		if err != nil {
			return fmt.Errorf("category lookup: %w", err)
		}
		if !ok {
			return &NotFoundError{Kind: "category", ID: string(req.CategoryID)}
		}
	}
	return nil
}

// =============================================================================
// BALANCE ADJUSTMENTS
// =============================================================================

// applySingle handles INCOME and EXPENSE: one signed adjustment on the
// primary account, ownership enforced.
func (a *Applier) applySingle(ctx context.Context, s Store, userID UserID, tx *Transaction) error {
	account, err := s.GetAccount(ctx, userID, tx.AccountID)
	if err != nil {
		return err
	}
	delta, err := SignedDelta(account.Type, tx.Type, tx.Amount)
	if err != nil {
		return err
	}
	// asOf is the wall-clock write time, not the (possibly backdated)
	// transaction date: LastTransactionAt drives snapshot invalidation,
	// and a dated write must still stale any snapshot computed before it.
	return s.AdjustBalance(ctx, tx.AccountID, userID, delta, tx.CreatedAt)
}

// applyTransfer handles TRANSFER and SAVING: both legs applied together
// or not at all, inside the enclosing WithTx.
func (a *Applier) applyTransfer(ctx context.Context, s Store, userID UserID, tx *Transaction) error {
	from, err := s.GetAccount(ctx, userID, tx.FromAccountID)
	if err != nil {
		return err
	}
	if from.Type == AccountCreditCard {
		return &ValidationError{Field: "fromAccountId", Reason: "cannot transfer out of a credit card account"}
	}

	// Destination ownership is deliberately not enforced; the credited
	// account may be another user's shared account.
	to, err := s.GetAccount(ctx, "", tx.ToAccountID)
	if err != nil {
		return err
	}
	if to.Type == AccountCreditCard {
		return &ValidationError{Field: "toAccountId", Reason: "cannot transfer into a credit card account"}
	}

	if err := s.AdjustBalance(ctx, tx.FromAccountID, userID, tx.Amount.Neg(), tx.CreatedAt); err != nil {
		return err
	}
	return s.AdjustBalance(ctx, tx.ToAccountID, "", tx.Amount, tx.CreatedAt)
}
