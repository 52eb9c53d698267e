package core

import "time"

type EventKind string

const (
	EventTransactionCreated EventKind = "transaction.created"
	EventTransactionDeleted EventKind = "transaction.deleted"
	EventCategoryCreated    EventKind = "category.created"
	EventBudgetCreated      EventKind = "budget.created"
)

// LedgerEvent describes a committed mutation. It is what the change feed
// and the message queue carry.
type LedgerEvent struct {
	ID            string    `json:"id"`
	Kind          EventKind `json:"kind"`
	TransactionID int64     `json:"transactionId,omitempty"`
	BudgetID      *int64    `json:"budgetId,omitempty"`
	CategoryID    *int64    `json:"categoryId,omitempty"`
	Type          Kind      `json:"type,omitempty"`
	Amount        *Money    `json:"amount,omitempty"`
	Timestamp     time.Time `json:"timestamp"`

	// Transaction is set on transaction events so consumers can mirror
	// the row without reading it back.
	Transaction *Transaction `json:"transaction,omitempty"`
}

func TransactionEvent(kind EventKind, t Transaction, at time.Time) LedgerEvent {
	amount := t.Amount
	return LedgerEvent{
		Kind:          kind,
		TransactionID: t.ID,
		BudgetID:      t.BudgetID,
		CategoryID:    t.CategoryID,
		Type:          t.Type,
		Amount:        &amount,
		Timestamp:     at.UTC(),
		Transaction:   &t,
	}
}

func CategoryEvent(c Category, at time.Time) LedgerEvent {
	id := c.ID
	return LedgerEvent{
		Kind:       EventCategoryCreated,
		CategoryID: &id,
		Type:       c.Type,
		Timestamp:  at.UTC(),
	}
}

func BudgetEvent(b Budget, at time.Time) LedgerEvent {
	id, cat := b.ID, b.CategoryID
	amount := b.Amount
	return LedgerEvent{
		Kind:       EventBudgetCreated,
		BudgetID:   &id,
		CategoryID: &cat,
		Amount:     &amount,
		Timestamp:  at.UTC(),
	}
}
