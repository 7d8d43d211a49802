// Package bank is a stand-in for the credit card bank used in development
// and tests.
package bank

import (
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultMagicKey is the credit card fragment the bank accepts.
const DefaultMagicKey = "896983"

// ErrRejected is returned for cards the bank refuses to charge.
var ErrRejected = errors.New("credit card rejected")

// Transaction is an accepted charge.
type Transaction struct {
	ReceiptID  string
	CreditCard string
	Amount     decimal.Decimal
	CreatedAt  time.Time
}

// Ledger accepts charges on cards containing its magic key.
type Ledger struct {
	magicKey string

	mu           sync.Mutex
	transactions []Transaction
}

// NewLedger creates a Ledger. An empty key falls back to DefaultMagicKey.
func NewLedger(magicKey string) *Ledger {
	if magicKey == "" {
		magicKey = DefaultMagicKey
	}
	return &Ledger{magicKey: magicKey}
}

// Pay records a charge or returns ErrRejected.
func (l *Ledger) Pay(creditCard string, amount decimal.Decimal) (Transaction, error) {
	if !strings.Contains(creditCard, l.magicKey) {
		return Transaction{}, errors.Wrapf(ErrRejected, "card %s", maskCard(creditCard))
	}
	if !amount.IsPositive() {
		return Transaction{}, errors.Wrapf(ErrRejected, "amount %s", amount)
	}

	tr := Transaction{
		ReceiptID:  "RECEIPT:" + uuid.New().String(),
		CreditCard: creditCard,
		Amount:     amount,
		CreatedAt:  time.Now().UTC(),
	}
	l.mu.Lock()
	l.transactions = append(l.transactions, tr)
	l.mu.Unlock()
	return tr, nil
}

// Transactions returns accepted charges in order.
func (l *Ledger) Transactions() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transaction, len(l.transactions))
	copy(out, l.transactions)
	return out
}

func maskCard(card string) string {
	if len(card) <= 4 {
		return strings.Repeat("*", len(card))
	}
	return strings.Repeat("*", len(card)-4) + card[len(card)-4:]
}
