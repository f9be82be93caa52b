package bridge

import (
	"fmt"
	"sync"

	"github.com/nspcc-dev/neo-did/did"
	"github.com/nspcc-dev/neo-did/idcache"
	"go.uber.org/zap"
)

// Wallet lists wallet transactions.
type Wallet interface {
	// Transactions returns all transactions known to the wallet.
	Transactions() ([]*Transaction, error)
}

// History provides confirmed registrations of the Wallet. History remembers
// the transactions of the last replay, so that a Bridge constructed with it
// knows their heights.
type History struct {
	log    *zap.Logger
	wallet Wallet

	mtx      sync.Mutex
	replayed []*Transaction
}

var _ did.HistorySource = (*History)(nil)

// NewHistory returns History of the given Wallet. Nil logger means nop one.
func NewHistory(w Wallet, l *zap.Logger) *History {
	if l == nil {
		l = zap.NewNop()
	}

	return &History{log: l, wallet: w}
}

// RegistrationHistory implements did.HistorySource. Unconfirmed and invalid
// registrations are skipped.
func (x *History) RegistrationHistory() ([]did.Registration, error) {
	txs, err := x.wallet.Transactions()
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}

	var (
		res      []did.Registration
		replayed []*Transaction
	)

	for _, tx := range txs {
		if tx.Type != TypeRegisterIdentification || tx.Height == idcache.UnconfirmedHeight {
			continue
		}

		p, err := DecodePayload(tx.Payload)
		if err != nil {
			x.log.Warn("invalid registration transaction in the wallet, skip",
				zap.Stringer("tx", tx.Hash), zap.Error(err))
			continue
		}

		if p.ID == "" {
			continue
		}

		res = append(res, did.Registration{
			ID:         p.ID,
			Descriptor: p.Descriptor(),
			Height:     tx.Height,
		})
		replayed = append(replayed, tx)
	}

	x.mtx.Lock()
	x.replayed = replayed
	x.mtx.Unlock()

	return res, nil
}

// Replayed returns registration transactions returned by the last
// RegistrationHistory call.
func (x *History) Replayed() []*Transaction {
	x.mtx.Lock()
	defer x.mtx.Unlock()

	return append([]*Transaction(nil), x.replayed...)
}
