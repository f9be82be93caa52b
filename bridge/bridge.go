/*
Package bridge connects wallet transaction feed with the did.Manager.

Bridge filters identity registration transactions, decodes their payloads
and translates transaction lifecycle into attribute events. History lists
confirmed registrations of the wallet for the startup replay, and Watchlist
keeps identifiers the wallet watches on the chain.
*/
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/nspcc-dev/neo-did/did"
	"github.com/nspcc-dev/neo-did/idcache"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.uber.org/zap"
)

// Transaction is a wallet transaction.
type Transaction struct {
	Hash    util.Uint256
	Type    TxType
	Payload []byte
	// Block height the transaction is included in, idcache.UnconfirmedHeight
	// if it is not in a block yet.
	Height uint32
}

// Handler handles attribute events. Implemented by did.Manager.
type Handler interface {
	OnTransactionStatusChanged(id string, status did.Status, d did.Descriptor, height uint32) error
}

// Lookup provides wallet transactions by hash.
type Lookup interface {
	// TransactionByHash returns wallet transaction with the given hash. Returns
	// nil without an error if there is no such transaction.
	//
	// Height of the returned transaction is treated as the height before the
	// event being handled, so the wallet must not apply the change before
	// notifying the Bridge. Deleted transactions must still be returned.
	TransactionByHash(util.Uint256) (*Transaction, error)
}

// Prm groups parameters of the Bridge.
type Prm struct {
	// Writes progress into the log. Optional: nop logger is used by default.
	Logger *zap.Logger

	// Receives attribute events. Required.
	Handler Handler

	// Resolves transactions not seen by the Bridge before. Optional.
	Lookup Lookup

	// If set, only registrations of the watched identifiers are forwarded.
	Watchlist *Watchlist

	// Replayed registrations known to the Bridge from the start, so their
	// heights do not depend on the Lookup. Optional.
	History *History
}

// registration is a registration transaction known to the Bridge.
type registration struct {
	payload Payload
	height  uint32
}

// Bridge translates wallet transaction events into attribute events. Bridge
// is safe for concurrent use, events are forwarded one by one.
type Bridge struct {
	log       *zap.Logger
	handler   Handler
	lookup    Lookup
	watchlist *Watchlist

	mtx  sync.Mutex
	seen map[util.Uint256]registration
}

// New constructs Bridge from the given parameters.
func New(prm Prm) (*Bridge, error) {
	if prm.Handler == nil {
		return nil, fmt.Errorf("%w: missing event handler", did.ErrInvalidArgument)
	}

	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	x := &Bridge{
		log:       prm.Logger,
		handler:   prm.Handler,
		lookup:    prm.Lookup,
		watchlist: prm.Watchlist,
		seen:      make(map[util.Uint256]registration),
	}

	if prm.History != nil {
		for _, tx := range prm.History.Replayed() {
			if reg, ok := x.registration(tx); ok {
				x.seen[tx.Hash] = reg
			}
		}

		x.log.Debug("replayed registrations loaded", zap.Int("count", len(x.seen)))
	}

	return x, nil
}

// OnTxAdded handles new wallet transaction. Registrations are forwarded as
// did.StatusAdded events at the transaction height, other transactions are
// ignored.
func (x *Bridge) OnTxAdded(tx *Transaction) {
	x.mtx.Lock()
	defer x.mtx.Unlock()

	reg, ok := x.registration(tx)
	if !ok {
		return
	}

	x.seen[tx.Hash] = reg
	x.forward(tx.Hash, reg.payload, did.StatusAdded, reg.height)
}

// OnTxUpdated handles change of the block height of the wallet transaction.
// Registration moved from one block to another is removed from the previous
// height first.
func (x *Bridge) OnTxUpdated(hash util.Uint256, height uint32) {
	x.mtx.Lock()
	defer x.mtx.Unlock()

	reg, ok := x.resolve(hash)
	if !ok {
		return
	}

	if reg.height != idcache.UnconfirmedHeight && reg.height != height {
		x.forward(hash, reg.payload, did.StatusDeleted, reg.height)
	}

	reg.height = height
	x.seen[hash] = reg
	x.forward(hash, reg.payload, did.StatusUpdated, height)
}

// OnTxDeleted handles removal of the wallet transaction, e.g. on chain
// reorganization. Registrations are forwarded as did.StatusDeleted events at
// the last known height.
func (x *Bridge) OnTxDeleted(hash util.Uint256) {
	x.mtx.Lock()
	defer x.mtx.Unlock()

	reg, ok := x.resolve(hash)
	if !ok {
		return
	}

	delete(x.seen, hash)
	x.forward(hash, reg.payload, did.StatusDeleted, reg.height)
}

// resolve returns registration with the given hash from the seen ones or
// the Lookup.
func (x *Bridge) resolve(hash util.Uint256) (registration, bool) {
	if reg, ok := x.seen[hash]; ok {
		return reg, true
	}

	if x.lookup == nil {
		x.log.Debug("unknown transaction, skip", zap.Stringer("tx", hash))
		return registration{}, false
	}

	tx, err := x.lookup.TransactionByHash(hash)
	if err != nil {
		x.log.Error("failed to lookup transaction", zap.Stringer("tx", hash), zap.Error(err))
		return registration{}, false
	}

	if tx == nil {
		x.log.Debug("unknown transaction, skip", zap.Stringer("tx", hash))
		return registration{}, false
	}

	return x.registration(tx)
}

// registration checks whether tx is a registration to be forwarded.
func (x *Bridge) registration(tx *Transaction) (registration, bool) {
	if tx.Type != TypeRegisterIdentification {
		return registration{}, false
	}

	p, err := DecodePayload(tx.Payload)
	if err != nil {
		x.log.Warn("invalid registration transaction, skip", zap.Stringer("tx", tx.Hash), zap.Error(err))
		return registration{}, false
	}

	if p.ID == "" {
		x.log.Debug("registration without identifier, skip", zap.Stringer("tx", tx.Hash))
		return registration{}, false
	}

	if x.watchlist != nil && !x.watchlist.Watched(p.ID) {
		x.log.Debug("registration of unwatched identifier, skip",
			zap.Stringer("tx", tx.Hash), zap.String("id", p.ID))
		return registration{}, false
	}

	return registration{payload: p, height: tx.Height}, true
}

func (x *Bridge) forward(hash util.Uint256, p Payload, status did.Status, height uint32) {
	err := x.handler.OnTransactionStatusChanged(p.ID, status, p.Descriptor(), height)
	if err != nil {
		x.log.Error("failed to handle registration event",
			zap.Stringer("tx", hash), zap.String("id", p.ID), zap.String("path", p.Path),
			zap.Stringer("status", status), zap.Uint32("height", height), zap.Error(err))
		return
	}

	x.log.Debug("registration event forwarded",
		zap.Stringer("tx", hash), zap.String("id", p.ID),
		zap.Stringer("status", status), zap.Uint32("height", height))
}

// Event is a wallet transaction event.
type Event struct {
	Status did.Status
	// New transaction, used with did.StatusAdded only.
	Tx *Transaction
	// Transaction hash, used with did.StatusUpdated and did.StatusDeleted.
	Hash util.Uint256
	// New block height, used with did.StatusUpdated only.
	Height uint32
}

// Handle dispatches the event to OnTxAdded, OnTxUpdated or OnTxDeleted.
func (x *Bridge) Handle(ev Event) error {
	switch ev.Status {
	case did.StatusAdded:
		if ev.Tx == nil {
			return fmt.Errorf("%w: missing transaction of %s event", did.ErrInvalidArgument, ev.Status)
		}
		x.OnTxAdded(ev.Tx)
	case did.StatusUpdated:
		x.OnTxUpdated(ev.Hash, ev.Height)
	case did.StatusDeleted:
		x.OnTxDeleted(ev.Hash)
	default:
		return fmt.Errorf("%w: unsupported event status %s", did.ErrInvalidArgument, ev.Status)
	}

	return nil
}

// Run handles events from the feed until the context is done or the feed is
// closed. Returns context error in the first case and nil in the second one.
func (x *Bridge) Run(ctx context.Context, feed <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			x.log.Info("transaction feed handling stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case ev, ok := <-feed:
			if !ok {
				x.log.Info("transaction feed is closed")
				return nil
			}

			if err := x.Handle(ev); err != nil {
				x.log.Warn("invalid transaction event, skip", zap.Error(err))
			}
		}
	}
}
