package bridge

import (
	"fmt"
	"sync"

	"github.com/nspcc-dev/neo-did/did"
)

// Watchlist is an in-memory set of identifiers watched on the chain.
// Watchlist is safe for concurrent use.
type Watchlist struct {
	mtx   sync.RWMutex
	ids   map[string]struct{}
	order []string
}

var _ did.AddressWatcher = (*Watchlist)(nil)

// NewWatchlist returns empty Watchlist.
func NewWatchlist() *Watchlist {
	return &Watchlist{ids: make(map[string]struct{})}
}

// WatchAddress implements did.AddressWatcher. Repeated calls are no-op.
func (x *Watchlist) WatchAddress(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty identifier", did.ErrInvalidArgument)
	}

	x.mtx.Lock()
	defer x.mtx.Unlock()

	if _, ok := x.ids[id]; !ok {
		x.ids[id] = struct{}{}
		x.order = append(x.order, id)
	}

	return nil
}

// Watched checks whether identifier is watched.
func (x *Watchlist) Watched(id string) bool {
	x.mtx.RLock()
	defer x.mtx.RUnlock()

	_, ok := x.ids[id]
	return ok
}

// Addresses returns watched identifiers in the order they were added.
func (x *Watchlist) Addresses() []string {
	x.mtx.RLock()
	defer x.mtx.RUnlock()

	return append([]string(nil), x.order...)
}
