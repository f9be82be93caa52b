package did

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-did/idcache"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// CacheDirName is a name of the attribute cache directory inside the wallet
// root.
const CacheDirName = "IdCache"

// Prm groups parameters of the Manager.
type Prm struct {
	// Writes progress into the log. Optional: nop logger is used by default.
	Logger *zap.Logger

	// Wallet key agent deriving identity keys. Required.
	KeyAgent KeyAgent

	// Wallet root directory. The attribute cache is opened in the
	// CacheDirName subdirectory. Ignored if Store is set.
	RootPath string

	// Attribute cache to work with. Optional if RootPath is set. The cache is
	// owned by the Manager and closed by Manager.Close.
	Store *idcache.Cache

	// Source of confirmed registrations replayed into the cache on startup.
	// Optional.
	History HistorySource

	// Watcher of the managed identifiers on the chain. Optional.
	Watcher AddressWatcher

	// Attributes set for each new identifier created by Manager.CreateDID.
	// Values are stored unconfirmed.
	InitialAttributes map[string]json.RawMessage

	// Registers Manager metrics. Optional.
	Registerer prometheus.Registerer
}

// Manager manages identities of the wallet. Manager is safe for concurrent
// use.
//
// Manager must be constructed using NewManager and closed by Close.
type Manager struct {
	log       *zap.Logger
	agent     KeyAgent
	watcher   AddressWatcher
	initAttrs map[string]json.RawMessage
	metrics   *metrics

	mtx        sync.RWMutex
	closed     bool
	cache      *idcache.Cache
	identities map[string]*Identity
	observers  map[string]*observerList
}

// NewManager constructs Manager from the given parameters, replays
// registration history and loads identities known to the cache.
func NewManager(prm Prm) (*Manager, error) {
	if prm.KeyAgent == nil {
		return nil, fmt.Errorf("%w: missing key agent", ErrInvalidArgument)
	}

	if prm.Store == nil && prm.RootPath == "" {
		return nil, fmt.Errorf("%w: neither cache nor root path is set", ErrInvalidArgument)
	}

	if err := idcache.CheckValues(prm.InitialAttributes); err != nil {
		return nil, fmt.Errorf("invalid initial attributes: %w", err)
	}

	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	var err error

	cache := prm.Store
	if cache == nil {
		cache, err = idcache.Open(filepath.Join(prm.RootPath, CacheDirName))
		if err != nil {
			return nil, fmt.Errorf("open attribute cache: %w", err)
		}
	}

	m := &Manager{
		log:        prm.Logger,
		agent:      prm.KeyAgent,
		watcher:    prm.Watcher,
		initAttrs:  prm.InitialAttributes,
		metrics:    newMetrics(),
		cache:      cache,
		identities: make(map[string]*Identity),
		observers:  make(map[string]*observerList),
	}

	err = m.load(prm.History)
	if err == nil && prm.Registerer != nil {
		err = m.metrics.register(prm.Registerer)
		if err != nil {
			err = fmt.Errorf("init metrics: %w", err)
		}
	}

	if err != nil {
		if prm.Store == nil {
			_ = cache.Close()
		}
		return nil, err
	}

	return m, nil
}

// load replays history and creates identities for all cached identifiers.
func (m *Manager) load(history HistorySource) error {
	if history != nil {
		regs, err := history.RegistrationHistory()
		if err != nil {
			return fmt.Errorf("read registration history: %w", err)
		}

		m.log.Info("replaying registration history...", zap.Int("transactions", len(regs)))

		for i := range regs {
			err = m.putConfirmed(regs[i].ID, regs[i].Path, regs[i].Height, regs[i].Value())
			if err != nil {
				if errors.Is(err, ErrInvalidArgument) {
					m.log.Warn("skip invalid registration from history",
						zap.String("id", regs[i].ID), zap.String("path", regs[i].Path),
						zap.Uint32("height", regs[i].Height), zap.Error(err))
					continue
				}
				return fmt.Errorf("save registration from history: %w", err)
			}
		}
	}

	for _, id := range m.cache.Identifiers() {
		if m.watcher != nil {
			if err := m.watcher.WatchAddress(id); err != nil {
				return fmt.Errorf("watch identifier %s: %w", id, err)
			}
		}

		m.identities[id] = &Identity{id: id, mgr: m}
	}

	m.metrics.identities.Set(float64(len(m.identities)))

	m.log.Info("identities loaded", zap.Int("count", len(m.identities)))

	return nil
}

// CreateDID derives next identifier of the wallet and returns its Identity.
// Password must be between MinPasswordLen and MaxPasswordLen bytes long,
// otherwise ErrInvalidArgument is returned. Key agent errors (e.g. wrong
// password) are returned as is.
//
// New identifier gets Prm.InitialAttributes as unconfirmed values and is
// passed to the Prm.Watcher. On failure the cache and the Manager are left
// unchanged, while the key derived by the agent is kept by it.
func (m *Manager) CreateDID(password string) (*Identity, error) {
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return nil, fmt.Errorf("%w: password length must be in [%d, %d]",
			ErrInvalidArgument, MinPasswordLen, MaxPasswordLen)
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	index := uint32(len(m.agent.Identifiers()))

	id, err := m.agent.DeriveIdentifierAndKey(Purpose, index, password)
	if err != nil {
		return nil, fmt.Errorf("derive identifier #%d: %w", index, err)
	}

	if _, ok := m.identities[id]; ok {
		return nil, fmt.Errorf("identifier %s already exists", id)
	}

	err = m.cache.RegisterWith(id, idcache.UnconfirmedHeight, m.initAttrs)
	if err != nil {
		return nil, fmt.Errorf("register identifier in the cache: %w", err)
	}

	if m.watcher != nil {
		if err = m.watcher.WatchAddress(id); err != nil {
			if rbErr := m.cache.DeleteAll(id); rbErr != nil {
				m.log.Error("failed to remove unwatched identifier from the cache",
					zap.String("id", id), zap.Error(rbErr))
			}
			return nil, fmt.Errorf("watch identifier %s: %w", id, err)
		}
	}

	x := &Identity{id: id, mgr: m}
	m.identities[id] = x
	m.metrics.identities.Set(float64(len(m.identities)))

	m.log.Info("identifier created", zap.String("id", id), zap.Uint32("index", index))

	return x, nil
}

// GetDID returns Identity of the identifier. Returns nil if the identifier is
// not managed.
func (m *Manager) GetDID(id string) *Identity {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.identities[id]
}

// GetDIDList returns all identifiers registered in the attribute cache in
// persisted order.
func (m *Manager) GetDIDList() []string {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if m.closed {
		return nil
	}

	return m.cache.Identifiers()
}

// DestroyDID removes the identifier with all its attributes and observers.
// Identity of the identifier becomes unusable. DestroyDID is a no-op for
// unknown identifiers.
func (m *Manager) DestroyDID(id string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.closed {
		return ErrClosed
	}

	if _, ok := m.identities[id]; !ok {
		return nil
	}

	err := m.cache.DeleteAll(id)
	if err != nil {
		return fmt.Errorf("remove identifier from the cache: %w", err)
	}

	delete(m.identities, id)
	delete(m.observers, id)
	m.metrics.identities.Set(float64(len(m.identities)))

	m.log.Info("identifier destroyed", zap.String("id", id))

	return nil
}

// OnTransactionStatusChanged applies status change of the registration
// transaction carrying attribute d of the identifier, and notifies observers
// of the identifier.
//
// StatusAdded and StatusUpdated save attribute value at the given height,
// StatusDeleted removes the version at the height. Events are idempotent.
// Events for unknown identifiers are ignored. Returns ErrInvalidArgument on
// empty path or unsupported status.
func (m *Manager) OnTransactionStatusChanged(id string, status Status, d Descriptor, height uint32) error {
	if d.Path == "" {
		return fmt.Errorf("%w: empty attribute path", ErrInvalidArgument)
	}

	if !status.IsValid() {
		return fmt.Errorf("%w: unsupported status %s", ErrInvalidArgument, status)
	}

	l := m.log.With(zap.String("id", id), zap.String("path", d.Path),
		zap.Stringer("status", status), zap.Uint32("height", height))

	m.mtx.Lock()

	if m.closed {
		m.mtx.Unlock()
		return ErrClosed
	}

	if _, ok := m.identities[id]; !ok {
		m.mtx.Unlock()
		l.Info("transaction event of unknown identifier, skip")
		return nil
	}

	var (
		err   error
		value json.RawMessage
	)

	switch status {
	case StatusAdded, StatusUpdated:
		value = d.Value()
		err = m.putConfirmed(id, d.Path, height, value)
	case StatusDeleted:
		value, err = m.deleteVersion(id, d.Path, height)
	}

	obs := m.observers[id].snapshot()

	m.mtx.Unlock()

	if err != nil {
		return fmt.Errorf("apply %s event: %w", status, err)
	}

	m.metrics.events.WithLabelValues(status.String()).Inc()

	l.Debug("transaction event applied", zap.Int("observers", len(obs)))

	m.notify(obs, Notification{
		EventID:    uuid.New(),
		Identifier: id,
		Path:       d.Path,
		Status:     status,
		Height:     height,
		Value:      value,
	})

	return nil
}

// putConfirmed saves value at the height. Unconfirmed version with the same
// value is promoted.
func (m *Manager) putConfirmed(id, path string, height uint32, value json.RawMessage) error {
	if height == idcache.UnconfirmedHeight {
		return m.cache.Put(id, path, height, value)
	}

	local, err := m.cache.At(id, path, idcache.UnconfirmedHeight)
	if err != nil {
		return err
	}

	if local != nil && idcache.SameValue(local.Value, value) {
		m.log.Debug("unconfirmed value is confirmed", zap.String("id", id),
			zap.String("path", path), zap.Uint32("height", height))
		return m.cache.Promote(id, path, height, value)
	}

	return m.cache.Put(id, path, height, value)
}

// deleteVersion removes the version at the height and returns its value.
func (m *Manager) deleteVersion(id, path string, height uint32) (json.RawMessage, error) {
	v, err := m.cache.At(id, path, height)
	if err != nil {
		return nil, err
	}

	if v == nil {
		return nil, nil
	}

	return v.Value, m.cache.Delete(id, path, height)
}

// RegisterCallback adds observer of the identifier attribute changes.
// Observer added twice is notified once. Observers may be registered before
// the identifier appears.
func (m *Manager) RegisterCallback(id string, o Observer) error {
	if id == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidArgument)
	}

	if o == nil {
		return fmt.Errorf("%w: nil observer", ErrInvalidArgument)
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.closed {
		return ErrClosed
	}

	l, ok := m.observers[id]
	if !ok {
		l = new(observerList)
		m.observers[id] = l
	}

	if !l.add(o) {
		m.log.Debug("observer is already registered", zap.String("id", id))
	}

	return nil
}

// RemoveCallback removes single observer of the identifier.
func (m *Manager) RemoveCallback(id string, o Observer) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	l, ok := m.observers[id]
	if !ok {
		return
	}

	if l.remove(o) && l.len() == 0 {
		delete(m.observers, id)
	}
}

// UnregisterCallback removes all observers of the identifier.
func (m *Manager) UnregisterCallback(id string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	delete(m.observers, id)
}

// Close releases all identities and closes the attribute cache. Close is
// idempotent.
func (m *Manager) Close() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.identities = nil
	m.observers = nil
	m.metrics.identities.Set(0)

	err := m.cache.Close()
	if err != nil {
		return fmt.Errorf("close attribute cache: %w", err)
	}

	return nil
}

// checkIdentity checks that x can be used. Must be called with mtx held.
func (m *Manager) checkIdentity(x *Identity) error {
	if m.closed {
		return ErrClosed
	}

	if m.identities[x.id] != x {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, x.id)
	}

	return nil
}
