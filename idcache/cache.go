package idcache

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
)

// UnconfirmedHeight is a block height of the values which are not anchored
// in the blockchain yet. It follows SPV wallet convention for transactions
// outside any block and is greater than any real block height, so local
// values take precedence until the chain confirms them.
const UnconfirmedHeight uint32 = math.MaxInt32

// ErrInvalidArgument is returned on invalid input parameters.
var ErrInvalidArgument = errors.New("invalid argument")

// Version is a single value of the attribute path submitted at some block
// height.
type Version struct {
	Height uint32          `json:"height"`
	Value  json.RawMessage `json:"value"`
}

// Unconfirmed checks whether the version is not anchored in the chain.
func (x Version) Unconfirmed() bool {
	return x.Height == UnconfirmedHeight
}

// Cache is a persistent versioned attribute store. Cache is safe for
// concurrent use.
//
// Cache instances must be constructed using New, Open or OpenStore.
type Cache struct {
	mtx sync.RWMutex
	st  storage.Store
}

// New returns Cache working on top of the given store. The store is owned
// by the resulting Cache and closed by Close.
func New(st storage.Store) *Cache {
	return &Cache{st: st}
}

// Open opens LevelDB-backed Cache in the given directory creating it if
// needed.
func Open(dir string) (*Cache, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: empty cache directory", ErrInvalidArgument)
	}

	return OpenStore(dbconfig.DBConfiguration{
		Type: dbconfig.LevelDB,
		LevelDBOptions: dbconfig.LevelDBOptions{
			DataDirectoryPath: dir,
		},
	})
}

// OpenStore opens Cache over the database described by cfg.
func OpenStore(cfg dbconfig.DBConfiguration) (*Cache, error) {
	st, err := storage.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Type, err)
	}

	return New(st), nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.st.Close()
}

// Register makes identifier known to the Cache even if it has no attributes.
// Register is idempotent.
func (c *Cache) Register(id string) error {
	if err := checkName("identifier", id); err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.commit(map[string][]byte{
		string(identifierKey(id)): markerValue,
	})
}

// RegisterWith registers identifier and stores given values at the same
// height in one batch.
func (c *Cache) RegisterWith(id string, height uint32, values map[string]json.RawMessage) error {
	if err := checkName("identifier", id); err != nil {
		return err
	}

	batch := map[string][]byte{
		string(identifierKey(id)): markerValue,
	}

	for path, value := range values {
		if err := checkName("path", path); err != nil {
			return err
		}

		v, err := normalizeValue(value)
		if err != nil {
			return err
		}

		batch[string(versionKey(id, path, height))] = v
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.commit(batch)
}

// CheckValues checks that values can be saved by RegisterWith.
func CheckValues(values map[string]json.RawMessage) error {
	for path, value := range values {
		if err := checkName("path", path); err != nil {
			return err
		}

		if _, err := normalizeValue(value); err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
	}

	return nil
}

// Put saves value of the identifier's path at the given block height. Value
// previously stored at the same height is overwritten. Put registers the
// identifier if it is not registered yet.
func (c *Cache) Put(id, path string, height uint32, value json.RawMessage) error {
	batch, err := putBatch(id, path, height, value)
	if err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.commit(batch)
}

// Promote works like Put and additionally removes unconfirmed version of
// the path in the same batch. It is used when the chain confirms a value
// set locally.
func (c *Cache) Promote(id, path string, height uint32, value json.RawMessage) error {
	batch, err := putBatch(id, path, height, value)
	if err != nil {
		return err
	}

	if height != UnconfirmedHeight {
		batch[string(versionKey(id, path, UnconfirmedHeight))] = nil
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.commit(batch)
}

func putBatch(id, path string, height uint32, value json.RawMessage) (map[string][]byte, error) {
	if err := checkName("identifier", id); err != nil {
		return nil, err
	}
	if err := checkName("path", path); err != nil {
		return nil, err
	}

	v, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}

	return map[string][]byte{
		string(identifierKey(id)):            markerValue,
		string(versionKey(id, path, height)): v,
	}, nil
}

// Get returns all versions of the identifier's path in ascending height
// order. Result is empty if there are no versions.
func (c *Cache) Get(id, path string) ([]Version, error) {
	if err := checkName("identifier", id); err != nil {
		return nil, err
	}
	if err := checkName("path", path); err != nil {
		return nil, err
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return c.history(id, path), nil
}

func (c *Cache) history(id, path string) []Version {
	prefix := pathPrefix(id, path)

	var res []Version

	c.st.Seek(storage.SeekRange{Prefix: prefix}, func(k, v []byte) bool {
		if len(k) != len(prefix)+heightLen {
			return true
		}
		res = append(res, Version{
			Height: binary.BigEndian.Uint32(k[len(prefix):]),
			Value:  bytes.Clone(v),
		})
		return true
	})

	sortVersions(res)

	return res
}

// Current returns the version of the identifier's path with the highest
// block height. Returns nil if there are no versions.
func (c *Cache) Current(id, path string) (*Version, error) {
	vs, err := c.Get(id, path)
	if err != nil {
		return nil, err
	}

	return Latest(vs), nil
}

// At returns the version of the identifier's path stored exactly at the
// given height or nil if there is no such version.
func (c *Cache) At(id, path string, height uint32) (*Version, error) {
	if err := checkName("identifier", id); err != nil {
		return nil, err
	}
	if err := checkName("path", path); err != nil {
		return nil, err
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	v, err := c.st.Get(versionKey(id, path, height))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read version from the store: %w", err)
	}

	return &Version{Height: height, Value: bytes.Clone(v)}, nil
}

// GetAll returns version histories of all paths of the identifier.
func (c *Cache) GetAll(id string) (map[string][]Version, error) {
	if err := checkName("identifier", id); err != nil {
		return nil, err
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	prefix := identifierPrefix(id)
	res := make(map[string][]Version)

	c.st.Seek(storage.SeekRange{Prefix: prefix}, func(k, v []byte) bool {
		path, height, ok := splitVersionKey(k[len(prefix):])
		if ok {
			res[path] = append(res[path], Version{Height: height, Value: bytes.Clone(v)})
		}
		return true
	})

	for path := range res {
		sortVersions(res[path])
	}

	return res, nil
}

// Paths returns sorted list of the identifier's paths having at least one
// version.
func (c *Cache) Paths(id string) ([]string, error) {
	all, err := c.GetAll(id)
	if err != nil {
		return nil, err
	}

	res := make([]string, 0, len(all))
	for path := range all {
		res = append(res, path)
	}

	sort.Strings(res)

	return res, nil
}

// Has checks whether identifier is registered in the Cache.
func (c *Cache) Has(id string) (bool, error) {
	if err := checkName("identifier", id); err != nil {
		return false, err
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	_, err := c.st.Get(identifierKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read identifier from the store: %w", err)
	}

	return true, nil
}

// Identifiers returns all registered identifiers in persisted order.
func (c *Cache) Identifiers() []string {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return c.identifiers()
}

func (c *Cache) identifiers() []string {
	var res []string

	c.st.Seek(storage.SeekRange{Prefix: []byte{prefixIdentifier}}, func(k, _ []byte) bool {
		if len(k) > 1 {
			res = append(res, string(k[1:]))
		}
		return true
	})

	sort.Strings(res)

	return res
}

// GetAllKeys returns at most count registered identifiers starting from the
// given position. Returns ErrInvalidArgument if count is zero or start is
// out of range.
func (c *Cache) GetAllKeys(start, count uint32) ([]string, error) {
	return Page(c.Identifiers(), start, count)
}

// Delete removes the version of the identifier's path stored at the given
// height. Other versions are kept.
func (c *Cache) Delete(id, path string, height uint32) error {
	if err := checkName("identifier", id); err != nil {
		return err
	}
	if err := checkName("path", path); err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.commit(map[string][]byte{
		string(versionKey(id, path, height)): nil,
	})
}

// DeleteAll removes the identifier with all its versions.
func (c *Cache) DeleteAll(id string) error {
	if err := checkName("identifier", id); err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	batch := map[string][]byte{
		string(identifierKey(id)): nil,
	}

	c.st.Seek(storage.SeekRange{Prefix: identifierPrefix(id)}, func(k, _ []byte) bool {
		batch[string(k)] = nil
		return true
	})

	return c.commit(batch)
}

// commit writes the batch atomically, nil values are deletions. Must be
// called with mtx held.
func (c *Cache) commit(batch map[string][]byte) error {
	err := c.st.PutChangeSet(batch, nil)
	if err != nil {
		return fmt.Errorf("write change set to the store: %w", err)
	}
	return nil
}

// Latest returns the version with the highest height or nil for an empty
// history.
func Latest(vs []Version) *Version {
	if len(vs) == 0 {
		return nil
	}

	res := vs[0]
	for i := 1; i < len(vs); i++ {
		if vs[i].Height > res.Height {
			res = vs[i]
		}
	}

	return &res
}

// Page returns at most count items starting from start. Fails with
// ErrInvalidArgument for zero count or start beyond the list.
func Page(list []string, start, count uint32) ([]string, error) {
	if count == 0 {
		return nil, fmt.Errorf("%w: zero count", ErrInvalidArgument)
	}
	if uint64(start) >= uint64(len(list)) {
		return nil, fmt.Errorf("%w: start %d is out of range [0:%d)", ErrInvalidArgument, start, len(list))
	}

	end := uint64(start) + uint64(count)
	if end > uint64(len(list)) {
		end = uint64(len(list))
	}

	return append([]string(nil), list[start:end]...), nil
}

// SameValue checks whether two JSON values are equal up to formatting.
func SameValue(a, b json.RawMessage) bool {
	na, errA := normalizeValue(a)
	nb, errB := normalizeValue(b)
	return errA == nil && errB == nil && bytes.Equal(na, nb)
}

// normalizeValue validates JSON value and compacts it. Empty value is
// stored as JSON null.
func normalizeValue(v json.RawMessage) ([]byte, error) {
	if len(bytes.TrimSpace(v)) == 0 {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return nil, fmt.Errorf("%w: value is not a valid JSON: %v", ErrInvalidArgument, err)
	}

	return buf.Bytes(), nil
}

func sortVersions(vs []Version) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].Height < vs[j].Height })
}
