package did

import (
	"crypto/elliptic"
	"encoding/json"
	"fmt"

	"github.com/nspcc-dev/neo-did/idcache"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
)

// Identity provides access to the attributes and the key of one identifier.
// Identity is created by the Manager and valid until the identifier is
// destroyed or the Manager is closed.
type Identity struct {
	id  string
	mgr *Manager
}

// DIDName returns the identifier.
func (x *Identity) DIDName() string {
	return x.id
}

// SetValue saves value of the path as unconfirmed. The value becomes current
// since it takes precedence over confirmed ones until the chain confirms it
// or it is deleted.
func (x *Identity) SetValue(path string, value json.RawMessage) error {
	return x.setValue(path, value, idcache.UnconfirmedHeight)
}

func (x *Identity) setValue(path string, value json.RawMessage, height uint32) error {
	if path == "" {
		return fmt.Errorf("%w: empty attribute path", ErrInvalidArgument)
	}

	x.mgr.mtx.Lock()
	defer x.mgr.mtx.Unlock()

	if err := x.mgr.checkIdentity(x); err != nil {
		return err
	}

	return x.mgr.cache.Put(x.id, path, height, value)
}

// DeleteValue removes version of the path saved at the given height. Use
// idcache.UnconfirmedHeight to remove the value set by SetValue.
func (x *Identity) DeleteValue(path string, height uint32) error {
	if path == "" {
		return fmt.Errorf("%w: empty attribute path", ErrInvalidArgument)
	}

	x.mgr.mtx.Lock()
	defer x.mgr.mtx.Unlock()

	if err := x.mgr.checkIdentity(x); err != nil {
		return err
	}

	return x.mgr.cache.Delete(x.id, path, height)
}

// Value returns current version of the path, i.e. the one with the highest
// height. Returns nil if the path has no versions.
func (x *Identity) Value(path string) (*idcache.Version, error) {
	vs, err := x.History(path)
	if err != nil {
		return nil, err
	}

	return idcache.Latest(vs), nil
}

// History returns all versions of the path in ascending height order.
func (x *Identity) History(path string) ([]idcache.Version, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty attribute path", ErrInvalidArgument)
	}

	x.mgr.mtx.RLock()
	defer x.mgr.mtx.RUnlock()

	if err := x.mgr.checkIdentity(x); err != nil {
		return nil, err
	}

	return x.mgr.cache.Get(x.id, path)
}

// Paths returns at most count attribute paths of the identifier in sorted
// order starting from the given position. Returns ErrInvalidArgument if count
// is zero or start is out of range.
func (x *Identity) Paths(start, count uint32) ([]string, error) {
	x.mgr.mtx.RLock()
	defer x.mgr.mtx.RUnlock()

	if err := x.mgr.checkIdentity(x); err != nil {
		return nil, err
	}

	ps, err := x.mgr.cache.Paths(x.id)
	if err != nil {
		return nil, err
	}

	return idcache.Page(ps, start, count)
}

// check checks that x is still managed.
func (x *Identity) check() error {
	x.mgr.mtx.RLock()
	defer x.mgr.mtx.RUnlock()

	return x.mgr.checkIdentity(x)
}

// Sign signs SHA-256 hash of the message with the identifier key unlocked by
// the password. Returns ErrInvalidArgument on empty password, key agent
// errors are returned as is.
func (x *Identity) Sign(message []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", ErrInvalidArgument)
	}

	if err := x.check(); err != nil {
		return nil, err
	}

	sig, err := x.mgr.agent.Sign(x.id, message, password)
	if err != nil {
		return nil, fmt.Errorf("sign with %s key: %w", x.id, err)
	}

	return sig, nil
}

// CheckSign checks whether signature of the message is made by the
// identifier key. Any mismatch results in false without an error.
func (x *Identity) CheckSign(message, signature []byte) (bool, error) {
	pub, err := x.PublicKey()
	if err != nil {
		return false, err
	}

	h := hash.Sha256(message)

	return pub.Verify(signature, h.BytesBE()), nil
}

// PublicKey returns public key of the identifier.
func (x *Identity) PublicKey() (*keys.PublicKey, error) {
	if err := x.check(); err != nil {
		return nil, err
	}

	b, err := x.mgr.agent.GetPublicKey(x.id)
	if err != nil {
		return nil, fmt.Errorf("get %s public key: %w", x.id, err)
	}

	pub, err := keys.NewPublicKeyFromBytes(b, elliptic.P256())
	if err != nil {
		return nil, fmt.Errorf("decode %s public key: %w", x.id, err)
	}

	return pub, nil
}

// GenerateProgram signs the message and returns transaction witness proving
// authorship: invocation script pushes the signature, verification script
// checks it against the identifier key.
func (x *Identity) GenerateProgram(message []byte, password string) (transaction.Witness, error) {
	sig, err := x.Sign(message, password)
	if err != nil {
		return transaction.Witness{}, err
	}

	pub, err := x.PublicKey()
	if err != nil {
		return transaction.Witness{}, err
	}

	invoc := make([]byte, 0, 2+len(sig))
	invoc = append(invoc, byte(opcode.PUSHDATA1), byte(len(sig)))
	invoc = append(invoc, sig...)

	return transaction.Witness{
		InvocationScript:   invoc,
		VerificationScript: pub.GetVerificationScript(),
	}, nil
}
