/*
Package keystore provides password-protected wallet key agent deriving
identity keys from the wallet master key.

Identity key for the given purpose and index is the SHA-256 hash of the
master private key followed by big-endian purpose and index. The identifier
of the key is

	did:neo:<base58 of the big-endian verification script hash>

Master and derived keys are kept NEP-2 encrypted with the wallet password
and decrypted only for the duration of a single operation.
*/
package keystore

import (
	"crypto/elliptic"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-did/did"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"go.uber.org/zap"
)

// IdentifierPrefix prefixes all identifiers derived by Keystore.
const IdentifierPrefix = "did:neo:"

var (
	// ErrWrongPassword is returned when password does not decrypt the key.
	ErrWrongPassword = errors.New("wrong password")

	// ErrUnknownIdentifier is returned for identifiers not derived by the
	// Keystore.
	ErrUnknownIdentifier = errors.New("unknown identifier")
)

// Prm groups optional Keystore parameters.
type Prm struct {
	// Writes progress into the log. Optional: nop logger is used by default.
	Logger *zap.Logger

	// NEP-2 scrypt parameters. Zero value means keys.NEP2ScryptParams.
	Scrypt keys.ScryptParams
}

// identity is a derived key.
type identity struct {
	purpose, index uint32
	pub            []byte
	// NEP-2 encrypted private key
	key string
}

// Keystore is a wallet key agent. Keystore is safe for concurrent use.
type Keystore struct {
	log    *zap.Logger
	scrypt keys.ScryptParams

	mtx        sync.RWMutex
	master     string
	ids        []string
	identities map[string]identity
}

var _ did.KeyAgent = (*Keystore)(nil)

func newKeystore(prm Prm) *Keystore {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}

	if prm.Scrypt == (keys.ScryptParams{}) {
		prm.Scrypt = keys.NEP2ScryptParams()
	}

	return &Keystore{
		log:        prm.Logger,
		scrypt:     prm.Scrypt,
		identities: make(map[string]identity),
	}
}

// Generate creates Keystore with random master key encrypted with the
// password.
func Generate(password string, prm Prm) (*Keystore, error) {
	k, err := keys.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	defer k.Destroy()

	return New(k, password, prm)
}

// New creates Keystore with the given master key encrypted with the
// password.
func New(master *keys.PrivateKey, password string, prm Prm) (*Keystore, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", did.ErrInvalidArgument)
	}

	x := newKeystore(prm)

	enc, err := keys.NEP2Encrypt(master, password, x.scrypt)
	if err != nil {
		return nil, fmt.Errorf("encrypt master key: %w", err)
	}

	x.master = enc

	return x, nil
}

// Identifiers returns all derived identifiers in derivation order.
func (x *Keystore) Identifiers() []string {
	x.mtx.RLock()
	defer x.mtx.RUnlock()

	return append([]string(nil), x.ids...)
}

// DeriveIdentifierAndKey derives identity key with the given purpose and
// index and returns its identifier. Repeated derivation returns the same
// identifier. Returns ErrWrongPassword if password does not match the wallet
// one.
func (x *Keystore) DeriveIdentifierAndKey(purpose, index uint32, password string) (string, error) {
	x.mtx.Lock()
	defer x.mtx.Unlock()

	master, err := x.decrypt(x.master, password)
	if err != nil {
		return "", fmt.Errorf("decrypt master key: %w", err)
	}
	defer master.Destroy()

	child, err := deriveKey(master, purpose, index)
	if err != nil {
		return "", err
	}
	defer child.Destroy()

	pub := child.PublicKey()
	id := identifierOf(pub)

	if _, ok := x.identities[id]; ok {
		return id, nil
	}

	enc, err := keys.NEP2Encrypt(child, password, x.scrypt)
	if err != nil {
		return "", fmt.Errorf("encrypt identity key: %w", err)
	}

	x.identities[id] = identity{
		purpose: purpose,
		index:   index,
		pub:     pub.Bytes(),
		key:     enc,
	}
	x.ids = append(x.ids, id)

	x.log.Debug("identity key derived", zap.String("id", id),
		zap.Uint32("purpose", purpose), zap.Uint32("index", index))

	return id, nil
}

// GetPublicKey returns compressed public key of the identifier.
func (x *Keystore) GetPublicKey(id string) ([]byte, error) {
	x.mtx.RLock()
	defer x.mtx.RUnlock()

	v, ok := x.identities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, id)
	}

	return append([]byte(nil), v.pub...), nil
}

// Sign signs SHA-256 hash of the message with the identifier key. Returns
// ErrWrongPassword if password does not decrypt the key.
func (x *Keystore) Sign(id string, message []byte, password string) ([]byte, error) {
	x.mtx.RLock()
	v, ok := x.identities[id]
	x.mtx.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, id)
	}

	k, err := x.decrypt(v.key, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt identity key: %w", err)
	}
	defer k.Destroy()

	return k.Sign(message), nil
}

func (x *Keystore) decrypt(enc, password string) (*keys.PrivateKey, error) {
	k, err := keys.NEP2Decrypt(enc, password, x.scrypt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}
	return k, nil
}

// deriveKey derives child key of the master for the purpose and index.
func deriveKey(master *keys.PrivateKey, purpose, index uint32) (*keys.PrivateKey, error) {
	seed := master.Bytes()
	seed = binary.BigEndian.AppendUint32(seed, purpose)
	seed = binary.BigEndian.AppendUint32(seed, index)

	h := hash.Sha256(seed)

	k, err := keys.NewPrivateKeyFromBytes(h.BytesBE())
	if err != nil {
		return nil, fmt.Errorf("decode derived key: %w", err)
	}

	return k, nil
}

func identifierOf(pub *keys.PublicKey) string {
	return IdentifierPrefix + base58.Encode(pub.GetScriptHash().BytesBE())
}

func decodePublicKey(s string) (*keys.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key from hex: %w", err)
	}

	pub, err := keys.NewPublicKeyFromBytes(b, elliptic.P256())
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	return pub, nil
}
