package keystore

import (
	"crypto/elliptic"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-did/did"
	"github.com/nspcc-dev/neo-did/idcache"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testPassword = "wallet password"

// scrypt parameters making tests fast.
var testScrypt = keys.ScryptParams{N: 16, R: 1, P: 1}

// newTestKeystore creates Keystore with the given master key or a random one
// if it is nil.
func newTestKeystore(t testing.TB, master *keys.PrivateKey) *Keystore {
	if master == nil {
		var err error
		master, err = keys.NewPrivateKey()
		require.NoError(t, err)
	}

	x, err := New(master, testPassword, Prm{Logger: zaptest.NewLogger(t), Scrypt: testScrypt})
	require.NoError(t, err)
	return x
}

func TestNew(t *testing.T) {
	k, err := keys.NewPrivateKey()
	require.NoError(t, err)

	_, err = New(k, "", Prm{Scrypt: testScrypt})
	require.ErrorIs(t, err, did.ErrInvalidArgument)

	x, err := Generate(testPassword, Prm{Scrypt: testScrypt})
	require.NoError(t, err)
	require.Empty(t, x.Identifiers())

	x, err = Generate(testPassword, Prm{})
	require.NoError(t, err)
	require.Equal(t, keys.NEP2ScryptParams(), x.scrypt)
}

func TestKeystore_Derive(t *testing.T) {
	master, err := keys.NewPrivateKey()
	require.NoError(t, err)

	x := newTestKeystore(t, master)

	_, err = x.DeriveIdentifierAndKey(1, 0, "wrong password")
	require.ErrorIs(t, err, ErrWrongPassword)
	require.Empty(t, x.Identifiers())

	id0, err := x.DeriveIdentifierAndKey(1, 0, testPassword)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(id0, IdentifierPrefix))

	raw, err := base58.Decode(strings.TrimPrefix(id0, IdentifierPrefix))
	require.NoError(t, err)
	require.Len(t, raw, 20)

	// idempotent
	id, err := x.DeriveIdentifierAndKey(1, 0, testPassword)
	require.NoError(t, err)
	require.Equal(t, id0, id)

	id1, err := x.DeriveIdentifierAndKey(1, 1, testPassword)
	require.NoError(t, err)
	require.NotEqual(t, id0, id1)

	id2, err := x.DeriveIdentifierAndKey(2, 0, testPassword)
	require.NoError(t, err)
	require.NotEqual(t, id0, id2)

	require.Equal(t, []string{id0, id1, id2}, x.Identifiers())

	// deterministic for the same master key
	y := newTestKeystore(t, master)

	id, err = y.DeriveIdentifierAndKey(1, 1, testPassword)
	require.NoError(t, err)
	require.Equal(t, id1, id)

	pub0, err := x.GetPublicKey(id1)
	require.NoError(t, err)
	pub1, err := y.GetPublicKey(id1)
	require.NoError(t, err)
	require.Equal(t, pub0, pub1)
	require.Len(t, pub0, 33)
}

func TestKeystore_Sign(t *testing.T) {
	x := newTestKeystore(t, nil)
	msg := []byte("any message")

	_, err := x.Sign("did:neo:unknown", msg, testPassword)
	require.ErrorIs(t, err, ErrUnknownIdentifier)

	_, err = x.GetPublicKey("did:neo:unknown")
	require.ErrorIs(t, err, ErrUnknownIdentifier)

	id, err := x.DeriveIdentifierAndKey(1, 0, testPassword)
	require.NoError(t, err)

	_, err = x.Sign(id, msg, "wrong password")
	require.ErrorIs(t, err, ErrWrongPassword)

	sig, err := x.Sign(id, msg, testPassword)
	require.NoError(t, err)

	b, err := x.GetPublicKey(id)
	require.NoError(t, err)

	pub, err := keys.NewPublicKeyFromBytes(b, elliptic.P256())
	require.NoError(t, err)
	require.True(t, pub.Verify(sig, hash.Sha256(msg).BytesBE()))
}

func TestKeystore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")

	x := newTestKeystore(t, nil)

	for i := uint32(0); i < 3; i++ {
		_, err := x.DeriveIdentifierAndKey(1, i, testPassword)
		require.NoError(t, err)
	}

	require.NoError(t, x.Save(path))

	y, err := Open(path, Prm{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	require.Equal(t, x.Identifiers(), y.Identifiers())
	require.Equal(t, testScrypt, y.scrypt)

	for _, id := range y.Identifiers() {
		sig, err := y.Sign(id, []byte("msg"), testPassword)
		require.NoError(t, err)

		pub, err := x.GetPublicKey(id)
		require.NoError(t, err)

		p, err := keys.NewPublicKeyFromBytes(pub, elliptic.P256())
		require.NoError(t, err)
		require.True(t, p.Verify(sig, hash.Sha256([]byte("msg")).BytesBE()))
	}

	// next derivation continues the sequence
	id, err := y.DeriveIdentifierAndKey(1, uint32(len(y.Identifiers())), testPassword)
	require.NoError(t, err)
	require.NotContains(t, x.Identifiers(), id)

	t.Run("corrupted", func(t *testing.T) {
		var c fileContents

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(b, &c))

		c.Identities[1].ID = c.Identities[0].ID

		b, err = json.Marshal(c)
		require.NoError(t, err)

		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, b, 0o600))

		_, err = Open(bad, Prm{})
		require.Error(t, err)

		_, err = Open(filepath.Join(t.TempDir(), "missing.json"), Prm{})
		require.Error(t, err)
	})
}

func TestKeystore_Manager(t *testing.T) {
	x := newTestKeystore(t, nil)

	m, err := did.NewManager(did.Prm{
		Logger:   zaptest.NewLogger(t),
		KeyAgent: x,
		Store:    idcache.New(storage.NewMemoryStore()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	_, err = m.CreateDID("not the wallet password")
	require.ErrorIs(t, err, ErrWrongPassword)
	require.Empty(t, m.GetDIDList())

	id1, err := m.CreateDID(testPassword)
	require.NoError(t, err)
	id2, err := m.CreateDID(testPassword)
	require.NoError(t, err)

	require.Equal(t, x.Identifiers(), []string{id1.DIDName(), id2.DIDName()})

	msg := []byte("Hello, world!")

	sig, err := id2.Sign(msg, testPassword)
	require.NoError(t, err)

	ok, err := id2.CheckSign(msg, sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = id1.CheckSign(msg, sig)
	require.NoError(t, err)
	require.False(t, ok)
}
