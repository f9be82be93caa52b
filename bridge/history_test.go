package bridge

import (
	"errors"
	"testing"

	"github.com/nspcc-dev/neo-did/did"
	"github.com/nspcc-dev/neo-did/idcache"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHistory(t *testing.T) {
	other := registrationTx(testPayload, 1)
	other.Type = 0x02

	invalid := registrationTx(testPayload, 1)
	invalid.Payload = []byte{0xff}

	w := &testWallet{txs: []*Transaction{
		registrationTx(testPayload, 4),
		registrationTx(Payload{ID: "did:2", Path: "q", DataHash: "x"}, 2),
		registrationTx(Payload{ID: "did:3", Path: "q"}, idcache.UnconfirmedHeight),
		registrationTx(Payload{Path: "q"}, 1),
		other,
		invalid,
	}}

	regs, err := NewHistory(w, zaptest.NewLogger(t)).RegistrationHistory()
	require.NoError(t, err)
	require.Equal(t, []did.Registration{
		{ID: "did:1", Descriptor: testPayload.Descriptor(), Height: 4},
		{ID: "did:2", Descriptor: did.Descriptor{Path: "q", DataHash: "x"}, Height: 2},
	}, regs)

	w.err = errors.New("any error")
	_, err = NewHistory(w, nil).RegistrationHistory()
	require.ErrorIs(t, err, w.err)
}

func TestWatchlist(t *testing.T) {
	wl := NewWatchlist()

	require.ErrorIs(t, wl.WatchAddress(""), did.ErrInvalidArgument)
	require.False(t, wl.Watched("a"))

	require.NoError(t, wl.WatchAddress("b"))
	require.NoError(t, wl.WatchAddress("a"))
	require.NoError(t, wl.WatchAddress("b"))

	require.True(t, wl.Watched("a"))
	require.Equal(t, []string{"b", "a"}, wl.Addresses())
}
