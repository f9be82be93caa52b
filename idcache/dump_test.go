package idcache

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_ExportImport(t *testing.T) {
	src := newTestCache(t)

	require.NoError(t, src.Register("empty"))
	require.NoError(t, src.Put("id", "a", 1, json.RawMessage(`["h","p","s"]`)))
	require.NoError(t, src.Put("id", "a", UnconfirmedHeight, json.RawMessage(`"local"`)))
	require.NoError(t, src.Put("id", "b,c", 2, json.RawMessage(`{"k": "v\n"}`)))

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := newTestCache(t)
	require.NoError(t, dst.Put("other", "x", 1, json.RawMessage(`1`)))
	require.NoError(t, dst.Import(&buf))

	require.Equal(t, []string{"empty", "id", "other"}, dst.Identifiers())

	for _, id := range []string{"empty", "id"} {
		exp, err := src.GetAll(id)
		require.NoError(t, err)

		res, err := dst.GetAll(id)
		require.NoError(t, err)
		require.Equal(t, exp, res, id)
	}
}

func TestCache_ImportFailures(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{"wrong fields number", "id,a,1\n"},
		{"empty identifier", ",a,1,MQ==\n"},
		{"bad height", "id,a,x,MQ==\n"},
		{"height overflow", "id,a,4294967296,MQ==\n"},
		{"bad base64", "id,a,1,%%\n"},
		{"bad JSON", "id,a,1,ew==\n"}, // "{"
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCache(t)
			// the whole dump is rejected
			require.Error(t, c.Import(strings.NewReader("ok,,,\n"+tc.data)))
			require.Empty(t, c.Identifiers())
		})
	}
}
