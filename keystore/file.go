package keystore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
)

// fileVersion is a version of the Keystore file format.
const fileVersion = "1.0"

type fileIdentity struct {
	ID        string `json:"id"`
	Purpose   uint32 `json:"purpose"`
	Index     uint32 `json:"index"`
	PublicKey string `json:"publicKey"`
	Key       string `json:"key"`
}

type fileContents struct {
	Version    string            `json:"version"`
	Scrypt     keys.ScryptParams `json:"scrypt"`
	Master     string            `json:"master"`
	Identities []fileIdentity    `json:"identities"`
}

// Save writes Keystore into the JSON file. Keys are saved encrypted.
func (x *Keystore) Save(path string) error {
	x.mtx.RLock()

	c := fileContents{
		Version:    fileVersion,
		Scrypt:     x.scrypt,
		Master:     x.master,
		Identities: make([]fileIdentity, len(x.ids)),
	}

	for i, id := range x.ids {
		v := x.identities[id]
		c.Identities[i] = fileIdentity{
			ID:        id,
			Purpose:   v.purpose,
			Index:     v.index,
			PublicKey: hex.EncodeToString(v.pub),
			Key:       v.key,
		}
	}

	x.mtx.RUnlock()

	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode keystore into JSON: %w", err)
	}

	err = os.WriteFile(path, b, 0o600)
	if err != nil {
		return fmt.Errorf("write keystore file: %w", err)
	}

	return nil
}

// Open reads Keystore from the JSON file written by Save. Scrypt parameters
// are taken from the file, prm.Scrypt is ignored.
func Open(path string, prm Prm) (*Keystore, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}

	var c fileContents

	err = json.Unmarshal(b, &c)
	if err != nil {
		return nil, fmt.Errorf("decode keystore from JSON: %w", err)
	}

	if c.Version != fileVersion {
		return nil, fmt.Errorf("unsupported keystore version '%s'", c.Version)
	}

	if c.Master == "" {
		return nil, errors.New("missing master key")
	}

	prm.Scrypt = c.Scrypt

	x := newKeystore(prm)
	x.master = c.Master

	for i := range c.Identities {
		v := c.Identities[i]

		pub, err := decodePublicKey(v.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("identity #%d: %w", i, err)
		}

		if identifierOf(pub) != v.ID {
			return nil, fmt.Errorf("identity #%d: identifier %s does not match the public key", i, v.ID)
		}

		if _, ok := x.identities[v.ID]; ok {
			return nil, fmt.Errorf("identity #%d: duplicated identifier %s", i, v.ID)
		}

		x.identities[v.ID] = identity{
			purpose: v.Purpose,
			index:   v.Index,
			pub:     pub.Bytes(),
			key:     v.Key,
		}
		x.ids = append(x.ids, v.ID)
	}

	return x, nil
}
