package did

import (
	"encoding/json"
	"fmt"
)

// Purpose is a key derivation purpose of the identity keys.
const Purpose = 1

// Password length limits accepted by Manager.CreateDID.
const (
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// Descriptor describes attribute carried by the registration transaction.
type Descriptor struct {
	Path     string
	DataHash string
	Proof    string
	Sign     string
}

// Value returns attribute value stored for the descriptor: JSON array
// [DataHash, Proof, Sign].
func (x Descriptor) Value() json.RawMessage {
	b, err := json.Marshal([3]string{x.DataHash, x.Proof, x.Sign})
	if err != nil {
		// strings are always encodable
		panic(fmt.Sprintf("unexpected error from json.Marshal: %v", err))
	}
	return b
}

// Registration is a confirmed registration transaction of the identifier
// attribute.
type Registration struct {
	ID string
	Descriptor
	// Block height the transaction is included in.
	Height uint32
}

// KeyAgent groups wallet services deriving and using identity keys.
type KeyAgent interface {
	// Identifiers returns all identifiers derived by the agent in derivation
	// order.
	Identifiers() []string

	// DeriveIdentifierAndKey derives identity key for the given purpose and
	// index and returns its identifier. Derivation is deterministic. Returns
	// an error if password is wrong.
	DeriveIdentifierAndKey(purpose, index uint32, password string) (string, error)

	// GetPublicKey returns compressed public key of the identifier.
	GetPublicKey(id string) ([]byte, error)

	// Sign signs SHA-256 hash of the message with the identifier key. Returns
	// an error if password is wrong.
	Sign(id string, message []byte, password string) ([]byte, error)
}

// HistorySource provides registration transactions already confirmed in the
// chain.
type HistorySource interface {
	// RegistrationHistory returns all known confirmed registrations.
	RegistrationHistory() ([]Registration, error)
}

// AddressWatcher starts watching transactions of the identifier on the chain.
type AddressWatcher interface {
	WatchAddress(id string) error
}
