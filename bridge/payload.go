package bridge

import (
	"fmt"

	"github.com/nspcc-dev/neo-did/did"
	"github.com/nspcc-dev/neo-go/pkg/io"
)

// TxType is a type of the wallet transaction.
type TxType uint8

// TypeRegisterIdentification is a type of the transactions registering
// identifier attributes.
const TypeRegisterIdentification TxType = 0x09

// Payload is a payload of the TypeRegisterIdentification transaction.
type Payload struct {
	// Identifier the attribute belongs to.
	ID       string `json:"ID"`
	Path     string `json:"Path"`
	DataHash string `json:"DataHash"`
	Proof    string `json:"Proof"`
	Sign     string `json:"Sign"`
}

// EncodeBinary implements io.Serializable. All fields are written as
// variable-length strings in declaration order.
func (x *Payload) EncodeBinary(w *io.BinWriter) {
	w.WriteString(x.ID)
	w.WriteString(x.Path)
	w.WriteString(x.DataHash)
	w.WriteString(x.Proof)
	w.WriteString(x.Sign)
}

// DecodeBinary implements io.Serializable.
func (x *Payload) DecodeBinary(r *io.BinReader) {
	x.ID = r.ReadString()
	x.Path = r.ReadString()
	x.DataHash = r.ReadString()
	x.Proof = r.ReadString()
	x.Sign = r.ReadString()
}

// Bytes returns binary encoding of the Payload.
func (x *Payload) Bytes() []byte {
	w := io.NewBufBinWriter()
	x.EncodeBinary(w.BinWriter)
	if w.Err != nil {
		// writing into a buffer never fails
		panic(fmt.Sprintf("unexpected error from BufBinWriter: %v", w.Err))
	}
	return w.Bytes()
}

// DecodePayload decodes Payload from its binary encoding.
func DecodePayload(b []byte) (Payload, error) {
	var res Payload

	r := io.NewBinReaderFromBuf(b)
	res.DecodeBinary(r)
	if r.Err != nil {
		return Payload{}, fmt.Errorf("decode registration payload: %w", r.Err)
	}

	return res, nil
}

// Descriptor returns attribute descriptor of the Payload.
func (x *Payload) Descriptor() did.Descriptor {
	return did.Descriptor{
		Path:     x.Path,
		DataHash: x.DataHash,
		Proof:    x.Proof,
		Sign:     x.Sign,
	}
}
