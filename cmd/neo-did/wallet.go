package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nspcc-dev/neo-did/bridge"
	"github.com/nspcc-dev/neo-did/idcache"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// walletTx is a JSON form of the wallet transaction.
type walletTx struct {
	// Optional, defaults to SHA-256 of the binary payload.
	Hash    *util.Uint256  `json:"hash"`
	Type    bridge.TxType  `json:"type"`
	Payload bridge.Payload `json:"payload"`
	// Block height, unconfirmed if missing.
	Height *uint32 `json:"height"`
}

// fileWallet is a list of wallet transactions loaded from JSON file.
type fileWallet struct {
	txs []*bridge.Transaction
}

func loadWallet(path string) (*fileWallet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transactions file: %w", err)
	}

	var list []walletTx

	err = json.Unmarshal(b, &list)
	if err != nil {
		return nil, fmt.Errorf("decode transactions from JSON: %w", err)
	}

	res := &fileWallet{txs: make([]*bridge.Transaction, len(list))}

	for i := range list {
		tx := &bridge.Transaction{
			Type:    list[i].Type,
			Payload: list[i].Payload.Bytes(),
			Height:  idcache.UnconfirmedHeight,
		}

		if list[i].Hash != nil {
			tx.Hash = *list[i].Hash
		} else {
			tx.Hash = hash.Sha256(tx.Payload)
		}

		if list[i].Height != nil {
			tx.Height = *list[i].Height
		}

		res.txs[i] = tx
	}

	return res, nil
}

// Transactions implements bridge.Wallet.
func (x *fileWallet) Transactions() ([]*bridge.Transaction, error) {
	return x.txs, nil
}

// TransactionByHash implements bridge.Lookup.
func (x *fileWallet) TransactionByHash(h util.Uint256) (*bridge.Transaction, error) {
	for _, tx := range x.txs {
		if tx.Hash == h {
			return tx, nil
		}
	}
	return nil, nil
}
