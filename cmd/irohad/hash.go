package main

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/hyperledger/iroha-go/internal/model"
)

// blockHash computes a block's identity hash as sha256 over its height,
// previous hash and transaction hashes. The real scheme (protobuf framing,
// canonical field order) is an external wire-format detail out of scope
// here (spec.md §1); this is a stable stand-in every package that needs
// block identity is built to accept via injection.
func blockHash(b *model.Block) model.Hash {
	h := sha256.New()
	var height [8]byte
	binary.BigEndian.PutUint64(height[:], b.Height)
	h.Write(height[:])
	h.Write(b.PrevHash)
	for _, tx := range b.Transactions {
		h.Write(tx.Hash)
	}
	return model.Hash(h.Sum(nil))
}
