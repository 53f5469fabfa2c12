// Package blockindex is the block index (C7): it derives lookup entries
// (committed/rejected tx hash, account/asset participation, creator
// activity) from a committed block and flushes them atomically.
//
// Grounded on spec.md §4.7; entry encoding follows internal/wsv's
// JSON-per-value convention so the index can share a kv.Session with the
// rest of the ledger state.
package blockindex

import (
	"encoding/json"
	"time"

	"github.com/hyperledger/iroha-go/internal/executor"
	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/model"
)

// TxPosition locates a transaction within the chain. Index is 0 for a
// rejected hash, matching spec.md §4.7's "(H, 0, 0)" convention.
type TxPosition struct {
	Height    uint64
	Index     int
	Timestamp time.Time
}

const (
	prefixTx      = "index/tx/"
	prefixAccount = "index/account_asset/"
	prefixCreator = "index/creator/"
)

func txKey(hash model.Hash) string { return prefixTx + string(hash) }
func accountAssetKey(account, asset string, height uint64, idx int) string {
	return prefixAccount + account + "/" + asset + "/" + posSuffix(height, idx)
}
func creatorKey(creator string, height uint64, idx int) string {
	return prefixCreator + creator + "/" + posSuffix(height, idx)
}
func posSuffix(height uint64, idx int) string {
	return hex64(height) + "-" + hex64(uint64(idx))
}

func hex64(v uint64) string {
	const digits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf)
}

// Indexer buffers entries produced by one Index(block) call and flushes
// them to the session atomically (all writes are ordinary session Puts,
// which themselves only become visible on the caller's own Commit —
// "atomic flush" here means every entry from this call lands in the same
// write batch, not that the indexer commits the session itself).
type Indexer struct {
	s kv.Session
}

// New builds an indexer bound to session s.
func New(s kv.Session) *Indexer { return &Indexer{s: s} }

// Index records every lookup entry for a committed block.
func (ix *Indexer) Index(block *model.Block) error {
	type entry struct {
		key string
		pos TxPosition
	}
	var entries []entry

	for i, tx := range block.Transactions {
		pos := TxPosition{Height: block.Height, Index: i, Timestamp: tx.CreatedAt}
		entries = append(entries, entry{txKey(tx.Hash), pos})
		entries = append(entries, entry{creatorKey(tx.Creator, block.Height, i), pos})

		seen := map[string]bool{}
		addParticipant := func(account, asset string) {
			k := account + "\x00" + asset
			if seen[k] {
				return
			}
			seen[k] = true
			entries = append(entries, entry{accountAssetKey(account, asset, block.Height, i), pos})
		}
		for _, cmd := range tx.Commands {
			xfer, ok := cmd.(executor.TransferAsset)
			if !ok {
				continue
			}
			addParticipant(tx.Creator, xfer.AssetID)
			addParticipant(xfer.SrcAccountID, xfer.AssetID)
			addParticipant(xfer.DestAccountID, xfer.AssetID)
		}
	}
	for _, h := range block.RejectedHashes {
		entries = append(entries, entry{txKey(h), TxPosition{Height: block.Height, Index: 0}})
	}

	for _, e := range entries {
		raw, err := json.Marshal(e.pos)
		if err != nil {
			return err
		}
		if err := ix.s.Put([]byte(e.key), raw); err != nil {
			return err
		}
	}
	return nil
}

// LookupTx returns where a transaction hash (committed or rejected) was
// indexed.
func LookupTx(s kv.Session, hash model.Hash) (*TxPosition, bool, error) {
	v, err := s.Get([]byte(txKey(hash)))
	if err == kv.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var pos TxPosition
	if err := json.Unmarshal(v, &pos); err != nil {
		return nil, false, err
	}
	return &pos, true, nil
}

// AccountAssetTransactions lists every transaction position touching
// (account, asset) via a TransferAsset, in index order.
func AccountAssetTransactions(s kv.Session, account, asset string) ([]TxPosition, error) {
	return scanPrefix(s, prefixAccount+account+"/"+asset+"/")
}

// CreatorTransactions lists every transaction position created by account.
func CreatorTransactions(s kv.Session, account string) ([]TxPosition, error) {
	return scanPrefix(s, prefixCreator+account+"/")
}

func scanPrefix(s kv.Session, prefix string) ([]TxPosition, error) {
	cur, err := s.Seek([]byte(prefix))
	if err != nil {
		return nil, err
	}
	var out []TxPosition
	for cur.Next() {
		var pos TxPosition
		if err := json.Unmarshal(cur.Value(), &pos); err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}
