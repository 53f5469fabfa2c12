// Package model holds the shared data types that flow between the WSV,
// ledger pipeline and YAC consensus packages: peers, accounts, blocks and the
// small consensus-specific value types (Round, YacHash, VoteMessage).
package model

import (
	"bytes"
	"fmt"
	"time"
)

// Hash is a raw content hash. Block and transaction identities are hashes.
type Hash []byte

func (h Hash) String() string { return fmt.Sprintf("%x", []byte(h)) }

// Equal reports whether two hashes carry the same bytes.
func (h Hash) Equal(o Hash) bool { return bytes.Equal(h, o) }

// PublicKey is a hex-encoded ed25519-style public key, used as peer and
// signatory identity.
type PublicKey string

// Peer is a network participant identified by its public key.
type Peer struct {
	PubKey    PublicKey
	Address   string
	TLSCert   []byte // optional
	Syncing   bool
}

// Signatory is one public key held by an account. Signatures on a
// transaction are carried separately, as TxSignature values.
type Signatory struct {
	PubKey PublicKey
}

// Account is identified by "name@domain".
type Account struct {
	ID         string
	Domain     string
	Quorum     uint32
	Signatories []PublicKey
	Details    map[string]map[string]string // writer -> key -> value
	Roles      map[string]struct{}
}

// AccountID formats the canonical "name@domain" identifier.
func AccountID(name, domain string) string { return name + "@" + domain }

// Domain groups accounts under a default role.
type Domain struct {
	ID          string
	DefaultRole string
}

// Role names a permission set.
type Role struct {
	ID                 string
	Permissions        map[string]struct{}
	GrantablePermissions map[string]struct{}
}

// Asset is identified by "name#domain" and has a fixed precision.
type Asset struct {
	ID        string
	Domain    string
	Precision uint8
}

// AssetID formats the canonical "name#domain" identifier.
func AssetID(name, domain string) string { return name + "#" + domain }

// AccountAsset is the balance of one asset held by one account.
type AccountAsset struct {
	AccountID string
	AssetID   string
	Balance   Uint256
}

// GrantablePermission is a (from, to, permission) triple.
type GrantablePermission struct {
	From       string
	To         string
	Permission string
}

// Transaction is a batch of commands signed by one creator account.
type Transaction struct {
	Hash       Hash
	Creator    string
	CreatedAt  time.Time
	Commands   []Command
	Signatures []TxSignature
}

// TxSignature pairs a public key with its signature over the transaction
// payload.
type TxSignature struct {
	PubKey    PublicKey
	Signature []byte
}

// Command is implemented by every one of the 20 ledger command variants in
// internal/executor.
type Command interface {
	CommandName() string
}

// Block is the unit of ledger commitment.
type Block struct {
	Height       uint64
	PrevHash     Hash
	CreatedAt    time.Time
	Transactions []*Transaction
	RejectedHashes []Hash
	Signatures   []TxSignature
}

// ComputeHash returns the block's identity hash as computed by h. The real
// hashing scheme (field serialization order, digest function) is an external
// collaborator detail (protobuf message definitions, per spec.md §1), so the
// caller supplies it; this method only applies h to b.
func (b *Block) ComputeHash(h func(*Block) Hash) Hash { return h(b) }

// TopBlockInfo is the (height, hash) pair persisted in the WSV.
type TopBlockInfo struct {
	Height uint64
	Hash   Hash
}

// LedgerState is an immutable snapshot produced by every commit.
type LedgerState struct {
	ActivePeers  []Peer
	SyncingPeers []Peer
	Top          TopBlockInfo
}

// Round is (block_round, reject_round), ordered lexicographically.
type Round struct {
	BlockRound  uint64
	RejectRound uint64
}

// Less reports whether r sorts strictly before o.
func (r Round) Less(o Round) bool {
	if r.BlockRound != o.BlockRound {
		return r.BlockRound < o.BlockRound
	}
	return r.RejectRound < o.RejectRound
}

// Equal reports round equality.
func (r Round) Equal(o Round) bool { return r == o }

func (r Round) String() string { return fmt.Sprintf("(%d,%d)", r.BlockRound, r.RejectRound) }

// NextBlock returns the round after a commit: block round increments,
// reject round resets.
func (r Round) NextBlock() Round { return Round{BlockRound: r.BlockRound + 1, RejectRound: 0} }

// NextReject returns the round after a reject: reject round increments.
func (r Round) NextReject() Round { return Round{BlockRound: r.BlockRound, RejectRound: r.RejectRound + 1} }

// BlockSignature is a block-level signature, distinct from a vote signature.
type BlockSignature struct {
	Signature []byte
	PubKey    PublicKey
}

// YacHash is the triple the YAC engine votes on.
type YacHash struct {
	Round         Round
	ProposalHash  string
	BlockHash     string
	BlockSignature *BlockSignature // optional
}

// Empty reports whether this is a "vote for nothing" hash (AgreementOnNone).
func (h YacHash) Empty() bool { return h.ProposalHash == "" }

// Equal compares two YacHash values by round and the two string hashes
// (the block signature, if any, does not participate in hash equality).
func (h YacHash) Equal(o YacHash) bool {
	return h.Round == o.Round && h.ProposalHash == o.ProposalHash && h.BlockHash == o.BlockHash
}

// VoteMessage is a signed YacHash.
type VoteMessage struct {
	Hash      YacHash
	PubKey    PublicKey
	Signature []byte
}
