// Package tempwsv is the temporary WSV (C6): it validates a transaction's
// signatures, then applies it under a nested savepoint on top of an
// already-open session, leaving the outer session open for further
// transactions or for the caller to discard everything at once.
//
// Grounded on spec.md §4.6. Go's garbage collector makes the original's
// shared_ptr/weak_ptr cyclic-ownership device between the temporary WSV
// and its parent storage unnecessary (see internal/executor's Open
// Question note in DESIGN.md) — TemporaryWSV just holds a plain kv.Session
// and exposes Apply/Discard.
package tempwsv

import (
	"crypto/ed25519"
	"fmt"

	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/model"
	"github.com/hyperledger/iroha-go/internal/txexec"
)

// Error codes for signature validation failures (spec.md §4.6).
const (
	CodeSignaturesDBFault      = 1
	CodeSignaturesInsufficient = 2
)

// SignatureError reports a transaction that failed stateless signature
// validation.
type SignatureError struct {
	Code    int
	Message string
}

func (e *SignatureError) Error() string { return fmt.Sprintf("signatures_validation: code %d: %s", e.Code, e.Message) }

// PayloadFunc returns the byte payload a transaction's signatures were
// computed over. Kept as an injected function rather than a method on
// model.Transaction: the exact canonical serialization is a wire-format
// detail external to this package (spec.md §1).
type PayloadFunc func(*model.Transaction) []byte

// TemporaryWSV applies transactions, one at a time, under one outer
// session-level savepoint ("savepoint_temp_wsv").
type TemporaryWSV struct {
	s       kv.Session
	payload PayloadFunc
	spName  string
	opened  bool
}

// Open begins the outer savepoint. Call Discard to undo every transaction
// applied through it without touching the parent session further; a
// TemporaryWSV abandoned without Discard or Commit leaves that savepoint
// open on the parent session.
func Open(s kv.Session, payload PayloadFunc) (*TemporaryWSV, error) {
	const spName = "savepoint_temp_wsv"
	if err := s.Savepoint(spName); err != nil {
		return nil, err
	}
	return &TemporaryWSV{s: s, payload: payload, spName: spName, opened: true}, nil
}

// validateSignatures counts signatures against the creator's known
// signatories: valid iff every signature matches a known key and the
// count reaches the creator's quorum (spec.md §4.6).
func validateSignatures(tx *model.Transaction, creator *model.Account, payload []byte) *SignatureError {
	known := map[model.PublicKey]bool{}
	for _, k := range creator.Signatories {
		known[k] = true
	}
	matched := 0
	for _, sig := range tx.Signatures {
		if !known[sig.PubKey] {
			continue
		}
		if !ed25519.Verify(ed25519.PublicKey(decodeHex(string(sig.PubKey))), payload, sig.Signature) {
			continue
		}
		matched++
	}
	if matched != len(tx.Signatures) || matched < int(creator.Quorum) {
		return &SignatureError{Code: CodeSignaturesInsufficient, Message: "insufficient or invalid signatures"}
	}
	return nil
}

func decodeHex(s string) []byte {
	// Public keys are carried as opaque strings at this layer (spec.md
	// doesn't pin an encoding); callers that use ed25519 keys encode them
	// as hex. A non-hex key simply fails Verify, which is the correct
	// outcome for an unrecognized key format.
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, okHi := hexVal(s[2*i])
		lo, okLo := hexVal(s[2*i+1])
		if !okHi || !okLo {
			return nil
		}
		out[i] = hi<<4 | lo
	}
	return out
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// Apply validates tx's signatures and, if valid, executes it with
// validation on under a nested savepoint; on any failure the nested
// savepoint is rolled back and the outer session is left untouched.
func (t *TemporaryWSV) Apply(tx *model.Transaction, creator *model.Account) error {
	if sigErr := validateSignatures(tx, creator, t.payload(tx)); sigErr != nil {
		return sigErr
	}

	spName := "tx_inner_" + tx.Creator
	if err := t.s.Savepoint(spName); err != nil {
		return &SignatureError{Code: CodeSignaturesDBFault, Message: err.Error()}
	}

	res := txexec.New(t.s).Execute(tx, true)
	if res.Err != nil {
		t.s.RollbackToSavepoint(spName)
		t.s.ReleaseSavepoint(spName)
		return res.Err
	}
	return t.s.ReleaseSavepoint(spName)
}

// Discard rolls back every transaction applied through this TemporaryWSV,
// leaving the outer session exactly as it was before Open.
func (t *TemporaryWSV) Discard() error {
	if !t.opened {
		return nil
	}
	t.opened = false
	if err := t.s.RollbackToSavepoint(t.spName); err != nil {
		return err
	}
	return t.s.ReleaseSavepoint(t.spName)
}

// Commit releases the outer savepoint, keeping every applied transaction's
// effect visible to the parent session (which the caller must still
// Commit itself).
func (t *TemporaryWSV) Commit() error {
	if !t.opened {
		return nil
	}
	t.opened = false
	return t.s.ReleaseSavepoint(t.spName)
}
