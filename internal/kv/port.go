// Package kv is the abstract ordered key-value port every WSV operation is
// expressed against: begin/commit/rollback sessions, arbitrarily nested
// named savepoints, two-phase prepared commits, prefix iteration and
// prefix delete.
//
// Grounded on the teacher's storage layer (core/storage.go: a
// logger-wrapped engine with a pluggable cache in front of it) for the
// overall shape; the transactional semantics themselves (savepoints,
// two-phase prepare) are new to this domain and specified directly by
// spec.md §4.2.
package kv

import "errors"

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// ErrNoSavepoint is returned when a savepoint name is unknown.
var ErrNoSavepoint = errors.New("kv: unknown savepoint")

// ErrAlreadyPrepared is returned by Prepare when a name is already in use.
var ErrAlreadyPrepared = errors.New("kv: name already prepared")

// ErrNotPrepared is returned by CommitPrepared/RollbackPrepared for an
// unknown prepared name.
var ErrNotPrepared = errors.New("kv: unknown prepared transaction")

// Cursor iterates the key/value pairs whose keys carry the seek prefix, in
// ascending key order as the engine defines it (memkv orders keys by
// radix.Compare, not by raw byte value). Keys without the prefix are not
// visited, even those that sort after it.
type Cursor interface {
	// Next advances the cursor. It returns false once exhausted.
	Next() bool
	Key() []byte
	Value() []byte
}

// Session is one begin..commit/rollback unit of work.
type Session interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Del(key []byte) error

	// Seek returns a cursor over every live key carrying the given prefix.
	Seek(prefix []byte) (Cursor, error)

	// FilterDelete removes every key carrying the given prefix.
	FilterDelete(prefix []byte) error

	// Savepoint opens a new named, nestable checkpoint.
	Savepoint(name string) error
	// ReleaseSavepoint discards the named checkpoint, keeping its writes.
	ReleaseSavepoint(name string) error
	// RollbackToSavepoint undoes every write made since the named
	// checkpoint, leaving the session open at that checkpoint.
	RollbackToSavepoint(name string) error

	// Prepare freezes the session's current write set under name, ready
	// for a later CommitPrepared/RollbackPrepared — typically across a
	// process restart.
	Prepare(name string) error
	CommitPrepared(name string) error
	RollbackPrepared(name string) error

	// Commit applies every write made in this session to the engine.
	Commit() error
	// Rollback discards every write made in this session.
	Rollback() error
}

// Engine opens sessions against one underlying store.
type Engine interface {
	Begin() (Session, error)
}
