// Package txexec is the transaction executor (C5): it runs every command of
// one transaction inside a named savepoint, rolling back to that
// savepoint on the first command failure so that a rejected transaction
// leaves no partial effect.
//
// Grounded on spec.md §4.5; the savepoint-wrap-rollback-on-first-error
// shape mirrors the teacher's own style of wrapping multi-step mutations
// in a single unit of work (core/ledger.go's apply-then-commit-or-revert
// constructor pattern), generalized to per-command granularity here.
package txexec

import (
	"fmt"

	"github.com/hyperledger/iroha-go/internal/executor"
	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/model"
)

// Result is the outcome of executing one transaction: Err is nil on
// success, or the first command's error together with its index.
type Result struct {
	Index int
	Err   *executor.CmdError
}

// Executor wraps a command executor with per-transaction savepoint
// scoping.
type Executor struct {
	exec *executor.Executor
	s    kv.Session
}

// New builds a transaction executor bound to session s.
func New(s kv.Session) *Executor {
	return &Executor{exec: executor.New(s), s: s}
}

// Execute runs every command of tx, in order, as tx.Creator. On the first
// failure it rolls back every effect of this transaction and returns that
// failure with the failing command's index; otherwise all commands are
// committed to the enclosing session (the savepoint is released, not
// Session.Commit — the caller decides when the whole session commits).
func (e *Executor) Execute(tx *model.Transaction, validate bool) Result {
	spName := fmt.Sprintf("tx_%x", []byte(tx.Hash))
	if err := e.s.Savepoint(spName); err != nil {
		return Result{Err: &executor.CmdError{Command: "Savepoint", Code: executor.CodeInternal, Message: err.Error()}}
	}

	for i, cmd := range tx.Commands {
		if cerr := e.exec.Execute(tx.Creator, cmd, validate); cerr != nil {
			_ = e.s.RollbackToSavepoint(spName)
			e.s.ReleaseSavepoint(spName)
			return Result{Index: i, Err: cerr}
		}
	}

	if err := e.s.ReleaseSavepoint(spName); err != nil {
		return Result{Err: &executor.CmdError{Command: "ReleaseSavepoint", Code: executor.CodeInternal, Message: err.Error()}}
	}
	return Result{Index: -1, Err: nil}
}
