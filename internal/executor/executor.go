package executor

import (
	"errors"
	"fmt"

	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/model"
	"github.com/hyperledger/iroha-go/internal/wsv"
)

// CmdError is the numeric-code error surface the executor returns
// (spec.md §4.4/§7); Kind-specific wsv.Errors are translated into it.
type CmdError struct {
	Command string
	Code    int
	Message string
}

func (e *CmdError) Error() string {
	return fmt.Sprintf("%s: code %d: %s", e.Command, e.Code, e.Message)
}

// Error codes, pinned by spec.md §7: permission denied = 2, not found = 3,
// already exists/duplicate = 4, overflow = 7. This package adds precondition
// failed = 5 and internal fault = 6. 0 is reserved for "no error" and never
// constructed here; 1 is unused.
const (
	CodePermissionDenied   = 2
	CodeNotFound           = 3
	CodeAlreadyExists      = 4
	CodePreconditionFailed = 5
	CodeInternal           = 6
	CodeArithmeticOverflow = 7
)

func kindToCode(k wsv.Kind) int {
	switch k {
	case wsv.NotFound:
		return CodeNotFound
	case wsv.AlreadyExists:
		return CodeAlreadyExists
	case wsv.PreconditionFailed:
		return CodePreconditionFailed
	case wsv.PermissionDenied:
		return CodePermissionDenied
	case wsv.ArithmeticOverflow:
		return CodeArithmeticOverflow
	default:
		return CodeInternal
	}
}

func toCmdError(command string, err error) *CmdError {
	if err == nil {
		return nil
	}
	var werr *wsv.Error
	if errors.As(err, &werr) {
		return &CmdError{Command: command, Code: kindToCode(werr.Kind), Message: werr.Error()}
	}
	return &CmdError{Command: command, Code: CodeInternal, Message: err.Error()}
}

func denied(command string) *CmdError {
	return &CmdError{Command: command, Code: CodePermissionDenied, Message: command + ": permission denied"}
}

// Executor runs one command at a time against a session's WSV view.
type Executor struct {
	cmd *wsv.Command
	q   *wsv.Query
}

// New builds an Executor bound to session s.
func New(s kv.Session) *Executor {
	return &Executor{cmd: wsv.NewCommand(s), q: wsv.NewQuery(s)}
}

// hasPermission reports whether creator holds perm via any of its roles,
// or holds RootPermission.
func (e *Executor) hasPermission(creator, perm string) bool {
	acc, err := e.q.GetAccount(creator)
	if err != nil {
		return false
	}
	for role := range acc.Roles {
		r, err := e.q.GetRole(role)
		if err != nil {
			continue
		}
		if _, ok := r.Permissions[RootPermission]; ok {
			return true
		}
		if _, ok := r.Permissions[perm]; ok {
			return true
		}
	}
	return false
}

// Execute runs one command as creator. When validate is true, permissions
// are checked before the mutation runs (spec.md §4.4); mutable storage's
// block-application path runs with validate=false, per spec.md §4.9.
func (e *Executor) Execute(creator string, command model.Command, validate bool) *CmdError {
	name := command.CommandName()
	switch c := command.(type) {
	case AddPeer:
		if validate && !e.hasPermission(creator, PermAddPeer) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.AddPeer(c.Peer))

	case RemovePeer:
		if validate && !e.hasPermission(creator, PermRemovePeer) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.RemovePeer(c.PubKey))

	case CreateDomain:
		if validate && !e.hasPermission(creator, PermCreateDomain) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.CreateDomain(c.Domain))

	case CreateRole:
		if validate && !e.hasPermission(creator, PermCreateRole) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.CreateRole(c.Role))

	case CreateAsset:
		if validate && !e.hasPermission(creator, PermCreateAsset) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.CreateAsset(c.Asset))

	case CreateAccount:
		if validate && !e.hasPermission(creator, PermCreateAccount) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.CreateAccount(c.Account))

	case AddSignatory:
		if validate && creator != c.AccountID && !e.hasPermission(creator, PermAddSignatory) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.AddSignatory(c.AccountID, c.PubKey))

	case RemoveSignatory:
		if validate && creator != c.AccountID && !e.hasPermission(creator, PermAddSignatory) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.RemoveSignatory(c.AccountID, c.PubKey))

	case SetQuorum:
		if validate && creator != c.AccountID && !e.hasPermission(creator, PermSetQuorum) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.SetQuorum(c.AccountID, c.Quorum))

	case AppendRole:
		if validate && !e.hasPermission(creator, PermAppendRole) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.AppendRole(c.AccountID, c.Role))

	case DetachRole:
		if validate && !e.hasPermission(creator, PermDetachRole) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.DetachRole(c.AccountID, c.Role))

	case GrantPermission:
		if validate && !e.hasPermission(creator, grantCapability(c.Permission)) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.GrantPermission(creator, c.Account, c.Permission))

	case RevokePermission:
		if validate && !e.hasPermission(creator, grantCapability(c.Permission)) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.RevokePermission(creator, c.Account, c.Permission))

	case AddAssetQuantity:
		if validate && !e.hasPermission(creator, PermAddAssetQty) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.AddAssetQuantity(c.AccountID, c.AssetID, c.Amount, c.Precision))

	case SubtractAssetQuantity:
		if validate && !e.hasPermission(creator, PermSubAssetQty) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.SubtractAssetQuantity(c.AccountID, c.AssetID, c.Amount, c.Precision))

	case TransferAsset:
		if validate && creator != c.SrcAccountID &&
			!e.q.HasGrantablePermission(c.SrcAccountID, creator, GrantableTransferMyAssets) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.TransferAsset(c.SrcAccountID, c.DestAccountID, c.AssetID, c.Amount, c.Precision))

	case SetAccountDetail:
		if validate && creator != c.AccountID {
			return denied(name)
		}
		return toCmdError(name, e.cmd.SetAccountDetail(c.AccountID, creator, c.Key, c.Value))

	case CompareAndSetAccountDetail:
		if validate && creator != c.AccountID {
			return denied(name)
		}
		return toCmdError(name, e.cmd.CompareAndSetAccountDetail(c.AccountID, creator, c.Key, c.OldValue, c.NewValue, c.Strict))

	case SetSettingValue:
		if validate && !e.hasPermission(creator, PermSetSetting) {
			return denied(name)
		}
		return toCmdError(name, e.cmd.SetSettingValue(c.Name, c.Value))

	case CallEngine:
		if validate && !e.hasPermission(creator, PermCallEngine) {
			return denied(name)
		}
		return nil

	default:
		return &CmdError{Command: name, Code: CodeInternal, Message: "unknown command variant"}
	}
}
