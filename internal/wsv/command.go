package wsv

import (
	"errors"

	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/model"
)

// Command is the strongly-typed mutation surface over the KV port
// (spec.md §4.3). Every method enforces the data-level invariants of the
// entity it touches (existence, quorum bounds, balance/precision,
// overflow); permission checks are layered on top by internal/executor.
type Command struct {
	s kv.Session
	q *Query
}

// NewCommand wraps a session for writes. It shares the session with q's
// reads so that commands observe each other's effects within a
// transaction, per spec.md §4.5.
func NewCommand(s kv.Session) *Command {
	return &Command{s: s, q: NewQuery(s)}
}

func (c *Command) AddPeer(p model.Peer) error {
	if exists(c.s, peerKey(string(p.PubKey))) {
		return newErr(AlreadyExists, "AddPeer", nil)
	}
	return put(c.s, "AddPeer", peerKey(string(p.PubKey)), p)
}

func (c *Command) RemovePeer(pubkey string) error {
	p, err := c.q.GetPeer(pubkey)
	if err != nil {
		return err
	}
	if !p.Syncing {
		active, _, lerr := c.q.ListPeers()
		if lerr != nil {
			return lerr
		}
		if len(active) <= 1 {
			return newErr(PreconditionFailed, "RemovePeer", nil)
		}
	}
	if err := c.s.Del([]byte(peerKey(pubkey))); err != nil {
		return newErr(Internal, "RemovePeer", err)
	}
	return nil
}

// ResetPeers clears the entire peer list (C10's maintenance operation).
// Unlike RemovePeer it enforces no "at least one non-syncing peer"
// invariant — it is meant to precede re-seeding the list from genesis or
// a trusted snapshot, not to shrink a running network.
func (c *Command) ResetPeers() error {
	if err := c.s.FilterDelete([]byte(prefixPeer)); err != nil {
		return newErr(Internal, "ResetPeers", err)
	}
	return nil
}

func (c *Command) CreateDomain(d model.Domain) error {
	if exists(c.s, domainKey(d.ID)) {
		return newErr(AlreadyExists, "CreateDomain", nil)
	}
	return put(c.s, "CreateDomain", domainKey(d.ID), d)
}

func (c *Command) CreateRole(r model.Role) error {
	if exists(c.s, roleKey(r.ID)) {
		return newErr(AlreadyExists, "CreateRole", nil)
	}
	return put(c.s, "CreateRole", roleKey(r.ID), r)
}

func (c *Command) CreateAsset(a model.Asset) error {
	if exists(c.s, assetKey(a.ID)) {
		return newErr(AlreadyExists, "CreateAsset", nil)
	}
	return put(c.s, "CreateAsset", assetKey(a.ID), a)
}

func (c *Command) CreateAccount(a model.Account) error {
	if exists(c.s, accountKey(a.ID)) {
		return newErr(AlreadyExists, "CreateAccount", nil)
	}
	if !exists(c.s, domainKey(a.Domain)) {
		return newErr(PreconditionFailed, "CreateAccount", nil)
	}
	if a.Quorum < 1 || int(a.Quorum) > len(a.Signatories) {
		return newErr(PreconditionFailed, "CreateAccount", nil)
	}
	if len(a.Roles) == 0 {
		return newErr(PreconditionFailed, "CreateAccount", nil)
	}
	for role := range a.Roles {
		if !exists(c.s, roleKey(role)) {
			return newErr(PreconditionFailed, "CreateAccount", nil)
		}
	}
	return put(c.s, "CreateAccount", accountKey(a.ID), a)
}

func (c *Command) AddSignatory(accountID string, pub model.PublicKey) error {
	acc, err := c.q.GetAccount(accountID)
	if err != nil {
		return err
	}
	for _, s := range acc.Signatories {
		if s == pub {
			return newErr(AlreadyExists, "AddSignatory", nil)
		}
	}
	acc.Signatories = append(acc.Signatories, pub)
	return put(c.s, "AddSignatory", accountKey(accountID), acc)
}

func (c *Command) RemoveSignatory(accountID string, pub model.PublicKey) error {
	acc, err := c.q.GetAccount(accountID)
	if err != nil {
		return err
	}
	idx := -1
	for i, s := range acc.Signatories {
		if s == pub {
			idx = i
			break
		}
	}
	if idx < 0 {
		return newErr(NotFound, "RemoveSignatory", nil)
	}
	if len(acc.Signatories)-1 < int(acc.Quorum) {
		return newErr(PreconditionFailed, "RemoveSignatory", nil)
	}
	acc.Signatories = append(acc.Signatories[:idx], acc.Signatories[idx+1:]...)
	return put(c.s, "RemoveSignatory", accountKey(accountID), acc)
}

func (c *Command) SetQuorum(accountID string, quorum uint32) error {
	acc, err := c.q.GetAccount(accountID)
	if err != nil {
		return err
	}
	if quorum < 1 || int(quorum) > len(acc.Signatories) {
		return newErr(PreconditionFailed, "SetQuorum", nil)
	}
	acc.Quorum = quorum
	return put(c.s, "SetQuorum", accountKey(accountID), acc)
}

func (c *Command) AppendRole(accountID, role string) error {
	acc, err := c.q.GetAccount(accountID)
	if err != nil {
		return err
	}
	if _, err := c.q.GetRole(role); err != nil {
		return err
	}
	if _, ok := acc.Roles[role]; ok {
		return newErr(AlreadyExists, "AppendRole", nil)
	}
	if acc.Roles == nil {
		acc.Roles = map[string]struct{}{}
	}
	acc.Roles[role] = struct{}{}
	return put(c.s, "AppendRole", accountKey(accountID), acc)
}

func (c *Command) DetachRole(accountID, role string) error {
	acc, err := c.q.GetAccount(accountID)
	if err != nil {
		return err
	}
	if _, ok := acc.Roles[role]; !ok {
		return newErr(NotFound, "DetachRole", nil)
	}
	if len(acc.Roles) <= 1 {
		return newErr(PreconditionFailed, "DetachRole", nil)
	}
	delete(acc.Roles, role)
	return put(c.s, "DetachRole", accountKey(accountID), acc)
}

func (c *Command) GrantPermission(from, to, permission string) error {
	if _, err := c.q.GetAccount(from); err != nil {
		return err
	}
	if _, err := c.q.GetAccount(to); err != nil {
		return err
	}
	key := grantableKey(from, to, permission)
	if exists(c.s, key) {
		return newErr(AlreadyExists, "GrantPermission", nil)
	}
	return put(c.s, "GrantPermission", key, model.GrantablePermission{From: from, To: to, Permission: permission})
}

func (c *Command) RevokePermission(from, to, permission string) error {
	key := grantableKey(from, to, permission)
	if !exists(c.s, key) {
		return newErr(NotFound, "RevokePermission", nil)
	}
	if err := c.s.Del([]byte(key)); err != nil {
		return newErr(Internal, "RevokePermission", err)
	}
	return nil
}

func (c *Command) AddAssetQuantity(accountID, assetID string, amount model.Uint256, precision uint8) error {
	asset, err := c.q.GetAsset(assetID)
	if err != nil {
		return err
	}
	if asset.Precision != precision {
		return newErr(PreconditionFailed, "AddAssetQuantity", nil)
	}
	if _, err := c.q.GetAccount(accountID); err != nil {
		return err
	}
	aa, err := c.q.GetAccountAsset(accountID, assetID)
	if err != nil {
		var werr *Error
		if errors.As(err, &werr) && werr.Kind == NotFound {
			aa = &model.AccountAsset{AccountID: accountID, AssetID: assetID}
		} else {
			return err
		}
	}
	sum, aerr := aa.Balance.Add(amount)
	if aerr != nil {
		return newErr(ArithmeticOverflow, "AddAssetQuantity", aerr)
	}
	aa.Balance = sum
	return put(c.s, "AddAssetQuantity", accountAssetKey(accountID, assetID), aa)
}

func (c *Command) SubtractAssetQuantity(accountID, assetID string, amount model.Uint256, precision uint8) error {
	asset, err := c.q.GetAsset(assetID)
	if err != nil {
		return err
	}
	if asset.Precision != precision {
		return newErr(PreconditionFailed, "SubtractAssetQuantity", nil)
	}
	aa, err := c.q.GetAccountAsset(accountID, assetID)
	if err != nil {
		return err
	}
	diff, serr := aa.Balance.Sub(amount)
	if serr != nil {
		return newErr(PreconditionFailed, "SubtractAssetQuantity", serr)
	}
	aa.Balance = diff
	return put(c.s, "SubtractAssetQuantity", accountAssetKey(accountID, assetID), aa)
}

// TransferAsset moves amount of assetID from src to dst. amountPrecision
// must match the asset's own precision (spec.md §4.4).
func (c *Command) TransferAsset(src, dst, assetID string, amount model.Uint256, amountPrecision uint8) error {
	asset, err := c.q.GetAsset(assetID)
	if err != nil {
		return err
	}
	if asset.Precision != amountPrecision {
		return newErr(PreconditionFailed, "TransferAsset", nil)
	}
	if _, err := c.q.GetAccount(src); err != nil {
		return err
	}
	if _, err := c.q.GetAccount(dst); err != nil {
		return err
	}

	srcAA, err := c.q.GetAccountAsset(src, assetID)
	if err != nil {
		return err
	}
	newSrc, serr := srcAA.Balance.Sub(amount)
	if serr != nil {
		return newErr(PreconditionFailed, "TransferAsset", serr)
	}

	dstAA, err := c.q.GetAccountAsset(dst, assetID)
	if err != nil {
		var werr *Error
		if errors.As(err, &werr) && werr.Kind == NotFound {
			dstAA = &model.AccountAsset{AccountID: dst, AssetID: assetID}
		} else {
			return err
		}
	}
	newDst, derr := dstAA.Balance.Add(amount)
	if derr != nil {
		return newErr(ArithmeticOverflow, "TransferAsset", derr)
	}

	srcAA.Balance = newSrc
	dstAA.Balance = newDst
	if err := put(c.s, "TransferAsset", accountAssetKey(src, assetID), srcAA); err != nil {
		return err
	}
	return put(c.s, "TransferAsset", accountAssetKey(dst, assetID), dstAA)
}

func (c *Command) SetAccountDetail(accountID, writer, key, value string) error {
	acc, err := c.q.GetAccount(accountID)
	if err != nil {
		return err
	}
	if acc.Details == nil {
		acc.Details = map[string]map[string]string{}
	}
	if acc.Details[writer] == nil {
		acc.Details[writer] = map[string]string{}
	}
	acc.Details[writer][key] = value
	return put(c.s, "SetAccountDetail", accountKey(accountID), acc)
}

// CompareAndSetAccountDetail implements spec.md §4.4's optional-old-value
// semantics: when oldValue != nil, it must match the current value
// (strict mode) or absence is tolerated when oldValue is empty (legacy
// mode writes unconditionally).
func (c *Command) CompareAndSetAccountDetail(accountID, writer, key string, oldValue *string, newValue string, strict bool) error {
	acc, err := c.q.GetAccount(accountID)
	if err != nil {
		return err
	}
	current, has := "", false
	if byWriter, ok := acc.Details[writer]; ok {
		current, has = byWriter[key]
	}
	if oldValue != nil {
		if has {
			if current != *oldValue {
				return newErr(PreconditionFailed, "CompareAndSetAccountDetail", nil)
			}
		} else if strict && *oldValue != "" {
			return newErr(PreconditionFailed, "CompareAndSetAccountDetail", nil)
		}
	}
	if acc.Details == nil {
		acc.Details = map[string]map[string]string{}
	}
	if acc.Details[writer] == nil {
		acc.Details[writer] = map[string]string{}
	}
	acc.Details[writer][key] = newValue
	return put(c.s, "CompareAndSetAccountDetail", accountKey(accountID), acc)
}

func (c *Command) SetSettingValue(name, value string) error {
	if err := c.s.Put([]byte(settingKey(name)), []byte(value)); err != nil {
		return newErr(Internal, "SetSettingValue", err)
	}
	return nil
}

func (c *Command) SetTopBlockInfo(info model.TopBlockInfo) error {
	return put(c.s, "SetTopBlockInfo", keyTopBlock, info)
}
