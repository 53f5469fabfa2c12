package wsv

import (
	"encoding/json"

	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/model"
)

// Query is the read-only dual of Command: typed lookups over the same
// canonical key paths, expressed as KV gets/seeks (spec.md §4.3).
type Query struct {
	s kv.Session
}

// NewQuery wraps a session for reads.
func NewQuery(s kv.Session) *Query { return &Query{s: s} }

func get[T any](s kv.Session, op, key string) (*T, error) {
	raw, err := s.Get([]byte(key))
	if err != nil {
		if err == kv.ErrNotFound {
			return nil, newErr(NotFound, op, err)
		}
		return nil, newErr(Internal, op, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, newErr(Internal, op, err)
	}
	return &v, nil
}

func put[T any](s kv.Session, op, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return newErr(Internal, op, err)
	}
	if err := s.Put([]byte(key), raw); err != nil {
		return newErr(Internal, op, err)
	}
	return nil
}

func exists(s kv.Session, key string) bool {
	_, err := s.Get([]byte(key))
	return err == nil
}

func (q *Query) GetPeer(pubkey string) (*model.Peer, error) {
	return get[model.Peer](q.s, "GetPeer", peerKey(pubkey))
}

func (q *Query) GetDomain(domain string) (*model.Domain, error) {
	return get[model.Domain](q.s, "GetDomain", domainKey(domain))
}

func (q *Query) GetRole(role string) (*model.Role, error) {
	return get[model.Role](q.s, "GetRole", roleKey(role))
}

func (q *Query) GetAsset(assetID string) (*model.Asset, error) {
	return get[model.Asset](q.s, "GetAsset", assetKey(assetID))
}

func (q *Query) GetAccount(accountID string) (*model.Account, error) {
	return get[model.Account](q.s, "GetAccount", accountKey(accountID))
}

func (q *Query) GetAccountAsset(accountID, assetID string) (*model.AccountAsset, error) {
	return get[model.AccountAsset](q.s, "GetAccountAsset", accountAssetKey(accountID, assetID))
}

func (q *Query) GetTopBlockInfo() (*model.TopBlockInfo, error) {
	return get[model.TopBlockInfo](q.s, "GetTopBlockInfo", keyTopBlock)
}

func (q *Query) GetSettingValue(name string) (string, error) {
	raw, err := q.s.Get([]byte(settingKey(name)))
	if err != nil {
		return "", newErr(NotFound, "GetSettingValue", err)
	}
	return string(raw), nil
}

// HasGrantablePermission reports whether `to` has been granted `permission`
// by `from`.
func (q *Query) HasGrantablePermission(from, to, permission string) bool {
	return exists(q.s, grantableKey(from, to, permission))
}

// ListPeers returns the active (non-syncing) and syncing peer sets.
func (q *Query) ListPeers() (active []model.Peer, syncing []model.Peer, err error) {
	cur, cerr := q.s.Seek([]byte(prefixPeer))
	if cerr != nil {
		return nil, nil, newErr(Internal, "ListPeers", cerr)
	}
	for cur.Next() {
		var p model.Peer
		if err := json.Unmarshal(cur.Value(), &p); err != nil {
			return nil, nil, newErr(Internal, "ListPeers", err)
		}
		if p.Syncing {
			syncing = append(syncing, p)
		} else {
			active = append(active, p)
		}
	}
	return active, syncing, nil
}

// AccountDetail returns the value written under (writer, key) in the
// account's detail dictionary.
func (q *Query) AccountDetail(accountID, writer, key string) (string, bool, error) {
	acc, err := q.GetAccount(accountID)
	if err != nil {
		return "", false, err
	}
	byWriter, ok := acc.Details[writer]
	if !ok {
		return "", false, nil
	}
	v, ok := byWriter[key]
	return v, ok, nil
}
