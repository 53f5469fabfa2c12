package mutablestorage

import (
	"fmt"
	"testing"

	"github.com/hyperledger/iroha-go/internal/blockstore"
	"github.com/hyperledger/iroha-go/internal/executor"
	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/kv/memkv"
	"github.com/hyperledger/iroha-go/internal/model"
	"github.com/hyperledger/iroha-go/internal/wsv"
)

func newSession(t *testing.T) kv.Session {
	t.Helper()
	s, err := memkv.New().Begin()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testHash(b *model.Block) model.Hash { return model.Hash(fmt.Sprintf("h%d", b.Height)) }

func bootstrap(t *testing.T, s kv.Session) {
	t.Helper()
	c := wsv.NewCommand(s)
	if err := c.CreateRole(model.Role{ID: "admin", Permissions: map[string]struct{}{executor.RootPermission: {}}}); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateDomain(model.Domain{ID: "d", DefaultRole: "admin"}); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateAccount(model.Account{ID: "root@d", Domain: "d", Quorum: 1, Signatories: []model.PublicKey{"k"}, Roles: map[string]struct{}{"admin": {}}}); err != nil {
		t.Fatal(err)
	}
}

func block(h uint64, creator string, cmds ...model.Command) *model.Block {
	return &model.Block{
		Height: h,
		Transactions: []*model.Transaction{
			{Hash: model.Hash(fmt.Sprintf("tx%d", h)), Creator: creator, Commands: cmds},
		},
	}
}

func TestApplySucceedsAndRefreshesState(t *testing.T) {
	s := newSession(t)
	bootstrap(t, s)

	ms := New(s, nil, testHash)
	b := block(1, "root@d", executor.CreateAsset{Asset: model.Asset{ID: "coin#d", Domain: "d", Precision: 0}})
	if !ms.Apply(b) {
		t.Fatal("expected apply to succeed")
	}
	if ms.State() == nil || ms.State().Top.Height != 1 {
		t.Fatalf("expected refreshed state at height 1, got %+v", ms.State())
	}
}

func TestApplyRollsBackOnCommandFailure(t *testing.T) {
	s := newSession(t)
	bootstrap(t, s)

	ms := New(s, nil, testHash)
	b := block(1, "root@d",
		executor.CreateAsset{Asset: model.Asset{ID: "coin#d", Domain: "d", Precision: 0}},
		executor.AddAssetQuantity{AccountID: "missing@d", AssetID: "coin#d", Amount: model.NewUint256(1), Precision: 0},
	)
	if ms.Apply(b) {
		t.Fatal("expected apply to fail")
	}
	if ms.State() != nil {
		t.Fatal("state must not advance on failed apply")
	}

	q := wsv.NewQuery(s)
	if _, err := q.GetAsset("coin#d"); err == nil {
		t.Fatal("partial effect of the failed block must be rolled back")
	}
}

func TestApplyIfRespectsPredicate(t *testing.T) {
	s := newSession(t)
	bootstrap(t, s)

	ms := New(s, nil, testHash)
	b := block(1, "root@d", executor.CreateAsset{Asset: model.Asset{ID: "coin#d", Domain: "d", Precision: 0}})
	ok := ms.ApplyIf(b, func(*model.Block, *model.LedgerState) bool { return false })
	if ok {
		t.Fatal("predicate returning false must block the apply")
	}
	if ms.State() != nil {
		t.Fatal("state must be unchanged")
	}
}

func TestCommitReplaysBufferIntoExternalStorage(t *testing.T) {
	s := newSession(t)
	bootstrap(t, s)

	ms := New(s, nil, testHash)
	ms.Apply(block(1, "root@d", executor.CreateAsset{Asset: model.Asset{ID: "coin#d", Domain: "d", Precision: 0}}))
	ms.Apply(block(2, "root@d", executor.AddAssetQuantity{AccountID: "root@d", AssetID: "coin#d", Amount: model.NewUint256(3), Precision: 0}))

	external := blockstore.New()
	if err := ms.Commit(external); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if external.Size() != 2 {
		t.Fatalf("expected 2 blocks replayed, got %d", external.Size())
	}

	if err := s.Commit(); err == nil {
		t.Fatal("session was already committed by MutableStorage.Commit; double-commit should error")
	}
}

func TestRollbackDiscardsAllAppliedBlocks(t *testing.T) {
	s := newSession(t)
	bootstrap(t, s)

	ms := New(s, nil, testHash)
	ms.Apply(block(1, "root@d", executor.CreateAsset{Asset: model.Asset{ID: "coin#d", Domain: "d", Precision: 0}}))
	ms.Rollback()

	q := wsv.NewQuery(s)
	if _, err := q.GetAsset("coin#d"); err == nil {
		t.Fatal("rollback must discard every applied block")
	}
}
