package ledgerstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/hyperledger/iroha-go/internal/dispatch"
	"github.com/hyperledger/iroha-go/internal/eventbus"
	"github.com/hyperledger/iroha-go/internal/executor"
	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/kv/memkv"
	"github.com/hyperledger/iroha-go/internal/model"
	"github.com/hyperledger/iroha-go/internal/wsv"
)

func testHash(b *model.Block) model.Hash { return model.Hash(fmt.Sprintf("h%d", b.Height)) }

func dispatchLane(t *testing.T) *dispatch.Lane {
	t.Helper()
	return dispatch.NewLane("test", 8)
}

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

func TestCommitViaMutableStoragePublishesOnCommit(t *testing.T) {
	eng := memkv.New()
	bus := eventbus.New()
	st := New(eng, bus, testHash, false)

	s0, _ := eng.Begin()
	bootstrap(t, s0)
	s0.Commit()

	received := make(chan *model.Block, 4)
	lane := dispatchLane(t)
	defer lane.Stop()
	bus.Subscribe(eventbus.TopicOnCommit, lane, func(ev any) { received <- ev.(*model.Block) })

	ms, err := st.NewMutableStorage(nil)
	if err != nil {
		t.Fatal(err)
	}
	block := &model.Block{Height: 1, Transactions: []*model.Transaction{
		{Hash: "tx1", Creator: "root@d", CreatedAt: time.Now(), Commands: []model.Command{
			executor.CreateAsset{Asset: model.Asset{ID: "coin#d", Domain: "d", Precision: 0}},
		}},
	}}
	if !ms.Apply(block) {
		t.Fatal("apply failed")
	}
	if err := st.Commit(ms); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	select {
	case b := <-received:
		if b.Height != 1 {
			t.Fatalf("unexpected block: %+v", b)
		}
	case <-time.After(time.Second):
		t.Fatal("expected on_commit event")
	}
	if st.Blocks().Size() != 1 {
		t.Fatalf("expected 1 block in storage, got %d", st.Blocks().Size())
	}
}

func TestPrepareBlockRejectedWhenDisabled(t *testing.T) {
	eng := memkv.New()
	bus := eventbus.New()
	st := New(eng, bus, testHash, false)

	s, _ := eng.Begin()
	if err := st.PrepareBlock(s); err == nil {
		t.Fatal("expected prepare to fail when disabled")
	}
}

func TestPrepareAndCommitPreparedFlow(t *testing.T) {
	eng := memkv.New()
	bus := eventbus.New()
	st := New(eng, bus, testHash, true)

	s0, _ := eng.Begin()
	bootstrap(t, s0)
	s0.Commit()

	s, err := eng.Begin()
	if err != nil {
		t.Fatal(err)
	}
	c := wsv.NewCommand(s)
	if err := c.CreateAsset(model.Asset{ID: "coin#d", Domain: "d", Precision: 0}); err != nil {
		t.Fatal(err)
	}
	if err := st.PrepareBlock(s); err != nil {
		t.Fatalf("prepare failed: %v", err)
	}

	received := make(chan *model.Block, 1)
	lane := dispatchLane(t)
	defer lane.Stop()
	bus.Subscribe(eventbus.TopicOnCommit, lane, func(ev any) { received <- ev.(*model.Block) })

	block := &model.Block{Height: 1}
	if _, err := st.CommitPrepared(s, block); err != nil {
		t.Fatalf("commit prepared failed: %v", err)
	}

	select {
	case b := <-received:
		if b.Height != 1 {
			t.Fatalf("unexpected block: %+v", b)
		}
	case <-time.After(time.Second):
		t.Fatal("expected on_commit event")
	}

	s2, _ := eng.Begin()
	q := wsv.NewQuery(s2)
	if _, err := q.GetAsset("coin#d"); err != nil {
		t.Fatalf("prepared commit must have persisted the asset: %v", err)
	}
}

func TestDropStorageClearsBlocks(t *testing.T) {
	eng := memkv.New()
	bus := eventbus.New()
	st := New(eng, bus, testHash, false)
	st.Blocks().Insert(&model.Block{Height: 1})

	st.DropStorage()
	if st.Blocks().Size() != 0 {
		t.Fatal("expected blocks cleared")
	}
}
