package wsv

import (
	"errors"
	"testing"

	"github.com/hyperledger/iroha-go/internal/kv/memkv"
	"github.com/hyperledger/iroha-go/internal/model"
)

func newHarness(t *testing.T) (*Command, *Query) {
	t.Helper()
	s, err := memkv.New().Begin()
	if err != nil {
		t.Fatal(err)
	}
	return NewCommand(s), NewQuery(s)
}

func mustErr(t *testing.T, err error, kind Kind) {
	t.Helper()
	var werr *Error
	if !errors.As(err, &werr) {
		t.Fatalf("expected *wsv.Error, got %v (%T)", err, err)
	}
	if werr.Kind != kind {
		t.Fatalf("expected kind %s, got %s", kind, werr.Kind)
	}
}

func TestCreateDomainAndAccount(t *testing.T) {
	c, q := newHarness(t)
	if err := c.CreateDomain(model.Domain{ID: "test", DefaultRole: "user"}); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateDomain(model.Domain{ID: "test", DefaultRole: "user"}); err == nil {
		t.Fatal("expected AlreadyExists on duplicate domain")
	} else {
		mustErr(t, err, AlreadyExists)
	}

	acc := model.Account{
		ID: "alice@test", Domain: "test", Quorum: 1,
		Signatories: []model.PublicKey{"k1"},
		Roles:       map[string]struct{}{"user": {}},
	}
	if err := c.CreateAccount(acc); err == nil {
		t.Fatal("expected PreconditionFailed: role 'user' does not exist yet")
	} else {
		mustErr(t, err, PreconditionFailed)
	}
	if err := c.CreateRole(model.Role{ID: "user"}); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateAccount(acc); err != nil {
		t.Fatal(err)
	}
	got, err := q.GetAccount("alice@test")
	if err != nil || got.Quorum != 1 {
		t.Fatalf("GetAccount = %v, %v", got, err)
	}
}

func TestRemovePeerRejectsLastNonSyncing(t *testing.T) {
	c, _ := newHarness(t)
	c.AddPeer(model.Peer{PubKey: "p1", Address: "addr1"})
	if err := c.RemovePeer("p1"); err == nil {
		t.Fatal("expected PreconditionFailed removing last non-syncing peer")
	} else {
		mustErr(t, err, PreconditionFailed)
	}
	c.AddPeer(model.Peer{PubKey: "p2", Address: "addr2"})
	if err := c.RemovePeer("p1"); err != nil {
		t.Fatalf("removing with another peer present should succeed: %v", err)
	}
}

func TestTransferAssetBalanceAndPrecision(t *testing.T) {
	c, q := newHarness(t)
	c.CreateRole(model.Role{ID: "user"})
	c.CreateDomain(model.Domain{ID: "d", DefaultRole: "user"})
	c.CreateAccount(model.Account{ID: "a@d", Domain: "d", Quorum: 1, Signatories: []model.PublicKey{"k"}, Roles: map[string]struct{}{"user": {}}})
	c.CreateAccount(model.Account{ID: "b@d", Domain: "d", Quorum: 1, Signatories: []model.PublicKey{"k"}, Roles: map[string]struct{}{"user": {}}})
	c.CreateAsset(model.Asset{ID: "coin#d", Domain: "d", Precision: 2})

	if err := c.AddAssetQuantity("a@d", "coin#d", model.NewUint256(100), 2); err != nil {
		t.Fatal(err)
	}
	if err := c.TransferAsset("a@d", "b@d", "coin#d", model.NewUint256(40), 2); err != nil {
		t.Fatal(err)
	}
	srcAA, _ := q.GetAccountAsset("a@d", "coin#d")
	dstAA, _ := q.GetAccountAsset("b@d", "coin#d")
	if srcAA.Balance.String() != "60" || dstAA.Balance.String() != "40" {
		t.Fatalf("unexpected balances src=%s dst=%s", srcAA.Balance, dstAA.Balance)
	}

	if err := c.TransferAsset("a@d", "b@d", "coin#d", model.NewUint256(1000), 2); err == nil {
		t.Fatal("expected PreconditionFailed: insufficient balance")
	} else {
		mustErr(t, err, PreconditionFailed)
	}

	if err := c.TransferAsset("a@d", "b@d", "coin#d", model.NewUint256(1), 3); err == nil {
		t.Fatal("expected PreconditionFailed: precision mismatch")
	} else {
		mustErr(t, err, PreconditionFailed)
	}
}

func TestCompareAndSetAccountDetail(t *testing.T) {
	c, _ := newHarness(t)
	c.CreateRole(model.Role{ID: "user"})
	c.CreateDomain(model.Domain{ID: "d", DefaultRole: "user"})
	c.CreateAccount(model.Account{ID: "a@d", Domain: "d", Quorum: 1, Signatories: []model.PublicKey{"k"}, Roles: map[string]struct{}{"user": {}}})

	old := "expected"
	if err := c.CompareAndSetAccountDetail("a@d", "a@d", "k1", &old, "v1", true); err == nil {
		t.Fatal("expected PreconditionFailed: old value mismatch in strict mode")
	} else {
		mustErr(t, err, PreconditionFailed)
	}
	if err := c.CompareAndSetAccountDetail("a@d", "a@d", "k1", nil, "v1", true); err != nil {
		t.Fatal(err)
	}
	match := "v1"
	if err := c.CompareAndSetAccountDetail("a@d", "a@d", "k1", &match, "v2", true); err != nil {
		t.Fatal(err)
	}
}

func TestQuorumAndSignatoryInvariants(t *testing.T) {
	c, _ := newHarness(t)
	c.CreateRole(model.Role{ID: "user"})
	c.CreateDomain(model.Domain{ID: "d", DefaultRole: "user"})
	c.CreateAccount(model.Account{ID: "a@d", Domain: "d", Quorum: 1, Signatories: []model.PublicKey{"k1"}, Roles: map[string]struct{}{"user": {}}})

	if err := c.RemoveSignatory("a@d", "k1"); err == nil {
		t.Fatal("expected PreconditionFailed: would drop below quorum")
	} else {
		mustErr(t, err, PreconditionFailed)
	}
	c.AddSignatory("a@d", "k2")
	if err := c.SetQuorum("a@d", 3); err == nil {
		t.Fatal("expected PreconditionFailed: quorum exceeds signatory count")
	} else {
		mustErr(t, err, PreconditionFailed)
	}
	if err := c.RemoveSignatory("a@d", "k1"); err != nil {
		t.Fatalf("removing with 2 signatories and quorum 1 should succeed: %v", err)
	}
}
