package tempwsv

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"
	"time"

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

func bootstrap(t *testing.T, s kv.Session, pub ed25519.PublicKey, quorum uint32) {
	t.Helper()
	c := wsv.NewCommand(s)
	if err := c.CreateRole(model.Role{ID: "admin", Permissions: map[string]struct{}{executor.RootPermission: {}}}); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateDomain(model.Domain{ID: "d", DefaultRole: "admin"}); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateAccount(model.Account{
		ID: "root@d", Domain: "d", Quorum: quorum,
		Signatories: []model.PublicKey{model.PublicKey(hex.EncodeToString(pub))},
		Roles:       map[string]struct{}{"admin": {}},
	}); err != nil {
		t.Fatal(err)
	}
}

var payloadFn PayloadFunc = func(tx *model.Transaction) []byte { return []byte(tx.Hash) }

func TestApplyCommitsOnValidSignature(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	s := newSession(t)
	bootstrap(t, s, pub, 1)
	q := wsv.NewQuery(s)
	creator, err := q.GetAccount("root@d")
	if err != nil {
		t.Fatal(err)
	}

	tw, err := Open(s, payloadFn)
	if err != nil {
		t.Fatal(err)
	}

	tx := &model.Transaction{
		Hash:      model.Hash("tx1"),
		Creator:   "root@d",
		CreatedAt: time.Now(),
		Commands:  []model.Command{executor.CreateAsset{Asset: model.Asset{ID: "coin#d", Domain: "d", Precision: 0}}},
	}
	tx.Signatures = []model.TxSignature{{
		PubKey:    model.PublicKey(hex.EncodeToString(pub)),
		Signature: ed25519.Sign(priv, payloadFn(tx)),
	}}

	if err := tw.Apply(tx, creator); err != nil {
		t.Fatalf("expected valid signature to pass, got %v", err)
	}
	if err := tw.Commit(); err != nil {
		t.Fatal(err)
	}

	if _, err := q.GetAsset("coin#d"); err != nil {
		t.Fatalf("asset should be visible after commit: %v", err)
	}
}

func TestApplyRejectsInsufficientSignatures(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	otherPub, otherPriv, _ := ed25519.GenerateKey(nil)
	s := newSession(t)
	bootstrap(t, s, pub, 1)
	q := wsv.NewQuery(s)
	creator, _ := q.GetAccount("root@d")

	tw, err := Open(s, payloadFn)
	if err != nil {
		t.Fatal(err)
	}

	tx := &model.Transaction{Hash: model.Hash("tx2"), Creator: "root@d", Commands: []model.Command{
		executor.CreateAsset{Asset: model.Asset{ID: "coin#d", Domain: "d", Precision: 0}},
	}}
	// Signed by a key the creator doesn't know about.
	tx.Signatures = []model.TxSignature{{
		PubKey:    model.PublicKey(hex.EncodeToString(otherPub)),
		Signature: ed25519.Sign(otherPriv, payloadFn(tx)),
	}}

	err = tw.Apply(tx, creator)
	if err == nil {
		t.Fatal("expected signature validation failure")
	}
	sigErr, ok := err.(*SignatureError)
	if !ok || sigErr.Code != CodeSignaturesInsufficient {
		t.Fatalf("expected SignatureError insufficient, got %v", err)
	}

	if err := tw.Discard(); err != nil {
		t.Fatal(err)
	}
	if _, err := q.GetAsset("coin#d"); err == nil {
		t.Fatal("asset must not exist: signature validation should have rejected the transaction before execution")
	}
}

func TestDiscardRollsBackEveryAppliedTransaction(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	s := newSession(t)
	bootstrap(t, s, pub, 1)
	q := wsv.NewQuery(s)
	creator, _ := q.GetAccount("root@d")

	tw, err := Open(s, payloadFn)
	if err != nil {
		t.Fatal(err)
	}

	tx := &model.Transaction{Hash: model.Hash("tx3"), Creator: "root@d", Commands: []model.Command{
		executor.CreateAsset{Asset: model.Asset{ID: "coin#d", Domain: "d", Precision: 0}},
	}}
	tx.Signatures = []model.TxSignature{{
		PubKey:    model.PublicKey(hex.EncodeToString(pub)),
		Signature: ed25519.Sign(priv, payloadFn(tx)),
	}}

	if err := tw.Apply(tx, creator); err != nil {
		t.Fatalf("apply should succeed: %v", err)
	}
	if err := tw.Discard(); err != nil {
		t.Fatal(err)
	}

	if _, err := q.GetAsset("coin#d"); err == nil {
		t.Fatal("discard should have rolled back the applied transaction")
	}
}

func TestApplyRejectsBelowQuorum(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	s := newSession(t)
	bootstrap(t, s, pub, 1)
	// quorum 2 over two known signatories, but the transaction carries only one signature
	c := wsv.NewCommand(s)
	if err := c.AddSignatory("root@d", "second-signatory"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetQuorum("root@d", 2); err != nil {
		t.Fatal(err)
	}
	q := wsv.NewQuery(s)
	creator, _ := q.GetAccount("root@d")

	tw, err := Open(s, payloadFn)
	if err != nil {
		t.Fatal(err)
	}

	tx := &model.Transaction{Hash: model.Hash("tx4"), Creator: "root@d", Commands: []model.Command{
		executor.CreateAsset{Asset: model.Asset{ID: "coin#d", Domain: "d", Precision: 0}},
	}}
	tx.Signatures = []model.TxSignature{{
		PubKey:    model.PublicKey(hex.EncodeToString(pub)),
		Signature: ed25519.Sign(priv, payloadFn(tx)),
	}}

	err = tw.Apply(tx, creator)
	if err == nil {
		t.Fatal("expected quorum failure")
	}
	if sigErr, ok := err.(*SignatureError); !ok || sigErr.Code != CodeSignaturesInsufficient {
		t.Fatalf("expected SignatureError insufficient (quorum), got %v", err)
	}
}
