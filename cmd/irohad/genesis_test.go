package main

import (
	"testing"

	"github.com/hyperledger/iroha-go/internal/kv/memkv"
	"github.com/hyperledger/iroha-go/internal/testutil"
	"github.com/hyperledger/iroha-go/internal/wsv"
)

const sampleGenesis = `{
  "roles": [{"id": "admin", "permissions": {"root": {}}, "grantablePermissions": {}}],
  "domains": [{"id": "iroha", "defaultRole": "admin"}],
  "accounts": [{"id": "admin@iroha", "domain": "iroha", "quorum": 1, "signatories": [], "details": {}, "roles": {"admin": {}}}],
  "peers": [{"pubKey": "abcd", "address": "/ip4/127.0.0.1/tcp/10001"}]
}`

func TestLoadGenesisAndSeed(t *testing.T) {
	box, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	defer box.Cleanup()

	if err := box.WriteFile("genesis.json", []byte(sampleGenesis), 0o644); err != nil {
		t.Fatalf("write genesis: %v", err)
	}

	doc, err := loadGenesis(box.Path("genesis.json"))
	if err != nil {
		t.Fatalf("loadGenesis: %v", err)
	}
	if len(doc.Roles) != 1 || len(doc.Domains) != 1 || len(doc.Accounts) != 1 || len(doc.Peers) != 1 {
		t.Fatalf("unexpected genesis shape: %+v", doc)
	}

	eng := memkv.New()
	s, err := eng.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.seed(s); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	s2, err := eng.Begin()
	if err != nil {
		t.Fatal(err)
	}
	active, _, err := wsv.NewQuery(s2).ListPeers()
	if err != nil {
		t.Fatalf("list peers: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active peer seeded, got %d", len(active))
	}
}

func TestLoadGenesisMissingFile(t *testing.T) {
	if _, err := loadGenesis("/nonexistent/genesis.json"); err == nil {
		t.Fatal("expected an error for a missing genesis file")
	}
}
