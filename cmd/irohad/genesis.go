package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hyperledger/iroha-go/internal/kv"
	"github.com/hyperledger/iroha-go/internal/model"
	"github.com/hyperledger/iroha-go/internal/wsv"
)

// genesisDoc is the seed WSV content a network starts from: its initial
// peer set, roles, domains and accounts. Block commands are an open
// interface (internal/model.Command), so the genesis file describes state
// directly rather than a block of commands to replay.
type genesisDoc struct {
	Peers    []model.Peer    `json:"peers"`
	Roles    []model.Role    `json:"roles"`
	Domains  []model.Domain  `json:"domains"`
	Accounts []model.Account `json:"accounts"`
}

func loadGenesis(path string) (*genesisDoc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	var doc genesisDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("genesis: parse %s: %w", path, err)
	}
	return &doc, nil
}

// seed writes the genesis document into a fresh KV session via wsv.Command,
// in dependency order (roles and domains before the accounts that
// reference them, then peers).
func (g *genesisDoc) seed(s kv.Session) error {
	cmd := wsv.NewCommand(s)
	for _, r := range g.Roles {
		if err := cmd.CreateRole(r); err != nil {
			return fmt.Errorf("genesis: create role %s: %w", r.ID, err)
		}
	}
	for _, d := range g.Domains {
		if err := cmd.CreateDomain(d); err != nil {
			return fmt.Errorf("genesis: create domain %s: %w", d.ID, err)
		}
	}
	for _, a := range g.Accounts {
		if err := cmd.CreateAccount(a); err != nil {
			return fmt.Errorf("genesis: create account %s: %w", a.ID, err)
		}
	}
	for _, p := range g.Peers {
		if err := cmd.AddPeer(p); err != nil {
			return fmt.Errorf("genesis: add peer %s: %w", p.PubKey, err)
		}
	}
	return nil
}
