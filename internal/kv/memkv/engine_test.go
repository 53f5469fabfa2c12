package memkv

import (
	"testing"

	"github.com/hyperledger/iroha-go/internal/kv"
)

func TestPutGetWithinSession(t *testing.T) {
	e := New()
	s, _ := e.Begin()
	if err := s.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	v, err := s.Get([]byte("a"))
	if err != nil || string(v) != "1" {
		t.Fatalf("Get = %q, %v", v, err)
	}
}

func TestCommitPersistsAcrossSessions(t *testing.T) {
	e := New()
	s1, _ := e.Begin()
	s1.Put([]byte("k"), []byte("v"))
	if err := s1.Commit(); err != nil {
		t.Fatal(err)
	}
	s2, _ := e.Begin()
	v, err := s2.Get([]byte("k"))
	if err != nil || string(v) != "v" {
		t.Fatalf("Get after commit = %q, %v", v, err)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	e := New()
	s1, _ := e.Begin()
	s1.Put([]byte("k"), []byte("v"))
	s1.Rollback()

	s2, _ := e.Begin()
	if _, err := s2.Get([]byte("k")); err != kv.ErrNotFound {
		t.Fatalf("expected ErrNotFound after rollback, got %v", err)
	}
}

func TestNestedSavepointRollback(t *testing.T) {
	e := New()
	s, _ := e.Begin()
	s.Put([]byte("outer"), []byte("1"))
	s.Savepoint("sp1")
	s.Put([]byte("inner"), []byte("2"))
	s.RollbackToSavepoint("sp1")

	if _, err := s.Get([]byte("inner")); err != kv.ErrNotFound {
		t.Fatalf("inner write should be undone, err=%v", err)
	}
	v, err := s.Get([]byte("outer"))
	if err != nil || string(v) != "1" {
		t.Fatalf("outer write should survive rollback to nested savepoint: %q %v", v, err)
	}
}

func TestReleaseSavepointKeepsWrites(t *testing.T) {
	e := New()
	s, _ := e.Begin()
	s.Savepoint("sp1")
	s.Put([]byte("k"), []byte("v"))
	if err := s.ReleaseSavepoint("sp1"); err != nil {
		t.Fatal(err)
	}
	v, err := s.Get([]byte("k"))
	if err != nil || string(v) != "v" {
		t.Fatalf("write should survive release: %q %v", v, err)
	}
	s.Commit()

	s2, _ := e.Begin()
	v2, err := s2.Get([]byte("k"))
	if err != nil || string(v2) != "v" {
		t.Fatalf("write should be committed after release+commit: %q %v", v2, err)
	}
}

func TestPreparedCommit(t *testing.T) {
	e := New()
	s, _ := e.Begin()
	s.Put([]byte("prepared_key"), []byte("v"))
	if err := s.Prepare("txn1"); err != nil {
		t.Fatal(err)
	}

	s2, _ := e.Begin()
	if _, err := s2.Get([]byte("prepared_key")); err != kv.ErrNotFound {
		t.Fatalf("prepared write must not be visible before CommitPrepared, err=%v", err)
	}

	if err := s2.CommitPrepared("txn1"); err != nil {
		t.Fatal(err)
	}
	s3, _ := e.Begin()
	v, err := s3.Get([]byte("prepared_key"))
	if err != nil || string(v) != "v" {
		t.Fatalf("prepared write must be visible after CommitPrepared: %q %v", v, err)
	}
}

func TestPreparedRollback(t *testing.T) {
	e := New()
	s, _ := e.Begin()
	s.Put([]byte("k"), []byte("v"))
	s.Prepare("txn2")

	s2, _ := e.Begin()
	if err := s2.RollbackPrepared("txn2"); err != nil {
		t.Fatal(err)
	}
	if err := s2.CommitPrepared("txn2"); err != kv.ErrNotPrepared {
		t.Fatalf("expected ErrNotPrepared after rollback, got %v", err)
	}
}

func TestSeekPrefix(t *testing.T) {
	e := New()
	s, _ := e.Begin()
	s.Put([]byte("wsv/domain/a/account/x"), []byte("1"))
	s.Put([]byte("wsv/domain/a/account/y"), []byte("2"))
	s.Put([]byte("wsv/domain/b/account/z"), []byte("3"))

	cur, err := s.Seek([]byte("wsv/domain/a"))
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for cur.Next() {
		count++
	}
	if count != 2 {
		t.Fatalf("Seek(wsv/domain/a) found %d keys, want 2", count)
	}
}

func TestFilterDelete(t *testing.T) {
	e := New()
	s, _ := e.Begin()
	s.Put([]byte("a/1"), []byte("x"))
	s.Put([]byte("a/2"), []byte("x"))
	s.Put([]byte("b/1"), []byte("x"))
	s.FilterDelete([]byte("a/"))

	if _, err := s.Get([]byte("a/1")); err != kv.ErrNotFound {
		t.Fatalf("a/1 should be filter-deleted")
	}
	if _, err := s.Get([]byte("b/1")); err != nil {
		t.Fatalf("b/1 should survive: %v", err)
	}
}
