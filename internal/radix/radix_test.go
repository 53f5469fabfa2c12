package radix

import (
	"sort"
	"testing"
)

func TestInsertFindRoundTrip(t *testing.T) {
	tr := New[int]()
	keys := []string{"a", "account_name", "account_name@domain", "account_other@domain", "a_b_c", "role-admin"}
	for i, k := range keys {
		tr.Insert(k, i)
	}
	for i, k := range keys {
		v, ok := tr.Find(k)
		if !ok || *v != i {
			t.Fatalf("Find(%q) = %v,%v want %d,true", k, v, ok, i)
		}
	}
	if _, ok := tr.Find("missing_key"); ok {
		t.Fatalf("Find(missing_key) should miss")
	}
}

func TestLongKeysSpanMultipleNodes(t *testing.T) {
	tr := NewWithK[string](4)
	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	tr.Insert(long, "v1")
	v, ok := tr.Find(long)
	if !ok || *v != "v1" {
		t.Fatalf("long key round trip failed: %v %v", v, ok)
	}
	tr.Insert(long+"X", "v2")
	v, ok = tr.Find(long + "X")
	if !ok || *v != "v2" {
		t.Fatalf("long key extension round trip failed: %v %v", v, ok)
	}
	v, ok = tr.Find(long)
	if !ok || *v != "v1" {
		t.Fatalf("original long key damaged by extension insert: %v %v", v, ok)
	}
}

func TestEraseRestoresShape(t *testing.T) {
	tr := New[int]()
	tr.Insert("account_one", 1)
	tr.Insert("account_two", 2)
	tr.Insert("account_three", 3)

	if n := tr.Erase("account_two"); n != 1 {
		t.Fatalf("Erase(account_two) = %d, want 1", n)
	}
	if _, ok := tr.Find("account_two"); ok {
		t.Fatalf("account_two should be gone")
	}
	if v, ok := tr.Find("account_one"); !ok || *v != 1 {
		t.Fatalf("account_one damaged by unrelated erase")
	}
	if v, ok := tr.Find("account_three"); !ok || *v != 3 {
		t.Fatalf("account_three damaged by unrelated erase")
	}
	if n := tr.Erase("account_two"); n != 0 {
		t.Fatalf("re-erasing absent key must return 0, got %d", n)
	}

	if n := tr.Erase("account_one"); n != 1 {
		t.Fatalf("Erase(account_one) = %d, want 1", n)
	}
	if n := tr.Erase("account_three"); n != 1 {
		t.Fatalf("Erase(account_three) = %d, want 1", n)
	}
	if tr.root.childCount != 0 {
		t.Fatalf("tree should be empty after erasing all keys, childCount=%d", tr.root.childCount)
	}
}

func TestFilterDeleteRemovesOnlyPrefixedKeys(t *testing.T) {
	tr := New[int]()
	in := map[string]int{
		"asset#domain_one":   1,
		"asset#domain_two":   2,
		"asset#other_domain": 3,
		"account@domain_one": 4,
	}
	for k, v := range in {
		tr.Insert(k, v)
	}
	tr.FilterDelete("asset#domain")

	for _, k := range []string{"asset#domain_one", "asset#domain_two"} {
		if _, ok := tr.Find(k); ok {
			t.Fatalf("%q should have been deleted by prefix filter", k)
		}
	}
	for _, k := range []string{"asset#other_domain", "account@domain_one"} {
		v, ok := tr.Find(k)
		if !ok || *v != in[k] {
			t.Fatalf("%q should have survived the prefix filter", k)
		}
	}
}

func TestFilterEnumerateVisitsEachSurvivorOnce(t *testing.T) {
	tr := New[int]()
	in := map[string]int{
		"role_admin_one": 1,
		"role_admin_two": 2,
		"role_user_one":  3,
	}
	for k, v := range in {
		tr.Insert(k, v)
	}

	var got []string
	seen := map[string]int{}
	tr.FilterEnumerate("role_admin", func(key string, v *int) {
		got = append(got, key)
		seen[key]++
		if *v != in[key] {
			t.Fatalf("enumerate(%q) value = %d, want %d", key, *v, in[key])
		}
	})
	sort.Strings(got)
	if len(got) != 2 || got[0] != "role_admin_one" || got[1] != "role_admin_two" {
		t.Fatalf("unexpected enumerate result: %v", got)
	}
	for k, n := range seen {
		if n != 1 {
			t.Fatalf("key %q visited %d times, want 1", k, n)
		}
	}
}

func TestFilterEnumerateEmptyPrefixVisitsAll(t *testing.T) {
	tr := New[int]()
	keys := []string{"a", "b", "ab", "ac"}
	for i, k := range keys {
		tr.Insert(k, i)
	}
	count := 0
	tr.FilterEnumerate("", func(string, *int) { count++ })
	if count != len(keys) {
		t.Fatalf("enumerate(\"\") visited %d keys, want %d", count, len(keys))
	}
}

func TestOverwriteExistingKey(t *testing.T) {
	tr := New[int]()
	tr.Insert("k", 1)
	tr.Insert("k", 2)
	v, ok := tr.Find("k")
	if !ok || *v != 2 {
		t.Fatalf("overwrite failed: %v %v", v, ok)
	}
}
