package row

import "testing"

func TestGroupKeyNoSeparatorCollision(t *testing.T) {
	t.Parallel()

	// With a delimited string key these two rows would both become "a$*&3b$*&3".
	k1 := KeyOf(Row{Text("a$*&3b"), Text("")})
	k2 := KeyOf(Row{Text("a"), Text("b$*&3")})
	if k1.Equal(k2) {
		t.Fatalf("keys %q and %q must differ", k1, k2)
	}

	ix := NewKeyIndex[int]()
	ix.Put(k1, 1)
	ix.Put(k2, 2)
	if ix.Len() != 2 {
		t.Fatalf("Len=%d; want 2", ix.Len())
	}
	if v, ok := ix.Get(k1); !ok || v != 1 {
		t.Fatalf("Get(k1)=%d,%v", v, ok)
	}
}

func TestKeyIndexReplace(t *testing.T) {
	t.Parallel()

	ix := NewKeyIndex[string]()
	k := KeyOf(Row{Int(1), Text("x")})
	ix.Put(k, "first")
	ix.Put(KeyOf(Row{Int(1), Text("x")}), "second")
	if ix.Len() != 1 {
		t.Fatalf("Len=%d; want 1", ix.Len())
	}
	if v, _ := ix.Get(k); v != "second" {
		t.Fatalf("Get=%q; want second", v)
	}
	if _, ok := ix.Get(KeyOf(Row{Int(2), Text("x")})); ok {
		t.Fatalf("unexpected hit")
	}
}

// TestKeyIndexBucketCollision plants a foreign key in the bucket of a and
// checks that lookups and replacement resolve by the full tuple.
func TestKeyIndexBucketCollision(t *testing.T) {
	t.Parallel()

	ix := NewKeyIndex[int]()
	a, impostor := GroupKey{"a"}, GroupKey{"impostor"}
	h := a.Hash()
	ix.buckets[h] = []keyEntry[int]{{key: impostor, val: 9}}
	ix.n = 1

	if _, ok := ix.Get(a); ok {
		t.Fatalf("Get(a) matched a different key in the same bucket")
	}
	ix.Put(a, 1)
	if ix.Len() != 2 || len(ix.buckets[h]) != 2 {
		t.Fatalf("Len=%d bucket=%d; want 2,2", ix.Len(), len(ix.buckets[h]))
	}
	if v, ok := ix.Get(a); !ok || v != 1 {
		t.Fatalf("Get(a)=%d,%v", v, ok)
	}
	if ix.buckets[h][0].val != 9 {
		t.Fatalf("impostor entry was overwritten")
	}
}

func TestGroupKeyCompare(t *testing.T) {
	t.Parallel()

	if (GroupKey{"A"}).Compare(GroupKey{"B"}) >= 0 {
		t.Fatalf("A should sort before B")
	}
	if (GroupKey{"A"}).Compare(GroupKey{"A", ""}) >= 0 {
		t.Fatalf("prefix should sort first")
	}
	if (GroupKey{"A", "x"}).Compare(GroupKey{"A", "x"}) != 0 {
		t.Fatalf("equal keys should compare 0")
	}
}
