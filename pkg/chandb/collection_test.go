package chandb

import "testing"

func TestCollectionOrderAndRemove(t *testing.T) {
	c := NewCollection[int](4)

	for _, v := range []int{3, 1, 4, 1} {
		c.Insert(v)
	}
	if c.Used() != 4 {
		t.Fatalf("expected 4 used slots, got %d", c.Used())
	}
	if !c.Full() {
		t.Error("collection at max slots should report full")
	}

	// Remove deletes the first occurrence only.
	if !c.Remove(1) {
		t.Fatal("Remove(1) should have found a value")
	}
	want := []int{3, 4, 1}
	got := c.Items()
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if c.Remove(99) {
		t.Error("Remove of an absent value should report false")
	}
	if c.Full() {
		t.Error("collection below max slots should not report full")
	}
}

func TestCollectionUnbounded(t *testing.T) {
	c := NewCollection[int](Unbounded)
	for i := 0; i < 1000; i++ {
		c.Insert(i)
	}
	if c.Full() {
		t.Error("unbounded collection should never report full")
	}
	if c.MaxSlots() != Unbounded {
		t.Errorf("expected Unbounded max slots, got %d", c.MaxSlots())
	}
}
