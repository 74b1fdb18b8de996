package cache

import (
	"fmt"
	"testing"
)

func TestGetMiss(t *testing.T) {
	c := New[string](3)
	if _, ok := c.Get("absent"); ok {
		t.Error("Get on empty cache reported a hit")
	}
}

func TestPutGet(t *testing.T) {
	c := New[string](3)
	c.Put("k", "v")

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}
}

func TestFIFOEviction(t *testing.T) {
	c := New[int](3)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// Access "a" repeatedly; FIFO must ignore access recency.
	for i := 0; i < 5; i++ {
		c.Get("a")
	}

	c.Put("d", 4)

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry survived eviction")
	}
	for _, k := range []string{"b", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %q unexpectedly evicted", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	c := New[int](5)
	for i := 0; i < 50; i++ {
		c.Put(fmt.Sprintf("key-%d", i), i)
		if c.Len() > 5 {
			t.Fatalf("cache grew to %d entries, capacity is 5", c.Len())
		}
	}

	// The five most recent inserts survive.
	for i := 45; i < 50; i++ {
		if _, ok := c.Get(fmt.Sprintf("key-%d", i)); !ok {
			t.Errorf("key-%d missing after fills", i)
		}
	}
}

func TestPutExistingKeyKeepsOrder(t *testing.T) {
	c := New[int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10) // overwrite, not a new insertion

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("overwrite lost: a = %d, want 10", v)
	}

	// "a" is still the oldest insertion, so it goes first.
	c.Put("c", 3)
	if _, ok := c.Get("a"); ok {
		t.Error("overwritten key should retain original insertion order")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should survive")
	}
}

func TestDefaultCapacity(t *testing.T) {
	c := New[int](0)
	for i := 0; i < DefaultCapacity+10; i++ {
		c.Put(fmt.Sprintf("k%d", i), i)
	}
	if c.Len() != DefaultCapacity {
		t.Errorf("Len = %d, want %d", c.Len(), DefaultCapacity)
	}
}
