package buffer

import (
	"fmt"
	"sort"
	"testing"
)

func TestPutAndTake(t *testing.T) {
	p := New()

	p.Put("vehicles", "payload-1")

	data, ok := p.Take("vehicles")
	if !ok {
		t.Fatal("expected buffered payload")
	}
	if data != "payload-1" {
		t.Errorf("unexpected payload: %v", data)
	}
}

func TestTakeRemoves(t *testing.T) {
	p := New()

	p.Put("vehicles", "payload-1")
	p.Take("vehicles")

	if _, ok := p.Take("vehicles"); ok {
		t.Error("expected second take to miss")
	}
}

func TestLastWriteWins(t *testing.T) {
	p := New()

	p.Put("vehicles", "old")
	p.Put("vehicles", "new")

	if p.Len() != 1 {
		t.Fatalf("expected single entry, got %d", p.Len())
	}
	data, _ := p.Take("vehicles")
	if data != "new" {
		t.Errorf("expected latest payload, got %v", data)
	}
}

func TestDrainEmptiesBuffer(t *testing.T) {
	p := New()

	p.Put("vehicles", 1)
	p.Put("routes", 2)

	drained := p.Drain()
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained entries, got %d", len(drained))
	}
	if p.Len() != 0 {
		t.Errorf("expected empty buffer after drain, got %d", p.Len())
	}
}

func TestDrainOnEmpty(t *testing.T) {
	p := New()

	if drained := p.Drain(); len(drained) != 0 {
		t.Errorf("expected no entries, got %d", len(drained))
	}
}

func TestKeys(t *testing.T) {
	p := New()

	for i := 0; i < 3; i++ {
		p.Put(fmt.Sprintf("layer-%d", i), i)
	}

	keys := p.Keys()
	sort.Strings(keys)
	want := []string{"layer-0", "layer-1", "layer-2"}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("expected key %s, got %s", k, keys[i])
		}
	}
}

func TestBoundedGrowth(t *testing.T) {
	p := New()

	// Many updates to the same layers never grow past one entry per layer.
	for i := 0; i < 1000; i++ {
		p.Put("vehicles", i)
		p.Put("routes", i)
	}

	if p.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", p.Len())
	}
}
