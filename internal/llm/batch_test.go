package llm

import "testing"

func TestBatchAddAndViews(t *testing.T) {
	b := NewBatch(4)
	if b.Cap() != 4 {
		t.Fatalf("Cap = %d, want 4", b.Cap())
	}
	b.Add(10, 0, false)
	b.Add(11, 1, false)
	b.Add(12, 2, true)
	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3", b.Len())
	}
	toks := b.Tokens()
	if len(toks) != 3 || toks[0] != 10 || toks[2] != 12 {
		t.Fatalf("Tokens = %v", toks)
	}
	pos := b.Positions()
	if pos[1] != 1 || pos[2] != 2 {
		t.Fatalf("Positions = %v", pos)
	}
	lg := b.Logits()
	if lg[0] || lg[1] || !lg[2] {
		t.Fatalf("Logits = %v", lg)
	}
}

// Reset must reuse the backing storage so the decode loop never allocates.
func TestBatchResetReusesStorage(t *testing.T) {
	b := NewBatch(8)
	b.Add(1, 0, true)
	before := &b.tokens[0]
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len after Reset = %d, want 0", b.Len())
	}
	b.Add(2, 5, false)
	if &b.tokens[0] != before {
		t.Fatal("Reset reallocated the arena")
	}
	if b.Tokens()[0] != 2 || b.Positions()[0] != 5 {
		t.Fatalf("entry after Reset = %v @ %v", b.Tokens(), b.Positions())
	}
}

func TestBatchOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on overflow")
		}
	}()
	b := NewBatch(1)
	b.Add(1, 0, true)
	b.Add(2, 1, true)
}

func TestRegistryOpen(t *testing.T) {
	Register("fake-backend", func(Options) (Backend, error) { return nil, ErrUnavailable("fake") })
	if _, err := Open("no-such-backend", Options{}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	_, err := Open("fake-backend", Options{})
	if !IsUnavailable(err) {
		t.Fatalf("IsUnavailable = false for %v", err)
	}
	found := false
	for _, n := range Backends() {
		if n == "fake-backend" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Backends() = %v, missing fake-backend", Backends())
	}
}
