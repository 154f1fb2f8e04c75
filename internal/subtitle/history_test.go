package subtitle

import (
	"testing"
	"time"
)

func TestHistory_FinalRemovesRecentInstants(t *testing.T) {
	h := NewHistory(5, 3*time.Second)
	t0 := time.Now()

	inst := NewSegment(KindInstant, "hej och", 0, 0.5, t0)
	h.AddInstant(inst)

	removed := h.AddFinal(NewSegment(KindFinal, "hej och välkommen", 0, 1.2, t0.Add(2500*time.Millisecond)), t0.Add(2500*time.Millisecond))
	if len(removed) != 1 || removed[0] != inst.ID {
		t.Fatalf("Expected instant %s to be removed, got %v", inst.ID, removed)
	}

	segs := h.Segments()
	if len(segs) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segs))
	}
	if segs[0].Kind != KindFinal {
		t.Errorf("Expected remaining segment to be final, got %s", segs[0].Kind)
	}
}

func TestHistory_OldInstantsSurviveFinal(t *testing.T) {
	h := NewHistory(5, 3*time.Second)
	t0 := time.Now()

	old := NewSegment(KindInstant, "äldre text", 0, 0.5, t0)
	h.AddInstant(old)

	// 4 seconds later the instant has aged past the reconcile window
	removed := h.AddFinal(NewSegment(KindFinal, "ny mening", 0, 1, t0.Add(4*time.Second)), t0.Add(4*time.Second))
	if len(removed) != 0 {
		t.Fatalf("Expected no removals, got %v", removed)
	}

	segs := h.Segments()
	if len(segs) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segs))
	}
	if segs[0].ID != old.ID || segs[1].Kind != KindFinal {
		t.Error("Expected the old instant followed by the final")
	}
}

func TestHistory_FinalRemovesOnlyInstants(t *testing.T) {
	h := NewHistory(5, 3*time.Second)
	t0 := time.Now()

	h.AddFinal(NewSegment(KindFinal, "första", 0, 1, t0), t0)
	h.AddInstant(NewSegment(KindInstant, "andra på väg", 1, 1.5, t0.Add(time.Second)))

	removed := h.AddFinal(NewSegment(KindFinal, "andra meningen", 1, 2, t0.Add(2*time.Second)), t0.Add(2*time.Second))
	if len(removed) != 1 {
		t.Fatalf("Expected 1 removal, got %d", len(removed))
	}

	segs := h.Segments()
	if len(segs) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segs))
	}
	for _, s := range segs {
		if s.Kind != KindFinal {
			t.Errorf("Expected only finals to remain, found %s", s.Kind)
		}
	}
}

func TestHistory_CapacityEviction(t *testing.T) {
	for _, capacity := range []int{5, 3} {
		h := NewHistory(capacity, 3*time.Second)
		t0 := time.Now()

		var ids []string
		for i := 0; i < capacity+2; i++ {
			seg := NewSegment(KindFinal, "mening", 0, 1, t0.Add(time.Duration(i)*10*time.Second))
			ids = append(ids, seg.ID)
			h.AddFinal(seg, seg.At)
		}

		if h.Len() != capacity {
			t.Fatalf("capacity %d: expected %d segments, got %d", capacity, capacity, h.Len())
		}
		segs := h.Segments()
		// Oldest two evicted, order preserved
		for i, s := range segs {
			if s.ID != ids[i+2] {
				t.Errorf("capacity %d: segment %d = %s, want %s", capacity, i, s.ID, ids[i+2])
			}
		}
	}
}

func TestHistory_InstantEviction(t *testing.T) {
	h := NewHistory(3, 3*time.Second)
	t0 := time.Now()

	for i := 0; i < 5; i++ {
		h.AddInstant(NewSegment(KindInstant, "delvis", 0, 0.5, t0))
	}
	if h.Len() != 3 {
		t.Errorf("Expected 3 segments after eviction, got %d", h.Len())
	}
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory(5, 3*time.Second)
	t0 := time.Now()

	h.AddInstant(NewSegment(KindInstant, "text", 0, 1, t0))
	h.AddFinal(NewSegment(KindFinal, "text", 0, 1, t0.Add(10*time.Second)), t0.Add(10*time.Second))

	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Expected empty history after clear, got %d segments", h.Len())
	}
}

func TestHistory_SegmentsReturnsCopy(t *testing.T) {
	h := NewHistory(5, 3*time.Second)
	t0 := time.Now()
	h.AddFinal(NewSegment(KindFinal, "original", 0, 1, t0), t0)

	segs := h.Segments()
	segs[0].Text = "mutated"

	if h.Segments()[0].Text != "original" {
		t.Error("Expected Segments to return a copy, internal state was mutated")
	}
}
