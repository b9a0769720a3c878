package engine

import "testing"

func rangesEqual(a, b []Range) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCoverageAddMergesTouchingRanges(t *testing.T) {
	c := NewCoverage(Range{Start: 0, Length: 0x10}, Range{Start: 0x10, Length: 0x10})
	want := []Range{{Start: 0, Length: 0x20}}
	if !rangesEqual(c.Ranges(), want) {
		t.Errorf("Ranges() = %v, want %v", c.Ranges(), want)
	}
}

func TestCoverageAddMergesOverlappingRanges(t *testing.T) {
	c := NewCoverage(Range{Start: 0, Length: 0x10}, Range{Start: 8, Length: 0x10})
	want := []Range{{Start: 0, Length: 0x18}}
	if !rangesEqual(c.Ranges(), want) {
		t.Errorf("Ranges() = %v, want %v", c.Ranges(), want)
	}
}

func TestCoverageAddKeepsDisjointRangesSeparate(t *testing.T) {
	c := NewCoverage(Range{Start: 0, Length: 0x10}, Range{Start: 0x100, Length: 0x10})
	want := []Range{{Start: 0, Length: 0x10}, {Start: 0x100, Length: 0x10}}
	if !rangesEqual(c.Ranges(), want) {
		t.Errorf("Ranges() = %v, want %v", c.Ranges(), want)
	}
}

func TestCoverageAddPanicsOnEmptyRange(t *testing.T) {
	c := &Coverage{}
	defer func() {
		if recover() == nil {
			t.Fatalf("Add did not panic on a zero-length range")
		}
	}()
	c.Add(Range{Start: 0, Length: 0})
}

func TestCoverageLength(t *testing.T) {
	c := NewCoverage(Range{Start: 0, Length: 0x10}, Range{Start: 0x100, Length: 0x10})
	if got := c.Length(); got != 0x20 {
		t.Errorf("Length() = %#x, want 0x20", got)
	}
}

func TestCoverageRemoveSplitsRange(t *testing.T) {
	c := NewCoverage(Range{Start: 0, Length: 0x20})
	c.Remove(Range{Start: 0x8, Length: 0x8})
	want := []Range{{Start: 0, Length: 0x8}, {Start: 0x10, Length: 0x10}}
	if !rangesEqual(c.Ranges(), want) {
		t.Errorf("Ranges() after Remove = %v, want %v", c.Ranges(), want)
	}
}

func TestCoverageRemoveEatsWholeRange(t *testing.T) {
	c := NewCoverage(Range{Start: 0, Length: 0x10})
	c.Remove(Range{Start: 0, Length: 0x10})
	if !c.IsEmpty() {
		t.Errorf("Remove of the entire range left %v, want empty", c.Ranges())
	}
}

func TestCoverageUnion(t *testing.T) {
	a := NewCoverage(Range{Start: 0, Length: 0x10})
	b := NewCoverage(Range{Start: 0x100, Length: 0x10})
	u := a.Union(b)
	want := []Range{{Start: 0, Length: 0x10}, {Start: 0x100, Length: 0x10}}
	if !rangesEqual(u.Ranges(), want) {
		t.Errorf("Union() = %v, want %v", u.Ranges(), want)
	}
	// a itself is untouched.
	if !rangesEqual(a.Ranges(), []Range{{Start: 0, Length: 0x10}}) {
		t.Errorf("Union mutated its receiver: %v", a.Ranges())
	}
}

func TestCoverageIntersect(t *testing.T) {
	a := NewCoverage(Range{Start: 0, Length: 0x20})
	b := NewCoverage(Range{Start: 0x10, Length: 0x20})
	got := a.Intersect(b)
	want := []Range{{Start: 0x10, Length: 0x10}}
	if !rangesEqual(got.Ranges(), want) {
		t.Errorf("Intersect() = %v, want %v", got.Ranges(), want)
	}
}

func TestCoverageIntersectDisjointIsEmpty(t *testing.T) {
	a := NewCoverage(Range{Start: 0, Length: 0x10})
	b := NewCoverage(Range{Start: 0x100, Length: 0x10})
	if got := a.Intersect(b); !got.IsEmpty() {
		t.Errorf("Intersect of disjoint ranges = %v, want empty", got.Ranges())
	}
}

func TestCoverageSubtract(t *testing.T) {
	a := NewCoverage(Range{Start: 0, Length: 0x20})
	b := NewCoverage(Range{Start: 0x8, Length: 0x8})
	got := a.Subtract(b)
	want := []Range{{Start: 0, Length: 0x8}, {Start: 0x10, Length: 0x10}}
	if !rangesEqual(got.Ranges(), want) {
		t.Errorf("Subtract() = %v, want %v", got.Ranges(), want)
	}
}

func TestCoverageContainsAddr(t *testing.T) {
	c := NewCoverage(Range{Start: 0, Length: 0x10})
	if !c.ContainsAddr(9) {
		t.Errorf("ContainsAddr(9) = false, want true")
	}
	if c.ContainsAddr(0x10) {
		t.Errorf("ContainsAddr(0x10) = true, want false (half-open range)")
	}
}

func TestCoverageContainsRange(t *testing.T) {
	c := NewCoverage(Range{Start: 0, Length: 0x20})
	if !c.ContainsRange(Range{Start: 0x8, Length: 0x8}) {
		t.Errorf("ContainsRange(inner) = false, want true")
	}
	if c.ContainsRange(Range{Start: 0x10, Length: 0x20}) {
		t.Errorf("ContainsRange(spanning past end) = true, want false")
	}
}

func TestCoverageOverlaps(t *testing.T) {
	a := NewCoverage(Range{Start: 0, Length: 0x10})
	b := NewCoverage(Range{Start: 0x8, Length: 0x10})
	if !a.Overlaps(b) {
		t.Errorf("Overlaps = false, want true")
	}
	c := NewCoverage(Range{Start: 0x100, Length: 0x10})
	if a.Overlaps(c) {
		t.Errorf("Overlaps of disjoint coverages = true, want false")
	}
}

func TestCoverageEnumerateStampsPositionsAcrossRanges(t *testing.T) {
	c := NewCoverage(Range{Start: 0x10, Length: 2}, Range{Start: 0x20, Length: 2})
	p := c.Enumerate()
	var addrs []int64
	var positions []int
	for {
		v, ok := p.Next()
		if !ok {
			break
		}
		addr, _, _ := v.AsCst()
		addrs = append(addrs, addr.Int64())
		positions = append(positions, v.Pos)
	}
	wantAddrs := []int64{0x10, 0x11, 0x20, 0x21}
	if len(addrs) != len(wantAddrs) {
		t.Fatalf("Enumerate produced %d addresses, want %d", len(addrs), len(wantAddrs))
	}
	for i, want := range wantAddrs {
		if addrs[i] != want {
			t.Errorf("addr[%d] = %#x, want %#x", i, addrs[i], want)
		}
		if positions[i] != i {
			t.Errorf("pos[%d] = %d, want %d", i, positions[i], i)
		}
	}
}

func TestCoverageEqualAndClone(t *testing.T) {
	a := NewCoverage(Range{Start: 0, Length: 0x10})
	b := a.Clone()
	if !a.Equal(b) {
		t.Errorf("Clone().Equal(original) = false, want true")
	}
	b.Add(Range{Start: 0x100, Length: 0x10})
	if a.Equal(b) {
		t.Errorf("mutating the clone changed the original's Equal result")
	}
}
