package shmheader

import "testing"

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	h := &Header{
		RefCount:   1,
		TotalSize:  4096,
		Version:    SharedSegmentVersionForTest,
		CreateTime: 1234567890,
	}
	copy(h.CreatorName[:], "test-creator")

	buf := Marshal(h)
	if len(buf) != Size {
		t.Fatalf("Marshal produced %d bytes, want %d", len(buf), Size)
	}

	var out Header
	if err := Unmarshal(buf, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if out.RefCount != h.RefCount || out.TotalSize != h.TotalSize || out.Version != h.Version || out.CreateTime != h.CreateTime {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, h)
	}
	if string(out.CreatorName[:12]) != "test-creator" {
		t.Fatalf("creator name mismatch: %q", out.CreatorName[:12])
	}
}

func TestUnmarshalShortBuffer(t *testing.T) {
	var out Header
	if err := Unmarshal(make([]byte, Size-1), &out); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestAddRefCount(t *testing.T) {
	buf := make([]byte, Size)
	if got := AddRefCount(buf, 1); got != 1 {
		t.Fatalf("AddRefCount(+1) = %d, want 1", got)
	}
	if got := AddRefCount(buf, 1); got != 2 {
		t.Fatalf("AddRefCount(+1) = %d, want 2", got)
	}
	if got := AddRefCount(buf, -1); got != 1 {
		t.Fatalf("AddRefCount(-1) = %d, want 1", got)
	}
	if got := LoadRefCount(buf); got != 1 {
		t.Fatalf("LoadRefCount = %d, want 1", got)
	}
}

// SharedSegmentVersionForTest avoids importing the constants package twice
// under a different alias in the test.
const SharedSegmentVersionForTest = 1
